package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// IdleCloser closes sessions with no activity for longer than maxIdle.
type IdleCloser interface {
	CloseIdle(maxIdle time.Duration) int
}

// SessionReaper releases the live subscriptions of abandoned sessions.
type SessionReaper struct {
	sessions IdleCloser
	maxIdle  time.Duration
	interval time.Duration
	log      logrus.FieldLogger
}

// NewSessionReaper sweeps every interval for sessions idle longer than maxIdle.
func NewSessionReaper(sessions IdleCloser, maxIdle, interval time.Duration, log logrus.FieldLogger) *SessionReaper {
	return &SessionReaper{sessions: sessions, maxIdle: maxIdle, interval: interval, log: log}
}

// Start runs the sweep loop until ctx is cancelled.
func (r *SessionReaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep closes idle sessions once and returns how many were closed.
func (r *SessionReaper) Sweep() int {
	n := r.sessions.CloseIdle(r.maxIdle)
	if n > 0 {
		r.log.WithField("closed", n).Info("Closed idle sessions")
	}
	return n
}
