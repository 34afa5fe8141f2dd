package family

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"giftlist/internal/live"
	"giftlist/internal/metrics"
	"giftlist/internal/models"
)

// Registry maps browser session ids to their controllers.
type Registry struct {
	store   Store
	changes *live.Hub
	opts    Options
	log     logrus.FieldLogger

	mu          sync.Mutex
	controllers map[string]*Controller
}

func NewRegistry(store Store, changes *live.Hub, opts Options) *Registry {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		store:       store,
		changes:     changes,
		opts:        opts,
		log:         log,
		controllers: map[string]*Controller{},
	}
}

// Get returns the session's controller, starting one for viewer if needed.
// A controller belonging to a different user is replaced.
func (r *Registry) Get(ctx context.Context, sessionID string, viewer models.User) (*Controller, error) {
	r.mu.Lock()
	c, ok := r.controllers[sessionID]
	if ok && c.viewer.ID == viewer.ID {
		r.mu.Unlock()
		c.Touch()
		return c, nil
	}
	if ok {
		delete(r.controllers, sessionID)
	}
	r.mu.Unlock()

	if ok {
		c.Close()
		metrics.ActiveSessions.Dec()
	}

	fresh := NewController(r.store, r.changes, viewer, r.opts)
	if err := fresh.Start(ctx); err != nil {
		fresh.Close()
		return nil, err
	}

	r.mu.Lock()
	if existing, raced := r.controllers[sessionID]; raced && existing.viewer.ID == viewer.ID {
		r.mu.Unlock()
		fresh.Close()
		existing.Touch()
		return existing, nil
	}
	r.controllers[sessionID] = fresh
	r.mu.Unlock()

	metrics.ActiveSessions.Inc()
	r.log.WithField("viewer_id", viewer.ID).Debug("Session controller started")
	return fresh, nil
}

// Lookup returns the session's controller without creating one.
func (r *Registry) Lookup(sessionID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.controllers[sessionID]
	return c, ok
}

// Close tears down the session's controller, if any.
func (r *Registry) Close(sessionID string) {
	r.mu.Lock()
	c, ok := r.controllers[sessionID]
	delete(r.controllers, sessionID)
	r.mu.Unlock()

	if ok {
		c.Close()
		metrics.ActiveSessions.Dec()
	}
}

// CloseIdle tears down controllers with no activity for longer than maxIdle
// and returns how many were closed.
func (r *Registry) CloseIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	var idle []*Controller
	for id, c := range r.controllers {
		if c.LastSeen().Before(cutoff) {
			idle = append(idle, c)
			delete(r.controllers, id)
		}
	}
	r.mu.Unlock()

	for _, c := range idle {
		c.Close()
		metrics.ActiveSessions.Dec()
	}
	return len(idle)
}

// Len returns the number of live controllers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}

// CloseAll tears down every controller. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.controllers
	r.controllers = map[string]*Controller{}
	r.mu.Unlock()

	for _, c := range all {
		c.Close()
		metrics.ActiveSessions.Dec()
	}
}
