package live

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Change is the payload the database triggers publish.
type Change struct {
	Table   string `json:"table"`
	OwnerID string `json:"owner_id"`
}

// Topics returns the hub topics a change affects.
func (c Change) Topics() []string {
	id, err := uuid.Parse(c.OwnerID)
	if err != nil {
		return nil
	}
	if c.Table == "users" {
		return []string{UsersTopic, OwnerTopic(id)}
	}
	return []string{OwnerTopic(id)}
}

// Listener holds a dedicated connection on LISTEN and republishes each
// notification on the hub.
type Listener struct {
	pool    *pgxpool.Pool
	hub     *Hub
	channel string
	log     logrus.FieldLogger

	// OnError is called for every connection or payload error, if set.
	OnError func(error)
}

func NewListener(pool *pgxpool.Pool, hub *Hub, channel string, log logrus.FieldLogger) *Listener {
	return &Listener{pool: pool, hub: hub, channel: channel, log: log}
}

// Run listens until ctx is cancelled, reconnecting with exponential back-off.
func (l *Listener) Run(ctx context.Context) {
	backoff := minBackoff
	first := true

	for {
		err := l.listen(ctx, func() {
			backoff = minBackoff
			if !first {
				// Anything published while disconnected was missed.
				l.hub.PublishAll()
			}
			first = false
		})
		if ctx.Err() != nil {
			return
		}

		l.reportError(err)
		l.log.WithError(err).WithField("retry_in", backoff).Warn("Change listener disconnected")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (l *Listener) listen(ctx context.Context, connected func()) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return err
	}
	l.log.WithField("channel", l.channel).Info("Listening for changes")
	connected()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		var change Change
		if err := json.Unmarshal([]byte(n.Payload), &change); err != nil {
			l.reportError(err)
			l.log.WithError(err).WithField("payload", n.Payload).Warn("Ignoring malformed change notification")
			continue
		}

		for _, topic := range change.Topics() {
			l.hub.Publish(topic)
		}
	}
}

func (l *Listener) reportError(err error) {
	if l.OnError != nil && err != nil {
		l.OnError(err)
	}
}
