// Package outbox delivers staged transaction events to the broker.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"paywallet/internal/transactions/store"
)

// Config holds outbox relay configuration
type Config struct {
	Interval      time.Duration `envconfig:"OUTBOX_INTERVAL" default:"1s"`
	BatchSize     int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
	SubjectPrefix string        `envconfig:"OUTBOX_SUBJECT_PREFIX" default:"transactions.events"`
}

// Drainer claims staged events and deletes the delivered ones.
type Drainer interface {
	DrainOutbox(ctx context.Context, limit int, publish func(ctx context.Context, row store.OutboxRow) error) (int, error)
}

// Publisher sends a message and returns after the broker acknowledges
// it.
type Publisher interface {
	Publish(ctx context.Context, subject, msgID string, payload []byte) error
}

// Relay drains the outbox to the broker on a fixed interval. Events are
// delivered at least once: a row is deleted only after the broker ack,
// and the event ID doubles as the dedupe key for redeliveries.
type Relay struct {
	store     Drainer
	publisher Publisher
	cfg       Config
	logger    *slog.Logger
}

// NewRelay creates an outbox relay
func NewRelay(drainer Drainer, publisher Publisher, cfg Config, logger *slog.Logger) *Relay {
	return &Relay{
		store:     drainer,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Name implements scheduler.Job
func (r *Relay) Name() string { return "outbox-relay" }

// Interval returns the drain interval.
func (r *Relay) Interval() time.Duration { return r.cfg.Interval }

// Run drains one batch of staged events.
func (r *Relay) Run(ctx context.Context) error {
	delivered, err := r.store.DrainOutbox(ctx, r.cfg.BatchSize, r.publish)
	if err != nil {
		return err
	}
	if delivered > 0 {
		r.logger.Debug("outbox batch delivered", "count", delivered)
	}
	return nil
}

func (r *Relay) publish(ctx context.Context, row store.OutboxRow) error {
	subject := r.cfg.SubjectPrefix + "." + row.AggregateID
	return r.publisher.Publish(ctx, subject, row.EventID, row.Payload)
}
