// Package reaper cancels transactions stuck in PENDING past their
// deadline.
package reaper

import (
	"context"
	"log/slog"
	"time"
)

// Config holds reaper configuration
type Config struct {
	Interval  time.Duration `envconfig:"REAPER_INTERVAL" default:"1m"`
	Deadline  time.Duration `envconfig:"REAPER_DEADLINE" default:"15m"`
	BatchSize int           `envconfig:"REAPER_BATCH_SIZE" default:"100"`
}

// Ledger is the slice of the transaction service the reaper uses.
type Ledger interface {
	ReapExpired(ctx context.Context, deadline time.Duration, limit int) (int, error)
}

// Reaper sweeps expired pending transactions on a fixed interval. Each
// cancellation goes through the ledger, so it is compare-and-set against
// concurrent finalization and stages the cancelled event like any other.
type Reaper struct {
	ledger Ledger
	cfg    Config
	logger *slog.Logger
}

// New creates a transaction reaper
func New(ledger Ledger, cfg Config, logger *slog.Logger) *Reaper {
	return &Reaper{
		ledger: ledger,
		cfg:    cfg,
		logger: logger,
	}
}

// Name implements scheduler.Job
func (r *Reaper) Name() string { return "transaction-reaper" }

// Interval returns the sweep interval.
func (r *Reaper) Interval() time.Duration { return r.cfg.Interval }

// Run sweeps one batch of expired pending transactions.
func (r *Reaper) Run(ctx context.Context) error {
	reaped, err := r.ledger.ReapExpired(ctx, r.cfg.Deadline, r.cfg.BatchSize)
	if err != nil {
		return err
	}
	if reaped > 0 {
		r.logger.Info("expired transactions cancelled", "count", reaped)
	}
	return nil
}
