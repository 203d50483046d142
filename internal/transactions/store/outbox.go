package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// OutboxRow is a staged event awaiting delivery to the broker.
type OutboxRow struct {
	ID          int64
	EventID     string
	EventType   string
	AggregateID string
	Payload     []byte
	CreatedAt   time.Time
}

// DrainOutbox claims up to limit staged events in creation order and
// invokes publish for each while holding the row locks. Rows are deleted
// only after publish returns nil; a publish failure stops the batch and
// leaves the remaining rows staged for the next pass. SKIP LOCKED lets
// concurrent drainers work disjoint batches.
func (s *Store) DrainOutbox(ctx context.Context, limit int, publish func(ctx context.Context, row OutboxRow) error) (int, error) {
	var delivered int

	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, event_id, event_type, aggregate_id, payload, created_at
			FROM outbox_events
			ORDER BY created_at ASC, id ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED`,
			limit)
		if err != nil {
			return fmt.Errorf("claiming outbox batch: %w", err)
		}

		var batch []OutboxRow
		for rows.Next() {
			var row OutboxRow
			if err := rows.Scan(&row.ID, &row.EventID, &row.EventType, &row.AggregateID, &row.Payload, &row.CreatedAt); err != nil {
				rows.Close()
				return fmt.Errorf("scanning outbox row: %w", err)
			}
			batch = append(batch, row)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("reading outbox batch: %w", err)
		}

		for _, row := range batch {
			if err := publish(ctx, row); err != nil {
				// Stop at the first failure so per-aggregate order
				// is preserved on the next pass.
				s.logger.Warn("outbox publish failed, leaving event staged",
					"outbox_id", row.ID,
					"event_id", row.EventID,
					"event_type", row.EventType,
					"error", err,
				)
				break
			}

			if _, err := tx.Exec(ctx, `DELETE FROM outbox_events WHERE id = $1`, row.ID); err != nil {
				return fmt.Errorf("deleting delivered outbox row %d: %w", row.ID, err)
			}
			delivered++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return delivered, nil
}

// OutboxDepth returns the number of staged events, used by health and
// logging.
func (s *Store) OutboxDepth(ctx context.Context) (int64, error) {
	var depth int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM outbox_events`).Scan(&depth); err != nil {
		return 0, fmt.Errorf("counting outbox events: %w", err)
	}
	return depth, nil
}
