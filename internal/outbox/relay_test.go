package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"paywallet/internal/transactions/store"
)

// fakeDrainer mirrors the store's drain semantics: rows are removed only
// after a successful publish, and the batch stops at the first failure.
type fakeDrainer struct {
	rows []store.OutboxRow
}

func (f *fakeDrainer) DrainOutbox(ctx context.Context, limit int, publish func(ctx context.Context, row store.OutboxRow) error) (int, error) {
	delivered := 0
	for _, row := range f.rows {
		if delivered >= limit {
			break
		}
		if err := publish(ctx, row); err != nil {
			break
		}
		delivered++
	}
	f.rows = f.rows[delivered:]
	return delivered, nil
}

type published struct {
	subject string
	msgID   string
	payload []byte
}

type fakePublisher struct {
	messages []published
	failOn   string
}

func (f *fakePublisher) Publish(_ context.Context, subject, msgID string, payload []byte) error {
	if f.failOn != "" && msgID == f.failOn {
		return errors.New("broker unavailable")
	}
	f.messages = append(f.messages, published{subject: subject, msgID: msgID, payload: payload})
	return nil
}

func testRows() []store.OutboxRow {
	now := time.Now().UTC()
	return []store.OutboxRow{
		{ID: 1, EventID: "evt-1", EventType: "transaction.confirmed", AggregateID: "txn-1", Payload: []byte(`{"n":1}`), CreatedAt: now},
		{ID: 2, EventID: "evt-2", EventType: "transaction.cancelled", AggregateID: "txn-2", Payload: []byte(`{"n":2}`), CreatedAt: now},
		{ID: 3, EventID: "evt-3", EventType: "transaction.failed", AggregateID: "txn-3", Payload: []byte(`{"n":3}`), CreatedAt: now},
	}
}

func testConfig() Config {
	return Config{Interval: time.Second, BatchSize: 10, SubjectPrefix: "transactions.events"}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRelayDeliversBatch(t *testing.T) {
	drainer := &fakeDrainer{rows: testRows()}
	publisher := &fakePublisher{}
	relay := NewRelay(drainer, publisher, testConfig(), testLogger())

	if err := relay.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(publisher.messages) != 3 {
		t.Fatalf("published = %d, want 3", len(publisher.messages))
	}
	if got := publisher.messages[0].subject; got != "transactions.events.txn-1" {
		t.Errorf("subject = %s, want transactions.events.txn-1", got)
	}
	if got := publisher.messages[0].msgID; got != "evt-1" {
		t.Errorf("msg id = %s, want the event id for dedupe", got)
	}
	if len(drainer.rows) != 0 {
		t.Errorf("staged rows left = %d, want 0", len(drainer.rows))
	}
}

func TestRelayLeavesUndeliveredStaged(t *testing.T) {
	drainer := &fakeDrainer{rows: testRows()}
	publisher := &fakePublisher{failOn: "evt-2"}
	relay := NewRelay(drainer, publisher, testConfig(), testLogger())

	if err := relay.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(publisher.messages) != 1 {
		t.Fatalf("published = %d, want 1 before the failure", len(publisher.messages))
	}
	if len(drainer.rows) != 2 {
		t.Errorf("staged rows left = %d, want 2 for the next pass", len(drainer.rows))
	}
	if drainer.rows[0].EventID != "evt-2" {
		t.Errorf("next staged event = %s, want evt-2 to preserve order", drainer.rows[0].EventID)
	}
}

func TestRelayHonorsBatchSize(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 2
	drainer := &fakeDrainer{rows: testRows()}
	publisher := &fakePublisher{}
	relay := NewRelay(drainer, publisher, cfg, testLogger())

	if err := relay.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(publisher.messages) != 2 {
		t.Errorf("published = %d, want batch size 2", len(publisher.messages))
	}
}
