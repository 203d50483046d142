package transactions

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"paywallet/internal/common/money"
	"paywallet/internal/transactions/domain"
)

// Event types published on the transactions stream.
const (
	EventTransactionConfirmed = "transaction.confirmed"
	EventTransactionCancelled = "transaction.cancelled"
	EventTransactionFailed    = "transaction.failed"
)

// Event is the envelope staged in the outbox and published to the
// broker. The transaction ID is the aggregate: consumers key ordering
// and idempotency on it together with the event ID.
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	TransactionID string          `json:"transaction_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Data          json.RawMessage `json:"data"`
}

// TransactionEventData is the payload shared by all lifecycle events.
type TransactionEventData struct {
	UserID     string      `json:"user_id"`
	CardNumber string      `json:"card_number"`
	OfferID    string      `json:"offer_id"`
	Amount     money.Money `json:"amount"`
	Fee        money.Money `json:"fee"`
	Category   string      `json:"category"`
	Status     string      `json:"status"`
	Reason     string      `json:"reason,omitempty"`
}

// NewEvent builds an event envelope for a transaction transition.
func NewEvent(eventType string, txn domain.Transaction, reason string) (Event, error) {
	data, err := json.Marshal(TransactionEventData{
		UserID:     txn.UserID,
		CardNumber: txn.CardNumber,
		OfferID:    txn.Offer.OfferID,
		Amount:     txn.Amount,
		Fee:        txn.Fee,
		Category:   string(txn.Offer.Category),
		Status:     string(txn.Status),
		Reason:     reason,
	})
	if err != nil {
		return Event{}, fmt.Errorf("encoding event data: %w", err)
	}

	return Event{
		ID:            ulid.Make().String(),
		Type:          eventType,
		TransactionID: txn.ID,
		OccurredAt:    time.Now().UTC(),
		Data:          data,
	}, nil
}

// Subject returns the broker subject for the event. The transaction ID
// token keeps per-transaction ordering within the stream.
func (e Event) Subject(prefix string) string {
	return prefix + "." + e.TransactionID
}
