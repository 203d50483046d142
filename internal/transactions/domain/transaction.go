// Package domain defines the transaction aggregate and its state machine.
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"paywallet/internal/common/money"
	"paywallet/internal/offers"
)

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusFailed    Status = "FAILED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusCancelled || s == StatusFailed
}

// ErrInvalidTransition is returned when a status change violates the
// state machine: only PENDING transactions may move, and only to a
// terminal state.
var ErrInvalidTransition = errors.New("invalid status transition")

// CanTransition reports whether from → to is a legal move.
func CanTransition(from, to Status) bool {
	return from == StatusPending && to.IsTerminal()
}

// OfferSnapshot is the immutable copy of the payment offer taken at
// initiation time. The cache entry is ephemeral; the snapshot is what
// the transaction record and reporting are built on.
type OfferSnapshot struct {
	OfferID     string          `json:"offer_id"`
	Amount      money.Money     `json:"amount"`
	Category    offers.Category `json:"category"`
	Vendor      string          `json:"vendor"`
	Latitude    float64         `json:"latitude"`
	Longitude   float64         `json:"longitude"`
	SuggestedAt time.Time       `json:"suggested_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// SnapshotOf copies the cached offer into a durable snapshot.
func SnapshotOf(offer offers.PaymentOffer) OfferSnapshot {
	return OfferSnapshot{
		OfferID:     offer.ID,
		Amount:      offer.Amount,
		Category:    offer.Category,
		Vendor:      offer.Vendor,
		Latitude:    offer.Location.Latitude,
		Longitude:   offer.Location.Longitude,
		SuggestedAt: offer.SuggestedAt,
	}
}

// Offer reconstructs the cacheable offer from the snapshot, used when a
// cancelled or failed transaction returns the offer to the cache.
func (s OfferSnapshot) Offer() offers.PaymentOffer {
	return offers.PaymentOffer{
		ID:       s.OfferID,
		Amount:   s.Amount,
		Category: s.Category,
		Vendor:   s.Vendor,
		Location: offers.Location{
			Latitude:  s.Latitude,
			Longitude: s.Longitude,
		},
		SuggestedAt: s.SuggestedAt,
	}
}

// Transaction is a user's acceptance of a payment offer moving through
// the PENDING → CONFIRMED | CANCELLED | FAILED lifecycle. Amount is
// signed by category polarity and already includes the fee; Fee records
// the fee portion separately.
type Transaction struct {
	ID         string        `json:"id"`
	UserID     string        `json:"user_id"`
	CardNumber string        `json:"card_number"`
	Offer      OfferSnapshot `json:"offer"`
	Amount     money.Money   `json:"amount"`
	Fee        money.Money   `json:"fee"`
	Status     Status        `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// New creates a PENDING transaction for an accepted offer. charged is
// the fee-inclusive absolute amount; the stored amount is signed by the
// offer category's polarity.
func New(userID, cardNumber string, offer offers.PaymentOffer, charged, fee money.Money) Transaction {
	now := time.Now().UTC()
	return Transaction{
		ID:         ulid.Make().String(),
		UserID:     userID,
		CardNumber: cardNumber,
		Offer:      SnapshotOf(offer),
		Amount:     offer.Category.ApplySign(charged),
		Fee:        fee,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Transition moves the transaction to a terminal status. The persisted
// transition is compare-and-set in the store; this method keeps the
// in-memory copy honest and rejects illegal moves up front.
func (t *Transaction) Transition(to Status) error {
	if !CanTransition(t.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	now := time.Now().UTC()
	t.Status = to
	t.UpdatedAt = now
	if to == StatusConfirmed {
		t.Offer.CompletedAt = &now
	}
	return nil
}

// IsExpired reports whether a pending transaction has outlived the
// given deadline and is due for reaping.
func (t Transaction) IsExpired(deadline time.Duration, now time.Time) bool {
	return t.Status == StatusPending && now.Sub(t.CreatedAt) > deadline
}
