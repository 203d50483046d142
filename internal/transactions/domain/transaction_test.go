package domain

import (
	"errors"
	"testing"
	"time"

	"paywallet/internal/common/money"
	"paywallet/internal/offers"
)

func testOffer() offers.PaymentOffer {
	return offers.PaymentOffer{
		ID:          "offer-1",
		Amount:      money.New(50000, money.RUB),
		Category:    offers.CategorySupermarkets,
		Vendor:      "grocery store",
		SuggestedAt: time.Now().UTC(),
	}
}

func TestNewTransaction(t *testing.T) {
	charged := money.New(50000, money.RUB)
	fee := money.Zero(money.RUB)

	txn := New("user-1", "4111111111111111", testOffer(), charged, fee)

	if txn.ID == "" {
		t.Fatal("expected generated transaction ID")
	}
	if txn.Status != StatusPending {
		t.Fatalf("status = %s, want PENDING", txn.Status)
	}
	if txn.Amount.AmountMinor != -50000 {
		t.Errorf("spending amount = %d, want -50000", txn.Amount.AmountMinor)
	}
	if txn.Offer.OfferID != "offer-1" {
		t.Errorf("offer snapshot id = %s, want offer-1", txn.Offer.OfferID)
	}
	if txn.Offer.CompletedAt != nil {
		t.Error("new transaction must not have a completed offer")
	}
}

func TestNewTransactionIncomeSign(t *testing.T) {
	offer := testOffer()
	offer.Category = offers.CategoryIncomingTransfer

	txn := New("user-1", "4111111111111111", offer, money.New(50000, money.RUB), money.Zero(money.RUB))

	if txn.Amount.AmountMinor != 50000 {
		t.Errorf("income amount = %d, want 50000", txn.Amount.AmountMinor)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusPending, false},
		{StatusConfirmed, StatusCancelled, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusFailed, StatusPending, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTransitionConfirm(t *testing.T) {
	txn := New("user-1", "4111111111111111", testOffer(), money.New(50000, money.RUB), money.Zero(money.RUB))

	if err := txn.Transition(StatusConfirmed); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if txn.Status != StatusConfirmed {
		t.Errorf("status = %s, want CONFIRMED", txn.Status)
	}
	if txn.Offer.CompletedAt == nil {
		t.Error("confirm must set the offer completion time")
	}

	if err := txn.Transition(StatusCancelled); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second transition error = %v, want ErrInvalidTransition", err)
	}
}

func TestTransitionCancelKeepsOfferIncomplete(t *testing.T) {
	txn := New("user-1", "4111111111111111", testOffer(), money.New(50000, money.RUB), money.Zero(money.RUB))

	if err := txn.Transition(StatusCancelled); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if txn.Offer.CompletedAt != nil {
		t.Error("cancelled transaction must not complete the offer")
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Now().UTC()
	txn := New("user-1", "4111111111111111", testOffer(), money.New(50000, money.RUB), money.Zero(money.RUB))
	txn.CreatedAt = now.Add(-20 * time.Minute)

	if !txn.IsExpired(15*time.Minute, now) {
		t.Error("old pending transaction should be expired")
	}

	txn.Status = StatusConfirmed
	if txn.IsExpired(15*time.Minute, now) {
		t.Error("confirmed transaction is never expired")
	}

	txn.Status = StatusPending
	txn.CreatedAt = now.Add(-time.Minute)
	if txn.IsExpired(15*time.Minute, now) {
		t.Error("fresh pending transaction is not expired")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	offer := testOffer()
	offer.Location = offers.Location{Latitude: 55.75, Longitude: 37.61}

	got := SnapshotOf(offer).Offer()
	if got != offer {
		t.Errorf("snapshot round trip = %+v, want %+v", got, offer)
	}
}
