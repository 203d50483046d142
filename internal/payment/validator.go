package payment

import (
	"errors"
	"fmt"
	"time"

	"paywallet/internal/common/money"
	"paywallet/internal/providers/cardsvc"
)

// Validation failures in check order. The first violated check wins and
// later checks are not evaluated.
var (
	ErrCardNotFound        = errors.New("card not found")
	ErrAccessDenied        = errors.New("card does not belong to the user")
	ErrInvalidCVV          = errors.New("invalid cvv")
	ErrCardBlocked         = errors.New("card is blocked")
	ErrCardFrozen          = errors.New("card is frozen")
	ErrCardExpired         = errors.New("card is expired")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Validator runs the payment checks against a card record in a fixed
// order: ownership, CVV, card status, balance. Existence is established
// by the card lookup before validation.
type Validator struct {
	now func() time.Time
}

// NewValidator creates a payment validator
func NewValidator() *Validator {
	return &Validator{now: time.Now}
}

// Validate checks that the card may be charged for the offer amount.
// The fee is applied after validation, so the balance is compared
// against the raw amount.
func (v *Validator) Validate(card cardsvc.CardInfo, userID, cvv string, amount money.Money) error {
	if card.OwnerID != userID {
		return ErrAccessDenied
	}
	if card.CVV != cvv {
		return ErrInvalidCVV
	}

	switch card.Status {
	case cardsvc.StatusBlocked:
		return ErrCardBlocked
	case cardsvc.StatusFrozen:
		return ErrCardFrozen
	case cardsvc.StatusExpired:
		return ErrCardExpired
	case cardsvc.StatusActive:
	default:
		return fmt.Errorf("unknown card status %q", card.Status)
	}
	if expiredByMonth(card.Expiry, v.now().UTC()) {
		return ErrCardExpired
	}

	if card.Balance.LessThan(amount.Abs()) {
		return ErrInsufficientBalance
	}
	return nil
}

// expiredByMonth reports whether the card's expiry month has fully
// passed. A card is valid through the last day of its expiry month.
func expiredByMonth(expiry, now time.Time) bool {
	endOfMonth := time.Date(expiry.Year(), expiry.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	return !now.Before(endOfMonth)
}
