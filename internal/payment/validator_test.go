package payment

import (
	"errors"
	"testing"
	"time"

	"paywallet/internal/common/money"
	"paywallet/internal/providers/cardsvc"
)

func activeCard() cardsvc.CardInfo {
	return cardsvc.CardInfo{
		Number:  "4111111111111111",
		OwnerID: "user-1",
		Status:  cardsvc.StatusActive,
		CVV:     "123",
		Expiry:  time.Date(2030, time.December, 1, 0, 0, 0, 0, time.UTC),
		Balance: money.New(1000000, money.RUB),
	}
}

func validatorAt(now time.Time) *Validator {
	v := NewValidator()
	v.now = func() time.Time { return now }
	return v
}

func TestValidatorChecks(t *testing.T) {
	v := NewValidator()
	amount := money.New(50000, money.RUB)

	tests := []struct {
		name    string
		mutate  func(*cardsvc.CardInfo)
		userID  string
		cvv     string
		wantErr error
	}{
		{
			name:   "valid card passes",
			mutate: func(c *cardsvc.CardInfo) {},
			userID: "user-1", cvv: "123",
			wantErr: nil,
		},
		{
			name:   "foreign card",
			mutate: func(c *cardsvc.CardInfo) {},
			userID: "user-2", cvv: "123",
			wantErr: ErrAccessDenied,
		},
		{
			name:   "wrong cvv",
			mutate: func(c *cardsvc.CardInfo) {},
			userID: "user-1", cvv: "999",
			wantErr: ErrInvalidCVV,
		},
		{
			name:   "blocked card",
			mutate: func(c *cardsvc.CardInfo) { c.Status = cardsvc.StatusBlocked },
			userID: "user-1", cvv: "123",
			wantErr: ErrCardBlocked,
		},
		{
			name:   "frozen card",
			mutate: func(c *cardsvc.CardInfo) { c.Status = cardsvc.StatusFrozen },
			userID: "user-1", cvv: "123",
			wantErr: ErrCardFrozen,
		},
		{
			name:   "expired status",
			mutate: func(c *cardsvc.CardInfo) { c.Status = cardsvc.StatusExpired },
			userID: "user-1", cvv: "123",
			wantErr: ErrCardExpired,
		},
		{
			name: "expiry month passed",
			mutate: func(c *cardsvc.CardInfo) {
				c.Expiry = time.Now().UTC().AddDate(0, -2, 0)
			},
			userID: "user-1", cvv: "123",
			wantErr: ErrCardExpired,
		},
		{
			name:   "insufficient balance",
			mutate: func(c *cardsvc.CardInfo) { c.Balance = money.New(100, money.RUB) },
			userID: "user-1", cvv: "123",
			wantErr: ErrInsufficientBalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := activeCard()
			tt.mutate(&card)

			err := v.Validate(card, tt.userID, tt.cvv, amount)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatorExpiryMonthBoundary(t *testing.T) {
	card := activeCard()
	card.Expiry = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	amount := money.New(50000, money.RUB)

	// Valid through the last instant of the expiry month.
	v := validatorAt(time.Date(2026, time.March, 31, 23, 59, 59, 0, time.UTC))
	if err := v.Validate(card, "user-1", "123", amount); err != nil {
		t.Errorf("Validate() on last day of expiry month = %v, want nil", err)
	}

	// Expired from the first instant of the following month.
	v = validatorAt(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC))
	if err := v.Validate(card, "user-1", "123", amount); !errors.Is(err, ErrCardExpired) {
		t.Errorf("Validate() after expiry month = %v, want ErrCardExpired", err)
	}
}

func TestValidatorCheckOrder(t *testing.T) {
	v := NewValidator()
	amount := money.New(50000, money.RUB)

	// Ownership is checked before CVV.
	card := activeCard()
	if err := v.Validate(card, "user-2", "999", amount); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("error = %v, want ErrAccessDenied first", err)
	}

	// CVV is checked before card status.
	card = activeCard()
	card.Status = cardsvc.StatusBlocked
	if err := v.Validate(card, "user-1", "999", amount); !errors.Is(err, ErrInvalidCVV) {
		t.Errorf("error = %v, want ErrInvalidCVV before status", err)
	}

	// Status is checked before balance.
	card = activeCard()
	card.Status = cardsvc.StatusFrozen
	card.Balance = money.New(1, money.RUB)
	if err := v.Validate(card, "user-1", "123", amount); !errors.Is(err, ErrCardFrozen) {
		t.Errorf("error = %v, want ErrCardFrozen before balance", err)
	}

	// Balance compares against the offer amount, not a fee-inclusive
	// charge: a balance matching the amount exactly passes.
	card = activeCard()
	card.Balance = money.New(50000, money.RUB)
	if err := v.Validate(card, "user-1", "123", money.New(50000, money.RUB)); err != nil {
		t.Errorf("error = %v, want nil for balance equal to amount", err)
	}
	if err := v.Validate(card, "user-1", "123", money.New(50001, money.RUB)); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("error = %v, want ErrInsufficientBalance", err)
	}

	// Income amounts are negated by category downstream; validation uses
	// the absolute value.
	card = activeCard()
	card.Balance = money.New(50000, money.RUB)
	if err := v.Validate(card, "user-1", "123", money.New(-60000, money.RUB)); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("error = %v, want ErrInsufficientBalance for abs amount", err)
	}
}
