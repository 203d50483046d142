package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"paywallet/internal/common/money"
	"paywallet/internal/offers"
	"paywallet/internal/providers/cardsvc"
	"paywallet/internal/transactions/domain"
)

// OfferSource resolves offer IDs against the offer cache.
type OfferSource interface {
	Get(ctx context.Context, offerID string) (offers.PaymentOffer, error)
}

// CardLookup fetches card records from the card service.
type CardLookup interface {
	Lookup(ctx context.Context, cardNumber string) (cardsvc.CardInfo, error)
}

// OtpGate requests an OTP challenge for a pending payment.
type OtpGate interface {
	Generate(ctx context.Context, userID, offerID string) error
}

// Ledger is the slice of the transaction service the orchestrator
// drives.
type Ledger interface {
	Create(ctx context.Context, userID, cardNumber string, offer offers.PaymentOffer, charged, fee money.Money) (domain.Transaction, error)
	Finalize(ctx context.Context, txnID string) (domain.Transaction, error)
}

// Result is the outcome of processing a payment. When OtpRequired is
// set the transaction stays PENDING until the OTP service confirms.
type Result struct {
	Transaction domain.Transaction `json:"transaction"`
	OtpRequired bool               `json:"otp_required"`
	Message     string             `json:"message,omitempty"`
}

const otpMessage = "confirmation code sent, complete the payment with it"

// Orchestrator runs the payment pipeline for an accepted offer.
type Orchestrator struct {
	offers    OfferSource
	cards     CardLookup
	otp       OtpGate
	ledger    Ledger
	fees      *FeeCalculator
	validator *Validator
	logger    *slog.Logger
}

// NewOrchestrator creates a payment orchestrator
func NewOrchestrator(offerSource OfferSource, cards CardLookup, otp OtpGate, ledger Ledger, fees *FeeCalculator, validator *Validator, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		offers:    offerSource,
		cards:     cards,
		otp:       otp,
		ledger:    ledger,
		fees:      fees,
		validator: validator,
		logger:    logger,
	}
}

// ProcessPayment takes an offer through lookup, validation, fee
// application and transaction creation, then either finalizes
// immediately or parks the transaction behind an OTP challenge.
func (o *Orchestrator) ProcessPayment(ctx context.Context, userID, offerID, cardNumber, cvv string) (Result, error) {
	offer, err := o.offers.Get(ctx, offerID)
	if err != nil {
		return Result{}, err
	}

	card, err := o.cards.Lookup(ctx, cardNumber)
	if errors.Is(err, cardsvc.ErrCardNotFound) {
		return Result{}, ErrCardNotFound
	}
	if err != nil {
		return Result{}, fmt.Errorf("looking up card: %w", err)
	}

	if err := o.validator.Validate(card, userID, cvv, offer.Amount); err != nil {
		o.logger.Info("payment validation failed",
			"offer_id", offerID,
			"user_id", userID,
			"error", err,
		)
		return Result{}, err
	}

	charged, fee := o.fees.Apply(offer.Amount)

	txn, err := o.ledger.Create(ctx, userID, cardNumber, offer, charged, fee)
	if err != nil {
		return Result{}, err
	}

	if requiresOtp(card, offer.Amount) {
		if err := o.otp.Generate(ctx, userID, offerID); err != nil {
			// Transaction stays PENDING; the reaper cancels it if the
			// user never retries.
			return Result{}, fmt.Errorf("requesting otp: %w", err)
		}
		o.logger.Info("otp verification required",
			"transaction_id", txn.ID,
			"user_id", userID,
			"offer_id", offerID,
		)
		return Result{Transaction: txn, OtpRequired: true, Message: otpMessage}, nil
	}

	confirmed, err := o.ledger.Finalize(ctx, txn.ID)
	if err != nil {
		return Result{}, err
	}
	return Result{Transaction: confirmed}, nil
}

// requiresOtp applies the step-up policy: cards with a per-transaction
// limit need OTP confirmation when the offer amount exceeds it. The fee
// does not count against the limit.
func requiresOtp(card cardsvc.CardInfo, amount money.Money) bool {
	return card.PerTransactionLimit != nil && amount.Abs().GreaterThan(*card.PerTransactionLimit)
}
