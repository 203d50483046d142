// Package transactions owns the transaction ledger: creation, terminal
// transitions with outbox staging, and reporting over confirmed history.
package transactions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"paywallet/internal/common/database"
	"paywallet/internal/common/money"
	"paywallet/internal/offers"
	"paywallet/internal/providers/cardsvc"
	"paywallet/internal/transactions/domain"
)

var (
	// ErrTransactionNotFound covers both a missing transaction and one
	// that already left PENDING: a second finalize attempt sees the same
	// error as a finalize of an unknown ID.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrPaymentDeclined means the card service gave a final refusal and
	// the transaction was moved to FAILED.
	ErrPaymentDeclined = errors.New("payment declined")

	// ErrIncorrectTimePeriod is returned for report ranges where from is
	// after to, or before the card's first transaction.
	ErrIncorrectTimePeriod = errors.New("incorrect time period")
)

// Store is the persistence surface the ledger needs.
type Store interface {
	Create(ctx context.Context, txn domain.Transaction) error
	GetByID(ctx context.Context, id string) (domain.Transaction, error)
	FindPendingByUserAndOffer(ctx context.Context, userID, offerID string) (domain.Transaction, error)
	Transition(ctx context.Context, txnID string, to domain.Status, event Event) error
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]domain.Transaction, error)
	Recent(ctx context.Context, cardNumber string, count int) ([]domain.Transaction, error)
	LastUsedCards(ctx context.Context, userID string, offset, limit int) ([]string, error)
	ByCardAndPeriod(ctx context.Context, cardNumber string, from, to time.Time) ([]domain.Transaction, error)
	FirstTransactionDate(ctx context.Context, cardNumber string) (time.Time, error)
}

// OfferCache is the slice of the offer store the ledger touches: evict
// on confirm, return on cancel or failure.
type OfferCache interface {
	Remove(ctx context.Context, offerID string) error
	Return(ctx context.Context, offer offers.PaymentOffer) error
}

// CardDebitor charges a card on behalf of a user. Implemented by the
// card service client.
type CardDebitor interface {
	Debit(ctx context.Context, cardNumber, userID string, amount money.Money) error
}

// Service is the transaction ledger.
type Service struct {
	store      Store
	offerCache OfferCache
	cards      CardDebitor
	logger     *slog.Logger
}

// NewService creates the transaction ledger
func NewService(store Store, offerCache OfferCache, cards CardDebitor, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		offerCache: offerCache,
		cards:      cards,
		logger:     logger,
	}
}

// Create records a PENDING transaction for an accepted offer. charged is
// the fee-inclusive absolute amount; the sign applied to the stored
// amount comes from the offer category.
func (s *Service) Create(ctx context.Context, userID, cardNumber string, offer offers.PaymentOffer, charged, fee money.Money) (domain.Transaction, error) {
	txn := domain.New(userID, cardNumber, offer, charged, fee)
	if err := s.store.Create(ctx, txn); err != nil {
		return domain.Transaction{}, fmt.Errorf("creating transaction: %w", err)
	}

	s.logger.Info("transaction created",
		"transaction_id", txn.ID,
		"user_id", userID,
		"offer_id", offer.ID,
		"amount", txn.Amount.String(),
		"fee", txn.Fee.String(),
	)
	return txn, nil
}

// GetInfo loads a transaction by ID.
func (s *Service) GetInfo(ctx context.Context, txnID string) (domain.Transaction, error) {
	txn, err := s.store.GetByID(ctx, txnID)
	if database.IsNotFound(err) {
		return domain.Transaction{}, ErrTransactionNotFound
	}
	if err != nil {
		return domain.Transaction{}, err
	}
	return txn, nil
}

// Finalize debits the card and confirms the transaction. A final decline
// fails the transaction; an unknown debit outcome leaves it PENDING so a
// retry or the reaper resolves it later.
func (s *Service) Finalize(ctx context.Context, txnID string) (domain.Transaction, error) {
	txn, err := s.store.GetByID(ctx, txnID)
	if database.IsNotFound(err) {
		return domain.Transaction{}, ErrTransactionNotFound
	}
	if err != nil {
		return domain.Transaction{}, err
	}
	return s.finalize(ctx, txn)
}

// FinalizeByUserAndOffer confirms the pending transaction an OTP
// callback refers to.
func (s *Service) FinalizeByUserAndOffer(ctx context.Context, userID, offerID string) (domain.Transaction, error) {
	txn, err := s.store.FindPendingByUserAndOffer(ctx, userID, offerID)
	if database.IsNotFound(err) {
		return domain.Transaction{}, ErrTransactionNotFound
	}
	if err != nil {
		return domain.Transaction{}, err
	}
	return s.finalize(ctx, txn)
}

func (s *Service) finalize(ctx context.Context, txn domain.Transaction) (domain.Transaction, error) {
	if txn.Status != domain.StatusPending {
		return domain.Transaction{}, ErrTransactionNotFound
	}

	if err := s.cards.Debit(ctx, txn.CardNumber, txn.UserID, txn.Amount.Abs()); err != nil {
		if errors.Is(err, cardsvc.ErrDeclined) || errors.Is(err, cardsvc.ErrCardNotFound) {
			if _, failErr := s.Fail(ctx, txn.ID, err.Error()); failErr != nil {
				s.logger.Error("failed to fail declined transaction",
					"transaction_id", txn.ID,
					"error", failErr,
				)
			}
			return domain.Transaction{}, fmt.Errorf("%w: %v", ErrPaymentDeclined, err)
		}
		// Outcome unknown: keep the transaction PENDING.
		return domain.Transaction{}, fmt.Errorf("debiting card: %w", err)
	}

	if err := txn.Transition(domain.StatusConfirmed); err != nil {
		return domain.Transaction{}, err
	}
	event, err := NewEvent(EventTransactionConfirmed, txn, "")
	if err != nil {
		return domain.Transaction{}, err
	}

	if err := s.store.Transition(ctx, txn.ID, domain.StatusConfirmed, event); err != nil {
		if database.IsNotFound(err) {
			// Lost the race to another finalizer after the debit went
			// through. The winner owns the confirmed state.
			return domain.Transaction{}, ErrTransactionNotFound
		}
		return domain.Transaction{}, fmt.Errorf("confirming transaction %s: %w", txn.ID, err)
	}

	if err := s.offerCache.Remove(ctx, txn.Offer.OfferID); err != nil {
		s.logger.Warn("failed to evict confirmed offer, TTL will expire it",
			"offer_id", txn.Offer.OfferID,
			"error", err,
		)
	}

	s.logger.Info("transaction confirmed",
		"transaction_id", txn.ID,
		"user_id", txn.UserID,
		"amount", txn.Amount.String(),
	)
	return txn, nil
}

// Cancel moves a PENDING transaction to CANCELLED and returns the offer
// to the cache so the user can act on it again.
func (s *Service) Cancel(ctx context.Context, txnID, reason string) (domain.Transaction, error) {
	return s.terminate(ctx, txnID, domain.StatusCancelled, EventTransactionCancelled, reason)
}

// Fail moves a PENDING transaction to FAILED after a final decline and
// returns the offer to the cache.
func (s *Service) Fail(ctx context.Context, txnID, reason string) (domain.Transaction, error) {
	return s.terminate(ctx, txnID, domain.StatusFailed, EventTransactionFailed, reason)
}

func (s *Service) terminate(ctx context.Context, txnID string, to domain.Status, eventType, reason string) (domain.Transaction, error) {
	txn, err := s.store.GetByID(ctx, txnID)
	if database.IsNotFound(err) {
		return domain.Transaction{}, ErrTransactionNotFound
	}
	if err != nil {
		return domain.Transaction{}, err
	}
	if err := txn.Transition(to); err != nil {
		return domain.Transaction{}, ErrTransactionNotFound
	}

	event, err := NewEvent(eventType, txn, reason)
	if err != nil {
		return domain.Transaction{}, err
	}
	if err := s.store.Transition(ctx, txn.ID, to, event); err != nil {
		if database.IsNotFound(err) {
			return domain.Transaction{}, ErrTransactionNotFound
		}
		return domain.Transaction{}, fmt.Errorf("terminating transaction %s: %w", txn.ID, err)
	}

	if err := s.offerCache.Return(ctx, txn.Offer.Offer()); err != nil {
		s.logger.Warn("failed to return offer to cache",
			"offer_id", txn.Offer.OfferID,
			"error", err,
		)
	}

	s.logger.Info("transaction terminated",
		"transaction_id", txn.ID,
		"status", string(to),
		"reason", reason,
	)
	return txn, nil
}

// ReapExpired cancels PENDING transactions older than deadline. Returns
// the number of transactions reaped.
func (s *Service) ReapExpired(ctx context.Context, deadline time.Duration, limit int) (int, error) {
	cutoff := time.Now().UTC().Add(-deadline)
	expired, err := s.store.ListExpiredPending(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, txn := range expired {
		if _, err := s.Cancel(ctx, txn.ID, "pending deadline exceeded"); err != nil {
			if errors.Is(err, ErrTransactionNotFound) {
				// Finalized concurrently, nothing to reap.
				continue
			}
			s.logger.Error("failed to reap transaction",
				"transaction_id", txn.ID,
				"error", err,
			)
			continue
		}
		reaped++
	}
	return reaped, nil
}

// Recent returns the newest confirmed transactions for a card.
func (s *Service) Recent(ctx context.Context, cardNumber string, count int) ([]domain.Transaction, error) {
	return s.store.Recent(ctx, cardNumber, count)
}

// LastUsedCards returns a user's card numbers ordered by most recent use.
func (s *Service) LastUsedCards(ctx context.Context, userID string, offset, limit int) ([]string, error) {
	return s.store.LastUsedCards(ctx, userID, offset, limit)
}
