// Package store persists transactions, consumed offer snapshots, and the
// transactional outbox in PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"paywallet/internal/common/database"
	"paywallet/internal/common/money"
	"paywallet/internal/offers"
	"paywallet/internal/transactions"
	"paywallet/internal/transactions/domain"
)

// Store provides access to transaction records.
type Store struct {
	db     *database.DB
	logger *slog.Logger
}

// New creates a transaction store
func New(db *database.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

const txnColumns = `
	t.id, t.user_id, t.card_number, t.amount_minor, t.currency, t.fee_minor,
	t.status, t.created_at, t.updated_at,
	o.offer_id, o.amount_minor, o.currency, o.category, o.vendor,
	o.latitude, o.longitude, o.suggested_at, o.completed_at`

const txnFrom = `
	FROM transactions t
	JOIN payment_offers o ON o.offer_id = t.offer_id`

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var (
		t                       domain.Transaction
		amountMinor, feeMinor   int64
		currency                string
		offerAmountMinor        int64
		offerCurrency, category string
	)
	err := row.Scan(
		&t.ID, &t.UserID, &t.CardNumber, &amountMinor, &currency, &feeMinor,
		&t.Status, &t.CreatedAt, &t.UpdatedAt,
		&t.Offer.OfferID, &offerAmountMinor, &offerCurrency, &category,
		&t.Offer.Vendor, &t.Offer.Latitude, &t.Offer.Longitude,
		&t.Offer.SuggestedAt, &t.Offer.CompletedAt,
	)
	if err != nil {
		return domain.Transaction{}, err
	}
	t.Amount = money.New(amountMinor, money.Currency(currency))
	t.Fee = money.New(feeMinor, money.Currency(currency))
	t.Offer.Amount = money.New(offerAmountMinor, money.Currency(offerCurrency))
	t.Offer.Category = offers.Category(category)
	return t, nil
}

// Create persists a new PENDING transaction together with its offer
// snapshot in one database transaction.
func (s *Store) Create(ctx context.Context, txn domain.Transaction) error {
	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		// A cancelled or failed attempt leaves its snapshot behind and
		// the offer goes back to the cache, so a retry upserts.
		_, err := tx.Exec(ctx, `
			INSERT INTO payment_offers (
				offer_id, amount_minor, currency, category, vendor,
				latitude, longitude, suggested_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (offer_id) DO UPDATE SET
				amount_minor = EXCLUDED.amount_minor,
				currency     = EXCLUDED.currency,
				category     = EXCLUDED.category,
				vendor       = EXCLUDED.vendor,
				latitude     = EXCLUDED.latitude,
				longitude    = EXCLUDED.longitude,
				suggested_at = EXCLUDED.suggested_at,
				completed_at = NULL`,
			txn.Offer.OfferID,
			txn.Offer.Amount.AmountMinor,
			string(txn.Offer.Amount.Currency),
			string(txn.Offer.Category),
			txn.Offer.Vendor,
			txn.Offer.Latitude,
			txn.Offer.Longitude,
			txn.Offer.SuggestedAt,
		)
		if err != nil {
			return fmt.Errorf("upserting offer snapshot: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO transactions (
				id, user_id, card_number, offer_id,
				amount_minor, currency, fee_minor, status, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			txn.ID,
			txn.UserID,
			txn.CardNumber,
			txn.Offer.OfferID,
			txn.Amount.AmountMinor,
			string(txn.Amount.Currency),
			txn.Fee.AmountMinor,
			string(txn.Status),
			txn.CreatedAt,
			txn.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting transaction: %w", err)
		}
		return nil
	})
}

// GetByID loads a transaction by its ID.
func (s *Store) GetByID(ctx context.Context, id string) (domain.Transaction, error) {
	row := s.db.QueryRow(ctx, `SELECT`+txnColumns+txnFrom+` WHERE t.id = $1`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Transaction{}, database.ErrNotFound
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("loading transaction %s: %w", id, err)
	}
	return txn, nil
}

// FindPendingByUserAndOffer locates the PENDING transaction an OTP
// confirmation refers to.
func (s *Store) FindPendingByUserAndOffer(ctx context.Context, userID, offerID string) (domain.Transaction, error) {
	row := s.db.QueryRow(ctx, `
		SELECT`+txnColumns+txnFrom+`
		WHERE t.user_id = $1 AND t.offer_id = $2 AND t.status = 'PENDING'
		ORDER BY t.created_at DESC
		LIMIT 1`,
		userID, offerID)
	txn, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Transaction{}, database.ErrNotFound
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("finding pending transaction: %w", err)
	}
	return txn, nil
}

// Transition atomically moves a PENDING transaction to the given
// terminal status and stages the event in the outbox within the same
// database transaction. Returns database.ErrNotFound when the row is
// not PENDING anymore, which makes double finalization safe.
func (s *Store) Transition(ctx context.Context, txnID string, to domain.Status, event transactions.Event) error {
	if !to.IsTerminal() {
		return fmt.Errorf("%w: PENDING -> %s", domain.ErrInvalidTransition, to)
	}

	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		var offerID string
		err := tx.QueryRow(ctx, `
			UPDATE transactions
			SET status = $2, updated_at = now()
			WHERE id = $1 AND status = 'PENDING'
			RETURNING offer_id`,
			txnID, string(to)).Scan(&offerID)
		if errors.Is(err, pgx.ErrNoRows) {
			return database.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("transitioning transaction %s: %w", txnID, err)
		}

		if to == domain.StatusConfirmed {
			_, err = tx.Exec(ctx, `
				UPDATE payment_offers SET completed_at = now()
				WHERE offer_id = $1`,
				offerID)
			if err != nil {
				return fmt.Errorf("completing offer snapshot: %w", err)
			}
		}

		if err := stageEvent(ctx, tx, event); err != nil {
			return err
		}
		return nil
	})
}

// ListExpiredPending returns PENDING transactions created before the
// cutoff, oldest first.
func (s *Store) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]domain.Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT`+txnColumns+txnFrom+`
		WHERE t.status = 'PENDING' AND t.created_at < $1
		ORDER BY t.created_at ASC
		LIMIT $2`,
		cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("listing expired transactions: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

// Recent returns the newest confirmed transactions for a card.
func (s *Store) Recent(ctx context.Context, cardNumber string, count int) ([]domain.Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT`+txnColumns+txnFrom+`
		WHERE t.card_number = $1 AND t.status = 'CONFIRMED'
		ORDER BY t.created_at DESC
		LIMIT $2`,
		cardNumber, count)
	if err != nil {
		return nil, fmt.Errorf("listing recent transactions: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

// LastUsedCards returns a user's distinct card numbers ordered by most
// recent confirmed use.
func (s *Store) LastUsedCards(ctx context.Context, userID string, offset, limit int) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT card_number
		FROM transactions
		WHERE user_id = $1 AND status = 'CONFIRMED'
		GROUP BY card_number
		ORDER BY max(created_at) DESC
		OFFSET $2 LIMIT $3`,
		userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("listing last used cards: %w", err)
	}
	defer rows.Close()

	var cards []string
	for rows.Next() {
		var card string
		if err := rows.Scan(&card); err != nil {
			return nil, fmt.Errorf("scanning card number: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// ByCardAndPeriod returns confirmed transactions for a card between two
// instants, oldest first.
func (s *Store) ByCardAndPeriod(ctx context.Context, cardNumber string, from, to time.Time) ([]domain.Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT`+txnColumns+txnFrom+`
		WHERE t.card_number = $1 AND t.status = 'CONFIRMED'
		  AND t.created_at >= $2 AND t.created_at < $3
		ORDER BY t.created_at ASC`,
		cardNumber, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing transactions for period: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

// FirstTransactionDate returns the creation time of the card's earliest
// confirmed transaction, or database.ErrNotFound if the card has none.
func (s *Store) FirstTransactionDate(ctx context.Context, cardNumber string) (time.Time, error) {
	var first *time.Time
	err := s.db.QueryRow(ctx, `
		SELECT min(created_at)
		FROM transactions
		WHERE card_number = $1 AND status = 'CONFIRMED'`,
		cardNumber).Scan(&first)
	if err != nil {
		return time.Time{}, fmt.Errorf("finding first transaction date: %w", err)
	}
	if first == nil {
		return time.Time{}, database.ErrNotFound
	}
	return *first, nil
}

func collect(rows pgx.Rows) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

func stageEvent(ctx context.Context, tx pgx.Tx, event transactions.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding outbox payload: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, event_type, aggregate_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.Type, event.TransactionID, payload, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("staging outbox event: %w", err)
	}
	return nil
}
