// Package cardsvc is the typed HTTP client for the card service, which
// owns card records and balances.
package cardsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"paywallet/internal/common/money"
)

var (
	// ErrCardNotFound means the card service has no record of the card.
	ErrCardNotFound = errors.New("card not found")

	// ErrDeclined means the card service refused the debit. This is a
	// final answer, not a transient failure.
	ErrDeclined = errors.New("debit declined")

	// ErrUnavailable wraps transport failures and 5xx answers. The
	// outcome of the attempted operation is unknown.
	ErrUnavailable = errors.New("card service unavailable")
)

// CardStatus is the card service's lifecycle status for a card.
type CardStatus string

const (
	StatusActive  CardStatus = "ACTIVE"
	StatusBlocked CardStatus = "BLOCKED"
	StatusFrozen  CardStatus = "FROZEN"
	StatusExpired CardStatus = "EXPIRED"
)

// CardInfo is the card record used for payment validation. Expiry is
// the card's expiration date; the card is valid through the end of that
// month.
type CardInfo struct {
	Number              string       `json:"number"`
	OwnerID             string       `json:"owner_id"`
	Status              CardStatus   `json:"status"`
	CVV                 string       `json:"cvv"`
	Expiry              time.Time    `json:"expiry"`
	Balance             money.Money  `json:"balance"`
	PerTransactionLimit *money.Money `json:"per_transaction_limit,omitempty"`
	Type                string       `json:"type"`
}

// Config holds card service client configuration
type Config struct {
	BaseURL string        `envconfig:"CARD_SERVICE_URL" required:"true"`
	Timeout time.Duration `envconfig:"CARD_SERVICE_TIMEOUT" default:"5s"`
}

// Client calls the card service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a card service client
func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// Lookup fetches the card record by card number.
func (c *Client) Lookup(ctx context.Context, cardNumber string) (CardInfo, error) {
	endpoint := c.baseURL + "/internal/v1/cards/" + url.PathEscape(cardNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return CardInfo{}, fmt.Errorf("building card lookup request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return CardInfo{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return CardInfo{}, ErrCardNotFound
	case resp.StatusCode != http.StatusOK:
		return CardInfo{}, fmt.Errorf("%w: lookup returned %d", ErrUnavailable, resp.StatusCode)
	}

	var info CardInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return CardInfo{}, fmt.Errorf("decoding card info: %w", err)
	}
	return info, nil
}

type debitRequest struct {
	UserID      string `json:"user_id"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

// Debit charges the card for the fee-inclusive absolute amount on
// behalf of the user. A declined charge is distinguished from an
// unknown outcome: callers leave the transaction pending on
// ErrUnavailable.
func (c *Client) Debit(ctx context.Context, cardNumber, userID string, amount money.Money) error {
	body, err := json.Marshal(debitRequest{
		UserID:      userID,
		AmountMinor: amount.Abs().AmountMinor,
		Currency:    string(amount.Currency),
	})
	if err != nil {
		return fmt.Errorf("encoding debit request: %w", err)
	}

	endpoint := c.baseURL + "/internal/v1/cards/" + url.PathEscape(cardNumber) + "/debit"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building debit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrCardNotFound
	case http.StatusPaymentRequired, http.StatusConflict, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: status %d", ErrDeclined, resp.StatusCode)
	default:
		return fmt.Errorf("%w: debit returned %d", ErrUnavailable, resp.StatusCode)
	}
}
