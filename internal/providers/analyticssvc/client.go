// Package analyticssvc is the typed HTTP client for the analytics
// service, which renders downloadable expense reports.
package analyticssvc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ErrUnavailable wraps transport failures and non-2xx answers from the
// analytics service.
var ErrUnavailable = errors.New("analytics service unavailable")

// Config holds analytics service client configuration
type Config struct {
	BaseURL string        `envconfig:"ANALYTICS_SERVICE_URL" required:"true"`
	Timeout time.Duration `envconfig:"ANALYTICS_SERVICE_TIMEOUT" default:"10s"`
}

// Client calls the analytics service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates an analytics service client
func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

type reportRequest struct {
	UserID     string `json:"user_id"`
	CardNumber string `json:"card_number"`
	From       string `json:"from"`
	To         string `json:"to"`
}

type reportResponse struct {
	URL string `json:"url"`
}

// ExpenseReportLink asks the analytics service to build an expense
// report for the card and period and returns the download link.
func (c *Client) ExpenseReportLink(ctx context.Context, userID, cardNumber string, from, to time.Time) (string, error) {
	body, err := json.Marshal(reportRequest{
		UserID:     userID,
		CardNumber: cardNumber,
		From:       from.Format("2006-01-02"),
		To:         to.Format("2006-01-02"),
	})
	if err != nil {
		return "", fmt.Errorf("encoding report request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/v1/reports/expenses", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: report returned %d", ErrUnavailable, resp.StatusCode)
	}

	var report reportResponse
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return "", fmt.Errorf("decoding report response: %w", err)
	}

	c.logger.Debug("expense report link built", "card_number", cardNumber)
	return report.URL, nil
}
