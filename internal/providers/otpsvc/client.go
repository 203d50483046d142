// Package otpsvc is the typed HTTP client for the OTP service.
package otpsvc

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
// OTP service.
var ErrUnavailable = errors.New("otp service unavailable")

// Config holds OTP service client configuration
type Config struct {
	BaseURL string        `envconfig:"OTP_SERVICE_URL" required:"true"`
	Timeout time.Duration `envconfig:"OTP_SERVICE_TIMEOUT" default:"5s"`
}

// Client calls the OTP service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates an OTP service client
func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

type generateRequest struct {
	UserID  string `json:"user_id"`
	OfferID string `json:"offer_id"`
}

// Generate asks the OTP service to issue and deliver a code for the
// pending payment. The code itself never passes through this service;
// the OTP service calls back on the confirm endpoint.
func (c *Client) Generate(ctx context.Context, userID, offerID string) error {
	body, err := json.Marshal(generateRequest{UserID: userID, OfferID: offerID})
	if err != nil {
		return fmt.Errorf("encoding otp request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/v1/otp/generate", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building otp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("%w: generate returned %d", ErrUnavailable, resp.StatusCode)
	}

	c.logger.Debug("otp generation requested", "user_id", userID, "offer_id", offerID)
	return nil
}
