package offers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrOfferNotFound means the offer is absent from the cache: it either
	// expired or was already consumed.
	ErrOfferNotFound = errors.New("payment offer not found")

	// ErrUnavailable means the cache itself could not be reached. Callers
	// must not treat this as a missing offer.
	ErrUnavailable = errors.New("offer store unavailable")
)

// Config holds offer cache configuration
type Config struct {
	TTL       time.Duration `envconfig:"OFFER_TTL" default:"5m"`
	KeyPrefix string        `envconfig:"OFFER_KEY_PREFIX" default:"offer:"`
}

// Store is a TTL cache of pending payment offers backed by Redis.
type Store struct {
	client *redis.Client
	cfg    Config
	logger *slog.Logger
}

// NewStore creates an offer store
func NewStore(client *redis.Client, cfg Config, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Store) key(offerID string) string {
	return s.cfg.KeyPrefix + offerID
}

// Get loads an offer by ID. Returns ErrOfferNotFound if the offer is not
// cached and ErrUnavailable on infrastructure failure.
func (s *Store) Get(ctx context.Context, offerID string) (PaymentOffer, error) {
	raw, err := s.client.Get(ctx, s.key(offerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return PaymentOffer{}, ErrOfferNotFound
	}
	if err != nil {
		return PaymentOffer{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var offer PaymentOffer
	if err := json.Unmarshal(raw, &offer); err != nil {
		return PaymentOffer{}, fmt.Errorf("decoding offer %s: %w", offerID, err)
	}
	return offer, nil
}

// Put caches an offer under its ID for the configured TTL.
func (s *Store) Put(ctx context.Context, offer PaymentOffer) error {
	raw, err := json.Marshal(offer)
	if err != nil {
		return fmt.Errorf("encoding offer %s: %w", offer.ID, err)
	}

	if err := s.client.Set(ctx, s.key(offer.ID), raw, s.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Remove evicts an offer from the cache. Removing an absent offer is not
// an error.
func (s *Store) Remove(ctx context.Context, offerID string) error {
	if err := s.client.Del(ctx, s.key(offerID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Return puts a previously consumed offer back into the cache after a
// cancelled or failed transaction, restarting its TTL.
func (s *Store) Return(ctx context.Context, offer PaymentOffer) error {
	if err := s.Put(ctx, offer); err != nil {
		return err
	}
	s.logger.Debug("offer returned to cache", "offer_id", offer.ID)
	return nil
}
