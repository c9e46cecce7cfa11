// Package store keeps processed ledgers so they can be fetched again by id.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/models"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// ErrLedgerNotFound is returned by Get for unknown or expired ids.
var ErrLedgerNotFound = errors.New("ledger not found")

// DefaultTTL is used when a non-positive TTL is configured.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "ledger:"

// LedgerStore saves and loads ledgers.
type LedgerStore interface {
	Save(ctx context.Context, ledger *models.Ledger) (string, error)
	Get(ctx context.Context, id string) (*models.Ledger, error)
}

// NewClient parses redisURL and verifies the connection.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// RedisStore is a LedgerStore on Redis. Ledgers are stored as JSON under
// "ledger:<ulid>" and expire after the TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger logging.Logger
}

// NewRedisStore creates a RedisStore on client.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger logging.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl, logger: logging.For(logger, "ledger_store")}
}

// Save stores ledger under a new ULID and returns it.
func (s *RedisStore) Save(ctx context.Context, ledger *models.Ledger) (string, error) {
	if ledger == nil {
		return "", fmt.Errorf("cannot store nil ledger")
	}
	payload, err := json.Marshal(ledger)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ledger: %w", err)
	}

	id := ulid.Make().String()
	if err := s.client.Set(ctx, keyPrefix+id, payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store ledger: %w", err)
	}
	s.logger.Debug("Ledger stored",
		logging.F(logging.FieldLedgerID, id),
		logging.F(logging.FieldBytes, len(payload)))
	return id, nil
}

// Get loads the ledger stored under id.
func (s *RedisStore) Get(ctx context.Context, id string) (*models.Ledger, error) {
	if _, err := ulid.ParseStrict(id); err != nil {
		return nil, ErrLedgerNotFound
	}
	payload, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrLedgerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger %s: %w", id, err)
	}

	var ledger models.Ledger
	if err := json.Unmarshal(payload, &ledger); err != nil {
		return nil, fmt.Errorf("failed to decode ledger %s: %w", id, err)
	}
	return &ledger, nil
}
