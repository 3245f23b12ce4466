/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for frequently accessed data.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Default TTL values for different cache types
const (
	DefaultAccountTTL     = 1 * time.Hour
	DefaultAccountListTTL = 5 * time.Minute
)

// Key prefixes for Redis cache
const (
	KeyAccountList  = "cadence:cache:accounts"
	KeyAccount      = "cadence:cache:account:"       // + account_id
	KeyUserAccounts = "cadence:cache:user_accounts:" // + user_id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL overrides
	AccountTTL     time.Duration
	AccountListTTL time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		AccountTTL:     DefaultAccountTTL,
		AccountListTTL: DefaultAccountListTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	// Use SCAN to find keys (safer than KEYS for production)
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

// Account caching methods

// CachedAccount represents a cached account record. Only the fields the
// scheduler and slot provider read are cached.
type CachedAccount struct {
	ID               string `json:"id"`
	UserID           string `json:"user_id"`
	Name             string `json:"name"`
	MakeConnection   string `json:"make_connection"`
	PostingPeriod    string `json:"posting_period"`
	PostingFrequency int    `json:"posting_frequency"`
	PostingDay       string `json:"posting_day"`
	PostingHour      string `json:"posting_hour"`
}

// GetAccountList retrieves the cached list of all accounts.
func (c *Cache) GetAccountList(ctx context.Context) ([]CachedAccount, bool) {
	var accounts []CachedAccount
	found, err := c.get(ctx, KeyAccountList, &accounts)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Int("count", len(accounts)).Msg("account list cache hit")
	return accounts, true
}

// SetAccountList caches the list of all accounts.
func (c *Cache) SetAccountList(ctx context.Context, accounts []CachedAccount) error {
	c.logger.Debug().Int("count", len(accounts)).Msg("caching account list")
	return c.set(ctx, KeyAccountList, accounts, c.config.AccountListTTL)
}

// InvalidateAccountList removes the account list from cache.
func (c *Cache) InvalidateAccountList(ctx context.Context) error {
	c.logger.Debug().Msg("invalidating account list cache")
	return c.delete(ctx, KeyAccountList)
}

// GetAccount retrieves a cached account by ID.
func (c *Cache) GetAccount(ctx context.Context, accountID string) (*CachedAccount, bool) {
	var account CachedAccount
	found, err := c.get(ctx, KeyAccount+accountID, &account)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("account_id", accountID).Msg("account cache hit")
	return &account, true
}

// SetAccount caches an account by ID.
func (c *Cache) SetAccount(ctx context.Context, account *CachedAccount) error {
	c.logger.Debug().Str("account_id", account.ID).Msg("caching account")
	return c.set(ctx, KeyAccount+account.ID, account, c.config.AccountTTL)
}

// GetUserAccounts retrieves the cached account list for one user.
func (c *Cache) GetUserAccounts(ctx context.Context, userID string) ([]CachedAccount, bool) {
	var accounts []CachedAccount
	found, err := c.get(ctx, KeyUserAccounts+userID, &accounts)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("user_id", userID).Int("count", len(accounts)).Msg("user accounts cache hit")
	return accounts, true
}

// SetUserAccounts caches the account list for one user.
func (c *Cache) SetUserAccounts(ctx context.Context, userID string, accounts []CachedAccount) error {
	c.logger.Debug().Str("user_id", userID).Int("count", len(accounts)).Msg("caching user accounts")
	return c.set(ctx, KeyUserAccounts+userID, accounts, c.config.AccountListTTL)
}

// InvalidateAccount removes all caches related to an account.
func (c *Cache) InvalidateAccount(ctx context.Context, accountID, userID string) error {
	c.logger.Debug().Str("account_id", accountID).Msg("invalidating account caches")

	if err := c.delete(ctx, KeyAccount+accountID); err != nil {
		return err
	}
	if userID != "" {
		if err := c.delete(ctx, KeyUserAccounts+userID); err != nil {
			return err
		}
	}
	return c.InvalidateAccountList(ctx)
}

// FlushAll removes all cached data (use sparingly).
func (c *Cache) FlushAll(ctx context.Context) error {
	c.logger.Warn().Msg("flushing all cache data")
	return c.deletePattern(ctx, "cadence:cache:*")
}
