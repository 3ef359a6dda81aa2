package mpesa

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"chama-backend/internal/infrastructure/metrics"

	"github.com/redis/go-redis/v9"
)

const (
	defaultTokenKey = "mpesa:access_token"
	// refresh a little before the provider's own expiry
	expirySlack = time.Minute
)

// TokenFetcher returns a fresh token and how long the provider says it lives.
type TokenFetcher func(ctx context.Context) (string, time.Duration, error)

// RedisTokenCache shares one bearer token across API replicas. Redis being
// unavailable degrades to a direct fetch per call; it never fails a push.
type RedisTokenCache struct {
	rdb     redis.Cmdable
	key     string
	ttl     time.Duration
	fetch   TokenFetcher
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewRedisTokenCache caches tokens for at most ttl. A ttl of zero disables
// caching.
func NewRedisTokenCache(rdb redis.Cmdable, ttl time.Duration, fetch TokenFetcher, log *slog.Logger, m *metrics.Metrics) *RedisTokenCache {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &RedisTokenCache{rdb: rdb, key: defaultTokenKey, ttl: ttl, fetch: fetch, log: log, metrics: m}
}

func (c *RedisTokenCache) Token(ctx context.Context) (string, error) {
	if c.ttl <= 0 || c.rdb == nil {
		c.metrics.TokenLookup("disabled")
		tok, _, err := c.fetch(ctx)
		return tok, err
	}

	cached, err := c.rdb.Get(ctx, c.key).Result()
	switch {
	case err == nil && cached != "":
		c.metrics.TokenLookup("hit")
		return cached, nil
	case err == nil, errors.Is(err, redis.Nil):
		c.metrics.TokenLookup("miss")
	default:
		c.metrics.TokenLookup("error")
		c.log.WarnContext(ctx, "mpesa: token cache unavailable, fetching directly", "err", err)
		tok, _, ferr := c.fetch(ctx)
		return tok, ferr
	}

	tok, lifetime, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}
	ttl := c.ttl
	if lifetime > expirySlack && lifetime-expirySlack < ttl {
		ttl = lifetime - expirySlack
	}
	if err := c.rdb.Set(ctx, c.key, tok, ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "mpesa: could not cache token", "err", err)
	}
	return tok, nil
}

// Invalidate drops the cached token, e.g. after the provider rejected it.
func (c *RedisTokenCache) Invalidate(ctx context.Context) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, c.key).Err(); err != nil {
		c.log.WarnContext(ctx, "mpesa: could not drop cached token", "err", err)
	}
}
