package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwise1/lookaround/internal/model"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const cacheKeyPrefix = "lookaround:search:"

// RedisClient is the part of *redis.Client the cache uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// NewRedisClient parses a redis:// URL. Retries are disabled: a failing cache falls
// through to the provider.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.MaxRetries = -1
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second
	return redis.NewClient(opts), nil
}

// CachedProvider memoizes provider results in Redis.
type CachedProvider struct {
	next   Provider
	client RedisClient
	ttl    time.Duration
	log    logrus.FieldLogger
}

func NewCachedProvider(next Provider, client RedisClient, ttl time.Duration, log logrus.FieldLogger) *CachedProvider {
	return &CachedProvider{
		next:   next,
		client: client,
		ttl:    ttl,
		log:    log.WithField("component", "search_cache"),
	}
}

// cacheKey normalizes the query and rounds the bias so nearby viewports share entries.
func cacheKey(query string, bias *model.Region) string {
	q := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if bias == nil {
		return cacheKeyPrefix + q
	}
	return fmt.Sprintf("%s%s|%.3f,%.3f|%.2f,%.2f", cacheKeyPrefix, q,
		bias.Center.Latitude, bias.Center.Longitude,
		bias.Span.LatitudeDelta, bias.Span.LongitudeDelta)
}

func (c *CachedProvider) Search(ctx context.Context, query string, bias *model.Region) ([]Result, error) {
	key := cacheKey(query, bias)
	log := c.log.WithField("key", key)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []Result
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached, nil
		}
		log.Warn("discarding undecodable cache entry")
	case errors.Is(err, redis.Nil):
	default:
		log.WithError(err).Warn("cache read failed")
	}

	results, err := c.next.Search(ctx, query, bias)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(results)
	if err != nil {
		return results, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		log.WithError(err).Warn("cache write failed")
	}
	return results, nil
}

// Reverse delegates to the wrapped provider when it can reverse geocode.
func (c *CachedProvider) Reverse(ctx context.Context, coord model.Coordinate) (*Result, error) {
	rg, ok := c.next.(ReverseGeocoder)
	if !ok {
		return nil, nil
	}
	return rg.Reverse(ctx, coord)
}
