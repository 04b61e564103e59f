package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"txsync/internal/application"
	"txsync/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix  = "txsync:explorer:"
	defaultCacheTTL = 5 * time.Minute
)

type CacheConfig struct {
	Addr string
	TTL  time.Duration
}

type cacheStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// CachedClient serves category responses from Redis when present. Failures
// are never cached.
type CachedClient struct {
	source application.RecordSource
	cache  cacheStore
	ttl    time.Duration
}

func NewCachedClient(source application.RecordSource, cfg CacheConfig) (*CachedClient, error) {
	if source == nil {
		return nil, errors.New("record source is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return &CachedClient{source: source}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return newCachedClient(source, client, cfg.TTL), nil
}

func newCachedClient(source application.RecordSource, cache cacheStore, ttl time.Duration) *CachedClient {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedClient{source: source, cache: cache, ttl: ttl}
}

func (c *CachedClient) FetchRecords(ctx context.Context, network domain.Network, address string, category domain.Category) ([]domain.RawRecord, error) {
	if c.cache == nil {
		return c.source.FetchRecords(ctx, network, address, category)
	}
	key := cacheKey(network, address, category)
	if cached, err := c.cache.Get(ctx, key).Result(); err == nil {
		var records []domain.RawRecord
		if err := json.Unmarshal([]byte(cached), &records); err == nil {
			slog.Debug("explorer cache hit", "network", network.Key, "category", category)
			return records, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		slog.Debug("explorer cache unavailable", "err", err)
	}

	records, err := c.source.FetchRecords(ctx, network, address, category)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return records, nil
	}
	_ = c.cache.Set(ctx, key, payload, c.ttl).Err()
	return records, nil
}

func (c *CachedClient) Close() error {
	if closer, ok := c.cache.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func cacheKey(network domain.Network, address string, category domain.Category) string {
	var b strings.Builder
	b.Grow(96)
	b.WriteString(cacheKeyPrefix)
	b.WriteString(network.Key)
	b.WriteByte(':')
	b.WriteString(string(category))
	b.WriteByte(':')
	b.WriteString(strings.ToLower(address))
	return b.String()
}
