package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/auditkit/expense-sentinel/internal/audit"
	"github.com/auditkit/expense-sentinel/internal/config"
)

// ResultCache is a Redis-backed cache for detector findings and Benford
// reports. Keys are content hashes over the snapshot plus the detector
// parameters, so a cache entry can never outlive the data it was
// computed from: any edit changes the key.
type ResultCache struct {
	client *redis.Client
	config config.CacheConfig
	logger *zap.Logger
	hits   int64
	misses int64
}

// NewResultCache creates a Redis-backed result cache.
func NewResultCache(cfg config.CacheConfig, logger *zap.Logger) (*ResultCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.PoolSize = cfg.MaxConnections
	opts.MinIdleConns = cfg.MinIdleConns

	c := &ResultCache{
		client: redis.NewClient(opts),
		config: cfg,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Result cache initialized",
		zap.String("redis_url", maskRedisURL(cfg.RedisURL)),
		zap.Duration("default_ttl", cfg.DefaultTTL),
	)
	return c, nil
}

// Key derives the cache key for a detector run over a snapshot. The hash
// covers every record (sorted keys, in row order) and the detector's
// parameters.
func (c *ResultCache) Key(detector string, rows []audit.Record, params ...string) string {
	h := sha256.New()
	for _, rec := range rows {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(h, "%s=%s\x1f", k, rec[k])
		}
		h.Write([]byte{'\x1e'})
	}
	for _, p := range params {
		h.Write([]byte(p))
		h.Write([]byte{'\x1f'})
	}
	return fmt.Sprintf("%s:%s:%s", c.config.KeyPrefix, detector, hex.EncodeToString(h.Sum(nil)))
}

// GetFindings looks up cached findings. A miss or a cache error both
// return false; the cache never fails an audit run.
func (c *ResultCache) GetFindings(ctx context.Context, key string) ([]audit.Finding, bool) {
	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Cache lookup failed", zap.Error(err))
		return nil, false
	}

	var cached CachedFindings
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		c.logger.Warn("Failed to unmarshal cached findings", zap.Error(err))
		c.client.Del(ctx, key)
		return nil, false
	}
	atomic.AddInt64(&c.hits, 1)
	return cached.Findings, true
}

// SetFindings stores a detector's findings under the given key.
func (c *ResultCache) SetFindings(ctx context.Context, key string, findings []audit.Finding) {
	data, err := json.Marshal(CachedFindings{Findings: findings, CachedAt: time.Now()})
	if err != nil {
		c.logger.Warn("Failed to marshal findings for cache", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, data, c.config.DefaultTTL).Err(); err != nil {
		c.logger.Warn("Cache write failed", zap.Error(err))
	}
}

// GetReport looks up a cached Benford report.
func (c *ResultCache) GetReport(ctx context.Context, key string) (*audit.BenfordReport, bool) {
	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Cache lookup failed", zap.Error(err))
		return nil, false
	}

	var cached CachedReport
	if err := json.Unmarshal([]byte(data), &cached); err != nil || cached.Report == nil {
		c.client.Del(ctx, key)
		return nil, false
	}
	atomic.AddInt64(&c.hits, 1)
	return cached.Report, true
}

// SetReport stores a Benford report under the given key.
func (c *ResultCache) SetReport(ctx context.Context, key string, report *audit.BenfordReport) {
	data, err := json.Marshal(CachedReport{Report: report, CachedAt: time.Now()})
	if err != nil {
		c.logger.Warn("Failed to marshal report for cache", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, data, c.config.DefaultTTL).Err(); err != nil {
		c.logger.Warn("Cache write failed", zap.Error(err))
	}
}

// Stats returns hit/miss counters since startup.
func (c *ResultCache) Stats() Stats {
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	s := Stats{Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

// Close closes the Redis connection.
func (c *ResultCache) Close() error {
	return c.client.Close()
}

// maskRedisURL hides credentials in a Redis URL for logging.
func maskRedisURL(url string) string {
	at := strings.LastIndex(url, "@")
	scheme := strings.Index(url, "://")
	if at == -1 || scheme == -1 || at < scheme {
		return url
	}
	return url[:scheme+3] + "***" + url[at:]
}
