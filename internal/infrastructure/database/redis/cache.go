package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/KeyIP-Analytics/internal/config"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// ErrCacheMiss reports that a key is absent.
var ErrCacheMiss = errors.New(errors.ErrCodeNotFound, "cache miss")

// Serializer encodes cached values.
type Serializer interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

type jsonSerializer struct{}

func (jsonSerializer) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonSerializer) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

// ResultCache memoizes analytic results in Redis. A Redis outage never fails
// a request: reads and writes that error are logged and the loader runs.
type ResultCache struct {
	client      *Client
	logger      logging.Logger
	metrics     *prometheus.AppMetrics
	prefix      string
	defaultTTL  time.Duration
	loadTimeout time.Duration
	serializer  Serializer
	group       singleflight.Group
}

// CacheOption customises a ResultCache.
type CacheOption func(*ResultCache)

// WithPrefix overrides the client's key prefix.
func WithPrefix(prefix string) CacheOption {
	return func(c *ResultCache) { c.prefix = prefix }
}

// WithDefaultTTL sets the TTL used when GetOrSet is called with ttl <= 0.
func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *ResultCache) { c.defaultTTL = ttl }
}

// WithLoadTimeout bounds a shared load. Loads are detached from the
// cancellation of the callers waiting on them, so this is their only limit
// besides the per-query timeouts of the loader itself.
func WithLoadTimeout(d time.Duration) CacheOption {
	return func(c *ResultCache) {
		if d > 0 {
			c.loadTimeout = d
		}
	}
}

// WithSerializer replaces the JSON serializer.
func WithSerializer(s Serializer) CacheOption {
	return func(c *ResultCache) { c.serializer = s }
}

// WithMetrics records hits and misses, labelled with the operation segment
// of the key (see operationOf).
func WithMetrics(m *prometheus.AppMetrics) CacheOption {
	return func(c *ResultCache) { c.metrics = m }
}

// NewResultCache returns a cache over client.
func NewResultCache(client *Client, log logging.Logger, opts ...CacheOption) *ResultCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &ResultCache{
		client:      client,
		logger:      log.Named("cache"),
		prefix:      client.KeyPrefix(),
		defaultTTL:  10 * time.Minute,
		loadTimeout: config.DefaultCacheLoadTimeout,
		serializer:  jsonSerializer{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ResultCache) fullKey(key string) string {
	return c.prefix + key
}

// jitterTTL spreads expiry by +/- 10% so entries written together do not
// expire together.
func jitterTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	jitter := float64(ttl) * 0.1 * (rand.Float64()*2 - 1)
	return ttl + time.Duration(jitter)
}

// Get fills dest from the cache or returns ErrCacheMiss.
func (c *ResultCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.get(ctx, c.fullKey(key))
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeUnavailable, "cache get")
	}
	if err := c.serializer.Unmarshal(data, dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "decode cached value")
	}
	return nil
}

// Set stores value under key.
func (c *ResultCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := c.serializer.Marshal(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "encode cache value")
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.set(ctx, c.fullKey(key), data, jitterTTL(ttl)); err != nil {
		return errors.Wrap(err, errors.ErrCodeUnavailable, "cache set")
	}
	return nil
}

// GetOrSet fills dest from the cache, or runs loader once per key across
// concurrent callers and caches its result. Loader errors are returned and
// never cached.
//
// The shared load runs under a context that keeps ctx's values but not its
// cancellation, bounded by the load timeout. A caller whose ctx ends stops
// waiting and gets Cancelled or Timeout; the other callers still get the
// loaded value.
func (c *ResultCache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error {
	err := c.Get(ctx, key, dest)
	switch {
	case err == nil:
		c.record(key, true)
		return nil
	case err == ErrCacheMiss:
	default:
		c.logger.Warn("cache read failed, computing directly", logging.String("key", key), logging.Err(err))
	}
	c.record(key, false)

	ch := c.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		return c.load(loadCtx, key, ttl, loader)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return errors.FromContext(ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return res.Err
	}
	if res.Shared {
		c.logger.Debug("cache load shared", logging.String("key", key))
	}
	if err := c.serializer.Unmarshal(res.Val.([]byte), dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "decode loaded value")
	}
	return nil
}

func (c *ResultCache) load(ctx context.Context, key string, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	v, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	data, err := c.serializer.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "encode cache value")
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.set(ctx, c.fullKey(key), data, jitterTTL(ttl)); err != nil {
		c.logger.Warn("cache write failed", logging.String("key", key), logging.Err(err))
	}
	return data, nil
}

// Ping checks the underlying connection.
func (c *ResultCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}

func (c *ResultCache) record(key string, hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheAccess(operationOf(key), hit)
	}
}

// operationOf returns the operation segment of a "<namespace>:<db>:<op>:<digest>"
// key, or "other" for keys of any other shape.
func operationOf(key string) string {
	parts := strings.Split(key, ":")
	if len(parts) < 4 || parts[len(parts)-2] == "" {
		return "other"
	}
	return parts[len(parts)-2]
}
