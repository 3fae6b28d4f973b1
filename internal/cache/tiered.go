package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/config"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/logger"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/metrics"
	pkgredis "github.com/Pracylop/uganda-electoral-map-sub003/pkg/redis"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/resilience"
)

const (
	tierMemory     = "memory"
	tierPersistent = "persistent"
)

// mirrorTimeout bounds the asynchronous persistent-tier writes. The boundary
// payload runs to tens of megabytes, so this is deliberately generous.
const mirrorTimeout = 30 * time.Second

// Tiered chains the in-process tier in front of the persistent Redis tier.
// Reads fall through memory to Redis, promoting persistent hits back into
// memory; writes land in memory synchronously and are mirrored to Redis
// asynchronously. A nil Redis client degrades the cache to memory-only:
// slower across restarts, never incorrect. Persistent-tier failures are
// logged and treated as misses, never propagated.
type Tiered struct {
	mem        *Memory
	persistent *pkgredis.Client
	cfg        config.CacheConfig
	group      singleflight.Group
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewTiered creates a two-tier cache. persistent and m may be nil.
func NewTiered(mem *Memory, persistent *pkgredis.Client, m *metrics.Metrics, cfg config.CacheConfig) *Tiered {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 2 * time.Second
	}
	return &Tiered{
		mem:        mem,
		persistent: persistent,
		cfg:        cfg,
		metrics:    m,
		logger:     logger.WithComponent("tiered-cache"),
	}
}

// Has reports whether the in-process tier holds a fresh entry for key.
func (t *Tiered) Has(key string) bool {
	return t.mem.Has(t.fullKey(key))
}

// GetBytes returns a raw payload, reading through memory to the persistent
// tier. A persistent hit is promoted into memory with the given TTL.
func (t *Tiered) GetBytes(ctx context.Context, key string, ttl time.Duration) ([]byte, bool) {
	if v, ok := t.mem.Get(t.fullKey(key)); ok {
		if data, ok := v.([]byte); ok {
			t.recordHit(tierMemory)
			return data, true
		}
	}
	t.recordMiss(tierMemory)
	data, ok := t.persistentGet(ctx, key)
	if !ok {
		return nil, false
	}
	t.mem.Set(t.fullKey(key), data, ttl)
	return data, true
}

// SetBytes stores a raw payload in memory synchronously and mirrors it to the
// persistent tier in the background.
func (t *Tiered) SetBytes(ctx context.Context, key string, data []byte, ttl time.Duration) {
	t.mem.Set(t.fullKey(key), data, ttl)
	t.mirror(key, data, ttl)
}

// Invalidate removes all entries matching the glob pattern from both tiers.
// The in-process removal is synchronous and immediately visible; the
// persistent removal completes asynchronously.
func (t *Tiered) Invalidate(ctx context.Context, pattern string) int {
	removed := t.mem.Invalidate(t.fullKey(pattern))
	if t.metrics != nil {
		t.metrics.InvalidationsTotal.Inc()
	}
	if t.persistent != nil {
		full := t.fullKey(pattern)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
			defer cancel()
			deleted, err := t.persistent.FlushByPattern(ctx, full)
			if err != nil {
				t.logger.Warn("persistent invalidation failed", "pattern", full, "error", err)
				return
			}
			t.logger.Debug("persistent invalidation done", "pattern", full, "keys_deleted", deleted)
		}()
	}
	return removed
}

// GetOrFetch is the canonical access pattern: check both tiers, and on a
// logical miss invoke fetch exactly once, even under concurrent callers for
// the same key, then store the result in both tiers.
func GetOrFetch[T any](ctx context.Context, t *Tiered, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := t.mem.Get(t.fullKey(key)); ok {
		if tv, ok := v.(T); ok {
			t.recordHit(tierMemory)
			return tv, nil
		}
	}
	t.recordMiss(tierMemory)

	v, err, _ := t.group.Do(key, func() (any, error) {
		// A concurrent caller may have populated the entry while this
		// caller was waiting on the group.
		if v, ok := t.mem.Get(t.fullKey(key)); ok {
			if tv, ok := v.(T); ok {
				return tv, nil
			}
		}
		if data, ok := t.persistentGet(ctx, key); ok {
			var tv T
			if err := json.Unmarshal(data, &tv); err == nil {
				t.mem.Set(t.fullKey(key), tv, ttl)
				return tv, nil
			}
			t.logger.Warn("persistent entry undecodable, refetching", "key", key)
		}
		tv, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		t.mem.Set(t.fullKey(key), tv, ttl)
		if data, err := json.Marshal(tv); err == nil {
			t.mirror(key, data, ttl)
		} else {
			t.logger.Warn("value not mirrorable", "key", key, "error", err)
		}
		return tv, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// GetCached returns the in-process entry for key if it is younger than
// maxAge, ignoring the entry's own TTL. This is the degraded path used when a
// fresh fetch fails and a recently expired value is still acceptable.
func GetCached[T any](t *Tiered, key string, maxAge time.Duration) (T, bool) {
	var zero T
	v, ok := t.mem.GetWithMaxAge(t.fullKey(key), maxAge)
	if !ok {
		return zero, false
	}
	tv, ok := v.(T)
	if !ok {
		return zero, false
	}
	return tv, true
}

func (t *Tiered) fullKey(key string) string {
	return t.cfg.KeyPrefix + key
}

// persistentGet reads key from Redis, bounded by the configured read timeout.
// Any failure degrades to a miss.
func (t *Tiered) persistentGet(ctx context.Context, key string) ([]byte, bool) {
	if t.persistent == nil {
		return nil, false
	}
	var data []byte
	err := resilience.WithTimeout(ctx, t.cfg.ReadTimeout, "cache_persistent_get", func(ctx context.Context) error {
		s, err := t.persistent.Get(ctx, t.fullKey(key))
		if err != nil {
			return err
		}
		data = []byte(s)
		return nil
	})
	if err != nil {
		if !pkgredis.IsNilError(err) {
			t.logger.Warn("persistent read failed", "key", key, "error", err)
		}
		t.recordMiss(tierPersistent)
		return nil, false
	}
	t.recordHit(tierPersistent)
	return data, true
}

// mirror writes data to the persistent tier in the background. Write
// failures are logged and otherwise ignored.
func (t *Tiered) mirror(key string, data []byte, ttl time.Duration) {
	if t.persistent == nil {
		return
	}
	full := t.fullKey(key)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if err := t.persistent.Set(ctx, full, data, ttl); err != nil {
			t.logger.Warn("persistent write failed", "key", full, "error", err)
		}
	}()
}

func (t *Tiered) recordHit(tier string) {
	if t.metrics != nil {
		t.metrics.CacheHitsTotal.WithLabelValues(tier).Inc()
	}
}

func (t *Tiered) recordMiss(tier string) {
	if t.metrics != nil {
		t.metrics.CacheMissesTotal.WithLabelValues(tier).Inc()
	}
}
