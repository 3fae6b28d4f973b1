package boundary

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Pracylop/uganda-electoral-map-sub003/internal/cache"
	"github.com/Pracylop/uganda-electoral-map-sub003/internal/names"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/logger"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/metrics"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/tracing"
)

// payloadCacheKey is the persistent-tier key of the full boundary payload.
// The "v1" segment is part of the stable cache schema: bump it when the
// stored format changes so stale processes never decode a foreign layout.
const payloadCacheKey = "boundaries:payload:v1"

// levelIndex holds the per-level lookup maps. All names used as keys are
// normalized; two raw names that normalize identically share one bucket.
type levelIndex struct {
	// leaves maps a unit name to every village-level feature under it.
	leaves map[string][]*Feature
	// children maps a unit name to the set of unit names one level down.
	children map[string]map[string]struct{}
}

// Stats is the index's observability surface.
type Stats struct {
	TotalFeatures  int           `json:"total_features"`
	LoadDurationMs int64         `json:"load_duration_ms"`
	PerLevelCounts map[Level]int `json:"per_level_counts"`
	JoinCount      int64         `json:"join_count"`
}

// Index owns the leaf-feature arena and the six level indexes. It is built
// exactly once per process lifetime (or per explicit Clear) and is immutable
// afterwards: concurrent joins never race with each other or with a
// completed load, and no partially built state is ever observable.
type Index struct {
	fetcher    *Fetcher
	tiers      *cache.Tiered
	metrics    *metrics.Metrics
	logger     *slog.Logger
	payloadTTL time.Duration

	group     singleflight.Group
	joinCount atomic.Int64

	mu           sync.RWMutex
	loaded       bool
	features     []*Feature
	levels       [MaxLevel + 1]levelIndex
	loadDuration time.Duration
}

// New creates an unloaded Index. m may be nil.
func New(fetcher *Fetcher, tiers *cache.Tiered, m *metrics.Metrics, payloadTTL time.Duration) *Index {
	return &Index{
		fetcher:    fetcher,
		tiers:      tiers,
		metrics:    m,
		logger:     logger.WithComponent("boundary-index"),
		payloadTTL: payloadTTL,
	}
}

// Load populates the index. It is idempotent and single-flight: a call while
// a load is in progress waits on that same load and observes its outcome —
// never a second fetch, never a second build, never a half-built index. On a
// hard failure the previous state (none, or the prior complete index) is
// left untouched and the error is returned to every waiter.
func (ix *Index) Load(ctx context.Context) error {
	if ix.Loaded() {
		return nil
	}
	_, err, _ := ix.group.Do("load", func() (any, error) {
		if ix.Loaded() {
			return nil, nil
		}
		// An abandoned load runs to completion so the cache is warm for
		// the next caller; only process shutdown stops it.
		return nil, ix.doLoad(context.WithoutCancel(ctx))
	})
	return err
}

func (ix *Index) doLoad(ctx context.Context) error {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "boundary_load", fmt.Sprintf("load-%d", start.UnixNano()))
	defer span.End()

	data, fromCache := ix.cachedPayload(ctx)
	if !fromCache {
		fetchCtx, fetchSpan := tracing.StartChildSpan(ctx, "fetch_payload")
		fetched, err := ix.fetcher.Fetch(fetchCtx)
		fetchSpan.End()
		if err != nil {
			ix.recordLoad("unavailable")
			return err
		}
		data = fetched
	}
	span.SetAttr("payload_bytes", len(data))
	span.SetAttr("from_cache", fromCache)

	_, parseSpan := tracing.StartChildSpan(ctx, "parse_payload")
	features, err := ParseFeatureCollection(data)
	parseSpan.End()
	if err != nil {
		ix.recordLoad("invalid")
		return err
	}

	_, buildSpan := tracing.StartChildSpan(ctx, "build_levels")
	levels := buildLevels(features)
	buildSpan.End()

	if !fromCache {
		ix.tiers.SetBytes(ctx, payloadCacheKey, data, ix.payloadTTL)
	}

	duration := time.Since(start)
	ix.mu.Lock()
	ix.features = features
	ix.levels = levels
	ix.loadDuration = duration
	ix.loaded = true
	ix.mu.Unlock()

	ix.recordLoad("ok")
	if ix.metrics != nil {
		ix.metrics.BoundaryLoadSeconds.Observe(duration.Seconds())
		ix.metrics.BoundaryFeatures.Set(float64(len(features)))
		for l := MinLevel; l <= MaxLevel; l++ {
			ix.metrics.BoundaryLevelUnits.WithLabelValues(l.String()).Set(float64(len(levels[l].leaves)))
		}
	}
	ix.logger.Info("boundary index loaded",
		"features", len(features),
		"from_cache", fromCache,
		"duration_ms", duration.Milliseconds(),
	)
	return nil
}

// cachedPayload consults both cache tiers for a previously persisted payload.
// Only a non-empty payload is adopted.
func (ix *Index) cachedPayload(ctx context.Context) ([]byte, bool) {
	data, ok := ix.tiers.GetBytes(ctx, payloadCacheKey, ix.payloadTTL)
	if !ok || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// buildLevels runs one linear pass per level over the leaf features. Every
// feature carries its full ancestor path, so the hierarchy falls out of flat
// string fields — no parent pointers, no possibility of cycles.
func buildLevels(features []*Feature) [MaxLevel + 1]levelIndex {
	var levels [MaxLevel + 1]levelIndex
	for l := MinLevel; l <= MaxLevel; l++ {
		levels[l] = levelIndex{
			leaves:   make(map[string][]*Feature),
			children: make(map[string]map[string]struct{}),
		}
		for _, f := range features {
			name := names.Normalize(f.Name(l))
			if name == "" {
				continue
			}
			levels[l].leaves[name] = append(levels[l].leaves[name], f)
			if l > MinLevel {
				parent := names.Normalize(f.Name(l - 1))
				if parent == "" {
					continue
				}
				set, ok := levels[l-1].children[parent]
				if !ok {
					set = make(map[string]struct{})
					levels[l-1].children[parent] = set
				}
				set[name] = struct{}{}
			}
		}
	}
	return levels
}

// Loaded reports whether a complete index is available.
func (ix *Index) Loaded() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.loaded
}

// HasLevel reports whether the index holds any unit at the given level.
func (ix *Index) HasLevel(l Level) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.loaded && l.Valid() && len(ix.levels[l].leaves) > 0
}

// CountAt returns the number of distinct unit names at the given level.
func (ix *Index) CountAt(l Level) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.loaded || !l.Valid() {
		return 0
	}
	return len(ix.levels[l].leaves)
}

// UniqueNames returns the distinct normalized unit names at the given level,
// sorted alphabetically. Built for populating selection UIs.
func (ix *Index) UniqueNames(l Level) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.loaded || !l.Valid() {
		return nil
	}
	out := make([]string, 0, len(ix.levels[l].leaves))
	for name := range ix.levels[l].leaves {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ChildrenOf returns the sorted unit names at childLevel that fall under the
// named parent. An unknown parent yields an empty sequence, not an error.
// The adjacent-level case reads the parent→children set built at load time;
// deeper descendants are collected from the parent's leaf bucket.
func (ix *Index) ChildrenOf(parentLevel Level, parentName string, childLevel Level) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.loaded || !parentLevel.Valid() || !childLevel.Valid() || childLevel <= parentLevel {
		return []string{}
	}
	parent := names.Normalize(parentName)

	if childLevel == parentLevel+1 {
		set := ix.levels[parentLevel].children[parent]
		out := make([]string, 0, len(set))
		for name := range set {
			out = append(out, name)
		}
		sort.Strings(out)
		return out
	}

	seen := make(map[string]struct{})
	for _, f := range ix.levels[parentLevel].leaves[parent] {
		if name := names.Normalize(f.Name(childLevel)); name != "" {
			seen[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Leaves returns every leaf feature under the named unit at the given level,
// in payload order. The returned slice and its features are owned by the
// index and must not be mutated.
func (ix *Index) Leaves(l Level, name string) []*Feature {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.loaded || !l.Valid() {
		return nil
	}
	return ix.levels[l].leaves[names.Normalize(name)]
}

// AllLeaves returns every leaf feature in payload order. Read-only, like
// Leaves.
func (ix *Index) AllLeaves() []*Feature {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.loaded {
		return nil
	}
	return ix.features
}

// RecordJoin counts a join served from this index.
func (ix *Index) RecordJoin() {
	ix.joinCount.Add(1)
}

// Stats returns the observability snapshot. Not used in business logic.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	s := Stats{
		TotalFeatures:  len(ix.features),
		LoadDurationMs: ix.loadDuration.Milliseconds(),
		PerLevelCounts: make(map[Level]int, MaxLevel),
		JoinCount:      ix.joinCount.Load(),
	}
	for l := MinLevel; l <= MaxLevel; l++ {
		if ix.loaded {
			s.PerLevelCounts[l] = len(ix.levels[l].leaves)
		}
	}
	return s
}

// Clear drops all in-memory state. The next Load performs a full reload.
func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.loaded = false
	ix.features = nil
	ix.levels = [MaxLevel + 1]levelIndex{}
	ix.loadDuration = 0
	ix.logger.Info("boundary index cleared")
}

func (ix *Index) recordLoad(outcome string) {
	if ix.metrics != nil {
		ix.metrics.BoundaryLoadsTotal.WithLabelValues(outcome).Inc()
	}
}
