// Package choropleth joins caller-supplied tabular datasets onto the
// boundary index by normalized unit name, producing map-ready GeoJSON
// feature collections. Records are matched at query time only; the engine
// never retains them past a single call.
package choropleth

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Pracylop/uganda-electoral-map-sub003/internal/boundary"
	"github.com/Pracylop/uganda-electoral-map-sub003/internal/names"
	apperrors "github.com/Pracylop/uganda-electoral-map-sub003/pkg/errors"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/logger"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/metrics"
)

// NoDataKey marks a feature that matched no record. It is distinct from a
// zero value and renderers must draw it distinctly.
const NoDataKey = "no_data"

// Record is one externally supplied dataset row: a unit name plus arbitrary
// value fields (vote totals, percentages, population counts).
type Record struct {
	UnitName string         `json:"unit_name"`
	Values   map[string]any `json:"values"`
}

// Scope restricts a join to leaf features whose ancestor at Level normalizes
// to Name. ParentID is the legacy numeric filter: it is not supported and is
// rejected loudly rather than silently ignored.
type Scope struct {
	Level    boundary.Level
	Name     string
	ParentID int
}

// Feature is one output GeoJSON feature. IDs are sequential within a single
// call and not stable across calls.
type Feature struct {
	Type       string            `json:"type"`
	ID         int               `json:"id"`
	Geometry   boundary.Geometry `json:"geometry"`
	Properties map[string]any    `json:"properties"`
}

// FeatureCollection is the map-ready join output.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Engine performs choropleth joins against a loaded boundary index. It only
// borrows features from the index and never mutates them.
type Engine struct {
	index   *boundary.Index
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a join engine over the given index. m may be nil.
func New(index *boundary.Index, m *metrics.Metrics) *Engine {
	return &Engine{
		index:   index,
		metrics: m,
		logger:  logger.WithComponent("choropleth-engine"),
	}
}

// Join attaches records to every leaf feature under scope, matching on the
// normalized unit name at the target level. Unmatched features carry the
// no-data marker. Duplicate record keys resolve last-write-wins; the dataset
// is assumed de-duplicated by the caller but must never cause a failure.
//
// An unloaded index yields an empty collection, not an error: the UI renders
// that as "boundaries not ready yet".
func (e *Engine) Join(level boundary.Level, records []Record, scope *Scope) (FeatureCollection, error) {
	return e.join("join", level, records, scope, 0)
}

// JoinAsOf behaves like Join but treats the dataset as collected in
// datasetYear: a unit with no record of its own falls back to the record of
// the district it was split from, when the split postdates the dataset.
func (e *Engine) JoinAsOf(level boundary.Level, records []Record, scope *Scope, datasetYear int) (FeatureCollection, error) {
	return e.join("join", level, records, scope, datasetYear)
}

// BoundariesOnly returns the scoped feature set with hierarchy properties
// attached and every feature marked no-data, for basemap-only rendering.
func (e *Engine) BoundariesOnly(level boundary.Level, scope *Scope) (FeatureCollection, error) {
	return e.join("boundaries_only", level, nil, scope, 0)
}

func (e *Engine) join(kind string, level boundary.Level, records []Record, scope *Scope, datasetYear int) (FeatureCollection, error) {
	start := time.Now()
	out := FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}

	if !level.Valid() {
		e.recordJoin(kind, "rejected")
		return out, fmt.Errorf("%w: administrative level %d", apperrors.ErrInvalidInput, level)
	}
	if scope != nil && scope.Name == "" {
		if scope.ParentID != 0 {
			e.recordJoin(kind, "rejected")
			return out, fmt.Errorf("%w: numeric parent id %d without a parent name", apperrors.ErrScopeUnsupported, scope.ParentID)
		}
		scope = nil
	}
	if !e.index.Loaded() {
		e.logger.Warn("join requested before boundary index load", "kind", kind, "level", level.String())
		e.recordJoin(kind, "not_loaded")
		return out, nil
	}

	byName := make(map[string]Record, len(records))
	for _, r := range records {
		byName[names.Normalize(r.UnitName)] = r
	}

	leaves := e.index.AllLeaves()
	if scope != nil {
		leaves = e.index.Leaves(scope.Level, scope.Name)
	}

	out.Features = make([]Feature, 0, len(leaves))
	matched := 0
	for _, leaf := range leaves {
		unit := names.Normalize(leaf.Name(level))
		record, ok := byName[unit]
		if !ok && datasetYear > 0 {
			if parent, split := names.ResolveLineage(unit, datasetYear); split {
				record, ok = byName[parent]
			}
		}

		props := make(map[string]any, len(record.Values)+MaxLevelProps)
		if ok {
			for k, v := range record.Values {
				props[k] = v
			}
			matched++
		} else {
			props[NoDataKey] = true
		}
		// Hierarchy-path fields last: the ancestor chain stays
		// authoritative even if a dataset reuses one of these keys.
		for l := boundary.MinLevel; l <= boundary.MaxLevel; l++ {
			props[l.String()] = leaf.Name(l)
		}
		props["name"] = leaf.Name(level)
		props["level"] = level.String()
		props["level_num"] = int(level)
		props["centroid"] = []float64{leaf.Centroid.Lng, leaf.Centroid.Lat}
		props["bbox"] = []float64{leaf.BBox.West, leaf.BBox.South, leaf.BBox.East, leaf.BBox.North}

		out.Features = append(out.Features, Feature{
			Type:       "Feature",
			ID:         len(out.Features) + 1,
			Geometry:   leaf.Geometry,
			Properties: props,
		})
	}

	e.index.RecordJoin()
	e.recordJoin(kind, "ok")
	if e.metrics != nil {
		e.metrics.JoinDuration.Observe(time.Since(start).Seconds())
	}
	e.logger.Debug("join complete",
		"kind", kind,
		"level", level.String(),
		"features", len(out.Features),
		"matched", matched,
		"records", len(records),
	)
	return out, nil
}

// MaxLevelProps is the number of fixed property fields attached to every
// output feature (hierarchy path, name, level, level_num, centroid, bbox).
const MaxLevelProps = int(boundary.MaxLevel) + 5

func (e *Engine) recordJoin(kind, outcome string) {
	if e.metrics != nil {
		e.metrics.JoinsTotal.WithLabelValues(kind, outcome).Inc()
	}
}
