package boundary

import (
	"encoding/json"
	"fmt"

	"github.com/golang/geo/s2"

	apperrors "github.com/Pracylop/uganda-electoral-map-sub003/pkg/errors"
)

// Geometry is a GeoJSON Polygon or MultiPolygon. Coordinates are kept raw:
// the join engine passes them through untouched, and the extent computation
// decodes them once at index-build time.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Point is a WGS84 position.
type Point struct {
	Lng float64
	Lat float64
}

// Bounds is a lat/lng bounding rectangle.
type Bounds struct {
	West  float64
	South float64
	East  float64
	North float64
}

// Feature is one village-level polygon together with its full hierarchy path
// (the raw ancestor names from region down to village). The ID is assigned
// at index-build time and is not stable across rebuilds.
type Feature struct {
	ID       int
	Geometry Geometry
	Centroid Point
	BBox     Bounds

	// names holds the raw (display) unit name per level, index 0 unused.
	names [MaxLevel + 1]string
}

// Name returns the raw unit name at the given level, or "" when the payload
// carried none.
func (f *Feature) Name(l Level) string {
	if !l.Valid() {
		return ""
	}
	return f.names[l]
}

type featureCollection struct {
	Type     string           `json:"type"`
	Features []payloadFeature `json:"features"`
}

type payloadFeature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// ParseFeatureCollection decodes a GeoJSON FeatureCollection into owned
// Features. Features with undecodable geometry are dropped; a payload that
// yields no features at all is invalid.
func ParseFeatureCollection(data []byte) ([]*Feature, error) {
	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrPayloadInvalid, err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("%w: unexpected payload type %q", apperrors.ErrPayloadInvalid, fc.Type)
	}

	features := make([]*Feature, 0, len(fc.Features))
	dropped := 0
	for _, pf := range fc.Features {
		centroid, bounds, err := computeExtent(pf.Geometry)
		if err != nil {
			dropped++
			continue
		}
		f := &Feature{
			ID:       len(features) + 1,
			Geometry: pf.Geometry,
			Centroid: centroid,
			BBox:     bounds,
		}
		for l := MinLevel; l <= MaxLevel; l++ {
			f.names[l] = propertyString(pf.Properties, l)
		}
		features = append(features, f)
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: no usable features (dropped %d)", apperrors.ErrPayloadInvalid, dropped)
	}
	return features, nil
}

// propertyString reads the unit name for a level, trying the canonical key
// first and the legacy shapefile keys after.
func propertyString(props map[string]any, l Level) string {
	for _, key := range propertyKeys[l] {
		if v, ok := props[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// computeExtent decodes the ring coordinates once and accumulates them into
// an s2 rectangle, yielding the bounding box and the label-anchor centroid.
func computeExtent(g Geometry) (Point, Bounds, error) {
	var rings [][][]float64
	switch g.Type {
	case "Polygon":
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return Point{}, Bounds{}, fmt.Errorf("decoding polygon coordinates: %w", err)
		}
	case "MultiPolygon":
		var polys [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
			return Point{}, Bounds{}, fmt.Errorf("decoding multipolygon coordinates: %w", err)
		}
		for _, poly := range polys {
			rings = append(rings, poly...)
		}
	default:
		return Point{}, Bounds{}, fmt.Errorf("unsupported geometry type %q", g.Type)
	}

	rect := s2.EmptyRect()
	positions := 0
	for _, ring := range rings {
		for _, pos := range ring {
			if len(pos) < 2 {
				continue
			}
			rect = rect.AddPoint(s2.LatLngFromDegrees(pos[1], pos[0]))
			positions++
		}
	}
	if positions == 0 {
		return Point{}, Bounds{}, fmt.Errorf("geometry has no positions")
	}

	center := rect.Center()
	lo, hi := rect.Lo(), rect.Hi()
	return Point{Lng: center.Lng.Degrees(), Lat: center.Lat.Degrees()},
		Bounds{
			West:  lo.Lng.Degrees(),
			South: lo.Lat.Degrees(),
			East:  hi.Lng.Degrees(),
			North: hi.Lat.Degrees(),
		}, nil
}
