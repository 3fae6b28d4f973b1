package boundary

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	apperrors "github.com/Pracylop/uganda-electoral-map-sub003/pkg/errors"
)

func marshalCollection(t *testing.T, features []map[string]any) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"type":     "FeatureCollection",
		"features": features,
	})
	if err != nil {
		t.Fatalf("marshaling fixture: %v", err)
	}
	return data
}

func squareFeature(props map[string]any, west, south, size float64) map[string]any {
	return map[string]any{
		"type": "Feature",
		"geometry": map[string]any{
			"type": "Polygon",
			"coordinates": [][][]float64{{
				{west, south},
				{west + size, south},
				{west + size, south + size},
				{west, south + size},
				{west, south},
			}},
		},
		"properties": props,
	}
}

func TestParseFeatureCollection(t *testing.T) {
	props := map[string]any{
		"region":       "Central",
		"district":     "Kampala",
		"constituency": "Kampala Central",
		"subcounty":    "Nakawa",
		"parish":       "Bukoto",
		"village":      "Bukoto I",
	}
	data := marshalCollection(t, []map[string]any{squareFeature(props, 32.5, 0.3, 0.2)})

	features, err := ParseFeatureCollection(data)
	if err != nil {
		t.Fatalf("ParseFeatureCollection: %v", err)
	}
	if len(features) != 1 {
		t.Fatalf("parsed %d features, want 1", len(features))
	}
	f := features[0]
	if f.ID != 1 {
		t.Errorf("ID = %d, want 1", f.ID)
	}
	if got := f.Name(LevelDistrict); got != "Kampala" {
		t.Errorf("district name = %q, want Kampala", got)
	}
	if got := f.Name(LevelVillage); got != "Bukoto I" {
		t.Errorf("village name = %q, want Bukoto I", got)
	}

	const eps = 1e-6
	if math.Abs(f.BBox.West-32.5) > eps || math.Abs(f.BBox.East-32.7) > eps ||
		math.Abs(f.BBox.South-0.3) > eps || math.Abs(f.BBox.North-0.5) > eps {
		t.Errorf("bbox = %+v, want [32.5 0.3 32.7 0.5]", f.BBox)
	}
	if math.Abs(f.Centroid.Lng-32.6) > eps || math.Abs(f.Centroid.Lat-0.4) > eps {
		t.Errorf("centroid = %+v, want (32.6, 0.4)", f.Centroid)
	}
}

func TestParseLegacyPropertyKeys(t *testing.T) {
	props := map[string]any{
		"DNAME2016": "GULU",
		"CNAME2016": "GULU EAST",
		"SNAME2016": "BARDEGE",
		"PNAME2016": "PECE",
		"VNAME2016": "PECE PRISON",
	}
	data := marshalCollection(t, []map[string]any{squareFeature(props, 32.2, 2.7, 0.1)})

	features, err := ParseFeatureCollection(data)
	if err != nil {
		t.Fatalf("ParseFeatureCollection: %v", err)
	}
	f := features[0]
	if got := f.Name(LevelDistrict); got != "GULU" {
		t.Errorf("district from legacy key = %q, want GULU", got)
	}
	if got := f.Name(LevelRegion); got != "" {
		t.Errorf("region = %q, want empty (not in payload)", got)
	}
}

func TestParseMultiPolygon(t *testing.T) {
	feature := map[string]any{
		"type": "Feature",
		"geometry": map[string]any{
			"type": "MultiPolygon",
			"coordinates": [][][][]float64{
				{{{30.0, -1.0}, {30.2, -1.0}, {30.2, -0.8}, {30.0, -1.0}}},
				{{{30.4, -0.6}, {30.6, -0.6}, {30.6, -0.4}, {30.4, -0.6}}},
			},
		},
		"properties": map[string]any{"village": "Ssese"},
	}
	features, err := ParseFeatureCollection(marshalCollection(t, []map[string]any{feature}))
	if err != nil {
		t.Fatalf("ParseFeatureCollection: %v", err)
	}
	f := features[0]
	const eps = 1e-6
	if math.Abs(f.BBox.West-30.0) > eps || math.Abs(f.BBox.East-30.6) > eps {
		t.Errorf("multipolygon bbox spans %v..%v, want 30.0..30.6", f.BBox.West, f.BBox.East)
	}
}

func TestParseDropsBadGeometry(t *testing.T) {
	good := squareFeature(map[string]any{"village": "Good"}, 31.0, 1.0, 0.1)
	bad := map[string]any{
		"type":       "Feature",
		"geometry":   map[string]any{"type": "Point", "coordinates": []float64{31.0, 1.0}},
		"properties": map[string]any{"village": "Bad"},
	}
	features, err := ParseFeatureCollection(marshalCollection(t, []map[string]any{bad, good}))
	if err != nil {
		t.Fatalf("ParseFeatureCollection: %v", err)
	}
	if len(features) != 1 || features[0].Name(LevelVillage) != "Good" {
		t.Fatalf("parsed %d features, want only the polygon one", len(features))
	}
}

func TestParseInvalidPayloads(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte("not json at all")},
		{"wrong type", []byte(`{"type":"Feature","features":[]}`)},
		{"empty collection", []byte(`{"type":"FeatureCollection","features":[]}`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseFeatureCollection(tc.data)
			if !errors.Is(err, apperrors.ErrPayloadInvalid) {
				t.Errorf("error = %v, want ErrPayloadInvalid", err)
			}
		})
	}
}
