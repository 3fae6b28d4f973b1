// Package benchmark contains Go benchmarks for the boundary index build and
// the choropleth join path, measuring throughput and allocation behaviour.
package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Pracylop/uganda-electoral-map-sub003/internal/boundary"
	"github.com/Pracylop/uganda-electoral-map-sub003/internal/cache"
	"github.com/Pracylop/uganda-electoral-map-sub003/internal/choropleth"
	"github.com/Pracylop/uganda-electoral-map-sub003/internal/names"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/config"
)

// syntheticPayload builds a boundary payload with the given number of village
// features spread over districts of ~50 villages each, mirroring the real
// hierarchy depth.
func syntheticPayload(b *testing.B, villages int) []byte {
	b.Helper()
	features := make([]map[string]any, 0, villages)
	for i := 0; i < villages; i++ {
		district := i / 50
		features = append(features, map[string]any{
			"type": "Feature",
			"geometry": map[string]any{
				"type": "Polygon",
				"coordinates": [][][]float64{{
					{30.0, 0.5}, {30.2, 0.5}, {30.2, 0.7}, {30.0, 0.5},
				}},
			},
			"properties": map[string]any{
				"region":       fmt.Sprintf("Region %d", district/30),
				"district":     fmt.Sprintf("District %d", district),
				"constituency": fmt.Sprintf("Constituency %d", i/25),
				"subcounty":    fmt.Sprintf("Subcounty %d", i/10),
				"parish":       fmt.Sprintf("Parish %d", i/5),
				"village":      fmt.Sprintf("Village %d", i),
			},
		})
	}
	payload, err := json.Marshal(map[string]any{
		"type":     "FeatureCollection",
		"features": features,
	})
	if err != nil {
		b.Fatal(err)
	}
	return payload
}

func loadedIndex(b *testing.B, villages int) *boundary.Index {
	b.Helper()
	payload := syntheticPayload(b, villages)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	b.Cleanup(srv.Close)

	tiers := cache.NewTiered(cache.NewMemory(), nil, nil, config.CacheConfig{
		BoundaryTTL: time.Hour,
		ResultsTTL:  time.Minute,
		ReadTimeout: time.Second,
	})
	ix := boundary.New(boundary.NewFetcher(config.BoundaryConfig{
		PayloadURL:   srv.URL,
		FetchTimeout: time.Minute,
	}), tiers, nil, time.Hour)
	if err := ix.Load(context.Background()); err != nil {
		b.Fatal(err)
	}
	return ix
}

// BenchmarkNormalize measures single-name normalization cost, which sits on
// every record and every leaf of every join.
func BenchmarkNormalize(b *testing.B) {
	inputs := []string{
		"KAMPALA",
		"Mbarara Municipality",
		"kira  town  council",
		"FORT_PORTAL",
		"Luwero",
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = names.Normalize(inputs[i%len(inputs)])
	}
}

// BenchmarkIndexBuild measures parse-plus-build time from a cached payload at
// various payload sizes.
func BenchmarkIndexBuild(b *testing.B) {
	sizes := []int{1000, 10000}
	for _, villages := range sizes {
		b.Run(fmt.Sprintf("villages_%d", villages), func(b *testing.B) {
			ix := loadedIndex(b, villages)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				ix.Clear()
				if err := ix.Load(context.Background()); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkJoin measures a national district-level join with records covering
// half the districts.
func BenchmarkJoin(b *testing.B) {
	sizes := []int{1000, 10000}
	for _, villages := range sizes {
		b.Run(fmt.Sprintf("villages_%d", villages), func(b *testing.B) {
			engine := choropleth.New(loadedIndex(b, villages), nil)
			records := make([]choropleth.Record, 0, villages/100)
			for d := 0; d < villages/100; d++ {
				records = append(records, choropleth.Record{
					UnitName: fmt.Sprintf("District %d", d),
					Values:   map[string]any{"votes": d * 100},
				})
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := engine.Join(boundary.LevelDistrict, records, nil); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkJoinParallel measures concurrent join throughput over one shared
// index, the dashboard's steady-state shape.
func BenchmarkJoinParallel(b *testing.B) {
	engine := choropleth.New(loadedIndex(b, 5000), nil)
	records := []choropleth.Record{
		{UnitName: "District 0", Values: map[string]any{"votes": 100}},
		{UnitName: "District 1", Values: map[string]any{"votes": 200}},
	}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := engine.Join(boundary.LevelDistrict, records, nil); err != nil {
				b.Fatal(err)
			}
		}
	})
}
