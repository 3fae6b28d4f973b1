package results

import (
	"testing"
	"time"

	"github.com/Pracylop/uganda-electoral-map-sub003/internal/boundary"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/config"
)

func TestNewWarmerParsesLevels(t *testing.T) {
	w := NewWarmer(nil, config.ResultsConfig{
		WarmElections: []string{"ug-2021"},
		WarmLevels:    []string{"district", "village", "county"},
	}, time.Minute)

	want := []boundary.Level{boundary.LevelDistrict, boundary.LevelVillage}
	if len(w.levels) != len(want) {
		t.Fatalf("parsed %d levels, want %d (unknown level skipped)", len(w.levels), len(want))
	}
	for i, l := range want {
		if w.levels[i] != l {
			t.Errorf("level %d = %v, want %v", i, w.levels[i], l)
		}
	}
}

func TestNewWarmerDefaultsToDistrict(t *testing.T) {
	w := NewWarmer(nil, config.ResultsConfig{
		WarmElections: []string{"ug-2021"},
		WarmLevels:    []string{"county"},
	}, time.Minute)

	if len(w.levels) != 1 || w.levels[0] != boundary.LevelDistrict {
		t.Errorf("levels = %v, want [district]", w.levels)
	}
}
