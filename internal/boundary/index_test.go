package boundary

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Pracylop/uganda-electoral-map-sub003/internal/cache"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/config"
	apperrors "github.com/Pracylop/uganda-electoral-map-sub003/pkg/errors"
)

// fixtureRows is a miniature of the national payload: two regions, four
// districts (one spelled two ways to exercise normalization merging), and a
// district subdivided into two constituencies with two parishes each.
var fixtureRows = [][6]string{
	{"Central", "Kampala", "Kampala Central", "Nakawa", "Bukoto", "Bukoto I"},
	{"Central", "Kampala", "Kampala Central", "Nakawa", "Bukoto", "Bukoto II"},
	{"Central", "Sembabule", "Mawogola", "Mateete", "Kayunga", "Kayunga A"},
	{"Central", "SSEMBABULE", "Mawogola", "Mateete", "Kayunga", "Kayunga B"},
	{"Northern", "Apac", "Apac East", "Akokoro", "Atar", "Atar Central"},
	{"Northern", "Apac", "Apac East", "Akokoro", "Abedi", "Abedi South"},
	{"Northern", "Apac", "Apac West", "Aduku", "Inomo", "Inomo East"},
	{"Northern", "Apac", "Apac West", "Aduku", "Chawente", "Chawente West"},
	{"Northern", "Gulu", "Gulu East", "Bardege", "Pece", "Pece Prison"},
}

func fixturePayload(t *testing.T) []byte {
	t.Helper()
	features := make([]map[string]any, 0, len(fixtureRows))
	for i, row := range fixtureRows {
		props := map[string]any{
			"region":       row[0],
			"district":     row[1],
			"constituency": row[2],
			"subcounty":    row[3],
			"parish":       row[4],
			"village":      row[5],
		}
		features = append(features, squareFeature(props, 30.0+float64(i)*0.3, 0.5, 0.2))
	}
	return marshalCollection(t, features)
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		t.Fatalf("gzipping fixture: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("closing gzip writer: %v", err)
	}
	return buf.Bytes()
}

// fixtureServer serves the gzipped fixture payload and counts hits. The
// optional gate, when non-nil, blocks every response until closed.
func fixtureServer(t *testing.T, hits *atomic.Int64, gate chan struct{}) *httptest.Server {
	t.Helper()
	payload := gzipBytes(t, fixturePayload(t))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if gate != nil {
			<-gate
		}
		w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestIndex(url string) (*Index, *cache.Tiered) {
	tiers := cache.NewTiered(cache.NewMemory(), nil, nil, config.CacheConfig{
		BoundaryTTL: time.Hour,
		ResultsTTL:  time.Minute,
		StaleGrace:  10 * time.Minute,
		ReadTimeout: time.Second,
	})
	fetcher := NewFetcher(config.BoundaryConfig{
		PayloadURL:   url,
		FetchTimeout: 5 * time.Second,
	})
	return New(fetcher, tiers, nil, time.Hour), tiers
}

func TestLoadBuildsIndex(t *testing.T) {
	var hits atomic.Int64
	srv := fixtureServer(t, &hits, nil)
	ix, _ := newTestIndex(srv.URL)

	if ix.Loaded() {
		t.Fatal("index reports loaded before Load")
	}
	if err := ix.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ix.Loaded() {
		t.Fatal("index not loaded after successful Load")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("payload fetched %d times, want 1", got)
	}

	wantCounts := map[Level]int{
		LevelRegion:       2,
		LevelDistrict:     4,
		LevelConstituency: 5,
		LevelSubcounty:    5,
		LevelParish:       7,
		LevelVillage:      9,
	}
	for l, want := range wantCounts {
		if got := ix.CountAt(l); got != want {
			t.Errorf("CountAt(%s) = %d, want %d", l, got, want)
		}
		if !ix.HasLevel(l) {
			t.Errorf("HasLevel(%s) = false", l)
		}
	}

	wantDistricts := []string{"APAC", "GULU", "KAMPALA", "SSEMBABULE"}
	if got := ix.UniqueNames(LevelDistrict); !reflect.DeepEqual(got, wantDistricts) {
		t.Errorf("UniqueNames(district) = %v, want %v", got, wantDistricts)
	}

	// Two spellings of Ssembabule merge into one bucket holding both leaves.
	if got := len(ix.Leaves(LevelDistrict, "Ssembabule")); got != 2 {
		t.Errorf("Leaves(district, Ssembabule) = %d features, want 2", got)
	}
	if got := len(ix.AllLeaves()); got != len(fixtureRows) {
		t.Errorf("AllLeaves = %d features, want %d", got, len(fixtureRows))
	}

	stats := ix.Stats()
	if stats.TotalFeatures != len(fixtureRows) {
		t.Errorf("Stats.TotalFeatures = %d, want %d", stats.TotalFeatures, len(fixtureRows))
	}
	if stats.PerLevelCounts[LevelVillage] != 9 {
		t.Errorf("Stats village count = %d, want 9", stats.PerLevelCounts[LevelVillage])
	}
	ix.RecordJoin()
	ix.RecordJoin()
	if got := ix.Stats().JoinCount; got != 2 {
		t.Errorf("Stats.JoinCount = %d, want 2", got)
	}
}

func TestLoadSingleFlight(t *testing.T) {
	var hits atomic.Int64
	gate := make(chan struct{})
	srv := fixtureServer(t, &hits, gate)
	ix, _ := newTestIndex(srv.URL)

	const callers = 8
	errs := make([]error, callers)
	var done sync.WaitGroup
	for i := 0; i < callers; i++ {
		done.Add(1)
		go func(i int) {
			defer done.Done()
			errs[i] = ix.Load(context.Background())
		}(i)
	}

	// Wait for the first request to reach the server, give the remaining
	// callers time to pile onto the in-flight load, then let it finish.
	for hits.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	done.Wait()

	if got := hits.Load(); got != 1 {
		t.Errorf("payload fetched %d times under %d concurrent loads, want 1", got, callers)
	}
	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: Load returned %v", i, err)
		}
	}
	if !ix.Loaded() {
		t.Error("index not loaded after concurrent loads")
	}
}

func TestLoadIdempotent(t *testing.T) {
	var hits atomic.Int64
	srv := fixtureServer(t, &hits, nil)
	ix, _ := newTestIndex(srv.URL)

	for i := 0; i < 3; i++ {
		if err := ix.Load(context.Background()); err != nil {
			t.Fatalf("Load #%d: %v", i+1, err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("payload fetched %d times over 3 sequential loads, want 1", got)
	}
}

func TestLoadWarmStartFromCache(t *testing.T) {
	var hits atomic.Int64
	srv := fixtureServer(t, &hits, nil)
	ix, tiers := newTestIndex(srv.URL)

	// A previous process run left the payload in the cache.
	tiers.SetBytes(context.Background(), payloadCacheKey, fixturePayload(t), time.Hour)

	if err := ix.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := hits.Load(); got != 0 {
		t.Errorf("warm start fetched the payload %d times, want 0", got)
	}
	if got := ix.CountAt(LevelVillage); got != 9 {
		t.Errorf("CountAt(village) = %d, want 9", got)
	}
}

func TestLoadServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	ix, _ := newTestIndex(srv.URL)

	err := ix.Load(context.Background())
	if !errors.Is(err, apperrors.ErrBoundariesUnavailable) {
		t.Fatalf("Load error = %v, want ErrBoundariesUnavailable", err)
	}
	if ix.Loaded() {
		t.Error("index reports loaded after failed Load")
	}
	if got := ix.CountAt(LevelDistrict); got != 0 {
		t.Errorf("CountAt(district) = %d after failed Load, want 0", got)
	}
}

func TestLoadInvalidPayload(t *testing.T) {
	empty := gzipBytes(t, []byte(`{"type":"FeatureCollection","features":[]}`))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(empty)
	}))
	t.Cleanup(srv.Close)
	ix, tiers := newTestIndex(srv.URL)

	err := ix.Load(context.Background())
	if !errors.Is(err, apperrors.ErrPayloadInvalid) {
		t.Fatalf("Load error = %v, want ErrPayloadInvalid", err)
	}
	if ix.Loaded() {
		t.Error("index reports loaded after invalid payload")
	}
	// Invalid payloads are never persisted.
	if tiers.Has(payloadCacheKey) {
		t.Error("invalid payload written to the cache")
	}
}

func TestChildrenOf(t *testing.T) {
	var hits atomic.Int64
	srv := fixtureServer(t, &hits, nil)
	ix, _ := newTestIndex(srv.URL)
	if err := ix.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	cases := []struct {
		name        string
		parentLevel Level
		parentName  string
		childLevel  Level
		want        []string
	}{
		{"adjacent", LevelDistrict, "Apac", LevelConstituency, []string{"APAC EAST", "APAC WEST"}},
		{"skip a level", LevelDistrict, "apac", LevelParish, []string{"ABEDI", "ATAR", "CHAWENTE", "INOMO"}},
		{"normalized parent", LevelDistrict, "Sembabule", LevelConstituency, []string{"MAWOGOLA"}},
		{"region to district", LevelRegion, "Northern", LevelDistrict, []string{"APAC", "GULU"}},
		{"unknown parent", LevelDistrict, "Nowhere", LevelConstituency, []string{}},
		{"inverted levels", LevelParish, "Bukoto", LevelDistrict, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ix.ChildrenOf(tc.parentLevel, tc.parentName, tc.childLevel)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ChildrenOf(%s, %q, %s) = %v, want %v",
					tc.parentLevel, tc.parentName, tc.childLevel, got, tc.want)
			}
		})
	}
}

func TestClearAndReload(t *testing.T) {
	var hits atomic.Int64
	srv := fixtureServer(t, &hits, nil)
	ix, _ := newTestIndex(srv.URL)

	if err := ix.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ix.Clear()
	if ix.Loaded() {
		t.Fatal("index reports loaded after Clear")
	}
	if got := ix.CountAt(LevelVillage); got != 0 {
		t.Errorf("CountAt(village) = %d after Clear, want 0", got)
	}

	// The reload is served from the cached payload, not the network.
	if err := ix.Load(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("payload fetched %d times across clear/reload, want 1", got)
	}
	if got := ix.CountAt(LevelVillage); got != 9 {
		t.Errorf("CountAt(village) = %d after reload, want 9", got)
	}
}

func TestFetchSniffsCompression(t *testing.T) {
	payload := fixturePayload(t)

	plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	t.Cleanup(plain.Close)
	compressed := gzipBytes(t, payload)
	gzipped := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(compressed)
	}))
	t.Cleanup(gzipped.Close)

	for name, url := range map[string]string{"plain": plain.URL, "gzipped": gzipped.URL} {
		t.Run(name, func(t *testing.T) {
			f := NewFetcher(config.BoundaryConfig{PayloadURL: url, FetchTimeout: 5 * time.Second})
			got, err := f.Fetch(context.Background())
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("Fetch returned %d bytes, want the %d-byte fixture", len(got), len(payload))
			}
		})
	}
}
