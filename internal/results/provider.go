package results

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Pracylop/uganda-electoral-map-sub003/internal/boundary"
	"github.com/Pracylop/uganda-electoral-map-sub003/internal/cache"
	"github.com/Pracylop/uganda-electoral-map-sub003/internal/choropleth"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/config"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/logger"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/postgres"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/resilience"
)

// Provider reads per-unit tally rows from the results store and shapes them
// into join-ready records. Reads go through the two-tier cache under a short
// TTL; the store itself sits behind a circuit breaker because election-night
// load spikes are exactly when it falls over.
type Provider struct {
	db      *postgres.Client
	tiers   *cache.Tiered
	breaker *resilience.CircuitBreaker
	cfg     config.CacheConfig
	logger  *slog.Logger
}

// NewProvider creates a Provider over the given store and cache.
func NewProvider(db *postgres.Client, tiers *cache.Tiered, cfg config.CacheConfig) *Provider {
	return &Provider{
		db:      db,
		tiers:   tiers,
		breaker: resilience.NewCircuitBreaker("tally-store", resilience.CircuitBreakerConfig{}),
		cfg:     cfg,
		logger:  logger.WithComponent("results-provider"),
	}
}

// DatasetKey is the cache key of one election's dataset at one level.
func DatasetKey(electionID string, level boundary.Level) string {
	return KeyPrefix(electionID) + ":" + level.String()
}

// VotesByUnit returns one record per administrative unit at the given level,
// with per-candidate vote counts and a total. On a fetch failure the last
// cached dataset is served if it is still inside the stale grace window.
func (p *Provider) VotesByUnit(ctx context.Context, electionID string, level boundary.Level) ([]choropleth.Record, error) {
	key := DatasetKey(electionID, level)
	records, err := cache.GetOrFetch(ctx, p.tiers, key, p.cfg.ResultsTTL, func(ctx context.Context) ([]choropleth.Record, error) {
		var fetched []choropleth.Record
		err := p.breaker.Execute(func() error {
			var qerr error
			fetched, qerr = p.queryTallies(ctx, electionID, level)
			return qerr
		})
		return fetched, err
	})
	if err == nil {
		return records, nil
	}

	if stale, ok := cache.GetCached[[]choropleth.Record](p.tiers, key, p.cfg.ResultsTTL+p.cfg.StaleGrace); ok {
		p.logger.Warn("serving stale tallies after fetch failure",
			"election_id", electionID,
			"level", level.String(),
			"error", err,
		)
		return stale, nil
	}
	return nil, err
}

func (p *Provider) queryTallies(ctx context.Context, electionID string, level boundary.Level) ([]choropleth.Record, error) {
	rows, err := p.db.DB.QueryContext(ctx,
		`SELECT unit_name, candidate, votes
		   FROM result_tallies
		  WHERE election_id = $1 AND admin_level = $2
		  ORDER BY unit_name, candidate`,
		electionID, int(level),
	)
	if err != nil {
		return nil, fmt.Errorf("querying tallies: %w", err)
	}
	defer rows.Close()

	var records []choropleth.Record
	byUnit := make(map[string]int)
	for rows.Next() {
		var unit, candidate string
		var votes int64
		if err := rows.Scan(&unit, &candidate, &votes); err != nil {
			return nil, fmt.Errorf("scanning tally row: %w", err)
		}
		idx, ok := byUnit[unit]
		if !ok {
			idx = len(records)
			byUnit[unit] = idx
			records = append(records, choropleth.Record{
				UnitName: unit,
				Values:   map[string]any{"total_votes": int64(0)},
			})
		}
		records[idx].Values[candidate] = votes
		records[idx].Values["total_votes"] = records[idx].Values["total_votes"].(int64) + votes
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading tally rows: %w", err)
	}
	p.logger.Debug("tallies fetched",
		"election_id", electionID,
		"level", level.String(),
		"units", len(records),
	)
	return records, nil
}
