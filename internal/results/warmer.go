package results

import (
	"context"
	"log/slog"
	"time"

	"github.com/Pracylop/uganda-electoral-map-sub003/internal/boundary"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/config"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/logger"
)

// Warmer periodically refreshes the configured tally datasets through the
// Provider, so dashboard processes sharing the persistent tier never pay the
// store round-trip on a user request. The refresh interval tracks the results
// TTL: each dataset is re-fetched just as its cached copy goes stale.
type Warmer struct {
	provider  *Provider
	elections []string
	levels    []boundary.Level
	interval  time.Duration
	logger    *slog.Logger
}

// NewWarmer creates a Warmer for the configured elections and levels. Unknown
// level names are logged and skipped.
func NewWarmer(provider *Provider, cfg config.ResultsConfig, interval time.Duration) *Warmer {
	log := logger.WithComponent("results-warmer")
	levels := make([]boundary.Level, 0, len(cfg.WarmLevels))
	for _, name := range cfg.WarmLevels {
		l, ok := boundary.ParseLevel(name)
		if !ok {
			log.Warn("unknown warm level, skipping", "level", name)
			continue
		}
		levels = append(levels, l)
	}
	if len(levels) == 0 {
		levels = []boundary.Level{boundary.LevelDistrict}
	}
	return &Warmer{
		provider:  provider,
		elections: cfg.WarmElections,
		levels:    levels,
		interval:  interval,
		logger:    log,
	}
}

// Run refreshes every configured dataset once immediately, then on each tick
// until ctx is cancelled.
func (w *Warmer) Run(ctx context.Context) {
	w.refresh(ctx)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *Warmer) refresh(ctx context.Context) {
	for _, election := range w.elections {
		for _, level := range w.levels {
			records, err := w.provider.VotesByUnit(ctx, election, level)
			if err != nil {
				w.logger.Warn("dataset refresh failed",
					"election_id", election,
					"level", level.String(),
					"error", err,
				)
				continue
			}
			w.logger.Debug("dataset refreshed",
				"election_id", election,
				"level", level.String(),
				"units", len(records),
			)
		}
	}
}
