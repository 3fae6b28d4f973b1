package results

import (
	"context"
	"log/slog"

	"github.com/Pracylop/uganda-electoral-map-sub003/internal/cache"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/kafka"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/logger"
)

// Invalidator drops cached tally datasets when a TallyEvent arrives. The
// in-process tier is cleared synchronously inside the handler; the
// persistent tier clears asynchronously behind it, which also refreshes
// sibling processes sharing that tier.
type Invalidator struct {
	tiers  *cache.Tiered
	logger *slog.Logger
}

// NewInvalidator creates an Invalidator over the given cache.
func NewInvalidator(tiers *cache.Tiered) *Invalidator {
	return &Invalidator{
		tiers:  tiers,
		logger: logger.WithComponent("results-invalidator"),
	}
}

// Handle is a kafka.MessageHandler for the results-invalidate topic.
func (iv *Invalidator) Handle(ctx context.Context, key []byte, value []byte) error {
	event, err := kafka.DecodeJSON[TallyEvent](value)
	if err != nil {
		// Poison messages are logged and committed, not redelivered forever.
		iv.logger.Error("undecodable tally event", "key", string(key), "error", err)
		return nil
	}
	if event.ElectionID == "" {
		iv.logger.Warn("tally event without election id", "key", string(key))
		return nil
	}
	removed := iv.tiers.Invalidate(ctx, KeyPrefix(event.ElectionID)+":*")
	iv.logger.Info("tally caches invalidated",
		"election_id", event.ElectionID,
		"district", event.District,
		"memory_entries_removed", removed,
	)
	return nil
}
