// invalidate is an operator tool that publishes a tally-update event,
// forcing every process sharing the results cache to refetch an election's
// datasets. Used when tallies are corrected out-of-band.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/Pracylop/uganda-electoral-map-sub003/internal/results"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/config"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/kafka"
	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "configs/boundaryd.yaml", "path to config file")
	electionID := flag.String("election", "", "election identifier to invalidate (required)")
	district := flag.String("district", "", "optional district the correction applies to")
	flag.Parse()

	if *electionID == "" {
		fmt.Fprintln(os.Stderr, "usage: invalidate -election <id> [-district <name>]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ResultsInvalidate)
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	event := results.TallyEvent{
		ElectionID: *electionID,
		District:   *district,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := producer.Publish(ctx, kafka.Event{Key: *electionID, Value: event}); err != nil {
		slog.Error("failed to publish invalidation", "election_id", *electionID, "error", err)
		os.Exit(1)
	}
	slog.Info("invalidation published", "election_id", *electionID, "district", *district)
}
