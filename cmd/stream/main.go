package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsi-demo/datakit/internal/config"
	"github.com/fsi-demo/datakit/internal/generator"
	infraBQ "github.com/fsi-demo/datakit/internal/infra/bigquery"
	"github.com/fsi-demo/datakit/internal/logger"
	"github.com/fsi-demo/datakit/internal/streamer"
)

func main() {
	log := logger.New()

	rate := flag.Float64("rate", 1.0, "Transactions per second")
	anomalyRate := flag.Float64("anomaly-rate", 0.05, "Probability that a transaction is anomalous")
	duration := flag.Duration("duration", 0, "How long to stream (0 runs until interrupted)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	cfg := config.Load()
	if err := cfg.RequireWarehouse(); err != nil {
		log.Fatal().Err(err).Msg("Missing warehouse configuration")
	}

	store, err := infraBQ.NewStore(ctx, cfg.ProjectID, cfg.DatasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to BigQuery")
	}
	defer store.Close()

	genCfg := generator.DefaultConfig()
	genCfg.AnomalyProbability = *anomalyRate
	gen, err := generator.New(genCfg, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid generator configuration")
	}

	log.Info().
		Float64("rate", *rate).
		Float64("anomaly_rate", *anomalyRate).
		Dur("duration", *duration).
		Msg("Starting streaming")

	stats := streamer.New(gen, store, *rate, log).Run(ctx, *duration)

	fmt.Printf("Streamed %d transactions (%d failed, %d anomalies) at %.2f tx/s\n",
		stats.Sent, stats.Failed, stats.Anomalies, stats.EffectiveTPS())
}
