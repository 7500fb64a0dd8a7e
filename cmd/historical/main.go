package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"time"

	"github.com/fsi-demo/datakit/internal/export"
	"github.com/fsi-demo/datakit/internal/generator"
	"github.com/fsi-demo/datakit/internal/logger"
)

func main() {
	log := logger.New()

	days := flag.Int("days", 365, "Number of days to back-fill, ending today")
	seed := flag.Int64("seed", 0, "Random seed (0 uses a time-based seed)")
	outPath := flag.String("out", "historical_transactions.ndjson", "Output NDJSON file")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var rng *rand.Rand
	if *seed != 0 {
		rng = rand.New(rand.NewSource(*seed))
	}

	gen, err := generator.New(generator.DefaultConfig(), rng)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid generator configuration")
	}

	log.Info().Int("days", *days).Msg("Generating historical transactions")

	txns, err := gen.GenerateHistoricalData(ctx, *days)
	if err != nil {
		log.Fatal().Err(err).Msg("Generation failed")
	}

	records := make([]export.Record, len(txns))
	for i, t := range txns {
		records[i] = export.FromTransaction(t)
	}
	if err := export.WriteFile(*outPath, records); err != nil {
		log.Fatal().Err(err).Msg("Failed to write NDJSON file")
	}

	summary := generator.Summarize(txns)
	fmt.Printf("Wrote %d transactions to %s\n", summary.Count, *outPath)
	fmt.Printf("Total amount %s, %d anomalies (%.1f%%)\n",
		summary.TotalAmount.StringFixed(2), summary.Anomalies, summary.AnomalyShare()*100)
}
