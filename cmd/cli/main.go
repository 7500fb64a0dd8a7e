package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/fsi-demo/datakit/internal/config"
	"github.com/fsi-demo/datakit/internal/customers"
	"github.com/fsi-demo/datakit/internal/export"
	"github.com/fsi-demo/datakit/internal/generator"
	infraBQ "github.com/fsi-demo/datakit/internal/infra/bigquery"
	"github.com/fsi-demo/datakit/internal/logger"
	"github.com/fsi-demo/datakit/internal/stage"
	"github.com/fsi-demo/datakit/internal/streamer"
	"github.com/fsi-demo/datakit/internal/uploads"
)

const insertChunkSize = 500

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "historical":
		runHistorical(log)
	case "stream":
		runStream(log)
	case "batch-stream":
		runBatchStream(log)
	case "customers":
		runCustomers(log)
	case "cleanup":
		runCleanup(log)
	case "report":
		runReport(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("FSI Demo Data CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  historical    Generate historical transactions and load or export them")
	fmt.Println("  stream        Stream transactions into the warehouse at a fixed rate")
	fmt.Println("  batch-stream  Stream transactions via staged batch files in GCS")
	fmt.Println("  customers     Generate customer reference data")
	fmt.Println("  cleanup       Delete streamed transactions for a given date")
	fmt.Println("  report        Print daily volume and amount outlier reports")
	fmt.Println("  help          Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func newGenerator(log zerolog.Logger, cfg generator.Config, seed int64) *generator.Generator {
	var rng *rand.Rand
	if seed != 0 {
		rng = rand.New(rand.NewSource(seed))
	}

	gen, err := generator.New(cfg, rng)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid generator configuration")
	}
	return gen
}

// generatorConfig is the default configuration with the anomaly probability
// overridden from the command line.
func generatorConfig(anomalyRate float64) generator.Config {
	cfg := generator.DefaultConfig()
	cfg.AnomalyProbability = anomalyRate
	return cfg
}

func openStore(ctx context.Context, log zerolog.Logger, cfg config.Config) *infraBQ.Store {
	if err := cfg.RequireWarehouse(); err != nil {
		log.Fatal().Err(err).Msg("Missing warehouse configuration")
	}

	store, err := infraBQ.NewStore(ctx, cfg.ProjectID, cfg.DatasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to BigQuery")
	}
	return store
}

func runHistorical(log zerolog.Logger) {
	fs := flag.NewFlagSet("historical", flag.ExitOnError)
	days := fs.Int("days", 365, "Number of days to back-fill, ending today")
	seed := fs.Int64("seed", 0, "Random seed (0 uses a time-based seed)")
	outPath := fs.String("out", "", "Write NDJSON to this file instead of loading")
	load := fs.Bool("load", false, "Insert the generated rows into BigQuery")
	fs.Parse(os.Args[2:])

	if *outPath == "" && !*load {
		log.Fatal().Msg("Error: one of --out or --load is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	gen := newGenerator(log, generator.DefaultConfig(), *seed)

	log.Info().Int("days", *days).Msg("Generating historical transactions")

	txns, err := gen.GenerateHistoricalData(ctx, *days)
	if err != nil {
		log.Fatal().Err(err).Msg("Generation failed")
	}

	summary := generator.Summarize(txns)
	log.Info().Int("transactions", summary.Count).Msg("Generation complete")
	fmt.Printf("Generated %d transactions totaling %s (%d anomalies, %.1f%%)\n",
		summary.Count, summary.TotalAmount.StringFixed(2),
		summary.Anomalies, summary.AnomalyShare()*100)

	if *outPath != "" {
		records := make([]export.Record, len(txns))
		for i, t := range txns {
			records[i] = export.FromTransaction(t)
		}
		if err := export.WriteFile(*outPath, records); err != nil {
			log.Fatal().Err(err).Msg("Failed to write NDJSON file")
		}
		fmt.Printf("Wrote %d transactions to %s\n", len(txns), *outPath)
	}

	if *load {
		cfg := config.Load()
		store := openStore(ctx, log, cfg)
		defer store.Close()

		rows := make([]*infraBQ.TransactionRow, len(txns))
		for i, t := range txns {
			rows[i] = infraBQ.RowFromTransaction(t, infraBQ.DataSourceHistorical)
		}

		for start := 0; start < len(rows); start += insertChunkSize {
			end := start + insertChunkSize
			if end > len(rows) {
				end = len(rows)
			}
			if err := store.InsertTransactions(ctx, rows[start:end]); err != nil {
				log.Fatal().Err(err).Int("offset", start).Msg("Insert failed")
			}
		}
		fmt.Printf("Loaded %d transactions into %s.%s\n", len(rows), cfg.ProjectID, cfg.DatasetID)
	}
}

func runStream(log zerolog.Logger) {
	fs := flag.NewFlagSet("stream", flag.ExitOnError)
	rate := fs.Float64("rate", 1.0, "Transactions per second")
	anomalyRate := fs.Float64("anomaly-rate", 0.05, "Probability that a transaction is anomalous")
	duration := fs.Duration("duration", 0, "How long to stream (0 runs until interrupted)")
	seed := fs.Int64("seed", 0, "Random seed (0 uses a time-based seed)")
	fs.Parse(os.Args[2:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	cfg := config.Load()
	store := openStore(ctx, log, cfg)
	defer store.Close()

	gen := newGenerator(log, generatorConfig(*anomalyRate), *seed)
	s := streamer.New(gen, store, *rate, log)

	log.Info().
		Float64("rate", *rate).
		Float64("anomaly_rate", *anomalyRate).
		Dur("duration", *duration).
		Msg("Starting streaming")

	stats := s.Run(ctx, *duration)

	fmt.Printf("Streamed %d transactions (%d failed, %d anomalies) at %.2f tx/s\n",
		stats.Sent, stats.Failed, stats.Anomalies, stats.EffectiveTPS())
}

func runBatchStream(log zerolog.Logger) {
	fs := flag.NewFlagSet("batch-stream", flag.ExitOnError)
	rate := fs.Float64("rate", 10.0, "Transactions per second")
	anomalyRate := fs.Float64("anomaly-rate", 0.05, "Probability that a transaction is anomalous")
	duration := fs.Duration("duration", 0, "How long to stream (0 runs until interrupted)")
	batchSize := fs.Int("batch-size", 100, "Transactions per staged batch file")
	workers := fs.Int("workers", 2, "Concurrent batch upload workers")
	seed := fs.Int64("seed", 0, "Random seed (0 uses a time-based seed)")
	fs.Parse(os.Args[2:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	cfg := config.Load()
	if err := cfg.RequireStage(); err != nil {
		log.Fatal().Err(err).Msg("Missing staging configuration")
	}

	store := openStore(ctx, log, cfg)
	defer store.Close()

	if err := os.MkdirAll(cfg.BatchDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create batch directory")
	}

	queue := uploads.NewQueue(*workers*4, *workers, uploads.NewMemoryStore())
	uploader := stage.NewUploader(cfg.StageBucket)

	// Workers outlive the interrupt signal so the final batch's upload job
	// still runs; Stop bounds the drain below.
	workerCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorkers()
	if err := queue.Start(workerCtx, stage.UploadHandler(uploader, store)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start upload queue")
	}

	sink := &stage.BatchSink{Dir: cfg.BatchDir, Queue: queue}
	gen := newGenerator(log, generatorConfig(*anomalyRate), *seed)
	s := streamer.NewBatch(gen, sink, *rate, *batchSize, log)

	log.Info().
		Float64("rate", *rate).
		Int("batch_size", *batchSize).
		Str("bucket", cfg.StageBucket).
		Msg("Starting batch streaming")

	stats := s.Run(ctx, *duration)

	// Let in-flight uploads drain before exiting.
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
	defer cancel()
	if err := queue.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("Upload queue did not drain cleanly")
	}

	fmt.Printf("Streamed %d transactions in %d batches (%d batches failed)\n",
		stats.Sent, stats.Batches, stats.FailedBatches)
}

func runCustomers(log zerolog.Logger) {
	fs := flag.NewFlagSet("customers", flag.ExitOnError)
	count := fs.Int("count", 100, "Number of customers to generate")
	idStart := fs.Int("id-start", 1001, "First customer ID")
	seed := fs.Int64("seed", 0, "Random seed (0 uses a time-based seed)")
	outPath := fs.String("out", "", "Write NDJSON to this file instead of loading")
	load := fs.Bool("load", false, "Insert the generated customers into BigQuery")
	fs.Parse(os.Args[2:])

	if *outPath == "" && !*load {
		log.Fatal().Msg("Error: one of --out or --load is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var rng *rand.Rand
	if *seed != 0 {
		rng = rand.New(rand.NewSource(*seed))
	}

	gen := customers.New(rng)
	custs := gen.Generate(*count, *idStart)

	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create output file")
		}
		defer f.Close()

		if err := customers.WriteNDJSON(f, custs); err != nil {
			log.Fatal().Err(err).Msg("Failed to write NDJSON file")
		}
		fmt.Printf("Wrote %d customers to %s\n", len(custs), *outPath)
	}

	if *load {
		cfg := config.Load()
		store := openStore(ctx, log, cfg)
		defer store.Close()

		rows := make([]*infraBQ.CustomerRow, len(custs))
		for i, c := range custs {
			rows[i] = infraBQ.RowFromCustomer(c)
		}
		if err := store.InsertCustomers(ctx, rows); err != nil {
			log.Fatal().Err(err).Msg("Insert failed")
		}
		fmt.Printf("Loaded %d customers into %s.%s\n", len(rows), cfg.ProjectID, cfg.DatasetID)
	}
}

func runCleanup(log zerolog.Logger) {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	dateStr := fs.String("date", "", "Date to clean up, YYYY-MM-DD (defaults to today)")
	fs.Parse(os.Args[2:])

	date := civil.DateOf(time.Now())
	if *dateStr != "" {
		var err error
		date, err = civil.ParseDate(*dateStr)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid --date, expected YYYY-MM-DD")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	cfg := config.Load()
	store := openStore(ctx, log, cfg)
	defer store.Close()

	log.Info().Str("date", date.String()).Msg("Deleting streamed transactions")

	if err := store.DeleteStreamingData(ctx, date); err != nil {
		log.Fatal().Err(err).Msg("Cleanup failed")
	}

	fmt.Printf("Deleted streamed transactions for %s\n", date)
}

func runReport(log zerolog.Logger) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	days := fs.Int("days", 30, "How many days back to report over")
	zThreshold := fs.Float64("z", 3.0, "Z-score threshold for amount outliers")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	cfg := config.Load()
	store := openStore(ctx, log, cfg)
	defer store.Close()

	volumes, err := store.QueryDailyVolume(ctx, *days)
	if err != nil {
		log.Fatal().Err(err).Msg("Daily volume query failed")
	}

	fmt.Printf("\n=== Daily Volume (last %d days) ===\n", *days)
	for _, v := range volumes {
		fmt.Printf("%s  %6d txns  %12.2f total  %8.2f avg\n",
			v.Date, v.Count, v.Total, v.AvgAmount)
	}

	outliers, err := store.QueryAmountOutliers(ctx, *days, *zThreshold)
	if err != nil {
		log.Fatal().Err(err).Msg("Outlier query failed")
	}

	fmt.Printf("\n=== Amount Outliers (z > %.1f) ===\n", *zThreshold)
	for _, o := range outliers {
		fmt.Printf("%d  customer=%d  %s  %s  %10.2f  z=%.2f\n",
			o.TransactionID, o.CustomerID, o.Date, o.Type,
			o.Amount, o.ZScore)
	}
	if len(outliers) == 0 {
		fmt.Println("No outliers found.")
	}
	fmt.Println()
}
