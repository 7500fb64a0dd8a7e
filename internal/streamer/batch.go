package streamer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fsi-demo/datakit/internal/domain"
	"github.com/fsi-demo/datakit/internal/generator"
)

// BatchSink accepts a full batch of transactions at once. The stage-file path
// implements this by writing an NDJSON file and queueing its upload.
type BatchSink interface {
	Flush(ctx context.Context, txns []domain.Transaction) error
}

// BatchStats extends Stats with batch accounting.
type BatchStats struct {
	Stats
	Batches       int
	FailedBatches int
}

// BatchStreamer generates at a fixed rate but hands records to the sink in
// batches of batchSize; the final partial batch is flushed when the run ends.
type BatchStreamer struct {
	gen       *generator.Generator
	sink      BatchSink
	rate      float64
	batchSize int
	log       zerolog.Logger
}

// NewBatch builds a BatchStreamer. Rate defaults to 1 TPS, batchSize to 100.
func NewBatch(gen *generator.Generator, sink BatchSink, rate float64, batchSize int, log zerolog.Logger) *BatchStreamer {
	if rate <= 0 {
		rate = 1
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &BatchStreamer{gen: gen, sink: sink, rate: rate, batchSize: batchSize, log: log}
}

// Run streams until ctx is cancelled or duration elapses (zero means no
// bound). A full batch flushes inline; the closing partial batch flushes on a
// short detached context so cancellation doesn't drop generated records.
func (s *BatchStreamer) Run(ctx context.Context, duration time.Duration) BatchStats {
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	interval := time.Duration(float64(time.Second) / s.rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	stats := BatchStats{Stats: Stats{Started: time.Now()}}
	batch := make([]domain.Transaction, 0, s.batchSize)

	s.log.Info().
		Float64("rate_tps", s.rate).
		Int("batch_size", s.batchSize).
		Msg("Starting batch streaming")

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
				s.flush(flushCtx, batch, &stats)
				cancel()
			}
			stats.Finished = time.Now()
			s.log.Info().
				Int("generated", stats.Generated).
				Int("batches", stats.Batches).
				Int("failed_batches", stats.FailedBatches).
				Int("anomalies", stats.Anomalies).
				Msg("Batch streaming finished")
			return stats
		case <-ticker.C:
			txn := s.gen.GenerateTransaction(time.Now())
			stats.Generated++
			if txn.IsAnomaly {
				stats.Anomalies++
			}
			batch = append(batch, txn)

			if len(batch) >= s.batchSize {
				s.flush(ctx, batch, &stats)
				batch = make([]domain.Transaction, 0, s.batchSize)
			}
		}
	}
}

func (s *BatchStreamer) flush(ctx context.Context, batch []domain.Transaction, stats *BatchStats) {
	if err := s.sink.Flush(ctx, batch); err != nil {
		stats.FailedBatches++
		s.log.Warn().Err(err).Int("batch_len", len(batch)).Msg("Batch flush failed")
		return
	}
	stats.Batches++
	stats.Sent += len(batch)
}
