// Package streamer drives live transaction generation: a single-goroutine,
// fixed-rate loop that generates one record per tick and hands it to a sink.
// The loop never retries a failed sink call; retry policy belongs to the
// collaborator behind the sink.
package streamer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fsi-demo/datakit/internal/domain"
	"github.com/fsi-demo/datakit/internal/generator"
)

// Sink accepts one transaction record and reports success or failure. The
// diagnostic anomaly flag is on the record for the streamer's own stats; sink
// implementations must not persist it.
type Sink interface {
	InsertTransaction(ctx context.Context, t domain.Transaction) error
}

// Stats summarizes a streaming run.
type Stats struct {
	Generated int
	Sent      int
	Failed    int
	Anomalies int
	Started   time.Time
	Finished  time.Time
}

// EffectiveTPS is the achieved generation rate over the run.
func (s Stats) EffectiveTPS() float64 {
	elapsed := s.Finished.Sub(s.Started).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.Generated) / elapsed
}

// Streamer runs the direct-insert streaming loop.
type Streamer struct {
	gen  *generator.Generator
	sink Sink
	rate float64
	log  zerolog.Logger
}

// New builds a Streamer generating rate transactions per second. A rate of
// zero or below falls back to one per second.
func New(gen *generator.Generator, sink Sink, rate float64, log zerolog.Logger) *Streamer {
	if rate <= 0 {
		rate = 1
	}
	return &Streamer{gen: gen, sink: sink, rate: rate, log: log}
}

// Run streams until ctx is cancelled or duration elapses (zero means no
// bound). Cancellation is checked once per tick; an in-flight sink call is
// not interrupted. The returned stats cover everything generated.
func (s *Streamer) Run(ctx context.Context, duration time.Duration) Stats {
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	interval := time.Duration(float64(time.Second) / s.rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	stats := Stats{Started: time.Now()}
	lastReport := stats.Started

	s.log.Info().
		Float64("rate_tps", s.rate).
		Float64("anomaly_rate", s.gen.Config().AnomalyProbability).
		Msg("Starting transaction streaming")

	for {
		select {
		case <-ctx.Done():
			stats.Finished = time.Now()
			s.logSummary(stats)
			return stats
		case <-ticker.C:
			txn := s.gen.GenerateTransaction(time.Now())
			stats.Generated++
			if txn.IsAnomaly {
				stats.Anomalies++
			}

			if err := s.sink.InsertTransaction(ctx, txn); err != nil {
				stats.Failed++
				s.log.Warn().Err(err).Int64("transaction_id", txn.TransactionID).Msg("Sink insert failed")
			} else {
				stats.Sent++
			}

			if time.Since(lastReport) >= 10*time.Second {
				lastReport = time.Now()
				s.log.Info().
					Int("generated", stats.Generated).
					Int("sent", stats.Sent).
					Int("failed", stats.Failed).
					Int("anomalies", stats.Anomalies).
					Msg("Streaming progress")
			}
		}
	}
}

func (s *Streamer) logSummary(stats Stats) {
	s.log.Info().
		Int("generated", stats.Generated).
		Int("sent", stats.Sent).
		Int("failed", stats.Failed).
		Int("anomalies", stats.Anomalies).
		Str("effective_tps", fmt.Sprintf("%.1f", stats.EffectiveTPS())).
		Msg("Streaming finished")
}
