// Package generator fabricates synthetic transaction and customer records for
// the FSI analytics showcase. Generation is stateless between calls apart
// from the pseudo-random source, so a Generator is safe for concurrent use as
// long as each goroutine owns its own instance (or the host synchronizes the
// shared one).
package generator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/fsi-demo/datakit/internal/domain"
)

// Fallback amount range when a caller asks for a category the table does not
// know about.
const (
	fallbackMinAmount = 50
	fallbackMaxAmount = 500
)

// Daily volume defaults; weekends scale both bounds by weekendFactor.
const (
	DefaultDailyMin = 50
	DefaultDailyMax = 200

	weekendFactor = 0.7
)

// Generator produces synthetic transaction records from a reference clock
// value and a pseudo-random source.
type Generator struct {
	cfg         Config
	ranges      map[domain.Category]CategoryWeight
	totalWeight int
	rng         *rand.Rand
	now         func() time.Time // overridable in tests
}

// New builds a Generator from cfg. The configuration is validated up front;
// generation operations themselves have no failure modes. A nil rng gets a
// time-seeded source.
func New(cfg Config, rng *rand.Rand) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("generator.New: %w", err)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	ranges := make(map[domain.Category]CategoryWeight, len(cfg.Categories))
	total := 0
	for _, cw := range cfg.Categories {
		ranges[cw.Category] = cw
		total += cw.Weight
	}

	return &Generator{
		cfg:         cfg,
		ranges:      ranges,
		totalWeight: total,
		rng:         rng,
		now:         time.Now,
	}, nil
}

// Config returns the configuration the generator was built with.
func (g *Generator) Config() Config {
	return g.cfg
}

// GenerateAmount draws a transaction amount for the given category. Anomalous
// amounts are uniform over the anomaly range; normal amounts follow a normal
// distribution centered on the category range (sd = width/6 keeps ~99.7% of
// raw draws inside) and are clamped into it. The result always has exactly
// two fractional digits and always lies inside the applicable range.
func (g *Generator) GenerateAmount(category domain.Category, isAnomaly bool) decimal.Decimal {
	if isAnomaly {
		v := g.cfg.AnomalyAmountMin + g.rng.Float64()*(g.cfg.AnomalyAmountMax-g.cfg.AnomalyAmountMin)
		return roundIntoRange(v, g.cfg.AnomalyAmountMin, g.cfg.AnomalyAmountMax)
	}

	if cw, ok := g.ranges[category]; ok {
		return g.normalAmount(cw.MinAmount, cw.MaxAmount)
	}
	return g.normalAmount(fallbackMinAmount, fallbackMaxAmount)
}

func (g *Generator) normalAmount(min, max float64) decimal.Decimal {
	mean := (min + max) / 2
	stddev := (max - min) / 6
	v := g.rng.NormFloat64()*stddev + mean
	return roundIntoRange(v, min, max)
}

// roundIntoRange rounds v to two decimals and guarantees the result stays
// inside [lo, hi] even when rounding would nudge it past a bound.
func roundIntoRange(v, lo, hi float64) decimal.Decimal {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	d := decimal.NewFromFloat(v).Round(2)
	if loD := decimal.NewFromFloat(lo); d.LessThan(loD) {
		return loD.RoundCeil(2)
	}
	if hiD := decimal.NewFromFloat(hi); d.GreaterThan(hiD) {
		return hiD.RoundFloor(2)
	}
	return d
}

// GenerateTransaction produces one record for the given timestamp. The id is
// derived from the timestamp's millisecond value plus a random suffix in
// [1, 999]: distinct with overwhelming probability for calls at least 1ms
// apart, not a hard uniqueness guarantee.
func (g *Generator) GenerateTransaction(ts time.Time) domain.Transaction {
	id := ts.UnixMilli() + int64(g.rng.Intn(999)) + 1
	return g.GenerateTransactionWithID(ts, id)
}

// GenerateTransactionWithID produces one record with an explicit id. Batch
// generation uses this to assign date-scoped sequential ids.
func (g *Generator) GenerateTransactionWithID(ts time.Time, id int64) domain.Transaction {
	customerID := g.cfg.CustomerIDMin + g.rng.Intn(g.cfg.CustomerIDMax-g.cfg.CustomerIDMin+1)
	category := g.pickCategory()
	isAnomaly := g.rng.Float64() < g.cfg.AnomalyProbability

	return domain.Transaction{
		TransactionID: id,
		CustomerID:    customerID,
		Date:          civil.DateOf(ts),
		Amount:        g.GenerateAmount(category, isAnomaly),
		Type:          category,
		IsAnomaly:     isAnomaly,
	}
}

// pickCategory draws a category by cumulative weight. Independent across
// calls; the weight table is fixed after construction.
func (g *Generator) pickCategory() domain.Category {
	r := g.rng.Intn(g.totalWeight)
	for _, cw := range g.cfg.Categories {
		r -= cw.Weight
		if r < 0 {
			return cw.Category
		}
	}
	return g.cfg.Categories[len(g.cfg.Categories)-1].Category
}

// GenerateDailyTransactions produces a day's worth of records for date.
// Weekend days scale both count bounds down by 0.7 (truncating). Each record
// gets a timestamp spread through business-plus-evening hours (06:00-23:59)
// and an explicit id of the form YYYYMMDD concatenated with a 4-digit
// 1-based sequence number, monotonic by construction.
func (g *Generator) GenerateDailyTransactions(date time.Time, minCount, maxCount int) []domain.Transaction {
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		minCount = int(float64(minCount) * weekendFactor)
		maxCount = int(float64(maxCount) * weekendFactor)
	}

	if maxCount < minCount {
		maxCount = minCount
	}

	num := minCount + g.rng.Intn(maxCount-minCount+1)
	txns := make([]domain.Transaction, 0, num)

	dateNum := int64(date.Year())*10000 + int64(date.Month())*100 + int64(date.Day())
	for i := 0; i < num; i++ {
		hour := 6 + g.rng.Intn(18) // 6 AM to 11 PM
		minute := g.rng.Intn(60)
		ts := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location())

		id := dateNum*10000 + int64(i) + 1
		txns = append(txns, g.GenerateTransactionWithID(ts, id))
	}

	return txns
}

// GenerateHistoricalData back-fills the days leading up to today (inclusive),
// calling GenerateDailyTransactions with the default volume bounds for each
// calendar date in order. Memory and run time grow linearly with days. The
// context is checked once per day, so a long back-fill can be abandoned
// between days; a partial result is never returned.
func (g *Generator) GenerateHistoricalData(ctx context.Context, days int) ([]domain.Transaction, error) {
	now := g.now()
	endDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startDate := endDate.AddDate(0, 0, -(days - 1))

	var all []domain.Transaction
	for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("GenerateHistoricalData: %w", err)
		}
		all = append(all, g.GenerateDailyTransactions(d, DefaultDailyMin, DefaultDailyMax)...)
	}

	return all, nil
}
