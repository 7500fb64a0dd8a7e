package generator

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fsi-demo/datakit/internal/domain"
)

func newTestGenerator(t *testing.T, seed int64) *Generator {
	t.Helper()
	g, err := New(DefaultConfig(), rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return g
}

func TestGenerateAmount_NormalWithinCategoryRange(t *testing.T) {
	g := newTestGenerator(t, 1)

	for _, cw := range DefaultConfig().Categories {
		min := decimal.NewFromFloat(cw.MinAmount)
		max := decimal.NewFromFloat(cw.MaxAmount)
		for i := 0; i < 1000; i++ {
			amount := g.GenerateAmount(cw.Category, false)
			if amount.LessThan(min) || amount.GreaterThan(max) {
				t.Fatalf("amount %s for category %s outside [%s, %s]",
					amount, cw.Category, min, max)
			}
			if amount.Exponent() < -2 {
				t.Fatalf("amount %s for category %s has more than 2 decimals", amount, cw.Category)
			}
		}
	}
}

func TestGenerateAmount_AnomalyWithinAnomalyRange(t *testing.T) {
	g := newTestGenerator(t, 2)
	cfg := DefaultConfig()

	min := decimal.NewFromFloat(cfg.AnomalyAmountMin)
	max := decimal.NewFromFloat(cfg.AnomalyAmountMax)
	for i := 0; i < 1000; i++ {
		amount := g.GenerateAmount(domain.LeisurePayment, true)
		if amount.LessThan(min) || amount.GreaterThan(max) {
			t.Fatalf("anomalous amount %s outside [%s, %s]", amount, min, max)
		}
	}
}

// The anomaly floor must sit strictly above every category ceiling, so an
// anomalous amount is always recognizable by magnitude alone.
func TestAnomalyRangeDisjointFromCategoryRanges(t *testing.T) {
	cfg := DefaultConfig()
	for _, cw := range cfg.Categories {
		if cw.MaxAmount >= cfg.AnomalyAmountMin {
			t.Errorf("category %s ceiling %v overlaps anomaly floor %v",
				cw.Category, cw.MaxAmount, cfg.AnomalyAmountMin)
		}
	}
}

func TestGenerateAmount_UnknownCategoryUsesFallbackRange(t *testing.T) {
	g := newTestGenerator(t, 3)

	min := decimal.NewFromInt(fallbackMinAmount)
	max := decimal.NewFromInt(fallbackMaxAmount)
	for i := 0; i < 200; i++ {
		amount := g.GenerateAmount(domain.Category("not_a_real_category"), false)
		if amount.LessThan(min) || amount.GreaterThan(max) {
			t.Fatalf("fallback amount %s outside [%s, %s]", amount, min, max)
		}
	}
}

// Chi-square goodness of fit over the category draw: with the default
// weights and 100k draws, the statistic should fall under the 95% critical
// value for 9 degrees of freedom.
func TestCategorySelectionMatchesWeights(t *testing.T) {
	const draws = 100000
	const chiSquareCritical95df9 = 16.919

	g := newTestGenerator(t, 4)
	cfg := DefaultConfig()

	counts := make(map[domain.Category]int)
	ts := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	for i := 0; i < draws; i++ {
		counts[g.GenerateTransaction(ts).Type]++
	}

	stat := 0.0
	for _, cw := range cfg.Categories {
		expected := float64(draws) * float64(cw.Weight) / 100
		observed := float64(counts[cw.Category])
		diff := observed - expected
		stat += diff * diff / expected
	}

	if stat > chiSquareCritical95df9 {
		t.Errorf("chi-square statistic %.3f exceeds 95%% critical value %.3f; counts: %v",
			stat, chiSquareCritical95df9, counts)
	}
}

func TestGenerateTransaction_FixedSeedScenario(t *testing.T) {
	g := newTestGenerator(t, 42)
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	txn := g.GenerateTransaction(ts)

	if txn.CustomerID < 1001 || txn.CustomerID > 1100 {
		t.Errorf("customer id %d outside [1001, 1100]", txn.CustomerID)
	}
	if !domain.ValidCategory(txn.Type) {
		t.Errorf("unknown transaction type %q", txn.Type)
	}
	if !txn.Amount.IsPositive() {
		t.Errorf("amount %s is not positive", txn.Amount)
	}
	if got := txn.Date.String(); got != "2024-01-15" {
		t.Errorf("transaction date = %q, want 2024-01-15", got)
	}
}

func TestGenerateTransaction_IDDerivedFromTimestamp(t *testing.T) {
	g := newTestGenerator(t, 5)
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 100; i++ {
		id := g.GenerateTransaction(ts).TransactionID
		base := ts.UnixMilli()
		if id < base+1 || id > base+999 {
			t.Fatalf("id %d outside [%d, %d]", id, base+1, base+999)
		}
	}
}

func TestGenerateDailyTransactions_CountBounds(t *testing.T) {
	tests := []struct {
		name    string
		date    time.Time
		wantMin int
		wantMax int
	}{
		{
			name:    "weekday keeps bounds",
			date:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), // Monday
			wantMin: 50,
			wantMax: 200,
		},
		{
			name:    "saturday scales by 0.7",
			date:    time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC),
			wantMin: 35,
			wantMax: 140,
		},
		{
			name:    "sunday scales by 0.7",
			date:    time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC),
			wantMin: 35,
			wantMax: 140,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGenerator(t, 6)
			for i := 0; i < 50; i++ {
				got := len(g.GenerateDailyTransactions(tt.date, 50, 200))
				if got < tt.wantMin || got > tt.wantMax {
					t.Fatalf("count %d outside [%d, %d]", got, tt.wantMin, tt.wantMax)
				}
			}
		})
	}
}

func TestGenerateDailyTransactions_SequentialIDs(t *testing.T) {
	g := newTestGenerator(t, 7)
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	txns := g.GenerateDailyTransactions(date, 50, 200)
	for i, txn := range txns {
		want := int64(20240115)*10000 + int64(i) + 1
		if txn.TransactionID != want {
			t.Fatalf("txn %d id = %d, want %d", i, txn.TransactionID, want)
		}
		if txn.Date.String() != "2024-01-15" {
			t.Fatalf("txn %d date = %s, want 2024-01-15", i, txn.Date)
		}
	}
}

func TestGenerateHistoricalData_SpansExactDates(t *testing.T) {
	const days = 365

	g := newTestGenerator(t, 8)
	g.now = func() time.Time {
		return time.Date(2024, 6, 30, 15, 4, 5, 0, time.UTC)
	}

	txns, err := g.GenerateHistoricalData(context.Background(), days)
	if err != nil {
		t.Fatalf("GenerateHistoricalData failed: %v", err)
	}

	seen := make(map[string]bool)
	for _, txn := range txns {
		seen[txn.Date.String()] = true
	}
	if len(seen) != days {
		t.Fatalf("got %d distinct dates, want %d", len(seen), days)
	}

	// No gaps: every date in the window must be represented.
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	for d := end.AddDate(0, 0, -(days - 1)); !d.After(end); d = d.AddDate(0, 0, 1) {
		if !seen[d.Format("2006-01-02")] {
			t.Errorf("date %s missing from historical data", d.Format("2006-01-02"))
		}
	}
}

func TestGenerateHistoricalData_Cancellation(t *testing.T) {
	g := newTestGenerator(t, 9)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.GenerateHistoricalData(ctx, 30); err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}

func TestAnomalyRateConverges(t *testing.T) {
	const draws = 20000

	g := newTestGenerator(t, 10)
	ts := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	anomalies := 0
	for i := 0; i < draws; i++ {
		if g.GenerateTransaction(ts).IsAnomaly {
			anomalies++
		}
	}

	rate := float64(anomalies) / draws
	if rate < 0.03 || rate > 0.07 {
		t.Errorf("anomaly rate %.4f far from configured 0.05", rate)
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty category table", func(c *Config) { c.Categories = nil }},
		{"zero total weight", func(c *Config) {
			for i := range c.Categories {
				c.Categories[i].Weight = 0
			}
		}},
		{"degenerate amount range", func(c *Config) { c.Categories[0].MinAmount = c.Categories[0].MaxAmount }},
		{"anomaly range overlaps category range", func(c *Config) { c.AnomalyAmountMin = 400 }},
		{"degenerate anomaly range", func(c *Config) { c.AnomalyAmountMax = c.AnomalyAmountMin }},
		{"empty customer range", func(c *Config) { c.CustomerIDMin = c.CustomerIDMax + 1 }},
		{"probability above 1", func(c *Config) { c.AnomalyProbability = 1.5 }},
		{"negative probability", func(c *Config) { c.AnomalyProbability = -0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if _, err := New(cfg, nil); err == nil {
				t.Error("expected config validation error, got nil")
			}
		})
	}
}
