package generator

import (
	"errors"
	"fmt"

	"github.com/fsi-demo/datakit/internal/domain"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid generator config")

// CategoryWeight is one row of the category table: a category name, its
// selection weight, and the amount range a normal (non-anomalous) draw for
// that category must land in.
type CategoryWeight struct {
	Category  domain.Category
	Weight    int
	MinAmount float64
	MaxAmount float64
}

// Config holds the generator configuration. It is fixed for the lifetime of a
// Generator; build a new Generator to change it.
type Config struct {
	// CustomerIDMin and CustomerIDMax bound the closed interval customer ids
	// are drawn from.
	CustomerIDMin int
	CustomerIDMax int

	// Categories is the ordered category table. Weights are relative; the
	// defaults sum to 100 so each weight reads as a percentage.
	Categories []CategoryWeight

	// AnomalyProbability is the per-transaction chance of an anomaly,
	// independent of the category draw.
	AnomalyProbability float64

	// AnomalyAmountMin and AnomalyAmountMax bound anomalous amounts. The
	// interval must sit strictly above every category ceiling so anomalies
	// stay distinguishable by magnitude alone.
	AnomalyAmountMin float64
	AnomalyAmountMax float64
}

// DefaultConfig returns the demo configuration: 100 customers (1001-1100),
// the ten leisure/lifestyle categories with weights 40,15,10,10,7,5,5,3,3,2,
// a 5% anomaly rate, and anomalous amounts in [25000, 75000].
func DefaultConfig() Config {
	return Config{
		CustomerIDMin: 1001,
		CustomerIDMax: 1100,
		Categories: []CategoryWeight{
			{domain.LeisurePayment, 40, 50, 500},
			{domain.SubscriptionFee, 15, 10, 100},
			{domain.TravelExpense, 10, 200, 2000},
			{domain.Shopping, 10, 30, 800},
			{domain.Dining, 7, 20, 200},
			{domain.Entertainment, 5, 25, 300},
			{domain.FitnessWellness, 5, 50, 500},
			{domain.Education, 3, 100, 1000},
			{domain.LuxuryPurchase, 3, 500, 5000},
			{domain.Miscellaneous, 2, 20, 300},
		},
		AnomalyProbability: 0.05,
		AnomalyAmountMin:   25000,
		AnomalyAmountMax:   75000,
	}
}

// Validate checks the configuration invariants. Generation operations cannot
// fail at runtime, so every contract violation must be caught here, before a
// Generator is constructed.
func (c Config) Validate() error {
	if c.CustomerIDMin > c.CustomerIDMax {
		return fmt.Errorf("%w: customer id range [%d, %d] is empty",
			ErrInvalidConfig, c.CustomerIDMin, c.CustomerIDMax)
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("%w: category table is empty", ErrInvalidConfig)
	}
	if c.AnomalyProbability < 0 || c.AnomalyProbability > 1 {
		return fmt.Errorf("%w: anomaly probability %v outside [0, 1]",
			ErrInvalidConfig, c.AnomalyProbability)
	}
	if c.AnomalyAmountMin >= c.AnomalyAmountMax {
		return fmt.Errorf("%w: anomaly amount range [%v, %v] is degenerate",
			ErrInvalidConfig, c.AnomalyAmountMin, c.AnomalyAmountMax)
	}

	total := 0
	for _, cw := range c.Categories {
		if cw.Weight < 0 {
			return fmt.Errorf("%w: category %q has negative weight %d",
				ErrInvalidConfig, cw.Category, cw.Weight)
		}
		total += cw.Weight
		if cw.MinAmount >= cw.MaxAmount {
			return fmt.Errorf("%w: category %q amount range [%v, %v] is degenerate",
				ErrInvalidConfig, cw.Category, cw.MinAmount, cw.MaxAmount)
		}
		if cw.MaxAmount >= c.AnomalyAmountMin {
			return fmt.Errorf("%w: category %q ceiling %v overlaps anomaly range starting at %v",
				ErrInvalidConfig, cw.Category, cw.MaxAmount, c.AnomalyAmountMin)
		}
	}
	if total <= 0 {
		return fmt.Errorf("%w: total category weight %d is not positive",
			ErrInvalidConfig, total)
	}

	return nil
}
