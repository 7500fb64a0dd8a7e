package generator

import (
	"github.com/shopspring/decimal"

	"github.com/fsi-demo/datakit/internal/domain"
)

// Summary aggregates a generated batch for the run report: how many records,
// their total amount, and how many carry the anomaly flag. It must be taken
// before export, which drops the flag.
type Summary struct {
	Count       int
	TotalAmount decimal.Decimal
	Anomalies   int
}

// AnomalyShare is the fraction of records flagged anomalous.
func (s Summary) AnomalyShare() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Anomalies) / float64(s.Count)
}

// Summarize folds a batch into its Summary.
func Summarize(txns []domain.Transaction) Summary {
	s := Summary{Count: len(txns), TotalAmount: decimal.Zero}
	for _, t := range txns {
		s.TotalAmount = s.TotalAmount.Add(t.Amount)
		if t.IsAnomaly {
			s.Anomalies++
		}
	}
	return s
}
