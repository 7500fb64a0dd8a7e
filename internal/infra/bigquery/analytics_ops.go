package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
)

// DailyVolume is one row of the per-date transaction summary.
type DailyVolume struct {
	Date      civil.Date `bigquery:"transaction_date"`
	Count     int64      `bigquery:"daily_count"`
	Total     float64    `bigquery:"daily_volume"`
	AvgAmount float64    `bigquery:"avg_amount"`
	MinAmount float64    `bigquery:"min_amount"`
	MaxAmount float64    `bigquery:"max_amount"`
}

// QueryDailyVolume aggregates count and amount statistics per transaction
// date over the trailing daysBack window, newest first.
func (s *Store) QueryDailyVolume(ctx context.Context, daysBack int) ([]*DailyVolume, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			transaction_date,
			COUNT(*) AS daily_count,
			CAST(SUM(transaction_amount) AS FLOAT64) AS daily_volume,
			CAST(AVG(transaction_amount) AS FLOAT64) AS avg_amount,
			CAST(MIN(transaction_amount) AS FLOAT64) AS min_amount,
			CAST(MAX(transaction_amount) AS FLOAT64) AS max_amount
		FROM %s
		WHERE transaction_date >= DATE_SUB(CURRENT_DATE(), INTERVAL @days_back DAY)
		GROUP BY transaction_date
		ORDER BY transaction_date DESC
	`, s.qualified(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "days_back", Value: daysBack},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryDailyVolume: query read: %w", err)
	}

	var rows []*DailyVolume
	for {
		var r DailyVolume
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryDailyVolume: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}

// AmountOutlier is one suspicious transaction flagged by the warehouse-side
// z-score query.
type AmountOutlier struct {
	TransactionID int64      `bigquery:"transaction_id"`
	CustomerID    int64      `bigquery:"customer_id"`
	Date          civil.Date `bigquery:"transaction_date"`
	Amount        float64    `bigquery:"transaction_amount"`
	Type          string     `bigquery:"transaction_type"`
	ZScore        float64    `bigquery:"z_score"`
}

// QueryAmountOutliers finds transactions whose amount deviates from their
// category's mean by more than zThreshold standard deviations over the
// trailing daysBack window. The statistics live entirely in SQL; nothing is
// computed client-side.
func (s *Store) QueryAmountOutliers(ctx context.Context, daysBack int, zThreshold float64) ([]*AmountOutlier, error) {
	q := s.client.Query(fmt.Sprintf(`
		WITH stats AS (
			SELECT
				transaction_type,
				AVG(CAST(transaction_amount AS FLOAT64)) AS mean_amount,
				STDDEV(CAST(transaction_amount AS FLOAT64)) AS stddev_amount
			FROM %[1]s
			WHERE transaction_date >= DATE_SUB(CURRENT_DATE(), INTERVAL @days_back DAY)
			GROUP BY transaction_type
		)
		SELECT
			t.transaction_id,
			t.customer_id,
			t.transaction_date,
			CAST(t.transaction_amount AS FLOAT64) AS transaction_amount,
			t.transaction_type,
			(CAST(t.transaction_amount AS FLOAT64) - st.mean_amount)
				/ NULLIF(st.stddev_amount, 0) AS z_score
		FROM %[1]s t
		JOIN stats st USING (transaction_type)
		WHERE t.transaction_date >= DATE_SUB(CURRENT_DATE(), INTERVAL @days_back DAY)
		  AND st.stddev_amount IS NOT NULL
		  AND st.stddev_amount > 0
		  AND ABS(CAST(t.transaction_amount AS FLOAT64) - st.mean_amount)
				/ st.stddev_amount > @z_threshold
		ORDER BY z_score DESC
	`, s.qualified(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "days_back", Value: daysBack},
		{Name: "z_threshold", Value: zThreshold},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryAmountOutliers: query read: %w", err)
	}

	var rows []*AmountOutlier
	for {
		var r AmountOutlier
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryAmountOutliers: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
