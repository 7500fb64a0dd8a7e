package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/fsi-demo/datakit/internal/domain"
)

// TransactionRow is the fsi_demo.transactions table schema. The generator's
// diagnostic is_anomaly flag has no column: it never reaches the warehouse.
type TransactionRow struct {
	TransactionID int64      `bigquery:"transaction_id"` // REQUIRED
	CustomerID    int64      `bigquery:"customer_id"`    // REQUIRED
	Date          civil.Date `bigquery:"transaction_date"`
	Amount        *big.Rat   `bigquery:"transaction_amount"` // NUMERIC(10,2)
	Type          string     `bigquery:"transaction_type"`

	// DataSource separates the historical back-fill from live streaming rows;
	// cleanup keys on it.
	DataSource string `bigquery:"data_source"`

	BatchID            bigquery.NullString    `bigquery:"batch_id"`            // NULLABLE, stage-file path only
	StreamingTimestamp bigquery.NullTimestamp `bigquery:"streaming_timestamp"` // NULLABLE, stage-file path only

	IngestionTS time.Time `bigquery:"ingestion_ts"`
}

// RowFromTransaction maps a generated transaction into its warehouse row.
func RowFromTransaction(t domain.Transaction, dataSource string) *TransactionRow {
	return &TransactionRow{
		TransactionID: t.TransactionID,
		CustomerID:    int64(t.CustomerID),
		Date:          t.Date,
		Amount:        t.Amount.Rat(),
		Type:          string(t.Type),
		DataSource:    dataSource,
		IngestionTS:   time.Now().UTC(),
	}
}

// CustomerRow is the fsi_demo.customers dimension table schema.
type CustomerRow struct {
	CustomerID  int64  `bigquery:"customer_id"` // REQUIRED
	LoanID      string `bigquery:"loan_id"`
	FirstName   string `bigquery:"first_name"`
	LastName    string `bigquery:"last_name"`
	PhoneNumber string `bigquery:"phone_number"`
}

// RowFromCustomer maps a generated customer into its warehouse row.
func RowFromCustomer(c domain.Customer) *CustomerRow {
	return &CustomerRow{
		CustomerID:  int64(c.CustomerID),
		LoanID:      c.LoanID,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		PhoneNumber: c.PhoneNumber,
	}
}
