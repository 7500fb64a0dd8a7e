// Package bigquery is the warehouse layer: row schemas, the streaming-insert
// sink, stage-file load jobs, cleanup, and the analytics queries the report
// command reads. Credentials come from Application Default Credentials; this
// package never handles them itself.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/fsi-demo/datakit/internal/domain"
)

const (
	transactionsTable = "transactions"
	customersTable    = "customers"
)

// DataSourceHistorical and DataSourceStreaming are the two values of the
// data_source column.
const (
	DataSourceHistorical = "HISTORICAL"
	DataSourceStreaming  = "STREAMING"
)

// Store wraps a BigQuery client scoped to one project and dataset.
type Store struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewStore creates a Store with its own client. Close releases it.
func NewStore(ctx context.Context, projectID, datasetID string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: bigquery client: %w", err)
	}
	return NewStoreWithClient(client, projectID, datasetID), nil
}

// NewStoreWithClient wraps an existing client. The caller keeps ownership of
// the client's lifetime when constructing this way, but Close still closes it.
func NewStoreWithClient(client *bigquery.Client, projectID, datasetID string) *Store {
	return &Store{client: client, projectID: projectID, datasetID: datasetID}
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) table(name string) *bigquery.Table {
	return s.client.DatasetInProject(s.projectID, s.datasetID).Table(name)
}

func (s *Store) qualified(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", s.projectID, s.datasetID, name)
}

// InsertTransactions streams a batch of rows into the transactions table.
func (s *Store) InsertTransactions(ctx context.Context, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := s.table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}
	return nil
}

// InsertTransaction streams a single generated transaction, tagged as a
// streaming row. This is the direct-insert sink the fixed-rate streamer uses.
func (s *Store) InsertTransaction(ctx context.Context, t domain.Transaction) error {
	return s.InsertTransactions(ctx, []*TransactionRow{RowFromTransaction(t, DataSourceStreaming)})
}

// InsertCustomers streams customer dimension rows into the customers table.
func (s *Store) InsertCustomers(ctx context.Context, rows []*CustomerRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := s.table(customersTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertCustomers: inserting rows: %w", err)
	}
	return nil
}

// LoadBatchFromGCS runs a load job appending the staged NDJSON object at
// gcsURI into the transactions table. This is the bulk path the batch
// streamer and the historical loader use instead of streaming inserts.
func (s *Store) LoadBatchFromGCS(ctx context.Context, gcsURI string) error {
	ref := bigquery.NewGCSReference(gcsURI)
	ref.SourceFormat = bigquery.JSON

	loader := s.table(transactionsTable).LoaderFrom(ref)
	loader.WriteDisposition = bigquery.WriteAppend

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("LoadBatchFromGCS: starting load job: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("LoadBatchFromGCS: waiting for load job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("LoadBatchFromGCS: load job failed: %w", err)
	}
	return nil
}

// DeleteStreamingData removes streaming rows for the given date and returns
// nothing about row counts; BigQuery DML reports them only via job statistics,
// which the demo does not need.
func (s *Store) DeleteStreamingData(ctx context.Context, date civil.Date) error {
	q := s.client.Query(fmt.Sprintf(`
		DELETE FROM %s
		WHERE data_source = @data_source
		  AND transaction_date = @transaction_date
	`, s.qualified(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "data_source", Value: DataSourceStreaming},
		{Name: "transaction_date", Value: date.String()},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("DeleteStreamingData: running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("DeleteStreamingData: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("DeleteStreamingData: job error: %w", err)
	}
	return nil
}
