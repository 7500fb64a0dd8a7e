// Package export serializes transaction batches as newline-delimited JSON,
// the format both the historical loader and the stage-file streamer ship to
// the warehouse.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/fsi-demo/datakit/internal/domain"
)

func init() {
	// Warehouse JSON loaders expect amounts as bare numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// DataSourceStreaming marks rows produced by the live streamers, as opposed
// to the historical back-fill. Cleanup targets rows with this marker.
const DataSourceStreaming = "STREAMING"

// Record is the exported form of a transaction. The diagnostic is_anomaly
// flag has no field here: it must never reach a persisted form. The three
// trailing fields only appear in the enriched streaming variant and are
// omitted (not null) when absent.
type Record struct {
	TransactionID     int64           `json:"transaction_id"`
	CustomerID        int             `json:"customer_id"`
	TransactionDate   civil.Date      `json:"transaction_date"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	TransactionType   domain.Category `json:"transaction_type"`

	DataSource         string `json:"data_source,omitempty"`
	BatchID            string `json:"batch_id,omitempty"`
	StreamingTimestamp string `json:"streaming_timestamp,omitempty"`
}

// FromTransaction maps a transaction into its exported form, dropping the
// anomaly flag.
func FromTransaction(t domain.Transaction) Record {
	return Record{
		TransactionID:     t.TransactionID,
		CustomerID:        t.CustomerID,
		TransactionDate:   t.Date,
		TransactionAmount: t.Amount,
		TransactionType:   t.Type,
	}
}

// StreamingRecord maps a transaction into the enriched streaming form shipped
// by the stage-file path.
func StreamingRecord(t domain.Transaction, batchID, streamingTS string) Record {
	r := FromTransaction(t)
	r.DataSource = DataSourceStreaming
	r.BatchID = batchID
	r.StreamingTimestamp = streamingTS
	return r
}

// Write encodes records to w, one JSON object per line.
func Write(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	for i, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("export.Write: record %d: %w", i, err)
		}
	}
	return nil
}

// WriteTransactions is Write over raw transactions, mapping each through
// FromTransaction first.
func WriteTransactions(w io.Writer, txns []domain.Transaction) error {
	records := make([]Record, len(txns))
	for i, t := range txns {
		records[i] = FromTransaction(t)
	}
	return Write(w, records)
}

// WriteFile writes records as NDJSON to path, creating or truncating it.
func WriteFile(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export.WriteFile: %w", err)
	}

	if err := Write(f, records); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export.WriteFile: close %q: %w", path, err)
	}
	return nil
}

// Read parses NDJSON records back from r. Blank lines are skipped.
func Read(r io.Reader) ([]Record, error) {
	var records []Record

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("export.Read: line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("export.Read: %w", err)
	}

	return records, nil
}
