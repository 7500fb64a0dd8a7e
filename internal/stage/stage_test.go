package stage

import (
	"math/rand"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsi-demo/datakit/internal/export"
	"github.com/fsi-demo/datakit/internal/generator"
)

func TestNewBatchID(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)

	id := NewBatchID(now)
	assert.Regexp(t, regexp.MustCompile(`^batch_20240115_103045_[0-9a-f]{8}$`), id)

	// Fragment keeps same-second ids distinct.
	assert.NotEqual(t, id, NewBatchID(now))
}

func TestWriteBatchFile_RoundTrips(t *testing.T) {
	g, err := generator.New(generator.DefaultConfig(), rand.New(rand.NewSource(31)))
	require.NoError(t, err)

	now := time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)
	batchID := NewBatchID(now)
	ts := now.UTC().Format(time.RFC3339)

	var records []export.Record
	for i := 0; i < 25; i++ {
		records = append(records, export.StreamingRecord(g.GenerateTransaction(now), batchID, ts))
	}

	dir := t.TempDir()
	path, err := WriteBatchFile(dir, batchID, records)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	parsed, err := export.Read(f)
	require.NoError(t, err)
	require.Len(t, parsed, 25)

	for _, rec := range parsed {
		assert.Equal(t, batchID, rec.BatchID)
		assert.Equal(t, export.DataSourceStreaming, rec.DataSource)
		assert.Equal(t, ts, rec.StreamingTimestamp)
	}
}

func TestObjectURI(t *testing.T) {
	u := NewUploader("fsi-demo-stage")

	uri := u.ObjectURI("/tmp/batches/transactions_batch_20240115_103045_deadbeef.ndjson")
	assert.Equal(t, "gs://fsi-demo-stage/streaming/transactions_batch_20240115_103045_deadbeef.ndjson", uri)
}
