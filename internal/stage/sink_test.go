package stage

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsi-demo/datakit/internal/export"
	"github.com/fsi-demo/datakit/internal/generator"
	"github.com/fsi-demo/datakit/internal/uploads"
)

type fakePublisher struct {
	jobs []*uploads.Job
}

func (f *fakePublisher) Publish(ctx context.Context, job *uploads.Job) error {
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeLoader struct {
	uris []string
}

func (f *fakeLoader) LoadBatchFromGCS(ctx context.Context, gcsURI string) error {
	f.uris = append(f.uris, gcsURI)
	return nil
}

func TestBatchSink_FlushWritesFileAndPublishes(t *testing.T) {
	g, err := generator.New(generator.DefaultConfig(), rand.New(rand.NewSource(51)))
	require.NoError(t, err)

	txns := g.GenerateDailyTransactions(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 20, 20)

	pub := &fakePublisher{}
	sink := &BatchSink{Dir: t.TempDir(), Queue: pub}

	require.NoError(t, sink.Flush(context.Background(), txns))
	require.Len(t, pub.jobs, 1)

	job := pub.jobs[0]
	assert.NotEmpty(t, job.BatchID)
	assert.Equal(t, "transactions_"+job.BatchID+".ndjson", filepath.Base(job.FilePath))

	f, err := os.Open(job.FilePath)
	require.NoError(t, err)
	defer f.Close()

	records, err := export.Read(f)
	require.NoError(t, err)
	require.Len(t, records, len(txns))
	for _, rec := range records {
		assert.Equal(t, job.BatchID, rec.BatchID)
		assert.Equal(t, export.DataSourceStreaming, rec.DataSource)
		assert.NotEmpty(t, rec.StreamingTimestamp)
	}
}

func TestUploadHandler_RetryAfterUploadSkipsToLoad(t *testing.T) {
	u := NewUploader("fsi-demo-stage")
	loader := &fakeLoader{}
	handler := UploadHandler(u, loader)

	// File already shipped and removed; the handler must go straight to the
	// load step with the staged object URI.
	job := &uploads.Job{
		BatchID:  "batch_20240115_103045_deadbeef",
		FilePath: filepath.Join(t.TempDir(), "transactions_batch_20240115_103045_deadbeef.ndjson"),
	}

	require.NoError(t, handler(context.Background(), job))
	require.Len(t, loader.uris, 1)
	assert.Equal(t,
		"gs://fsi-demo-stage/streaming/transactions_batch_20240115_103045_deadbeef.ndjson",
		loader.uris[0])
}
