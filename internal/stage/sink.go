package stage

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsi-demo/datakit/internal/domain"
	"github.com/fsi-demo/datakit/internal/export"
	"github.com/fsi-demo/datakit/internal/uploads"
)

// Loader runs a warehouse load job over a staged object.
type Loader interface {
	LoadBatchFromGCS(ctx context.Context, gcsURI string) error
}

// BatchSink turns a flushed batch into a local stage file and an upload job.
// Writing the file is synchronous; shipping and loading happen on the upload
// workers so a slow bucket never stalls the generation tick.
type BatchSink struct {
	Dir   string
	Queue uploads.Publisher
}

// Flush implements the batch streamer's sink contract.
func (b *BatchSink) Flush(ctx context.Context, txns []domain.Transaction) error {
	now := time.Now().UTC()
	batchID := NewBatchID(now)
	streamingTS := now.Format(time.RFC3339)

	records := make([]export.Record, len(txns))
	for i, t := range txns {
		records[i] = export.StreamingRecord(t, batchID, streamingTS)
	}

	path, err := WriteBatchFile(b.Dir, batchID, records)
	if err != nil {
		return err
	}

	if err := b.Queue.Publish(ctx, &uploads.Job{BatchID: batchID, FilePath: path}); err != nil {
		return fmt.Errorf("stage.Flush: %w", err)
	}
	return nil
}

// UploadHandler builds the worker function for upload jobs: ship the batch
// file to the stage bucket, then trigger its warehouse load. When a retry
// arrives after the upload already succeeded (the local file is gone), only
// the load is re-run.
func UploadHandler(u *Uploader, loader Loader) uploads.Handler {
	return func(ctx context.Context, job *uploads.Job) error {
		uri := u.ObjectURI(job.FilePath)

		if _, err := os.Stat(job.FilePath); err == nil {
			uploaded, err := u.UploadBatch(ctx, job.FilePath)
			if err != nil {
				return fmt.Errorf("upload batch %s: %w", job.BatchID, err)
			}
			uri = uploaded
		}

		if err := loader.LoadBatchFromGCS(ctx, uri); err != nil {
			return fmt.Errorf("load batch %s: %w", job.BatchID, err)
		}
		return nil
	}
}
