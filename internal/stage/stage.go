// Package stage handles the file side of batch streaming: batch NDJSON files
// are written locally, shipped to the GCS stage bucket, and removed once the
// upload succeeds. The warehouse load job then reads them from the stage.
package stage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/fsi-demo/datakit/internal/export"
)

const objectPrefix = "streaming"

// NewBatchID returns a batch identifier of the form
// batch_YYYYMMDD_HHMMSS_xxxxxxxx; the uuid fragment keeps ids distinct when
// several batches flush within the same second.
func NewBatchID(now time.Time) string {
	return fmt.Sprintf("batch_%s_%s", now.Format("20060102_150405"), uuid.New().String()[:8])
}

// WriteBatchFile writes records to dir as an NDJSON batch file named after
// batchID and returns its path. The directory is created if missing.
func WriteBatchFile(dir, batchID string, records []export.Record) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("stage.WriteBatchFile: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("transactions_%s.ndjson", batchID))
	if err := export.WriteFile(path, records); err != nil {
		return "", fmt.Errorf("stage.WriteBatchFile: %w", err)
	}
	return path, nil
}

// Uploader ships batch files to the stage bucket. It assumes Application
// Default Credentials are configured.
type Uploader struct {
	bucket string
}

// NewUploader returns an Uploader targeting the given bucket.
func NewUploader(bucket string) *Uploader {
	return &Uploader{bucket: bucket}
}

// ObjectURI returns the gs:// URI a local batch file lands at.
func (u *Uploader) ObjectURI(filePath string) string {
	return fmt.Sprintf("gs://%s/%s/%s", u.bucket, objectPrefix, filepath.Base(filePath))
}

// UploadBatch uploads the batch file to the stage bucket and removes the
// local copy after a successful upload. It returns the gs:// URI of the
// staged object for the follow-up load job.
func (u *Uploader) UploadBatch(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("stage.UploadBatch: open %q: %w", filePath, err)
	}
	defer f.Close()

	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("stage.UploadBatch: storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	objectName := fmt.Sprintf("%s/%s", objectPrefix, filepath.Base(filePath))
	w := client.Bucket(u.bucket).Object(objectName).NewWriter(ctx)

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("stage.UploadBatch: copy to stage writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("stage.UploadBatch: finalize upload: %w", err)
	}

	// Local file is only a staging artifact; drop it once the object exists.
	if err := os.Remove(filePath); err != nil {
		return "", fmt.Errorf("stage.UploadBatch: remove local batch file: %w", err)
	}

	return u.ObjectURI(filePath), nil
}
