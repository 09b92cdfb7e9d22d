package storage

import (
	"bytes"
	"context"
	"fmt"
	"hash/crc32"
	"io"

	gcs "cloud.google.com/go/storage"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// GCSArchive writes private transcript objects to a single bucket.
type GCSArchive struct {
	client *gcs.Client
	bucket string
}

func NewGCSArchive(ctx context.Context, bucket string) (*GCSArchive, error) {
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSArchive{client: c, bucket: bucket}, nil
}

func (a *GCSArchive) Close() error { return a.client.Close() }

func (a *GCSArchive) Put(ctx context.Context, t Transcript) (string, error) {
	name := TranscriptObject(t.SessionID)

	w := a.client.Bucket(a.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"
	w.ContentDisposition = fmt.Sprintf("attachment; filename=%q", TranscriptFilename(t.SessionID))
	w.CacheControl = "no-store"
	w.Metadata = map[string]string{
		"session_id": t.SessionID,
		"user_id":    t.UserID,
	}
	// the upload fails server side if the bytes arrive damaged
	w.CRC32C = crc32.Checksum(t.Body, castagnoli)
	w.SendCRC32C = true

	if _, err := io.Copy(w, bytes.NewReader(t.Body)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("archive %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("archive %s: %w", name, err)
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, name), nil
}
