package cache

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
)

// RemoteMirror optionally mirrors stored cache entries into a Cloud Storage
// bucket, named in SPEC_FULL.md's domain-stack wiring. The local cache
// directory remains authoritative; the mirror exists purely so a second
// host could warm its own local cache without recomputation, and is
// consulted nowhere in the lookup/hit path described in §4.4.
type RemoteMirror struct {
	bucket *storage.BucketHandle
}

func NewRemoteMirror(ctx context.Context, bucketName string) (*RemoteMirror, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("bucket name required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &RemoteMirror{bucket: client.Bucket(bucketName)}, nil
}

// Upload copies a stored cache entry's files up to
// <stage_name>/<hex_key>/<rel> in the mirror bucket.
func (m *RemoteMirror) Upload(ctx context.Context, stageName, hexKey, entryDir string, rel string) error {
	src := filepath.Join(entryDir, rel)
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	obj := m.bucket.Object(fmt.Sprintf("%s/%s/%s", stageName, hexKey, rel))
	w := obj.NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
