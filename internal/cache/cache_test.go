package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type fakeMirror struct {
	uploaded []string
	err      error
}

func (f *fakeMirror) Upload(ctx context.Context, stageName, hexKey, entryDir, rel string) error {
	f.uploaded = append(f.uploaded, stageName+"/"+hexKey+"/"+rel)
	return f.err
}

func TestCacheLookupMissWhenEmpty(t *testing.T) {
	c := New(t.TempDir(), nil)
	hit, _, _, err := c.Lookup(Key{StageName: "asr", MediaID: "m1"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if hit {
		t.Fatal("Lookup: expected miss on empty cache, got hit")
	}
}

func TestCacheStoreThenLookupHits(t *testing.T) {
	root := t.TempDir()
	c := New(root, nil)

	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "out.srt"), []byte("1\n00:00:00,000 --> 00:00:01,000\nhi\n"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	key := Key{StageName: "subtitle-encode", MediaID: "m1", ConfigSubset: map[string]any{"lang": "en"}}
	if err := c.Store(key, srcDir, []string{"out.srt"}, "job-1", map[string]any{"lang": "en"}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	hit, dir, meta, err := c.Lookup(key)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !hit {
		t.Fatal("Lookup: expected hit after Store, got miss")
	}
	if meta.SourceJobID != "job-1" {
		t.Fatalf("meta.SourceJobID: want=job-1 got=%q", meta.SourceJobID)
	}
	if _, err := os.Stat(filepath.Join(dir, "out.srt")); err != nil {
		t.Fatalf("expected stored artifact on disk: %v", err)
	}
}

func TestCacheLookupTreatsCorruptedEntryAsMiss(t *testing.T) {
	root := t.TempDir()
	c := New(root, nil)

	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "out.srt"), []byte("original"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	key := Key{StageName: "subtitle-encode", MediaID: "m2"}
	if err := c.Store(key, srcDir, []string{"out.srt"}, "job-2", nil); err != nil {
		t.Fatalf("Store: %v", err)
	}

	hexKey := key.Hex()
	entryPath := filepath.Join(root, key.StageName, hexKey[:2], hexKey, "out.srt")
	if err := os.WriteFile(entryPath, []byte("corrupted-after-write"), 0o644); err != nil {
		t.Fatalf("corrupt entry: %v", err)
	}

	hit, _, _, err := c.Lookup(key)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if hit {
		t.Fatal("Lookup: expected miss for corrupted entry, got hit")
	}
	if _, err := os.Stat(entryPath); err != nil {
		t.Fatalf("expected stale entry left in place on disk: %v", err)
	}
}

func TestCacheStoreIsNoOpWhenEntryAlreadyVerifies(t *testing.T) {
	root := t.TempDir()
	c := New(root, nil)

	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "out.srt"), []byte("v1"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	key := Key{StageName: "subtitle-encode", MediaID: "m3"}
	if err := c.Store(key, srcDir, []string{"out.srt"}, "job-3", nil); err != nil {
		t.Fatalf("first Store: %v", err)
	}

	if err := os.WriteFile(filepath.Join(srcDir, "out.srt"), []byte("v2-should-not-be-stored"), 0o644); err != nil {
		t.Fatalf("rewrite source artifact: %v", err)
	}
	if err := c.Store(key, srcDir, []string{"out.srt"}, "job-3b", nil); err != nil {
		t.Fatalf("second Store: %v", err)
	}

	_, dir, _, err := c.Lookup(key)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "out.srt"))
	if err != nil {
		t.Fatalf("read cached artifact: %v", err)
	}
	if string(b) != "v1" {
		t.Fatalf("expected first-writer-wins content %q, got %q", "v1", string(b))
	}
}

func TestCacheStoreUploadsToMirrorWhenConfigured(t *testing.T) {
	root := t.TempDir()
	m := &fakeMirror{}
	c := New(root, nil)
	c.Mirror = m

	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "out.srt"), []byte("content"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	key := Key{StageName: "subtitle-encode", MediaID: "m5"}
	if err := c.Store(key, srcDir, []string{"out.srt"}, "job-5", nil); err != nil {
		t.Fatalf("Store: %v", err)
	}

	if len(m.uploaded) != 1 {
		t.Fatalf("mirror uploads: want 1, got %d (%v)", len(m.uploaded), m.uploaded)
	}
}

func TestCacheStoreSucceedsEvenWhenMirrorUploadFails(t *testing.T) {
	root := t.TempDir()
	c := New(root, nil)
	c.Mirror = &fakeMirror{err: errors.New("bucket unreachable")}

	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "out.srt"), []byte("content"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	key := Key{StageName: "subtitle-encode", MediaID: "m6"}
	if err := c.Store(key, srcDir, []string{"out.srt"}, "job-6", nil); err != nil {
		t.Fatalf("Store: expected mirror failure to be swallowed, got error: %v", err)
	}
}

func TestCacheStoreRecordsAccessIndex(t *testing.T) {
	root := t.TempDir()
	idx, err := OpenIndex(filepath.Join(root, "index.sqlite"))
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	defer idx.Close()

	c := New(root, idx)
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "out.srt"), []byte("content"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	key := Key{StageName: "subtitle-encode", MediaID: "m4"}
	if err := c.Store(key, srcDir, []string{"out.srt"}, "job-4", nil); err != nil {
		t.Fatalf("Store: %v", err)
	}

	rows, err := idx.Oldest(10)
	if err != nil {
		t.Fatalf("Oldest: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Oldest: want 1 indexed entry, got %d", len(rows))
	}
}
