package cache

import (
	"path/filepath"
	"testing"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "cache_index.sqlite"))
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestIndexUpsertAndOldest(t *testing.T) {
	idx := openTestIndex(t)

	if err := idx.Upsert("asr", "key-a"); err != nil {
		t.Fatalf("Upsert a: %v", err)
	}
	if err := idx.Upsert("asr", "key-b"); err != nil {
		t.Fatalf("Upsert b: %v", err)
	}

	rows, err := idx.Oldest(10)
	if err != nil {
		t.Fatalf("Oldest: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Oldest: want 2 rows, got %d", len(rows))
	}
}

func TestIndexRecordAccessBumpsCount(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.Upsert("asr", "key-a"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := idx.RecordAccess("asr", "key-a"); err != nil {
		t.Fatalf("RecordAccess: %v", err)
	}
	if err := idx.RecordAccess("asr", "key-a"); err != nil {
		t.Fatalf("RecordAccess: %v", err)
	}

	rows, err := idx.Oldest(10)
	if err != nil {
		t.Fatalf("Oldest: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Oldest: want 1 row, got %d", len(rows))
	}
}

func TestIndexForgetRemovesRow(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.Upsert("asr", "key-a"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := idx.Forget("asr", "key-a"); err != nil {
		t.Fatalf("Forget: %v", err)
	}

	rows, err := idx.Oldest(10)
	if err != nil {
		t.Fatalf("Oldest: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("Oldest: want 0 rows after Forget, got %d", len(rows))
	}
}
