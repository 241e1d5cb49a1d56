package cache

import (
	"os"
	"testing"
	"time"
)

func TestKeyLockAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()
	lock := newKeyLock(dir, "asr", "deadbeef")

	unlock, err := lock.Acquire(time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := os.Stat(lock.path); err != nil {
		t.Fatalf("expected lockfile to exist after Acquire: %v", err)
	}
	unlock()
	if _, err := os.Stat(lock.path); !os.IsNotExist(err) {
		t.Fatalf("expected lockfile removed after unlock, stat err=%v", err)
	}
}

func TestKeyLockSecondAcquireTimesOut(t *testing.T) {
	dir := t.TempDir()
	lock := newKeyLock(dir, "asr", "deadbeef")

	unlock, err := lock.Acquire(time.Second)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	defer unlock()

	second := newKeyLock(dir, "asr", "deadbeef")
	_, err = second.Acquire(100 * time.Millisecond)
	if err == nil {
		t.Fatal("expected second Acquire to time out while lock held, got nil error")
	}
}

func TestKeyLockReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()
	lock := newKeyLock(dir, "translate", "feedface")

	unlock, err := lock.Acquire(time.Second)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	unlock()

	_, err = lock.Acquire(time.Second)
	if err != nil {
		t.Fatalf("second Acquire after release: %v", err)
	}
}
