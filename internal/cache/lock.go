package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"
)

// singleflight collapses concurrent in-process lookups/builds for the same
// key before anything touches the cross-process lockfile — a cheap first
// line of defense per distilled §5/§9 ("both enforce per-key locking").
var group singleflight.Group

// keyLock is a cross-process, at-most-one-writer-per-key lock implemented
// as an O_EXCL lockfile. It is intentionally simple (no flock syscall
// dependency) since the only requirement is mutual exclusion between
// orchestrator processes racing on the same cache key, not fine-grained
// read/write sharing.
type keyLock struct {
	path string
}

func newKeyLock(cacheRoot, stageName, hexKey string) *keyLock {
	return &keyLock{path: filepath.Join(cacheRoot, ".locks", stageName, hexKey+".lock")}
}

// Acquire blocks (with periodic retry) until it creates the lockfile
// exclusively, or the deadline elapses.
func (l *keyLock) Acquire(timeout time.Duration) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir lock dir: %w", err)
	}
	deadline := time.Now().Add(timeout)
	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_ = f.Close()
			return func() { _ = os.Remove(l.path) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lockfile: %w", err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out acquiring cache key lock %s", l.path)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
