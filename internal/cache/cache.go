// Package cache implements the content-addressable cache subsystem: lookup
// and store of prior-job stage outputs keyed on content identity and
// relevant configuration, with at-most-one-concurrent-build-per-key. It has
// no baseline/personalized multi-phase policy for the subtitle workflow.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/clipforge/mediapipe/internal/manifest"
)

// Meta is the cache_meta.json sidecar stored alongside a cache entry.
type Meta struct {
	StageName      string         `json:"stage_name"`
	SourceJobID    string         `json:"source_job_id"`
	StoredAt       time.Time      `json:"stored_at"`
	ProducerConfig map[string]any `json:"producer_config"`
	ArtifactHashes map[string]string `json:"artifact_hashes"`
}

// Origin mirrors manifest.CacheOrigin for Lookup's return value.
type Origin = manifest.CacheOrigin

// Cache is rooted at a directory laid out as
// cache/<stage_name>/<hex-prefix-2>/<full-hex-key>/.
// mirror is the narrow interface Cache.Store uses to upload newly written
// entries; *RemoteMirror satisfies it. Kept as an interface (rather than a
// direct *RemoteMirror field) so Store's best-effort upload path can be
// exercised without a real Cloud Storage bucket.
type mirror interface {
	Upload(ctx context.Context, stageName, hexKey, entryDir, rel string) error
}

type Cache struct {
	Root   string
	Index  *Index // nil disables the access-tracking accelerator
	Mirror mirror // nil disables the cross-host warm-cache mirror
}

func New(root string, index *Index) *Cache {
	return &Cache{Root: root, Index: index}
}

func (c *Cache) entryDir(stageName, hexKey string) string {
	prefix := hexKey
	if len(prefix) > 2 {
		prefix = hexKey[:2]
	}
	return filepath.Join(c.Root, stageName, prefix, hexKey)
}

func (c *Cache) metaPath(stageName, hexKey string) string {
	return filepath.Join(c.entryDir(stageName, hexKey), "cache_meta.json")
}

// Lookup checks for a hit. A hit whose artifact hashes no longer match
// cache_meta.json (partial write from a killed writer, or on-disk
// corruption) is treated as a miss per the §9 Open Question decision.
// Lookup leaves the stale entry on disk untouched; the next Store for the
// same key writes its artifacts and cache_meta.json into that same entry
// directory.
func (c *Cache) Lookup(key Key) (hit bool, dir string, meta *Meta, err error) {
	v, err, _ := group.Do("lookup:"+key.StageName+":"+key.Hex(), func() (interface{}, error) {
		hexKey := key.Hex()
		mp := c.metaPath(key.StageName, hexKey)
		b, rerr := os.ReadFile(mp)
		if os.IsNotExist(rerr) {
			return lookupResult{false, "", nil}, nil
		}
		if rerr != nil {
			return nil, rerr
		}
		var m Meta
		if jerr := json.Unmarshal(b, &m); jerr != nil {
			return lookupResult{false, "", nil}, nil
		}
		dir := c.entryDir(key.StageName, hexKey)
		if !verifyEntry(dir, m) {
			return lookupResult{false, "", nil}, nil
		}
		if c.Index != nil {
			_ = c.Index.RecordAccess(key.StageName, hexKey)
		}
		return lookupResult{true, dir, &m}, nil
	})
	if err != nil {
		return false, "", nil, err
	}
	res := v.(lookupResult)
	return res.hit, res.dir, res.meta, nil
}

type lookupResult struct {
	hit  bool
	dir  string
	meta *Meta
}

func verifyEntry(dir string, m Meta) bool {
	for rel, wantHash := range m.ArtifactHashes {
		full := filepath.Join(dir, rel)
		gotHash, _, err := manifest.HashFile(full)
		if err != nil || gotHash != wantHash {
			return false
		}
	}
	return true
}

// Store copies artifacts (paths relative to srcDir) into the cache area
// under key. First writer wins: if the entry already exists and verifies,
// Store is a no-op, consistent with "entries are immutable once written".
func (c *Cache) Store(key Key, srcDir string, artifacts []string, sourceJobID string, producerConfig map[string]any) error {
	hexKey := key.Hex()
	lock := newKeyLock(c.Root, key.StageName, hexKey)
	unlock, err := lock.Acquire(2 * time.Minute)
	if err != nil {
		return err
	}
	defer unlock()

	if hit, _, _, _ := c.Lookup(key); hit {
		return nil
	}

	dir := c.entryDir(key.StageName, hexKey)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir cache entry dir: %w", err)
	}

	hashes := map[string]string{}
	for _, rel := range artifacts {
		src := filepath.Join(srcDir, rel)
		dst := filepath.Join(dir, rel)
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("copy artifact %s into cache: %w", rel, err)
		}
		h, _, err := manifest.HashFile(dst)
		if err != nil {
			return err
		}
		hashes[rel] = h
	}

	meta := Meta{
		StageName:      key.StageName,
		SourceJobID:    sourceJobID,
		StoredAt:       time.Now(),
		ProducerConfig: producerConfig,
		ArtifactHashes: hashes,
	}
	if err := manifest.WriteAtomic(c.metaPath(key.StageName, hexKey), meta); err != nil {
		return err
	}
	if c.Mirror != nil {
		for rel := range hashes {
			// Best-effort: a mirror upload failure never fails the stage that
			// produced this cache entry, since the local entry is already
			// durable and authoritative.
			_ = c.Mirror.Upload(context.Background(), key.StageName, hexKey, dir, rel)
		}
	}
	if c.Index != nil {
		return c.Index.Upsert(key.StageName, hexKey)
	}
	return nil
}

// CopyInto copies a cache entry's artifacts into destDir (the calling
// stage's directory); recording cache_origin=hit is left to the caller.
func (c *Cache) CopyInto(dir, destDir string, meta *Meta) error {
	for rel := range meta.ArtifactHashes {
		if err := copyFile(filepath.Join(dir, rel), filepath.Join(destDir, rel)); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
