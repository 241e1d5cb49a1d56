// Package stageio provides the uniform per-stage scaffold every stage
// adapter consumes: manifest tracking, logging, cache interaction, and
// containment enforcement.
//
// This is the execution contract between the orchestrator and stage code.
// Context wraps:
//   - The stage's dedicated directory on disk,
//   - The in-progress StageManifest,
//   - The stage-tagged logger (it writes no per-stage or per-job log file),
//   - The cache subsystem handle,
//   - And the only sanctioned ways to report progress, track files, or
//     terminate stage execution.
// Stage code never writes manifest.json directly; it must go through this
// object.
package stageio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clipforge/mediapipe/internal/cache"
	"github.com/clipforge/mediapipe/internal/logging"
	"github.com/clipforge/mediapipe/internal/manifest"
	"github.com/clipforge/mediapipe/internal/pipelineerr"
)

// Context is a capability-scoped execution handle for a single stage run.
type Context struct {
	JobDir    string
	StageName string
	StageDir  string
	Logger    *logging.Logger
	Cache     *cache.Cache

	sm        manifest.StageManifest
	finalized bool
}

// Begin creates stage_dir (if absent) and returns a Context ready for
// tracking calls. Guarantees: stage_dir exists before return.
func Begin(jobDir, stageRelDir, stageName string, log *logging.Logger, c *cache.Cache) (*Context, error) {
	stageDir := filepath.Join(jobDir, stageRelDir)
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create stage dir: %w", err)
	}
	return &Context{
		JobDir:    jobDir,
		StageName: stageName,
		StageDir:  stageDir,
		Logger:    log.With("stage", stageName),
		Cache:     c,
		sm: manifest.StageManifest{
			StageName: stageName,
			Status:    manifest.StatusRunning,
			StartedAt: time.Now(),
		},
	}, nil
}

// SetConfig embeds the resolved parameter snapshot verbatim into the
// manifest and, by extension, the cache key. Must be called before any
// external work per the stageio contract.
func (c *Context) SetConfig(snapshot map[string]any) {
	if c.finalized {
		return
	}
	c.sm.ConfigSnapshot = snapshot
}

// ConfigSnapshot returns the snapshot most recently passed to SetConfig, the
// subset a stage folds into its cache key.
func (c *Context) ConfigSnapshot() map[string]any {
	return c.sm.ConfigSnapshot
}

// track validates containment (the path must resolve under StageDir) before
// recording a file.
func (c *Context) track(role manifest.Role, relPath, logicalType, format, reason string) (manifest.TrackedFile, error) {
	full := filepath.Join(c.StageDir, relPath)
	cleanStage := filepath.Clean(c.StageDir) + string(filepath.Separator)
	cleanFull := filepath.Clean(full)
	if !strings.HasPrefix(cleanFull+string(filepath.Separator), cleanStage) && cleanFull != filepath.Clean(c.StageDir) {
		return manifest.TrackedFile{}, pipelineerr.New(pipelineerr.KindContainmentViolate, c.StageName,
			fmt.Errorf("path %q escapes stage directory %q", relPath, c.StageDir))
	}
	hash, size, err := manifest.HashFile(full)
	if err != nil {
		return manifest.TrackedFile{}, pipelineerr.New(pipelineerr.KindIOError, c.StageName, fmt.Errorf("hash tracked file %s: %w", relPath, err))
	}
	return manifest.TrackedFile{
		Path:                  relPath,
		Role:                  role,
		LogicalType:           logicalType,
		Format:                format,
		SizeBytes:             size,
		ContentHash:           hash,
		CreatedAt:             time.Now(),
		ReasonForIntermediate: reason,
	}, nil
}

func (c *Context) TrackInput(relPath, logicalType, format string) error {
	if c.finalized {
		return nil
	}
	tf, err := c.track(manifest.RoleInput, relPath, logicalType, format, "")
	if err != nil {
		return c.failContainment(err)
	}
	c.sm.Inputs = append(c.sm.Inputs, tf)
	return nil
}

func (c *Context) TrackOutput(relPath, logicalType, format string) error {
	if c.finalized {
		return nil
	}
	tf, err := c.track(manifest.RoleOutput, relPath, logicalType, format, "")
	if err != nil {
		return c.failContainment(err)
	}
	c.sm.Outputs = append(c.sm.Outputs, tf)
	return nil
}

func (c *Context) TrackIntermediate(relPath, logicalType, format, reason string) error {
	if c.finalized {
		return nil
	}
	tf, err := c.track(manifest.RoleIntermediate, relPath, logicalType, format, reason)
	if err != nil {
		return c.failContainment(err)
	}
	c.sm.Intermediates = append(c.sm.Intermediates, tf)
	return nil
}

func (c *Context) failContainment(err error) error {
	c.sm.Errors = append(c.sm.Errors, err.Error())
	return err
}

func (c *Context) AddError(msg string) {
	if c.finalized {
		return
	}
	c.sm.Errors = append(c.sm.Errors, msg)
}

func (c *Context) AddWarning(msg string) {
	if c.finalized {
		return
	}
	c.sm.Warnings = append(c.sm.Warnings, msg)
}

func (c *Context) SetMetric(name string, value float64) {
	if c.finalized {
		return
	}
	if c.sm.Metrics == nil {
		c.sm.Metrics = map[string]float64{}
	}
	c.sm.Metrics[name] = value
}

// CacheLookup consults the cache subsystem for key and, on a hit, copies the
// stored artifacts into this stage's directory and marks cache_origin=hit.
func (c *Context) CacheLookup(key cache.Key) (hit bool, err error) {
	if c.Cache == nil {
		return false, nil
	}
	ok, dir, meta, err := c.Cache.Lookup(key)
	if err != nil || !ok {
		c.sm.CacheOrigin = manifest.CacheOriginMiss
		return false, err
	}
	if err := c.Cache.CopyInto(dir, c.StageDir, meta); err != nil {
		return false, err
	}
	c.sm.CacheOrigin = manifest.CacheOriginHit
	c.sm.SourceCacheRef = key.Hex()
	return true, nil
}

// CacheStore stores this stage's named output artifacts (relative paths)
// under key for reuse by future jobs.
func (c *Context) CacheStore(key cache.Key, artifacts []string, sourceJobID string) error {
	if c.Cache == nil {
		return nil
	}
	if c.sm.CacheOrigin == "" {
		c.sm.CacheOrigin = manifest.CacheOriginComputed
	}
	return c.Cache.Store(key, c.StageDir, artifacts, sourceJobID, c.sm.ConfigSnapshot)
}

// Finalize writes the stage manifest exactly once; subsequent calls are a
// no-op, matching "finalization is idempotent".
func (c *Context) Finalize(status manifest.Status) error {
	if c.finalized {
		return nil
	}
	c.finalized = true
	c.sm.Status = status
	c.sm.FinishedAt = time.Now()
	if status == manifest.StatusSuccess && len(c.sm.Outputs) == 0 {
		// Invariant 3: a successful stage has at least one output record.
		c.sm.Status = manifest.StatusFailed
		c.sm.Errors = append(c.sm.Errors, "stage reported success with zero tracked outputs")
	}
	return manifest.WriteAtomic(manifest.StagePath(c.JobDir, relStageDir(c.JobDir, c.StageDir)), c.sm)
}

func relStageDir(jobDir, stageDir string) string {
	rel, err := filepath.Rel(jobDir, stageDir)
	if err != nil {
		return stageDir
	}
	return rel
}
