// Package manifest implements per-stage and per-job manifest persistence:
// the machine-readable record of a stage's inputs, outputs, config, and
// status that backs resume, audit, and cache-key construction.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

type Status string

const (
	StatusPending       Status = "pending"
	StatusRunning       Status = "running"
	StatusSuccess       Status = "success"
	StatusFailed        Status = "failed"
	StatusSkipped       Status = "skipped"
	StatusSkippedResume Status = "skipped-resume"
)

type CacheOrigin string

const (
	CacheOriginComputed CacheOrigin = "computed"
	CacheOriginHit      CacheOrigin = "hit"
	CacheOriginMiss     CacheOrigin = "miss"
)

type Role string

const (
	RoleInput        Role = "input"
	RoleOutput       Role = "output"
	RoleIntermediate Role = "intermediate"
)

// TrackedFile is one input/output/intermediate record of a stage.
type TrackedFile struct {
	Path                 string    `json:"path"`
	Role                 Role      `json:"role"`
	LogicalType          string    `json:"logical_type"`
	Format               string    `json:"format"`
	SizeBytes            int64     `json:"size_bytes"`
	ContentHash          string    `json:"content_hash"`
	CreatedAt            time.Time `json:"created_at"`
	ReasonForIntermediate string   `json:"reason_for_intermediate,omitempty"`
}

// StageManifest is the finalized record of one stage's execution.
type StageManifest struct {
	StageName      string            `json:"stage_name"`
	Status         Status            `json:"status"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     time.Time         `json:"finished_at,omitempty"`
	Inputs         []TrackedFile     `json:"inputs,omitempty"`
	Outputs        []TrackedFile     `json:"outputs,omitempty"`
	Intermediates  []TrackedFile     `json:"intermediates,omitempty"`
	ConfigSnapshot map[string]any    `json:"config_snapshot,omitempty"`
	Errors         []string          `json:"errors,omitempty"`
	Warnings       []string          `json:"warnings,omitempty"`
	Metrics        map[string]float64 `json:"metrics,omitempty"`
	CacheOrigin    CacheOrigin       `json:"cache_origin,omitempty"`
	SourceCacheRef string            `json:"source_cache_ref,omitempty"`
}

// AggregateManifest is the job-level merge of all stage manifests.
type AggregateManifest struct {
	JobID   string                    `json:"job_id"`
	Status  Status                    `json:"status"`
	Stages  map[string]*StageManifest `json:"stages"`
	Updated time.Time                 `json:"updated_at"`
}

// HashFile computes the SHA-256 content hash of a file, used both for
// tracked-file records and for the resume check's "does this output still
// match" comparison.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// WriteAtomic writes v as indented JSON to path via a temp-file-then-rename
// so readers never observe a partially written manifest.
func WriteAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir manifest dir: %w", err)
	}
	tmp := path + ".tmp"
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write temp manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename manifest into place: %w", err)
	}
	return nil
}

// LoadStage reads a stage manifest.json, returning (nil, nil) if absent —
// an absent manifest means the stage has never run for this job.
func LoadStage(path string) (*StageManifest, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sm StageManifest
	if err := json.Unmarshal(b, &sm); err != nil {
		return nil, fmt.Errorf("parse stage manifest %s: %w", path, err)
	}
	return &sm, nil
}

// StagePath returns the canonical path of a stage's manifest.json under the
// job directory's stage subdirectory.
func StagePath(jobDir, stageDir string) string {
	return filepath.Join(jobDir, stageDir, "manifest.json")
}

// AggregatePath returns the canonical path of the job-level aggregate manifest.
func AggregatePath(jobDir string) string {
	return filepath.Join(jobDir, "manifest.json")
}

// WriteAggregate rebuilds and writes the job-level aggregate manifest by
// scanning every known stage directory's manifest.json. A stage that never
// ran simply has no entry.
func WriteAggregate(jobDir, jobID string, stageDirs []string) (*AggregateManifest, error) {
	agg := &AggregateManifest{
		JobID:   jobID,
		Status:  StatusRunning,
		Stages:  map[string]*StageManifest{},
		Updated: time.Now(),
	}
	overall := StatusSuccess
	any_ := false
	for _, dir := range stageDirs {
		sm, err := LoadStage(StagePath(jobDir, dir))
		if err != nil {
			return nil, err
		}
		if sm == nil {
			continue
		}
		any_ = true
		agg.Stages[sm.StageName] = sm
		if sm.Status == StatusFailed {
			overall = StatusFailed
		}
	}
	if !any_ {
		overall = StatusPending
	}
	agg.Status = overall
	if err := WriteAtomic(AggregatePath(jobDir), agg); err != nil {
		return nil, err
	}
	return agg, nil
}

// VerifyOutputs reports whether every output of sm still exists on disk with
// a matching content hash — the resume check's core predicate.
func VerifyOutputs(jobDir, stageDir string, sm *StageManifest) bool {
	for _, o := range sm.Outputs {
		full := filepath.Join(jobDir, stageDir, o.Path)
		hash, _, err := HashFile(full)
		if err != nil || hash != o.ContentHash {
			return false
		}
	}
	return true
}
