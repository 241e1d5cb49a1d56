package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/clipforge/mediapipe/internal/jobprep"
)

func writeJobJSON(t *testing.T, jobDir string, desc jobprep.Descriptor) {
	t.Helper()
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		t.Fatalf("mkdir job dir: %v", err)
	}
	b, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		t.Fatalf("marshal descriptor: %v", err)
	}
	if err := os.WriteFile(filepath.Join(jobDir, "job.json"), b, 0o644); err != nil {
		t.Fatalf("write job.json: %v", err)
	}
}

func TestFindJobDirLocatesMatchingJob(t *testing.T) {
	outRoot := t.TempDir()
	jobDir := filepath.Join(outRoot, "2026", "07", "31", "7", "1")
	writeJobJSON(t, jobDir, jobprep.Descriptor{JobID: "job-abc"})

	got, err := findJobDir(outRoot, "job-abc")
	if err != nil {
		t.Fatalf("findJobDir: %v", err)
	}
	if got != jobDir {
		t.Fatalf("findJobDir: want=%q got=%q", jobDir, got)
	}
}

func TestFindJobDirNoMatch(t *testing.T) {
	outRoot := t.TempDir()
	writeJobJSON(t, filepath.Join(outRoot, "2026", "07", "31", "7", "1"), jobprep.Descriptor{JobID: "job-abc"})

	_, err := findJobDir(outRoot, "job-does-not-exist")
	if err == nil {
		t.Fatal("findJobDir: expected error for unmatched job id, got nil")
	}
}

func TestLoadDescriptor(t *testing.T) {
	jobDir := t.TempDir()
	writeJobJSON(t, jobDir, jobprep.Descriptor{JobID: "job-xyz", UserID: 9})

	desc, err := loadDescriptor(jobDir)
	if err != nil {
		t.Fatalf("loadDescriptor: %v", err)
	}
	if desc.JobID != "job-xyz" || desc.UserID != 9 {
		t.Fatalf("loadDescriptor: unexpected descriptor %+v", desc)
	}
}

func TestLoadDescriptorMissingFile(t *testing.T) {
	_, err := loadDescriptor(t.TempDir())
	if err == nil {
		t.Fatal("loadDescriptor: expected error for missing job.json, got nil")
	}
}
