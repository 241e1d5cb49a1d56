package stageio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/clipforge/mediapipe/internal/logging"
	"github.com/clipforge/mediapipe/internal/manifest"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	log, err := logging.New("dev")
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	return log
}

func TestBeginCreatesStageDir(t *testing.T) {
	jobDir := t.TempDir()
	sc, err := Begin(jobDir, "01_demux", "demux", testLogger(t), nil)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := os.Stat(sc.StageDir); err != nil {
		t.Fatalf("expected stage dir to exist: %v", err)
	}
}

func TestTrackOutputThenFinalizeSuccess(t *testing.T) {
	jobDir := t.TempDir()
	sc, err := Begin(jobDir, "01_demux", "demux", testLogger(t), nil)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	outPath := filepath.Join(sc.StageDir, "audio.wav")
	if err := os.WriteFile(outPath, []byte("pcm-bytes"), 0o644); err != nil {
		t.Fatalf("write output: %v", err)
	}
	if err := sc.TrackOutput("audio.wav", "audio", "wav"); err != nil {
		t.Fatalf("TrackOutput: %v", err)
	}
	if err := sc.Finalize(manifest.StatusSuccess); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	sm, err := manifest.LoadStage(manifest.StagePath(jobDir, "01_demux"))
	if err != nil {
		t.Fatalf("LoadStage: %v", err)
	}
	if sm.Status != manifest.StatusSuccess {
		t.Fatalf("Status: want=%q got=%q", manifest.StatusSuccess, sm.Status)
	}
	if len(sm.Outputs) != 1 {
		t.Fatalf("Outputs: want 1, got %d", len(sm.Outputs))
	}
}

func TestFinalizeSuccessWithZeroOutputsDowngradesToFailed(t *testing.T) {
	jobDir := t.TempDir()
	sc, err := Begin(jobDir, "01_demux", "demux", testLogger(t), nil)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := sc.Finalize(manifest.StatusSuccess); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	sm, err := manifest.LoadStage(manifest.StagePath(jobDir, "01_demux"))
	if err != nil {
		t.Fatalf("LoadStage: %v", err)
	}
	if sm.Status != manifest.StatusFailed {
		t.Fatalf("Status: want=%q (downgraded), got=%q", manifest.StatusFailed, sm.Status)
	}
	if len(sm.Errors) == 0 {
		t.Fatal("Errors: expected an error recorded for zero-output success")
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	jobDir := t.TempDir()
	sc, err := Begin(jobDir, "01_demux", "demux", testLogger(t), nil)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	outPath := filepath.Join(sc.StageDir, "audio.wav")
	if err := os.WriteFile(outPath, []byte("pcm-bytes"), 0o644); err != nil {
		t.Fatalf("write output: %v", err)
	}
	if err := sc.TrackOutput("audio.wav", "audio", "wav"); err != nil {
		t.Fatalf("TrackOutput: %v", err)
	}
	if err := sc.Finalize(manifest.StatusSuccess); err != nil {
		t.Fatalf("first Finalize: %v", err)
	}
	if err := sc.Finalize(manifest.StatusFailed); err != nil {
		t.Fatalf("second Finalize: %v", err)
	}

	sm, err := manifest.LoadStage(manifest.StagePath(jobDir, "01_demux"))
	if err != nil {
		t.Fatalf("LoadStage: %v", err)
	}
	if sm.Status != manifest.StatusSuccess {
		t.Fatalf("Status: expected first Finalize to stick, want=%q got=%q", manifest.StatusSuccess, sm.Status)
	}
}

func TestTrackOutputRejectsPathEscapingStageDir(t *testing.T) {
	jobDir := t.TempDir()
	sc, err := Begin(jobDir, "01_demux", "demux", testLogger(t), nil)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	err = sc.TrackOutput("../../escaped.wav", "audio", "wav")
	if err == nil {
		t.Fatal("expected containment violation error, got nil")
	}
}

func TestAddErrorAndWarning(t *testing.T) {
	jobDir := t.TempDir()
	sc, err := Begin(jobDir, "06_asr", "asr", testLogger(t), nil)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	sc.AddError("transient failure")
	sc.AddWarning("degraded mode")
	outPath := filepath.Join(sc.StageDir, "out.json")
	if err := os.WriteFile(outPath, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write output: %v", err)
	}
	if err := sc.TrackOutput("out.json", "transcript", "json"); err != nil {
		t.Fatalf("TrackOutput: %v", err)
	}
	if err := sc.Finalize(manifest.StatusSuccess); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	sm, err := manifest.LoadStage(manifest.StagePath(jobDir, "06_asr"))
	if err != nil {
		t.Fatalf("LoadStage: %v", err)
	}
	if len(sm.Errors) != 1 || sm.Errors[0] != "transient failure" {
		t.Fatalf("Errors: unexpected %+v", sm.Errors)
	}
	if len(sm.Warnings) != 1 || sm.Warnings[0] != "degraded mode" {
		t.Fatalf("Warnings: unexpected %+v", sm.Warnings)
	}
}

func TestSetConfigEmbedsSnapshot(t *testing.T) {
	jobDir := t.TempDir()
	sc, err := Begin(jobDir, "06_asr", "asr", testLogger(t), nil)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	snap := map[string]any{"model": "large"}
	sc.SetConfig(snap)
	if got := sc.ConfigSnapshot(); got["model"] != "large" {
		t.Fatalf("ConfigSnapshot: unexpected %+v", got)
	}
}
