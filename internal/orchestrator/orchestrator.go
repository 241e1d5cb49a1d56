// Package orchestrator implements the pipeline orchestrator: given a job
// ID, it executes a workflow's stage sequence to completion or a fatal
// failure, honoring resume semantics. It holds no ML state and performs no
// I/O beyond job files; each stage runs as an isolated subprocess so that
// crashes or incompatible runtime dependencies in ML code cannot corrupt
// the orchestrator (§5, §9).
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/clipforge/mediapipe/internal/logging"
	"github.com/clipforge/mediapipe/internal/manifest"
	"github.com/clipforge/mediapipe/internal/pipelineerr"
)

// ExitCode mirrors the run-pipeline CLI's documented exit codes.
type ExitCode int

const (
	ExitSuccess      ExitCode = 0
	ExitStageFailure ExitCode = 1
)

// StageExecutable resolves the subprocess command used to run a given
// stage, per the §9 design note: "a small static table keyed on stage
// name", rather than a pluggable in-process registry. The default is this
// same binary invoked with its hidden run-stage subcommand; a deployment
// can override entries to point at a stage-specific executable/environment.
type StageExecutable func(stageName string) (path string, args []string)

// DefaultStageExecutable re-invokes the current binary for every stage,
// keeping the "each stage is a separate OS process" guarantee without
// requiring twelve standalone binaries to exist on disk.
func DefaultStageExecutable(stageName string) (string, []string) {
	self, err := os.Executable()
	if err != nil {
		self = os.Args[0]
	}
	return self, []string{"run-stage", stageName}
}

type Options struct {
	JobDir          string
	Resume          bool
	StageSubset     []string
	TargetLanguages []string
	Workflow        string
	Log             *logging.Logger
	StageExecutable StageExecutable
	// CancelSentinel, if present in JobDir, is polled between stages to
	// implement cooperative cancellation (§5).
	CancelSentinel string
	// ContinueOnFailure names the stages (job descriptor's continue_on_failure,
	// §6) whose failure degrades gracefully instead of failing the run. A
	// stage being a candidate for graceful degradation in a given workflow
	// (StageDef.Optional) is necessary but not sufficient: only stages the
	// job descriptor actually lists here are allowed to fail softly (§4.1).
	ContinueOnFailure []string
}

func (o Options) continueOnFailure(stageName string) bool {
	for _, s := range o.ContinueOnFailure {
		if s == stageName {
			return true
		}
	}
	return false
}

// Run executes workflow's stage sequence against the prepared job directory
// at opts.JobDir, applying resume semantics and graceful degradation.
func Run(ctx context.Context, opts Options) (ExitCode, error) {
	exec := opts.StageExecutable
	if exec == nil {
		exec = DefaultStageExecutable
	}
	if opts.CancelSentinel == "" {
		opts.CancelSentinel = filepath.Join(opts.JobDir, "CANCEL")
	}

	stages := StagesForWorkflow(opts.Workflow, opts.StageSubset)
	if len(stages) == 0 {
		return ExitStageFailure, fmt.Errorf("no stages resolved for workflow %q", opts.Workflow)
	}

	allDirs := make([]string, 0, len(stages))
	for _, s := range stages {
		allDirs = append(allDirs, s.RelDir)
	}

	invalidateFrom := -1
	for i, s := range stages {
		if opts.Resume {
			sm, err := manifest.LoadStage(manifest.StagePath(opts.JobDir, s.RelDir))
			if err == nil && sm != nil && sm.Status == manifest.StatusSuccess && manifest.VerifyOutputs(opts.JobDir, s.RelDir, sm) {
				sm.Status = manifest.StatusSkippedResume
				_ = manifest.WriteAtomic(manifest.StagePath(opts.JobDir, s.RelDir), sm)
				opts.Log.Info("stage skipped on resume", "stage", s.Name)
				continue
			}
		}
		invalidateFrom = i
		break
	}

	if invalidateFrom >= 0 {
		for _, s := range stages[invalidateFrom:] {
			_ = os.RemoveAll(filepath.Join(opts.JobDir, s.RelDir))
		}
		for _, s := range stages[invalidateFrom:] {
			if isCanceled(opts.CancelSentinel) {
				opts.Log.Info("cancellation observed between stages")
				return ExitStageFailure, fmt.Errorf("job canceled")
			}
			if s.PerTargetLanguage && len(opts.TargetLanguages) > 0 {
				for _, lang := range opts.TargetLanguages {
					if err := runOneStage(ctx, opts, s, exec, lang); err != nil {
						if code, herr := handleStageErr(opts, s, err); code != ExitSuccess {
							return code, herr
						}
					}
				}
				continue
			}
			if err := runOneStage(ctx, opts, s, exec, ""); err != nil {
				if code, herr := handleStageErr(opts, s, err); code != ExitSuccess {
					return code, herr
				}
			}
		}
	}

	if _, err := manifest.WriteAggregate(opts.JobDir, filepath.Base(opts.JobDir), allDirs); err != nil {
		return ExitStageFailure, err
	}
	return ExitSuccess, nil
}

func handleStageErr(opts Options, s StageDef, err error) (ExitCode, error) {
	kind := pipelineerr.KindOf(err)
	if s.Optional && opts.continueOnFailure(s.Name) && pipelineerr.Graceful(kind) {
		opts.Log.Warn("stage failed, continuing per continue_on_failure", "stage", s.Name, "error", err.Error())
		return ExitSuccess, nil
	}
	opts.Log.Error("stage failed", "stage", s.Name, "error", err.Error(), "kind", string(kind))
	return ExitStageFailure, fmt.Errorf("stage %q failed: %w", s.Name, err)
}

// runOneStage spawns the stage's subprocess with a per-stage wall-clock
// timeout, classifying a deadline-exceeded exit as KindTimeout per §4.1/§7.
func runOneStage(ctx context.Context, opts Options, s StageDef, resolve StageExecutable, targetLang string) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	path, args := resolve(s.Name)
	args = append(args, "--job-dir", opts.JobDir)
	if targetLang != "" {
		args = append(args, "--target-language", targetLang)
	}

	cmd := exec2(stageCtx, path, args...)
	cmd.Dir = opts.JobDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
			return pipelineerr.New(pipelineerr.KindTimeout, s.Name, fmt.Errorf("stage exceeded %s timeout; output: %s", timeout, string(out)))
		}
		return pipelineerr.New(pipelineerr.KindSubsystemError, s.Name, fmt.Errorf("stage exited non-zero: %w; output: %s", err, string(out)))
	}

	sm, loadErr := manifest.LoadStage(manifest.StagePath(opts.JobDir, s.RelDir))
	if loadErr != nil || sm == nil {
		return pipelineerr.New(pipelineerr.KindAbnormalTerm, s.Name, fmt.Errorf("stage exited zero without finalizing a manifest"))
	}
	if sm.Status == manifest.StatusFailed {
		return pipelineerr.New(pipelineerr.KindSubsystemError, s.Name, fmt.Errorf("stage reported failure in its manifest"))
	}
	return nil
}

func isCanceled(sentinel string) bool {
	_, err := os.Stat(sentinel)
	return err == nil
}

// exec2 is a tiny seam so tests can stub subprocess creation without
// reaching into os/exec directly.
var exec2 = func(ctx context.Context, path string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, path, args...)
}
