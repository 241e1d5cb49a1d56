package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/clipforge/mediapipe/internal/jobprep"
	"github.com/clipforge/mediapipe/internal/logging"
	"github.com/clipforge/mediapipe/internal/orchestrator"
)

func newRunPipelineCmd() *cobra.Command {
	var (
		jobID   string
		resume  bool
		stages  []string
	)

	cmd := &cobra.Command{
		Use:   "run-pipeline",
		Short: "Execute a prepared job's stage sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.New(loggingMode())
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer log.Sync()

			jobDir, err := findJobDir(outRoot(), jobID)
			if err != nil {
				return err
			}
			desc, err := loadDescriptor(jobDir)
			if err != nil {
				return err
			}

			code, err := orchestrator.Run(cmd.Context(), orchestrator.Options{
				JobDir:            jobDir,
				Resume:            resume,
				StageSubset:       stages,
				TargetLanguages:   desc.TargetLanguages,
				Workflow:          string(desc.Workflow),
				Log:               log.With("job_id", desc.JobID),
				ContinueOnFailure: desc.ContinueOnFailure,
			})
			if err != nil {
				fmt.Fprintln(os.Stderr, "pipeline run failed:", err)
			}
			if code != orchestrator.ExitSuccess {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&jobID, "job", "", "job id assigned by prepare-job")
	cmd.Flags().BoolVar(&resume, "resume", true, "skip stages already completed successfully")
	cmd.Flags().StringSliceVar(&stages, "stages", nil, "restrict the run to these stage names")
	_ = cmd.MarkFlagRequired("job")

	return cmd
}

// findJobDir locates the job directory for jobID by scanning the
// out/YYYY/MM/DD/<user_id>/<seq>/ tree for a job.json whose job_id matches,
// since the directory path itself is not derivable from the id alone.
func findJobDir(outRoot, jobID string) (string, error) {
	var found string
	err := filepath.WalkDir(outRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil || found != "" {
			return err
		}
		if d.IsDir() || d.Name() != "job.json" {
			return nil
		}
		b, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		var desc jobprep.Descriptor
		if jsonErr := json.Unmarshal(b, &desc); jsonErr != nil {
			return nil
		}
		if desc.JobID == jobID {
			found = filepath.Dir(path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan for job %q: %w", jobID, err)
	}
	if found == "" {
		return "", fmt.Errorf("no job directory found for job id %q", jobID)
	}
	return found, nil
}

func loadDescriptor(jobDir string) (*jobprep.Descriptor, error) {
	b, err := os.ReadFile(filepath.Join(jobDir, "job.json"))
	if err != nil {
		return nil, fmt.Errorf("read job.json: %w", err)
	}
	var desc jobprep.Descriptor
	if err := json.Unmarshal(b, &desc); err != nil {
		return nil, fmt.Errorf("parse job.json: %w", err)
	}
	return &desc, nil
}
