package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clipforge/mediapipe/internal/collaborators"
	"github.com/clipforge/mediapipe/internal/jobprep"
	"github.com/clipforge/mediapipe/internal/logging"
)

func newPrepareJobCmd() *cobra.Command {
	var (
		media           string
		workflow        string
		sourceLanguage  string
		targetLanguages []string
		userID          int64
		startTime       string
		endTime         string
		tmdbTitle       string
		tmdbYear        int
		estimateOnly    bool
	)

	cmd := &cobra.Command{
		Use:   "prepare-job",
		Short: "Turn a raw media request into a prepared job directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.New(loggingMode())
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer log.Sync()

			ctx := cmd.Context()
			wc := wireCollaborators(ctx, log, usersRoot(), costSinkPath())

			var downloader collaborators.Downloader // out-of-scope external video-download service; unwired by default

			preparer := &jobprep.Preparer{
				OutRoot:         outRoot(),
				DownloadsRoot:   downloadsRoot(),
				Log:             log,
				Downloader:      downloader,
				MetadataService: wc.Metadata,
				Profiles:        wc.Profiles,
				CostRateTable:   defaultCostRateTable(),
			}

			desc, jobDir, err := preparer.Prepare(ctx, jobprep.Options{
				Media:           media,
				Workflow:        jobprep.Workflow(workflow),
				SourceLanguage:  sourceLanguage,
				TargetLanguages: targetLanguages,
				UserID:          userID,
				StartTime:       startTime,
				EndTime:         endTime,
				TMDBTitle:       tmdbTitle,
				TMDBYear:        tmdbYear,
				EstimateOnly:    estimateOnly,
			})
			if err != nil {
				return err
			}
			if estimateOnly {
				fmt.Printf("estimated_cost_usd=%.2f\n", desc.CostEstimateUSD)
				return nil
			}
			fmt.Println(desc.JobID)
			_ = jobDir
			return nil
		},
	}

	cmd.Flags().StringVar(&media, "media", "", "local path or supported video-service URL")
	cmd.Flags().StringVar(&workflow, "workflow", "", "transcribe|translate|subtitle")
	cmd.Flags().StringVar(&sourceLanguage, "source-language", "", "source language code")
	cmd.Flags().StringSliceVar(&targetLanguages, "target-languages", nil, "comma-separated target language codes")
	cmd.Flags().Int64Var(&userID, "user-id", 0, "requesting user id")
	cmd.Flags().StringVar(&startTime, "start-time", "", "clip start, HH:MM:SS")
	cmd.Flags().StringVar(&endTime, "end-time", "", "clip end, HH:MM:SS")
	cmd.Flags().StringVar(&tmdbTitle, "tmdb-title", "", "title hint for metadata enrichment")
	cmd.Flags().IntVar(&tmdbYear, "tmdb-year", 0, "year hint for metadata enrichment")
	cmd.Flags().BoolVar(&estimateOnly, "estimate-only", false, "print the cost estimate and exit without preparing a job")
	_ = cmd.MarkFlagRequired("media")
	_ = cmd.MarkFlagRequired("workflow")
	_ = cmd.MarkFlagRequired("source-language")

	return cmd
}

// defaultCostRateTable is the per-stage USD/minute rate table used for
// job-prep cost estimation. It is not read through the config resolver, so
// no configuration layer overrides these rates.
func defaultCostRateTable() map[string]float64 {
	return map[string]float64{
		"demux":                0,
		"metadata-enrich":      0.002,
		"glossary-load":        0,
		"source-separate":      0.01,
		"vad-diarize":          0.003,
		"asr":                  0.024,
		"alignment":            0.004,
		"lyrics-detect":        0.006,
		"hallucination-remove": 0.001,
		"translate":            0.008,
		"subtitle-encode":      0,
		"mux":                  0,
	}
}
