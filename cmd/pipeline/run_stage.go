package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clipforge/mediapipe/internal/cache"
	"github.com/clipforge/mediapipe/internal/collaborators"
	"github.com/clipforge/mediapipe/internal/config"
	"github.com/clipforge/mediapipe/internal/jobprep"
	"github.com/clipforge/mediapipe/internal/logging"
	"github.com/clipforge/mediapipe/internal/manifest"
	"github.com/clipforge/mediapipe/internal/platform/localmedia"
	"github.com/clipforge/mediapipe/internal/stages"
	"github.com/clipforge/mediapipe/internal/stageio"
)

// stageRunner is the signature every stages.RunXxx function implements.
type stageRunner func(ctx context.Context, sc *stageio.Context, env stages.Env) (skipped bool, err error)

// stageDispatch is the static stage-name -> (directory, body) table this
// hidden subcommand consults, mirroring internal/orchestrator's stageTable
// without linking that package, per the subprocess-isolation design (§5,
// §9): run-stage is meant to be invocable as a standalone process even in
// a deployment that ships per-stage binaries instead of this one.
var stageDispatch = map[string]struct {
	relDir string
	run    stageRunner
}{
	"demux":                {stages.DirDemux, stages.RunDemux},
	"metadata-enrich":      {stages.DirMetadataEnrich, stages.RunMetadataEnrich},
	"glossary-load":        {stages.DirGlossaryLoad, stages.RunGlossaryLoad},
	"source-separate":      {stages.DirSourceSeparate, stages.RunSourceSeparate},
	"vad-diarize":          {stages.DirVADDiarize, stages.RunVADDiarize},
	"asr":                  {stages.DirASR, stages.RunASR},
	"alignment":            {stages.DirAlignment, stages.RunAlignment},
	"lyrics-detect":        {stages.DirLyricsDetect, stages.RunLyricsDetect},
	"hallucination-remove": {stages.DirHallucination, stages.RunHallucinationRemove},
	"translate":            {stages.DirTranslate, stages.RunTranslate},
	"subtitle-encode":      {stages.DirSubtitleEncode, stages.RunSubtitleEncode},
	"mux":                  {stages.DirMux, stages.RunMux},
}

func newRunStageCmd() *cobra.Command {
	var (
		jobDir         string
		targetLanguage string
	)

	cmd := &cobra.Command{
		Use:    "run-stage <stage-name>",
		Short:  "Execute a single stage as its own process (invoked by the orchestrator)",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stageName := args[0]
			dispatch, ok := stageDispatch[stageName]
			if !ok {
				return fmt.Errorf("unknown stage %q", stageName)
			}

			log, err := logging.New(loggingMode())
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer log.Sync()

			ctx := cmd.Context()
			desc, err := loadDescriptor(jobDir)
			if err != nil {
				return err
			}

			idx, err := cache.OpenIndex(cacheIndexPath())
			if err != nil {
				log.Warn("cache access index unavailable, eviction accelerator disabled", "error", err.Error())
				idx = nil
			}
			c := cache.New(cacheRoot(), idx)
			if bucket := envOr("MEDIAPIPE_CACHE_MIRROR_BUCKET", ""); bucket != "" {
				mirror, merr := cache.NewRemoteMirror(ctx, bucket)
				if merr != nil {
					log.Warn("cache mirror unavailable, uploads disabled", "error", merr.Error())
				} else {
					c.Mirror = mirror
				}
			}

			sc, err := stageio.Begin(jobDir, dispatch.relDir, stageName, log, c)
			if err != nil {
				return fmt.Errorf("begin stage: %w", err)
			}

			resolver, err := config.NewResolver(descriptorConfigMap(desc), jobOverridePath(jobDir), systemConfigPath())
			if err != nil {
				sc.AddError("load config resolver: " + err.Error())
				_ = sc.Finalize(manifest.StatusFailed)
				return err
			}

			wc := wireCollaborators(ctx, log, usersRoot(), costSinkPath())
			env := stages.Env{
				JobDir:          jobDir,
				Descriptor:      desc,
				Resolver:        resolver,
				Tools:           localmedia.New(log),
				MetadataService: wc.Metadata,
				GlossaryExtractor: wc.Glossary,
				ASREngine:       wc.ASR,
				OnScreenText:    wc.Vision,
				TranslationEngine: func(pair string) collaborators.TranslationEngine {
					return nil // universal/specialized translation engines are an out-of-scope external subsystem (§6)
				},
				TargetLanguage: targetLanguage,
			}

			skipped, runErr := dispatch.run(ctx, sc, env)
			status := manifest.StatusSuccess
			if runErr != nil {
				status = manifest.StatusFailed
				sc.AddError(runErr.Error())
			} else if skipped {
				status = manifest.StatusSkipped
			}
			if finalizeErr := sc.Finalize(status); finalizeErr != nil {
				return fmt.Errorf("finalize stage manifest: %w", finalizeErr)
			}
			if status == manifest.StatusSuccess && wc.CostSink != nil {
				recordStageCost(ctx, wc.CostSink, desc, stageName, log)
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&jobDir, "job-dir", "", "prepared job directory")
	cmd.Flags().StringVar(&targetLanguage, "target-language", "", "target language for per-language stages")
	_ = cmd.MarkFlagRequired("job-dir")

	return cmd
}

// descriptorConfigMap projects the job descriptor's own fields into the
// config resolver's top layer, so e.g. "source_separation.enabled" can be
// addressed as a config key alongside system-level defaults.
func descriptorConfigMap(desc *jobprep.Descriptor) map[string]any {
	return map[string]any{
		"source_separation.enabled": desc.SourceSeparation.Enabled,
		"source_separation.quality": desc.SourceSeparation.Quality,
		"tmdb_enrichment.enabled":   desc.TMDBEnrichment.Enabled,
	}
}

func jobOverridePath(jobDir string) string {
	return jobDir + "/.env"
}
