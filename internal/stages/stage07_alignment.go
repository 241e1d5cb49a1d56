package stages

import (
	"context"
	"path/filepath"

	"github.com/clipforge/mediapipe/internal/cache"
	"github.com/clipforge/mediapipe/internal/pipelineerr"
	"github.com/clipforge/mediapipe/internal/stageio"
)

// RunAlignment refines stage 06's transcript timing to word/phrase
// granularity (§4.8 stage 07). orchestrator.BaselineCutoff names this
// stage, but nothing reads that constant: there is no separate baseline
// cache phase, and stage 03's glossary terms have already biased stage 06's
// transcription by the time this stage runs.
func RunAlignment(ctx context.Context, sc *stageio.Context, env Env) (skipped bool, err error) {
	sc.SetConfig(env.Resolver.ConfigSubset("alignment.model"))

	if env.Aligner == nil {
		return false, pipelineerr.New(pipelineerr.KindConfigMissing, sc.StageName, errNoCollaborator("Aligner"))
	}

	identity, err := LoadIdentity(env.JobDir)
	if err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}
	segs, err := LoadSegments(env.JobDir, DirASR)
	if err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}

	key := cache.Key{StageName: sc.StageName, MediaID: identity.MediaID, ConfigSubset: sc.ConfigSnapshot()}
	if hit, err := sc.CacheLookup(key); err != nil {
		return false, err
	} else if hit {
		return false, nil
	}

	aligned, err := env.Aligner.Align(ctx, vadInputAudio(env.JobDir), segs.Segments)
	if err != nil {
		return false, pipelineerr.New(pipelineerr.KindSubsystemError, sc.StageName, err)
	}

	rec := SegmentsRecord{Segments: aligned}
	if err := writeJSONFile(filepath.Join(sc.StageDir, "segments.json"), rec); err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}
	if err := sc.TrackOutput("segments.json", "aligned_segments", "json"); err != nil {
		return false, err
	}
	return false, sc.CacheStore(key, []string{"segments.json"}, env.Descriptor.JobID)
}
