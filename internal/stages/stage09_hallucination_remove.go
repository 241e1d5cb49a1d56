package stages

import (
	"context"
	"path/filepath"

	"github.com/clipforge/mediapipe/internal/cache"
	"github.com/clipforge/mediapipe/internal/collaborators"
	"github.com/clipforge/mediapipe/internal/pipelineerr"
	"github.com/clipforge/mediapipe/internal/stageio"
)

// RunHallucinationRemove drops ASR segments flagged as likely
// hallucinations or burned-in lyrics misattribution, producing the
// cleaned segment set stage 10 translates (§4.8 stage 09). Optional: with no
// detector configured, only the segments stage 08 flagged as lyrics are
// dropped and the rest of stage 07's segments carry through unchanged.
func RunHallucinationRemove(ctx context.Context, sc *stageio.Context, env Env) (skipped bool, err error) {
	sc.SetConfig(env.Resolver.ConfigSubset("hallucination.enabled"))

	identity, err := LoadIdentity(env.JobDir)
	if err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}
	segs, err := LoadSegments(env.JobDir, DirAlignment)
	if err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}

	if env.Hallucination == nil {
		sc.AddWarning("no hallucination detector configured, removing only lyrics-flagged segments")
	}

	key := cache.Key{StageName: sc.StageName, MediaID: identity.MediaID, ConfigSubset: sc.ConfigSnapshot()}
	if hit, err := sc.CacheLookup(key); err != nil {
		return false, err
	} else if hit {
		return false, nil
	}

	remove := map[int]bool{}
	if lyrics, ok := LoadLyrics(env.JobDir); ok {
		for _, i := range lyrics.FlaggedIndices {
			remove[i] = true
		}
	}
	if env.Hallucination != nil {
		flagged, err := env.Hallucination.Detect(ctx, segs.Segments)
		if err != nil {
			sc.AddWarning("hallucination detection failed: " + err.Error())
		} else {
			for _, i := range flagged {
				remove[i] = true
			}
		}
	}

	cleaned := make([]collaborators.ASRSegment, 0, len(segs.Segments))
	for i, s := range segs.Segments {
		if remove[i] {
			continue
		}
		cleaned = append(cleaned, s)
	}

	rec := SegmentsRecord{Segments: cleaned}
	if err := writeJSONFile(filepath.Join(sc.StageDir, "segments.json"), rec); err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}
	if err := sc.TrackOutput("segments.json", "cleaned_segments", "json"); err != nil {
		return false, err
	}
	return false, sc.CacheStore(key, []string{"segments.json"}, env.Descriptor.JobID)
}
