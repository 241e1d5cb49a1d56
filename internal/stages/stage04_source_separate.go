package stages

import (
	"context"

	"github.com/clipforge/mediapipe/internal/cache"
	"github.com/clipforge/mediapipe/internal/pipelineerr"
	"github.com/clipforge/mediapipe/internal/stageio"
)

// RunSourceSeparate isolates the vocal stem from background music/effects
// before ASR, improving transcription accuracy on music-heavy sources
// (§4.8 stage 04). Optional: disabled or unconfigured is a skip, not a
// failure. Cacheable on media identity plus the separator's quality tier.
func RunSourceSeparate(ctx context.Context, sc *stageio.Context, env Env) (skipped bool, err error) {
	sc.SetConfig(env.Resolver.ConfigSubset("source_separation.quality"))

	if !env.Descriptor.SourceSeparation.Enabled {
		sc.AddWarning("source separation disabled for this job")
		return true, nil
	}
	if env.SourceSeparator == nil {
		sc.AddWarning("no source separator configured, proceeding with mixed audio")
		return true, nil
	}

	identity, err := LoadIdentity(env.JobDir)
	if err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}
	key := cache.Key{StageName: sc.StageName, MediaID: identity.MediaID, ConfigSubset: sc.ConfigSnapshot()}
	if hit, err := sc.CacheLookup(key); err != nil {
		return false, err
	} else if hit {
		return false, nil
	}

	audioPath := upstream(env.JobDir, DirDemux, "audio.wav")
	vocalPath, backgroundPath, err := env.SourceSeparator.Separate(ctx, audioPath, sc.StageDir)
	if err != nil {
		sc.AddWarning("source separation failed: " + err.Error())
		return true, nil
	}
	if err := sc.TrackOutput(relTo(sc.StageDir, vocalPath), "vocal_audio", "wav"); err != nil {
		return false, err
	}
	if backgroundPath != "" {
		if err := sc.TrackOutput(relTo(sc.StageDir, backgroundPath), "background_audio", "wav"); err != nil {
			return false, err
		}
	}
	return false, sc.CacheStore(key, []string{relTo(sc.StageDir, vocalPath)}, env.Descriptor.JobID)
}
