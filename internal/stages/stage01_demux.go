package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clipforge/mediapipe/internal/manifest"
	"github.com/clipforge/mediapipe/internal/mediaid"
	"github.com/clipforge/mediapipe/internal/pipelineerr"
	"github.com/clipforge/mediapipe/internal/stageio"
)

// IdentityRecord is the demux stage's identity.json: the media fingerprint
// every downstream cacheable stage folds into its cache key.
type IdentityRecord struct {
	MediaID    string `json:"media_id"`
	DurationMS int64  `json:"duration_ms"`
}

// RunDemux decodes the job's input media to canonical 16kHz mono PCM,
// computes its content-based media identity, and records both. It is never
// cacheable: it is the stage that establishes the cache key every other
// stage uses (§4.2, §4.8 stage 01).
func RunDemux(ctx context.Context, sc *stageio.Context, env Env) (skipped bool, err error) {
	sc.SetConfig(env.Resolver.ConfigSubset("demux.sample_rate_hz", "demux.channels"))

	sampleRate := env.Resolver.GetInt("demux.sample_rate_hz", 16000)
	channels := env.Resolver.GetInt("demux.channels", 1)

	audioPath := filepath.Join(sc.StageDir, "audio.wav")
	if _, err := env.Tools.ExtractAudioFromVideo(ctx, env.Descriptor.InputMedia, audioPath, audioExtractOptions(sampleRate, channels)); err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, fmt.Errorf("demux: %w", err))
	}
	if err := sc.TrackOutput("audio.wav", "canonical_audio", "wav"); err != nil {
		return false, err
	}

	durationMS, err := env.Tools.ProbeDurationMS(ctx, env.Descriptor.InputMedia)
	if err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, fmt.Errorf("probe duration: %w", err))
	}
	sc.SetMetric("duration_ms", float64(durationMS))
	if durationMS <= 0 {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, fmt.Errorf("zero-duration audio after demux"))
	}

	mediaID, err := mediaid.Identity(audioPath, durationMS)
	if err != nil {
		return false, pipelineerr.New(pipelineerr.KindSubsystemError, sc.StageName, fmt.Errorf("compute media identity: %w", err))
	}

	rec := IdentityRecord{MediaID: mediaID, DurationMS: durationMS}
	if err := writeJSONFile(filepath.Join(sc.StageDir, "identity.json"), rec); err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}
	return false, sc.TrackOutput("identity.json", "media_identity", "json")
}

// LoadIdentity reads stage 01's identity.json, the entry point every
// downstream stage uses to learn the job's media identity.
func LoadIdentity(jobDir string) (IdentityRecord, error) {
	var rec IdentityRecord
	b, err := os.ReadFile(upstream(jobDir, DirDemux, "identity.json"))
	if err != nil {
		return rec, fmt.Errorf("read media identity: %w", err)
	}
	if err := json.Unmarshal(b, &rec); err != nil {
		return rec, fmt.Errorf("parse media identity: %w", err)
	}
	return rec, nil
}

func writeJSONFile(path string, v any) error {
	return manifest.WriteAtomic(path, v)
}
