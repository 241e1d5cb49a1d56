package stages

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/clipforge/mediapipe/internal/cache"
	"github.com/clipforge/mediapipe/internal/collaborators"
	"github.com/clipforge/mediapipe/internal/pipelineerr"
	"github.com/clipforge/mediapipe/internal/stageio"
)

type SegmentsRecord struct {
	Segments []collaborators.ASRSegment `json:"segments"`
}

// RunASR transcribes each diarized speech region in the source language
// (§4.8 stage 06), the single most expensive stage and the reason its
// default timeout (§4.1) is measured in hours rather than minutes.
// Cacheable on media identity plus the ASR model/compute-type config.
func RunASR(ctx context.Context, sc *stageio.Context, env Env) (skipped bool, err error) {
	sc.SetConfig(env.Resolver.ConfigSubset("asr.model", "asr.compute_type", "asr.beam_size"))

	if env.ASREngine == nil {
		return false, pipelineerr.New(pipelineerr.KindConfigMissing, sc.StageName, errNoCollaborator("ASREngine"))
	}

	identity, err := LoadIdentity(env.JobDir)
	if err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}
	glossary, _ := LoadGlossary(env.JobDir)

	cfg := sc.ConfigSnapshot()
	cfg["source_language"] = env.Descriptor.SourceLanguage
	key := cache.Key{StageName: sc.StageName, MediaID: identity.MediaID, ConfigSubset: cfg}
	if hit, err := sc.CacheLookup(key); err != nil {
		return false, err
	} else if hit {
		return false, nil
	}

	req := collaborators.ASRRequest{
		AudioPath:      vadInputAudio(env.JobDir),
		SourceLanguage: env.Descriptor.SourceLanguage,
		GlossaryBias:   glossary.Terms,
		Model:          env.Resolver.GetString("asr.model", "default"),
		ComputeType:    env.Resolver.GetString("asr.compute_type", "float16"),
		BeamSize:       env.Resolver.GetInt("asr.beam_size", 5),
	}
	result, err := env.ASREngine.Transcribe(ctx, req)
	if err != nil {
		return false, pipelineerr.New(pipelineerr.KindSubsystemError, sc.StageName, err)
	}
	for _, w := range result.Warnings {
		sc.AddWarning(w)
	}

	rec := SegmentsRecord{Segments: result.Segments}
	if err := writeJSONFile(filepath.Join(sc.StageDir, "segments.json"), rec); err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}
	if err := sc.TrackOutput("segments.json", "asr_segments", "json"); err != nil {
		return false, err
	}
	return false, sc.CacheStore(key, []string{"segments.json"}, env.Descriptor.JobID)
}

func LoadSegments(jobDir, stageDir string) (SegmentsRecord, error) {
	var rec SegmentsRecord
	b, err := os.ReadFile(upstream(jobDir, stageDir, "segments.json"))
	if err != nil {
		return rec, err
	}
	err = json.Unmarshal(b, &rec)
	return rec, err
}
