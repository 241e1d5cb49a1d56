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

type RegionsRecord struct {
	Regions []collaborators.SpeechRegion `json:"regions"`
}

// RunVADDiarize finds speech regions and assigns speaker labels, feeding
// stage 06's per-region transcription (§4.8 stage 05). Always runs; not
// optional. Cacheable on media identity plus the audio source actually
// used (the separated vocal stem when stage 04 ran, else the demuxed mix).
func RunVADDiarize(ctx context.Context, sc *stageio.Context, env Env) (skipped bool, err error) {
	sc.SetConfig(env.Resolver.ConfigSubset("vad.min_speech_ms"))

	if env.VADDiarizer == nil {
		return false, pipelineerr.New(pipelineerr.KindConfigMissing, sc.StageName, errNoCollaborator("VADDiarizer"))
	}

	identity, err := LoadIdentity(env.JobDir)
	if err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}
	audioPath := vadInputAudio(env.JobDir)

	cfg := sc.ConfigSnapshot()
	cfg["audio_source"] = filepath.Base(filepath.Dir(audioPath))
	key := cache.Key{StageName: sc.StageName, MediaID: identity.MediaID, ConfigSubset: cfg}
	if hit, err := sc.CacheLookup(key); err != nil {
		return false, err
	} else if hit {
		return false, nil
	}

	regions, err := env.VADDiarizer.Diarize(ctx, audioPath)
	if err != nil {
		return false, pipelineerr.New(pipelineerr.KindSubsystemError, sc.StageName, err)
	}

	rec := RegionsRecord{Regions: regions}
	if err := writeJSONFile(filepath.Join(sc.StageDir, "regions.json"), rec); err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}
	if err := sc.TrackOutput("regions.json", "speech_regions", "json"); err != nil {
		return false, err
	}
	return false, sc.CacheStore(key, []string{"regions.json"}, env.Descriptor.JobID)
}

// vadInputAudio prefers the separated vocal stem if stage 04 produced one.
func vadInputAudio(jobDir string) string {
	vocal := upstream(jobDir, DirSourceSeparate, "vocal.wav")
	if _, err := os.Stat(vocal); err == nil {
		return vocal
	}
	return upstream(jobDir, DirDemux, "audio.wav")
}

func LoadRegions(jobDir string) (RegionsRecord, error) {
	var rec RegionsRecord
	b, err := os.ReadFile(upstream(jobDir, DirVADDiarize, "regions.json"))
	if err != nil {
		return rec, err
	}
	err = json.Unmarshal(b, &rec)
	return rec, err
}
