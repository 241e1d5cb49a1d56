package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clipforge/mediapipe/internal/cache"
	"github.com/clipforge/mediapipe/internal/pipelineerr"
	"github.com/clipforge/mediapipe/internal/stageio"
)

type LyricsRecord struct {
	// FlaggedIndices names segments (by index into stage 07's aligned
	// segments.json) whose text likely originates from on-screen burned-in
	// lyrics rather than spoken dialogue.
	FlaggedIndices []int `json:"flagged_indices"`
}

// RunLyricsDetect samples a keyframe at each aligned segment's start time
// and checks for overlapping burned-in text, flagging likely music/lyrics
// misattribution for stage 09 to act on (§4.8 stage 08). Optional: no
// detector configured is a skip, not a failure.
func RunLyricsDetect(ctx context.Context, sc *stageio.Context, env Env) (skipped bool, err error) {
	sc.SetConfig(env.Resolver.ConfigSubset("lyrics_detect.sample_interval_ms"))

	if env.OnScreenText == nil {
		sc.AddWarning("no on-screen text detector configured, skipping lyrics detection")
		return true, nil
	}

	identity, err := LoadIdentity(env.JobDir)
	if err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}
	segs, err := LoadSegments(env.JobDir, DirAlignment)
	if err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}

	key := cache.Key{StageName: sc.StageName, MediaID: identity.MediaID, ConfigSubset: sc.ConfigSnapshot()}
	if hit, err := sc.CacheLookup(key); err != nil {
		return false, err
	} else if hit {
		return false, nil
	}

	framesDir := filepath.Join(sc.StageDir, "frames")
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}

	var flagged []int
	for i, seg := range segs.Segments {
		frame := filepath.Join(framesDir, fmt.Sprintf("seg_%d.jpg", i))
		if err := env.Tools.ExtractKeyframeAt(ctx, env.Descriptor.InputMedia, seg.StartMS, frame); err != nil {
			sc.AddWarning(fmt.Sprintf("keyframe extraction failed for segment %d: %v", i, err))
			continue
		}
		lines, err := env.OnScreenText.DetectText(ctx, frame)
		if err != nil {
			sc.AddWarning(fmt.Sprintf("text detection failed for segment %d: %v", i, err))
			continue
		}
		if len(lines) > 0 {
			flagged = append(flagged, i)
		}
	}

	rec := LyricsRecord{FlaggedIndices: flagged}
	if err := writeJSONFile(filepath.Join(sc.StageDir, "lyrics.json"), rec); err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}
	if err := sc.TrackOutput("lyrics.json", "lyrics_flags", "json"); err != nil {
		return false, err
	}
	return false, sc.CacheStore(key, []string{"lyrics.json"}, env.Descriptor.JobID)
}

func LoadLyrics(jobDir string) (LyricsRecord, bool) {
	var rec LyricsRecord
	b, err := os.ReadFile(upstream(jobDir, DirLyricsDetect, "lyrics.json"))
	if err != nil {
		return rec, false
	}
	if err := decodeJSON(b, &rec); err != nil {
		return rec, false
	}
	return rec, true
}
