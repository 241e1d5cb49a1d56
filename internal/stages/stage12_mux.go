package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clipforge/mediapipe/internal/pipelineerr"
	"github.com/clipforge/mediapipe/internal/stageio"
)

// RunMux remuxes the original video with every target language's subtitle
// track into the final output container (§4.8 stage 12, the subtitle
// workflow's terminal stage). Optional: no subtitle tracks at all (every
// target language's encode was skipped) degrades to a warning rather than
// a fatal error, since the job still produced useful upstream artifacts.
func RunMux(ctx context.Context, sc *stageio.Context, env Env) (skipped bool, err error) {
	var subtitlePaths []string
	for _, lang := range env.Descriptor.TargetLanguages {
		p := upstream(env.JobDir, DirSubtitleEncode, fmt.Sprintf("subtitles_%s.srt", lang))
		if _, statErr := os.Stat(p); statErr == nil {
			subtitlePaths = append(subtitlePaths, p)
		}
	}
	if len(subtitlePaths) == 0 {
		sc.AddWarning("no subtitle tracks available to mux")
		return true, nil
	}

	outFile := "output" + filepath.Ext(env.Descriptor.InputMedia)
	if outFile == "output" {
		outFile = "output.mp4"
	}
	outPath := filepath.Join(sc.StageDir, outFile)

	if err := env.Tools.Mux(ctx, env.Descriptor.InputMedia, subtitlePaths, outPath); err != nil {
		return false, pipelineerr.New(pipelineerr.KindSubsystemError, sc.StageName, err)
	}
	return false, sc.TrackOutput(outFile, "final_video", "container")
}
