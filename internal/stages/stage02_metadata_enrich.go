package stages

import (
	"context"
	"path/filepath"

	"github.com/clipforge/mediapipe/internal/pipelineerr"
	"github.com/clipforge/mediapipe/internal/stageio"
)

type MetadataRecord struct {
	Title string   `json:"title"`
	Year  int      `json:"year"`
	Cast  []string `json:"cast"`
	Terms []string `json:"terms"`
}

// RunMetadataEnrich looks up structured context for the source title. It is
// optional (§4.1 subtitle workflow): disabled input or a lookup failure
// produces a warning and a skip, never a fatal error (§4.8 stage 02).
func RunMetadataEnrich(ctx context.Context, sc *stageio.Context, env Env) (skipped bool, err error) {
	if !env.Descriptor.TMDBEnrichment.Enabled {
		sc.AddWarning("metadata enrichment disabled for this job")
		return true, nil
	}
	if env.MetadataService == nil {
		sc.AddWarning("no metadata service configured, skipping enrichment")
		return true, nil
	}

	md, err := env.MetadataService.Lookup(ctx, env.Descriptor.TMDBEnrichment.Title, env.Descriptor.TMDBEnrichment.Year)
	if err != nil {
		sc.AddWarning("metadata lookup failed: " + err.Error())
		return true, nil
	}

	rec := MetadataRecord{Title: md.Title, Year: md.Year, Cast: md.Cast, Terms: md.Terms}
	if err := writeJSONFile(filepath.Join(sc.StageDir, "metadata.json"), rec); err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}
	return false, sc.TrackOutput("metadata.json", "media_metadata", "json")
}
