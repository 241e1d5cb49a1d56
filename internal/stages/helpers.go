package stages

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/clipforge/mediapipe/internal/platform/localmedia"
)

func errNoCollaborator(name string) error {
	return fmt.Errorf("no %s collaborator configured", name)
}

func decodeJSON(b []byte, v any) error {
	return json.Unmarshal(b, v)
}

func audioExtractOptions(sampleRate, channels int) localmedia.AudioExtractOptions {
	return localmedia.AudioExtractOptions{SampleRateHz: sampleRate, Channels: channels, Format: "wav"}
}

// relTo returns path relative to base, falling back to path itself if it
// cannot be made relative (it should always be able to: collaborators are
// instructed to write into the stage directory they're handed).
func relTo(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return rel
}
