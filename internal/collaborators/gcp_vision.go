package collaborators

import (
	"context"
	"fmt"
	"os"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/clipforge/mediapipe/internal/logging"
)

// OnScreenTextDetector finds burned-in text in a keyframe image, the
// collaborator behind stage 08's optional lyrics-detection pass: karaoke
// and music-video sources often carry lyrics as hard-subtitled text that
// ASR picks up as speech and that this stage flags for removal/annotation
// rather than translation.
type OnScreenTextDetector interface {
	DetectText(ctx context.Context, keyframePath string) ([]string, error)
}

// gcpVisionTextDetector adapts cloud.google.com/go/vision/v2 behind
// OnScreenTextDetector, grounded on the same client-construction idiom as
// the other GCP collaborators in this package.
type gcpVisionTextDetector struct {
	log    *logging.Logger
	client *vision.ImageAnnotatorClient
}

func NewGCPVisionTextDetector(ctx context.Context, log *logging.Logger) (OnScreenTextDetector, error) {
	c, err := vision.NewImageAnnotatorClient(ctx, clientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &gcpVisionTextDetector{log: log.With("collaborator", "gcp.vision"), client: c}, nil
}

func (d *gcpVisionTextDetector) DetectText(ctx context.Context, keyframePath string) ([]string, error) {
	data, err := os.ReadFile(keyframePath)
	if err != nil {
		return nil, fmt.Errorf("read keyframe: %w", err)
	}
	img := &visionpb.Image{Content: data}
	req := &visionpb.AnnotateImageRequest{
		Image:    img,
		Features: []*visionpb.Feature{{Type: visionpb.Feature_TEXT_DETECTION}},
	}
	resp, err := d.client.AnnotateImage(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision annotate: %w", err)
	}
	var lines []string
	for _, a := range resp.GetTextAnnotations() {
		if d := a.GetDescription(); d != "" {
			lines = append(lines, d)
		}
	}
	return lines, nil
}

func (d *gcpVisionTextDetector) Close() error { return d.client.Close() }
