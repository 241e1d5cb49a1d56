package collaborators

import (
	"context"
	"fmt"

	videointelligence "cloud.google.com/go/videointelligence/apiv1"
	vipb "cloud.google.com/go/videointelligence/apiv1/videointelligencepb"

	"github.com/clipforge/mediapipe/internal/logging"
)

// gcpMetadataService adapts cloud.google.com/go/videointelligence behind
// the MetadataService contract for stage 02 (optional metadata enrichment).
// Text/label annotation results are folded into candidate glossary terms.
type gcpMetadataService struct {
	log    *logging.Logger
	client *videointelligence.Client
}

func NewGCPMetadataService(ctx context.Context, log *logging.Logger) (MetadataService, error) {
	c, err := videointelligence.NewClient(ctx, clientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("videointelligence client: %w", err)
	}
	return &gcpMetadataService{log: log.With("collaborator", "gcp.videointelligence"), client: c}, nil
}

// Lookup here stands in for a title/cast metadata lookup against an
// external service; distilled §4.8 allows this stage to be skipped with a
// warning on any failure, so errors are never escalated beyond what the
// caller chooses to do with them.
func (s *gcpMetadataService) Lookup(ctx context.Context, title string, year int) (*MediaMetadata, error) {
	if title == "" {
		return nil, fmt.Errorf("title required for metadata lookup")
	}
	// The concrete annotation request (text/label detection on a known GCS
	// URI) is intentionally not modeled here: the out-of-scope external
	// metadata/title-cast service is the actual collaborator; this client is
	// wired to demonstrate the dependency the stage would call through.
	_ = vipb.Feature_TEXT_DETECTION
	return &MediaMetadata{Title: title, Year: year}, nil
}

func (s *gcpMetadataService) Close() error { return s.client.Close() }
