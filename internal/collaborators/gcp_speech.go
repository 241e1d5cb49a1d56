package collaborators

import (
	"context"
	"fmt"
	"os"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"

	"github.com/clipforge/mediapipe/internal/logging"
)

// gcpSpeechEngine adapts cloud.google.com/go/speech behind the ASREngine
// contract: client construction from env-sourced credentials, a thin
// Close().
type gcpSpeechEngine struct {
	log    *logging.Logger
	client *speech.Client
}

// NewGCPSpeechEngine constructs an ASREngine backed by Google Cloud Speech.
// Credentials are sourced from GOOGLE_APPLICATION_CREDENTIALS_JSON (inline)
// or GOOGLE_APPLICATION_CREDENTIALS (file path); neither set falls back to
// application-default credentials.
func NewGCPSpeechEngine(ctx context.Context, log *logging.Logger) (ASREngine, error) {
	c, err := speech.NewClient(ctx, clientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return &gcpSpeechEngine{log: log.With("collaborator", "gcp.speech"), client: c}, nil
}

func (e *gcpSpeechEngine) Transcribe(ctx context.Context, req ASRRequest) (*ASRResult, error) {
	data, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("read canonical audio: %w", err)
	}

	cfg := &speechpb.RecognitionConfig{
		Encoding:        speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz: 16000,
		LanguageCode:    req.SourceLanguage,
		Model:           req.Model,
		SpeechContexts: []*speechpb.SpeechContext{
			{Phrases: req.GlossaryBias},
		},
		EnableWordTimeOffsets: true,
	}

	resp, err := e.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: cfg,
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: data}},
	})
	if err != nil {
		return nil, fmt.Errorf("speech recognize: %w", err)
	}

	result := &ASRResult{}
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		var startMS, endMS int64
		if len(alt.Words) > 0 {
			startMS = alt.Words[0].GetStartTime().AsDuration().Milliseconds()
			endMS = alt.Words[len(alt.Words)-1].GetEndTime().AsDuration().Milliseconds()
		}
		result.Segments = append(result.Segments, ASRSegment{
			StartMS: startMS,
			EndMS:   endMS,
			Text:    strings.TrimSpace(alt.Transcript),
		})
	}
	return result, nil
}

func (e *gcpSpeechEngine) Close() error { return e.client.Close() }

func clientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}
