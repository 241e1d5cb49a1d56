package collaborators

import (
	"context"
	"fmt"

	documentai "cloud.google.com/go/documentai/apiv1"
	documentaipb "cloud.google.com/go/documentai/apiv1/documentaipb"

	"github.com/clipforge/mediapipe/internal/logging"
)

// GlossaryExtractor pulls candidate glossary terms out of free-text
// metadata (title/description) for stage 03's auto-glossary seeding,
// distilled §4.7.
type GlossaryExtractor interface {
	ExtractTerms(ctx context.Context, text string) ([]string, error)
}

// gcpDocumentAIExtractor adapts cloud.google.com/go/documentai behind the
// GlossaryExtractor contract — entity extraction over the title/description
// blob surfaces proper nouns as glossary candidates.
type gcpDocumentAIExtractor struct {
	log       *logging.Logger
	client    *documentai.DocumentProcessorClient
	processor string // full resource name of a pre-configured DocumentAI processor
}

func NewGCPDocumentAIExtractor(ctx context.Context, log *logging.Logger, processorName string) (GlossaryExtractor, error) {
	c, err := documentai.NewDocumentProcessorClient(ctx, clientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}
	return &gcpDocumentAIExtractor{log: log.With("collaborator", "gcp.documentai"), client: c, processor: processorName}, nil
}

func (e *gcpDocumentAIExtractor) ExtractTerms(ctx context.Context, text string) ([]string, error) {
	if e.processor == "" {
		return nil, fmt.Errorf("no documentai processor configured")
	}
	req := &documentaipb.ProcessRequest{
		Name: e.processor,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{Content: []byte(text), MimeType: "text/plain"},
		},
	}
	resp, err := e.client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("documentai process: %w", err)
	}
	var terms []string
	for _, ent := range resp.GetDocument().GetEntities() {
		if mention := ent.GetMentionText(); mention != "" {
			terms = append(terms, mention)
		}
	}
	return terms, nil
}

func (e *gcpDocumentAIExtractor) Close() error { return e.client.Close() }
