package stages

import (
	"context"
	"errors"
	"testing"

	"github.com/clipforge/mediapipe/internal/collaborators"
	"github.com/clipforge/mediapipe/internal/jobprep"
)

type fakeMetadataService struct {
	result *collaborators.MediaMetadata
	err    error
}

func (f *fakeMetadataService) Lookup(ctx context.Context, title string, year int) (*collaborators.MediaMetadata, error) {
	return f.result, f.err
}

func TestRunMetadataEnrichSkipsWhenDisabled(t *testing.T) {
	jobDir := t.TempDir()
	sc := testStageContext(t, jobDir, DirMetadataEnrich, "metadata-enrich")
	env := testEnv(t, jobDir, &fakeTools{})
	env.Descriptor.TMDBEnrichment = jobprep.TMDBEnrichment{Enabled: false}

	skipped, err := RunMetadataEnrich(context.Background(), sc, env)
	if err != nil {
		t.Fatalf("RunMetadataEnrich: %v", err)
	}
	if !skipped {
		t.Fatal("RunMetadataEnrich: expected skipped when disabled")
	}
}

func TestRunMetadataEnrichSkipsWhenNoCollaborator(t *testing.T) {
	jobDir := t.TempDir()
	sc := testStageContext(t, jobDir, DirMetadataEnrich, "metadata-enrich")
	env := testEnv(t, jobDir, &fakeTools{})
	env.Descriptor.TMDBEnrichment = jobprep.TMDBEnrichment{Enabled: true, Title: "Example"}
	env.MetadataService = nil

	skipped, err := RunMetadataEnrich(context.Background(), sc, env)
	if err != nil {
		t.Fatalf("RunMetadataEnrich: %v", err)
	}
	if !skipped {
		t.Fatal("RunMetadataEnrich: expected skipped when no collaborator configured")
	}
}

func TestRunMetadataEnrichSkipsOnLookupFailure(t *testing.T) {
	jobDir := t.TempDir()
	sc := testStageContext(t, jobDir, DirMetadataEnrich, "metadata-enrich")
	env := testEnv(t, jobDir, &fakeTools{})
	env.Descriptor.TMDBEnrichment = jobprep.TMDBEnrichment{Enabled: true, Title: "Example"}
	env.MetadataService = &fakeMetadataService{err: errors.New("rate limited")}

	skipped, err := RunMetadataEnrich(context.Background(), sc, env)
	if err != nil {
		t.Fatalf("RunMetadataEnrich: %v", err)
	}
	if !skipped {
		t.Fatal("RunMetadataEnrich: expected graceful skip on lookup failure")
	}
}

func TestRunMetadataEnrichWritesMetadata(t *testing.T) {
	jobDir := t.TempDir()
	sc := testStageContext(t, jobDir, DirMetadataEnrich, "metadata-enrich")
	env := testEnv(t, jobDir, &fakeTools{})
	env.Descriptor.TMDBEnrichment = jobprep.TMDBEnrichment{Enabled: true, Title: "Example", Year: 2020}
	env.MetadataService = &fakeMetadataService{result: &collaborators.MediaMetadata{
		Title: "Example", Year: 2020, Cast: []string{"A"}, Terms: []string{"term1"},
	}}

	skipped, err := RunMetadataEnrich(context.Background(), sc, env)
	if err != nil {
		t.Fatalf("RunMetadataEnrich: %v", err)
	}
	if skipped {
		t.Fatal("RunMetadataEnrich: expected not skipped")
	}

	rec, ok := loadMetadataIfPresent(jobDir)
	if !ok {
		t.Fatal("loadMetadataIfPresent: expected metadata.json to be present")
	}
	if rec.Title != "Example" || rec.Year != 2020 {
		t.Fatalf("metadata mismatch: got %+v", rec)
	}
	if len(rec.Terms) != 1 || rec.Terms[0] != "term1" {
		t.Fatalf("metadata terms mismatch: got %+v", rec.Terms)
	}
}
