package stages

import (
	"context"
	"testing"

	"github.com/clipforge/mediapipe/internal/jobprep"
)

func TestRunSourceSeparateSkipsWhenDisabled(t *testing.T) {
	jobDir := t.TempDir()
	sc := testStageContext(t, jobDir, DirSourceSeparate, "source-separate")
	env := testEnv(t, jobDir, &fakeTools{})
	env.Descriptor.SourceSeparation = jobprep.SourceSeparation{Enabled: false}

	skipped, err := RunSourceSeparate(context.Background(), sc, env)
	if err != nil {
		t.Fatalf("RunSourceSeparate: %v", err)
	}
	if !skipped {
		t.Fatal("RunSourceSeparate: expected skipped when disabled")
	}
}

func TestRunSourceSeparateSkipsWhenNoCollaborator(t *testing.T) {
	jobDir := t.TempDir()
	sc := testStageContext(t, jobDir, DirSourceSeparate, "source-separate")
	env := testEnv(t, jobDir, &fakeTools{})
	env.Descriptor.SourceSeparation = jobprep.SourceSeparation{Enabled: true}
	env.SourceSeparator = nil

	skipped, err := RunSourceSeparate(context.Background(), sc, env)
	if err != nil {
		t.Fatalf("RunSourceSeparate: %v", err)
	}
	if !skipped {
		t.Fatal("RunSourceSeparate: expected skipped when no collaborator configured")
	}
}
