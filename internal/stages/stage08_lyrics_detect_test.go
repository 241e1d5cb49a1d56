package stages

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/clipforge/mediapipe/internal/collaborators"
	"github.com/clipforge/mediapipe/internal/manifest"
)

// fakeOnScreenTextDetector reports a hit for whichever segment indices are
// named in flagIndices, matched against the "seg_<i>.jpg" keyframe naming
// RunLyricsDetect uses.
type fakeOnScreenTextDetector struct {
	flagIndices map[int]bool
	err         error
	calls       int
}

func (f *fakeOnScreenTextDetector) DetectText(ctx context.Context, keyframePath string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	base := filepath.Base(keyframePath)
	for i := range f.flagIndices {
		if base == fmt.Sprintf("seg_%d.jpg", i) {
			return []string{"lyric line"}, nil
		}
	}
	return nil, nil
}

func seedAlignedSegments(t *testing.T, jobDir string, segs []collaborators.ASRSegment) {
	t.Helper()
	seedSegmentsInto(t, jobDir, DirAlignment, segs)
}

// seedSegmentsInto writes a SegmentsRecord under the named stage directory,
// the shape every segment-producing stage (06, 07, 09, 10) writes so that
// downstream stage tests can seed their upstream fixtures directly.
func seedSegmentsInto(t *testing.T, jobDir, stageDir string, segs []collaborators.ASRSegment) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(jobDir, stageDir), 0o755); err != nil {
		t.Fatalf("mkdir %s dir: %v", stageDir, err)
	}
	if err := manifest.WriteAtomic(filepath.Join(jobDir, stageDir, "segments.json"), SegmentsRecord{Segments: segs}); err != nil {
		t.Fatalf("seed segments: %v", err)
	}
}

func TestRunLyricsDetectSkipsWhenNoDetectorConfigured(t *testing.T) {
	jobDir := t.TempDir()
	sc := testStageContext(t, jobDir, DirLyricsDetect, "lyrics-detect")
	env := testEnv(t, jobDir, &fakeTools{})
	env.OnScreenText = nil

	skipped, err := RunLyricsDetect(context.Background(), sc, env)
	if err != nil {
		t.Fatalf("RunLyricsDetect: %v", err)
	}
	if !skipped {
		t.Fatal("RunLyricsDetect: expected skipped when no detector configured")
	}
}

func TestRunLyricsDetectFlagsOverlappingText(t *testing.T) {
	jobDir := t.TempDir()
	seedIdentity(t, jobDir)
	seedAlignedSegments(t, jobDir, []collaborators.ASRSegment{
		{StartMS: 0, EndMS: 1000, Text: "hello"},
		{StartMS: 1000, EndMS: 2000, Text: "subtitled lyric"},
	})

	sc := testStageContext(t, jobDir, DirLyricsDetect, "lyrics-detect")
	env := testEnv(t, jobDir, &fakeTools{})
	env.OnScreenText = &fakeOnScreenTextDetector{flagIndices: map[int]bool{1: true}}

	skipped, err := RunLyricsDetect(context.Background(), sc, env)
	if err != nil {
		t.Fatalf("RunLyricsDetect: %v", err)
	}
	if skipped {
		t.Fatal("RunLyricsDetect: expected not skipped")
	}

	rec, ok := LoadLyrics(jobDir)
	if !ok {
		t.Fatal("LoadLyrics: expected lyrics.json to be present")
	}
	if len(rec.FlaggedIndices) != 1 || rec.FlaggedIndices[0] != 1 {
		t.Fatalf("FlaggedIndices: want=[1] got=%+v", rec.FlaggedIndices)
	}
}

func TestRunLyricsDetectContinuesPastDetectionFailure(t *testing.T) {
	jobDir := t.TempDir()
	seedIdentity(t, jobDir)
	seedAlignedSegments(t, jobDir, []collaborators.ASRSegment{{StartMS: 0, EndMS: 1000, Text: "hello"}})

	sc := testStageContext(t, jobDir, DirLyricsDetect, "lyrics-detect")
	env := testEnv(t, jobDir, &fakeTools{})
	env.OnScreenText = &fakeOnScreenTextDetector{err: errors.New("vision api down")}

	skipped, err := RunLyricsDetect(context.Background(), sc, env)
	if err != nil {
		t.Fatalf("RunLyricsDetect: %v", err)
	}
	if skipped {
		t.Fatal("RunLyricsDetect: expected not skipped even though detection failed per-segment")
	}

	rec, ok := LoadLyrics(jobDir)
	if !ok {
		t.Fatal("LoadLyrics: expected lyrics.json to still be written")
	}
	if len(rec.FlaggedIndices) != 0 {
		t.Fatalf("FlaggedIndices: want empty, got %+v", rec.FlaggedIndices)
	}
}
