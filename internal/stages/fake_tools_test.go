package stages

import (
	"context"
	"os"
	"path/filepath"

	"github.com/clipforge/mediapipe/internal/platform/localmedia"
)

// fakeTools stands in for localmedia.Tools so stage tests never shell out
// to a real ffmpeg/ffprobe binary.
type fakeTools struct {
	durationMS int64
	muxErr     error
	muxCalls   int
}

var _ localmedia.Tools = (*fakeTools)(nil)

func (f *fakeTools) AssertReady(ctx context.Context) error { return nil }

func (f *fakeTools) ExtractAudioFromVideo(ctx context.Context, videoPath, outPath string, opts localmedia.AudioExtractOptions) (string, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(outPath, []byte("pcm-audio-bytes"), 0o644); err != nil {
		return "", err
	}
	return outPath, nil
}

func (f *fakeTools) ProbeDurationMS(ctx context.Context, mediaPath string) (int64, error) {
	return f.durationMS, nil
}

func (f *fakeTools) ExtractKeyframeAt(ctx context.Context, videoPath string, atMS int64, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte("frame-bytes"), 0o644)
}

func (f *fakeTools) Mux(ctx context.Context, videoPath string, subtitlePaths []string, outPath string) error {
	f.muxCalls++
	if f.muxErr != nil {
		return f.muxErr
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte("muxed-output"), 0o644)
}

func (f *fakeTools) WriteTempFile(ctx context.Context, data []byte, suffix string) (string, func(), error) {
	return "", func() {}, nil
}
