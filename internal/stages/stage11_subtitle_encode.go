package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/clipforge/mediapipe/internal/collaborators"
	"github.com/clipforge/mediapipe/internal/pipelineerr"
	"github.com/clipforge/mediapipe/internal/stageio"
)

// RunSubtitleEncode renders stage 10's translated segments into an SRT
// subtitle file, one invocation per target language (§4.8 stage 11). Not cacheable: subtitle
// formatting is cheap and config-sensitive enough that recomputing it is
// simpler than keying a cache entry on formatting options.
func RunSubtitleEncode(ctx context.Context, sc *stageio.Context, env Env) (skipped bool, err error) {
	sc.SetConfig(env.Resolver.ConfigSubset("subtitle.max_chars_per_line", "subtitle.max_lines_per_cue", "subtitle.min_duration_ms", "subtitle.max_duration_ms"))

	if env.TargetLanguage == "" {
		return false, pipelineerr.New(pipelineerr.KindConfigMissing, sc.StageName, fmt.Errorf("target language required"))
	}

	segs, err := LoadTranslated(env.JobDir, env.TargetLanguage)
	if err != nil {
		sc.AddWarning("no translated segments for " + env.TargetLanguage + ", skipping subtitle encode")
		return true, nil
	}

	maxChars := env.Resolver.GetInt("subtitle.max_chars_per_line", 42)
	maxLines := env.Resolver.GetInt("subtitle.max_lines_per_cue", 2)
	minDurationMS := int64(env.Resolver.GetInt("subtitle.min_duration_ms", 800))
	maxDurationMS := int64(env.Resolver.GetInt("subtitle.max_duration_ms", 7000))
	srt := renderSRT(segs.Segments, maxChars, maxLines, minDurationMS, maxDurationMS)

	outFile := fmt.Sprintf("subtitles_%s.srt", env.TargetLanguage)
	if err := os.WriteFile(filepath.Join(sc.StageDir, outFile), []byte(srt), 0o644); err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}
	return false, sc.TrackOutput(outFile, "subtitle_track", "srt")
}

// srtCue is one rendered subtitle cue: a time window and the lines it
// displays. A single source segment can expand into several cues when its
// wrapped text overflows maxLinesPerCue.
type srtCue struct {
	startMS, endMS int64
	lines          []string
}

func renderSRT(segments []collaborators.ASRSegment, maxCharsPerLine, maxLinesPerCue int, minDurationMS, maxDurationMS int64) string {
	cues := buildCues(segments, maxCharsPerLine, maxLinesPerCue, minDurationMS, maxDurationMS)
	var b strings.Builder
	for i, c := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtTimestamp(c.startMS), srtTimestamp(c.endMS), strings.Join(c.lines, "\n"))
	}
	return b.String()
}

// buildCues wraps each segment's text and, when the wrapped line count
// exceeds maxLinesPerCue, re-splits the overflow into additional cues whose
// time windows subdivide the source segment's duration into equal shares,
// one per cue, whatever each cue's line count. Every resulting cue's duration is
// then clamped to [minDurationMS, maxDurationMS].
func buildCues(segments []collaborators.ASRSegment, maxCharsPerLine, maxLinesPerCue int, minDurationMS, maxDurationMS int64) []srtCue {
	var cues []srtCue
	for _, s := range segments {
		groups := chunkLines(wrapLines(s.Text, maxCharsPerLine), maxLinesPerCue)
		total := s.EndMS - s.StartMS
		for i, g := range groups {
			start := s.StartMS + total*int64(i)/int64(len(groups))
			end := s.StartMS + total*int64(i+1)/int64(len(groups))
			start, end = clampCueDuration(start, end, minDurationMS, maxDurationMS)
			cues = append(cues, srtCue{startMS: start, endMS: end, lines: g})
		}
	}
	return cues
}

// chunkLines splits lines into groups of at most maxLinesPerCue, since the
// alternative of truncating would silently drop text a viewer never sees.
func chunkLines(lines []string, maxLinesPerCue int) [][]string {
	if maxLinesPerCue <= 0 || len(lines) <= maxLinesPerCue {
		return [][]string{lines}
	}
	var groups [][]string
	for len(lines) > 0 {
		n := maxLinesPerCue
		if n > len(lines) {
			n = len(lines)
		}
		groups = append(groups, lines[:n])
		lines = lines[n:]
	}
	return groups
}

// clampCueDuration stretches an under-duration cue forward and shrinks an
// over-duration cue, leaving startMS fixed either way.
func clampCueDuration(startMS, endMS, minDurationMS, maxDurationMS int64) (int64, int64) {
	dur := endMS - startMS
	if minDurationMS > 0 && dur < minDurationMS {
		return startMS, startMS + minDurationMS
	}
	if maxDurationMS > 0 && dur > maxDurationMS {
		return startMS, startMS + maxDurationMS
	}
	return startMS, endMS
}

func srtTimestamp(ms int64) string {
	h := ms / 3600000
	m := (ms % 3600000) / 60000
	s := (ms % 60000) / 1000
	frac := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, frac)
}

func wrapText(text string, maxCharsPerLine int) string {
	return strings.Join(wrapLines(text, maxCharsPerLine), "\n")
}

func wrapLines(text string, maxCharsPerLine int) []string {
	if maxCharsPerLine <= 0 || len(text) <= maxCharsPerLine {
		return []string{text}
	}
	words := strings.Fields(text)
	var lines []string
	var cur strings.Builder
	for _, w := range words {
		if cur.Len() > 0 && cur.Len()+1+len(w) > maxCharsPerLine {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
