package jobprep

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clipforge/mediapipe/internal/collaborators"
	"github.com/clipforge/mediapipe/internal/logging"
	"github.com/clipforge/mediapipe/internal/pipelineerr"
)

// Options carries the raw request that drives preparation, mirroring the
// prepare-job CLI flags (§6).
type Options struct {
	Media             string
	Workflow          Workflow
	SourceLanguage    string
	TargetLanguages   []string
	UserID            int64
	StartTime         string // HH:MM:SS
	EndTime           string
	TMDBTitle         string
	TMDBYear          int
	EstimateOnly      bool
}

// videoServiceURLPattern matches a supported video service URL, standing in
// for "the HTTPS URL pattern for a supported video service" named in §4.7.
var videoServiceURLPattern = regexp.MustCompile(`^https://(www\.)?(video-service)\.example/watch\?v=([A-Za-z0-9_-]+)`)

// Preparer executes job-prep end to end.
type Preparer struct {
	OutRoot       string // e.g. "out"
	DownloadsRoot string // e.g. "downloads"
	Log           *logging.Logger

	Downloader      collaborators.Downloader
	MetadataService collaborators.MetadataService
	Profiles        collaborators.ProfileStore
	CostRateTable   map[string]float64 // per-stage USD/minute rate table
}

// Prepare runs the full job-preparation behavior described in distilled §4.7
// and returns the frozen descriptor plus the job directory it was written
// to, or a *pipelineerr.Error classifying the rejection.
func (p *Preparer) Prepare(ctx context.Context, opts Options) (*Descriptor, string, error) {
	mediaPath := opts.Media
	var videoID string

	if m := videoServiceURLPattern.FindStringSubmatch(opts.Media); m != nil {
		videoID = m[3]
		cached, ok, err := p.findDownloadCacheHit(videoID)
		if err != nil {
			return nil, "", pipelineerr.New(pipelineerr.KindIOError, "job-prep", err)
		}
		if ok {
			mediaPath = cached
		} else {
			if p.Downloader == nil {
				return nil, "", pipelineerr.New(pipelineerr.KindConfigMissing, "job-prep", fmt.Errorf("no downloader configured for URL input"))
			}
			local, vid, err := p.Downloader.Download(ctx, opts.Media)
			if err != nil {
				return nil, "", pipelineerr.New(pipelineerr.KindIOError, "job-prep", fmt.Errorf("download failed: %w", err))
			}
			videoID = vid
			mediaPath = local
		}
	} else if _, err := url.ParseRequestURI(opts.Media); err == nil && strings.HasPrefix(opts.Media, "http") {
		return nil, "", pipelineerr.New(pipelineerr.KindConfigMissing, "job-prep", fmt.Errorf("unsupported media URL: %s", opts.Media))
	}

	mp, err := clipIntent(opts.StartTime, opts.EndTime)
	if err != nil {
		return nil, "", err
	}

	if p.Profiles == nil {
		return nil, "", pipelineerr.New(pipelineerr.KindCredentialMissing, "job-prep", fmt.Errorf("no profile store configured"))
	}
	profile, err := p.Profiles.Get(ctx, opts.UserID)
	if err != nil {
		return nil, "", pipelineerr.New(pipelineerr.KindCredentialMissing, "job-prep", fmt.Errorf("load user profile: %w", err))
	}
	if err := validateCredentials(profile, opts.Workflow); err != nil {
		return nil, "", pipelineerr.New(pipelineerr.KindCredentialMissing, "job-prep", err)
	}

	var glossary Glossary
	if opts.Workflow == WorkflowSubtitle && p.MetadataService != nil && opts.TMDBTitle != "" {
		md, err := p.MetadataService.Lookup(ctx, opts.TMDBTitle, opts.TMDBYear)
		if err != nil {
			p.Log.Warn("metadata lookup failed during job-prep, continuing without auto-glossary", "error", err.Error())
		} else if md != nil {
			glossary.Auto = md.Terms
		}
	}

	durationMinutes := estimateDurationMinutes(mediaPath)
	estimate := estimateCostUSD(p.CostRateTable, opts.Workflow, durationMinutes, len(opts.TargetLanguages))

	if opts.EstimateOnly {
		return &Descriptor{CostEstimateUSD: estimate}, "", nil
	}
	if estimate > profile.BudgetRemainingUSD {
		return nil, "", pipelineerr.New(pipelineerr.KindBudgetExceeded, "job-prep",
			fmt.Errorf("estimated cost $%.2f exceeds remaining budget $%.2f", estimate, profile.BudgetRemainingUSD))
	}

	jobID := newJobID(opts.UserID)
	jobDir, seq := p.jobDirFor(opts.UserID, time.Now())
	_ = seq

	desc := &Descriptor{
		JobID:             jobID,
		UserID:            opts.UserID,
		Workflow:          opts.Workflow,
		SourceLanguage:    opts.SourceLanguage,
		TargetLanguages:   opts.TargetLanguages,
		InputMedia:        mediaPath,
		MediaProcessing:   mp,
		Glossary:          glossary,
		SourceSeparation:  SourceSeparation{Enabled: opts.Workflow == WorkflowSubtitle},
		TMDBEnrichment:    TMDBEnrichment{Enabled: opts.TMDBTitle != "", Title: opts.TMDBTitle, Year: opts.TMDBYear},
		ContinueOnFailure: []string{"metadata-enrich", "source-separate", "lyrics-detect"},
		CostEstimateUSD:   estimate,
		CreatedAt:         time.Now(),
	}

	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return nil, "", pipelineerr.New(pipelineerr.KindIOError, "job-prep", err)
	}
	if err := writeJSON(filepath.Join(jobDir, "job.json"), desc); err != nil {
		return nil, "", pipelineerr.New(pipelineerr.KindIOError, "job-prep", err)
	}
	return desc, jobDir, nil
}

// clipIntent records clip intent only; the demux stage applies it.
// start_ms == end_ms is rejected as an empty range (§8 boundary behavior).
func clipIntent(start, end string) (MediaProcessing, error) {
	if start == "" && end == "" {
		return MediaProcessing{Mode: "full"}, nil
	}
	s, err := parseHMS(start)
	if err != nil {
		return MediaProcessing{}, pipelineerr.New(pipelineerr.KindConfigMissing, "job-prep", fmt.Errorf("invalid start-time: %w", err))
	}
	e, err := parseHMS(end)
	if err != nil {
		return MediaProcessing{}, pipelineerr.New(pipelineerr.KindConfigMissing, "job-prep", fmt.Errorf("invalid end-time: %w", err))
	}
	if s == e {
		return MediaProcessing{}, pipelineerr.New(pipelineerr.KindConfigMissing, "job-prep", fmt.Errorf("empty clip range: start == end"))
	}
	return MediaProcessing{Mode: "clip", StartMS: s, EndMS: e}, nil
}

func parseHMS(s string) (int64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("expected HH:MM:SS, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	sec, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, err
	}
	return int64(((h*60+m)*60 + sec) * 1000), nil
}

func validateCredentials(p *collaborators.UserProfile, wf Workflow) error {
	if wf == WorkflowTranslate || wf == WorkflowSubtitle {
		if _, ok := p.Credentials["translation_engine"]; !ok {
			return fmt.Errorf("missing translation_engine credential for workflow %q", wf)
		}
	}
	return nil
}

// estimateDurationMinutes is a placeholder coarse estimate; stage 01 (demux)
// computes the authoritative duration once media identity is known.
func estimateDurationMinutes(mediaPath string) float64 {
	info, err := os.Stat(mediaPath)
	if err != nil {
		return 0
	}
	const assumedBytesPerMinute = 8 * 1024 * 1024
	return float64(info.Size()) / assumedBytesPerMinute
}

func estimateCostUSD(rates map[string]float64, wf Workflow, minutes float64, targetCount int) float64 {
	stages := stagesForWorkflow(wf, targetCount)
	total := 0.0
	for _, s := range stages {
		total += rates[s] * minutes
	}
	return total
}

func stagesForWorkflow(wf Workflow, targetCount int) []string {
	switch wf {
	case WorkflowTranscribe:
		return []string{"demux", "vad-diarize", "asr", "alignment"}
	case WorkflowTranslate:
		out := []string{"demux", "vad-diarize", "asr", "alignment"}
		for i := 0; i < targetCount; i++ {
			out = append(out, "translate")
		}
		return out
	case WorkflowSubtitle:
		out := []string{"demux", "metadata-enrich", "glossary-load", "source-separate", "vad-diarize", "asr", "alignment", "lyrics-detect", "hallucination-remove", "mux"}
		for i := 0; i < targetCount; i++ {
			out = append(out, "translate", "subtitle-encode")
		}
		return out
	default:
		return nil
	}
}

func newJobID(userID int64) string {
	return fmt.Sprintf("%s-u%d-%s", time.Now().UTC().Format("20060102"), userID, uuid.NewString()[:8])
}

// jobDirFor builds out/YYYY/MM/DD/<user_id>/<seq>/, allocating the next
// sequence number by scanning existing siblings.
func (p *Preparer) jobDirFor(userID int64, now time.Time) (string, int) {
	base := filepath.Join(p.OutRoot, now.Format("2006"), now.Format("01"), now.Format("02"), strconv.FormatInt(userID, 10))
	seq := 1
	for {
		dir := filepath.Join(base, strconv.Itoa(seq))
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return dir, seq
		}
		seq++
	}
}

// findDownloadCacheHit reuses an existing download by video_id substring
// match against downloads/<video_id>/..., per §6's download-cache layout.
func (p *Preparer) findDownloadCacheHit(videoID string) (string, bool, error) {
	dir := filepath.Join(p.DownloadsRoot, videoID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	for _, e := range entries {
		if !e.IsDir() && strings.Contains(e.Name(), videoID) {
			return filepath.Join(dir, e.Name()), true, nil
		}
	}
	return "", false, nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
