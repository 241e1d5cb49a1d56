// Package collaborators defines the interface contracts between the
// pipeline core and every external system named as "out of scope" by the
// specification: media download, metadata lookup, the user-profile store,
// the cost-event sink, and the ASR/translation engines stage adapters call
// into. Only the contracts matter here; production implementations live
// behind these interfaces and are free to change independently.
package collaborators

import (
	"context"
	"time"
)

// Downloader resolves a supported video-service URL to a local file path,
// per distilled §4.7's URL-ingestion behavior.
type Downloader interface {
	Download(ctx context.Context, url string) (localPath string, videoID string, err error)
}

// MetadataService looks up structured media context (title, cast, etc.) for
// the optional metadata-enrichment stage. Implementations are expected to
// wrap a circuit breaker since the service may rate-limit.
type MetadataService interface {
	Lookup(ctx context.Context, title string, year int) (*MediaMetadata, error)
}

type MediaMetadata struct {
	Title string
	Year  int
	Cast  []string
	Terms []string // candidate glossary terms derived from title/description
}

// ProfileStore is a read-only accessor for user credentials, budget
// thresholds, and preferences. Mutation happens only through a separate
// profile tool, never from the pipeline.
type ProfileStore interface {
	Get(ctx context.Context, userID int64) (*UserProfile, error)
}

type UserProfile struct {
	UserID             int64
	Credentials        map[string]string
	BudgetRemainingUSD float64
	DefaultWorkflow    string
	DefaultProvider    string
	EnabledServices    []string
}

// CostSink is an append-only log of billing-relevant events; writers use
// O_APPEND semantics so concurrent orchestrators never corrupt each other's
// records.
type CostSink interface {
	Record(ctx context.Context, ev CostEvent) error
}

type CostEvent struct {
	UserID  int64     `json:"user_id"`
	JobID   string    `json:"job_id"`
	Stage   string    `json:"stage"`
	Service string    `json:"service"`
	Units   float64   `json:"units"`
	USD     float64   `json:"usd"`
	At      time.Time `json:"ts"`
}

// SourceSeparator splits a mixed audio track into vocal and background
// stems, the collaborator behind the optional stage 04. Only the vocal
// stem feeds downstream ASR; the background stem is retained so a future
// remix/dub feature could use it, but nothing in this system reads it back.
type SourceSeparator interface {
	Separate(ctx context.Context, audioPath string, outDir string) (vocalPath, backgroundPath string, err error)
}

// VADDiarizer finds speech regions and assigns a speaker label to each,
// the collaborator behind stage 05.
type VADDiarizer interface {
	Diarize(ctx context.Context, audioPath string) ([]SpeechRegion, error)
}

type SpeechRegion struct {
	StartMS int64
	EndMS   int64
	Speaker string
}

// Aligner produces word/phrase-level timing for an ASR transcript against
// its source audio, the collaborator behind stage 07.
type Aligner interface {
	Align(ctx context.Context, audioPath string, segments []ASRSegment) ([]ASRSegment, error)
}

// HallucinationDetector flags ASR segments likely to be model
// hallucinations (text with no corresponding speech), the collaborator
// behind the optional stage 09.
type HallucinationDetector interface {
	Detect(ctx context.Context, segments []ASRSegment) (flaggedIndices []int, err error)
}

// ASREngine transcribes speech regions in the source language, the
// collaborator behind stage 06.
type ASREngine interface {
	Transcribe(ctx context.Context, req ASRRequest) (*ASRResult, error)
}

type ASRRequest struct {
	AudioPath      string
	SourceLanguage string
	GlossaryBias   []string
	Model          string
	ComputeType    string
	BeamSize       int
}

type ASRSegment struct {
	StartMS int64
	EndMS   int64
	Text    string
	Speaker string
}

type ASRResult struct {
	Segments []ASRSegment
	Warnings []string
}

// TranslationEngine is chosen per language pair: a specialized engine for
// supported pairs, a universal engine otherwise, per distilled §4.8 stage 10.
type TranslationEngine interface {
	Translate(ctx context.Context, req TranslateRequest) (*TranslateResult, error)
}

type TranslateRequest struct {
	Segments         []ASRSegment
	SourceLanguage   string
	TargetLanguage   string
	ProtectedSpans   []string // glossary-protected terms
}

type TranslateResult struct {
	Segments []ASRSegment
	Warnings []string
}

// EngineForPair is the static language-pair -> engine-name table mentioned
// in distilled §4.8 ("the translation engine is chosen per language pair").
// It is data, not a chain of conditionals, per the §9 design note applied
// consistently throughout this system.
var EngineForPair = map[string]string{
	"en-es": "specialized-en-es",
	"en-fr": "specialized-en-fr",
	"en-gu": "universal",
	"hi-en": "specialized-hi-en",
	"hi-gu": "universal",
	"hi-ta": "universal",
}

func EngineNameFor(source, target string) string {
	if name, ok := EngineForPair[source+"-"+target]; ok {
		return name
	}
	return "universal"
}
