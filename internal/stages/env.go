package stages

import (
	"github.com/clipforge/mediapipe/internal/collaborators"
	"github.com/clipforge/mediapipe/internal/config"
	"github.com/clipforge/mediapipe/internal/jobprep"
	"github.com/clipforge/mediapipe/internal/platform/localmedia"
)

// Env bundles everything a stage Run function needs beyond its
// *stageio.Context: the job's frozen descriptor, the layered config
// resolver, the local ffmpeg wrapper, and whichever external collaborators
// this job's configuration wired up. A nil collaborator field means that
// collaborator was not configured; stages that need one and find it nil
// fail with KindConfigMissing.
type Env struct {
	JobDir     string
	Descriptor *jobprep.Descriptor
	Resolver   *config.Resolver
	Tools      localmedia.Tools

	MetadataService   collaborators.MetadataService
	GlossaryExtractor collaborators.GlossaryExtractor
	SourceSeparator   collaborators.SourceSeparator
	VADDiarizer       collaborators.VADDiarizer
	ASREngine         collaborators.ASREngine
	Aligner           collaborators.Aligner
	OnScreenText      collaborators.OnScreenTextDetector
	Hallucination     collaborators.HallucinationDetector
	TranslationEngine func(pair string) collaborators.TranslationEngine

	// TargetLanguage is set for the per-target-language stages (10, 11).
	TargetLanguage string
}
