// Package stages implements the twelve pipeline stage bodies. Each stage is
// a single exported Run function consuming a *stageio.Context plus an Env
// bundling the job directory, the frozen job descriptor, a config
// Resolver, and whichever external collaborators the stage needs. Stages
// never call each other directly; they interchange exclusively through
// files under the job directory, read and written through the containment
// rules stageio.Context enforces.
package stages

import "path/filepath"

// Stage directory names, mirroring internal/orchestrator's stage table.
// Duplicated here rather than imported so that a stage binary (invoked as
// its own OS process per the subprocess-isolation design) never needs to
// link the orchestrator package.
const (
	DirDemux           = "01_demux"
	DirMetadataEnrich  = "02_metadata_enrich"
	DirGlossaryLoad    = "03_glossary_load"
	DirSourceSeparate  = "04_source_separate"
	DirVADDiarize      = "05_vad_diarize"
	DirASR             = "06_asr"
	DirAlignment       = "07_alignment"
	DirLyricsDetect    = "08_lyrics_detect"
	DirHallucination   = "09_hallucination_remove"
	DirTranslate       = "10_translate"
	DirSubtitleEncode  = "11_subtitle_encode"
	DirMux             = "12_mux"
)

// upstream resolves a file written by an earlier stage, relative to jobDir.
func upstream(jobDir, stageDir, file string) string {
	return filepath.Join(jobDir, stageDir, file)
}
