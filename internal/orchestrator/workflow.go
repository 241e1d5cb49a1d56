package orchestrator

import "time"

// StageDef is one entry in a workflow's stage table: the unit the
// orchestrator treats as data rather than as a hard-coded code path, per the
// §9 design note ("optional stages as data, not as code paths").
type StageDef struct {
	Name              string
	RelDir            string // e.g. "01_demux"
	Optional          bool
	Cacheable         bool
	Timeout           time.Duration
	PerTargetLanguage bool // stage runs once per target language (10, 11)
}

// defaultTimeouts is the per-stage wall-clock timeout table named in §4.1.
var defaultTimeouts = map[string]time.Duration{
	"demux":               300 * time.Second,
	"metadata-enrich":      60 * time.Second,
	"glossary-load":        30 * time.Second,
	"source-separate":      1800 * time.Second,
	"vad-diarize":          1800 * time.Second,
	"asr":                  14400 * time.Second,
	"alignment":            1800 * time.Second,
	"lyrics-detect":        300 * time.Second,
	"hallucination-remove": 300 * time.Second,
	"translate":            3600 * time.Second,
	"subtitle-encode":      300 * time.Second,
	"mux":                  900 * time.Second,
}

// stageTable is the full catalogue of the twelve stages, independent of
// which workflow selects them.
var stageTable = map[string]StageDef{
	"demux":                {Name: "demux", RelDir: "01_demux", Timeout: defaultTimeouts["demux"]},
	"metadata-enrich":      {Name: "metadata-enrich", RelDir: "02_metadata_enrich", Optional: true, Timeout: defaultTimeouts["metadata-enrich"]},
	"glossary-load":        {Name: "glossary-load", RelDir: "03_glossary_load", Cacheable: true, Timeout: defaultTimeouts["glossary-load"]},
	"source-separate":      {Name: "source-separate", RelDir: "04_source_separate", Optional: true, Cacheable: true, Timeout: defaultTimeouts["source-separate"]},
	"vad-diarize":          {Name: "vad-diarize", RelDir: "05_vad_diarize", Cacheable: true, Timeout: defaultTimeouts["vad-diarize"]},
	"asr":                  {Name: "asr", RelDir: "06_asr", Cacheable: true, Timeout: defaultTimeouts["asr"]},
	"alignment":            {Name: "alignment", RelDir: "07_alignment", Cacheable: true, Timeout: defaultTimeouts["alignment"]},
	"lyrics-detect":        {Name: "lyrics-detect", RelDir: "08_lyrics_detect", Optional: true, Cacheable: true, Timeout: defaultTimeouts["lyrics-detect"]},
	"hallucination-remove": {Name: "hallucination-remove", RelDir: "09_hallucination_remove", Optional: true, Cacheable: true, Timeout: defaultTimeouts["hallucination-remove"]},
	"translate":            {Name: "translate", RelDir: "10_translate", Optional: true, Cacheable: true, PerTargetLanguage: true, Timeout: defaultTimeouts["translate"]},
	"subtitle-encode":      {Name: "subtitle-encode", RelDir: "11_subtitle_encode", Optional: true, PerTargetLanguage: true, Timeout: defaultTimeouts["subtitle-encode"]},
	"mux":                  {Name: "mux", RelDir: "12_mux", Optional: true, Timeout: defaultTimeouts["mux"]},
}

// WorkflowStages is the canonical workflow -> stage-sequence table (§4.1).
// The orchestrator consults this table and never branches on workflow name
// anywhere else.
var WorkflowStages = map[string][]string{
	"transcribe": {"demux", "vad-diarize", "asr", "alignment"},
	"translate":  {"demux", "vad-diarize", "asr", "alignment", "translate"},
	"subtitle": {
		"demux", "metadata-enrich", "glossary-load", "source-separate",
		"vad-diarize", "asr", "alignment", "lyrics-detect", "hallucination-remove",
		"translate", "subtitle-encode", "mux",
	},
}

// BaselineCutoff names the last stage of a baseline (personalization-free)
// phase for the subtitle workflow. No code reads it: the orchestrator runs
// each workflow as one stage sequence with no baseline/personalized split.
const BaselineCutoff = "alignment"

// StagesForWorkflow resolves the ordered StageDef list for a workflow,
// optionally narrowed to stageSubset (the --stages CLI flag).
func StagesForWorkflow(workflow string, stageSubset []string) []StageDef {
	names := WorkflowStages[workflow]
	if len(stageSubset) > 0 {
		allowed := map[string]bool{}
		for _, n := range stageSubset {
			allowed[n] = true
		}
		filtered := names[:0:0]
		for _, n := range names {
			if allowed[n] {
				filtered = append(filtered, n)
			}
		}
		names = filtered
	}
	out := make([]StageDef, 0, len(names))
	for _, n := range names {
		out = append(out, stageTable[n])
	}
	return out
}
