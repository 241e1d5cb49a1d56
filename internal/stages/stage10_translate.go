package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clipforge/mediapipe/internal/cache"
	"github.com/clipforge/mediapipe/internal/collaborators"
	"github.com/clipforge/mediapipe/internal/pipelineerr"
	"github.com/clipforge/mediapipe/internal/stageio"
)

// RunTranslate translates stage 09's cleaned segment set (stage 07's aligned
// segments when stage 09 wrote none) into env.TargetLanguage,
// one invocation per target language per distilled §4.1's
// per_target_language stage flag. The engine is chosen by the static
// language-pair table (collaborators.EngineForPair), never by conditional
// branching on the pair (§9 design note, §4.8 stage 10). Optional:
// disabled translation (the transcribe workflow never reaches this stage
// at all) or a missing engine factory skips with a warning.
func RunTranslate(ctx context.Context, sc *stageio.Context, env Env) (skipped bool, err error) {
	sc.SetConfig(env.Resolver.ConfigSubset("translate.protect_glossary_terms"))

	if env.TargetLanguage == "" {
		return false, pipelineerr.New(pipelineerr.KindConfigMissing, sc.StageName, fmt.Errorf("target language required"))
	}
	if env.TranslationEngine == nil {
		sc.AddWarning("no translation engine factory configured, skipping translation")
		return true, nil
	}

	identity, err := LoadIdentity(env.JobDir)
	if err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}
	segs, err := LoadSegments(env.JobDir, DirHallucination)
	if os.IsNotExist(err) {
		segs, err = LoadSegments(env.JobDir, DirAlignment)
	}
	if err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}
	glossary, _ := LoadGlossary(env.JobDir)

	pair := env.Descriptor.SourceLanguage + "-" + env.TargetLanguage
	engineName := collaborators.EngineNameFor(env.Descriptor.SourceLanguage, env.TargetLanguage)

	cfg := sc.ConfigSnapshot()
	cfg["target_language"] = env.TargetLanguage
	key := cache.Key{StageName: sc.StageName, MediaID: identity.MediaID, ConfigSubset: cfg}
	if hit, err := sc.CacheLookup(key); err != nil {
		return false, err
	} else if hit {
		return false, nil
	}

	engine := env.TranslationEngine(pair)
	if engine == nil {
		return false, pipelineerr.New(pipelineerr.KindConfigMissing, sc.StageName, fmt.Errorf("no translation engine bound for pair %q (selected: %s)", pair, engineName))
	}

	result, err := engine.Translate(ctx, collaborators.TranslateRequest{
		Segments:       segs.Segments,
		SourceLanguage: env.Descriptor.SourceLanguage,
		TargetLanguage: env.TargetLanguage,
		ProtectedSpans: glossary.Terms,
	})
	if err != nil {
		return false, pipelineerr.New(pipelineerr.KindSubsystemError, sc.StageName, err)
	}
	for _, w := range result.Warnings {
		sc.AddWarning(w)
	}

	outFile := translatedFileName(env.TargetLanguage)
	rec := SegmentsRecord{Segments: result.Segments}
	if err := writeJSONFile(filepath.Join(sc.StageDir, outFile), rec); err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}
	if err := sc.TrackOutput(outFile, "translated_segments", "json"); err != nil {
		return false, err
	}
	return false, sc.CacheStore(key, []string{outFile}, env.Descriptor.JobID)
}

func translatedFileName(lang string) string {
	return fmt.Sprintf("segments_%s.json", lang)
}

func LoadTranslated(jobDir, lang string) (SegmentsRecord, error) {
	var rec SegmentsRecord
	b, err := os.ReadFile(upstream(jobDir, DirTranslate, translatedFileName(lang)))
	if err != nil {
		return rec, err
	}
	err = decodeJSON(b, &rec)
	return rec, err
}
