package stages

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/clipforge/mediapipe/internal/cache"
	"github.com/clipforge/mediapipe/internal/pipelineerr"
	"github.com/clipforge/mediapipe/internal/stageio"
)

type GlossaryRecord struct {
	Terms []string `json:"terms"`
}

// RunGlossaryLoad merges the job-prep seeded glossary, any terms extracted
// from stage 02's metadata, and a user-supplied glossary file into the
// single glossary.json the ASR and translation stages bias against
// (§4.7 glossary seeding, §4.8 stage 03). Cacheable on media identity plus
// the glossary sources, per §4.4.
func RunGlossaryLoad(ctx context.Context, sc *stageio.Context, env Env) (skipped bool, err error) {
	sc.SetConfig(env.Resolver.ConfigSubset("glossary.extract_from_metadata"))

	identity, err := LoadIdentity(env.JobDir)
	if err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}

	terms := append([]string(nil), env.Descriptor.Glossary.Auto...)

	if md, ok := loadMetadataIfPresent(env.JobDir); ok {
		terms = append(terms, md.Terms...)
		if env.GlossaryExtractor != nil && env.Resolver.GetBool("glossary.extract_from_metadata", true) {
			extracted, err := env.GlossaryExtractor.ExtractTerms(ctx, md.Title)
			if err != nil {
				sc.AddWarning("glossary extraction failed: " + err.Error())
			} else {
				terms = append(terms, extracted...)
			}
		}
	}

	if env.Descriptor.Glossary.UserPath != "" {
		b, err := os.ReadFile(env.Descriptor.Glossary.UserPath)
		if err != nil {
			return false, pipelineerr.New(pipelineerr.KindConfigMissing, sc.StageName, err)
		}
		var user []string
		if err := json.Unmarshal(b, &user); err != nil {
			return false, pipelineerr.New(pipelineerr.KindConfigMissing, sc.StageName, err)
		}
		terms = append(terms, user...)
	}

	terms = dedupStrings(terms)

	cfg := sc.ConfigSnapshot()
	cfg["terms"] = terms
	key := cache.Key{StageName: sc.StageName, MediaID: identity.MediaID, ConfigSubset: cfg}
	if hit, err := sc.CacheLookup(key); err != nil {
		return false, err
	} else if hit {
		return false, nil
	}

	rec := GlossaryRecord{Terms: terms}
	if err := writeJSONFile(filepath.Join(sc.StageDir, "glossary.json"), rec); err != nil {
		return false, pipelineerr.New(pipelineerr.KindIOError, sc.StageName, err)
	}
	if err := sc.TrackOutput("glossary.json", "glossary", "json"); err != nil {
		return false, err
	}
	return false, sc.CacheStore(key, []string{"glossary.json"}, env.Descriptor.JobID)
}

func loadMetadataIfPresent(jobDir string) (MetadataRecord, bool) {
	var rec MetadataRecord
	b, err := os.ReadFile(upstream(jobDir, DirMetadataEnrich, "metadata.json"))
	if err != nil {
		return rec, false
	}
	if json.Unmarshal(b, &rec) != nil {
		return rec, false
	}
	return rec, true
}

func LoadGlossary(jobDir string) (GlossaryRecord, error) {
	var rec GlossaryRecord
	b, err := os.ReadFile(upstream(jobDir, DirGlossaryLoad, "glossary.json"))
	if err != nil {
		return rec, err
	}
	err = json.Unmarshal(b, &rec)
	return rec, err
}

func dedupStrings(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
