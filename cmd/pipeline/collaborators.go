package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/clipforge/mediapipe/internal/collaborators"
	"github.com/clipforge/mediapipe/internal/jobprep"
	"github.com/clipforge/mediapipe/internal/logging"
)

// wiredCollaborators bundles every optional external collaborator this
// binary can construct. Each is wired only when its enabling environment
// variable is set, so a bare local run (no cloud credentials) still
// executes the stages that need nothing external.
type wiredCollaborators struct {
	Metadata   collaborators.MetadataService
	Glossary   collaborators.GlossaryExtractor
	ASR        collaborators.ASREngine
	Vision     collaborators.OnScreenTextDetector
	Profiles   collaborators.ProfileStore
	CostSink   collaborators.CostSink
}

// wireCollaborators constructs the GCP-backed collaborators named in
// SPEC_FULL's domain stack, each gated on the env var that names its
// resource, and the filesystem-backed profile/cost-sink collaborators used
// unconditionally (§6's "users/<user_id>/profile.json" and the append-only
// cost-event sink).
func wireCollaborators(ctx context.Context, log *logging.Logger, usersRoot, costSinkPath string) *wiredCollaborators {
	wc := &wiredCollaborators{
		Profiles: collaborators.NewLocalProfileStore(log, usersRoot),
		CostSink: collaborators.NewLocalCostSink(log, costSinkPath),
	}

	if envEnabled("MEDIAPIPE_ENABLE_GCP_SPEECH") {
		if eng, err := collaborators.NewGCPSpeechEngine(ctx, log); err != nil {
			log.Warn("gcp speech engine unavailable", "error", err.Error())
		} else {
			wc.ASR = eng
		}
	}
	if envEnabled("MEDIAPIPE_ENABLE_GCP_METADATA") {
		if svc, err := collaborators.NewGCPMetadataService(ctx, log); err != nil {
			log.Warn("gcp metadata service unavailable", "error", err.Error())
		} else {
			wc.Metadata = svc
		}
	}
	if processor := strings.TrimSpace(os.Getenv("MEDIAPIPE_DOCUMENTAI_PROCESSOR")); processor != "" {
		if ext, err := collaborators.NewGCPDocumentAIExtractor(ctx, log, processor); err != nil {
			log.Warn("gcp documentai extractor unavailable", "error", err.Error())
		} else {
			wc.Glossary = ext
		}
	}
	if envEnabled("MEDIAPIPE_ENABLE_GCP_VISION") {
		if det, err := collaborators.NewGCPVisionTextDetector(ctx, log); err != nil {
			log.Warn("gcp vision text detector unavailable", "error", err.Error())
		} else {
			wc.Vision = det
		}
	}
	return wc
}

// recordStageCost appends a flat per-stage cost event to the cost sink once
// a stage finalizes successfully, per §6's cost-event sink contract. The
// per-stage USD rate reuses the job-prep estimation table: real metering
// (actual API units billed) belongs to the ASR/translation collaborators
// themselves, which are out of scope here.
func recordStageCost(ctx context.Context, sink collaborators.CostSink, desc *jobprep.Descriptor, stageName string, log *logging.Logger) {
	rate := defaultCostRateTable()[stageName]
	if rate <= 0 {
		return
	}
	ev := collaborators.CostEvent{
		UserID:  desc.UserID,
		JobID:   desc.JobID,
		Stage:   stageName,
		Service: "mediapipe",
		Units:   1,
		USD:     rate,
		At:      time.Now(),
	}
	if err := sink.Record(ctx, ev); err != nil {
		log.Warn("cost event record failed", "stage", stageName, "error", err.Error())
	}
}

func envEnabled(name string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	return v == "1" || v == "true" || v == "yes"
}
