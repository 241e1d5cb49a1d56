package main

import "github.com/clipforge/mediapipe/internal/pipelineerr"

// exitCodeFor maps a returned error to the exit codes documented in §6:
// prepare-job distinguishes validation (1), missing credentials (2), and
// budget-exceeded (3); run-pipeline and run-stage only promise "non-zero on
// failure", so any kind not named below falls through to 1.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	switch pipelineerr.KindOf(err) {
	case pipelineerr.KindCredentialMissing:
		return 2
	case pipelineerr.KindBudgetExceeded:
		return 3
	default:
		return 1
	}
}
