package main

import (
	"errors"
	"testing"

	"github.com/clipforge/mediapipe/internal/pipelineerr"
)

func TestExitCodeForNil(t *testing.T) {
	if got := exitCodeFor(nil); got != 0 {
		t.Fatalf("exitCodeFor(nil): want=0 got=%d", got)
	}
}

func TestExitCodeForCredentialMissing(t *testing.T) {
	err := pipelineerr.New(pipelineerr.KindCredentialMissing, "job-prep", errors.New("no credentials"))
	if got := exitCodeFor(err); got != 2 {
		t.Fatalf("exitCodeFor: want=2 got=%d", got)
	}
}

func TestExitCodeForBudgetExceeded(t *testing.T) {
	err := pipelineerr.New(pipelineerr.KindBudgetExceeded, "job-prep", errors.New("over budget"))
	if got := exitCodeFor(err); got != 3 {
		t.Fatalf("exitCodeFor: want=3 got=%d", got)
	}
}

func TestExitCodeForOtherKindsDefaultsToOne(t *testing.T) {
	err := pipelineerr.New(pipelineerr.KindIOError, "job-prep", errors.New("disk full"))
	if got := exitCodeFor(err); got != 1 {
		t.Fatalf("exitCodeFor: want=1 got=%d", got)
	}
}

func TestExitCodeForUnclassifiedErrorDefaultsToOne(t *testing.T) {
	if got := exitCodeFor(errors.New("plain error")); got != 1 {
		t.Fatalf("exitCodeFor: want=1 got=%d", got)
	}
}
