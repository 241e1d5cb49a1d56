package mediaid

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestPCM(t *testing.T, size int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "audio.pcm")
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte(i % 251)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write test pcm: %v", err)
	}
	return path
}

func TestIdentityDeterministic(t *testing.T) {
	path := writeTestPCM(t, 4096)

	id1, err := Identity(path, 1500)
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	id2, err := Identity(path, 1500)
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("Identity not deterministic: %q != %q", id1, id2)
	}
}

func TestIdentityDiffersByDuration(t *testing.T) {
	path := writeTestPCM(t, 4096)

	id1, err := Identity(path, 1000)
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	id2, err := Identity(path, 2000)
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("Identity should differ when duration differs, both=%q", id1)
	}
}

func TestIdentityDiffersByContent(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.pcm")
	pathB := filepath.Join(dir, "b.pcm")
	if err := os.WriteFile(pathA, []byte{1, 2, 3, 4}, 0o644); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(pathB, []byte{5, 6, 7, 8}, 0o644); err != nil {
		t.Fatalf("write b: %v", err)
	}

	idA, err := Identity(pathA, 1000)
	if err != nil {
		t.Fatalf("Identity a: %v", err)
	}
	idB, err := Identity(pathB, 1000)
	if err != nil {
		t.Fatalf("Identity b: %v", err)
	}
	if idA == idB {
		t.Fatalf("Identity should differ by content, both=%q", idA)
	}
}

func TestIdentityLargeFileUsesSampledWindows(t *testing.T) {
	path := writeTestPCM(t, 3*(1<<20))

	id, err := Identity(path, 60000)
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	if len(id) != 64 {
		t.Fatalf("Identity: want 64 hex chars, got %d (%q)", len(id), id)
	}
}

func TestIdentityMissingFile(t *testing.T) {
	_, err := Identity(filepath.Join(t.TempDir(), "missing.pcm"), 1000)
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestPerceptualFingerprintDeterministic(t *testing.T) {
	bins := [][]float64{{1.0, 2.0, 3.0}, {4.0, 5.0, 6.0}}

	fp1 := PerceptualFingerprint(bins)
	fp2 := PerceptualFingerprint(bins)
	if fp1 != fp2 {
		t.Fatalf("PerceptualFingerprint not deterministic: %q != %q", fp1, fp2)
	}
}

func TestPerceptualFingerprintDiffersByContent(t *testing.T) {
	fp1 := PerceptualFingerprint([][]float64{{1.0, 2.0}})
	fp2 := PerceptualFingerprint([][]float64{{9.0, 8.0}})
	if fp1 == fp2 {
		t.Fatalf("PerceptualFingerprint should differ by content, both=%q", fp1)
	}
}
