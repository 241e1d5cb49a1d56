// Package mediaid computes the content-based fingerprint used as the
// pipeline's primary cache key ("media identity"), and a separate
// perceptual-similarity fingerprint used only by an optional similar-job
// finder — never as a cache key.
package mediaid

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
)

// windowBytes bounds the total amount of sample data read into the
// fingerprint hash so computation stays sub-linear in media duration: the
// spec's "N chosen so total fingerprint input ≈ 1 MiB" budget.
const windowBytes = 1 << 20

// InteriorWindows is M, the count of evenly spaced interior windows sampled
// in addition to the boundary prefix/suffix.
const InteriorWindows = 8

// Identity computes the SHA-256 media identity of a canonical 16kHz mono PCM
// audio file: duration in milliseconds, the first/last N samples, and M
// interior windows, totalling approximately windowBytes of sample data.
//
// canonicalPCMPath must already be 16kHz mono (see internal/platform/localmedia).
func Identity(canonicalPCMPath string, durationMS int64) (string, error) {
	f, err := os.Open(canonicalPCMPath)
	if err != nil {
		return "", fmt.Errorf("open canonical audio: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat canonical audio: %w", err)
	}
	size := info.Size()

	h := sha256.New()
	var durBuf [8]byte
	binary.BigEndian.PutUint64(durBuf[:], uint64(durationMS))
	h.Write(durBuf[:])

	// Budget: boundary windows get 1/3 each, interior windows split the rest.
	boundary := windowBytes / 3
	if boundary <= 0 {
		boundary = 1
	}
	interiorTotal := windowBytes - 2*boundary
	perInterior := interiorTotal / InteriorWindows
	if perInterior <= 0 {
		perInterior = 1
	}

	if size <= int64(2*boundary+interiorTotal) {
		// Small file: hash the whole thing, no need for sampled windows.
		if _, err := hashWindow(h, f, 0, size); err != nil {
			return "", err
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	}

	if _, err := hashWindow(h, f, 0, int64(boundary)); err != nil {
		return "", err
	}
	if _, err := hashWindow(h, f, size-int64(boundary), int64(boundary)); err != nil {
		return "", err
	}
	usable := size - 2*int64(boundary)
	step := usable / int64(InteriorWindows)
	for i := 0; i < InteriorWindows; i++ {
		off := int64(boundary) + int64(i)*step
		if _, err := hashWindow(h, f, off, int64(perInterior)); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashWindow(h interface{ Write([]byte) (int, error) }, f *os.File, offset, n int64) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	buf := make([]byte, n)
	read, err := f.ReadAt(buf, offset)
	if err != nil && read == 0 {
		return 0, fmt.Errorf("read fingerprint window at %d: %w", offset, err)
	}
	return h.Write(buf[:read])
}

// PerceptualFingerprint is a SHA-256 over the caller-supplied spectrogram
// magnitude bins, each truncated to int8 first; it is not a rolling hash,
// and two inputs share a fingerprint only when every bin truncates to the
// same value. It does not participate in cache-key construction.
func PerceptualFingerprint(magnitudeBins [][]float64) string {
	h := sha256.New()
	for _, frame := range magnitudeBins {
		for _, v := range frame {
			bucket := int8(v) // coarse quantization: similarity, not exactness
			h.Write([]byte{byte(bucket)})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
