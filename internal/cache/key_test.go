package cache

import "testing"

func TestKeyHexDeterministic(t *testing.T) {
	k := Key{
		StageName:    "asr",
		MediaID:      "abc123",
		ConfigSubset: map[string]any{"model": "large", "beam_size": 5},
		UpstreamHash: []string{"hash-b", "hash-a"},
	}
	h1 := k.Hex()
	h2 := k.Hex()
	if h1 != h2 {
		t.Fatalf("Hex not deterministic: %q != %q", h1, h2)
	}
}

func TestKeyHexConfigSubsetOrderIndependent(t *testing.T) {
	k1 := Key{
		StageName:    "asr",
		MediaID:      "abc123",
		ConfigSubset: map[string]any{"a": 1, "b": 2},
	}
	k2 := Key{
		StageName:    "asr",
		MediaID:      "abc123",
		ConfigSubset: map[string]any{"b": 2, "a": 1},
	}
	if k1.Hex() != k2.Hex() {
		t.Fatalf("Hex should be insensitive to map iteration order: %q != %q", k1.Hex(), k2.Hex())
	}
}

func TestKeyHexUpstreamOrderIndependent(t *testing.T) {
	k1 := Key{StageName: "mux", MediaID: "m1", UpstreamHash: []string{"x", "y"}}
	k2 := Key{StageName: "mux", MediaID: "m1", UpstreamHash: []string{"y", "x"}}
	if k1.Hex() != k2.Hex() {
		t.Fatalf("Hex should be insensitive to upstream hash order: %q != %q", k1.Hex(), k2.Hex())
	}
}

func TestKeyHexDiffersByStageName(t *testing.T) {
	k1 := Key{StageName: "asr", MediaID: "m1"}
	k2 := Key{StageName: "translate", MediaID: "m1"}
	if k1.Hex() == k2.Hex() {
		t.Fatalf("Hex should differ by stage name, both=%q", k1.Hex())
	}
}

func TestKeyHexDiffersByConfigValue(t *testing.T) {
	k1 := Key{StageName: "asr", MediaID: "m1", ConfigSubset: map[string]any{"model": "small"}}
	k2 := Key{StageName: "asr", MediaID: "m1", ConfigSubset: map[string]any{"model": "large"}}
	if k1.Hex() == k2.Hex() {
		t.Fatalf("Hex should differ by config value, both=%q", k1.Hex())
	}
}
