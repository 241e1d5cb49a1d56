package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Key is a composite cache key: hash(stage_name, media_identity,
// config_subset, upstream_artifact_hashes).
type Key struct {
	StageName    string
	MediaID      string
	ConfigSubset map[string]any
	UpstreamHash []string
}

// Hex computes the stable hex-encoded SHA-256 of the key's components. Map
// keys are sorted before hashing so the same logical subset always produces
// the same hash regardless of map iteration order.
func (k Key) Hex() string {
	h := sha256.New()
	h.Write([]byte(k.StageName))
	h.Write([]byte{0})
	h.Write([]byte(k.MediaID))
	h.Write([]byte{0})

	keys := make([]string, 0, len(k.ConfigSubset))
	for name := range k.ConfigSubset {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	for _, name := range keys {
		b, _ := json.Marshal(k.ConfigSubset[name])
		h.Write([]byte(name))
		h.Write([]byte{'='})
		h.Write(b)
		h.Write([]byte{0})
	}

	upstream := append([]string(nil), k.UpstreamHash...)
	sort.Strings(upstream)
	for _, u := range upstream {
		h.Write([]byte(u))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
