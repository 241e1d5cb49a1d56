// Package config implements the pipeline's four-layer configuration
// resolver. Stage code never reads the process environment directly; every
// parameter is requested through a Resolver so the resolution layer that
// served it can be recorded in the stage's config_snapshot.
package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Layer identifies which resolution tier served a value.
type Layer string

const (
	LayerJobDescriptor Layer = "job_descriptor"
	LayerJobOverride    Layer = "job_override"
	LayerSystem         Layer = "system"
	LayerDefault        Layer = "default"
	LayerUnresolved     Layer = "unresolved"
)

// Resolved records a single parameter's value and the layer that served it.
type Resolved struct {
	Value any
	Layer Layer
}

// Resolver yields parameter values from, in precedence order: the job
// descriptor, a job-local override file frozen at job-prep time, the system
// configuration file, and finally hard-coded stage defaults.
type Resolver struct {
	jobDescriptor map[string]any
	jobOverride   map[string]any
	system        map[string]any
	seen          map[string]Resolved
}

// NewResolver builds a Resolver from the three outer layers. jobOverridePath
// and systemConfigPath may be empty, in which case that layer is simply
// empty. jobOverridePath is parsed as KEY=VALUE lines (the format frozen at
// job-prep); systemConfigPath is parsed as YAML, matching the structured
// per-stage defaults table this system ships.
func NewResolver(jobDescriptor map[string]any, jobOverridePath, systemConfigPath string) (*Resolver, error) {
	r := &Resolver{
		jobDescriptor: jobDescriptor,
		jobOverride:   map[string]any{},
		system:        map[string]any{},
		seen:          map[string]Resolved{},
	}
	if jobOverridePath != "" {
		m, err := parseDotenv(jobOverridePath)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		r.jobOverride = m
	}
	if systemConfigPath != "" {
		m, err := parseYAMLFile(systemConfigPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		r.system = m
	}
	return r, nil
}

// Get resolves key through the four layers, falling back to def when no
// layer supplies a value. The resolution is recorded for later retrieval via
// Snapshot, which callers embed verbatim into the stage's config_snapshot.
func (r *Resolver) Get(key string, def any) Resolved {
	if v, ok := r.jobDescriptor[key]; ok {
		res := Resolved{Value: v, Layer: LayerJobDescriptor}
		r.seen[key] = res
		return res
	}
	if v, ok := r.jobOverride[key]; ok {
		res := Resolved{Value: v, Layer: LayerJobOverride}
		r.seen[key] = res
		return res
	}
	if v, ok := r.system[key]; ok {
		res := Resolved{Value: v, Layer: LayerSystem}
		r.seen[key] = res
		return res
	}
	if def != nil {
		res := Resolved{Value: def, Layer: LayerDefault}
		r.seen[key] = res
		return res
	}
	res := Resolved{Value: nil, Layer: LayerUnresolved}
	r.seen[key] = res
	return res
}

func (r *Resolver) GetString(key, def string) string {
	res := r.Get(key, def)
	s, _ := res.Value.(string)
	return s
}

func (r *Resolver) GetInt(key string, def int) int {
	res := r.Get(key, def)
	switch v := res.Value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func (r *Resolver) GetBool(key string, def bool) bool {
	res := r.Get(key, def)
	switch v := res.Value.(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

// Snapshot returns the layer-annotated record of every key resolved so far
// via Get*, in the shape embedded into the manifest and the cache key.
func (r *Resolver) Snapshot() map[string]Resolved {
	out := make(map[string]Resolved, len(r.seen))
	for k, v := range r.seen {
		out[k] = v
	}
	return out
}

// ConfigSubset extracts exactly the keys named, returning a plain
// map[string]any suitable for hashing into a cache key. Parameters outside
// this subset do not affect cacheability.
func (r *Resolver) ConfigSubset(keys ...string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		res := r.Get(k, nil)
		out[k] = res.Value
	}
	return out
}

func parseDotenv(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	out := map[string]any{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.Trim(strings.TrimSpace(line[eq+1:]), `"'`)
		out[key] = val
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseYAMLFile(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
