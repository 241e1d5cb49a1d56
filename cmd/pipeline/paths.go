package main

import "os"

// Root directory locations, overridable via environment for deployments
// that don't want the current working directory to host job state;
// defaults match the layout in §6.
func outRoot() string       { return envOr("MEDIAPIPE_OUT_ROOT", "out") }
func downloadsRoot() string { return envOr("MEDIAPIPE_DOWNLOADS_ROOT", "downloads") }
func usersRoot() string     { return envOr("MEDIAPIPE_USERS_ROOT", "users") }
func cacheRoot() string     { return envOr("MEDIAPIPE_CACHE_ROOT", "cache") }
func cacheIndexPath() string {
	return envOr("MEDIAPIPE_CACHE_INDEX", "cache/index.sqlite3")
}
func costSinkPath() string {
	return envOr("MEDIAPIPE_COST_SINK", "cost_events.jsonl")
}
func systemConfigPath() string {
	return envOr("MEDIAPIPE_SYSTEM_CONFIG", "")
}
func loggingMode() string { return envOr("MEDIAPIPE_LOG_MODE", "development") }

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
