package collaborators

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clipforge/mediapipe/internal/logging"
)

// localProfileStore reads users/<user_id>/profile.json, matching the
// directory layout named in §6. It never writes: profile mutation belongs
// to a separate profile tool, per the shared-resource policy.
type localProfileStore struct {
	log  *logging.Logger
	root string
}

func NewLocalProfileStore(log *logging.Logger, usersRoot string) ProfileStore {
	return &localProfileStore{log: log.With("collaborator", "local.profiles"), root: usersRoot}
}

func (s *localProfileStore) Get(ctx context.Context, userID int64) (*UserProfile, error) {
	path := filepath.Join(s.root, fmt.Sprintf("%d", userID), "profile.json")
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}
	var p UserProfile
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return &p, nil
}

// localCostSink appends newline-delimited JSON cost events to a single
// file, relying on O_APPEND for lock-free concurrent writers per the
// shared-resource policy.
type localCostSink struct {
	log  *logging.Logger
	path string
}

func NewLocalCostSink(log *logging.Logger, path string) CostSink {
	return &localCostSink{log: log.With("collaborator", "local.cost_sink"), path: path}
}

func (s *localCostSink) Record(ctx context.Context, ev CostEvent) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir cost sink dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open cost sink: %w", err)
	}
	defer f.Close()
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal cost event: %w", err)
	}
	b = append(b, '\n')
	_, err = f.Write(b)
	return err
}
