package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// fsStore mirrors pages into a local directory tree.
type fsStore struct {
	root   string
	logger *slog.Logger
}

func newFSStore(settings map[string]string, logger *slog.Logger) (*fsStore, error) {
	root := settings["root"]
	if root == "" {
		return nil, errors.New("fs storage requires a root setting")
	}
	return &fsStore{root: root, logger: logger}, nil
}

func (s *fsStore) Write(_ context.Context, path string, data []byte) error {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("writing file %s: %w", full, err)
	}
	s.logger.Debug("wrote file", "path", full, "bytes", len(data))
	return nil
}
