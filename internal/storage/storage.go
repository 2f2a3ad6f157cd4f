package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// Store writes mirrored files into one storage backend. Writing to an
// existing path overwrites it.
type Store interface {
	Write(ctx context.Context, path string, data []byte) error
}

// Open builds the store named by backendType from its string settings.
// Unknown types fail so misconfiguration surfaces at startup, not on
// the first page sync.
func Open(ctx context.Context, backendType string, settings map[string]string, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch backendType {
	case "fs":
		return newFSStore(settings, logger)
	case "s3":
		return newS3Store(ctx, settings, logger)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %q", backendType)
	}
}
