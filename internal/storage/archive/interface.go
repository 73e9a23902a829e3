// Package archive stores immutable blobs such as cached bar history.
package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/newthinker/confluence/internal/core"
)

// ErrNotFound is returned by Read when no object exists at the path
var ErrNotFound = errors.New("archive: object not found")

// Storage defines the interface for archive storage backends
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error
	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)
	// List returns all paths matching the prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error
	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Backend names
const (
	BackendLocal  = "local"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// Config selects and configures a backend
type Config struct {
	Backend string   `mapstructure:"backend"`
	Path    string   `mapstructure:"path"`
	S3      S3Config `mapstructure:"s3"`
}

// New builds the configured backend
func New(cfg Config) (Storage, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendLocal:
		if cfg.Path == "" {
			return nil, core.WrapError(core.ErrConfigMissing, errors.New("archive path"))
		}
		return NewLocalFS(cfg.Path)
	case BackendS3:
		return NewS3(cfg.S3)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown archive backend %q", cfg.Backend))
	}
}

// cleanPath normalises a storage path and rejects escapes from the root
func cleanPath(path string) (string, error) {
	p := strings.Trim(strings.ReplaceAll(path, "\\", "/"), "/")
	if p == "" {
		return "", fmt.Errorf("archive: empty path")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("archive: path %q escapes the root", path)
		}
	}
	return p, nil
}
