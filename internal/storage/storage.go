// Package storage holds the artifact stores: a local directory for
// single-node deployments and an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"podocs/internal/config"
)

var (
	ErrDirectoryCreate = errors.New("document directory could not be created")
	ErrWrite           = errors.New("document write failed")
	ErrRead            = errors.New("document read failed")
	ErrNotFound        = errors.New("document artifact not found")
	ErrInvalidName     = errors.New("invalid document file name")
)

// ObjectInfo describes one stored artifact.
type ObjectInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Store persists artifact bytes. Paths returned by Write are what callers
// record and later hand back to Read and Remove.
type Store interface {
	// EnsureDirectory creates the backing location if missing. Calling it
	// again never fails and never touches existing artifacts.
	EnsureDirectory(ctx context.Context) error
	// Write stores r under name and returns the artifact path. Readers never
	// observe a partially written artifact.
	Write(ctx context.Context, name string, r io.Reader) (string, error)
	// Read returns the artifact's bytes, ErrNotFound when it is absent.
	Read(ctx context.Context, path string) ([]byte, error)
	// List returns every artifact in the store.
	List(ctx context.Context) ([]ObjectInfo, error)
	// Remove deletes an artifact. Removing a missing artifact is not an error.
	Remove(ctx context.Context, path string) error
}

// ValidateName rejects anything that is not a single plain path element.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Open returns the Store selected by cfg.Backend.
func Open(cfg config.StorageConfig, minioCfg config.MinIOConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendLocal, "":
		return NewLocal(cfg.DocumentsDir)
	case config.BackendMinIO:
		return NewMinIO(minioCfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
