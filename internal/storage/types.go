package storage

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/afero"
)

var ErrClosed = errors.New("storage: closed")

// Store is the settings persistence API.
type Store interface {
	// Load returns every stored pair.
	Load(ctx context.Context) (map[string]string, error)
	// Apply writes set and removes del as one atomic batch.
	Apply(ctx context.Context, set map[string]string, del []string) error
	Close() error
}

// Config configures storage.
//
// Driver values: "memory", "file" (default), "sqlite".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	// Fs backs the file driver. Nil means the OS filesystem.
	Fs afero.Fs

	// CompactEvery folds the file journal into the snapshot after this many
	// batches. 0 means 64.
	CompactEvery int
}
