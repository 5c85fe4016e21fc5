package storage

import (
	"context"
	"io"

	"github.com/dev-tams/backupprune/internal/artifact"
)

// Lister returns the raw listing of the remote store.
type Lister interface {
	List(ctx context.Context) ([]artifact.Record, error)
}

// Deleter removes a batch of remote paths in one request. It reports only
// whether the request as a whole failed.
type Deleter interface {
	DeleteBatch(ctx context.Context, paths []string) error
}

// Remote is a backup location that can be listed and pruned.
type Remote interface {
	Lister
	Deleter
	Name() string
}

// Close releases clients held by r, for backends that keep one open.
func Close(r Remote) error {
	if c, ok := r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
