package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dev-tams/backupprune/internal/artifact"
)

// Storage treats a local directory (or a mounted share) as the remote.
type Storage struct {
	base string
}

func New(basePath string) *Storage {
	return &Storage{base: basePath}
}

func (s *Storage) Name() string { return s.base }

// List returns the regular files directly under the base directory. Paths
// are relative to it.
func (s *Storage) List(_ context.Context) ([]artifact.Record, error) {
	entries, err := os.ReadDir(s.base)
	if err != nil {
		return nil, fmt.Errorf("list dir: %w", err)
	}

	out := make([]artifact.Record, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		// Skip in-flight writes left by uploaders that rename on completion.
		if filepath.Ext(e.Name()) == ".tmp" {
			continue
		}

		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat: %w", err)
		}

		out = append(out, artifact.Record{
			Name:    e.Name(),
			Path:    e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime().UTC().Format(time.RFC3339Nano),
		})
	}
	return out, nil
}

// DeleteBatch removes every path, carrying on past failures. Paths that are
// already gone are not errors.
func (s *Storage) DeleteBatch(ctx context.Context, paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.delete(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Storage) delete(key string) error {
	p := filepath.Join(s.base, filepath.FromSlash(key))
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
