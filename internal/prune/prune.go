// Package prune turns a delete-set into a single batch delete request.
package prune

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dev-tams/backupprune/internal/artifact"
	"github.com/dev-tams/backupprune/internal/storage"
)

// Outcome describes what was requested of the remote. Requested is the
// number of paths sent, not the number confirmed deleted.
type Outcome struct {
	Requested int
	Bytes     int64
	DryRun    bool
}

type Executor struct {
	Deleter storage.Deleter
	Log     *slog.Logger
	DryRun  bool
}

// Execute logs the deletion intent for each artifact and issues one batch
// delete. An empty set makes no remote call. Individual deletions are not
// verified: anything left behind is listed again on the next run.
func (e *Executor) Execute(ctx context.Context, toDelete []artifact.Artifact) (Outcome, error) {
	log := e.Log
	if log == nil {
		log = slog.Default()
	}

	if len(toDelete) == 0 {
		log.Info("no files need to be deleted")
		return Outcome{DryRun: e.DryRun}, nil
	}

	out := Outcome{Requested: len(toDelete), DryRun: e.DryRun}
	log.Info("deleting old backups", "count", len(toDelete), "dry_run", e.DryRun)
	for _, a := range toDelete {
		out.Bytes += a.Size
		log.Info("marked for delete",
			"name", a.Name,
			"created_at", a.CreatedAt.Format("2006-01-02 15:04:05"),
			"size", a.Size,
		)
	}

	if e.DryRun {
		log.Info("dry run, skipping delete request", "count", len(toDelete))
		return out, nil
	}

	if err := e.Deleter.DeleteBatch(ctx, artifact.Paths(toDelete)); err != nil {
		return out, fmt.Errorf("batch delete of %d file(s): %w", len(toDelete), err)
	}
	return out, nil
}
