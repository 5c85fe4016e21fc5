package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dev-tams/backupprune/internal/artifact"
	"github.com/dev-tams/backupprune/internal/config"
	"github.com/dev-tams/backupprune/internal/metrics"
	"github.com/dev-tams/backupprune/internal/notify"
	"github.com/dev-tams/backupprune/internal/prune"
	"github.com/dev-tams/backupprune/internal/retention"
	"github.com/dev-tams/backupprune/internal/storage"
)

// ErrListing marks a run that stopped because the remote could not be
// listed. No deletion is attempted after a listing failure.
var ErrListing = errors.New("listing remote failed")

type Options struct {
	// Now defaults to time.Now.
	Now func() time.Time
	// Location is used to read timestamps embedded in file names.
	// Defaults to time.Local.
	Location *time.Location
	Log      *slog.Logger
	Metrics  *metrics.Collector
	Notifier *notify.Dispatcher
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Log == nil {
		o.Log = slog.Default()
	}
	return o
}

type Result struct {
	RunID      string
	Remote     string
	Policy     retention.Policy
	Listed     int
	Candidates int
	Plan       retention.Plan
	Outcome    prune.Outcome
	Duration   time.Duration
}

// PolicyFromConfig builds the retention policy for cfg. An unrecognized mode
// falls back to days and is logged.
func PolicyFromConfig(cfg *config.Config, log *slog.Logger) retention.Policy {
	mode, ok := retention.ParseMode(cfg.Mode)
	if !ok && log != nil {
		log.Warn("unknown retention mode, falling back to days", "mode", cfg.Mode)
	}
	return retention.Policy{
		Mode:      mode,
		KeepDays:  cfg.KeepDays,
		KeepCount: cfg.KeepCount,
	}
}

// PlanRetention lists the remote and decides what a run would delete,
// without deleting anything.
func PlanRetention(ctx context.Context, cfg *config.Config, lister storage.Lister, opts Options) (Result, error) {
	opts = opts.withDefaults()
	started := opts.Now()

	res := Result{
		RunID:  uuid.NewString(),
		Remote: cfg.Remote,
	}
	log := opts.Log.With("run_id", res.RunID)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		return res, err
	}

	res.Policy = PolicyFromConfig(cfg, log)
	log.Info("strategy selected", "mode", res.Policy.Mode.String(), "policy", res.Policy.String())

	records, err := listWithTimeout(ctx, lister, cfg.ListTimeout)
	if err != nil {
		log.Error("no backups found (listing failed)", "remote", cfg.Remote, "error", err)
		return res, fmt.Errorf("%w: %w", ErrListing, err)
	}
	res.Listed = len(records)

	candidates := artifact.Filter(records, cfg.Prefix, opts.Location, log)
	res.Candidates = len(candidates)
	log.Info("backup candidates found", "listed", res.Listed, "candidates", res.Candidates, "prefix", cfg.Prefix)

	res.Plan = retention.Select(candidates, res.Policy, opts.Now())
	res.Duration = opts.Now().Sub(started)
	return res, nil
}

// listWithTimeout bounds a single listing call by timeout, whatever the
// backend.
func listWithTimeout(ctx context.Context, lister storage.Lister, timeout time.Duration) ([]artifact.Record, error) {
	if timeout <= 0 {
		return lister.List(ctx)
	}
	listCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	records, err := lister.List(listCtx)
	if err != nil && errors.Is(listCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, fmt.Errorf("listing timed out after %s: %w", timeout, err)
	}
	return records, err
}

// RunRetention performs one retention run: list, filter, select, delete.
func RunRetention(ctx context.Context, cfg *config.Config, remote storage.Remote, opts Options) (Result, error) {
	opts = opts.withDefaults()
	started := opts.Now()

	res, err := PlanRetention(ctx, cfg, remote, opts)
	if err == nil {
		log := opts.Log.With("run_id", res.RunID)
		if res.Candidates == 0 {
			log.Warn("no backup files found in remote", "remote", cfg.Remote)
		}

		exec := &prune.Executor{Deleter: remote, Log: log, DryRun: cfg.DryRun}
		res.Outcome, err = exec.Execute(ctx, res.Plan.Delete)
		if err != nil {
			log.Error("delete request failed", "error", err)
		} else if res.Outcome.Requested == 0 {
			log.Info("no action needed", "kept", len(res.Plan.Keep))
		} else {
			log.Info("retention finished",
				"kept", len(res.Plan.Keep),
				"deleted", res.Outcome.Requested,
				"dry_run", res.Outcome.DryRun,
			)
		}
	}
	res.Duration = opts.Now().Sub(started)

	report(ctx, opts, res, err)
	return res, err
}

func report(ctx context.Context, opts Options, res Result, runErr error) {
	opts.Metrics.Observe(metrics.Observation{
		Mode:       res.Policy.Mode.String(),
		Success:    runErr == nil,
		Candidates: res.Candidates,
		Kept:       len(res.Plan.Keep),
		Deleted:    deletedCount(res),
		Duration:   res.Duration,
		Finished:   opts.Now(),
	})

	event := notify.Event{
		RunID:      res.RunID,
		Remote:     res.Remote,
		Mode:       res.Policy.Mode.String(),
		Status:     notify.StatusSuccess,
		Candidates: res.Candidates,
		Kept:       len(res.Plan.Keep),
		Planned:    len(res.Plan.Delete),
		Deleted:    deletedCount(res),
		DryRun:     res.Outcome.DryRun,
		Duration:   res.Duration.Round(time.Millisecond).String(),
	}
	if runErr != nil {
		event.Status = notify.StatusFailure
		event.Error = runErr.Error()
	}

	notifyCtx, cancel := notificationContext(ctx)
	defer cancel()

	if err := opts.Notifier.Notify(notifyCtx, event); err != nil {
		opts.Log.Warn("notification failed", "run_id", res.RunID, "status", event.Status, "error", err)
	}
}

// deletedCount is what was sent to the remote; dry runs delete nothing.
func deletedCount(res Result) int {
	if res.Outcome.DryRun {
		return 0
	}
	return res.Outcome.Requested
}
