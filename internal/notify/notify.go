// Package notify reports retention run results to webhooks and mailboxes.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dev-tams/backupprune/internal/config"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Event summarizes one retention run.
type Event struct {
	RunID      string `json:"run_id"`
	Remote     string `json:"remote"`
	Mode       string `json:"mode"`
	Status     string `json:"status"`
	Candidates int    `json:"candidates"`
	Kept       int    `json:"kept"`
	// Planned is the size of the delete-set; Deleted is what was actually
	// sent to the remote, which is zero on dry runs.
	Planned  int    `json:"planned"`
	Deleted  int    `json:"deleted"`
	DryRun   bool   `json:"dry_run"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// Summary is a one-line description suitable for chat messages and mail
// subjects.
func (e Event) Summary() string {
	switch {
	case e.Status == StatusFailure:
		return fmt.Sprintf("retention on %s failed: %s", e.Remote, e.Error)
	case e.DryRun:
		return fmt.Sprintf("retention dry run on %s (%s): would delete %d of %d, keep %d",
			e.Remote, e.Mode, e.Planned, e.Candidates, e.Kept)
	case e.Planned == 0:
		return fmt.Sprintf("retention on %s (%s): nothing to delete, %d kept", e.Remote, e.Mode, e.Kept)
	default:
		return fmt.Sprintf("retention on %s (%s): deleted %d of %d, kept %d",
			e.Remote, e.Mode, e.Deleted, e.Candidates, e.Kept)
	}
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// trigger is the set of run outcomes a route is interested in.
//
//	success   every successful run
//	failure   every failed run
//	both      success and failure
//	changes   successful runs that had something to delete
//	dry_run   also deliver dry runs (skipped otherwise, unless they fail)
type trigger struct {
	success bool
	failure bool
	changes bool
	dryRun  bool
}

type route struct {
	name     string
	on       trigger
	notifier Notifier
}

type Dispatcher struct {
	routes []route
}

func NewDispatcher(cfgs []config.NotificationConfig) (*Dispatcher, error) {
	routes := make([]route, 0, len(cfgs))
	for i, n := range cfgs {
		kind := strings.ToLower(strings.TrimSpace(n.Type))
		on, err := parseOn(n.On)
		if err != nil {
			return nil, fmt.Errorf("notifications[%d]: %w", i, err)
		}

		var nf Notifier
		switch kind {
		case "webhook":
			nf, err = NewWebhook(n.Config.URL, n.Config.Headers)
		case "email":
			nf, err = NewEmail(n.Config.SMTPHost, n.Config.SMTPPort, n.Config.From, n.Config.To, n.Config.Username, n.Config.Password)
		default:
			return nil, fmt.Errorf("notifications[%d]: unsupported notification type %q", i, n.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("notifications[%d] %s: %w", i, kind, err)
		}
		routes = append(routes, route{name: fmt.Sprintf("%s#%d", kind, i), on: on, notifier: nf})
	}
	return &Dispatcher{routes: routes}, nil
}

// Notify delivers event to every interested route. A failing route does not
// stop the others.
func (d *Dispatcher) Notify(ctx context.Context, event Event) error {
	if d == nil || len(d.routes) == 0 {
		return nil
	}

	var errs []error
	for _, r := range d.routes {
		if !r.on.wants(event) {
			continue
		}
		if err := r.notifier.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("notification %s: %w", r.name, err))
		}
	}
	return errors.Join(errs...)
}

func (t trigger) wants(e Event) bool {
	switch e.Status {
	case StatusFailure:
		return t.failure
	case StatusSuccess:
		if e.DryRun && !t.dryRun {
			return false
		}
		return t.success || (t.changes && e.Planned > 0)
	default:
		return false
	}
}

func parseOn(raw []string) (trigger, error) {
	var t trigger
	for _, v := range raw {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "success":
			t.success = true
		case "failure":
			t.failure = true
		case "both":
			t.success = true
			t.failure = true
		case "changes":
			t.changes = true
		case "dry_run", "dry-run":
			t.dryRun = true
		default:
			return trigger{}, fmt.Errorf("on contains unsupported value %q", v)
		}
	}

	if !t.success && !t.failure && !t.changes {
		return trigger{}, fmt.Errorf("on must include success, failure, both or changes")
	}
	return t, nil
}
