package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dev-tams/backupprune/internal/app"
	"github.com/dev-tams/backupprune/internal/artifact"
)

type planEntry struct {
	Name      string `json:"name" yaml:"name"`
	Path      string `json:"path" yaml:"path"`
	Size      int64  `json:"size" yaml:"size"`
	CreatedAt string `json:"created_at" yaml:"created_at"`
}

type planReport struct {
	RunID      string      `json:"run_id" yaml:"run_id"`
	Remote     string      `json:"remote" yaml:"remote"`
	Policy     string      `json:"policy" yaml:"policy"`
	Listed     int         `json:"listed" yaml:"listed"`
	Candidates int         `json:"candidates" yaml:"candidates"`
	Keep       []planEntry `json:"keep" yaml:"keep"`
	Delete     []planEntry `json:"delete" yaml:"delete"`
}

func newPlanReport(res app.Result) planReport {
	return planReport{
		RunID:      res.RunID,
		Remote:     res.Remote,
		Policy:     res.Policy.String(),
		Listed:     res.Listed,
		Candidates: res.Candidates,
		Keep:       planEntries(res.Plan.Keep),
		Delete:     planEntries(res.Plan.Delete),
	}
}

func planEntries(as []artifact.Artifact) []planEntry {
	out := make([]planEntry, 0, len(as))
	for _, a := range as {
		out = append(out, planEntry{
			Name:      a.Name,
			Path:      a.Path,
			Size:      a.Size,
			CreatedAt: a.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}

func writePlan(w io.Writer, format string, res app.Result) error {
	report := newPlanReport(res)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return writePlanText(w, report)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (text, json, yaml)", format)
	}
}

func writePlanText(w io.Writer, report planReport) error {
	fmt.Fprintf(w, "remote:     %s\n", report.Remote)
	fmt.Fprintf(w, "policy:     %s\n", report.Policy)
	fmt.Fprintf(w, "candidates: %d of %d listed\n\n", report.Candidates, report.Listed)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTION\tCREATED\tSIZE\tNAME")
	for _, e := range report.Keep {
		fmt.Fprintf(tw, "keep\t%s\t%d\t%s\n", e.CreatedAt, e.Size, e.Name)
	}
	for _, e := range report.Delete {
		fmt.Fprintf(tw, "delete\t%s\t%d\t%s\n", e.CreatedAt, e.Size, e.Name)
	}
	return tw.Flush()
}
