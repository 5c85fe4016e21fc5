// Package rclone lists and prunes a remote through the rclone binary.
package rclone

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/dev-tams/backupprune/internal/artifact"
)

// Runner executes name with args. It exists so tests can stand in for the
// rclone binary.
type Runner func(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error

type Options struct {
	Binary     string
	ConfigPath string
	Remote     string
	// TempDir holds the transient delete list; empty means os.TempDir().
	TempDir string
	Runner  Runner
}

type Remote struct {
	binary     string
	configPath string
	remote     string
	tempDir    string
	run        Runner
}

func New(opt Options) *Remote {
	bin := opt.Binary
	if bin == "" {
		bin = "rclone"
	}
	run := opt.Runner
	if run == nil {
		run = execRunner
	}
	return &Remote{
		binary:     bin,
		configPath: opt.ConfigPath,
		remote:     opt.Remote,
		tempDir:    opt.TempDir,
		run:        run,
	}
}

func (r *Remote) Name() string { return r.remote }

// List runs `rclone lsjson <remote> --files-only --no-mimetype`. The
// process is killed when ctx is done.
func (r *Remote) List(ctx context.Context) ([]artifact.Record, error) {
	var stdout, stderr bytes.Buffer
	args := r.args("lsjson", r.remote, "--files-only", "--no-mimetype")
	if err := r.run(ctx, r.binary, args, &stdout, &stderr); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("rclone lsjson: %w", ctxErr)
		}
		return nil, fmt.Errorf("rclone lsjson: %w%s", err, stderrDetail(&stderr))
	}

	var records []artifact.Record
	if err := json.Unmarshal(stdout.Bytes(), &records); err != nil {
		return nil, fmt.Errorf("decode rclone lsjson output: %w", err)
	}
	return records, nil
}

// DeleteBatch writes paths to a temporary list and runs
// `rclone delete <remote> --files-from-raw <list>`, so large batches never
// hit command line limits. The list is removed whatever the outcome.
func (r *Remote) DeleteBatch(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	listPath, err := writeList(r.tempDir, paths)
	if err != nil {
		return err
	}
	defer os.Remove(listPath)

	var stdout, stderr bytes.Buffer
	args := r.args("delete", r.remote, "--files-from-raw", listPath)
	if err := r.run(ctx, r.binary, args, &stdout, &stderr); err != nil {
		return fmt.Errorf("rclone delete: %w%s", err, stderrDetail(&stderr))
	}
	return nil
}

func (r *Remote) args(cmd string, rest ...string) []string {
	args := []string{cmd}
	args = append(args, rest...)
	if r.configPath != "" {
		args = append(args, "--config", r.configPath)
	}
	return args
}

func writeList(dir string, paths []string) (string, error) {
	f, err := os.CreateTemp(dir, "backupprune-delete-*.txt")
	if err != nil {
		return "", fmt.Errorf("create delete list: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, p := range paths {
		if _, err := w.WriteString(p + "\n"); err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
			return "", fmt.Errorf("write delete list: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write delete list: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close delete list: %w", err)
	}
	return f.Name(), nil
}

func stderrDetail(b *bytes.Buffer) string {
	s := strings.TrimSpace(b.String())
	if s == "" {
		return ""
	}
	return ": " + s
}

func execRunner(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}
