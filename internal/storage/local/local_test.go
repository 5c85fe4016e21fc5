package local

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("backup"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestListSkipsDirsAndTmp(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "vaultwarden-20240101-000000.tar.gz")
	touch(t, dir, "vaultwarden-20240102-000000.tar.gz.tmp")
	if err := os.Mkdir(filepath.Join(dir, "archive"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	s := New(dir)
	records, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %+v", records)
	}
	r := records[0]
	if r.Name != "vaultwarden-20240101-000000.tar.gz" || r.Path != r.Name || r.Size != 6 {
		t.Fatalf("unexpected record %+v", r)
	}
	if r.ModTime == "" {
		t.Fatalf("expected ModTime to be set")
	}
}

func TestListMissingDirIsError(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing"))
	if _, err := s.List(context.Background()); err == nil {
		t.Fatalf("expected error listing a missing directory")
	}
}

func TestDeleteBatch(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.tar.gz")
	touch(t, dir, "b.tar.gz")
	touch(t, dir, "c.tar.gz")

	s := New(dir)
	if err := s.DeleteBatch(context.Background(), []string{"a.tar.gz", "b.tar.gz", "already-gone.tar.gz"}); err != nil {
		t.Fatalf("DeleteBatch: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var left []string
	for _, e := range entries {
		left = append(left, e.Name())
	}
	sort.Strings(left)
	if len(left) != 1 || left[0] != "c.tar.gz" {
		t.Fatalf("unexpected remaining files %v", left)
	}
}
