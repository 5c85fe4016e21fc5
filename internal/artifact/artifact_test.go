package artifact

import (
	"testing"
	"time"

	"github.com/dev-tams/backupprune/internal/logging"
)

func rec(name string) Record {
	return Record{Name: name, Path: "backups/" + name, Size: 1024, ModTime: "2024-01-01T00:00:00Z"}
}

func TestFilterSelectsByPrefixExtensionAndTimestamp(t *testing.T) {
	records := []Record{
		rec("otherapp-20240101-000000.tar.gz"),
		rec("vaultwarden-20240101-000000.tar.gz"),
		rec("vaultwarden-backup.tar.gz"),
		rec("vaultwarden-20240102-000000.zip"),
		rec("vaultwarden-20240103-000000.sql"),
		rec("vaultwarden-20241301-000000.tar.gz"),
	}

	got := Filter(records, "vaultwarden", time.UTC, logging.Discard())
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(got), got)
	}
	if got[0].Name != "vaultwarden-20240102-000000.zip" {
		t.Fatalf("expected newest first, got %s", got[0].Name)
	}
	if got[1].Name != "vaultwarden-20240101-000000.tar.gz" {
		t.Fatalf("unexpected second candidate %s", got[1].Name)
	}
	if got[1].Path != "backups/vaultwarden-20240101-000000.tar.gz" {
		t.Fatalf("path must be passed through verbatim, got %s", got[1].Path)
	}
}

func TestFilterSortsNewestFirstAndIsStable(t *testing.T) {
	records := []Record{
		rec("vaultwarden-20240101-000000.tar.gz"),
		rec("vaultwarden-20240105-000000.tar.gz"),
		{Name: "vaultwarden-20240103-000000.tar.gz", Path: "a"},
		{Name: "vaultwarden-20240103-000000.tar.xz", Path: "b"},
	}

	got := Filter(records, "vaultwarden", time.UTC, logging.Discard())
	wantPaths := []string{
		"backups/vaultwarden-20240105-000000.tar.gz",
		"a",
		"b",
		"backups/vaultwarden-20240101-000000.tar.gz",
	}
	if len(got) != len(wantPaths) {
		t.Fatalf("expected %d candidates, got %d", len(wantPaths), len(got))
	}
	for i, p := range Paths(got) {
		if p != wantPaths[i] {
			t.Fatalf("position %d: got %s want %s", i, p, wantPaths[i])
		}
	}
}

func TestFilterEmpty(t *testing.T) {
	if got := Filter(nil, "vaultwarden", time.UTC, nil); len(got) != 0 {
		t.Fatalf("expected no candidates, got %d", len(got))
	}
}

func TestParseTimestamp(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)

	got, ok := ParseTimestamp("vaultwarden-20240115-030000.tar.gz", loc)
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	want := time.Date(2024, 1, 15, 3, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("unexpected parsed time: got %s want %s", got, want)
	}

	invalid := []string{
		"vaultwarden-backup.tar.gz",
		"vaultwarden-20240230-000000.tar.gz",
		"vaultwarden-20240115-250000.tar.gz",
		"vaultwarden-20240115_030000.tar.gz",
	}
	for _, name := range invalid {
		if _, ok := ParseTimestamp(name, loc); ok {
			t.Fatalf("expected parse to fail for %s", name)
		}
	}
}

func TestIsBackupName(t *testing.T) {
	cases := map[string]bool{
		"vaultwarden-20240101-000000.tar.gz":  true,
		"vaultwarden-20240101-000000.tar.zst": true,
		"vaultwarden-20240101-000000.zip":     true,
		"vaultwarden-20240101-000000.tar":     false,
		"vaultwarden-20240101-000000.zip.md5": false,
		"x-vaultwarden-20240101-000000.zip":   false,
	}
	for name, want := range cases {
		if got := IsBackupName(name, "vaultwarden"); got != want {
			t.Fatalf("IsBackupName(%q) = %v, want %v", name, got, want)
		}
	}
}
