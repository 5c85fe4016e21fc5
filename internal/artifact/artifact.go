// Package artifact recognizes backup snapshots in a remote listing.
package artifact

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Record is one entry of a remote listing. Field names follow the JSON that
// `rclone lsjson` emits.
type Record struct {
	Name    string `json:"Name"`
	Path    string `json:"Path"`
	Size    int64  `json:"Size"`
	ModTime string `json:"ModTime"`
}

// Artifact is a Record recognized as a backup snapshot.
type Artifact struct {
	Name string
	// Path is handed back to the remote verbatim when deleting.
	Path    string
	Size    int64
	ModTime string
	// CreatedAt comes from the timestamp embedded in Name, not ModTime.
	CreatedAt time.Time
}

const timestampLayout = "20060102150405"

var timestampPattern = regexp.MustCompile(`(\d{8})-(\d{6})`)

// ParseTimestamp extracts the first YYYYMMDD-hhmmss block from name and
// interprets it in loc. Blocks that are not a valid calendar time (month 13,
// February 30) are rejected.
func ParseTimestamp(name string, loc *time.Location) (time.Time, bool) {
	m := timestampPattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(timestampLayout, m[1]+m[2], loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsBackupName reports whether name carries prefix and an archive extension.
func IsBackupName(name, prefix string) bool {
	if !strings.HasPrefix(name, prefix) {
		return false
	}
	return strings.Contains(name, ".tar.") || strings.HasSuffix(name, ".zip")
}

// Filter returns the records that are backup artifacts, newest first.
// Artifacts with equal timestamps keep their listing order.
func Filter(records []Record, prefix string, loc *time.Location, log *slog.Logger) []Artifact {
	if log == nil {
		log = slog.Default()
	}

	out := make([]Artifact, 0, len(records))
	for _, r := range records {
		if !IsBackupName(r.Name, prefix) {
			continue
		}
		t, ok := ParseTimestamp(r.Name, loc)
		if !ok {
			log.Debug("skipping backup without a parseable timestamp", "name", r.Name)
			continue
		}
		out = append(out, Artifact{
			Name:      r.Name,
			Path:      r.Path,
			Size:      r.Size,
			ModTime:   r.ModTime,
			CreatedAt: t,
		})
	}

	// newest first
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Paths returns the remote path of every artifact, in order.
func Paths(as []Artifact) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.Path
	}
	return out
}
