package config

import (
	"fmt"
	"strings"

	"github.com/dev-tams/backupprune/internal/schedule"
)

var knownBackends = map[string]struct{}{
	"rclone": {},
	"local":  {},
	"s3":     {},
	"gcs":    {},
}

// Validate checks the settings a run cannot proceed without. An unknown
// retention mode is not an error here: the policy falls back to days.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Remote) == "" {
		return ErrMissingRemote
	}
	if _, ok := knownBackends[c.Backend]; !ok {
		return fmt.Errorf("backend %q is not supported (rclone, local, s3, gcs)", c.Backend)
	}
	if c.ListTimeout <= 0 {
		return fmt.Errorf("list_timeout must be > 0")
	}

	if c.Schedule != "" {
		if err := schedule.Validate(c.Schedule); err != nil {
			return fmt.Errorf("schedule %q is invalid: %w", c.Schedule, err)
		}
	}

	for i, n := range c.Notifications {
		if strings.TrimSpace(n.Type) == "" {
			return fmt.Errorf("notifications[%d].type is required", i)
		}
	}
	return nil
}
