package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	DefaultPrefix      = "vaultwarden"
	DefaultMode        = "smart"
	DefaultKeepDays    = 14
	DefaultKeepCount   = 30
	DefaultBackend     = "rclone"
	DefaultListTimeout = 30 * time.Second
)

// ErrMissingRemote is returned when no remote target is configured.
var ErrMissingRemote = errors.New("remote target is not set (RCLONE_REMOTE)")

type Config struct {
	Remote      string
	Prefix      string
	Mode        string
	KeepDays    int
	KeepCount   int
	Backend     string
	ListTimeout time.Duration
	RunTimeout  time.Duration
	Schedule    string
	DryRun      bool
	MetricsAddr string

	Rclone        RcloneConfig
	S3            S3Config
	GCS           GCSConfig
	Log           LogConfig
	Notifications []NotificationConfig
}

type RcloneConfig struct {
	Binary     string `mapstructure:"binary"`
	ConfigPath string `mapstructure:"config"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	PathStyle bool   `mapstructure:"path_style"`
}

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type NotificationConfig struct {
	Type   string              `mapstructure:"type"`
	On     []string            `mapstructure:"on"`
	Config NotificationDetails `mapstructure:"config"`
}

type NotificationDetails struct {
	SMTPHost string            `mapstructure:"smtp_host"`
	SMTPPort int               `mapstructure:"smtp_port"`
	From     string            `mapstructure:"from"`
	To       string            `mapstructure:"to"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	URL      string            `mapstructure:"url"`
	Headers  map[string]string `mapstructure:"headers"`
}

// envBindings maps config keys to the environment variables the backup
// container has always used.
var envBindings = map[string]string{
	"remote":        "RCLONE_REMOTE",
	"prefix":        "BACKUP_FILENAME_PREFIX",
	"mode":          "RETENTION_MODE",
	"keep_days":     "BACKUP_RETAIN_DAYS",
	"keep_count":    "BACKUP_RETAIN_COUNT",
	"backend":       "BACKUP_BACKEND",
	"list_timeout":  "BACKUP_LIST_TIMEOUT",
	"schedule":      "BACKUP_PRUNE_SCHEDULE",
	"dry_run":       "BACKUP_PRUNE_DRY_RUN",
	"metrics_addr":  "METRICS_ADDR",
	"rclone.binary": "RCLONE_BINARY",
	"rclone.config": "RCLONE_CONFIG",
	"log.level":     "LOG_LEVEL",
	"log.format":    "LOG_FORMAT",
}

// Load reads settings from the environment and, when path is non-empty,
// from a config file. Environment values win over the file.
// Malformed numeric settings are replaced by their defaults and reported
// through log.
func Load(path string, log *slog.Logger) (*Config, error) {
	if log == nil {
		log = slog.Default()
	}

	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := Config{
		Remote:      strings.TrimSpace(v.GetString("remote")),
		Prefix:      v.GetString("prefix"),
		Mode:        strings.ToLower(strings.TrimSpace(v.GetString("mode"))),
		Backend:     strings.ToLower(strings.TrimSpace(v.GetString("backend"))),
		Schedule:    strings.TrimSpace(v.GetString("schedule")),
		DryRun:      cast.ToBool(v.Get("dry_run")),
		MetricsAddr: v.GetString("metrics_addr"),
	}

	cfg.KeepDays = lenientInt(log, v, "keep_days", DefaultKeepDays)
	cfg.KeepCount = lenientInt(log, v, "keep_count", DefaultKeepCount)
	cfg.ListTimeout = lenientDuration(log, v, "list_timeout", DefaultListTimeout)
	cfg.RunTimeout = lenientDuration(log, v, "run_timeout", 0)

	cfg.Rclone = RcloneConfig{
		Binary:     v.GetString("rclone.binary"),
		ConfigPath: v.GetString("rclone.config"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	if err := v.UnmarshalKey("s3", &cfg.S3); err != nil {
		return nil, fmt.Errorf("failed to unmarshal s3 config: %w", err)
	}
	if err := v.UnmarshalKey("gcs", &cfg.GCS); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gcs config: %w", err)
	}
	if err := v.UnmarshalKey("notifications", &cfg.Notifications); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notifications: %w", err)
	}

	ModifyConfig(&cfg)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("prefix", DefaultPrefix)
	v.SetDefault("mode", DefaultMode)
	v.SetDefault("keep_days", DefaultKeepDays)
	v.SetDefault("keep_count", DefaultKeepCount)
	v.SetDefault("backend", DefaultBackend)
	v.SetDefault("list_timeout", DefaultListTimeout.String())
	v.SetDefault("rclone.binary", "rclone")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func lenientInt(log *slog.Logger, v *viper.Viper, key string, def int) int {
	raw := strings.TrimSpace(cast.ToString(v.Get(key)))
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		log.Warn("invalid integer setting, using default", "key", key, "value", raw, "default", def)
		return def
	}
	return n
}

// lenientDuration accepts Go duration strings ("45s", "2m") or a bare
// number of seconds.
func lenientDuration(log *slog.Logger, v *viper.Viper, key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(cast.ToString(v.Get(key)))
	if raw == "" {
		return def
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		log.Warn("invalid duration setting, using default", "key", key, "value", raw, "default", def)
		return def
	}
	return d
}

// ModifyConfig expands ${VAR} references in secret-bearing fields so config
// files can stay free of credentials.
func ModifyConfig(cfg *Config) {
	cfg.Remote = os.ExpandEnv(cfg.Remote)

	cfg.S3.Bucket = os.ExpandEnv(cfg.S3.Bucket)
	cfg.S3.Region = os.ExpandEnv(cfg.S3.Region)
	cfg.S3.Endpoint = os.ExpandEnv(cfg.S3.Endpoint)
	cfg.S3.AccessKey = os.ExpandEnv(cfg.S3.AccessKey)
	cfg.S3.SecretKey = os.ExpandEnv(cfg.S3.SecretKey)
	cfg.GCS.CredentialsFile = os.ExpandEnv(cfg.GCS.CredentialsFile)

	for i := range cfg.Notifications {
		nt := &cfg.Notifications[i]
		nt.Config.SMTPHost = os.ExpandEnv(nt.Config.SMTPHost)
		nt.Config.Username = os.ExpandEnv(nt.Config.Username)
		nt.Config.Password = os.ExpandEnv(nt.Config.Password)
		nt.Config.URL = os.ExpandEnv(nt.Config.URL)
		for k, val := range nt.Config.Headers {
			nt.Config.Headers[k] = os.ExpandEnv(val)
		}
	}
}
