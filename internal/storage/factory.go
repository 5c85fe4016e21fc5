package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dev-tams/backupprune/internal/config"
	"github.com/dev-tams/backupprune/internal/storage/gcs"
	"github.com/dev-tams/backupprune/internal/storage/local"
	"github.com/dev-tams/backupprune/internal/storage/rclone"
	s3store "github.com/dev-tams/backupprune/internal/storage/s3"
)

// FromConfig builds the remote selected by cfg.Backend.
func FromConfig(ctx context.Context, cfg *config.Config) (Remote, error) {
	switch cfg.Backend {
	case "", "rclone":
		return rclone.New(rclone.Options{
			Binary:     cfg.Rclone.Binary,
			ConfigPath: cfg.Rclone.ConfigPath,
			Remote:     cfg.Remote,
		}), nil

	case "local":
		return local.New(cfg.Remote), nil

	case "s3":
		bucket, prefix := cfg.S3.Bucket, cfg.S3.Prefix
		if bucket == "" {
			b, p, err := splitBucketURL(cfg.Remote, "s3")
			if err != nil {
				return nil, fmt.Errorf("storage s3: %w", err)
			}
			bucket, prefix = b, p
		}
		s, err := s3store.New(ctx, s3store.Options{
			Name:      cfg.Remote,
			Bucket:    bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			Prefix:    prefix,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PathStyle: cfg.S3.PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("storage s3: %w", err)
		}
		return s, nil

	case "gcs":
		bucket, prefix := cfg.GCS.Bucket, cfg.GCS.Prefix
		if bucket == "" {
			b, p, err := splitBucketURL(cfg.Remote, "gs")
			if err != nil {
				return nil, fmt.Errorf("storage gcs: %w", err)
			}
			bucket, prefix = b, p
		}
		s, err := gcs.New(ctx, gcs.Options{
			Name:            cfg.Remote,
			Bucket:          bucket,
			Prefix:          prefix,
			CredentialsFile: cfg.GCS.CredentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("storage gcs: %w", err)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// splitBucketURL turns "s3://bucket/some/prefix" into its bucket and prefix.
func splitBucketURL(raw, scheme string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse remote %q: %w", raw, err)
	}
	if u.Scheme != scheme || u.Host == "" {
		return "", "", fmt.Errorf("remote %q must look like %s://bucket/prefix when no bucket is configured", raw, scheme)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}
