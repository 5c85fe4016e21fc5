// Package gcs lists and prunes backups kept in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/dev-tams/backupprune/internal/artifact"
)

type Options struct {
	Name            string
	Bucket          string
	Prefix          string
	CredentialsFile string
}

type Storage struct {
	name   string
	prefix string
	bucket *storage.BucketHandle
	client *storage.Client
}

// New opens a client using CredentialsFile when set, otherwise application
// default credentials.
func New(ctx context.Context, opt Options) (*Storage, error) {
	if opt.Bucket == "" {
		return nil, fmt.Errorf("gcs: bucket is required")
	}

	var clientOpts []option.ClientOption
	if opt.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opt.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	name := opt.Name
	if name == "" {
		name = "gs://" + path.Join(opt.Bucket, opt.Prefix)
	}
	return &Storage{
		name:   name,
		prefix: listPrefix(opt.Prefix),
		bucket: client.Bucket(opt.Bucket),
		client: client,
	}, nil
}

func (s *Storage) Name() string { return s.name }

func (s *Storage) Close() error { return s.client.Close() }

// List returns the objects directly under the prefix. Deeper objects are
// collapsed into prefix entries, which are skipped.
func (s *Storage) List(ctx context.Context) ([]artifact.Record, error) {
	it := s.bucket.Objects(ctx, listQuery(s.prefix))

	var out []artifact.Record
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list objects: %w", err)
		}
		if rec, ok := recordFromAttrs(attrs); ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// DeleteBatch deletes objects one by one; GCS has no multi-object delete in
// the JSON API client. Objects already gone are not errors.
func (s *Storage) DeleteBatch(ctx context.Context, names []string) error {
	var errs []error
	for _, n := range names {
		err := s.bucket.Object(n).Delete(ctx)
		if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			errs = append(errs, fmt.Errorf("gcs delete %s: %w", n, err))
		}
	}
	return errors.Join(errs...)
}

func recordFromAttrs(attrs *storage.ObjectAttrs) (artifact.Record, bool) {
	if attrs == nil || attrs.Name == "" || strings.HasSuffix(attrs.Name, "/") {
		return artifact.Record{}, false
	}
	rec := artifact.Record{
		Name: path.Base(attrs.Name),
		Path: attrs.Name,
		Size: attrs.Size,
	}
	if !attrs.Updated.IsZero() {
		rec.ModTime = attrs.Updated.UTC().Format(time.RFC3339Nano)
	}
	return rec, true
}

func listQuery(prefix string) *storage.Query {
	return &storage.Query{Prefix: prefix, Delimiter: "/"}
}

func listPrefix(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}
