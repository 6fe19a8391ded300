package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/option"
	gstorage "google.golang.org/api/storage/v1"

	"github.com/hatemosphere/backup-janitor/internal/retention"
)

// GCSConfig holds configuration for the Google Cloud Storage client.
type GCSConfig struct {
	Bucket     string
	Prefix     string // object name prefix holding the backups
	Endpoint   string // custom endpoint, for emulators and test fakes
	MaxResults int64  // listing cap per run (default: 1000)
}

// GCSClient implements Client for Google Cloud Storage using the JSON API.
type GCSClient struct {
	svc        *gstorage.Service
	bucket     string
	prefix     string
	maxResults int64
}

// NewGCSClient creates a GCS client using Application Default Credentials,
// or an unauthenticated client when a custom endpoint is set.
func NewGCSClient(ctx context.Context, cfg GCSConfig) (*GCSClient, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("GCS bucket name is required")
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 1000
	}

	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	svc, err := gstorage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS service: %w", err)
	}

	return &GCSClient{
		svc:        svc,
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
		maxResults: cfg.MaxResults,
	}, nil
}

func (c *GCSClient) Name() string { return "gcs" }

// List requests a single page of objects. The caller re-runs while the
// listing comes back truncated, same as the S3 client.
func (c *GCSClient) List(ctx context.Context) ([]retention.Backup, bool, error) {
	out, err := c.svc.Objects.List(c.bucket).
		Prefix(c.prefix).
		MaxResults(c.maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, false, fmt.Errorf("list gs://%s/%s: %w", c.bucket, c.prefix, err)
	}

	backups := make([]retention.Backup, 0, len(out.Items))
	for _, obj := range out.Items {
		ts, err := time.Parse(time.RFC3339, obj.TimeCreated)
		if err != nil {
			return nil, false, fmt.Errorf("parse creation time of gs://%s/%s: %w", c.bucket, obj.Name, err)
		}
		backups = append(backups, retention.Backup{
			ID:        obj.Name,
			DisplayID: strings.TrimPrefix(obj.Name, c.prefix),
			Timestamp: ts.UTC(),
			Size:      int64(obj.Size),
		})
	}
	return backups, out.NextPageToken != "", nil
}

// Delete removes the given backups one object at a time (the JSON API has
// no batch delete) and returns the number removed. The first failure
// aborts the run with the count so far.
func (c *GCSClient) Delete(ctx context.Context, backups []retention.Backup) (int, error) {
	deleted := 0
	for _, b := range backups {
		if err := c.svc.Objects.Delete(c.bucket, b.ID).Context(ctx).Do(); err != nil {
			return deleted, fmt.Errorf("delete gs://%s/%s: %w", c.bucket, b.ID, err)
		}
		deleted++
	}
	if deleted > 0 {
		slog.Info("deleted backups", "backend", "gcs", "bucket", c.bucket, "count", deleted)
	}
	return deleted, nil
}
