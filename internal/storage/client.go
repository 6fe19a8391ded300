package storage

import (
	"context"

	"github.com/hatemosphere/backup-janitor/internal/retention"
)

// Client is a remote store holding backup objects under one bucket and
// prefix.
type Client interface {
	// List returns every backup under the configured location in the
	// order the backend reports them. truncated reports that the
	// backend capped the listing (typically at 1000 objects); the
	// caller should delete what came back and run again.
	List(ctx context.Context) (backups []retention.Backup, truncated bool, err error)

	// Delete removes the given backups and returns how many the
	// backend confirmed. Any error aborts the sweep with the count so
	// far; backups are never silently skipped.
	Delete(ctx context.Context, backups []retention.Backup) (int, error)

	// Name returns a short name for this backend (e.g., "s3").
	Name() string
}
