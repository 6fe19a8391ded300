// Package sweep runs the full cycle for one target: list the backups,
// partition them with a retention strategy, and delete the expendable
// set. It also owns the run metrics, the journal recording, and the
// cron scheduler for daemon mode.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hatemosphere/backup-janitor/internal/journal"
	"github.com/hatemosphere/backup-janitor/internal/manifest"
	"github.com/hatemosphere/backup-janitor/internal/retention"
	"github.com/hatemosphere/backup-janitor/internal/storage"
)

// Report describes one finished sweep run.
type Report struct {
	RunID           string
	Target          string
	Strategy        string
	Scanned         int
	Kept            int
	Expendable      int
	Deleted         int
	ExpendableBytes int64 // total size of the expendable set
	BytesFreed      int64 // set after all deletions succeed
	Truncated       bool
	Aborted         bool
	DryRun          bool
	Started         time.Time
	Duration        time.Duration
	ManifestPath    string
}

// ConfirmFunc decides whether a run proceeds to deletion. It sees the
// report with Scanned, Expendable, and ExpendableBytes already filled in.
type ConfirmFunc func(*Report) bool

// StrategyFunc builds the retention strategy for a run starting at now.
// Daemon cycles call it once per run so age windows stay anchored to
// the current time.
type StrategyFunc func(now time.Time) (retention.Strategy, error)

// Sweeper owns everything needed to sweep one target.
type Sweeper struct {
	Client    storage.Client
	Strategy  StrategyFunc
	Target    string      // label for logs, metrics, and the journal
	Confirm   ConfirmFunc // nil proceeds without asking
	DryRun    bool
	Journal   *journal.Journal // optional
	Manifests *manifest.Writer // optional
}

// Run executes one sweep cycle. The report is valid even when err != nil,
// with the counts reached before the failure.
func (s *Sweeper) Run(ctx context.Context) (*Report, error) {
	rep := &Report{
		RunID:   uuid.New().String(),
		Target:  s.Target,
		DryRun:  s.DryRun,
		Started: time.Now().UTC(),
	}
	err := s.run(ctx, rep)
	rep.Duration = time.Since(rep.Started)
	s.observe(rep, err)
	s.record(ctx, rep, err)
	return rep, err
}

func (s *Sweeper) run(ctx context.Context, rep *Report) error {
	strategy, err := s.Strategy(rep.Started)
	if err != nil {
		return fmt.Errorf("build strategy: %w", err)
	}
	rep.Strategy = strategy.Name()

	backups, truncated, err := s.Client.List(ctx)
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}
	rep.Scanned = len(backups)
	rep.Truncated = truncated
	if truncated {
		slog.Warn("storage listing was capped, re-run to sweep the rest",
			"target", s.Target, "scanned", rep.Scanned)
	}

	kept, expendable := strategy.Partition(backups)
	rep.Kept = len(kept)
	rep.Expendable = len(expendable)
	for _, b := range expendable {
		rep.ExpendableBytes += b.Size
	}

	slog.Info("partitioned backups",
		"target", s.Target,
		"strategy", rep.Strategy,
		"scanned", rep.Scanned,
		"kept", rep.Kept,
		"expendable", rep.Expendable)

	if rep.Expendable == 0 {
		return nil
	}

	if s.DryRun {
		slog.Info("dry run, keeping everything",
			"target", s.Target, "expendable", rep.Expendable)
		return nil
	}

	if s.Confirm != nil && !s.Confirm(rep) {
		rep.Aborted = true
		slog.Info("run aborted before deletion", "target", s.Target)
		return nil
	}

	// The manifest must be on disk before the first deletion goes out.
	if s.Manifests != nil {
		path, err := s.Manifests.Write(rep.RunID, s.Target, expendable)
		if err != nil {
			return fmt.Errorf("write manifest: %w", err)
		}
		rep.ManifestPath = path
	}

	deleted, err := s.Client.Delete(ctx, expendable)
	rep.Deleted = deleted
	if err != nil {
		return fmt.Errorf("delete backups: %w", err)
	}
	rep.BytesFreed = rep.ExpendableBytes

	slog.Info("sweep complete",
		"target", s.Target,
		"run_id", rep.RunID,
		"deleted", rep.Deleted,
		"bytes_freed", rep.BytesFreed,
		"duration", time.Since(rep.Started).Round(time.Millisecond).String())
	return nil
}

func (s *Sweeper) observe(rep *Report, err error) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case rep.Aborted:
		outcome = "aborted"
	}
	runsTotal.WithLabelValues(s.Target, outcome).Inc()
	backupsScanned.WithLabelValues(s.Target).Add(float64(rep.Scanned))
	backupsDeleted.WithLabelValues(s.Target).Add(float64(rep.Deleted))
	bytesFreed.WithLabelValues(s.Target).Add(float64(rep.BytesFreed))
	runDuration.WithLabelValues(s.Target).Observe(rep.Duration.Seconds())
	if rep.Truncated {
		truncatedListings.WithLabelValues(s.Target).Inc()
	}
}

// record writes the run to the journal. Journal failures are logged and
// swallowed: the deletions already happened and the run must not be
// reported as failed because history could not be written.
func (s *Sweeper) record(ctx context.Context, rep *Report, runErr error) {
	if s.Journal == nil {
		return
	}
	r := &journal.Run{
		ID:           rep.RunID,
		Target:       rep.Target,
		Strategy:     rep.Strategy,
		Started:      rep.Started,
		Duration:     rep.Duration,
		Scanned:      rep.Scanned,
		Kept:         rep.Kept,
		Expendable:   rep.Expendable,
		Deleted:      rep.Deleted,
		BytesFreed:   rep.BytesFreed,
		DryRun:       rep.DryRun,
		Aborted:      rep.Aborted,
		Truncated:    rep.Truncated,
		ManifestPath: rep.ManifestPath,
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	if err := s.Journal.Record(ctx, r); err != nil {
		slog.Error("failed to record run in journal", "target", s.Target, "error", err)
	}
}
