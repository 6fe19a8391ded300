package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hatemosphere/backup-janitor/internal/config"
	"github.com/hatemosphere/backup-janitor/internal/journal"
	"github.com/hatemosphere/backup-janitor/internal/manifest"
	"github.com/hatemosphere/backup-janitor/internal/retention"
	"github.com/hatemosphere/backup-janitor/internal/storage"
	"github.com/hatemosphere/backup-janitor/internal/sweep"
)

func main() {
	cfg := config.Parse()

	// Configure logging format.
	var logHandler slog.Handler
	if cfg.LogFormat == "json" {
		logHandler = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(logHandler))

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// Open the run journal when configured.
	var j *journal.Journal
	if cfg.JournalPath != "" {
		var err error
		j, err = journal.Open(cfg.JournalPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open journal: %v\n", err)
			os.Exit(1)
		}
	}

	// History mode: print recent runs and exit.
	if cfg.History > 0 {
		if err := printHistory(j, cfg.History); err != nil {
			fmt.Fprintf(os.Stderr, "failed to read history: %v\n", err)
			os.Exit(1)
		}
		j.Close()
		return
	}

	var manifests *manifest.Writer
	if cfg.ManifestDir != "" {
		var err error
		manifests, err = manifest.NewWriter(cfg.ManifestDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to prepare manifest dir: %v\n", err)
			os.Exit(1)
		}
	}

	daemon := cfg.Schedule != ""

	sweepers, err := buildSweepers(cfg, j, manifests, daemon)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	exitCode := 0
	if daemon {
		runDaemon(cfg, sweepers)
	} else {
		exitCode = runOnce(cfg, sweepers)
	}

	if j != nil {
		j.Close()
	}
	os.Exit(exitCode)
}

// buildSweepers assembles one sweeper per configured target, either from
// the targets file or from the single-bucket flags.
func buildSweepers(cfg *config.Config, j *journal.Journal, manifests *manifest.Writer, daemon bool) ([]*sweep.Sweeper, error) {
	var targets []config.Target
	var defaults config.Policy
	if cfg.TargetsPath != "" {
		f, err := config.LoadTargets(cfg.TargetsPath)
		if err != nil {
			return nil, err
		}
		targets = f.Targets
		defaults = f.Defaults
	} else {
		targets = []config.Target{cfg.FlagTarget()}
		defaults = cfg.Policy
	}

	ctx := context.Background()
	sweepers := make([]*sweep.Sweeper, 0, len(targets))
	for _, t := range targets {
		client, err := newClient(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", t.Name, err)
		}
		strategy, err := buildStrategyFunc(cfg, t.EffectivePolicy(defaults), daemon)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", t.Name, err)
		}
		sweepers = append(sweepers, &sweep.Sweeper{
			Client:    client,
			Strategy:  strategy,
			Target:    t.Name,
			DryRun:    cfg.DryRun,
			Journal:   j,
			Manifests: manifests,
		})
	}
	return sweepers, nil
}

// newClient builds the storage client for a target.
func newClient(ctx context.Context, t config.Target) (storage.Client, error) {
	switch t.Backend {
	case "gcs":
		return storage.NewGCSClient(ctx, storage.GCSConfig{
			Bucket:     t.Bucket,
			Prefix:     t.Prefix,
			Endpoint:   t.Endpoint,
			MaxResults: int64(t.MaxKeys),
		})
	default: // "s3"
		return storage.NewS3Client(ctx, storage.S3Config{
			Bucket:         t.Bucket,
			Prefix:         t.Prefix,
			Region:         t.Region,
			Endpoint:       t.Endpoint,
			ForcePathStyle: t.ForcePathStyle,
			MaxKeys:        int32(t.MaxKeys),
		})
	}
}

const day = 24 * time.Hour

// buildStrategyFunc resolves the reference-time handling: a pinned
// -reference-time in once mode, the run's own start otherwise.
func buildStrategyFunc(cfg *config.Config, p config.Policy, daemon bool) (sweep.StrategyFunc, error) {
	if !daemon && cfg.ReferenceTime != "" {
		ref, err := time.Parse(time.RFC3339, cfg.ReferenceTime)
		if err != nil {
			return nil, fmt.Errorf("parse -reference-time: %w", err)
		}
		ref = ref.UTC()
		return func(time.Time) (retention.Strategy, error) {
			return buildStrategy(p, ref)
		}, nil
	}
	return func(now time.Time) (retention.Strategy, error) {
		return buildStrategy(p, now)
	}, nil
}

// buildStrategy constructs the retention strategy for a policy at the
// given reference instant.
func buildStrategy(p config.Policy, ref time.Time) (retention.Strategy, error) {
	switch p.Strategy {
	case "age-tiered":
		return retention.NewAgeTiered(ref,
			time.Duration(p.KeepAllWithinDays)*day,
			time.Duration(p.OnePerMonthWithinDays)*day,
			time.Duration(p.OnePerMonthToleranceDays)*day)
	case "older-than":
		return retention.NewOlderThan(time.Duration(p.OlderThanDays)*day, ref), nil
	case "one-per-month":
		return retention.NewKeepOnePerMonth(time.Duration(p.OnePerMonthToleranceDays) * day), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", p.Strategy)
	}
}

// runOnce sweeps every target sequentially and reports on stdout.
// Returns the process exit code.
func runOnce(cfg *config.Config, sweepers []*sweep.Sweeper) int {
	interactive := !cfg.Yes && !cfg.DryRun
	ctx := context.Background()

	exitCode := 0
	for _, sw := range sweepers {
		if len(sweepers) > 1 {
			fmt.Printf("== %s ==\n", sw.Target)
		}
		if interactive {
			sw.Confirm = stdinConfirm
		}

		rep, err := sw.Run(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sweep %s failed: %v\n", sw.Target, err)
			exitCode = 1
			continue
		}

		// The confirm hook already reported the listing when it ran.
		if !interactive || rep.Expendable == 0 {
			printFound(rep)
		}
		switch {
		case rep.Expendable == 0:
			fmt.Println("No expendable backups found.")
		case rep.DryRun:
			fmt.Printf("Would delete %d of %d backups (%s).\n",
				rep.Expendable, rep.Scanned, humanize.IBytes(uint64(rep.ExpendableBytes)))
		case rep.Aborted:
			fmt.Println("Aborted, no backups were deleted.")
		default:
			fmt.Printf("Deleted %d backups (freed %s).\n", rep.Deleted, humanize.IBytes(uint64(rep.BytesFreed)))
		}
	}
	return exitCode
}

// printFound reports the listing result, with a warning when the
// backend capped it.
func printFound(rep *sweep.Report) {
	fmt.Printf("Found %d backups.\n", rep.Scanned)
	if rep.Truncated {
		fmt.Printf("The listing was capped at %d objects. Run again afterwards to sweep the rest.\n", rep.Scanned)
	}
}

var stdin = bufio.NewReader(os.Stdin)

// stdinConfirm shows the operator what the run is about to remove and
// reads the answer from stdin. Only "y" or "yes" proceeds.
func stdinConfirm(rep *sweep.Report) bool {
	printFound(rep)
	fmt.Printf("This will delete %d of %d backups (%s). Do you want to proceed? (y) ",
		rep.Expendable, rep.Scanned, humanize.IBytes(uint64(rep.ExpendableBytes)))

	line, err := stdin.ReadString('\n')
	if err != nil {
		fmt.Println()
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	if answer != "y" && answer != "yes" {
		return false
	}
	fmt.Println("Removing expendable backups...")
	return true
}

// runDaemon keeps sweeping on the cron schedule until SIGINT/SIGTERM.
func runDaemon(cfg *config.Config, sweepers []*sweep.Sweeper) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := sweep.NewScheduler(sweepers, cfg.Schedule, cfg.SweepConcurrency)
	if err := sched.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start scheduler: %v\n", err)
		os.Exit(1)
	}
	if next, ok := sched.NextRun(); ok {
		slog.Info("next sweep scheduled", "at", next.Format(time.RFC3339))
	}

	// Management listener for health probes and metrics.
	var mgmtServer *http.Server
	if cfg.MetricsAddr != "" {
		mgmtMux := http.NewServeMux()
		mgmtMux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})
		mgmtMux.Handle("GET /metrics", sweep.MetricsHandler())

		mgmtServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mgmtMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("management server starting", "addr", cfg.MetricsAddr)
			if err := mgmtServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("management server error", "error", err)
			}
		}()
	}

	// Graceful shutdown on SIGINT/SIGTERM. The running cycle is drained
	// before the context is torn down.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig.String())

	sched.Stop()
	cancel()

	if mgmtServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := mgmtServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("management server shutdown error", "error", err)
		}
	}
	slog.Info("shutdown complete")
}

// printHistory renders the most recent journal runs as a table.
func printHistory(j *journal.Journal, limit int) error {
	runs, err := j.Recent(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tTARGET\tSTRATEGY\tSCANNED\tDELETED\tFREED\tNOTES")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.Started.Format(time.RFC3339),
			r.Target,
			r.Strategy,
			r.Scanned,
			r.Deleted,
			humanize.IBytes(uint64(r.BytesFreed)),
			runNotes(r))
	}
	return w.Flush()
}

// runNotes condenses a run's flags and error into one table cell.
func runNotes(r journal.Run) string {
	var notes []string
	if r.DryRun {
		notes = append(notes, "dry-run")
	}
	if r.Aborted {
		notes = append(notes, "aborted")
	}
	if r.Truncated {
		notes = append(notes, "truncated")
	}
	if r.Error != "" {
		notes = append(notes, "error: "+r.Error)
	}
	return strings.Join(notes, ", ")
}
