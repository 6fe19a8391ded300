// Package config holds the janitor's command-line and environment
// configuration, plus the multi-target YAML file used in daemon mode.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all janitor configuration.
type Config struct {
	// Single-target selection. Ignored when TargetsPath is set.
	Backend        string // "s3" (default) or "gcs"
	Bucket         string
	Prefix         string
	Region         string
	Endpoint       string // custom endpoint for MinIO, R2, emulators
	ForcePathStyle bool
	MaxKeys        int

	// Retention policy for the single target.
	Policy Policy

	// ReferenceTime pins the partition reference instant (RFC3339).
	// Empty means the run's start time. Once mode only.
	ReferenceTime string

	// Run behavior.
	Yes    bool // skip the interactive confirmation
	DryRun bool

	// Daemon mode.
	Schedule         string // cron expression; empty = run once and exit
	TargetsPath      string // YAML file with multiple targets
	MetricsAddr      string // management listener; empty = disabled
	SweepConcurrency int

	// Local state.
	JournalPath string // SQLite run history; empty = disabled
	ManifestDir string // deletion manifests; empty = disabled
	History     int    // print the last N journal runs and exit

	// Logging.
	LogFormat string // "text" (default) or "json"
}

func Parse() *Config {
	c := &Config{}
	flag.StringVar(&c.Backend, "backend", "s3", "storage backend: s3 or gcs")
	flag.StringVar(&c.Bucket, "bucket", "", "bucket holding the backups")
	flag.StringVar(&c.Prefix, "prefix", "", "object key prefix (directory) holding the backups")
	flag.StringVar(&c.Region, "region", "", "S3 region (default us-east-1)")
	flag.StringVar(&c.Endpoint, "endpoint", "", "custom storage endpoint (MinIO, R2, emulators)")
	flag.BoolVar(&c.ForcePathStyle, "s3-force-path-style", false, "use path-style S3 addressing (required by MinIO)")
	flag.IntVar(&c.MaxKeys, "max-keys", 1000, "max objects listed per run")

	// Policy flags.
	flag.StringVar(&c.Policy.Strategy, "strategy", "age-tiered", "retention strategy: age-tiered, older-than, or one-per-month")
	flag.IntVar(&c.Policy.KeepAllWithinDays, "keep-all-within", 0, "keep every backup newer than this many days (age-tiered)")
	flag.IntVar(&c.Policy.OnePerMonthWithinDays, "one-per-month-within", 0, "thin backups to one per month up to this age in days (age-tiered)")
	flag.IntVar(&c.Policy.OnePerMonthToleranceDays, "one-per-month-tolerance", 15, "days around the month boundary a backup may sit and still represent it")
	flag.IntVar(&c.Policy.OlderThanDays, "older-than", 0, "expend backups older than this many days (older-than strategy)")
	flag.StringVar(&c.ReferenceTime, "reference-time", "", "RFC3339 instant ages are measured against (default: run start, once mode only)")

	// Run flags.
	flag.BoolVar(&c.Yes, "yes", false, "delete without asking for confirmation")
	flag.BoolVar(&c.Yes, "y", false, "shorthand for -yes")
	flag.BoolVar(&c.DryRun, "dry-run", false, "partition and report, delete nothing")

	// Daemon flags.
	flag.StringVar(&c.Schedule, "schedule", "", "cron expression for standing sweeps (empty = run once)")
	flag.StringVar(&c.TargetsPath, "targets", "", "YAML file describing multiple sweep targets")
	flag.StringVar(&c.MetricsAddr, "metrics-addr", "", "management listener address for /metrics and /healthz (daemon mode)")
	flag.IntVar(&c.SweepConcurrency, "sweep-concurrency", 2, "targets swept in parallel per daemon cycle")

	// Local state flags.
	flag.StringVar(&c.JournalPath, "journal-path", "", "SQLite file recording run history (empty = disabled)")
	flag.StringVar(&c.ManifestDir, "manifest-dir", "", "directory for deletion manifests (empty = disabled)")
	flag.IntVar(&c.History, "history", 0, "print the last N journal runs and exit")

	// Logging flags.
	flag.StringVar(&c.LogFormat, "log-format", "text", "log format: text or json")

	flag.Parse()

	// Allow env overrides.
	if v := os.Getenv("BACKUP_JANITOR_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("BACKUP_JANITOR_BUCKET"); v != "" {
		c.Bucket = v
	}
	if v := os.Getenv("BACKUP_JANITOR_PREFIX"); v != "" {
		c.Prefix = v
	}
	if v := os.Getenv("BACKUP_JANITOR_REGION"); v != "" {
		c.Region = v
	}
	if v := os.Getenv("BACKUP_JANITOR_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("BACKUP_JANITOR_S3_FORCE_PATH_STYLE"); v == "true" {
		c.ForcePathStyle = true
	}
	if v := os.Getenv("BACKUP_JANITOR_MAX_KEYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxKeys = n
		}
	}
	if v := os.Getenv("BACKUP_JANITOR_STRATEGY"); v != "" {
		c.Policy.Strategy = v
	}
	if v := os.Getenv("BACKUP_JANITOR_KEEP_ALL_WITHIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Policy.KeepAllWithinDays = n
		}
	}
	if v := os.Getenv("BACKUP_JANITOR_ONE_PER_MONTH_WITHIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Policy.OnePerMonthWithinDays = n
		}
	}
	if v := os.Getenv("BACKUP_JANITOR_ONE_PER_MONTH_TOLERANCE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Policy.OnePerMonthToleranceDays = n
		}
	}
	if v := os.Getenv("BACKUP_JANITOR_OLDER_THAN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Policy.OlderThanDays = n
		}
	}
	if v := os.Getenv("BACKUP_JANITOR_REFERENCE_TIME"); v != "" {
		c.ReferenceTime = v
	}
	if v := os.Getenv("BACKUP_JANITOR_YES"); v == "true" {
		c.Yes = true
	}
	if v := os.Getenv("BACKUP_JANITOR_DRY_RUN"); v == "true" {
		c.DryRun = true
	}
	if v := os.Getenv("BACKUP_JANITOR_SCHEDULE"); v != "" {
		c.Schedule = v
	}
	if v := os.Getenv("BACKUP_JANITOR_TARGETS"); v != "" {
		c.TargetsPath = v
	}
	if v := os.Getenv("BACKUP_JANITOR_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv("BACKUP_JANITOR_SWEEP_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SweepConcurrency = n
		}
	}
	if v := os.Getenv("BACKUP_JANITOR_JOURNAL_PATH"); v != "" {
		c.JournalPath = v
	}
	if v := os.Getenv("BACKUP_JANITOR_MANIFEST_DIR"); v != "" {
		c.ManifestDir = v
	}
	if v := os.Getenv("BACKUP_JANITOR_HISTORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.History = n
		}
	}
	if v := os.Getenv("BACKUP_JANITOR_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}

	return c
}

// Validate checks flag combinations before any client is built.
func (c *Config) Validate() error {
	if c.History > 0 {
		if c.JournalPath == "" {
			return errors.New("-history needs -journal-path")
		}
		return nil
	}

	if c.TargetsPath == "" {
		if c.Bucket == "" {
			return errors.New("either -bucket or -targets is required")
		}
		switch c.Backend {
		case "s3", "gcs":
		default:
			return fmt.Errorf("unknown backend %q", c.Backend)
		}
		if err := c.Policy.Validate(); err != nil {
			return err
		}
	}

	if c.ReferenceTime != "" {
		if c.Schedule != "" {
			return errors.New("-reference-time cannot be combined with -schedule")
		}
		if _, err := time.Parse(time.RFC3339, c.ReferenceTime); err != nil {
			return fmt.Errorf("parse -reference-time: %w", err)
		}
	}

	return nil
}

// FlagTarget assembles the single sweep target described by the flags.
func (c *Config) FlagTarget() Target {
	name := c.Bucket
	if c.Prefix != "" {
		name = c.Bucket + "/" + strings.TrimSuffix(c.Prefix, "/")
	}
	return Target{
		Name:           name,
		Backend:        c.Backend,
		Bucket:         c.Bucket,
		Prefix:         c.Prefix,
		Region:         c.Region,
		Endpoint:       c.Endpoint,
		ForcePathStyle: c.ForcePathStyle,
		MaxKeys:        c.MaxKeys,
		Policy:         &c.Policy,
	}
}
