package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to write a targets file into a temp dir.
func writeTargets(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr string
	}{
		{
			name:   "age-tiered valid",
			policy: Policy{Strategy: "age-tiered", KeepAllWithinDays: 30, OnePerMonthWithinDays: 365, OnePerMonthToleranceDays: 15},
		},
		{
			name:   "age-tiered equal windows",
			policy: Policy{Strategy: "age-tiered", KeepAllWithinDays: 90, OnePerMonthWithinDays: 90},
		},
		{
			name:    "age-tiered missing keep-all window",
			policy:  Policy{Strategy: "age-tiered", OnePerMonthWithinDays: 365},
			wantErr: "positive keep-all window",
		},
		{
			name:    "age-tiered missing one-per-month window",
			policy:  Policy{Strategy: "age-tiered", KeepAllWithinDays: 30},
			wantErr: "positive one-per-month window",
		},
		{
			name:    "age-tiered misordered windows",
			policy:  Policy{Strategy: "age-tiered", KeepAllWithinDays: 365, OnePerMonthWithinDays: 30},
			wantErr: "exceeds one-per-month window",
		},
		{
			name:    "age-tiered negative tolerance",
			policy:  Policy{Strategy: "age-tiered", KeepAllWithinDays: 30, OnePerMonthWithinDays: 365, OnePerMonthToleranceDays: -1},
			wantErr: "tolerance cannot be negative",
		},
		{
			name:   "older-than valid",
			policy: Policy{Strategy: "older-than", OlderThanDays: 30},
		},
		{
			name:    "older-than missing age",
			policy:  Policy{Strategy: "older-than"},
			wantErr: "positive age",
		},
		{
			name:   "one-per-month valid",
			policy: Policy{Strategy: "one-per-month", OnePerMonthToleranceDays: 15},
		},
		{
			name:    "unknown strategy",
			policy:  Policy{Strategy: "keep-everything"},
			wantErr: `unknown strategy "keep-everything"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestEffectivePolicy(t *testing.T) {
	defaults := Policy{
		Strategy:                 "age-tiered",
		KeepAllWithinDays:        30,
		OnePerMonthWithinDays:    365,
		OnePerMonthToleranceDays: 15,
	}

	t.Run("no override inherits defaults", func(t *testing.T) {
		target := Target{Name: "t", Bucket: "b"}
		assert.Equal(t, defaults, target.EffectivePolicy(defaults))
	})

	t.Run("partial override keeps the rest", func(t *testing.T) {
		target := Target{Name: "t", Bucket: "b", Policy: &Policy{KeepAllWithinDays: 7}}
		got := target.EffectivePolicy(defaults)
		assert.Equal(t, 7, got.KeepAllWithinDays)
		assert.Equal(t, 365, got.OnePerMonthWithinDays)
		assert.Equal(t, 15, got.OnePerMonthToleranceDays)
		assert.Equal(t, "age-tiered", got.Strategy)
	})

	t.Run("strategy override", func(t *testing.T) {
		target := Target{Name: "t", Bucket: "b", Policy: &Policy{Strategy: "older-than", OlderThanDays: 60}}
		got := target.EffectivePolicy(defaults)
		assert.Equal(t, "older-than", got.Strategy)
		assert.Equal(t, 60, got.OlderThanDays)
	})

	t.Run("zero tolerance inherits", func(t *testing.T) {
		target := Target{Name: "t", Bucket: "b", Policy: &Policy{OnePerMonthToleranceDays: 0}}
		got := target.EffectivePolicy(defaults)
		assert.Equal(t, 15, got.OnePerMonthToleranceDays)
	})
}

func TestLoadTargets(t *testing.T) {
	path := writeTargets(t, `
defaults:
  keepAllWithinDays: 30
  onePerMonthWithinDays: 365
targets:
  - name: db-backups
    bucket: acme-db-backups
    prefix: prod/
    region: eu-central-1
  - name: archives
    backend: gcs
    bucket: acme-archives
    policy:
      keepAllWithinDays: 7
      onePerMonthWithinDays: 180
`)

	f, err := LoadTargets(path)
	require.NoError(t, err)
	require.Len(t, f.Targets, 2)

	// Defaults are normalized.
	assert.Equal(t, "age-tiered", f.Defaults.Strategy)
	assert.Equal(t, 15, f.Defaults.OnePerMonthToleranceDays)

	// Backend defaults to s3 in place.
	assert.Equal(t, "s3", f.Targets[0].Backend)
	assert.Equal(t, "gcs", f.Targets[1].Backend)
	assert.Equal(t, "prod/", f.Targets[0].Prefix)
	assert.Equal(t, "eu-central-1", f.Targets[0].Region)

	p := f.Targets[1].EffectivePolicy(f.Defaults)
	assert.Equal(t, 7, p.KeepAllWithinDays)
	assert.Equal(t, 180, p.OnePerMonthWithinDays)
	assert.Equal(t, 15, p.OnePerMonthToleranceDays)
}

func TestLoadTargets_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no targets",
			yaml:    "defaults:\n  keepAllWithinDays: 30\n  onePerMonthWithinDays: 365\n",
			wantErr: "names no targets",
		},
		{
			name: "missing name",
			yaml: `
defaults: {keepAllWithinDays: 30, onePerMonthWithinDays: 365}
targets:
  - bucket: b
`,
			wantErr: "has no name",
		},
		{
			name: "duplicate names",
			yaml: `
defaults: {keepAllWithinDays: 30, onePerMonthWithinDays: 365}
targets:
  - {name: dup, bucket: a}
  - {name: dup, bucket: b}
`,
			wantErr: `duplicate target name "dup"`,
		},
		{
			name: "missing bucket",
			yaml: `
defaults: {keepAllWithinDays: 30, onePerMonthWithinDays: 365}
targets:
  - name: t
`,
			wantErr: "bucket is required",
		},
		{
			name: "unknown backend",
			yaml: `
defaults: {keepAllWithinDays: 30, onePerMonthWithinDays: 365}
targets:
  - {name: t, bucket: b, backend: ftp}
`,
			wantErr: `unknown backend "ftp"`,
		},
		{
			name: "bad effective policy",
			yaml: `
defaults: {keepAllWithinDays: 30, onePerMonthWithinDays: 365}
targets:
  - name: t
    bucket: b
    policy:
      keepAllWithinDays: 400
`,
			wantErr: "exceeds one-per-month window",
		},
		{
			name:    "not yaml",
			yaml:    "{{{",
			wantErr: "parse targets file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTargets(writeTargets(t, tt.yaml))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadTargets_MissingFile(t *testing.T) {
	_, err := LoadTargets(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read targets file")
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Backend: "s3",
			Bucket:  "acme-backups",
			Policy:  Policy{Strategy: "older-than", OlderThanDays: 30},
		}
	}

	t.Run("valid single target", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing bucket", func(t *testing.T) {
		c := valid()
		c.Bucket = ""
		assert.ErrorContains(t, c.Validate(), "either -bucket or -targets")
	})

	t.Run("targets file lifts bucket requirement", func(t *testing.T) {
		c := valid()
		c.Bucket = ""
		c.TargetsPath = "targets.yaml"
		assert.NoError(t, c.Validate())
	})

	t.Run("unknown backend", func(t *testing.T) {
		c := valid()
		c.Backend = "tape"
		assert.ErrorContains(t, c.Validate(), `unknown backend "tape"`)
	})

	t.Run("bad policy", func(t *testing.T) {
		c := valid()
		c.Policy = Policy{Strategy: "age-tiered", KeepAllWithinDays: 90, OnePerMonthWithinDays: 30}
		assert.ErrorContains(t, c.Validate(), "exceeds one-per-month window")
	})

	t.Run("reference time", func(t *testing.T) {
		c := valid()
		c.ReferenceTime = "2026-03-01T00:00:00Z"
		assert.NoError(t, c.Validate())
	})

	t.Run("bad reference time", func(t *testing.T) {
		c := valid()
		c.ReferenceTime = "yesterday"
		assert.ErrorContains(t, c.Validate(), "parse -reference-time")
	})

	t.Run("reference time with schedule", func(t *testing.T) {
		c := valid()
		c.ReferenceTime = "2026-03-01T00:00:00Z"
		c.Schedule = "0 3 * * *"
		assert.ErrorContains(t, c.Validate(), "cannot be combined with -schedule")
	})

	t.Run("history needs journal", func(t *testing.T) {
		c := &Config{History: 5}
		assert.ErrorContains(t, c.Validate(), "-history needs -journal-path")
	})

	t.Run("history mode skips target checks", func(t *testing.T) {
		c := &Config{History: 5, JournalPath: "janitor.db"}
		assert.NoError(t, c.Validate())
	})
}

func TestFlagTarget(t *testing.T) {
	c := &Config{
		Backend:        "s3",
		Bucket:         "acme-backups",
		Prefix:         "prod/",
		Region:         "eu-central-1",
		Endpoint:       "http://minio:9000",
		ForcePathStyle: true,
		MaxKeys:        500,
		Policy:         Policy{Strategy: "older-than", OlderThanDays: 30},
	}

	target := c.FlagTarget()
	assert.Equal(t, "acme-backups/prod", target.Name)
	assert.Equal(t, "s3", target.Backend)
	assert.Equal(t, "acme-backups", target.Bucket)
	assert.Equal(t, "prod/", target.Prefix)
	assert.Equal(t, "eu-central-1", target.Region)
	assert.Equal(t, "http://minio:9000", target.Endpoint)
	assert.True(t, target.ForcePathStyle)
	assert.Equal(t, 500, target.MaxKeys)
	require.NotNil(t, target.Policy)
	assert.Equal(t, 30, target.Policy.OlderThanDays)

	// Without a prefix the bucket alone names the target.
	c.Prefix = ""
	assert.Equal(t, "acme-backups", c.FlagTarget().Name)
}
