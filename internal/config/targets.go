package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy is a retention policy in whole days, as written in flags and
// the targets file.
type Policy struct {
	Strategy                 string `yaml:"strategy"` // age-tiered (default), older-than, one-per-month
	KeepAllWithinDays        int    `yaml:"keepAllWithinDays"`
	OnePerMonthWithinDays    int    `yaml:"onePerMonthWithinDays"`
	OnePerMonthToleranceDays int    `yaml:"onePerMonthToleranceDays"`
	OlderThanDays            int    `yaml:"olderThanDays"`
}

// Validate checks the policy for the strategy it names. The age-tiered
// window ordering is rejected here so a bad file fails at startup, not
// on the first scheduled cycle.
func (p *Policy) Validate() error {
	switch p.Strategy {
	case "age-tiered":
		if p.KeepAllWithinDays <= 0 {
			return errors.New("age-tiered needs a positive keep-all window")
		}
		if p.OnePerMonthWithinDays <= 0 {
			return errors.New("age-tiered needs a positive one-per-month window")
		}
		if p.OnePerMonthToleranceDays < 0 {
			return errors.New("tolerance cannot be negative")
		}
		if p.KeepAllWithinDays > p.OnePerMonthWithinDays {
			return fmt.Errorf("keep-all window (%dd) exceeds one-per-month window (%dd)",
				p.KeepAllWithinDays, p.OnePerMonthWithinDays)
		}
	case "older-than":
		if p.OlderThanDays <= 0 {
			return errors.New("older-than needs a positive age")
		}
	case "one-per-month":
		if p.OnePerMonthToleranceDays < 0 {
			return errors.New("tolerance cannot be negative")
		}
	default:
		return fmt.Errorf("unknown strategy %q", p.Strategy)
	}
	return nil
}

// Target is one bucket (or bucket prefix) to sweep.
type Target struct {
	Name           string  `yaml:"name"`
	Backend        string  `yaml:"backend"` // "s3" (default) or "gcs"
	Bucket         string  `yaml:"bucket"`
	Prefix         string  `yaml:"prefix"`
	Region         string  `yaml:"region"`
	Endpoint       string  `yaml:"endpoint"`
	ForcePathStyle bool    `yaml:"forcePathStyle"`
	MaxKeys        int     `yaml:"maxKeys"`
	Policy         *Policy `yaml:"policy"` // overrides the file defaults field by field
}

// EffectivePolicy merges the target's policy over the file defaults.
// Zero values inherit, so a per-target toleranceDays of 0 means "use
// the default", not "no tolerance".
func (t *Target) EffectivePolicy(defaults Policy) Policy {
	p := defaults
	if t.Policy == nil {
		return p
	}
	if t.Policy.Strategy != "" {
		p.Strategy = t.Policy.Strategy
	}
	if t.Policy.KeepAllWithinDays > 0 {
		p.KeepAllWithinDays = t.Policy.KeepAllWithinDays
	}
	if t.Policy.OnePerMonthWithinDays > 0 {
		p.OnePerMonthWithinDays = t.Policy.OnePerMonthWithinDays
	}
	if t.Policy.OnePerMonthToleranceDays > 0 {
		p.OnePerMonthToleranceDays = t.Policy.OnePerMonthToleranceDays
	}
	if t.Policy.OlderThanDays > 0 {
		p.OlderThanDays = t.Policy.OlderThanDays
	}
	return p
}

// TargetsFile is the multi-target YAML configuration.
type TargetsFile struct {
	Defaults Policy   `yaml:"defaults"`
	Targets  []Target `yaml:"targets"`
}

// LoadTargets reads and validates a targets file. Backends default to
// "s3" and are normalized in place.
func LoadTargets(path string) (*TargetsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}
	var f TargetsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse targets file: %w", err)
	}

	if f.Defaults.Strategy == "" {
		f.Defaults.Strategy = "age-tiered"
	}
	if f.Defaults.OnePerMonthToleranceDays == 0 {
		f.Defaults.OnePerMonthToleranceDays = 15
	}

	if len(f.Targets) == 0 {
		return nil, errors.New("targets file names no targets")
	}
	seen := make(map[string]bool, len(f.Targets))
	for i := range f.Targets {
		t := &f.Targets[i]
		if t.Name == "" {
			return nil, fmt.Errorf("target %d has no name", i)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("duplicate target name %q", t.Name)
		}
		seen[t.Name] = true

		if t.Bucket == "" {
			return nil, fmt.Errorf("target %q: bucket is required", t.Name)
		}
		switch t.Backend {
		case "":
			t.Backend = "s3"
		case "s3", "gcs":
		default:
			return nil, fmt.Errorf("target %q: unknown backend %q", t.Name, t.Backend)
		}

		p := t.EffectivePolicy(f.Defaults)
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("target %q: %w", t.Name, err)
		}
	}
	return &f, nil
}
