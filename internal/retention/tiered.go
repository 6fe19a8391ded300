package retention

import (
	"fmt"
	"time"
)

// AgeTiered keeps every backup inside a short window, thins the middle
// tier down to one backup per month, and expends everything beyond the
// monthly window. It is the policy the CLI runs by default.
type AgeTiered struct {
	horizon *OlderThan       // everything past this window is expendable
	recent  *OlderThan       // everything inside this window is kept
	monthly *KeepOnePerMonth // applied to the tier between the two windows
}

// NewAgeTiered builds the tiered policy anchored at reference.
// keepAllWithin must not exceed onePerMonthWithin; equal windows are
// allowed (the monthly tier is then empty).
func NewAgeTiered(reference time.Time, keepAllWithin, onePerMonthWithin, tolerance time.Duration) (*AgeTiered, error) {
	if keepAllWithin > onePerMonthWithin {
		return nil, fmt.Errorf("keep-all window (%s) exceeds one-per-month window (%s)", keepAllWithin, onePerMonthWithin)
	}
	return &AgeTiered{
		horizon: NewOlderThan(onePerMonthWithin, reference),
		recent:  NewOlderThan(keepAllWithin, reference),
		monthly: NewKeepOnePerMonth(tolerance),
	}, nil
}

func (a *AgeTiered) Name() string { return "age-tiered" }

// Partition runs three passes: drop everything past the monthly
// window, keep everything inside the recent window, and thin what is
// left to one backup per month. Expendable comes back as the very-old
// backups in input order followed by the monthly rejects in ascending
// order; kept is the recent backups in input order followed by the
// monthly survivors in ascending order.
func (a *AgeTiered) Partition(backups []Backup) (kept, expendable []Backup) {
	within, veryOld := a.horizon.Partition(backups)
	fresh, middle := a.recent.Partition(within)
	monthly, thinned := a.monthly.Partition(middle)

	expendable = append(veryOld, thinned...)
	kept = append(fresh, monthly...)
	return kept, expendable
}
