package retention

import (
	"sort"
	"time"
)

// KeepOnePerMonth keeps at most one backup per calendar month: the one
// nearest the first instant of the month, within a tolerance on either
// side of it. Everything else is expendable.
//
// Partition sorts the input by timestamp, so both outputs come back in
// ascending order. The age-tiered policy relies on that ordering.
type KeepOnePerMonth struct {
	tolerance time.Duration
}

// NewKeepOnePerMonth returns a strategy that keeps the backup closest
// to each month's first instant, within the given tolerance.
func NewKeepOnePerMonth(tolerance time.Duration) *KeepOnePerMonth {
	return &KeepOnePerMonth{tolerance: tolerance}
}

func (k *KeepOnePerMonth) Name() string { return "one-per-month" }

func (k *KeepOnePerMonth) Partition(backups []Backup) (kept, expendable []Backup) {
	if len(backups) == 0 {
		return nil, nil
	}

	sort.SliceStable(backups, func(i, j int) bool {
		return backups[i].Timestamp.Before(backups[j].Timestamp)
	})

	// Scan month anchors from the earliest backup's month through one
	// boundary past the latest. The cursor only moves forward: a backup
	// consumed by one month is never reconsidered by a later one.
	keep := make([]bool, len(backups))
	cursor := 0

	last := monthOf(backups[len(backups)-1].Timestamp).next()
	for m := monthOf(backups[0].Timestamp); !m.after(last); m = m.next() {
		idx, ok := k.candidate(backups, m.start(), cursor)
		if !ok {
			continue
		}
		keep[idx] = true
		cursor = idx + 1
	}

	for i, b := range backups {
		if keep[i] {
			kept = append(kept, b)
		} else {
			expendable = append(expendable, b)
		}
	}
	return kept, expendable
}

// candidate picks the backup to keep for the month starting at anchor,
// scanning the sorted backups from index from. It reports false when no
// backup falls inside [anchor-tolerance, anchor+tolerance].
func (k *KeepOnePerMonth) candidate(backups []Backup, anchor time.Time, from int) (int, bool) {
	lo := anchor.Add(-k.tolerance)
	hi := anchor.Add(k.tolerance)

	// Find the first backup inside the window. Backups before the
	// window are skipped without being consumed.
	cur := -1
	for i := from; i < len(backups); i++ {
		if backups[i].Timestamp.Before(lo) {
			continue
		}
		if backups[i].Timestamp.After(hi) {
			return 0, false
		}
		cur = i
		break
	}
	if cur == -1 {
		return 0, false
	}

	// Later backups replace the candidate only while strictly closer to
	// the anchor; a tie keeps the earlier one.
	for i := cur + 1; i < len(backups); i++ {
		if backups[i].Timestamp.After(hi) {
			break
		}
		if !closer(anchor, backups[i].Timestamp, backups[cur].Timestamp) {
			break
		}
		cur = i
	}
	return cur, true
}
