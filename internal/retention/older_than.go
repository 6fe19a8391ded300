package retention

import "time"

// OlderThan expends every backup whose age relative to a fixed
// reference instant exceeds MaxAge. A backup exactly MaxAge old is
// kept, as is anything with a timestamp past the reference.
type OlderThan struct {
	maxAge    time.Duration
	reference time.Time
}

// NewOlderThan returns a strategy that expends backups strictly older
// than maxAge at the reference instant.
func NewOlderThan(maxAge time.Duration, reference time.Time) *OlderThan {
	return &OlderThan{maxAge: maxAge, reference: reference}
}

func (o *OlderThan) Name() string { return "older-than" }

// Partition is a stable split: both outputs preserve the input's
// relative order. It never sorts.
func (o *OlderThan) Partition(backups []Backup) (kept, expendable []Backup) {
	for _, b := range backups {
		if o.reference.Sub(b.Timestamp) > o.maxAge {
			expendable = append(expendable, b)
		} else {
			kept = append(kept, b)
		}
	}
	return kept, expendable
}
