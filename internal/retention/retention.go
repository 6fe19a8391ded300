// Package retention decides which backups are worth keeping and which
// are expendable. Strategies are pure: they never touch storage, never
// read the clock, and look at nothing but timestamps.
package retention

import "time"

// Backup describes one remote backup object.
type Backup struct {
	ID        string    // storage identity (object key); used for deletion
	DisplayID string    // human-readable label for output and manifests
	Timestamp time.Time // creation instant, UTC
	Size      int64     // object size in bytes; informational only
}

// Strategy partitions a collection of backups into a kept set and an
// expendable set.
type Strategy interface {
	// Partition splits backups into kept and expendable. Together the
	// two results contain exactly the input records, nothing more and
	// nothing less; each strategy documents the order they come back
	// in. The input slice may be reordered in place.
	Partition(backups []Backup) (kept, expendable []Backup)

	// Name returns a short identifier for logs and the run journal.
	Name() string
}
