package retention

import (
	"sort"
	"strings"
	"time"
)

const day = 24 * time.Hour

// Helper to build a backup whose display id doubles as the object key.
func bk(id, ts string) Backup {
	parsed, err := time.Parse("2006-01-02 15:04:05", ts)
	if err != nil {
		panic(err)
	}
	return Backup{ID: id, DisplayID: id, Timestamp: parsed.UTC()}
}

// Helper to join display ids, for asserting contents and order at once.
func ids(backups []Backup) string {
	var sb strings.Builder
	for _, b := range backups {
		sb.WriteString(b.DisplayID)
	}
	return sb.String()
}

// Helper to join display ids ignoring order.
func sortedIDs(backups []Backup) string {
	out := make([]string, len(backups))
	for i, b := range backups {
		out[i] = b.DisplayID
	}
	sort.Strings(out)
	return strings.Join(out, "")
}
