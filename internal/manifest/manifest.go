// Package manifest persists the set of backups a sweep is about to
// delete. The manifest is written before the first deletion call goes
// out, so a run that dies midway leaves a record of what it was
// removing.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/hatemosphere/backup-janitor/internal/retention"
)

// Entry is one backup slated for deletion.
type Entry struct {
	ID        string    `json:"id"`
	DisplayID string    `json:"displayId"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`
}

// File is the decoded content of one manifest.
type File struct {
	RunID     string    `json:"runId"`
	Target    string    `json:"target"`
	CreatedAt time.Time `json:"createdAt"`
	Backups   []Entry   `json:"backups"`
}

// Writer writes gzipped JSON manifests into a directory.
type Writer struct {
	dir string
}

// NewWriter creates the manifest directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create manifest dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Write stores the expendable set for a run and returns the manifest path.
func (w *Writer) Write(runID, target string, backups []retention.Backup) (string, error) {
	entries := make([]Entry, len(backups))
	for i, b := range backups {
		entries[i] = Entry{ID: b.ID, DisplayID: b.DisplayID, Timestamp: b.Timestamp, Size: b.Size}
	}
	mf := File{
		RunID:     runID,
		Target:    target,
		CreatedAt: time.Now().UTC(),
		Backups:   entries,
	}

	path := filepath.Join(w.dir, "manifest-"+runID+".json.gz")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create manifest: %w", err)
	}

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(&mf); err != nil {
		f.Close()
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return "", fmt.Errorf("close gzip: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close manifest: %w", err)
	}
	return path, nil
}

// Read loads a manifest written by Write.
func Read(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()

	var mf File
	if err := json.NewDecoder(gz).Decode(&mf); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &mf, nil
}
