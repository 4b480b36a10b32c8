// Package audit keeps an append-only JSON Lines log of catalog changes.
package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/aidanlsb/sramp/internal/model"
)

// FileName is the log written next to the catalog database.
const FileName = "audit.log"

// Operations recorded in the log.
const (
	OpIngest = "ingest"
	OpDelete = "delete"
	OpRemove = "remove"
)

// Entry is one logged change.
type Entry struct {
	Timestamp time.Time      `json:"ts"`
	Operation string         `json:"op"`
	UUID      string         `json:"uuid,omitempty"`
	Name      string         `json:"name,omitempty"`
	Model     string         `json:"model,omitempty"`
	Type      string         `json:"type,omitempty"`
	Path      string         `json:"path,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// Logger appends entries to the audit log. A disabled logger does nothing.
type Logger struct {
	path    string
	enabled bool
	mu      sync.Mutex
	now     func() time.Time
}

// New returns a logger for the database at dbPath.
func New(dbPath string, enabled bool) *Logger {
	return &Logger{
		path:    filepath.Join(filepath.Dir(dbPath), FileName),
		enabled: enabled,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Enabled reports whether entries are written.
func (l *Logger) Enabled() bool { return l.enabled }

// Path returns the log file location.
func (l *Logger) Path() string { return l.path }

// Log appends entry, stamping it when it has no timestamp.
func (l *Logger) Log(entry Entry) error {
	if !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "failed to marshal audit entry")
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create audit directory")
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to open audit log")
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return errors.Wrap(err, "failed to write audit entry")
	}
	return nil
}

// LogIngest records an ingested primary and how much it produced.
func (l *Logger) LogIngest(primary *model.Artifact, path string, derived int) error {
	return l.Log(Entry{
		Operation: OpIngest,
		UUID:      primary.UUID,
		Name:      primary.Name,
		Model:     primary.Model,
		Type:      primary.Type,
		Path:      path,
		Extra:     map[string]any{"derived": derived},
	})
}

// LogDelete records a deleted artifact.
func (l *Logger) LogDelete(uuid string) error {
	return l.Log(Entry{Operation: OpDelete, UUID: uuid})
}

// LogRemove records the artifacts dropped because their file went away.
func (l *Logger) LogRemove(path string, removed int) error {
	return l.Log(Entry{
		Operation: OpRemove,
		Path:      path,
		Extra:     map[string]any{"removed": removed},
	})
}

// Read returns every entry in the log. Malformed lines are skipped.
func (l *Logger) Read() ([]Entry, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read audit log")
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read audit log")
	}
	return entries, nil
}

// ReadSince returns the entries at or after since.
func (l *Logger) ReadSince(since time.Time) ([]Entry, error) {
	all, err := l.Read()
	if err != nil {
		return nil, err
	}
	var filtered []Entry
	for _, e := range all {
		if !e.Timestamp.Before(since) {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// ReadForArtifact returns the entries that name uuid.
func (l *Logger) ReadForArtifact(uuid string) ([]Entry, error) {
	all, err := l.Read()
	if err != nil {
		return nil, err
	}
	var filtered []Entry
	for _, e := range all {
		if e.UUID == uuid {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}
