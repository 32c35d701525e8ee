// Package audit keeps an append-only trail of the mutating and advisory
// operations the server performs, one JSON line per entry in a daily file.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/moderncolours/paintops/internal/api"
)

// Trail is an append-only audit log. Appends fsync before returning so an
// acknowledged entry survives a crash.
type Trail struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	dir    string
	nextID int64
}

// Open creates or opens the trail's daily file in dir.
func Open(dir string) (*Trail, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("audit-%s.log", time.Now().UTC().Format("20060102")))

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	// Resume the entry sequence after a restart.
	existing, err := Replay(path)
	if err != nil {
		file.Close()
		return nil, err
	}
	nextID := int64(1)
	if n := len(existing); n > 0 {
		nextID = existing[n-1].ID + 1
	}

	return &Trail{file: file, path: path, dir: dir, nextID: nextID}, nil
}

// Record appends an entry. The payload is marshaled to JSON; a nil payload
// records an empty object.
func (t *Trail) Record(entityType string, entityID int64, action string, payload any) (*api.AuditEntry, error) {
	body := []byte("{}")
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode audit payload: %w", err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry := api.AuditEntry{
		ID:         t.nextID,
		CreatedAt:  time.Now().UTC(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Payload:    string(body),
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit entry: %w", err)
	}
	if _, err := t.file.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("failed to write audit entry: %w", err)
	}
	if err := t.file.Sync(); err != nil {
		return nil, fmt.Errorf("failed to sync audit file: %w", err)
	}

	t.nextID++
	return &entry, nil
}

// Recent returns up to limit entries from today's file, newest first.
func (t *Trail) Recent(limit int) ([]api.AuditEntry, error) {
	t.mu.Lock()
	path := t.path
	t.mu.Unlock()

	entries, err := Replay(path)
	if err != nil {
		return nil, err
	}

	// Reverse into newest-first order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Close flushes and closes the trail.
func (t *Trail) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.file.Sync(); err != nil {
		return err
	}
	return t.file.Close()
}

// Rotate closes the current file and opens a fresh daily file, returning
// the new trail and the path of the file it replaced.
func Rotate(current *Trail) (*Trail, string, error) {
	current.mu.Lock()
	oldPath := current.path
	dir := current.dir
	current.mu.Unlock()

	if err := current.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close current audit file: %w", err)
	}

	next, err := Open(dir)
	if err != nil {
		return nil, "", err
	}
	return next, oldPath, nil
}

// Replay reads all entries from an audit file. A missing file yields no
// entries; malformed lines are skipped.
func Replay(path string) ([]api.AuditEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var entries []api.AuditEntry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry api.AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}
