package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	historyFile = "history.json"

	// MaxHistory is the number of entries kept in history.json.
	MaxHistory = 50
)

// HistoryEntry records one generation streamed by `quill generate`.
type HistoryEntry struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Prompt    string    `json:"prompt"`
	Server    string    `json:"server"`
	Frames    int       `json:"frames"`
	CreatedAt time.Time `json:"created_at"`
}

// LoadHistory returns the recorded generations, newest first. A missing
// history file is an empty history.
func (m *Manager) LoadHistory(overrideDir string) ([]HistoryEntry, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, historyFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading history: %w", err)
	}

	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing history: %w", err)
	}
	return entries, nil
}

// AppendHistory records entry as the newest generation, trimming the file to
// MaxHistory entries.
func (m *Manager) AppendHistory(entry HistoryEntry, overrideDir string) error {
	dir, err := m.Ensure(overrideDir)
	if err != nil {
		return err
	}

	entries, err := m.LoadHistory(dir)
	if err != nil {
		return err
	}

	entries = append([]HistoryEntry{entry}, entries...)
	if len(entries) > MaxHistory {
		entries = entries[:MaxHistory]
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, historyFile), data, 0o600); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	return nil
}

// ClearHistory removes the history file. It is not an error if there is none.
func (m *Manager) ClearHistory(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return err
	}

	if err := os.Remove(filepath.Join(dir, historyFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing history: %w", err)
	}
	return nil
}
