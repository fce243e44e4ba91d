// Package sqlitepath picks the SQLite database used by `quill serve` when
// storage.driver is sqlite and no storage.sqlite_path is configured.
package sqlitepath

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/quill/pkg/dotdir"
)

// DefaultName is the database file created inside the .quill/ directory.
const DefaultName = "quill.db"

// ResolveSQLitePath returns override when set, then the first existing
// candidate database, and otherwise a new quill.db in the .quill/ directory
// resolved from configDir.
func ResolveSQLitePath(override, configDir string) (string, error) {
	if override != "" {
		return override, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	dir, err := dotdir.NewManager().Ensure(configDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultName), nil
}

func sqliteCandidates() []string {
	candidates := []string{
		DefaultName,
		filepath.Join(dotdir.DirName, DefaultName),
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, dotdir.DirName, DefaultName))
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append([]string{filepath.Join(xdgHome, "quill", DefaultName)}, candidates...)
	}

	return candidates
}
