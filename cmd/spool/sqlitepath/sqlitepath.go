// Package sqlitepath locates the SQLite tape database used by the CLI.
package sqlitepath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/spool/pkg/dotdir"
)

// FileName is the database file created inside the .spool/ directory.
const FileName = "spool.db"

// ResolveSQLitePath finds an existing tape database for read-only commands.
func ResolveSQLitePath(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("SPOOL_SQLITE")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.New("could not find spool SQLite database; pass --sqlite")
}

// DefaultPath returns the database path inside the resolved .spool/
// directory. The file itself may not exist yet.
func DefaultPath(configDir string) (string, error) {
	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

func sqliteCandidates() []string {
	candidates := []string{
		filepath.Join(".spool", FileName),
		FileName,
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".spool", FileName))
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append(candidates, filepath.Join(xdgHome, "spool", FileName))
	}

	return candidates
}
