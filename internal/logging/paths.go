package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.cranbench/logs, or a temp directory when the home
// directory cannot be resolved.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".cranbench", "logs")
	}
	return filepath.Join(home, ".cranbench", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "cranbench.log")
}
