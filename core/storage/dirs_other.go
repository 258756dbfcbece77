//go:build !linux && !windows

package storage

import (
	"os"
	"path/filepath"
)

func platformConfigDefault() string {
	return filepath.Join(userHome(), "Library", "Application Support", appName)
}

func platformDataDefault() string {
	return filepath.Join(userHome(), "Library", "Application Support", appName, "data")
}

func platformStateDefault() string {
	return filepath.Join(userHome(), "Library", "Logs", appName)
}

func userHome() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.TempDir()
}
