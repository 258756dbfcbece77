package storage

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func resetGlobalDirs() {
	globalDirs = nil
	globalDirsOnce = sync.Once{}
}

func TestResolveDirs(t *testing.T) {
	resetGlobalDirs()
	dirs := ResolveDirs()

	if dirs.Config == "" || dirs.Data == "" || dirs.State == "" {
		t.Fatalf("ResolveDirs returned empty directories: %+v", dirs)
	}
	if !strings.Contains(dirs.Config, appName) {
		t.Errorf("Config dir should contain %q: %s", appName, dirs.Config)
	}
}

func TestResolveDirsXDGOverride(t *testing.T) {
	resetGlobalDirs()
	defer resetGlobalDirs()

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	dirs := ResolveDirs()
	expected := filepath.Join(tmpDir, appName)
	if dirs.Config != expected {
		t.Errorf("XDG override failed: got %s, want %s", dirs.Config, expected)
	}
	if got := dirs.ConfigDir("credentials.yaml"); got != filepath.Join(expected, "credentials.yaml") {
		t.Errorf("ConfigDir = %s", got)
	}
}

func TestResolveProjectDirs(t *testing.T) {
	dirs := ResolveProjectDirs("/test/project")

	if dirs.Root != filepath.Join("/test/project", ".architect") {
		t.Errorf("Root: got %s", dirs.Root)
	}
	if dirs.Config != filepath.Join("/test/project", ".architect", "config.yaml") {
		t.Errorf("Config: got %s", dirs.Config)
	}
}

func TestEnsureDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(path, 0); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected a directory")
	}
}
