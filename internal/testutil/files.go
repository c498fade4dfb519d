package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes content to name inside dir and returns the full path.
// Parent directories are created as needed.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteWorkflow writes a YAML workflow into a fresh temp directory and
// returns its path.
func WriteWorkflow(t testing.TB, yaml string) string {
	t.Helper()
	return WriteFile(t, t.TempDir(), "workflow.yaml", yaml)
}
