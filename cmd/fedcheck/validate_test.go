package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTargetsCSV writes a minimal target list and returns its path.
func writeTargetsCSV(t *testing.T, rows string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "targets.csv")
	content := "url,entity_id,federation\n" + rows
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// execRoot runs the root command with args and returns combined output.
func execRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// TestValidateCmdArgs tests argument and flag validation.
func TestValidateCmdArgs(t *testing.T) {
	t.Parallel()

	t.Run("requires targets file argument", func(t *testing.T) {
		t.Parallel()

		if _, err := execRoot(t, "validate"); err == nil {
			t.Error("validate without arguments succeeded, want error")
		}
	})

	t.Run("rejects conflicting output formats", func(t *testing.T) {
		t.Parallel()

		_, err := execRoot(t, "validate", "targets.csv", "--json", "--markdown")
		if err == nil || !strings.Contains(err.Error(), "conflicting output formats") {
			t.Errorf("error = %v, want conflicting output formats", err)
		}
	})

	t.Run("rejects zero concurrency", func(t *testing.T) {
		t.Parallel()

		_, err := execRoot(t, "validate", "targets.csv", "--concurrency", "0")
		if err == nil || !strings.Contains(err.Error(), "concurrency") {
			t.Errorf("error = %v, want invalid concurrency", err)
		}
	})

	t.Run("explicit config file must exist", func(t *testing.T) {
		t.Parallel()

		missing := filepath.Join(t.TempDir(), "nope.yaml")
		_, err := execRoot(t, "validate", "targets.csv", "--config", missing)
		if err == nil || !strings.Contains(err.Error(), "configuration file not found") {
			t.Errorf("error = %v, want configuration file not found", err)
		}
	})

	t.Run("missing targets file", func(t *testing.T) {
		t.Parallel()

		missing := filepath.Join(t.TempDir(), "nope.csv")
		cacheFile := filepath.Join(t.TempDir(), "cache.json")
		_, err := execRoot(t, "validate", missing, "--cache-file", cacheFile, "--no-history")
		if err == nil || !strings.Contains(err.Error(), "failed to load targets") {
			t.Errorf("error = %v, want failed to load targets", err)
		}
	})

	t.Run("empty target list", func(t *testing.T) {
		t.Parallel()

		path := writeTargetsCSV(t, "")
		cacheFile := filepath.Join(t.TempDir(), "cache.json")
		_, err := execRoot(t, "validate", path, "--cache-file", cacheFile, "--no-history")
		if err == nil || !strings.Contains(err.Error(), "target list is empty") {
			t.Errorf("error = %v, want target list is empty", err)
		}
	})
}

// TestValidateCmdConfigFileOverlay tests that the config file applies under
// flags: explicit flags win, file values beat defaults.
func TestValidateCmdConfigFileOverlay(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "fedcheck.yaml")
	if err := os.WriteFile(configPath, []byte("concurrency: 0\n"), 0600); err != nil {
		t.Fatal(err)
	}

	// File value is invalid (zero concurrency is not applied by overlay,
	// the default survives), so validation passes and fails later on the
	// missing targets file instead.
	missing := filepath.Join(dir, "nope.csv")
	_, err := execRoot(t, "validate", missing, "--config", configPath,
		"--cache-file", filepath.Join(dir, "cache.json"), "--no-history")
	if err == nil || !strings.Contains(err.Error(), "failed to load targets") {
		t.Errorf("error = %v, want failed to load targets", err)
	}

	// An explicit flag past the file value must be honored.
	if err := os.WriteFile(configPath, []byte("concurrency: 7\n"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err = execRoot(t, "validate", missing, "--config", configPath, "--concurrency", "0")
	if err == nil || !strings.Contains(err.Error(), "concurrency") {
		t.Errorf("error = %v, want invalid concurrency from explicit flag", err)
	}
}
