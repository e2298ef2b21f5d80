package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nugget/tao-agent/internal/defaults"
)

// runInit initializes a tao working directory with a config file, the
// sample office dataset and a document for the search index. Existing
// files are never overwritten.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing tao workspace in %s\n", dir)

	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dataDir, err)
	}

	files := []struct {
		path    string
		content []byte
		perm    os.FileMode
	}{
		// The config may carry ${VAR} references to secrets.
		{filepath.Join(dir, "config.yaml"), defaults.ConfigYAML, 0o600},
		{filepath.Join(dataDir, "offices.csv"), defaults.OfficesCSV, 0o644},
		{filepath.Join(dataDir, "offices.md"), defaults.OfficesMD, 0o644},
	}
	for _, f := range files {
		created, err := writeIfMissing(f.path, f.content, f.perm)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(w, "  ✓ %s\n", f.path)
		} else {
			fmt.Fprintf(w, "  - %s (exists, skipping)\n", f.path)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Edit config.yaml to point at your Ollama server, then run: tao index")
	return nil
}

// writeIfMissing writes content to path only if the file does not already
// exist and reports whether it did.
func writeIfMissing(path string, content []byte, perm os.FileMode) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.WriteFile(path, content, perm); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
