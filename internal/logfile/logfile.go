// Package logfile manages the smoke-test log artifact: a plain-text file of
// pretty-printed JSON records separated by blank lines.
package logfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/motion-backend/motion-smoke/internal/jsonfmt"
)

// DefaultPath is the artifact location relative to the working directory.
const DefaultPath = "motion-backend-smoketest.log"

// Artifact is an append-only log file. It holds no open handle between calls.
type Artifact struct {
	path    string
	records int
}

// New returns an Artifact for path. Nothing is touched on disk until Reset
// or Append is called.
func New(path string) *Artifact {
	if path == "" {
		path = DefaultPath
	}
	return &Artifact{path: path}
}

// Path returns the path the artifact was configured with.
func (a *Artifact) Path() string {
	return a.path
}

// AbsPath resolves the artifact path against the working directory.
func (a *Artifact) AbsPath() string {
	abs, err := filepath.Abs(a.path)
	if err != nil {
		return a.path
	}
	return abs
}

// Records returns the number of records appended since the last Reset.
func (a *Artifact) Records() int {
	return a.records
}

// Reset truncates the file, creating it and any missing parent directories.
func (a *Artifact) Reset() error {
	if dir := filepath.Dir(a.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating log dir: %w", err)
		}
	}
	if err := os.WriteFile(a.path, nil, 0o644); err != nil {
		return fmt.Errorf("truncating log %s: %w", a.path, err)
	}
	a.records = 0
	return nil
}

// Append writes doc as a pretty JSON record followed by a blank line.
// The file is opened and closed within the call.
func (a *Artifact) Append(doc []byte) (err error) {
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log %s: %w", a.path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing log %s: %w", a.path, cerr)
		}
	}()

	record := append(jsonfmt.Pretty(doc), '\n', '\n')
	if _, err := f.Write(record); err != nil {
		return fmt.Errorf("writing log %s: %w", a.path, err)
	}
	a.records++
	return nil
}
