// Package staging keeps downloaded bulletins on disk while they move from
// staging to processed, or to held when they cannot be parsed.
package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"VisaDecisions/internal/ports"
)

// Dir implements ports.Staging over three directories.
type Dir struct {
	staging   string
	processed string
	held      string
}

var _ ports.Staging = (*Dir)(nil)

// New creates the directories when missing.
func New(stagingDir, processedDir, heldDir string) (*Dir, error) {
	for _, dir := range []string{stagingDir, processedDir, heldDir} {
		if dir == "" {
			return nil, errors.New("staging: directory path is empty")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return &Dir{staging: stagingDir, processed: processedDir, held: heldDir}, nil
}

// Pending lists regular files waiting in the staging directory, sorted by name.
// Hidden files and partial downloads are ignored.
func (d *Dir) Pending() ([]string, error) {
	entries, err := os.ReadDir(d.staging)
	if err != nil {
		return nil, fmt.Errorf("read staging dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (d *Dir) Read(name string) ([]byte, error) {
	path, err := d.path(d.staging, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// Contains reports whether name is staged, processed or held.
func (d *Dir) Contains(name string) bool {
	for _, dir := range []string{d.staging, d.processed, d.held} {
		path, err := d.path(dir, name)
		if err != nil {
			return false
		}
		if _, err := os.Stat(path); err == nil {
			return true
		}
	}
	return false
}

// Save writes r into the staging directory. The file only appears under its
// final name once fully written.
func (d *Dir) Save(name string, r io.Reader) error {
	path, err := d.path(d.staging, name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(d.staging, ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move %s into staging: %w", name, err)
	}
	return nil
}

func (d *Dir) MarkProcessed(name string) error {
	return d.move(name, d.processed)
}

func (d *Dir) Hold(name string) error {
	return d.move(name, d.held)
}

func (d *Dir) move(name, target string) error {
	from, err := d.path(d.staging, name)
	if err != nil {
		return err
	}
	to, err := d.path(target, name)
	if err != nil {
		return err
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("move %s to %s: %w", name, target, err)
	}
	return nil
}

func (d *Dir) path(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("staging: invalid file name %q", name)
	}
	return filepath.Join(dir, name), nil
}
