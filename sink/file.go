// Package sink implements the append-only output files written by workers.
package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/miladsoleymani/topicsink/core"
)

// Extension is appended to the worker name to form the output file name.
const Extension = ".raw"

// Dir derives output files inside one directory.
type Dir struct {
	path string
	perm os.FileMode
}

// NewDir creates a Dir rooted at path.
func NewDir(path string) Dir {
	return Dir{path: path, perm: 0o644}
}

// PathFor returns the output file path for a worker name.
func (d Dir) PathFor(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: name %q is not a valid file name", core.ErrInvalidConfig, name)
	}
	return filepath.Join(d.path, name+Extension), nil
}

// Open returns the sink for spec, creating the directory if needed. It fits
// core.SinkFactory.
func (d Dir) Open(spec core.Spec) (core.Sink, error) {
	path, err := d.PathFor(spec.Name())
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", core.ErrWriteFailure, d.path, err)
	}
	return &File{path: path, perm: d.perm}, nil
}

// File appends payloads to one path. The file is opened per append so that
// external rotation or deletion is picked up without a restart.
type File struct {
	path string
	perm os.FileMode

	mu     sync.Mutex
	closed bool
}

var _ core.Sink = (*File)(nil)

func (f *File) Path() string { return f.path }

// Append writes payload followed by a newline.
func (f *File) Append(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("%w: %s: sink closed", core.ErrWriteFailure, f.path)
	}

	fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, f.perm)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrWriteFailure, err)
	}

	line := make([]byte, 0, len(payload)+1)
	line = append(line, payload...)
	line = append(line, '\n')

	_, werr := fh.Write(line)
	cerr := fh.Close()
	if werr != nil {
		return fmt.Errorf("%w: %w", core.ErrWriteFailure, werr)
	}
	if cerr != nil {
		return fmt.Errorf("%w: %w", core.ErrWriteFailure, cerr)
	}
	return nil
}

// Close waits for an in-flight append and rejects later ones.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
