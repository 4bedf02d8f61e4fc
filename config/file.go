// Package config provides core.Source implementations.
//
// The file format is one subscription per line with four whitespace-separated
// fields:
//
//	name topic host port
//
// Lines with a different number of fields are ignored. Blank lines and lines
// starting with "#" are comments.
package config

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/miladsoleymani/topicsink/core"
)

// FileSource reads records from a text file on every call.
type FileSource struct {
	path string
}

var _ core.Source = (*FileSource)(nil)

// NewFileSource creates a source reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Path() string { return s.path }

// Records reads and parses the file. A missing or unreadable file yields an
// error wrapping core.ErrConfigUnavailable.
func (s *FileSource) Records(ctx context.Context) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfigUnavailable, err)
	}
	return Parse(data), nil
}

// Parse splits data into records, skipping comments and lines that do not
// have exactly four fields. Line length is not limited.
func Parse(data []byte) []core.Record {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var out []core.Record
	for _, raw := range bytes.Split(data, []byte("\n")) {
		line := strings.TrimSpace(string(raw))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f := strings.Fields(line)
		if len(f) != 4 {
			continue
		}
		out = append(out, core.Record{Name: f[0], Topic: f[1], Host: f[2], Port: f[3]})
	}
	return out
}
