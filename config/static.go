package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/miladsoleymani/topicsink/core"
)

// Static is an in-memory source whose records can be replaced at any time.
type Static struct {
	mu          sync.RWMutex
	records     []core.Record
	unavailable bool
}

var _ core.Source = (*Static)(nil)

// NewStatic creates a source yielding records.
func NewStatic(records ...core.Record) *Static {
	s := &Static{}
	s.Update(records...)
	return s
}

func (s *Static) Records(_ context.Context) ([]core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.unavailable {
		return nil, fmt.Errorf("%w: static source disabled", core.ErrConfigUnavailable)
	}
	out := make([]core.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Update replaces the record list.
func (s *Static) Update(records ...core.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make([]core.Record, len(records))
	copy(s.records, records)
}

// SetUnavailable makes Records fail with core.ErrConfigUnavailable.
func (s *Static) SetUnavailable(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = v
}
