package mock

import (
	"fmt"
	"sync"

	"github.com/miladsoleymani/topicsink/core"
)

// Sink is an in-memory core.Sink.
type Sink struct {
	mu        sync.Mutex
	lines     []string
	AppendErr error
	closed    bool
}

func NewSink() *Sink { return &Sink{} }

func (s *Sink) Append(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: sink closed", core.ErrWriteFailure)
	}
	if s.AppendErr != nil {
		return fmt.Errorf("%w: %w", core.ErrWriteFailure, s.AppendErr)
	}
	s.lines = append(s.lines, string(payload))
	return nil
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// SetAppendErr changes the append failure under the sink lock.
func (s *Sink) SetAppendErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AppendErr = err
}

// Lines returns the appended payloads in order.
func (s *Sink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *Sink) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
