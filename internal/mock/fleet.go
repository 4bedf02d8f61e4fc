package mock

import (
	"sync"

	"github.com/miladsoleymani/topicsink/core"
)

// Fleet hands out a fresh Broker and Sink per spec and remembers them, so
// tests can inspect what a Reconciler built. Its methods fit
// core.BrokerFactory and core.SinkFactory.
type Fleet struct {
	mu sync.Mutex
	// ConnectErrs makes brokers for the given host fail to connect.
	ConnectErrs map[string]error
	brokers     map[core.Fingerprint][]*Broker
	sinks       map[core.Fingerprint][]*Sink
	order       []core.Fingerprint
}

func NewFleet() *Fleet {
	return &Fleet{
		ConnectErrs: make(map[string]error),
		brokers:     make(map[core.Fingerprint][]*Broker),
		sinks:       make(map[core.Fingerprint][]*Sink),
	}
}

func (f *Fleet) NewBroker(spec core.Spec) (core.Broker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := NewBroker()
	b.ConnectErr = f.ConnectErrs[spec.Host()]
	f.brokers[spec.Fingerprint()] = append(f.brokers[spec.Fingerprint()], b)
	f.order = append(f.order, spec.Fingerprint())
	return b, nil
}

func (f *Fleet) NewSink(spec core.Spec) (core.Sink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := NewSink()
	f.sinks[spec.Fingerprint()] = append(f.sinks[spec.Fingerprint()], s)
	return s, nil
}

// SetConnectErr changes the connect failure for a host.
func (f *Fleet) SetConnectErr(host string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.ConnectErrs, host)
		return
	}
	f.ConnectErrs[host] = err
}

// Latest returns the most recent broker and sink built for fp.
func (f *Fleet) Latest(fp core.Fingerprint) (*Broker, *Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var b *Broker
	var s *Sink
	if bs := f.brokers[fp]; len(bs) > 0 {
		b = bs[len(bs)-1]
	}
	if ss := f.sinks[fp]; len(ss) > 0 {
		s = ss[len(ss)-1]
	}
	return b, s
}

// Built returns how many brokers were built for fp.
func (f *Fleet) Built(fp core.Fingerprint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.brokers[fp])
}

// Total returns how many brokers were built overall.
func (f *Fleet) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}
