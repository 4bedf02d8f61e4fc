package core

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/zeebo/xxh3"
)

// Record is one raw configuration line: name topic host port.
type Record struct {
	Name  string
	Topic string
	Host  string
	Port  string
}

func (r Record) String() string {
	return strings.Join([]string{r.Name, r.Topic, r.Host, r.Port}, " ")
}

// Fingerprint is the identity of a subscription. It is derived from the raw
// record fields only and is comparable, so it can be used as a map key.
type Fingerprint [16]byte

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Short returns the first eight hex characters, enough for log lines and
// client identifiers.
func (f Fingerprint) Short() string {
	return f.String()[:8]
}

// Spec is the immutable desired configuration of one worker.
type Spec struct {
	name        string
	topic       string
	host        string
	portText    string
	port        uint16
	fingerprint Fingerprint
}

// NewSpec validates a record and derives its fingerprint.
func NewSpec(r Record) (Spec, error) {
	for _, f := range [...]struct{ field, value string }{
		{"name", r.Name},
		{"topic", r.Topic},
		{"host", r.Host},
		{"port", r.Port},
	} {
		if f.value == "" {
			return Spec{}, fmt.Errorf("%w: empty %s", ErrInvalidConfig, f.field)
		}
		if strings.IndexFunc(f.value, unicode.IsSpace) >= 0 {
			return Spec{}, fmt.Errorf("%w: %s %q contains whitespace", ErrInvalidConfig, f.field, f.value)
		}
	}

	port, err := strconv.ParseUint(r.Port, 10, 16)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: port %q: %w", ErrInvalidConfig, r.Port, err)
	}

	return Spec{
		name:        r.Name,
		topic:       r.Topic,
		host:        r.Host,
		portText:    r.Port,
		port:        uint16(port),
		fingerprint: fingerprintOf(r),
	}, nil
}

// fingerprintOf hashes the fields in order. Fields never contain whitespace,
// so a single space keeps the concatenation unambiguous.
func fingerprintOf(r Record) Fingerprint {
	return Fingerprint(xxh3.HashString128(r.String()).Bytes())
}

func (s Spec) Name() string             { return s.name }
func (s Spec) Topic() string            { return s.topic }
func (s Spec) Host() string             { return s.host }
func (s Spec) Port() uint16             { return s.port }
func (s Spec) PortText() string         { return s.portText }
func (s Spec) Fingerprint() Fingerprint { return s.fingerprint }

// Record returns the raw fields the spec was built from.
func (s Spec) Record() Record {
	return Record{Name: s.name, Topic: s.topic, Host: s.host, Port: s.portText}
}

func (s Spec) String() string {
	return fmt.Sprintf("%s(%s@%s:%s)", s.name, s.topic, s.host, s.portText)
}
