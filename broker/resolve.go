package broker

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/miladsoleymani/topicsink/core"
)

// DefaultScheme is used for hosts without a "scheme://" prefix.
const DefaultScheme = "mqtt"

// SplitHost separates an optional "scheme://" prefix from a host field.
func SplitHost(host string) (scheme, hostname string, err error) {
	scheme, hostname, found := strings.Cut(host, "://")
	if !found {
		scheme, hostname = DefaultScheme, host
	}
	scheme = strings.ToLower(scheme)
	if scheme == "" || hostname == "" || strings.ContainsAny(hostname, "/?#@") {
		return "", "", fmt.Errorf("%w: host %q", core.ErrInvalidConfig, host)
	}
	return scheme, hostname, nil
}

// Resolver turns specs into broker clients using the registry.
type Resolver struct {
	// ClientPrefix prefixes every client ID.
	ClientPrefix string
	// ConnectTimeout is passed to every plugin.
	ConnectTimeout time.Duration
	// Extra is passed to every plugin.
	Extra map[string]any
}

// ForSpec resolves a spec to an unconnected broker. It fits core.BrokerFactory.
func (r Resolver) ForSpec(spec core.Spec) (core.Broker, error) {
	cfg, err := r.Config(spec)
	if err != nil {
		return nil, err
	}
	return Create(cfg.Scheme, cfg)
}

// Config builds the plugin config for spec without creating a broker.
func (r Resolver) Config(spec core.Spec) (Config, error) {
	scheme, hostname, err := SplitHost(spec.Host())
	if err != nil {
		return Config{}, err
	}
	prefix := r.ClientPrefix
	if prefix == "" {
		prefix = "topicsink"
	}
	return Config{
		Scheme:         scheme,
		Address:        net.JoinHostPort(hostname, strconv.Itoa(int(spec.Port()))),
		ClientID:       prefix + "-" + spec.Fingerprint().Short(),
		ConnectTimeout: r.ConnectTimeout,
		Extra:          r.Extra,
	}, nil
}
