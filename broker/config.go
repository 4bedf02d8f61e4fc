package broker

import "time"

// Config holds broker-agnostic configuration.
// Broker plugins extract the fields they need.
type Config struct {
	// Scheme is the plugin name the config was resolved for (e.g., "mqtt").
	Scheme string

	// Address is the broker network address as host:port.
	Address string

	// ClientID identifies the connection to the broker.
	ClientID string

	// ConnectTimeout bounds the initial connection attempt.
	ConnectTimeout time.Duration

	// Extra holds plugin-specific configuration.
	Extra map[string]any
}
