package core

import "errors"

var (
	// ErrInvalidConfig is returned when a configuration record cannot be turned
	// into a usable subscription (bad port, empty field, bad topic filter).
	ErrInvalidConfig = errors.New("topicsink: invalid config")

	// ErrConfigUnavailable is returned by a Source when the configuration
	// resource is missing or unreadable.
	ErrConfigUnavailable = errors.New("topicsink: config unavailable")

	// ErrConnectionRefused is returned when a worker cannot reach its broker.
	ErrConnectionRefused = errors.New("topicsink: connection refused")

	// ErrWriteFailure is returned when a payload cannot be appended to its sink.
	ErrWriteFailure = errors.New("topicsink: write failure")

	// ErrNameConflict is returned when two desired subscriptions share a name
	// and would therefore write to the same output file.
	ErrNameConflict = errors.New("topicsink: name already claimed")

	// ErrBrokerClosed is returned when operations are attempted on a closed broker.
	ErrBrokerClosed = errors.New("topicsink: broker is closed")

	// ErrNoBroker is returned when a worker is built without a broker factory.
	ErrNoBroker = errors.New("topicsink: broker is nil")

	// ErrNoSink is returned when a worker is built without a sink factory.
	ErrNoSink = errors.New("topicsink: sink is nil")


	// ErrAlreadyStarted is returned when Start is called on a worker twice.
	ErrAlreadyStarted = errors.New("topicsink: worker already started")
)

// Reason maps an error to a short label used in logs and metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrConfigUnavailable):
		return "config_unavailable"
	case errors.Is(err, ErrConnectionRefused):
		return "connection_refused"
	case errors.Is(err, ErrWriteFailure):
		return "write_failure"
	case errors.Is(err, ErrNameConflict):
		return "name_conflict"
	default:
		return "other"
	}
}
