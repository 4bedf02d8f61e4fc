package core

import (
	"fmt"
	"strings"
)

// TopicMatcher determines whether a subscription filter matches a given topic.
type TopicMatcher interface {
	Match(filter string, topic string) bool
}

// MQTTMatcher implements MQTT topic filter semantics: levels are separated by
// "/", "+" matches exactly one level and "#" matches the remaining levels,
// including none.
//
// Examples:
//
//	"temp/kitchen" matches "temp/kitchen"       (exact)
//	"temp/+"       matches "temp/kitchen"       (single-level)
//	"temp/+"       does NOT match "temp/a/b"
//	"temp/#"       matches "temp/kitchen/floor" (multi-level)
//	"temp/#"       matches "temp"
type MQTTMatcher struct{}

func (MQTTMatcher) Match(filter, topic string) bool {
	filParts := strings.Split(filter, "/")
	topParts := strings.Split(topic, "/")

	// Topics starting with "$" are not matched by leading wildcards.
	if strings.HasPrefix(topic, "$") && (filParts[0] == "+" || filParts[0] == "#") {
		return false
	}

	fi, ti := 0, 0
	for fi < len(filParts) {
		switch filParts[fi] {
		case "#":
			return fi == len(filParts)-1
		case "+":
			if ti >= len(topParts) {
				return false
			}
		default:
			if ti >= len(topParts) || filParts[fi] != topParts[ti] {
				return false
			}
		}
		fi++
		ti++
	}

	return ti == len(topParts)
}

// ValidateFilter reports whether filter is a well-formed MQTT topic filter.
func ValidateFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("%w: empty topic filter", ErrInvalidConfig)
	}
	parts := strings.Split(filter, "/")
	for i, p := range parts {
		switch {
		case p == "#":
			if i != len(parts)-1 {
				return fmt.Errorf("%w: %q: '#' must be the last level", ErrInvalidConfig, filter)
			}
		case p == "+":
		case strings.ContainsAny(p, "#+"):
			return fmt.Errorf("%w: %q: wildcard must occupy a whole level", ErrInvalidConfig, filter)
		}
	}
	return nil
}
