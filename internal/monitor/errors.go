package monitor

import (
	"errors"
	"fmt"
)

// ErrUnknownMonitor is returned by New when no constructor is registered for
// the requested type name.
var ErrUnknownMonitor = errors.New("monitor: unknown monitor type")

// ConfigError describes an invalid construction parameter. Construction
// never succeeds with inconsistent parameters; no partially-built monitor is
// observable.
type ConfigError struct {
	Field  string
	Reason string
	Value  any
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("monitor: %s %s, got %v", e.Field, e.Reason, e.Value)
}
