package domain

import "fmt"

// ConfigError reports a declarative description that cannot be trusted:
// a missing or forbidden key, a dangling dataset reference, an unresolved
// placeholder or an unrecognised flow shape.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	if e == nil || e.Message == "" {
		return "invalid configuration"
	}
	return e.Message
}

// ConfigErrorf formats a ConfigError.
func ConfigErrorf(format string, args ...any) error {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}
