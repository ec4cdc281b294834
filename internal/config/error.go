package config

import (
	"errors"
	"strings"
)

// ErrInvalid is matched by every ConfigError.
var ErrInvalid = errors.New("invalid configuration")

// ConfigError collects everything wrong with one config file so that
// `galleria config check` can report it in one pass.
type ConfigError struct {
	Path    string
	Missing []string // unresolved environment variables
	Errors  []string // validation and unknown key messages
}

func (e *ConfigError) Error() string {
	if !e.HasErrors() {
		return ""
	}

	var b strings.Builder
	if e.Path != "" {
		b.WriteString(e.Path + ":\n")
	}
	if len(e.Missing) > 0 {
		b.WriteString("missing environment variables: " + strings.Join(e.Missing, ", ") + "\n")
	}
	if len(e.Errors) > 0 {
		b.WriteString("validation failed:\n")
		for _, msg := range e.Errors {
			b.WriteString("  - " + msg + "\n")
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (e *ConfigError) Unwrap() error { return ErrInvalid }

// HasErrors reports whether anything was recorded.
func (e *ConfigError) HasErrors() bool {
	return len(e.Missing) > 0 || len(e.Errors) > 0
}
