package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissing is matched by every *MissingError.
var ErrMissing = errors.New("missing required config")

// MissingError reports required keys that were empty when a component was
// constructed.
type MissingError struct {
	Keys []string
}

// Missing builds a *MissingError for the given config keys.
func Missing(keys ...string) error {
	return &MissingError{Keys: keys}
}

func (e *MissingError) Error() string {
	parts := make([]string, 0, len(e.Keys))
	for _, k := range e.Keys {
		parts = append(parts, fmt.Sprintf("%s (%s)", k, hint(k)))
	}
	return "missing required config: " + strings.Join(parts, "; ")
}

// hint says how to supply key.
func hint(key string) string {
	s, ok := specFor(key)
	switch {
	case !ok:
		return "unknown key"
	case s.secret:
		return fmt.Sprintf("set %s or %s", s.env, secretHint(key))
	default:
		return fmt.Sprintf("set %s or run: folio config set %s <value>", s.env, key)
	}
}

func (e *MissingError) Is(target error) bool {
	return target == ErrMissing
}
