package record

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"slices"
	"strings"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError reports a caller-supplied field that is missing or malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Required returns a *ValidationError when value is blank.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Reason: "required"}
	}
	return nil
}

// ValidateEmail accepts a bare address such as "sarah@example.com".
func ValidateEmail(s string) error {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != strings.TrimSpace(s) {
		return &ValidationError{Field: "email", Reason: fmt.Sprintf("%q is not an email address", s)}
	}
	return nil
}

// ValidateURL accepts absolute http(s) URLs and mailto: links to a single
// address.
func ValidateURL(s string) error {
	if addr, ok := strings.CutPrefix(s, "mailto:"); ok {
		if ValidateEmail(addr) != nil {
			return &ValidationError{Field: "url", Reason: fmt.Sprintf("%q is not a mailto link", s)}
		}
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return &ValidationError{Field: "url", Reason: fmt.Sprintf("%q is not an absolute URL", s)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: "url", Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	return nil
}

// Validate checks a record before it is written to the store.
func Validate(r PortfolioRecord) error {
	if err := Required("name", r.Name); err != nil {
		return err
	}
	if !slices.Contains(RecordTypes, r.Type) {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown record type %q", r.Type)}
	}
	if r.URL != "" {
		if err := ValidateURL(r.URL); err != nil {
			return err
		}
	}
	switch r.Level {
	case "", LevelExpert, LevelAdvanced, LevelIntermediate, LevelBeginner:
	default:
		return &ValidationError{Field: "level", Reason: fmt.Sprintf("unknown level %q", r.Level)}
	}
	switch r.Priority {
	case "", PriorityHigh, PriorityMedium, PriorityLow:
	default:
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", r.Priority)}
	}
	switch r.Status {
	case "", StatusActive, StatusArchived, StatusFeatured:
	default:
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", r.Status)}
	}
	return nil
}
