package simulation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfiguration is matched by every configuration failure via errors.Is.
var ErrInvalidConfiguration = errors.New("invalid simulation configuration")

// ConfigurationError identifies the field that failed validation and why.
type ConfigurationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is reports ErrInvalidConfiguration as a match.
func (e ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// ConfigurationErrors collects every failing field of one configuration.
type ConfigurationErrors []ConfigurationError

func (e ConfigurationErrors) Error() string {
	messages := make([]string, 0, len(e))
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// Is reports ErrInvalidConfiguration as a match.
func (e ConfigurationErrors) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// Fields returns the failing field names in validation order.
func (e ConfigurationErrors) Fields() []string {
	fields := make([]string, 0, len(e))
	for _, err := range e {
		fields = append(fields, err.Field)
	}
	return fields
}
