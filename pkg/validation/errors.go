package validation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidationFailed is matched by every error produced in this package
var ErrValidationFailed = errors.New("validation failed")

// Error describes one rejected input field. An empty Field means the error
// applies to the request as a whole.
type Error struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidationFailed) true
func (e *Error) Is(target error) bool {
	return target == ErrValidationFailed
}

// New returns a single field error
func New(field, message string) *Error {
	return &Error{Field: field, Message: message}
}

// Errors collects several field errors
type Errors []*Error

// Add appends a field error
func (e *Errors) Add(field, message string) {
	*e = append(*e, &Error{Field: field, Message: message})
}

// Err returns nil when empty, otherwise the collection as an error
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Error()
	}
	return strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidationFailed) true
func (e Errors) Is(target error) bool {
	return target == ErrValidationFailed
}

// Fields flattens any error from this package into its field errors.
// Other errors yield nil.
func Fields(err error) []*Error {
	var many Errors
	if errors.As(err, &many) {
		return many
	}
	var one *Error
	if errors.As(err, &one) {
		return []*Error{one}
	}
	return nil
}
