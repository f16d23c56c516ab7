package model

import (
	"errors"
	"fmt"
)

var ErrMissingFields = errors.New("Missing required fields")

type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Invalid %s: %q", e.Field, e.Value)
}

// IsValidation reports whether err is a client-side validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.Is(err, ErrMissingFields) || errors.As(err, &ve)
}
