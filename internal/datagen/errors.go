package datagen

import (
	"errors"
	"fmt"
)

// ErrConfiguration marks errors caused by an invalid field specification or by
// generated data that violates a field's preconditions.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError carries a message and an optional underlying cause.
// errors.Is(err, ErrConfiguration) holds for every ConfigurationError.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ConfigurationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfiguration}
	}
	return []error{ErrConfiguration, e.Err}
}

// Configurationf builds a ConfigurationError from a format string.
func Configurationf(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// WrapConfiguration marks err as a configuration error with extra context.
func WrapConfiguration(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &ConfigurationError{Msg: msg, Err: err}
}
