package proc

import "errors"

type commandUnavailableError struct {
	name string
}

func (e commandUnavailableError) Error() string {
	return "command unavailable: " + e.name
}

// ErrCommandUnavailable marks a command whose executable is not on PATH.
func ErrCommandUnavailable(name string) error {
	return commandUnavailableError{name: name}
}

// IsCommandUnavailable reports whether err came from a missing executable.
func IsCommandUnavailable(err error) bool {
	var e commandUnavailableError
	return errors.As(err, &e)
}
