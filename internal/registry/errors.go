package registry

import "errors"

type notRegisteredError struct {
	name string
}

func (e notRegisteredError) Error() string {
	return "function not registered: " + e.name
}

// ErrNotRegistered marks a call to an unknown function name.
func ErrNotRegistered(name string) error {
	return notRegisteredError{name: name}
}

// IsNotRegistered reports whether err came from an unknown function name.
func IsNotRegistered(err error) bool {
	var e notRegisteredError
	return errors.As(err, &e)
}
