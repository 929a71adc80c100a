package manager

import "errors"

type notFoundError struct {
	name string
}

func (e notFoundError) Error() string {
	return "project not found: " + e.name
}

// ErrProjectNotFound marks an operation on an unknown project name.
func ErrProjectNotFound(name string) error {
	return notFoundError{name: name}
}

// IsProjectNotFound reports whether err names an unknown project.
func IsProjectNotFound(err error) bool {
	var e notFoundError
	return errors.As(err, &e)
}

type validationError struct {
	msg string
}

func (e validationError) Error() string { return e.msg }

// ErrValidation marks rejected caller input (bad component, bad port).
func ErrValidation(msg string) error {
	return validationError{msg: msg}
}

// IsValidation reports whether err is a caller-input rejection.
func IsValidation(err error) bool {
	var e validationError
	return errors.As(err, &e)
}
