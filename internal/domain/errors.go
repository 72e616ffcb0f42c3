package domain

import "errors"

var (
	// ErrGymNotFound indicates the directory has no row for the requested id.
	ErrGymNotFound = errors.New("gym not found")
)

// DirectoryError is returned by Directory implementations for any transport
// or query failure. Message preserves the remote service's own wording.
type DirectoryError struct {
	Op      string
	Message string
	Err     error
}

func (e *DirectoryError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "directory " + e.Op + " failed"
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}

// NewDirectoryError builds a DirectoryError, defaulting the message to the cause.
func NewDirectoryError(op, message string, err error) *DirectoryError {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &DirectoryError{Op: op, Message: message, Err: err}
}

// IsNotFound reports whether err signals a missing gym.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrGymNotFound)
}
