package repository

import (
	"errors"
	"fmt"
)

// ErrNotFound matches every *NotFoundError through errors.Is.
var ErrNotFound = errors.New("not found")

// NotFoundError reports that an operation referenced an id the backend doesn't have.
type NotFoundError struct {
	Kind string // "task" or "category"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConnectionError reports an unreachable backend or rejected credentials.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// BackendError wraps any other failure reported by the backend, unchanged.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Wrap turns err into a *BackendError unless it already belongs to the taxonomy.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		nf   *NotFoundError
		conn *ConnectionError
		be   *BackendError
	)
	if errors.As(err, &nf) || errors.As(err, &conn) || errors.As(err, &be) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}

// ErrNotConnected is returned when an operation runs before Connect or after Close.
var ErrNotConnected = errors.New("gateway is not connected")
