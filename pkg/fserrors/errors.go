// Package fserrors holds the error taxonomy shared by every fsbox storage.
//
// Callers classify failures with errors.Is against the sentinels below. An
// *Error unwraps to both its kind sentinel and the underlying cause, so a
// missing object matches ErrNotFound as well as fs.ErrNotExist.
package fserrors

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrInvalidName indicates an empty name or a path that would escape the storage root.
	ErrInvalidName = errors.New("invalid name")

	// ErrNotFound indicates that the requested container or object does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that a container with the same name already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrPartialIO indicates that a recursive walk failed partway through.
	ErrPartialIO = errors.New("recursive operation aborted")
)

// Error carries the operation and the container/object it failed on.
type Error struct {
	Op        string
	Container string
	Remote    string
	Kind      error
	Err       error
}

func (e *Error) Error() string {
	target := e.Container
	if e.Remote != "" {
		target = e.Container + "/" + e.Remote
	}

	msg := e.Op
	if target != "" {
		msg = fmt.Sprintf("%s %q", e.Op, target)
	}

	switch {
	case e.Kind != nil && e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", msg, e.Kind, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("%s: %v", msg, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// New builds an *Error, deriving the kind from err when kind is nil.
func New(op, container, remote string, kind, err error) *Error {
	if kind == nil {
		kind = Classify(err)
	}
	return &Error{
		Op:        op,
		Container: container,
		Remote:    remote,
		Kind:      kind,
		Err:       err,
	}
}

// Invalid reports a validation failure; no filesystem call has been made.
func Invalid(op, name, reason string) *Error {
	return &Error{
		Op:        op,
		Container: name,
		Kind:      ErrInvalidName,
		Err:       errors.New(reason),
	}
}

// Classify maps a filesystem error onto the fsbox taxonomy.
// It returns nil when err matches none of the known kinds.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidName):
		return ErrInvalidName
	case errors.Is(err, ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, fs.ErrExist):
		return ErrAlreadyExists
	case errors.Is(err, ErrPartialIO):
		return ErrPartialIO
	}
	return nil
}
