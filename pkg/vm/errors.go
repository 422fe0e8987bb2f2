// Package vm - runtime error taxonomy and the persistent error slot
package vm

import "fmt"

// ErrorKind classifies a runtime failure.
type ErrorKind int

const (
	// ErrParse is malformed source; the message carries line and column.
	ErrParse ErrorKind = iota

	// ErrUndefinedVariable is a read or write of an identifier that no
	// scope in the chain declares.
	ErrUndefinedVariable

	// ErrRedeclaration is `:=` of an identifier already declared in the
	// same scope.
	ErrRedeclaration

	// ErrTypeMismatch is arithmetic or comparison on incompatible kinds,
	// indexing a non-map, or member access on a value without members.
	ErrTypeMismatch

	// ErrNotInvokable is `:` applied to a value that is neither a
	// function nor a class.
	ErrNotInvokable

	// ErrArgumentArity is a call with more arguments than the function
	// declares parameters.
	ErrArgumentArity

	// ErrKeyNotFound is `=` of a missing key, or dot access of a member
	// the container lacks.
	ErrKeyNotFound

	// ErrRuntime covers the rest: stack overflow, I/O failures during
	// import, failed assertions.
	ErrRuntime
)

// Error is the value held in a state's error slot. It persists across API
// calls until an entry point that compiles and runs source clears it.
type Error struct {
	Kind    ErrorKind
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// SetError records a runtime error in the state's error slot. A later error
// does not overwrite an earlier one; the VM unwinds to the API boundary with
// the first failure intact.
func (s *State) SetError(format string, args ...interface{}) {
	s.setError(ErrRuntime, format, args...)
}

func (s *State) setError(kind ErrorKind, format string, args ...interface{}) {
	if s.err != nil {
		return
	}
	s.err = &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Error reports whether the state's error flag is set. Successful calls do
// not clear the flag; check directly after a call that can fail.
func (s *State) Error() bool {
	return s.err != nil
}

// GetError returns the message of the last error, or the empty string.
func (s *State) GetError() string {
	if s.err == nil {
		return ""
	}
	return s.err.Message
}

// Err returns the structured error in the slot, or nil.
func (s *State) Err() *Error {
	return s.err
}

// ClearError resets the error slot.
func (s *State) ClearError() {
	s.err = nil
}
