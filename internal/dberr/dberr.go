// Package dberr specifically handles database driver errors.
//
// It classifies raw MongoDB driver errors (timeouts, duplicate keys,
// network failures, write exceptions) into a small set of codes the
// HTTP layer knows how to render, and converts them into user-friendly
// messages (e.g. converting an E11000 duplicate key error into
// "A user with this email already exists").
package dberr

import (
	"context"
	"errors"
	"fmt"
)

// Code is the failure category of a store operation.
type Code string

const (
	// ConnectionFailure means the driver could not establish a client.
	ConnectionFailure Code = "CONNECTION_FAILURE"
	// ServiceUnavailable means the store has no database handle to work with.
	ServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	// InvalidIdentifier means an id string is not a valid ObjectID.
	InvalidIdentifier Code = "INVALID_IDENTIFIER"
	// MalformedBody means a request payload is not a JSON object.
	MalformedBody Code = "MALFORMED_BODY"
	// WriteFailure means the store rejected an insert/update/delete.
	WriteFailure Code = "WRITE_FAILURE"
	// DuplicateKey is a WriteFailure caused by a unique index.
	DuplicateKey Code = "DUPLICATE_KEY"
	// Timeout means the operation exceeded its deadline.
	Timeout Code = "TIMEOUT"
	// Other is any failure that does not fit the categories above.
	Other Code = "OTHER"
)

// Error is a classified store failure.
//
// Message is the description rendered to clients; the wrapped driver
// error is kept for logs and errors.Is/As.
type Error struct {
	Code       Code
	Op         string
	Message    string
	Collection string
	driverErr  error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.driverErr
}

// IsWriteFailure reports whether the error belongs to the WriteFailure family.
func (e *Error) IsWriteFailure() bool {
	return e.Code == WriteFailure || e.Code == DuplicateKey
}

// New creates an Error without an underlying driver error.
func New(code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Wrap creates an Error around a driver error. The message is the driver
// error text prefixed with the operation.
func Wrap(code Code, op string, err error) *Error {
	return &Error{
		Code:      code,
		Op:        op,
		Message:   fmt.Sprintf("%s: %v", op, err),
		driverErr: err,
	}
}

// ErrCode reports the Code for a given error.
//
// Behavior:
//   - If err can be unwrapped into *dberr.Error, return its Code.
//   - Context deadline errors report Timeout.
//   - Otherwise return Other.
func ErrCode(err error) Code {
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return dbErr.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return Other
}

// ErrNotConnected is returned by store operations when the connection
// manager has no database handle.
var ErrNotConnected = New(ServiceUnavailable, "connect", "database is not connected")
