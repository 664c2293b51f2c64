package orchestrator

import (
	"errors"
	"fmt"
)

// ErrorCode classifies orchestrator failures.
type ErrorCode string

const (
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeBinaryNotFound  ErrorCode = "BINARY_NOT_FOUND"
	CodeNoPortAvailable ErrorCode = "NO_PORT_AVAILABLE"
	CodeSpawnFailed     ErrorCode = "SPAWN_FAILED"
	CodeValidation      ErrorCode = "VALIDATION"
	CodeStore           ErrorCode = "STORE"
)

// Sentinels for errors.Is. Every *Error matches the sentinel of its code.
var (
	ErrNotFound        = errors.New("environment not found")
	ErrBinaryNotFound  = errors.New("browser executable not found")
	ErrNoPortAvailable = errors.New("no debug port available")
	ErrSpawnFailed     = errors.New("failed to start browser")
	ErrValidation      = errors.New("invalid input")
	ErrStore           = errors.New("environment store error")
)

var sentinels = map[ErrorCode]error{
	CodeNotFound:        ErrNotFound,
	CodeBinaryNotFound:  ErrBinaryNotFound,
	CodeNoPortAvailable: ErrNoPortAvailable,
	CodeSpawnFailed:     ErrSpawnFailed,
	CodeValidation:      ErrValidation,
	CodeStore:           ErrStore,
}

// Error is returned by every orchestrator operation that fails.
type Error struct {
	Code          ErrorCode
	Op            string
	EnvironmentID string
	Message       string // Overrides the sentinel text when set
	Err           error
}

// Error yields one human-readable line.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = sentinels[e.Code].Error()
	}
	if e.EnvironmentID != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.EnvironmentID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return sentinels[e.Code] == target
}

func newError(code ErrorCode, op, id string, err error) *Error {
	return &Error{Code: code, Op: op, EnvironmentID: id, Err: err}
}

func validationError(op, format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

func storeError(op, id string, err error) *Error {
	return newError(CodeStore, op, id, err)
}

// CodeOf returns the ErrorCode carried by err, or "" if none.
func CodeOf(err error) ErrorCode {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Code
	}
	return ""
}
