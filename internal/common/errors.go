package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// ErrorKind classifies extraction failures.
type ErrorKind string

const (
	KindNoJSONFound       ErrorKind = "NoJsonFound"
	KindMalformedJSON     ErrorKind = "MalformedJson"
	KindInvalidSchema     ErrorKind = "InvalidSchema"
	KindUnresolvedFieldID ErrorKind = "UnresolvedFieldId"
	KindModelTimeout      ErrorKind = "ModelTimeout"
	KindModelError        ErrorKind = "ModelError"
)

// Sentinels for errors.Is matching on an ExtractionError of the same kind.
var (
	ErrNoJSONFound       = errors.New("no json found")
	ErrMalformedJSON     = errors.New("malformed json")
	ErrInvalidSchema     = errors.New("invalid schema")
	ErrUnresolvedFieldID = errors.New("unresolved field id")
	ErrModelTimeout      = errors.New("model timeout")
	ErrModelError        = errors.New("model error")
)

var kindSentinels = map[ErrorKind]error{
	KindNoJSONFound:       ErrNoJSONFound,
	KindMalformedJSON:     ErrMalformedJSON,
	KindInvalidSchema:     ErrInvalidSchema,
	KindUnresolvedFieldID: ErrUnresolvedFieldID,
	KindModelTimeout:      ErrModelTimeout,
	KindModelError:        ErrModelError,
}

// ExtractionError is a typed pipeline failure. Candidate holds the cleaned text that
// failed to parse, when there is one.
type ExtractionError struct {
	Kind      ErrorKind
	Batch     int
	Message   string
	Candidate string
	Cause     error
}

func NewExtractionError(kind ErrorKind, message string, cause error) *ExtractionError {
	return &ExtractionError{Kind: kind, Message: message, Cause: cause}
}

func (e *ExtractionError) Error() string {
	prefix := string(e.Kind)
	if e.Batch > 0 {
		prefix = fmt.Sprintf("batch %d: %s", e.Batch, e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// Is matches the kind sentinel so callers can write errors.Is(err, common.ErrMalformedJSON).
func (e *ExtractionError) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the ErrorKind carried by err, or "" if err is not an ExtractionError.
func KindOf(err error) ErrorKind {
	var xe *ExtractionError
	if errors.As(err, &xe) {
		return xe.Kind
	}
	return ""
}
