package sgerrors

import "fmt"

// Error is the structured error type threaded through the indexer and
// search core. It carries a stable Code, a Kind from the error
// taxonomy, and enough context to populate Stats.Errors without losing
// the underlying cause.
type Error struct {
	Code      string
	Kind      Kind
	Message   string
	FilePath  string
	Details   map[string]string
	Cause     error
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.FilePath != "" {
		return fmt.Sprintf("[%s] %s (%s): %v", e.Code, e.Message, e.FilePath, e.Cause)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause so errors.Is/As compose.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by code, enabling errors.Is(err, sgerrors.New(kind, CodeX, "", nil)).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithFile attaches the file path this error happened against.
func (e *Error) WithFile(path string) *Error {
	e.FilePath = path
	return e
}

// WithDetail adds a key/value detail, creating the map lazily.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New builds an Error with kind and retryability derived from code.
func New(kind Kind, code, message string, cause error) *Error {
	return &Error{
		Kind:      kind,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

func IOErr(message string, cause error) *Error {
	return New(KindIO, CodeFileNotFound, message, cause)
}

func ParseErr(message string, cause error) *Error {
	return New(KindParse, CodeParseFailed, message, cause)
}

func StoreErr(message string, cause error) *Error {
	return New(KindStore, CodeStoreTxFailed, message, cause)
}

func EmbeddingErr(message string, cause error) *Error {
	return New(KindEmbedding, CodeEmbeddingFailed, message, cause)
}

func ConfigErr(message string, cause error) *Error {
	return New(KindConfig, CodeConfigInvalid, message, cause)
}

func TimeoutErr(message string) *Error {
	return New(KindTimeout, CodeSearchTimeout, message, nil)
}

func CancelledErr(message string) *Error {
	return New(KindCancelled, CodeOperationCancel, message, nil)
}

// IsRetryable reports whether err is a retryable *Error.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// MultiError aggregates independent per-file failures collected during
// a sweep.
type MultiError struct {
	Errors []error
}

func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, e := range errs {
		if e != nil {
			filtered = append(filtered, e)
		}
	}
	return &MultiError{Errors: filtered}
}

func (m *MultiError) Error() string {
	switch len(m.Errors) {
	case 0:
		return "no errors"
	case 1:
		return m.Errors[0].Error()
	default:
		return fmt.Sprintf("%d errors: %v", len(m.Errors), m.Errors[0])
	}
}

func (m *MultiError) Unwrap() []error {
	return m.Errors
}
