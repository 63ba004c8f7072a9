package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError represents an application error
type AppError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Recoverable bool   `json:"-"`
	Cause       error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError with the same code, so wrapped copies of the
// predefined errors still satisfy errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(cause error) *AppError {
	return &AppError{
		Code:        e.Code,
		Message:     e.Message,
		Recoverable: e.Recoverable,
		Cause:       cause,
	}
}

// WithMessage returns a copy with a more specific message
func (e *AppError) WithMessage(format string, args ...any) *AppError {
	return &AppError{
		Code:        e.Code,
		Message:     fmt.Sprintf(format, args...),
		Recoverable: e.Recoverable,
		Cause:       e.Cause,
	}
}

// New creates a new recoverable application error
func New(code, message string) *AppError {
	return &AppError{
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewPermanent creates an application error that redelivery cannot fix
func NewPermanent(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a recoverable application error
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:        code,
		Message:     message,
		Recoverable: true,
		Cause:       err,
	}
}

// Error codes for the crawl pipeline
const (
	ConfigurationErrorCode    = "CONFIGURATION"
	MalformedMessageErrorCode = "MALFORMED_MESSAGE"
	FetchFailedErrorCode      = "FETCH_FAILED"
	PersistenceErrorCode      = "PERSISTENCE_FAILED"
	BrokerErrorCode           = "BROKER_FAILED"
	RecordNotFoundErrorCode   = "RECORD_NOT_FOUND"
)

// Predefined errors
var (
	// Configuration errors are never retried: redelivering the same
	// message against the same deployment fails the same way.
	ErrConfiguration = NewPermanent(ConfigurationErrorCode, "Invalid crawler configuration")
	ErrTableNotFound = NewPermanent(ConfigurationErrorCode, "Table not registered")
	ErrUnknownStage  = NewPermanent(ConfigurationErrorCode, "Unknown stage")

	// Protocol errors
	ErrMalformedMessage = NewPermanent(MalformedMessageErrorCode, "Malformed message")
	ErrEmptyMessage     = NewPermanent(MalformedMessageErrorCode, "Empty message body")

	// Transient errors
	ErrFetchFailed  = New(FetchFailedErrorCode, "Page fetch failed")
	ErrPersistence  = New(PersistenceErrorCode, "Persistence failed")
	ErrBrokerFailed = New(BrokerErrorCode, "Broker operation failed")

	ErrRecordNotFound = NewPermanent(RecordNotFoundErrorCode, "Record not found")
)

// AsAppError converts an error to an application error
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetErrorCode gets the error code from an error
func GetErrorCode(err error) string {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return "UNKNOWN_ERROR"
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// IsRecoverable checks if an error is recoverable. Unknown errors are
// treated as recoverable so the broker redelivers them.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr.Recoverable
	}
	return true
}
