package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the request can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Delivery failures ---

// Producer wraps a failure raised by a body source. If cause already is a
// producer failure it is returned unchanged.
func Producer(cause error) *AppError {
	if appErr, ok := AsAppError(cause); ok && appErr.Code == ErrCodeProducerFailed {
		return appErr
	}
	return &AppError{
		Code: ErrCodeProducerFailed, Message: "The response body could not be produced.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// Transport wraps a write or close failure against the client connection.
func Transport(cause error) *AppError {
	return &AppError{
		Code: ErrCodeTransportFailed, Message: "Writing the response to the connection failed.",
		HTTPStatus: http.StatusInternalServerError, Retryable: true, Cause: cause,
	}
}

// Handler wraps a failure raised by the application error handler.
func Handler(cause error) *AppError {
	return &AppError{
		Code: ErrCodeHandlerFailed, Message: "The error handler failed.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// ClientGone reports that the client disconnected before delivery finished.
func ClientGone(cause error) *AppError {
	return &AppError{
		Code: ErrCodeClientGone, Message: "The client closed the connection.",
		HTTPStatus: 499, Retryable: false, Cause: cause,
	}
}

// Timeout creates a new AppError for a producer that stalled.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The response body stalled. Please try again.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// SourceConsumed reports a second activation of a single-use body source.
func SourceConsumed() *AppError {
	return &AppError{
		Code: ErrCodeSourceConsumed, Message: "The response body has already been consumed.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false,
	}
}

// --- Service errors ---

// InvalidConfig creates a new AppError for a configuration value that failed validation.
func InvalidConfig(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidConfig, Message: fmt.Sprintf("Invalid configuration: %s", reason),
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Details: details,
	}
}

// BadRequest creates a new AppError for a request the server cannot parse.
func BadRequest(message string) *AppError {
	return &AppError{
		Code: ErrCodeBadRequest, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// NotFound creates a new AppError for a missing resource.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Retryable: false,
		Details: map[string]any{"resource": resource, "id": id},
	}
}

// ServiceUnavailable creates a new AppError for a service that is temporarily saturated.
func ServiceUnavailable(service string) *AppError {
	return &AppError{
		Code: ErrCodeServiceUnavailable, Message: fmt.Sprintf("The %s is temporarily unavailable. Please try again.", service),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"service": service},
	}
}

// Internal creates a new AppError for an internal server error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred. Please try again or contact support.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// FromPanic converts a recovered panic value into an error.
func FromPanic(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", v)
}

// --- Classification ---

// CodeOf returns the code of the first AppError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ""
}

// IsProducerFailure reports whether err is a producer failure.
func IsProducerFailure(err error) bool { return hasCode(err, ErrCodeProducerFailed) }

// IsTransportFailure reports whether err is a transport failure.
func IsTransportFailure(err error) bool { return hasCode(err, ErrCodeTransportFailed) }

// IsHandlerFailure reports whether err is a failure of the error handler.
func IsHandlerFailure(err error) bool { return hasCode(err, ErrCodeHandlerFailed) }

// IsClientGone reports whether err records a client disconnect.
func IsClientGone(err error) bool { return hasCode(err, ErrCodeClientGone) }

// IsTimeout reports whether err records a stalled producer.
func IsTimeout(err error) bool { return hasCode(err, ErrCodeTimeout) }

func hasCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}
