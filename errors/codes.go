package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Delivery failures
const (
	// ErrCodeProducerFailed indicates the body producer raised a failure.
	ErrCodeProducerFailed ErrorCode = "PRODUCER_FAILED"
	// ErrCodeTransportFailed indicates a write or close against the connection failed.
	ErrCodeTransportFailed ErrorCode = "TRANSPORT_FAILED"
	// ErrCodeHandlerFailed indicates the application error handler itself failed.
	ErrCodeHandlerFailed ErrorCode = "HANDLER_FAILED"
	// ErrCodeClientGone indicates the client went away before delivery finished.
	ErrCodeClientGone ErrorCode = "CLIENT_GONE"
	// ErrCodeTimeout indicates the producer stayed silent past the idle timeout.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeSourceConsumed indicates a body source was activated twice.
	ErrCodeSourceConsumed ErrorCode = "SOURCE_CONSUMED"
)

// Service errors
const (
	// ErrCodeInvalidConfig indicates a configuration value failed validation.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	// ErrCodeBadRequest indicates a malformed request to a non-streaming endpoint.
	ErrCodeBadRequest ErrorCode = "BAD_REQUEST"
	// ErrCodeNotFound indicates the requested resource does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeServiceUnavailable indicates the service cannot take more work right now.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTransportFailed:    true,
	ErrCodeTimeout:            true,
	ErrCodeServiceUnavailable: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
