package errors

// Error codes carried in the "error" field of the envelope.
const (
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeInvalidRequest     = "invalid_request"
	ErrCodeNotFound           = "not_found"
	ErrCodeConflict           = "conflict"
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstreamError      = "upstream_error"
)

// codeForStatus is used when the server answered without an envelope.
func codeForStatus(status int) string {
	switch {
	case status == 400:
		return ErrCodeInvalidRequest
	case status == 401:
		return ErrCodeUnauthorized
	case status == 404:
		return ErrCodeNotFound
	case status == 409:
		return ErrCodeConflict
	case status == 503:
		return ErrCodeServiceUnavailable
	case status >= 500:
		return ErrCodeInternalError
	default:
		return ErrCodeUpstreamError
	}
}
