package reliability

// IsRetryableHTTPStatus classifies engine HTTP status codes that a caller
// may retry. The service itself never retries; the flag travels on the
// failure outcome so the caller can decide.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
