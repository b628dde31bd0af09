package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidProxyAddress is returned when the proxy address is not "host:port".
var ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

// StatusError reports a response with a non-success status code.
type StatusError struct {
	URL        string
	StatusCode int
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d (%s) for %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// retryableStatus reports whether a response status is worth retrying.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
