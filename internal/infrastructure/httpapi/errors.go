package httpapi

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrRetryable = errors.New("retryable error")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d %s", e.Op, e.Code, http.StatusText(e.Code))
}

// Retryable reports whether sending the same request again may succeed.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

func (e *StatusError) Is(target error) bool {
	return target == ErrRetryable && e.Retryable()
}
