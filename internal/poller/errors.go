package poller

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyStarted = errors.New("scheduler already started")
	ErrStopped        = errors.New("scheduler stopped")
)

// FetchError is the transient error shown while the last poll failed.
// Previously synchronized services stay in place.
type FetchError struct {
	Seq uint64
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch services (poll %d): %v", e.Seq, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
