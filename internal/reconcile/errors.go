package reconcile

import (
	"errors"
	"fmt"
)

var ErrMalformedEntity = errors.New("malformed entity")

// MalformedEntityError reports a snapshot that cannot become a Service.
// Only that record is dropped; the rest of the batch still merges.
type MalformedEntityError struct {
	ID     string // best effort, may be empty
	Field  string
	Reason string
}

func (e *MalformedEntityError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%v: field %q %s", ErrMalformedEntity, e.Field, e.Reason)
	}

	return fmt.Sprintf("%v %q: field %q %s", ErrMalformedEntity, e.ID, e.Field, e.Reason)
}

func (e *MalformedEntityError) Unwrap() error {
	return ErrMalformedEntity
}
