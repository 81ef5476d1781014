package model

import (
	"errors"
	"fmt"
)

// Error kinds. Concrete errors wrap one of these so callers can branch with
// errors.Is.
var (
	ErrSourceUnreadable = errors.New("source unreadable")
	ErrLineParse        = errors.New("line parse error")
	ErrSchemaMismatch   = errors.New("schema mismatch")
	ErrStoreWrite       = errors.New("store write failure")
	ErrProcessSpawn     = errors.New("process spawn failure")
	ErrProcessRuntime   = errors.New("process runtime failure")
)

// SchemaMismatch reports a recognized event shape missing an expected
// sub-field. The offending part is dropped; the owning event is kept.
type SchemaMismatch struct {
	EventUUID string
	Type      string
	Detail    string
}

func (e *SchemaMismatch) Error() string {
	if e.EventUUID != "" {
		return fmt.Sprintf("schema mismatch in %s event %s: %s", e.Type, e.EventUUID, e.Detail)
	}
	return fmt.Sprintf("schema mismatch in %s event: %s", e.Type, e.Detail)
}

func (e *SchemaMismatch) Unwrap() error { return ErrSchemaMismatch }
