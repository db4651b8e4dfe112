package domain

import "fmt"

// ValidationError marks malformed input to a transition. It is raised
// before any store call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransitionError marks an operation attempted from an illegal source
// state. Raised locally; the store is never written.
type TransitionError struct {
	Op   string
	From Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s not allowed from %s", e.Op, e.From)
}

// PersistenceError marks a failed or stale authoritative write. Local
// caches must remain at their pre-call value when one is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: store write failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NotificationError marks a failed side-channel notification after a
// successful state write. Logged, never fatal.
type NotificationError struct {
	Kind string
	Err  error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.Kind, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }
