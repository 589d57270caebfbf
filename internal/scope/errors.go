package scope

import "fmt"

// ClashError is returned by Add when a derived key already exists in the
// local store. Resources are immutable once stored; replacing one is always
// an error, never an update.
type ClashError struct {
	Key Key
}

func (e *ClashError) Error() string {
	return fmt.Sprintf("scope already contains %s", e.Key)
}

// NotFoundError is returned by Remove in strict mode when the key has no
// local entry.
type NotFoundError struct {
	Key Key
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s in scope", e.Key)
}

// ResolutionError is returned when a mandatory requirement cannot be
// satisfied. Step is filled in by the runner when the failure happens inside
// a pipeline.
type ResolutionError struct {
	Requirement string
	Key         Key
	Step        string
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("%s could not be satisfied", e.Requirement)
	if e.Step != "" {
		msg += fmt.Sprintf(" while calling %s", e.Step)
	}
	return msg
}

// UsageError reports a malformed call into the engine, such as adding a
// value and a resolver under the same key.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string { return e.Reason }

func usageErrorf(format string, args ...any) error {
	return &UsageError{Reason: fmt.Sprintf(format, args...)}
}
