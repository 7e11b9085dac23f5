// Package btreeerr defines the error taxonomy shared across pkg/btree:
// invalid-argument and invalid-mode are plain struct errors without a stack
// trace that a caller is expected to check for and handle; CorruptionError is fatal and carries
// a stack trace since it signals a bug or on-disk damage a caller cannot
// recover from locally.
package btreeerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// InvalidArgumentError reports a caller-supplied argument that violates a
// documented precondition (e.g. a nil comparator, a page size too small to
// hold the minimum element count).
type InvalidArgumentError struct {
	Arg    string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("btree: invalid argument %q: %s", e.Arg, e.Reason)
}

// NewInvalidArgument builds an InvalidArgumentError for argument name with
// the given reason.
func NewInvalidArgument(arg, reason string) *InvalidArgumentError {
	return &InvalidArgumentError{Arg: arg, Reason: reason}
}

// InvalidModeError reports an operation attempted while the tree is in a
// mode that forbids it — e.g. a mutation attempted while a traversal
// iterator is live, or a mutation attempted on a tree whose storage is
// read-only.
type InvalidModeError struct {
	Operation string
	Reason    string
}

func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("btree: invalid mode for %q: %s", e.Operation, e.Reason)
}

// NewInvalidMode builds an InvalidModeError for the named operation.
func NewInvalidMode(operation, reason string) *InvalidModeError {
	return &InvalidModeError{Operation: operation, Reason: reason}
}

// CorruptionError is fatal: it reports on-page structure that violates an
// invariant the tree relies on (bad is_leaf flag, out-of-range child
// pointer, count outside [min_pair_count, max_pair_count], keys out of
// order). It wraps github.com/pkg/errors so the stack at detection time
// survives up through Validate's multierr aggregation.
type CorruptionError struct {
	cause error
	Page  int64
	Field string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("btree: corruption at page %d field %q: %v", e.Page, e.Field, e.cause)
}

func (e *CorruptionError) Unwrap() error { return e.cause }

// NewCorruption builds a CorruptionError for the given page and field,
// attaching a stack trace via github.com/pkg/errors.
func NewCorruption(page int64, field string, reason string) *CorruptionError {
	return &CorruptionError{
		cause: errors.New(reason),
		Page:  page,
		Field: field,
	}
}

// StackTrace exposes the pkg/errors stack captured at construction, for
// callers that want to log it (see btree's logging of Error-level events).
func (e *CorruptionError) StackTrace() errors.StackTrace {
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	if st, ok := e.cause.(stackTracer); ok {
		return st.StackTrace()
	}
	return nil
}
