package btreeerr

import (
	"errors"
	"strings"
	"testing"
)

func TestInvalidArgumentError(t *testing.T) {
	err := NewInvalidArgument("comparator", "must not be nil")
	if !strings.Contains(err.Error(), "comparator") {
		t.Fatalf("expected message to mention argument name, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "must not be nil") {
		t.Fatalf("expected message to mention reason, got %q", err.Error())
	}
}

func TestInvalidModeError(t *testing.T) {
	err := NewInvalidMode("Insert", "a traversal is in progress")
	if !strings.Contains(err.Error(), "Insert") {
		t.Fatalf("expected message to mention operation, got %q", err.Error())
	}
}

func TestCorruptionErrorUnwrap(t *testing.T) {
	err := NewCorruption(7, "is_leaf", "expected 0 or 1")
	if err.Page != 7 || err.Field != "is_leaf" {
		t.Fatalf("unexpected fields: %+v", err)
	}
	if errors.Unwrap(err) == nil {
		t.Fatalf("expected Unwrap to expose the wrapped cause")
	}
	if st := err.StackTrace(); st == nil {
		t.Fatalf("expected a non-nil stack trace")
	}
}
