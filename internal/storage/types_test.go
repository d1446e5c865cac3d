package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapContextErrorDeadline(t *testing.T) {
	err := MapContextError(context.DeadlineExceeded)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout for deadline exceeded, got %v", err)
	}
}

func TestMapContextErrorWrappedDeadline(t *testing.T) {
	// Drivers wrap the context error before it reaches the mapper.
	driverErr := fmt.Errorf("driver: query aborted: %w", context.DeadlineExceeded)

	err := MapContextError(driverErr)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout for wrapped deadline, got %v", err)
	}
}

func TestMapContextErrorPassthrough(t *testing.T) {
	original := errors.New("disk full")

	if err := MapContextError(original); err != original {
		t.Errorf("expected non-deadline error unchanged, got %v", err)
	}
	if err := MapContextError(nil); err != nil {
		t.Errorf("expected nil to pass through, got %v", err)
	}
	// context.Canceled is not a timeout; it must not become retryable.
	if err := MapContextError(context.Canceled); errors.Is(err, ErrTimeout) {
		t.Error("context.Canceled must not map to ErrTimeout")
	}
}
