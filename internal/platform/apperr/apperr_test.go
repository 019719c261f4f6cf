package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessageIncludesOp(t *testing.T) {
	err := Data("read csv", errors.New("ragged row"))
	if got := err.Error(); got != "read csv: ragged row" {
		t.Fatalf("message=%q", got)
	}
}

func TestKindOfUnwrapsNestedErrors(t *testing.T) {
	inner := IO("fetch dataset", errors.New("timeout"))
	wrapped := fmt.Errorf("ingest: %w", inner)
	if got := KindOf(wrapped); got != KindIO {
		t.Fatalf("kind=%q want io", got)
	}
}

func TestKindOfPlainError(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != "" {
		t.Fatalf("kind=%q want empty", got)
	}
	if got := KindOf(nil); got != "" {
		t.Fatalf("kind(nil)=%q want empty", got)
	}
}

func TestUnwrapPreservesSentinel(t *testing.T) {
	sentinel := errors.New("boom")
	err := Model("score", fmt.Errorf("wrap: %w", sentinel))
	if !errors.Is(err, sentinel) {
		t.Fatalf("errors.Is lost the sentinel")
	}
}
