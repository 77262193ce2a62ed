package faults

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := New(KindNotFound, "history", "AAPL", "unknown symbol")
	if got := KindOf(err); got != KindNotFound {
		t.Errorf("KindOf = %q, want %q", got, KindNotFound)
	}
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Errorf("KindOf(plain) = %q, want %q", got, KindInternal)
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := New(KindZeroActual, "reconcile", "AAPL", "closed at zero")
	wrapped := fmt.Errorf("pass failed: %w", inner)
	if !IsKind(wrapped, KindZeroActual) {
		t.Error("IsKind lost the kind through fmt.Errorf wrapping")
	}
	if IsKind(wrapped, KindInput) {
		t.Error("IsKind matched the wrong kind")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, KindUpstreamUnavailable, "history", "AAPL")
	if !errors.Is(err, cause) {
		t.Error("Wrap broke the unwrap chain")
	}
	if KindOf(err) != KindUpstreamUnavailable {
		t.Errorf("KindOf = %q", KindOf(err))
	}
}

func TestKindMatchingGoesThroughIsKind(t *testing.T) {
	a := New(KindInput, "predict", "AAPL", "bad horizon")
	b := New(KindInput, "history", "MSFT", "bad lookback")
	// Faults compare by kind via IsKind only; errors.Is matches the unwrap
	// chain and distinct faults are never equal through it.
	if errors.Is(a, b) {
		t.Error("distinct faults must not compare equal via errors.Is")
	}
	if !IsKind(a, KindInput) || !IsKind(b, KindInput) {
		t.Error("IsKind should match both faults by kind")
	}
}

func TestErrorStringIncludesContext(t *testing.T) {
	err := New(KindInput, "predict", "AAPL", "horizon must be positive, got %d", -1)
	want := "predict: input: AAPL: horizon must be positive, got -1"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	noSym := New(KindInternal, "export", "", "disk full")
	if noSym.Error() != "export: internal: disk full" {
		t.Errorf("Error() = %q", noSym.Error())
	}
}
