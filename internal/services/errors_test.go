package services

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("socket closed")
	err := Wrap(ErrConnectivity, "catalog", "find", "store unreachable", base)
	if !errors.Is(err, ErrConnectivity) {
		t.Fatalf("expected wrapped error to match ErrConnectivity: %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to preserve cause: %v", err)
	}
}

func TestWrapDefaultsToConnectivity(t *testing.T) {
	err := Wrap(nil, "reconcile", "update", "", nil)
	if !errors.Is(err, ErrConnectivity) {
		t.Fatalf("nil marker should default to ErrConnectivity: %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"connectivity", Wrap(ErrConnectivity, "store", "ping", "", nil), true},
		{"validation", Wrap(ErrValidation, "reconcile", "check", "missing season", nil), false},
		{"data", Wrap(ErrData, "resolver", "entry", "no tmdb id", nil), false},
		{"not identified", ErrNotIdentified, false},
		{"plain error", fmt.Errorf("boom"), true},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	if kind := Classify(Wrap(ErrValidation, "x", "y", "", nil)); kind != FailureValidation {
		t.Fatalf("expected validation kind, got %s", kind)
	}
	if kind := Classify(ErrNotIdentified); kind != FailureNotIdentified {
		t.Fatalf("expected not_identified kind, got %s", kind)
	}
	if kind := Classify(errors.New("mystery")); kind != FailureUnknown {
		t.Fatalf("expected unknown kind, got %s", kind)
	}
}
