package apperrors

import (
	"errors"
	"net/http"
	"testing"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"auth", ErrAuth, http.StatusUnauthorized},
		{"permission", ErrPermission, http.StatusForbidden},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"validation", ErrValidation, http.StatusBadRequest},
		{"upstream", ErrUpstream, http.StatusInternalServerError},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped validation", Wrapf(ErrValidation, "library_id %q missing", "abc"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.want {
				t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestWrapPreservesIs(t *testing.T) {
	wrapped := Wrap(ErrNotFound, "library lookup")
	if !errors.Is(wrapped, ErrNotFound) {
		t.Errorf("Wrap() lost errors.Is matching against ErrNotFound")
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if err := Wrap(nil, "message"); err != nil {
		t.Errorf("Wrap(nil, ...) = %v, want nil", err)
	}
	if err := Wrapf(nil, "message %d", 1); err != nil {
		t.Errorf("Wrapf(nil, ...) = %v, want nil", err)
	}
}
