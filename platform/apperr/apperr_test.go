package apperr

import (
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusByKind(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{NotFound("x"), http.StatusNotFound},
		{Validation("x"), http.StatusBadRequest},
		{Conflict("x"), http.StatusConflict},
		{Forbidden("x"), http.StatusForbidden},
		{Unauthorized("x"), http.StatusUnauthorized},
		{InvalidTransition("x"), http.StatusUnprocessableEntity},
		{Unavailable("x", nil), http.StatusServiceUnavailable},
		{Internal("x"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		if got := tc.err.HTTPStatus(); got != tc.want {
			t.Errorf("kind %d: expected status %d, got %d", tc.err.Kind, tc.want, got)
		}
	}
}

func TestGetKindFollowsWrapChain(t *testing.T) {
	base := Forbidden("not your lead")
	wrapped := fmt.Errorf("assign: %w", base)

	if !Is(wrapped, KindForbidden) {
		t.Fatalf("expected wrapped error to be forbidden, got kind %d", GetKind(wrapped))
	}
	if !HasCode(wrapped, CodeForbidden) {
		t.Fatalf("expected code %q to be visible through wrap", CodeForbidden)
	}
}

func TestWithCodeOverridesDefault(t *testing.T) {
	err := InvalidTransition("lead is in progress").WithCode(CodeLeadAlreadyInProgress)
	if err.Code != CodeLeadAlreadyInProgress {
		t.Fatalf("expected code %q, got %q", CodeLeadAlreadyInProgress, err.Code)
	}
	if err.Kind != KindInvalidTransition {
		t.Fatalf("expected kind to stay invalid transition")
	}
}

func TestFieldValidationDetails(t *testing.T) {
	err := FieldValidation("reason", "reason is required")
	details, ok := err.Details.(map[string]string)
	if !ok {
		t.Fatalf("expected map details, got %T", err.Details)
	}
	if details["reason"] != "reason is required" {
		t.Fatalf("unexpected details: %v", details)
	}
}
