package utils

import (
	"errors"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{E(CodeInvalidArgument, "op", "bad", nil), http.StatusBadRequest},
		{E(CodeNotFound, "op", "missing", nil), http.StatusNotFound},
		{E(CodeFailedPrecondition, "op", "stopping", nil), http.StatusConflict},
		{E(CodeInternal, "op", "boom", errors.New("x")), http.StatusInternalServerError},
		{ErrNotFound, http.StatusNotFound},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestSafeMessageHidesWrappedError(t *testing.T) {
	err := E(CodeInternal, "SessionService.Get", "failed to get session", errors.New("dial tcp: refused"))
	if got := SafeMessage(err); got != "failed to get session" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := SafeMessage(errors.New("raw")); got != "Unknown error" {
		t.Fatalf("unexpected message %q", got)
	}
	if !IsCode(err, CodeInternal) || CodeOf(err) != CodeInternal {
		t.Fatal("expected internal code")
	}
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	type payload struct {
		SessionID string  `json:"sessionId" validate:"required"`
		Start     float64 `json:"start" validate:"gte=0"`
	}
	err := ValidateStruct("test", payload{Start: -1})
	if !IsCode(err, CodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	fields := FieldErrors(err)
	if fields["sessionId"] != "required" || fields["start"] != "gte" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if err := ValidateStruct("test", payload{SessionID: "s1"}); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
}
