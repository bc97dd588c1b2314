package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected", detailsOK: true},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestNewReasonDerivesCode(t *testing.T) {
	tests := []struct {
		reason Reason
		code   Code
	}{
		{ReasonInvalidTransition, CodeStateConflict},
		{ReasonConsultationPending, CodeStateConflict},
		{ReasonAlreadyActive, CodeConflict},
		{ReasonAlreadyPending, CodeConflict},
		{ReasonAlreadyUsed, CodeConflict},
		{ReasonAlreadyResolved, CodeConflict},
		{ReasonAlreadyTerminal, CodeStateConflict},
		{ReasonAlreadyReleased, CodeConflict},
		{ReasonInvalidAmount, CodeValidation},
		{ReasonNoOpAdjustment, CodeValidation},
		{ReasonInvalidJustification, CodeValidation},
		{ReasonTopUpFailed, CodeDependency},
		{ReasonDuplicateHold, CodeConflict},
		{ReasonNotHeld, CodeStateConflict},
		{ReasonUnauthorized, CodeForbidden},
	}
	for _, tt := range tests {
		err := NewReason(tt.reason, "nope")
		if err.Code() != tt.code {
			t.Fatalf("reason %s expected code %s got %s", tt.reason, tt.code, err.Code())
		}
		if err.Reason() != tt.reason {
			t.Fatalf("reason lost on %s", tt.reason)
		}
	}
}

func TestReasonIsSeesThroughWrapping(t *testing.T) {
	base := NewReason(ReasonAlreadyTerminal, "order is done")
	wrapped := fmt.Errorf("advance order: %w", base)
	if !ReasonIs(wrapped, ReasonAlreadyTerminal) {
		t.Fatalf("expected ReasonIs to match through wrapping")
	}
	if ReasonIs(wrapped, ReasonAlreadyPending) {
		t.Fatalf("unexpected reason match")
	}
	if ReasonIs(stdErrors.New("plain"), ReasonAlreadyTerminal) {
		t.Fatalf("plain error should not match any reason")
	}
}

func TestWrapReasonPreservesCause(t *testing.T) {
	cause := stdErrors.New("card declined")
	err := WrapReason(ReasonTopUpFailed, cause, "charge additional amount")
	if !stdErrors.Is(err, cause) {
		t.Fatalf("cause lost")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if As(err) == nil {
		t.Fatalf("expected typed error")
	}
	if As(stdErrors.New("plain")) != nil {
		t.Fatalf("plain errors should not convert")
	}
}
