package errors

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeScenarioNotFound, "scenario missing")
	target := New(CodeScenarioNotFound, "different message")

	if !errors.Is(err, target) {
		t.Fatal("expected errors with same code to match")
	}

	other := New(CodeScenarioNoParent, "scenario missing")
	if errors.Is(err, other) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapUnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeStorageUnavailable, "write delta", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be found")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	var domainErr *Error
	if !errors.As(wrapped, &domainErr) {
		t.Fatal("expected domain error in chain")
	}
	if domainErr.Code != CodeStorageUnavailable {
		t.Fatalf("code = %s, want %s", domainErr.Code, CodeStorageUnavailable)
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeScenarioNameEmpty, codes.InvalidArgument},
		{CodeScenarioNotFound, codes.NotFound},
		{CodeScenarioNoParent, codes.FailedPrecondition},
		{CodeScenarioDepthExceeded, codes.FailedPrecondition},
		{CodeScenarioCycleDetected, codes.Internal},
		{CodeDeltaConflict, codes.Aborted},
		{CodeApplyInProgress, codes.Aborted},
		{CodeStorageUnavailable, codes.Unavailable},
		{CodeUnknown, codes.Internal},
		{Code("SOMETHING_NEW"), codes.Internal},
	}

	for _, tt := range tests {
		if got := tt.code.GRPCCode(); got != tt.want {
			t.Errorf("GRPCCode(%s) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestToGRPCStatusAttachesDetails(t *testing.T) {
	err := WithMetadata(CodeDeltaConflict, "delta updated concurrently", map[string]string{
		"scenario_id": "scn-1",
		"entity_id":   "asg-1",
	})

	stErr := err.ToGRPCStatus("en-US", "This plan was changed by someone else.")
	st, ok := status.FromError(stErr)
	if !ok {
		t.Fatalf("expected gRPC status, got %v", stErr)
	}
	if st.Code() != codes.Aborted {
		t.Fatalf("status code = %v, want %v", st.Code(), codes.Aborted)
	}

	var foundInfo, foundLocalized bool
	for _, detail := range st.Details() {
		switch d := detail.(type) {
		case *errdetails.ErrorInfo:
			foundInfo = true
			if d.Reason != string(CodeDeltaConflict) {
				t.Fatalf("reason = %s, want %s", d.Reason, CodeDeltaConflict)
			}
			if d.Metadata["scenario_id"] != "scn-1" {
				t.Fatalf("metadata scenario_id = %q", d.Metadata["scenario_id"])
			}
		case *errdetails.LocalizedMessage:
			foundLocalized = true
			if d.Locale != "en-US" {
				t.Fatalf("locale = %s, want en-US", d.Locale)
			}
		}
	}
	if !foundInfo || !foundLocalized {
		t.Fatalf("missing status details: info=%v localized=%v", foundInfo, foundLocalized)
	}
}
