// Package errors provides structured error handling with machine-readable
// codes and transport status mapping.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Scenario errors
	CodeScenarioNameEmpty         Code = "SCENARIO_NAME_EMPTY"
	CodeScenarioInvalidType       Code = "SCENARIO_INVALID_TYPE"
	CodeScenarioInvalidStatus     Code = "SCENARIO_INVALID_STATUS"
	CodeScenarioBaselineHasParent Code = "SCENARIO_BASELINE_HAS_PARENT"
	CodeScenarioParentRequired    Code = "SCENARIO_PARENT_REQUIRED"
	CodeScenarioNotFound          Code = "SCENARIO_NOT_FOUND"
	CodeScenarioCycleDetected     Code = "SCENARIO_CYCLE_DETECTED"
	CodeScenarioDepthExceeded     Code = "SCENARIO_DEPTH_EXCEEDED"
	CodeScenarioNoParent          Code = "SCENARIO_NO_PARENT"

	// Delta errors
	CodeDeltaEmptyScenarioID Code = "DELTA_EMPTY_SCENARIO_ID"
	CodeDeltaEmptyEntityID   Code = "DELTA_EMPTY_ENTITY_ID"
	CodeDeltaInvalidKind     Code = "DELTA_INVALID_ENTITY_KIND"
	CodeDeltaMissingPayload  Code = "DELTA_MISSING_PAYLOAD"
	CodeDeltaKindMismatch    Code = "DELTA_PAYLOAD_KIND_MISMATCH"
	CodeDeltaConflict        Code = "DELTA_CONFLICT"

	// Apply errors
	CodeApplyInProgress Code = "APPLY_IN_PROGRESS"

	// Storage errors
	CodeNotFound           Code = "NOT_FOUND"
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeScenarioNameEmpty,
		CodeScenarioInvalidType,
		CodeScenarioInvalidStatus,
		CodeScenarioBaselineHasParent,
		CodeScenarioParentRequired,
		CodeDeltaEmptyScenarioID,
		CodeDeltaEmptyEntityID,
		CodeDeltaInvalidKind,
		CodeDeltaMissingPayload,
		CodeDeltaKindMismatch:
		return codes.InvalidArgument

	// NotFound - missing records
	case CodeScenarioNotFound,
		CodeNotFound:
		return codes.NotFound

	// FailedPrecondition - state doesn't allow operation
	case CodeScenarioNoParent,
		CodeScenarioDepthExceeded:
		return codes.FailedPrecondition

	// Aborted - concurrency conflicts the caller may retry
	case CodeDeltaConflict,
		CodeApplyInProgress:
		return codes.Aborted

	// Unavailable - transient storage failures
	case CodeStorageUnavailable:
		return codes.Unavailable

	// Internal - invariant violations and unknown failures
	case CodeScenarioCycleDetected,
		CodeUnknown:
		return codes.Internal

	default:
		return codes.Internal
	}
}
