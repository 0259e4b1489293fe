package domain

import (
	"errors"
	"testing"
)

func TestNewRecordAdd(t *testing.T) {
	assignment := Assignment{ID: "asg-1", ProjectID: "prj-1", PersonID: "per-1", AllocationPercentage: 50}

	record, err := NewRecord("scn-1", EntityKindAssignment, "asg-1", Add{Payload: assignment}, fixedNow)
	if err != nil {
		t.Fatalf("new record: %v", err)
	}

	if record.UpdatedAt != fixedNow() {
		t.Fatal("expected timestamp from injected clock")
	}
	payload, ok := OperationPayload(record.Op)
	if !ok {
		t.Fatal("expected payload on ADD")
	}
	got, ok := payload.(Assignment)
	if !ok {
		t.Fatalf("payload type = %T, want Assignment", payload)
	}
	if got.AllocationPercentage != 50 {
		t.Fatalf("allocation = %v, want 50", got.AllocationPercentage)
	}
}

func TestNewRecordRemoveCarriesNoPayload(t *testing.T) {
	record, err := NewRecord("scn-1", EntityKindProject, "prj-1", Remove{}, fixedNow)
	if err != nil {
		t.Fatalf("new record: %v", err)
	}

	if _, ok := OperationPayload(record.Op); ok {
		t.Fatal("REMOVE must not carry a payload")
	}
	if OperationName(record.Op) != OpNameRemove {
		t.Fatalf("operation name = %q, want %q", OperationName(record.Op), OpNameRemove)
	}
}

func TestNewRecordRejectsEmptyIDs(t *testing.T) {
	project := Project{ID: "prj-1", Name: "Atlas"}

	_, err := NewRecord("", EntityKindProject, "prj-1", Add{Payload: project}, fixedNow)
	if !errors.Is(err, ErrDeltaEmptyScenarioID) {
		t.Fatalf("expected ErrDeltaEmptyScenarioID, got %v", err)
	}

	_, err = NewRecord("scn-1", EntityKindProject, " ", Add{Payload: project}, fixedNow)
	if !errors.Is(err, ErrDeltaEmptyEntityID) {
		t.Fatalf("expected ErrDeltaEmptyEntityID, got %v", err)
	}
}

func TestNewRecordRejectsMissingPayload(t *testing.T) {
	_, err := NewRecord("scn-1", EntityKindProject, "prj-1", Add{}, fixedNow)
	if !errors.Is(err, ErrDeltaMissingPayload) {
		t.Fatalf("expected ErrDeltaMissingPayload, got %v", err)
	}

	_, err = NewRecord("scn-1", EntityKindProject, "prj-1", nil, fixedNow)
	if !errors.Is(err, ErrDeltaMissingPayload) {
		t.Fatalf("expected ErrDeltaMissingPayload for nil op, got %v", err)
	}
}

func TestNewRecordRejectsKindMismatch(t *testing.T) {
	assignment := Assignment{ID: "asg-1", ProjectID: "prj-1", PersonID: "per-1"}

	_, err := NewRecord("scn-1", EntityKindProject, "asg-1", Override{Payload: assignment}, fixedNow)
	if !errors.Is(err, ErrDeltaKindMismatch) {
		t.Fatalf("expected ErrDeltaKindMismatch for wrong kind, got %v", err)
	}

	_, err = NewRecord("scn-1", EntityKindAssignment, "asg-other", Override{Payload: assignment}, fixedNow)
	if !errors.Is(err, ErrDeltaKindMismatch) {
		t.Fatalf("expected ErrDeltaKindMismatch for wrong id, got %v", err)
	}
}

func TestNewRecordRejectsUnknownKind(t *testing.T) {
	_, err := NewRecord("scn-1", EntityKind("person"), "per-1", Remove{}, fixedNow)
	if !errors.Is(err, ErrInvalidEntityKind) {
		t.Fatalf("expected ErrInvalidEntityKind, got %v", err)
	}
}

func TestOperationNameUnknown(t *testing.T) {
	if OperationName(nil) != "" {
		t.Fatal("expected empty name for nil operation")
	}
}
