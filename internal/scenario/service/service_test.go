package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/steiner385/capacinator/internal/scenario/domain"
	"github.com/steiner385/capacinator/internal/scenario/resolve"
	"github.com/steiner385/capacinator/internal/scenario/storage/sqlite"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	store, err := sqlite.Open(t.TempDir() + "/scenario.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})

	sequence := 0
	defaults := []Option{
		WithClock(func() time.Time { return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC) }),
		WithIDGenerator(func() (string, error) {
			sequence++
			return fmt.Sprintf("scn-%04d", sequence), nil
		}),
	}
	return New(store, append(defaults, opts...)...)
}

func createTestScenario(t *testing.T, engine *Engine, name string, scenarioType domain.ScenarioType, parentID string) domain.Scenario {
	t.Helper()
	scenario, err := engine.CreateScenario(context.Background(), domain.CreateScenarioInput{
		Name:     name,
		Type:     scenarioType,
		Status:   domain.ScenarioStatusActive,
		ParentID: parentID,
	})
	if err != nil {
		t.Fatalf("create scenario %s: %v", name, err)
	}
	return scenario
}

func putTestDelta(t *testing.T, engine *Engine, scenarioID string, op domain.Operation, payload domain.Payload) domain.Record {
	t.Helper()
	record, err := engine.PutDelta(context.Background(), domain.Record{
		ScenarioID: scenarioID,
		EntityKind: payload.Kind(),
		EntityID:   payload.PayloadID(),
		Op:         op,
	}, nil)
	if err != nil {
		t.Fatalf("put delta %s/%s: %v", scenarioID, payload.PayloadID(), err)
	}
	return record
}

func TestBranchResolveCompareApply(t *testing.T) {
	engine := newTestEngine(t)

	base := createTestScenario(t, engine, "Plan of Record", domain.ScenarioTypeBaseline, "")
	branch := createTestScenario(t, engine, "Hiring Freeze", domain.ScenarioTypeBranch, base.ID)

	baseAsg := domain.Assignment{ID: "asg-x", ProjectID: "prj-1", PersonID: "per-1", AllocationPercentage: 50}
	raised := baseAsg
	raised.AllocationPercentage = 80
	added := domain.Assignment{ID: "asg-y", ProjectID: "prj-1", PersonID: "per-2", AllocationPercentage: 20}

	putTestDelta(t, engine, base.ID, domain.Add{Payload: baseAsg}, baseAsg)
	putTestDelta(t, engine, branch.ID, domain.Override{Payload: raised}, raised)
	putTestDelta(t, engine, branch.ID, domain.Add{Payload: added}, added)

	// The branch sees its own edits layered over the base.
	state, err := engine.Resolve(context.Background(), branch.ID)
	if err != nil {
		t.Fatalf("resolve branch: %v", err)
	}
	if got := state.Assignments["asg-x"]; got.Value.AllocationPercentage != 80 || got.ScenarioID != branch.ID {
		t.Fatalf("asg-x = %+v, want allocation 80 from the branch", got)
	}
	if got := state.Assignments["asg-y"]; got.Value != added {
		t.Fatalf("asg-y = %+v", got)
	}

	// The base is untouched until the apply.
	d, err := engine.Compare(context.Background(), base.ID, branch.ID)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if d.Impact.AssignmentsAdded != 1 || d.Impact.AssignmentsModified != 1 {
		t.Fatalf("impact = %+v", d.Impact)
	}
	if d.Impact.NetAllocationChange != 50 {
		t.Fatalf("net allocation = %v, want 50 (+30 raise, +20 add)", d.Impact.NetAllocationChange)
	}

	count, err := engine.ApplyToParent(context.Background(), branch.ID)
	if err != nil {
		t.Fatalf("apply to parent: %v", err)
	}
	if count != 2 {
		t.Fatalf("applied count = %d, want 2", count)
	}

	// After the apply the base carries the branch's edits and the branch is
	// an empty layer resolving to the same state.
	baseState, err := engine.Resolve(context.Background(), base.ID)
	if err != nil {
		t.Fatalf("resolve base: %v", err)
	}
	if got := baseState.Assignments["asg-x"]; got.Value.AllocationPercentage != 80 {
		t.Fatalf("base asg-x allocation = %v, want 80", got.Value.AllocationPercentage)
	}
	if _, ok := baseState.Assignments["asg-y"]; !ok {
		t.Fatal("base is missing the applied asg-y")
	}

	records, err := engine.GetDeltas(context.Background(), branch.ID)
	if err != nil {
		t.Fatalf("get branch deltas: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("branch deltas = %d, want 0 after apply", len(records))
	}

	after, err := engine.Compare(context.Background(), base.ID, branch.ID)
	if err != nil {
		t.Fatalf("compare after apply: %v", err)
	}
	if !after.Empty() {
		t.Fatalf("expected empty diff after apply, got %+v", after)
	}
}

func TestApplyToParentOnBaseline(t *testing.T) {
	engine := newTestEngine(t)
	base := createTestScenario(t, engine, "Plan of Record", domain.ScenarioTypeBaseline, "")

	_, err := engine.ApplyToParent(context.Background(), base.ID)
	if !errors.Is(err, ErrNoParent) {
		t.Fatalf("expected no-parent error, got %v", err)
	}
}

func TestApplyToParentRejectsConcurrentApply(t *testing.T) {
	engine := newTestEngine(t)
	base := createTestScenario(t, engine, "Plan of Record", domain.ScenarioTypeBaseline, "")
	branch := createTestScenario(t, engine, "Branch", domain.ScenarioTypeBranch, base.ID)

	// Hold the apply slot the way an in-flight apply would.
	if !engine.beginApply(branch.ID) {
		t.Fatal("begin apply")
	}
	defer engine.endApply(branch.ID)

	_, err := engine.ApplyToParent(context.Background(), branch.ID)
	if !errors.Is(err, ErrApplyInProgress) {
		t.Fatalf("expected apply-in-progress error, got %v", err)
	}

	// A different scenario is not blocked.
	other := createTestScenario(t, engine, "Other", domain.ScenarioTypeBranch, base.ID)
	if _, err := engine.ApplyToParent(context.Background(), other.ID); err != nil {
		t.Fatalf("apply other branch: %v", err)
	}
}

func TestCreateScenarioRequiresExistingParent(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.CreateScenario(context.Background(), domain.CreateScenarioInput{
		Name:     "Orphan",
		Type:     domain.ScenarioTypeBranch,
		ParentID: "scn-missing",
	})
	if !errors.Is(err, resolve.ErrUnknownScenario) {
		t.Fatalf("expected unknown scenario error, got %v", err)
	}
}

func TestPutDeltaConflictSurfacesDomainError(t *testing.T) {
	engine := newTestEngine(t)
	base := createTestScenario(t, engine, "Plan of Record", domain.ScenarioTypeBaseline, "")

	project := domain.Project{ID: "prj-1", Name: "Atlas"}
	stored := putTestDelta(t, engine, base.ID, domain.Add{Payload: project}, project)

	stale := stored.UpdatedAt.Add(-time.Minute)
	_, err := engine.PutDelta(context.Background(), domain.Record{
		ScenarioID: base.ID,
		EntityKind: domain.EntityKindProject,
		EntityID:   "prj-1",
		Op:         domain.Remove{},
	}, &stale)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}

	// The matching timestamp goes through.
	current := stored.UpdatedAt
	if _, err := engine.PutDelta(context.Background(), domain.Record{
		ScenarioID: base.ID,
		EntityKind: domain.EntityKindProject,
		EntityID:   "prj-1",
		Op:         domain.Remove{},
	}, &current); err != nil {
		t.Fatalf("put with current timestamp: %v", err)
	}
}

func TestPutDeltaValidation(t *testing.T) {
	engine := newTestEngine(t)
	base := createTestScenario(t, engine, "Plan of Record", domain.ScenarioTypeBaseline, "")

	_, err := engine.PutDelta(context.Background(), domain.Record{
		ScenarioID: base.ID,
		EntityKind: domain.EntityKindProject,
		EntityID:   "prj-1",
		Op:         domain.Add{},
	}, nil)
	if !errors.Is(err, domain.ErrDeltaMissingPayload) {
		t.Fatalf("expected missing payload error, got %v", err)
	}
}

func TestDeleteDeltaInvalidatesCachedResolution(t *testing.T) {
	engine := newTestEngine(t)
	base := createTestScenario(t, engine, "Plan of Record", domain.ScenarioTypeBaseline, "")
	branch := createTestScenario(t, engine, "Branch", domain.ScenarioTypeBranch, base.ID)

	project := domain.Project{ID: "prj-1", Name: "Atlas", Priority: 1}
	edited := project
	edited.Priority = 9
	putTestDelta(t, engine, base.ID, domain.Add{Payload: project}, project)
	putTestDelta(t, engine, branch.ID, domain.Override{Payload: edited}, edited)

	// Prime the resolution cache with the overridden view before deleting.
	primed, err := engine.Resolve(context.Background(), branch.ID)
	if err != nil {
		t.Fatalf("prime resolve: %v", err)
	}
	if primed.Projects["prj-1"].Value.Priority != 9 {
		t.Fatalf("primed priority = %d, want 9", primed.Projects["prj-1"].Value.Priority)
	}

	if err := engine.DeleteDelta(context.Background(), branch.ID, domain.EntityKindProject, "prj-1"); err != nil {
		t.Fatalf("delete delta: %v", err)
	}

	state, err := engine.Resolve(context.Background(), branch.ID)
	if err != nil {
		t.Fatalf("resolve after delete: %v", err)
	}
	if got := state.Projects["prj-1"]; got.Value != project || got.ScenarioID != base.ID {
		t.Fatalf("project = %+v, want the inherited base value after the delete", got)
	}
}

func TestDeleteDeltaRevertsToInherited(t *testing.T) {
	engine := newTestEngine(t)
	base := createTestScenario(t, engine, "Plan of Record", domain.ScenarioTypeBaseline, "")
	branch := createTestScenario(t, engine, "Branch", domain.ScenarioTypeBranch, base.ID)

	project := domain.Project{ID: "prj-1", Name: "Atlas", Priority: 1}
	edited := project
	edited.Priority = 9
	putTestDelta(t, engine, base.ID, domain.Add{Payload: project}, project)
	putTestDelta(t, engine, branch.ID, domain.Override{Payload: edited}, edited)

	if err := engine.DeleteDelta(context.Background(), branch.ID, domain.EntityKindProject, "prj-1"); err != nil {
		t.Fatalf("delete delta: %v", err)
	}

	state, err := engine.Resolve(context.Background(), branch.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := state.Projects["prj-1"]; got.Value != project || got.ScenarioID != base.ID {
		t.Fatalf("project = %+v, want the inherited base value", got)
	}
}
