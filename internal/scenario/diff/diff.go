// Package diff compares the resolved states of two scenarios.
package diff

import (
	"sort"

	"github.com/steiner385/capacinator/internal/scenario/domain"
	"github.com/steiner385/capacinator/internal/scenario/resolve"
)

// FieldChange is one field that differs between two snapshots of an entity.
type FieldChange struct {
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

// Added is an entity present only in the second scenario.
type Added[T any] struct {
	EntityID string `json:"entity_id"`
	Value    T      `json:"value"`
}

// Removed is an entity present only in the first scenario.
type Removed[T any] struct {
	EntityID string `json:"entity_id"`
	Value    T      `json:"value"`
}

// Modified is an entity present in both scenarios with differing fields.
type Modified[T any] struct {
	EntityID string        `json:"entity_id"`
	Old      T             `json:"old"`
	New      T             `json:"new"`
	Fields   []FieldChange `json:"fields"`
}

// KindDiff groups the changes for one entity kind, each slice sorted by
// entity id.
type KindDiff[T any] struct {
	Added    []Added[T]    `json:"added,omitempty"`
	Removed  []Removed[T]  `json:"removed,omitempty"`
	Modified []Modified[T] `json:"modified,omitempty"`
}

// Impact summarizes a diff. NetAllocationChange is the signed sum of
// assignment allocation deltas: added allocations count positive, removed
// negative, modified contribute new minus old.
type Impact struct {
	ProjectsAdded       int     `json:"projects_added"`
	ProjectsRemoved     int     `json:"projects_removed"`
	ProjectsModified    int     `json:"projects_modified"`
	AssignmentsAdded    int     `json:"assignments_added"`
	AssignmentsRemoved  int     `json:"assignments_removed"`
	AssignmentsModified int     `json:"assignments_modified"`
	NetAllocationChange float64 `json:"net_allocation_change"`
}

// Diff is the itemized difference between two resolved scenario states,
// oriented first-to-second: Added means present only in the second.
type Diff struct {
	FromScenarioID string                      `json:"from_scenario_id"`
	ToScenarioID   string                      `json:"to_scenario_id"`
	Projects       KindDiff[domain.Project]    `json:"projects"`
	Assignments    KindDiff[domain.Assignment] `json:"assignments"`
	Impact         Impact                      `json:"impact"`
}

// Empty reports whether the two states were identical.
func (d Diff) Empty() bool {
	return len(d.Projects.Added) == 0 && len(d.Projects.Removed) == 0 && len(d.Projects.Modified) == 0 &&
		len(d.Assignments.Added) == 0 && len(d.Assignments.Removed) == 0 && len(d.Assignments.Modified) == 0
}

// Compare itemizes the differences between two resolved states. Comparison is
// by entity value only; where a value came from (its provenance scenario)
// never makes two identical entities differ.
func Compare(from, to resolve.State) Diff {
	d := Diff{
		FromScenarioID: from.ScenarioID,
		ToScenarioID:   to.ScenarioID,
	}

	d.Projects = compareKind(from.Projects, to.Projects, projectFieldChanges)
	d.Assignments = compareKind(from.Assignments, to.Assignments, assignmentFieldChanges)

	d.Impact.ProjectsAdded = len(d.Projects.Added)
	d.Impact.ProjectsRemoved = len(d.Projects.Removed)
	d.Impact.ProjectsModified = len(d.Projects.Modified)
	d.Impact.AssignmentsAdded = len(d.Assignments.Added)
	d.Impact.AssignmentsRemoved = len(d.Assignments.Removed)
	d.Impact.AssignmentsModified = len(d.Assignments.Modified)

	for _, added := range d.Assignments.Added {
		d.Impact.NetAllocationChange += added.Value.AllocationPercentage
	}
	for _, removed := range d.Assignments.Removed {
		d.Impact.NetAllocationChange -= removed.Value.AllocationPercentage
	}
	for _, modified := range d.Assignments.Modified {
		d.Impact.NetAllocationChange += modified.New.AllocationPercentage - modified.Old.AllocationPercentage
	}
	return d
}

// compareKind walks the sorted union of entity ids from both sides and
// classifies each entity as added, removed, modified, or unchanged.
func compareKind[T comparable](from, to map[string]resolve.Resolved[T], fieldChanges func(old, new T) []FieldChange) KindDiff[T] {
	ids := make([]string, 0, len(from)+len(to))
	seen := make(map[string]struct{}, len(from)+len(to))
	for id := range from {
		ids = append(ids, id)
		seen[id] = struct{}{}
	}
	for id := range to {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var kind KindDiff[T]
	for _, id := range ids {
		before, inFrom := from[id]
		after, inTo := to[id]
		switch {
		case !inFrom:
			kind.Added = append(kind.Added, Added[T]{EntityID: id, Value: after.Value})
		case !inTo:
			kind.Removed = append(kind.Removed, Removed[T]{EntityID: id, Value: before.Value})
		case before.Value != after.Value:
			kind.Modified = append(kind.Modified, Modified[T]{
				EntityID: id,
				Old:      before.Value,
				New:      after.Value,
				Fields:   fieldChanges(before.Value, after.Value),
			})
		}
	}
	return kind
}

func projectFieldChanges(old, new domain.Project) []FieldChange {
	var changes []FieldChange
	appendChange := func(field string, oldValue, newValue any) {
		if oldValue != newValue {
			changes = append(changes, FieldChange{Field: field, Old: oldValue, New: newValue})
		}
	}
	appendChange("name", old.Name, new.Name)
	appendChange("priority", old.Priority, new.Priority)
	appendChange("description", old.Description, new.Description)
	appendChange("include_in_demand", old.IncludeInDemand, new.IncludeInDemand)
	appendChange("aspiration_start", old.AspirationStart, new.AspirationStart)
	appendChange("aspiration_finish", old.AspirationFinish, new.AspirationFinish)
	return changes
}

func assignmentFieldChanges(old, new domain.Assignment) []FieldChange {
	var changes []FieldChange
	appendChange := func(field string, oldValue, newValue any) {
		if oldValue != newValue {
			changes = append(changes, FieldChange{Field: field, Old: oldValue, New: newValue})
		}
	}
	appendChange("project_id", old.ProjectID, new.ProjectID)
	appendChange("person_id", old.PersonID, new.PersonID)
	appendChange("role_id", old.RoleID, new.RoleID)
	appendChange("allocation_percentage", old.AllocationPercentage, new.AllocationPercentage)
	appendChange("start_date", old.StartDate, new.StartDate)
	appendChange("end_date", old.EndDate, new.EndDate)
	appendChange("notes", old.Notes, new.Notes)
	return changes
}
