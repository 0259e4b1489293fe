// Package service exposes the scenario engine: branching, resolution,
// comparison, and apply-to-parent over a shared store.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/steiner385/capacinator/internal/platform/errors"
	"github.com/steiner385/capacinator/internal/scenario/diff"
	"github.com/steiner385/capacinator/internal/scenario/domain"
	"github.com/steiner385/capacinator/internal/scenario/resolve"
	"github.com/steiner385/capacinator/internal/scenario/storage"
)

const tracerName = "capacinator/scenario"

var (
	// ErrNoParent indicates an apply on a scenario without a parent.
	ErrNoParent = apperrors.New(apperrors.CodeScenarioNoParent, "baseline scenario has no parent to apply into")
	// ErrApplyInProgress indicates a concurrent apply on the same scenario.
	ErrApplyInProgress = apperrors.New(apperrors.CodeApplyInProgress, "an apply is already running for this scenario")
	// ErrConflict indicates a delta changed since the caller last read it.
	ErrConflict = apperrors.New(apperrors.CodeDeltaConflict, "delta was updated concurrently")
)

// resolverFn lets the engine run with or without the resolution cache.
type resolverFn func(ctx context.Context, scenarioID string) (resolve.State, error)

// Engine binds the scenario store, resolver, and comparator into the
// operations the transport layer exposes.
type Engine struct {
	store       storage.Store
	resolveFn   resolverFn
	chainFn     func(ctx context.Context, scenarioID string) ([]domain.Scenario, error)
	tracer      trace.Tracer
	now         func() time.Time
	idGenerator func() (string, error)

	// applyMu guards applying. One apply per child scenario at a time;
	// concurrent attempts fail fast instead of queueing.
	applyMu  sync.Mutex
	applying map[string]struct{}
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	maxDepth     int
	disableCache bool
	now          func() time.Time
	idGenerator  func() (string, error)
}

// WithMaxDepth bounds ancestor chain length during resolution.
func WithMaxDepth(depth int) Option {
	return func(o *options) { o.maxDepth = depth }
}

// WithoutResolutionCache disables state memoization, forcing a full fold on
// every resolve.
func WithoutResolutionCache() Option {
	return func(o *options) { o.disableCache = true }
}

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides scenario id generation.
func WithIDGenerator(generate func() (string, error)) Option {
	return func(o *options) { o.idGenerator = generate }
}

// New creates an Engine over the given store. The resolution cache is on by
// default.
func New(store storage.Store, opts ...Option) *Engine {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	engine := &Engine{
		store:       store,
		tracer:      otel.Tracer(tracerName),
		now:         o.now,
		idGenerator: o.idGenerator,
		applying:    make(map[string]struct{}),
	}
	if o.disableCache {
		resolver := resolve.New(store, o.maxDepth)
		engine.resolveFn = resolver.Resolve
		engine.chainFn = resolver.Chain
	} else {
		cache := resolve.NewCache(store, o.maxDepth)
		engine.resolveFn = cache.Resolve
		engine.chainFn = cache.Chain
	}
	return engine
}

// CreateScenario validates and persists a new scenario node. Non-baseline
// scenarios must name an existing parent.
func (e *Engine) CreateScenario(ctx context.Context, input domain.CreateScenarioInput) (domain.Scenario, error) {
	ctx, span := e.tracer.Start(ctx, "CreateScenario",
		trace.WithAttributes(attribute.String("scenario.name", input.Name)))
	defer span.End()

	scenario, err := domain.CreateScenario(input, e.now, e.idGenerator)
	if err != nil {
		return domain.Scenario{}, e.fail(span, err)
	}

	if scenario.ParentID != "" {
		if _, err := e.store.GetScenario(ctx, scenario.ParentID); err != nil {
			return domain.Scenario{}, e.fail(span, e.mapStoreError(err, scenario.ParentID))
		}
	}

	if err := e.store.PutScenario(ctx, scenario); err != nil {
		return domain.Scenario{}, e.fail(span, e.mapStoreError(err, scenario.ID))
	}
	return scenario, nil
}

// GetScenario returns one scenario node by id.
func (e *Engine) GetScenario(ctx context.Context, scenarioID string) (domain.Scenario, error) {
	scenario, err := e.store.GetScenario(ctx, scenarioID)
	if err != nil {
		return domain.Scenario{}, e.mapStoreError(err, scenarioID)
	}
	return scenario, nil
}

// ListScenarios returns one page of scenario nodes.
func (e *Engine) ListScenarios(ctx context.Context, query storage.ScenarioQuery) (storage.ScenarioPage, error) {
	page, err := e.store.ListScenarios(ctx, query)
	if err != nil {
		return storage.ScenarioPage{}, e.mapStoreError(err, "")
	}
	return page, nil
}

// PutDelta validates and stores one delta edit. A non-nil expected timestamp
// turns the write into a read-compare-write that fails with a conflict when
// the stored record moved.
func (e *Engine) PutDelta(ctx context.Context, record domain.Record, expected *time.Time) (domain.Record, error) {
	ctx, span := e.tracer.Start(ctx, "PutDelta", trace.WithAttributes(
		attribute.String("scenario.id", record.ScenarioID),
		attribute.String("entity.kind", string(record.EntityKind)),
		attribute.String("entity.id", record.EntityID),
		attribute.String("delta.operation", domain.OperationName(record.Op)),
	))
	defer span.End()

	validated, err := domain.NewRecord(record.ScenarioID, record.EntityKind, record.EntityID, record.Op, e.now)
	if err != nil {
		return domain.Record{}, e.fail(span, err)
	}

	if err := e.store.PutDelta(ctx, validated, expected); err != nil {
		return domain.Record{}, e.fail(span, e.mapStoreError(err, validated.ScenarioID))
	}
	return validated, nil
}

// DeleteDelta reverts one scenario edit, returning the entity to whatever the
// ancestors provide. Deleting an absent delta is not an error.
func (e *Engine) DeleteDelta(ctx context.Context, scenarioID string, kind domain.EntityKind, entityID string) error {
	if err := e.store.DeleteDelta(ctx, scenarioID, kind, entityID); err != nil {
		return e.mapStoreError(err, scenarioID)
	}
	return nil
}

// GetDeltas returns the raw delta records a scenario owns.
func (e *Engine) GetDeltas(ctx context.Context, scenarioID string) ([]domain.Record, error) {
	records, err := e.store.GetDeltas(ctx, scenarioID)
	if err != nil {
		return nil, e.mapStoreError(err, scenarioID)
	}
	return records, nil
}

// Resolve computes the scenario's effective entity state by folding its
// ancestor chain.
func (e *Engine) Resolve(ctx context.Context, scenarioID string) (resolve.State, error) {
	ctx, span := e.tracer.Start(ctx, "Resolve",
		trace.WithAttributes(attribute.String("scenario.id", scenarioID)))
	defer span.End()

	state, err := e.resolveFn(ctx, scenarioID)
	if err != nil {
		return resolve.State{}, e.fail(span, err)
	}
	span.SetAttributes(
		attribute.Int("resolve.projects", len(state.Projects)),
		attribute.Int("resolve.assignments", len(state.Assignments)),
	)
	return state, nil
}

// Compare resolves two scenarios and itemizes the differences between their
// effective states.
func (e *Engine) Compare(ctx context.Context, fromID, toID string) (diff.Diff, error) {
	ctx, span := e.tracer.Start(ctx, "Compare", trace.WithAttributes(
		attribute.String("scenario.from_id", fromID),
		attribute.String("scenario.to_id", toID),
	))
	defer span.End()

	from, err := e.resolveFn(ctx, fromID)
	if err != nil {
		return diff.Diff{}, e.fail(span, err)
	}
	to, err := e.resolveFn(ctx, toID)
	if err != nil {
		return diff.Diff{}, e.fail(span, err)
	}
	return diff.Compare(from, to), nil
}

// ApplyToParent merges the scenario's deltas into its parent and clears the
// scenario, all-or-nothing. It returns the number of deltas applied. At most
// one apply per child runs at a time; a second caller fails immediately.
func (e *Engine) ApplyToParent(ctx context.Context, scenarioID string) (int, error) {
	ctx, span := e.tracer.Start(ctx, "ApplyToParent",
		trace.WithAttributes(attribute.String("scenario.id", scenarioID)))
	defer span.End()

	if !e.beginApply(scenarioID) {
		return 0, e.fail(span, ErrApplyInProgress)
	}
	defer e.endApply(scenarioID)

	scenario, err := e.store.GetScenario(ctx, scenarioID)
	if err != nil {
		return 0, e.fail(span, e.mapStoreError(err, scenarioID))
	}
	if scenario.ParentID == "" {
		return 0, e.fail(span, apperrors.WithMetadata(apperrors.CodeScenarioNoParent,
			"baseline scenario has no parent to apply into",
			map[string]string{"scenario_id": scenarioID}))
	}

	count, err := e.store.PushDeltasToParent(ctx, scenarioID, scenario.ParentID)
	if err != nil {
		return 0, e.fail(span, e.mapStoreError(err, scenarioID))
	}
	span.SetAttributes(attribute.Int("apply.deltas", count))
	return count, nil
}

// Chain returns the scenario's ancestor path ordered root to target.
func (e *Engine) Chain(ctx context.Context, scenarioID string) ([]domain.Scenario, error) {
	return e.chainFn(ctx, scenarioID)
}

func (e *Engine) beginApply(scenarioID string) bool {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()
	if _, busy := e.applying[scenarioID]; busy {
		return false
	}
	e.applying[scenarioID] = struct{}{}
	return true
}

func (e *Engine) endApply(scenarioID string) {
	e.applyMu.Lock()
	delete(e.applying, scenarioID)
	e.applyMu.Unlock()
}

// fail records the error on the span and passes it through.
func (e *Engine) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// mapStoreError lifts storage sentinels into domain errors. Errors that are
// already domain errors pass through untouched; anything else is treated as a
// storage failure.
func (e *Engine) mapStoreError(err error, scenarioID string) error {
	var domainErr *apperrors.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, storage.ErrNotFound):
		metadata := map[string]string{}
		if scenarioID != "" {
			metadata["scenario_id"] = scenarioID
		}
		return apperrors.WithMetadata(apperrors.CodeScenarioNotFound, "scenario does not exist", metadata)
	case errors.Is(err, storage.ErrConflict):
		return apperrors.Wrap(apperrors.CodeDeltaConflict, "delta was updated concurrently", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return apperrors.Wrap(apperrors.CodeStorageUnavailable, "scenario storage failed", err)
	}
}
