package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/steiner385/capacinator/internal/scenario/domain"
	"github.com/steiner385/capacinator/internal/scenario/storage"
)

// querier abstracts *sql.DB and *sql.Tx for statements that run either
// standalone or inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetDeltas returns every delta owned by a scenario. The scenario row must
// exist; a missing row fails with storage.ErrNotFound.
func (s *Store) GetDeltas(ctx context.Context, scenarioID string) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	scenarioID = strings.TrimSpace(scenarioID)
	if scenarioID == "" {
		return nil, fmt.Errorf("scenario id is required")
	}

	if err := s.requireScenario(ctx, s.sqlDB, scenarioID); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT entity_kind, entity_id, operation, payload, updated_at
		 FROM scenario_deltas
		 WHERE scenario_id = ?
		 ORDER BY entity_kind, entity_id`,
		scenarioID,
	)
	if err != nil {
		return nil, fmt.Errorf("get deltas: %w", err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var (
			kind      string
			entityID  string
			opName    string
			payload   sql.NullString
			updatedAt int64
		)
		if err := rows.Scan(&kind, &entityID, &opName, &payload, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan delta: %w", err)
		}

		entityKind, err := domain.ParseEntityKind(kind)
		if err != nil {
			return nil, fmt.Errorf("delta %s/%s: %w", scenarioID, entityID, err)
		}
		op, err := decodeOperation(entityKind, opName, payload)
		if err != nil {
			return nil, fmt.Errorf("delta %s/%s: %w", scenarioID, entityID, err)
		}

		records = append(records, domain.Record{
			ScenarioID: scenarioID,
			EntityKind: entityKind,
			EntityID:   entityID,
			Op:         op,
			UpdatedAt:  fromMillis(updatedAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get deltas: %w", err)
	}
	return records, nil
}

// PutDelta upserts the single record for the record's (scenario, entity)
// pair. A non-nil expected timestamp is compared against the stored
// updated_at inside the write transaction; mismatch fails with
// storage.ErrConflict so the caller can re-read and retry.
func (s *Store) PutDelta(ctx context.Context, record domain.Record, expected *time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	opName := domain.OperationName(record.Op)
	if opName == "" {
		return fmt.Errorf("delta operation is required")
	}
	payload, err := encodePayload(record.Op)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put delta: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.requireScenario(ctx, tx, record.ScenarioID); err != nil {
		return err
	}

	var storedUpdatedAt int64
	row := tx.QueryRowContext(
		ctx,
		`SELECT updated_at FROM scenario_deltas
		 WHERE scenario_id = ? AND entity_kind = ? AND entity_id = ?`,
		record.ScenarioID, string(record.EntityKind), record.EntityID,
	)
	switch err := row.Scan(&storedUpdatedAt); {
	case errors.Is(err, sql.ErrNoRows):
		if expected != nil {
			return storage.ErrConflict
		}
	case err != nil:
		return fmt.Errorf("read delta timestamp: %w", err)
	default:
		if expected != nil && toMillis(*expected) != storedUpdatedAt {
			return storage.ErrConflict
		}
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO scenario_deltas (
		   scenario_id,
		   entity_kind,
		   entity_id,
		   operation,
		   payload,
		   updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(scenario_id, entity_kind, entity_id) DO UPDATE SET
		   operation = excluded.operation,
		   payload = excluded.payload,
		   updated_at = excluded.updated_at`,
		record.ScenarioID,
		string(record.EntityKind),
		record.EntityID,
		opName,
		payload,
		toMillis(record.UpdatedAt),
	); err != nil {
		return fmt.Errorf("put delta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put delta: %w", err)
	}
	return nil
}

// DeleteDelta removes any record for the pair and touches the owning
// scenario's updated_at so chain fingerprints move even when the deleted
// record was not the newest delta. Absent records are ignored and leave the
// scenario untouched.
func (s *Store) DeleteDelta(ctx context.Context, scenarioID string, kind domain.EntityKind, entityID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	scenarioID = strings.TrimSpace(scenarioID)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete delta: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(
		ctx,
		`DELETE FROM scenario_deltas
		 WHERE scenario_id = ? AND entity_kind = ? AND entity_id = ?`,
		scenarioID, string(kind), strings.TrimSpace(entityID),
	)
	if err != nil {
		return fmt.Errorf("delete delta: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete delta: %w", err)
	}

	if deleted > 0 {
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE scenarios SET updated_at = ? WHERE id = ?`,
			toMillis(s.now()), scenarioID,
		); err != nil {
			return fmt.Errorf("touch scenario: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete delta: %w", err)
	}
	return nil
}

// PushDeltasToParent copies every delta owned by child into parent and clears
// the child's set inside one transaction, so a failure leaves both scenarios
// untouched. Copied records take a fresh updated_at so descendant caches of
// the parent invalidate.
func (s *Store) PushDeltasToParent(ctx context.Context, childID, parentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	childID = strings.TrimSpace(childID)
	parentID = strings.TrimSpace(parentID)
	if childID == "" || parentID == "" {
		return 0, fmt.Errorf("child and parent scenario ids are required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin push deltas: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.requireScenario(ctx, tx, childID); err != nil {
		return 0, err
	}
	if err := s.requireScenario(ctx, tx, parentID); err != nil {
		return 0, err
	}

	var count int
	if err := tx.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM scenario_deltas WHERE scenario_id = ?`,
		childID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count child deltas: %w", err)
	}

	now := toMillis(s.now())
	if count > 0 {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO scenario_deltas (
			   scenario_id,
			   entity_kind,
			   entity_id,
			   operation,
			   payload,
			   updated_at
			 )
			 SELECT ?, entity_kind, entity_id, operation, payload, ?
			 FROM scenario_deltas WHERE scenario_id = ?
			 ON CONFLICT(scenario_id, entity_kind, entity_id) DO UPDATE SET
			   operation = excluded.operation,
			   payload = excluded.payload,
			   updated_at = excluded.updated_at`,
			parentID, now, childID,
		); err != nil {
			return 0, fmt.Errorf("copy deltas to parent: %w", err)
		}

		if _, err := tx.ExecContext(
			ctx,
			`DELETE FROM scenario_deltas WHERE scenario_id = ?`,
			childID,
		); err != nil {
			return 0, fmt.Errorf("clear child deltas: %w", err)
		}
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE scenarios SET updated_at = ? WHERE id IN (?, ?)`,
		now, childID, parentID,
	); err != nil {
		return 0, fmt.Errorf("touch scenarios: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit push deltas: %w", err)
	}
	return count, nil
}

// LatestDeltaUpdate returns the newest delta updated_at across the given
// scenarios, or the zero time when none of them own deltas.
func (s *Store) LatestDeltaUpdate(ctx context.Context, scenarioIDs []string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	if s == nil || s.sqlDB == nil {
		return time.Time{}, fmt.Errorf("storage is not configured")
	}
	if len(scenarioIDs) == 0 {
		return time.Time{}, nil
	}

	placeholders := strings.Repeat("?, ", len(scenarioIDs)-1) + "?"
	params := make([]any, len(scenarioIDs))
	for i, id := range scenarioIDs {
		params[i] = id
	}

	var latest sql.NullInt64
	if err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT MAX(updated_at) FROM scenario_deltas WHERE scenario_id IN (`+placeholders+`)`,
		params...,
	).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("latest delta update: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return fromMillis(latest.Int64), nil
}

// requireScenario fails with storage.ErrNotFound when the scenario row is missing.
func (s *Store) requireScenario(ctx context.Context, q querier, scenarioID string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM scenarios WHERE id = ?`, scenarioID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check scenario %s: %w", scenarioID, err)
	}
	return nil
}

// encodePayload serializes the ADD/OVERRIDE snapshot as JSON; REMOVE rows
// store NULL.
func encodePayload(op domain.Operation) (sql.NullString, error) {
	payload, ok := domain.OperationPayload(op)
	if !ok {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal delta payload: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// decodeOperation rebuilds the operation sum type from its stored parts.
func decodeOperation(kind domain.EntityKind, opName string, payload sql.NullString) (domain.Operation, error) {
	if opName == domain.OpNameRemove {
		return domain.Remove{}, nil
	}
	if !payload.Valid {
		return nil, fmt.Errorf("operation %s is missing its payload", opName)
	}

	var snapshot domain.Payload
	switch kind {
	case domain.EntityKindProject:
		var project domain.Project
		if err := json.Unmarshal([]byte(payload.String), &project); err != nil {
			return nil, fmt.Errorf("unmarshal project payload: %w", err)
		}
		snapshot = project
	case domain.EntityKindAssignment:
		var assignment domain.Assignment
		if err := json.Unmarshal([]byte(payload.String), &assignment); err != nil {
			return nil, fmt.Errorf("unmarshal assignment payload: %w", err)
		}
		snapshot = assignment
	default:
		return nil, domain.ErrInvalidEntityKind
	}

	switch opName {
	case domain.OpNameAdd:
		return domain.Add{Payload: snapshot}, nil
	case domain.OpNameOverride:
		return domain.Override{Payload: snapshot}, nil
	default:
		return nil, fmt.Errorf("unknown operation %q", opName)
	}
}
