package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/steiner385/capacinator/internal/scenario/domain"
	"github.com/steiner385/capacinator/internal/scenario/storage"
	"github.com/steiner385/capacinator/internal/scenario/storage/cursor"
	"github.com/steiner385/capacinator/internal/scenario/storage/filter"
)

const (
	defaultListScenariosPageSize = 50
	maxListScenariosPageSize     = 200
)

// PutScenario inserts or replaces one scenario row.
func (s *Store) PutScenario(ctx context.Context, scenario domain.Scenario) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(scenario.ID) == "" {
		return fmt.Errorf("scenario id is required")
	}

	var parentID sql.NullString
	if scenario.ParentID != "" {
		parentID = sql.NullString{String: scenario.ParentID, Valid: true}
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO scenarios (
		   id,
		   name,
		   scenario_type,
		   status,
		   parent_scenario_id,
		   created_at,
		   updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   status = excluded.status,
		   updated_at = excluded.updated_at`,
		scenario.ID,
		scenario.Name,
		string(scenario.Type),
		string(scenario.Status),
		parentID,
		toMillis(scenario.CreatedAt),
		toMillis(scenario.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put scenario: %w", err)
	}
	return nil
}

// GetScenario returns one scenario row by id.
func (s *Store) GetScenario(ctx context.Context, id string) (domain.Scenario, error) {
	if err := ctx.Err(); err != nil {
		return domain.Scenario{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Scenario{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Scenario{}, fmt.Errorf("scenario id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, name, scenario_type, status, parent_scenario_id, created_at, updated_at
		 FROM scenarios WHERE id = ?`,
		id,
	)
	return scanScenario(row)
}

// ListScenarios returns one page of scenario rows ordered by id, optionally
// narrowed by an AIP-160 filter expression.
func (s *Store) ListScenarios(ctx context.Context, query storage.ScenarioQuery) (storage.ScenarioPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.ScenarioPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ScenarioPage{}, fmt.Errorf("storage is not configured")
	}

	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = defaultListScenariosPageSize
	}
	if pageSize > maxListScenariosPageSize {
		pageSize = maxListScenariosPageSize
	}

	cond, err := filter.ParseScenarioFilter(query.Filter)
	if err != nil {
		return storage.ScenarioPage{}, fmt.Errorf("scenario filter: %w", err)
	}

	clauses := make([]string, 0, 2)
	params := make([]any, 0, len(cond.Params)+1)
	if cond.Clause != "" {
		clauses = append(clauses, cond.Clause)
		params = append(params, cond.Params...)
	}

	if query.PageToken != "" {
		token, err := cursor.Decode(query.PageToken)
		if err != nil {
			return storage.ScenarioPage{}, fmt.Errorf("page token: %w", err)
		}
		if err := cursor.ValidateFilterHash(token, query.Filter); err != nil {
			return storage.ScenarioPage{}, fmt.Errorf("page token: %w", err)
		}
		clauses = append(clauses, "id > ?")
		params = append(params, token.LastID)
	}

	sqlQuery := `SELECT id, name, scenario_type, status, parent_scenario_id, created_at, updated_at FROM scenarios`
	if len(clauses) > 0 {
		sqlQuery += " WHERE " + strings.Join(clauses, " AND ")
	}
	sqlQuery += " ORDER BY id LIMIT ?"
	params = append(params, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, sqlQuery, params...)
	if err != nil {
		return storage.ScenarioPage{}, fmt.Errorf("list scenarios: %w", err)
	}
	defer rows.Close()

	var scenarios []domain.Scenario
	for rows.Next() {
		scenario, err := scanScenario(rows)
		if err != nil {
			return storage.ScenarioPage{}, err
		}
		scenarios = append(scenarios, scenario)
	}
	if err := rows.Err(); err != nil {
		return storage.ScenarioPage{}, fmt.Errorf("list scenarios: %w", err)
	}

	page := storage.ScenarioPage{}
	if len(scenarios) > pageSize {
		scenarios = scenarios[:pageSize]
		token, err := cursor.Encode(cursor.New(scenarios[len(scenarios)-1].ID, query.Filter))
		if err != nil {
			return storage.ScenarioPage{}, fmt.Errorf("encode page token: %w", err)
		}
		page.NextPageToken = token
	}
	page.Scenarios = scenarios
	return page, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanScenario(row rowScanner) (domain.Scenario, error) {
	var (
		scenario     domain.Scenario
		scenarioType string
		status       string
		parentID     sql.NullString
		createdAt    int64
		updatedAt    int64
	)
	err := row.Scan(&scenario.ID, &scenario.Name, &scenarioType, &status, &parentID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Scenario{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Scenario{}, fmt.Errorf("scan scenario: %w", err)
	}

	scenario.Type, err = domain.ParseScenarioType(scenarioType)
	if err != nil {
		return domain.Scenario{}, fmt.Errorf("scenario %s: %w", scenario.ID, err)
	}
	scenario.Status, err = domain.ParseScenarioStatus(status)
	if err != nil {
		return domain.Scenario{}, fmt.Errorf("scenario %s: %w", scenario.ID, err)
	}
	if parentID.Valid {
		scenario.ParentID = parentID.String
	}
	scenario.CreatedAt = fromMillis(createdAt)
	scenario.UpdatedAt = fromMillis(updatedAt)
	return scenario, nil
}
