// Package seed populates a scenario database with a small demo plan tree.
package seed

import (
	"context"
	"flag"
	"fmt"
	"io"

	platformcmd "github.com/steiner385/capacinator/internal/platform/cmd"
	"github.com/steiner385/capacinator/internal/platform/config"
	"github.com/steiner385/capacinator/internal/scenario/domain"
	"github.com/steiner385/capacinator/internal/scenario/service"
	"github.com/steiner385/capacinator/internal/scenario/storage/sqlite"
)

// Config holds seed command configuration.
type Config struct {
	DBPath string `env:"CAPACINATOR_SCENARIO_DB_PATH" envDefault:"capacinator.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run seeds the database with a baseline plan and one what-if branch.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}

	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceSeed, func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open scenario store: %w", err)
		}
		defer store.Close()

		engine := service.New(store)
		return seedDemoTree(ctx, engine, out)
	})
}

// seedDemoTree creates a baseline with two projects and three assignments,
// plus a branch that freezes one project and rebalances its staffing.
func seedDemoTree(ctx context.Context, engine *service.Engine, out io.Writer) error {
	baseline, err := engine.CreateScenario(ctx, domain.CreateScenarioInput{
		Name:   "Plan of Record",
		Type:   domain.ScenarioTypeBaseline,
		Status: domain.ScenarioStatusActive,
	})
	if err != nil {
		return fmt.Errorf("create baseline: %w", err)
	}

	projects := []domain.Project{
		{ID: "prj-atlas", Name: "Atlas Migration", Priority: 1, IncludeInDemand: true, AspirationStart: "2026-04-01", AspirationFinish: "2026-09-30"},
		{ID: "prj-borealis", Name: "Borealis Rewrite", Priority: 2, IncludeInDemand: true, AspirationStart: "2026-05-01", AspirationFinish: "2026-12-15"},
	}
	assignments := []domain.Assignment{
		{ID: "asg-1", ProjectID: "prj-atlas", PersonID: "per-ada", RoleID: "role-eng", AllocationPercentage: 50, StartDate: "2026-04-01", EndDate: "2026-09-30"},
		{ID: "asg-2", ProjectID: "prj-atlas", PersonID: "per-grace", RoleID: "role-eng", AllocationPercentage: 100, StartDate: "2026-04-01", EndDate: "2026-09-30"},
		{ID: "asg-3", ProjectID: "prj-borealis", PersonID: "per-alan", RoleID: "role-pm", AllocationPercentage: 40, StartDate: "2026-05-01", EndDate: "2026-12-15"},
	}

	for _, project := range projects {
		if err := putDelta(ctx, engine, baseline.ID, domain.Add{Payload: project}, project); err != nil {
			return err
		}
	}
	for _, assignment := range assignments {
		if err := putDelta(ctx, engine, baseline.ID, domain.Add{Payload: assignment}, assignment); err != nil {
			return err
		}
	}

	branch, err := engine.CreateScenario(ctx, domain.CreateScenarioInput{
		Name:     "Borealis Freeze",
		Type:     domain.ScenarioTypeBranch,
		Status:   domain.ScenarioStatusDraft,
		ParentID: baseline.ID,
	})
	if err != nil {
		return fmt.Errorf("create branch: %w", err)
	}

	// The branch drops Borealis and shifts its PM onto Atlas.
	if err := putDelta(ctx, engine, branch.ID, domain.Remove{}, domain.Project{ID: "prj-borealis"}); err != nil {
		return err
	}
	if err := putDelta(ctx, engine, branch.ID, domain.Remove{}, domain.Assignment{ID: "asg-3"}); err != nil {
		return err
	}
	shifted := domain.Assignment{ID: "asg-4", ProjectID: "prj-atlas", PersonID: "per-alan", RoleID: "role-pm", AllocationPercentage: 40, StartDate: "2026-05-01", EndDate: "2026-09-30"}
	if err := putDelta(ctx, engine, branch.ID, domain.Add{Payload: shifted}, shifted); err != nil {
		return err
	}

	fmt.Fprintf(out, "seeded baseline %s and branch %s\n", baseline.ID, branch.ID)
	return nil
}

func putDelta(ctx context.Context, engine *service.Engine, scenarioID string, op domain.Operation, payload domain.Payload) error {
	_, err := engine.PutDelta(ctx, domain.Record{
		ScenarioID: scenarioID,
		EntityKind: payload.Kind(),
		EntityID:   payload.PayloadID(),
		Op:         op,
	}, nil)
	if err != nil {
		return fmt.Errorf("seed delta %s/%s: %w", scenarioID, payload.PayloadID(), err)
	}
	return nil
}
