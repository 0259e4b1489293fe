// Package scenario parses scenario service flags and runs the MCP-facing
// scenario engine.
package scenario

import (
	"context"
	"flag"
	"fmt"
	"log"

	mcpservice "github.com/steiner385/capacinator/internal/mcp/service"
	platformcmd "github.com/steiner385/capacinator/internal/platform/cmd"
	"github.com/steiner385/capacinator/internal/platform/config"
	"github.com/steiner385/capacinator/internal/scenario/service"
	"github.com/steiner385/capacinator/internal/scenario/storage/sqlite"
)

// Config holds scenario service configuration.
type Config struct {
	DBPath    string `env:"CAPACINATOR_SCENARIO_DB_PATH"       envDefault:"capacinator.db"`
	Transport string `env:"CAPACINATOR_SCENARIO_MCP_TRANSPORT" envDefault:"stdio"`
	HTTPAddr  string `env:"CAPACINATOR_SCENARIO_MCP_HTTP_ADDR" envDefault:"localhost:8081"`
	MaxDepth  int    `env:"CAPACINATOR_SCENARIO_MAX_DEPTH"     envDefault:"64"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "MCP transport: stdio or http")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address (for http transport)")
	fs.IntVar(&cfg.MaxDepth, "max-depth", cfg.MaxDepth, "maximum scenario ancestor chain depth")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the scenario engine and serves it over MCP until the context
// ends.
func Run(ctx context.Context, cfg Config) error {
	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceScenario, func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open scenario store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close scenario store: %v", err)
			}
		}()

		engine := service.New(store, service.WithMaxDepth(cfg.MaxDepth))

		log.Printf("scenario engine ready (db=%s transport=%s)", cfg.DBPath, cfg.Transport)
		return mcpservice.Run(ctx, engine, mcpservice.Config{
			Transport: mcpservice.TransportKind(cfg.Transport),
			HTTPAddr:  cfg.HTTPAddr,
		})
	})
}
