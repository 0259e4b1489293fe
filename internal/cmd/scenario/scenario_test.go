package scenario

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("scenario", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "capacinator.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.Transport != "stdio" {
		t.Fatalf("expected default transport stdio, got %q", cfg.Transport)
	}
	if cfg.HTTPAddr != "localhost:8081" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.MaxDepth != 64 {
		t.Fatalf("expected default max depth 64, got %d", cfg.MaxDepth)
	}
}

func TestParseConfigEnvOverrides(t *testing.T) {
	t.Setenv("CAPACINATOR_SCENARIO_DB_PATH", "/tmp/env.db")
	t.Setenv("CAPACINATOR_SCENARIO_MCP_TRANSPORT", "http")

	fs := flag.NewFlagSet("scenario", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Fatalf("expected env db path, got %q", cfg.DBPath)
	}
	if cfg.Transport != "http" {
		t.Fatalf("expected env transport, got %q", cfg.Transport)
	}
}

func TestParseConfigFlagsWinOverEnv(t *testing.T) {
	t.Setenv("CAPACINATOR_SCENARIO_DB_PATH", "/tmp/env.db")

	fs := flag.NewFlagSet("scenario", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-db", "/tmp/flag.db", "-max-depth", "8"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "/tmp/flag.db" {
		t.Fatalf("expected flag db path, got %q", cfg.DBPath)
	}
	if cfg.MaxDepth != 8 {
		t.Fatalf("expected flag max depth 8, got %d", cfg.MaxDepth)
	}
}
