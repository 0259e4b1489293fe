// Package migrations embeds SQLite schema migrations for scenario storage.
package migrations

import "embed"

// FS contains embedded SQLite migrations for scenario storage.
//
//go:embed *.sql
var FS embed.FS
