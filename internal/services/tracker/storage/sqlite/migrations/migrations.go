// Package migrations embeds the tracker SQLite schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
