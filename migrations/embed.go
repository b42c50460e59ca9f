// Package migrations embeds the SQL schema so the server binary carries it.
package migrations

import "embed"

// FS holds the numbered migration files
//
//go:embed *.sql
var FS embed.FS
