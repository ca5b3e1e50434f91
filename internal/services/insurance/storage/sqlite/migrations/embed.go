package migrations

import "embed"

// FS contains embedded SQLite migrations for insurance storage.
//
//go:embed *.sql
var FS embed.FS
