// Package migrations embeds the versioned SQL schema for the contacts store.
package migrations

import "embed"

// FS holds the *.up.sql and *.down.sql migration files.
//
//go:embed *.sql
var FS embed.FS
