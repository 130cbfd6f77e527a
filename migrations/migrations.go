// Package migrations embeds the ledger node's SQL schema.
package migrations

import "embed"

// FS holds goose migrations.
//
//go:embed *.sql
var FS embed.FS
