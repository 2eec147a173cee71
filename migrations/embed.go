// Package migrations embeds the SQL schema of the upload ledger.
package migrations

import "embed"

// FS holds the *.up.sql files applied at startup.
//
//go:embed *.sql
var FS embed.FS
