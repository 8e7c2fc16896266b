// Package migrations embeds the SQL migration files applied to each tenant
// database.
package migrations

import "embed"

// FS contains the embedded SQL migration files.
//
//go:embed *.sql
var FS embed.FS
