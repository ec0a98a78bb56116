// Package migrations embeds the PostgreSQL schema applied by "fundctl migrate".
package migrations

import "embed"

// Postgres contains the PostgreSQL migrations, applied in file name order.
//
//go:embed postgres/*.sql
var Postgres embed.FS
