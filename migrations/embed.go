// Package migrations embeds the SQL schema applied by cmd/migrate and by
// test databases.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
