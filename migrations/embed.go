// Package migrations embeds the SQL schema migrations so binaries can apply
// them without shipping the directory alongside. Apply with pg.MigrateFS:
//
//	err := pg.MigrateFS(ctx, pool, migrations.FS, ".", cfg, log)
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
