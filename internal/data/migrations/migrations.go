// Package migrations embeds the platform store schema migrations.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
