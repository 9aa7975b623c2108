// Package migrations embeds the goose SQL files for the MySQL schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
