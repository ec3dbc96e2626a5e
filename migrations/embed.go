// Package migrations embeds the goose SQL migrations so that binaries carry
// their own schema.
package migrations

import "embed"

// FS holds every *.sql migration at its root.
//
//go:embed *.sql
var FS embed.FS
