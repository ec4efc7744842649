// Package migrations carries the goose SQL migrations of the reconciliation schema.
package migrations

import "embed"

// FS holds every migration file so binaries can migrate without the source tree.
//
//go:embed *.sql
var FS embed.FS
