// Package migrations holds the schema of the CMS tables that the SQLite
// live store reads and writes. Files are applied in name order.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
