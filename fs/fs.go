package appfs

import "embed"

// FS holds the SQL migrations plus the e-mail and web templates.
//
//go:embed migrations all:templates
var FS embed.FS
