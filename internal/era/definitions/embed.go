// Package definitions embeds the YAML era definition files.
package definitions

import "embed"

// FS contains the embedded era definitions, one file per era.
//
//go:embed *.yaml
var FS embed.FS
