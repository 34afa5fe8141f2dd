// Package views embeds the HTML templates and static assets.
package views

import "embed"

// FS holds every template (*.html) and the static/ directory.
//
//go:embed *.html layouts/*.html partials/*.html static
var FS embed.FS
