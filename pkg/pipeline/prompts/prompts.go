// Package prompts embeds the pipeline prompt documents.
package prompts

import "embed"

//go:embed *.md
var FS embed.FS
