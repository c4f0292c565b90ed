// Package site embeds the default site content: site.yaml, projects/*.md and
// blog/*.md.
package site

import (
	"embed"
	"io/fs"
)

//go:embed site.yaml projects/*.md blog/*.md
var content embed.FS

// FS exposes the embedded content tree.
func FS() fs.FS {
	return content
}
