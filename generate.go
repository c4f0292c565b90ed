// Package portfolio is the personal website of Aymeric Wibo: a small server
// and static exporter around a sanitized Markdown pipeline.
//
// Regenerate the syntax highlighting stylesheet using:
//
//	go generate
package portfolio

//go:generate go run ./tools/generate-highlight-css -o static/css/highlight.css
