// Package main writes the stylesheet for the highlight span classes from a
// chroma style.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/spf13/pflag"

	"github.com/obiwac/obiwac.github.io/internal/renderer/transform"
)

// token whose colour stands in for each class.
var representative = map[string]chroma.TokenType{
	transform.ClassGlyph:             chroma.Punctuation,
	transform.ClassLiteral:           chroma.LiteralString,
	transform.ClassIdentifier:        chroma.Name,
	transform.ClassSpecialIdentifier: chroma.NameFunction,
	transform.ClassStrongIdentifier:  chroma.NameClass,
	transform.ClassKeyword:           chroma.Keyword,
	transform.ClassComment:           chroma.Comment,
}

func main() {
	styleName := pflag.String("style", "monokai", "chroma style to derive colours from")
	out := pflag.StringP("out", "o", "", "output file (stdout when empty)")
	pflag.Parse()

	style := styles.Get(*styleName)
	if style == nil || (style == styles.Fallback && *styleName != styles.Fallback.Name) {
		fmt.Fprintf(os.Stderr, "Style %q not found\n", *styleName)
		os.Exit(1)
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	if err := writeCSS(w, style); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating CSS: %v\n", err)
		os.Exit(1)
	}
}

func writeCSS(w io.Writer, style *chroma.Style) error {
	if _, err := fmt.Fprintf(w, "/* generated from the %s chroma style; do not edit */\n", style.Name); err != nil {
		return err
	}
	for _, class := range transform.Classes {
		entry := style.Get(representative[class])
		var decls []string
		if entry.Colour.IsSet() {
			decls = append(decls, "color: "+entry.Colour.String())
		}
		if entry.Bold == chroma.Yes {
			decls = append(decls, "font-weight: bold")
		}
		if entry.Italic == chroma.Yes {
			decls = append(decls, "font-style: italic")
		}
		if len(decls) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "pre span.%s {\n\t%s;\n}\n", class, strings.Join(decls, ";\n\t")); err != nil {
			return err
		}
	}
	return nil
}
