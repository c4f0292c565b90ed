// Package cssmin compacts a stylesheet for inlining into every page.
package cssmin

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

// Minify parses src and writes it back without comments, indentation or
// redundant whitespace. Rule order and declaration order are kept.
func Minify(src string) (string, error) {
	sheet, err := parser.Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse css: %w", err)
	}
	var b strings.Builder
	for _, rule := range sheet.Rules {
		writeRule(&b, rule)
	}
	return b.String(), nil
}

func writeRule(b *strings.Builder, rule *css.Rule) {
	if rule.Kind == css.AtRule {
		b.WriteString(rule.Name)
		if rule.Prelude != "" {
			b.WriteByte(' ')
			b.WriteString(collapse(rule.Prelude))
		}
		switch {
		case rule.EmbedsRules():
			b.WriteByte('{')
			for _, inner := range rule.Rules {
				writeRule(b, inner)
			}
			b.WriteByte('}')
		case len(rule.Declarations) > 0:
			writeBlock(b, rule.Declarations)
		default:
			b.WriteByte(';')
		}
		return
	}

	for i, sel := range rule.Selectors {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(selector(sel))
	}
	writeBlock(b, rule.Declarations)
}

func writeBlock(b *strings.Builder, decls []*css.Declaration) {
	b.WriteByte('{')
	for i, d := range decls {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(d.Property)
		b.WriteByte(':')
		b.WriteString(collapse(d.Value))
		if d.Important {
			b.WriteString("!important")
		}
	}
	b.WriteByte('}')
}

// selector drops the whitespace around combinators.
func selector(sel string) string {
	sel = collapse(sel)
	for _, c := range []string{">", "+", "~"} {
		sel = strings.ReplaceAll(sel, " "+c+" ", c)
	}
	return sel
}

// collapse folds whitespace runs to one space and trims the ends. Quoted
// strings are copied unchanged.
func collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var quote rune
	space, escaped := false, false
	for _, r := range s {
		switch {
		case quote != 0:
			b.WriteRune(r)
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == quote:
				quote = 0
			}
			continue
		case unicode.IsSpace(r):
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		if r == '"' || r == '\'' {
			quote = r
		}
		b.WriteRune(r)
	}
	return b.String()
}
