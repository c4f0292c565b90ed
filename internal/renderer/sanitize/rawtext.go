package sanitize

import (
	"strings"

	"golang.org/x/net/html"
)

// rawTextElements switch the tokenizer into raw text mode until their end tag.
// bluemonday escapes that text on output, so a kept element would gain one
// level of escaping per pass.
var rawTextElements = map[string]bool{
	"iframe":    true,
	"noembed":   true,
	"noframes":  true,
	"noscript":  true,
	"plaintext": true,
	"script":    true,
	"style":     true,
	"textarea":  true,
	"title":     true,
	"xmp":       true,
}

// dropRawText removes the content of raw text elements and keeps every other
// token byte for byte.
func dropRawText(src string) string {
	if !strings.Contains(src, "<") {
		return src
	}

	var b strings.Builder
	b.Grow(len(src))
	z := html.NewTokenizer(strings.NewReader(src))
	inRaw := false
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if inRaw {
				inRaw = false
				continue
			}
			b.Write(z.Raw())
		case html.StartTagToken, html.SelfClosingTagToken:
			b.Write(z.Raw())
			name, _ := z.TagName()
			inRaw = rawTextElements[string(name)]
		default:
			b.Write(z.Raw())
			inRaw = false
		}
	}
}
