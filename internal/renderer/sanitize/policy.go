// Package sanitize filters serialized markdown through a fixed allow-list of
// tags, attributes, CSS classes and inline styles.
package sanitize

import (
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/aymerick/douceur/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/obiwac/obiwac.github.io/internal/renderer/transform"
)

// Rule lists what a single element may carry. Attrs are accepted with any
// value (URLs are still scheme-checked). Classes restricts the class
// attribute to the given names. Styles restricts the style attribute to the
// given properties.
type Rule struct {
	Attrs   []string
	Classes []string
	Styles  []string
}

// AllowList maps lowercase tag names to their rule. Tags not in the map are
// stripped, their text content kept.
type AllowList map[string]Rule

// URLSchemes are the absolute URL schemes accepted in href and src. Relative
// URLs are accepted too.
var URLSchemes = []string{"http", "https", "mailto"}

// DefaultAllowList is the policy for site content.
func DefaultAllowList() AllowList {
	list := AllowList{
		"a":      {Attrs: []string{"href"}, Classes: []string{transform.LinkClass}},
		"img":    {Attrs: []string{"src", "alt", "title"}},
		"span":   {Classes: slices.Clone(transform.Classes)},
		"div":    {Attrs: []string{"style"}, Classes: []string{transform.TableClass}},
		"iframe": {Attrs: []string{"class", "src", "width", "height", "frameborder"}},
		"ol":     {Attrs: []string{"start"}},
		"th":     {Styles: []string{"text-align"}},
		"td":     {Styles: []string{"text-align"}},
	}
	for _, tag := range []string{
		"p", "h1", "h2", "h3", "h4", "h5", "h6",
		"blockquote", "pre", "code", "em", "strong", "del", "s",
		"ul", "li", "table", "thead", "tbody", "tr", "hr", "br",
		"b", "i", "sub", "sup", "kbd",
	} {
		list[tag] = Rule{}
	}
	return list
}

// Policy is a compiled AllowList. It is immutable and safe for concurrent use.
type Policy struct {
	list AllowList
	bm   *bluemonday.Policy
}

// NewPolicy compiles list. The list is copied.
func NewPolicy(list AllowList) *Policy {
	owned := make(AllowList, len(list))
	for tag, rule := range list {
		owned[strings.ToLower(tag)] = Rule{
			Attrs:   slices.Clone(rule.Attrs),
			Classes: slices.Clone(rule.Classes),
			Styles:  slices.Clone(rule.Styles),
		}
	}

	bm := bluemonday.NewPolicy()
	bm.AllowURLSchemes(URLSchemes...)
	bm.AllowRelativeURLs(true)
	for tag, rule := range owned {
		bm.AllowElements(tag)
		if len(rule.Attrs) > 0 {
			bm.AllowAttrs(rule.Attrs...).OnElements(tag)
		}
		if len(rule.Classes) > 0 && !slices.Contains(rule.Attrs, "class") {
			bm.AllowAttrs("class").Matching(classPattern(rule.Classes)).OnElements(tag)
		}
		if len(rule.Styles) > 0 && !slices.Contains(rule.Attrs, "style") {
			bm.AllowStyles(rule.Styles...).OnElements(tag)
		}
	}

	return &Policy{list: owned, bm: bm}
}

var defaultPolicy = sync.OnceValue(func() *Policy {
	return NewPolicy(DefaultAllowList())
})

// Default returns the shared policy built from DefaultAllowList.
func Default() *Policy {
	return defaultPolicy()
}

// classPattern matches a space separated list drawn from classes.
func classPattern(classes []string) *regexp.Regexp {
	quoted := make([]string, len(classes))
	for i, c := range classes {
		quoted[i] = regexp.QuoteMeta(c)
	}
	one := "(?:" + strings.Join(quoted, "|") + ")"
	return regexp.MustCompile(`^` + one + `(?: ` + one + `)*$`)
}

// Sanitize strips everything the allow-list does not name. The text inside
// raw text elements such as iframe is always dropped, which keeps
// Sanitize(Sanitize(s)) == Sanitize(s).
func (p *Policy) Sanitize(html string) string {
	return p.bm.Sanitize(dropRawText(html))
}

// SanitizeBytes is Sanitize for byte slices.
func (p *Policy) SanitizeBytes(html []byte) []byte {
	return []byte(p.Sanitize(string(html)))
}

// Allows reports whether tag may appear in sanitized output, and, when attr is
// non-empty, whether it may carry attr with the given value.
func (p *Policy) Allows(tag, attr, value string) bool {
	rule, ok := p.list[strings.ToLower(tag)]
	if !ok {
		return false
	}
	attr = strings.ToLower(attr)
	switch {
	case attr == "":
		return true
	case slices.Contains(rule.Attrs, attr):
		return true
	case attr == "class":
		return allowsClasses(rule.Classes, value)
	case attr == "style":
		return allowsStyle(rule.Styles, value)
	default:
		return false
	}
}

func allowsClasses(allowed []string, value string) bool {
	fields := strings.Fields(value)
	if len(allowed) == 0 || len(fields) == 0 {
		return false
	}
	for _, c := range fields {
		if !slices.Contains(allowed, c) {
			return false
		}
	}
	return true
}

func allowsStyle(allowed []string, value string) bool {
	if len(allowed) == 0 {
		return false
	}
	decls, err := parser.ParseDeclarations(value)
	if err != nil || len(decls) == 0 {
		return false
	}
	for _, d := range decls {
		if !slices.Contains(allowed, strings.ToLower(d.Property)) {
			return false
		}
	}
	return true
}
