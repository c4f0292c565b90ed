// Package transform holds the passes that rewrite the event stream between
// parsing and serialization.
package transform

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/yuin/goldmark/util"

	"github.com/obiwac/obiwac.github.io/internal/renderer/event"
)

// Highlight classes. The stylesheet and the sanitizer allow-list both key on
// these names.
const (
	ClassGlyph             = "glyph"
	ClassLiteral           = "literal"
	ClassIdentifier        = "identifier"
	ClassSpecialIdentifier = "special-identifier"
	ClassStrongIdentifier  = "strong-identifier"
	ClassKeyword           = "keyword"
	ClassComment           = "comment"
)

// Classes lists every class Highlight can emit.
var Classes = []string{
	ClassGlyph,
	ClassLiteral,
	ClassIdentifier,
	ClassSpecialIdentifier,
	ClassStrongIdentifier,
	ClassKeyword,
	ClassComment,
}

// Highlight splits the text of code blocks whose language chroma knows into
// classed spans. Everything else passes through untouched.
func Highlight(events []event.Event) ([]event.Event, error) {
	out := make([]event.Event, 0, len(events))
	var lexer chroma.Lexer
	for i, e := range events {
		switch {
		case e.IsStart(event.TagCodeBlock):
			lexer = lookupLexer(e.Tag.Lang)
			out = append(out, e)
		case e.IsEnd(event.TagCodeBlock):
			lexer = nil
			out = append(out, e)
		case lexer != nil && e.Kind == event.KindText:
			spans, err := tokenise(lexer, e.Text)
			if err != nil {
				return nil, fmt.Errorf("highlight event %d: %w", i, err)
			}
			out = append(out, spans...)
		default:
			out = append(out, e)
		}
	}
	return out, nil
}

func lookupLexer(lang string) chroma.Lexer {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return nil
	}
	lexer := lexers.Get(lang)
	if lexer == nil {
		return nil
	}
	return chroma.Coalesce(lexer)
}

func tokenise(lexer chroma.Lexer, code string) ([]event.Event, error) {
	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return nil, err
	}
	var out []event.Event
	for _, tok := range it.Tokens() {
		if tok.Value == "" {
			continue
		}
		class := ClassFor(tok.Type)
		if class == "" || strings.TrimSpace(tok.Value) == "" {
			out = appendText(out, tok.Value)
			continue
		}
		var span strings.Builder
		span.WriteString(`<span class="`)
		span.WriteString(class)
		span.WriteString(`">`)
		span.Write(util.EscapeHTML([]byte(tok.Value)))
		span.WriteString(`</span>`)
		out = append(out, event.InlineHTML(span.String()))
	}
	return out, nil
}

func appendText(out []event.Event, s string) []event.Event {
	if n := len(out); n > 0 && out[n-1].Kind == event.KindText {
		out[n-1].Text += s
		return out
	}
	return append(out, event.Text(s))
}

// ClassFor maps a chroma token type to a highlight class. Tokens that carry no
// class map to "".
func ClassFor(t chroma.TokenType) string {
	switch t.Category() {
	case chroma.Keyword:
		switch t {
		case chroma.KeywordConstant:
			return ClassLiteral
		case chroma.KeywordType:
			return ClassStrongIdentifier
		}
		return ClassKeyword
	case chroma.Name:
		switch {
		case t.SubCategory() == chroma.NameBuiltin,
			t.SubCategory() == chroma.NameFunction,
			t == chroma.NameDecorator:
			return ClassSpecialIdentifier
		case t == chroma.NameClass,
			t == chroma.NameNamespace,
			t == chroma.NameException,
			t == chroma.NameVariableClass:
			return ClassStrongIdentifier
		case t == chroma.NameConstant:
			return ClassLiteral
		}
		return ClassIdentifier
	case chroma.Literal:
		return ClassLiteral
	case chroma.Operator, chroma.Punctuation:
		return ClassGlyph
	case chroma.Comment:
		if t.SubCategory() == chroma.CommentPreproc {
			return ClassSpecialIdentifier
		}
		return ClassComment
	}
	return ""
}
