package event

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/util"
)

// FromAST flattens a goldmark document into an event stream. Entering a
// container emits Start, leaving it emits End. Leaves (text, code spans, raw
// HTML) become single events, and adjacent text runs are merged.
func FromAST(doc ast.Node, source []byte) []Event {
	b := &builder{source: source}
	_ = ast.Walk(doc, b.visit)
	return b.events
}

type builder struct {
	source []byte
	events []Event
}

func (b *builder) push(e Event) {
	b.events = append(b.events, e)
}

func (b *builder) text(s string) {
	if s == "" {
		return
	}
	if n := len(b.events); n > 0 && b.events[n-1].Kind == KindText {
		b.events[n-1].Text += s
		return
	}
	b.push(Text(s))
}

func (b *builder) container(tag Tag, entering bool) {
	if entering {
		b.push(Start(tag))
		return
	}
	b.push(End(tag))
}

//nolint:gocyclo // one case per goldmark node kind
func (b *builder) visit(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Document, *ast.TextBlock:
		// transparent containers
	case *ast.Paragraph:
		b.container(Tag{Kind: TagParagraph}, entering)
	case *ast.Heading:
		b.container(Tag{Kind: TagHeading, Level: node.Level}, entering)
	case *ast.Blockquote:
		b.container(Tag{Kind: TagBlockQuote}, entering)
	case *ast.List:
		tag := Tag{Kind: TagList, Ordered: node.IsOrdered()}
		if tag.Ordered {
			tag.Start = node.Start
		}
		b.container(tag, entering)
	case *ast.ListItem:
		b.container(Tag{Kind: TagItem}, entering)
	case *ast.ThematicBreak:
		if entering {
			b.push(Rule())
		}
	case *ast.FencedCodeBlock:
		if entering {
			b.codeBlock(string(node.Language(b.source)), node)
		}
		return ast.WalkSkipChildren, nil
	case *ast.CodeBlock:
		if entering {
			b.codeBlock("", node)
		}
		return ast.WalkSkipChildren, nil
	case *ast.HTMLBlock:
		if entering {
			b.htmlBlock(node)
		}
		return ast.WalkSkipChildren, nil
	case *ast.Text:
		if entering {
			b.textNode(node)
		}
	case *ast.String:
		if entering {
			if node.IsRaw() || node.IsCode() {
				b.text(string(node.Value))
			} else {
				b.text(decode(node.Value))
			}
		}
	case *ast.CodeSpan:
		if entering {
			b.push(Code(b.codeSpan(node)))
		}
		return ast.WalkSkipChildren, nil
	case *ast.Emphasis:
		kind := TagEmphasis
		if node.Level >= 2 {
			kind = TagStrong
		}
		b.container(Tag{Kind: kind}, entering)
	case *ast.Link:
		b.container(Tag{
			Kind:  TagLink,
			URL:   string(node.Destination),
			Title: decode(node.Title),
		}, entering)
	case *ast.Image:
		b.container(Tag{
			Kind:  TagImage,
			URL:   string(node.Destination),
			Title: decode(node.Title),
		}, entering)
	case *ast.AutoLink:
		if entering {
			b.autoLink(node)
		}
		return ast.WalkSkipChildren, nil
	case *ast.RawHTML:
		if entering {
			var raw strings.Builder
			for i := 0; i < node.Segments.Len(); i++ {
				seg := node.Segments.At(i)
				raw.Write(seg.Value(b.source))
			}
			b.push(InlineHTML(raw.String()))
		}
		return ast.WalkSkipChildren, nil
	case *extast.Strikethrough:
		b.container(Tag{Kind: TagStrikethrough}, entering)
	case *extast.Table:
		aligns := make([]Alignment, len(node.Alignments))
		for i, a := range node.Alignments {
			aligns[i] = alignment(a)
		}
		b.container(Tag{Kind: TagTable, Alignments: aligns}, entering)
	case *extast.TableHeader:
		b.container(Tag{Kind: TagTableHead}, entering)
	case *extast.TableRow:
		b.container(Tag{Kind: TagTableRow}, entering)
	case *extast.TableCell:
		b.container(Tag{Kind: TagTableCell, Alignment: alignment(node.Alignment)}, entering)
	}
	return ast.WalkContinue, nil
}

func (b *builder) textNode(n *ast.Text) {
	value := n.Segment.Value(b.source)
	if n.IsRaw() {
		b.text(string(value))
	} else {
		b.text(decode(value))
	}
	switch {
	case n.HardLineBreak():
		b.push(HardBreak())
	case n.SoftLineBreak():
		b.push(SoftBreak())
	}
}

func (b *builder) codeBlock(lang string, n ast.Node) {
	var body strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		body.Write(line.Value(b.source))
	}
	tag := Tag{Kind: TagCodeBlock, Lang: decode([]byte(lang))}
	b.push(Start(tag))
	if body.Len() > 0 {
		b.push(Text(body.String()))
	}
	b.push(End(tag))
}

func (b *builder) htmlBlock(n *ast.HTMLBlock) {
	var raw strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		raw.Write(line.Value(b.source))
	}
	if n.HasClosure() {
		raw.Write(n.ClosureLine.Value(b.source))
	}
	b.push(RawHTML(raw.String()))
}

func (b *builder) codeSpan(n *ast.CodeSpan) string {
	var code strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		var value []byte
		switch child := c.(type) {
		case *ast.Text:
			value = child.Segment.Value(b.source)
		case *ast.String:
			value = child.Value
		default:
			continue
		}
		if bytes.HasSuffix(value, []byte("\n")) {
			code.Write(value[:len(value)-1])
			code.WriteByte(' ')
			continue
		}
		code.Write(value)
	}
	return code.String()
}

func (b *builder) autoLink(n *ast.AutoLink) {
	url := n.URL(b.source)
	if n.AutoLinkType == ast.AutoLinkEmail && !bytes.HasPrefix(bytes.ToLower(url), []byte("mailto:")) {
		url = append([]byte("mailto:"), url...)
	}
	tag := Tag{Kind: TagLink, URL: string(url)}
	b.push(Start(tag))
	b.text(string(n.Label(b.source)))
	b.push(End(tag))
}

func alignment(a extast.Alignment) Alignment {
	switch a {
	case extast.AlignLeft:
		return AlignLeft
	case extast.AlignCenter:
		return AlignCenter
	case extast.AlignRight:
		return AlignRight
	default:
		return AlignNone
	}
}

// decode resolves backslash escapes and character references in source text.
func decode(v []byte) string {
	if len(v) == 0 {
		return ""
	}
	v = util.UnescapePunctuations(v)
	v = util.ResolveNumericReferences(v)
	v = util.ResolveEntityNames(v)
	return string(v)
}
