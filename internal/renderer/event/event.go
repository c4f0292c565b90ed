// Package event models a parsed markdown document as a flat, ordered stream of
// structural events, and converts that stream to and from its neighbours in the
// rendering pipeline (goldmark's AST on the way in, HTML on the way out).
package event

import (
	"fmt"
	"strings"
)

// Kind identifies the variant carried by an Event.
type Kind uint8

// Event kinds.
const (
	KindText Kind = iota
	KindCode
	KindStart
	KindEnd
	KindInlineHTML
	KindHTML
	KindSoftBreak
	KindHardBreak
	KindRule
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "Text"
	case KindCode:
		return "Code"
	case KindStart:
		return "Start"
	case KindEnd:
		return "End"
	case KindInlineHTML:
		return "InlineHTML"
	case KindHTML:
		return "HTML"
	case KindSoftBreak:
		return "SoftBreak"
	case KindHardBreak:
		return "HardBreak"
	case KindRule:
		return "Rule"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// TagKind identifies the container opened by a Start event and closed by the
// matching End event.
type TagKind uint8

// Tag kinds.
const (
	TagParagraph TagKind = iota
	TagHeading
	TagBlockQuote
	TagCodeBlock
	TagList
	TagItem
	TagEmphasis
	TagStrong
	TagStrikethrough
	TagLink
	TagImage
	TagTable
	TagTableHead
	TagTableRow
	TagTableCell
)

var tagNames = [...]string{
	TagParagraph:     "Paragraph",
	TagHeading:       "Heading",
	TagBlockQuote:    "BlockQuote",
	TagCodeBlock:     "CodeBlock",
	TagList:          "List",
	TagItem:          "Item",
	TagEmphasis:      "Emphasis",
	TagStrong:        "Strong",
	TagStrikethrough: "Strikethrough",
	TagLink:          "Link",
	TagImage:         "Image",
	TagTable:         "Table",
	TagTableHead:     "TableHead",
	TagTableRow:      "TableRow",
	TagTableCell:     "TableCell",
}

func (k TagKind) String() string {
	if int(k) < len(tagNames) {
		return tagNames[k]
	}
	return fmt.Sprintf("TagKind(%d)", uint8(k))
}

// Alignment is the horizontal alignment of a table column.
type Alignment uint8

// Column alignments.
const (
	AlignNone Alignment = iota
	AlignLeft
	AlignCenter
	AlignRight
)

func (a Alignment) String() string {
	switch a {
	case AlignLeft:
		return "left"
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	default:
		return "none"
	}
}

// Tag describes a container. Only the fields relevant to Kind are set.
type Tag struct {
	Kind       TagKind
	Level      int         // Heading
	Lang       string      // CodeBlock
	Ordered    bool        // List
	Start      int         // List
	URL        string      // Link, Image
	Title      string      // Link, Image
	Alignments []Alignment // Table
	Alignment  Alignment   // TableCell
}

// Event is one unit of markdown structure.
type Event struct {
	Kind Kind
	// Text holds the literal payload of Text, Code, InlineHTML and HTML events.
	Text string
	// Tag is set for Start and End events.
	Tag Tag
}

// Text returns a plain text run.
func Text(s string) Event { return Event{Kind: KindText, Text: s} }

// Code returns an inline code span.
func Code(s string) Event { return Event{Kind: KindCode, Text: s} }

// Start opens tag.
func Start(tag Tag) Event { return Event{Kind: KindStart, Tag: tag} }

// End closes tag.
func End(tag Tag) Event { return Event{Kind: KindEnd, Tag: tag} }

// InlineHTML returns raw markup that sits inside a block.
func InlineHTML(s string) Event { return Event{Kind: KindInlineHTML, Text: s} }

// RawHTML returns raw block-level markup.
func RawHTML(s string) Event { return Event{Kind: KindHTML, Text: s} }

// SoftBreak returns a soft line break.
func SoftBreak() Event { return Event{Kind: KindSoftBreak} }

// HardBreak returns a hard line break.
func HardBreak() Event { return Event{Kind: KindHardBreak} }

// Rule returns a thematic break.
func Rule() Event { return Event{Kind: KindRule} }

// IsStart reports whether e opens a container of kind k.
func (e Event) IsStart(k TagKind) bool { return e.Kind == KindStart && e.Tag.Kind == k }

// IsEnd reports whether e closes a container of kind k.
func (e Event) IsEnd(k TagKind) bool { return e.Kind == KindEnd && e.Tag.Kind == k }

// String renders a compact debugging form such as Start(Link https://x).
func (e Event) String() string {
	switch e.Kind {
	case KindStart, KindEnd:
		var b strings.Builder
		b.WriteString(e.Kind.String())
		b.WriteByte('(')
		b.WriteString(e.Tag.Kind.String())
		switch e.Tag.Kind {
		case TagLink, TagImage:
			if e.Tag.URL != "" {
				b.WriteByte(' ')
				b.WriteString(e.Tag.URL)
			}
		case TagHeading:
			fmt.Fprintf(&b, " %d", e.Tag.Level)
		case TagCodeBlock:
			if e.Tag.Lang != "" {
				b.WriteByte(' ')
				b.WriteString(e.Tag.Lang)
			}
		}
		b.WriteByte(')')
		return b.String()
	case KindText, KindCode, KindInlineHTML, KindHTML:
		return fmt.Sprintf("%s(%q)", e.Kind, e.Text)
	default:
		return e.Kind.String()
	}
}
