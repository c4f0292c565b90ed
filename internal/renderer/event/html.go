package event

import (
	"bytes"
	"io"
	"strconv"

	"github.com/yuin/goldmark/util"
)

// WriteHTML serializes events to w. The output is not sanitized: raw HTML
// events are copied verbatim.
func WriteHTML(w io.Writer, events []Event) error {
	s := &serializer{}
	for i := 0; i < len(events); i++ {
		i = s.event(events, i)
	}
	_, err := w.Write(s.buf.Bytes())
	return err
}

// HTML is WriteHTML into a string.
func HTML(events []Event) string {
	var buf bytes.Buffer
	_ = WriteHTML(&buf, events)
	return buf.String()
}

type serializer struct {
	buf    bytes.Buffer
	inHead bool
}

func (s *serializer) str(v string) {
	s.buf.WriteString(v)
}

func (s *serializer) escaped(v string) {
	s.buf.Write(util.EscapeHTML([]byte(v)))
}

func (s *serializer) url(v string) {
	s.buf.Write(util.EscapeHTML(util.URLEscape([]byte(v), true)))
}

func (s *serializer) newline() {
	if n := s.buf.Len(); n > 0 && s.buf.Bytes()[n-1] != '\n' {
		s.buf.WriteByte('\n')
	}
}

// event writes events[i] and returns the index of the last event consumed.
func (s *serializer) event(events []Event, i int) int {
	e := events[i]
	switch e.Kind {
	case KindText:
		s.escaped(e.Text)
	case KindCode:
		s.str("<code>")
		s.escaped(e.Text)
		s.str("</code>")
	case KindInlineHTML:
		s.str(e.Text)
	case KindHTML:
		s.newline()
		s.str(e.Text)
	case KindSoftBreak:
		s.buf.WriteByte('\n')
	case KindHardBreak:
		s.str("<br />\n")
	case KindRule:
		s.newline()
		s.str("<hr />\n")
	case KindStart:
		if e.Tag.Kind == TagImage {
			return s.image(events, i)
		}
		s.start(e.Tag)
	case KindEnd:
		s.end(e.Tag)
	}
	return i
}

func (s *serializer) start(tag Tag) {
	switch tag.Kind {
	case TagParagraph:
		s.newline()
		s.str("<p>")
	case TagHeading:
		s.newline()
		s.str("<h" + strconv.Itoa(clampLevel(tag.Level)) + ">")
	case TagBlockQuote:
		s.newline()
		s.str("<blockquote>\n")
	case TagCodeBlock:
		s.newline()
		s.str("<pre><code")
		if tag.Lang != "" {
			s.str(` class="language-`)
			s.escaped(tag.Lang)
			s.str(`"`)
		}
		s.str(">")
	case TagList:
		s.newline()
		switch {
		case !tag.Ordered:
			s.str("<ul>\n")
		case tag.Start != 1:
			s.str(`<ol start="` + strconv.Itoa(tag.Start) + `">` + "\n")
		default:
			s.str("<ol>\n")
		}
	case TagItem:
		s.newline()
		s.str("<li>")
	case TagEmphasis:
		s.str("<em>")
	case TagStrong:
		s.str("<strong>")
	case TagStrikethrough:
		s.str("<del>")
	case TagLink:
		s.str(`<a href="`)
		s.url(tag.URL)
		s.str(`"`)
		if tag.Title != "" {
			s.str(` title="`)
			s.escaped(tag.Title)
			s.str(`"`)
		}
		s.str(">")
	case TagTable:
		s.newline()
		s.str("<table>\n")
	case TagTableHead:
		s.inHead = true
		s.str("<thead>\n<tr>\n")
	case TagTableRow:
		s.str("<tr>\n")
	case TagTableCell:
		if s.inHead {
			s.str("<th")
		} else {
			s.str("<td")
		}
		if tag.Alignment != AlignNone {
			s.str(` style="text-align: ` + tag.Alignment.String() + `"`)
		}
		s.str(">")
	}
}

func (s *serializer) end(tag Tag) {
	switch tag.Kind {
	case TagParagraph:
		s.str("</p>\n")
	case TagHeading:
		s.str("</h" + strconv.Itoa(clampLevel(tag.Level)) + ">\n")
	case TagBlockQuote:
		s.newline()
		s.str("</blockquote>\n")
	case TagCodeBlock:
		s.str("</code></pre>\n")
	case TagList:
		s.newline()
		if tag.Ordered {
			s.str("</ol>\n")
		} else {
			s.str("</ul>\n")
		}
	case TagItem:
		s.str("</li>\n")
	case TagEmphasis:
		s.str("</em>")
	case TagStrong:
		s.str("</strong>")
	case TagStrikethrough:
		s.str("</del>")
	case TagLink:
		s.str("</a>")
	case TagTable:
		s.str("</tbody>\n</table>\n")
	case TagTableHead:
		s.inHead = false
		s.str("</tr>\n</thead>\n<tbody>\n")
	case TagTableRow:
		s.str("</tr>\n")
	case TagTableCell:
		if s.inHead {
			s.str("</th>\n")
		} else {
			s.str("</td>\n")
		}
	}
}

// image writes an img element whose alt text is the plain text of every
// event up to the matching End(Image).
func (s *serializer) image(events []Event, i int) int {
	tag := events[i].Tag
	var alt bytes.Buffer
	depth := 1
	j := i + 1
	for ; j < len(events) && depth > 0; j++ {
		e := events[j]
		switch {
		case e.IsStart(TagImage):
			depth++
		case e.IsEnd(TagImage):
			depth--
		case e.Kind == KindText, e.Kind == KindCode:
			alt.WriteString(e.Text)
		case e.Kind == KindSoftBreak, e.Kind == KindHardBreak:
			alt.WriteByte(' ')
		}
	}
	s.str(`<img src="`)
	s.url(tag.URL)
	s.str(`" alt="`)
	s.escaped(alt.String())
	s.str(`"`)
	if tag.Title != "" {
		s.str(` title="`)
		s.escaped(tag.Title)
		s.str(`"`)
	}
	s.str(" />")
	return j - 1
}

func clampLevel(level int) int {
	switch {
	case level < 1:
		return 1
	case level > 6:
		return 6
	default:
		return level
	}
}
