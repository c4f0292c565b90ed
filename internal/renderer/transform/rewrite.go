package transform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yuin/goldmark/util"

	"github.com/obiwac/obiwac.github.io/internal/renderer/event"
)

// Rewrite failures. Each one is returned wrapped in a *RewriteError.
var (
	ErrNestedLink       = errors.New("link opened inside another link")
	ErrUnbalancedLink   = errors.New("unbalanced link")
	ErrNestedTable      = errors.New("table opened inside another table")
	ErrUnbalancedTable  = errors.New("unbalanced table")
	ErrUnexpectedInLink = errors.New("unsupported event inside link")
)

const (
	// LinkClass is set on every rewritten anchor.
	LinkClass = "link"
	// TableClass is set on the element wrapping each table.
	TableClass = "table"
)

// RewriteError reports the event that broke the link/table state machine.
// Index equals the stream length when the stream ended with a container still
// open.
type RewriteError struct {
	Index int
	Event event.Event
	Err   error
}

func (e *RewriteError) Error() string {
	return fmt.Sprintf("rewrite event %d %s: %v", e.Index, e.Event, e.Err)
}

func (e *RewriteError) Unwrap() error { return e.Err }

type linkState uint8

const (
	linkIdle linkState = iota
	inLink
)

type tableState uint8

const (
	tableIdle tableState = iota
	inTable
)

// Rewriter turns links into classed anchors and wraps tables. It holds the
// state of one pass; use a fresh Rewriter (or Reset) per document.
type Rewriter struct {
	link  linkState
	table tableState

	url        string
	text       string
	textIsCode bool

	out []event.Event
}

// NewRewriter returns an idle rewriter.
func NewRewriter() *Rewriter {
	return &Rewriter{}
}

// Reset drops all state and buffered output.
func (r *Rewriter) Reset() {
	*r = Rewriter{out: r.out[:0]}
}

// Push feeds the event at position index of the input.
func (r *Rewriter) Push(index int, e event.Event) error {
	fail := func(err error) error {
		return &RewriteError{Index: index, Event: e, Err: err}
	}

	switch {
	case e.IsStart(event.TagLink):
		if r.link == inLink {
			return fail(ErrNestedLink)
		}
		r.link = inLink
		r.url = e.Tag.URL
		r.text = ""
		r.textIsCode = false
	case e.IsEnd(event.TagLink):
		if r.link != inLink {
			return fail(ErrUnbalancedLink)
		}
		r.out = append(r.out, event.InlineHTML(r.anchor()))
		r.link = linkIdle
		r.url = ""
		r.text = ""
		r.textIsCode = false
	case r.link == inLink && (e.Kind == event.KindText || e.Kind == event.KindCode):
		// last run wins
		r.text = e.Text
		r.textIsCode = e.Kind == event.KindCode
	case r.link == inLink:
		return fail(ErrUnexpectedInLink)
	case e.IsStart(event.TagTable):
		if r.table == inTable {
			return fail(ErrNestedTable)
		}
		r.table = inTable
		r.out = append(r.out, event.RawHTML(`<div class="`+TableClass+`">`+"\n"), e)
	case e.IsEnd(event.TagTable):
		if r.table != inTable {
			return fail(ErrUnbalancedTable)
		}
		r.table = tableIdle
		r.out = append(r.out, e, event.RawHTML("</div>\n"))
	default:
		r.out = append(r.out, e)
	}
	return nil
}

// Finish checks that no link or table is left open and returns the rewritten
// stream. end is the input length, used as the error index.
func (r *Rewriter) Finish(end int) ([]event.Event, error) {
	if r.link == inLink {
		return nil, &RewriteError{Index: end, Event: event.Start(event.Tag{Kind: event.TagLink, URL: r.url}), Err: ErrUnbalancedLink}
	}
	if r.table == inTable {
		return nil, &RewriteError{Index: end, Event: event.Start(event.Tag{Kind: event.TagTable}), Err: ErrUnbalancedTable}
	}
	return r.out, nil
}

func (r *Rewriter) anchor() string {
	var b strings.Builder
	b.WriteString(`<a class="` + LinkClass + `" href="`)
	b.Write(util.EscapeHTML(util.URLEscape([]byte(r.url), true)))
	b.WriteString(`">`)
	text := util.EscapeHTML([]byte(r.text))
	if r.textIsCode {
		b.WriteString("<code>")
		b.Write(text)
		b.WriteString("</code>")
	} else {
		b.Write(text)
	}
	b.WriteString("</a>")
	return b.String()
}

// Rewrite runs a fresh Rewriter over events.
func Rewrite(events []event.Event) ([]event.Event, error) {
	r := &Rewriter{out: make([]event.Event, 0, len(events)+2)}
	for i, e := range events {
		if err := r.Push(i, e); err != nil {
			return nil, err
		}
	}
	return r.Finish(len(events))
}
