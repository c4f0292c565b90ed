package sanitize

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/andybalholm/cascadia"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var hostile = []string{
	`<script>alert(1)</script><p onclick="x()">hi</p>`,
	`<a href="javascript:alert(1)" class="link evil">x</a>`,
	`<a href="https://example.com" class="link" target="_blank">ok</a>`,
	`<span class="keyword">fn</span> <span class="nope">x</span>`,
	`<div class="table" style="overflow-x: auto"><table><tr><td style="text-align: center; color: red">1</td></tr></table></div>`,
	`<iframe class="exhibit" src="https://example.com/embed" width="100" height="50" frameborder="0" onload="x()"></iframe>`,
	`<img src="/public/x.png" alt="x" onerror="y()">`,
	`<style>body{display:none}</style><object data="x"></object><h1 id="top">t</h1>`,
	`<form action="/"><input name="q"></form><svg><circle r="1"/></svg>`,
	`<ol start="3" type="a"><li>x</li></ol><pre><code class="language-rust">fn</code></pre>`,
	`<iframe class="exhibit" src="https://example.com">Tom &amp; Jerry</iframe>`,
	`<iframe src="https://example.com">&lt;p&gt;never closed`,
	`<iframe src="https://example.com"/>a &amp; b</iframe><p>after</p>`,
	`<textarea>x &amp; y</textarea><title>t &lt; u</title><xmp><b>raw</b></xmp>`,
	`<p>open <em>never closed <a href="/x" class="link">dangling`,
}

func elements(t *testing.T, fragment string) []*html.Node {
	t.Helper()
	root := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), root)
	require.NoError(t, err)
	for _, n := range nodes {
		root.AppendChild(n)
	}
	var out []*html.Node
	for _, n := range cascadia.MustCompile("*").MatchAll(root) {
		if n != root {
			out = append(out, n)
		}
	}
	return out
}

// assertAllowed checks every element and attribute in out against p.
func assertAllowed(t *testing.T, p *Policy, in, out string) {
	t.Helper()
	for _, n := range elements(t, out) {
		if n.Data == "tbody" {
			// inserted by the HTML parser around bare rows
			continue
		}
		assert.True(t, p.Allows(n.Data, "", ""), "tag %q survived in %q from %q", n.Data, out, in)
		for _, a := range n.Attr {
			assert.True(t, p.Allows(n.Data, a.Key, a.Val), "attr %s=%q on %s survived in %q from %q", a.Key, a.Val, n.Data, out, in)
		}
	}
}

func TestSanitizeOutputStaysInAllowList(t *testing.T) {
	t.Parallel()

	p := Default()
	for _, in := range hostile {
		assertAllowed(t, p, in, p.Sanitize(in))
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	t.Parallel()

	p := Default()
	for _, in := range hostile {
		once := p.Sanitize(in)
		assert.Equal(t, once, p.Sanitize(once), "input %q", in)
	}
}

var (
	fragmentTags = []string{
		"p", "a", "span", "div", "iframe", "img", "pre", "code", "em", "ol", "li",
		"table", "tr", "td", "textarea", "title", "script", "style", "xmp", "noscript", "plaintext",
	}
	fragmentAttrs = []string{
		`class="link"`, `class="keyword evil"`, `class="exhibit"`,
		`href="https://x.example/?a=1&amp;b=2"`, `href="javascript:alert(1)"`,
		`src="https://example.com/embed"`, `style="text-align: center; color: red"`,
		`onclick="x()"`, `start="3"`, `frameborder="0"`,
	}
	fragmentTexts = []string{
		"Tom &amp; Jerry", "a < b", "&lt;p&gt;", "&nbsp;", `"quoted"`, "x", "&amp;amp;", "\n",
	}
)

// randomFragment strings together tags, attributes and text from the tables
// above. Tags are left unbalanced on purpose.
func randomFragment(r *rand.Rand) string {
	var b strings.Builder
	for range 1 + r.IntN(12) {
		tag := fragmentTags[r.IntN(len(fragmentTags))]
		switch r.IntN(4) {
		case 0:
			b.WriteString("<" + tag)
			for range r.IntN(3) {
				b.WriteString(" " + fragmentAttrs[r.IntN(len(fragmentAttrs))])
			}
			if r.IntN(5) == 0 {
				b.WriteString("/")
			}
			b.WriteString(">")
		case 1:
			b.WriteString("</" + tag + ">")
		default:
			b.WriteString(fragmentTexts[r.IntN(len(fragmentTexts))])
		}
	}
	return b.String()
}

func TestSanitizeRandomFragments(t *testing.T) {
	t.Parallel()

	p := Default()
	r := rand.New(rand.NewPCG(0x5eed, 42))
	for range 2000 {
		in := randomFragment(r)
		once := p.Sanitize(in)
		if !assert.Equal(t, once, p.Sanitize(once), "input %q", in) {
			return
		}
		assertAllowed(t, p, in, once)
	}
}

func FuzzSanitize(f *testing.F) {
	for _, in := range hostile {
		f.Add(in)
	}
	f.Add("<iframe src=x>")
	f.Add("<plaintext><iframe>&amp;")
	f.Add("<a href=/ class=link><a>")
	f.Add("<table><td style='text-align:left'>")

	p := Default()
	f.Fuzz(func(t *testing.T, in string) {
		once := p.Sanitize(in)
		assert.Equal(t, once, p.Sanitize(once))
		assertAllowed(t, p, in, once)
	})
}

func TestDropRawText(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"plain text & more":                        "plain text & more",
		`<p class="x">a &amp; b</p>`:               `<p class="x">a &amp; b</p>`,
		`<iframe src="y">Tom &amp; Jerry</iframe>`: `<iframe src="y"></iframe>`,
		`<IFRAME>shout</IFRAME>`:                   `<IFRAME></IFRAME>`,
		`<script>alert(1)</script>ok`:              `<script></script>ok`,
		`<title>t</title><!-- c --><p>p</p>`:       `<title></title><!-- c --><p>p</p>`,
		`<iframe>open to the end`:                  `<iframe>`,
	}
	for in, want := range tests {
		assert.Equal(t, want, dropRawText(in), "input %q", in)
	}
}

func TestSanitizeDetails(t *testing.T) {
	t.Parallel()

	p := Default()
	tests := []struct {
		name     string
		in       string
		contains []string
		excludes []string
	}{
		{
			name:     "script dropped with content",
			in:       hostile[0],
			contains: []string{"<p>hi</p>"},
			excludes: []string{"script", "alert", "onclick"},
		},
		{
			name:     "bad href and class stripped",
			in:       hostile[1],
			contains: []string{"x"},
			excludes: []string{"javascript", "evil", "<a"},
		},
		{
			name:     "link anchor kept",
			in:       hostile[2],
			contains: []string{`href="https://example.com"`, `class="link"`, ">ok</a>"},
			excludes: []string{"target"},
		},
		{
			name:     "unknown span class stripped",
			in:       hostile[3],
			contains: []string{`<span class="keyword">fn</span>`, "<span>x</span>"},
			excludes: []string{"nope"},
		},
		{
			name:     "table wrapper and cell alignment",
			in:       hostile[4],
			contains: []string{`<div class="table" style="overflow-x: auto">`, `<td style="text-align: center">1</td>`},
			excludes: []string{"color"},
		},
		{
			name:     "iframe attributes",
			in:       hostile[5],
			contains: []string{`class="exhibit"`, `src="https://example.com/embed"`, `frameborder="0"`},
			excludes: []string{"onload"},
		},
		{
			name:     "language class stripped",
			in:       hostile[9],
			contains: []string{`<ol start="3">`, "<pre><code>fn</code></pre>"},
			excludes: []string{"language-", "type="},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := p.Sanitize(tc.in)
			for _, s := range tc.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tc.excludes {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestAllows(t *testing.T) {
	t.Parallel()

	p := Default()
	assert.True(t, p.Allows("a", "class", "link"))
	assert.False(t, p.Allows("a", "class", "evil"))
	assert.True(t, p.Allows("A", "HREF", "https://x"))
	assert.True(t, p.Allows("span", "class", "strong-identifier"))
	assert.False(t, p.Allows("span", "style", "color: red"))
	assert.True(t, p.Allows("td", "style", "text-align: right"))
	assert.False(t, p.Allows("td", "style", "text-align: right; color: red"))
	assert.True(t, p.Allows("iframe", "class", "anything"))
	assert.False(t, p.Allows("script", "", ""))
	assert.False(t, p.Allows("p", "id", "x"))
}

func TestCustomPolicy(t *testing.T) {
	t.Parallel()

	p := NewPolicy(AllowList{"P": {}, "mark": {Classes: []string{"hot"}}})
	assert.True(t, p.Allows("p", "", ""))
	assert.True(t, p.Allows("mark", "class", "hot"))
	assert.False(t, p.Allows("em", "", ""))
	out := p.Sanitize(`<p>a <mark class="hot cold">b</mark> <em>c</em></p>`)
	assert.Equal(t, `<p>a <mark>b</mark> c</p>`, out)
}
