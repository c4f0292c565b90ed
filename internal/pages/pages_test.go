package pages_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/andybalholm/cascadia"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/obiwac/obiwac.github.io/internal/content"
	"github.com/obiwac/obiwac.github.io/internal/pages"
	"github.com/obiwac/obiwac.github.io/internal/renderer"
	"github.com/obiwac/obiwac.github.io/site"
)

func loadCatalog(t *testing.T) *content.Catalog {
	t.Helper()
	r := renderer.NewService(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})))
	c, err := content.Load(context.Background(), site.FS(), r)
	require.NoError(t, err)
	return c
}

func newRenderer(t *testing.T, opts pages.Options) *pages.Renderer {
	t.Helper()
	r, err := pages.New(nil, opts)
	require.NoError(t, err)
	return r
}

func parse(t *testing.T, buf *bytes.Buffer) *html.Node {
	t.Helper()
	doc, err := html.Parse(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	return doc
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func meta(t *testing.T, doc *html.Node, name string) string {
	t.Helper()
	n := cascadia.MustCompile(`meta[name="` + name + `"]`).MatchFirst(doc)
	require.NotNil(t, n, "meta %s", name)
	return attr(n, "content")
}

func schema(t *testing.T, doc *html.Node) map[string]any {
	t.Helper()
	n := cascadia.MustCompile(`script[type="application/ld+json"]`).MatchFirst(doc)
	require.NotNil(t, n)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text(n)), &out))
	return out
}

func TestHome(t *testing.T) {
	t.Parallel()
	c := loadCatalog(t)
	r := newRenderer(t, pages.Options{})

	var buf bytes.Buffer
	require.NoError(t, r.Home(&buf, c))
	doc := parse(t, &buf)

	root := cascadia.MustCompile("html").MatchFirst(doc)
	assert.Equal(t, "en", attr(root, "lang"))
	assert.Equal(t, "Personal website for Aymeric Wibo", meta(t, doc, "description"))
	assert.Equal(t, "#000000", meta(t, doc, "theme-color"))
	assert.NotEmpty(t, meta(t, doc, "google-site-verification"))
	assert.Equal(t, "Aymeric Wibo", meta(t, doc, "apple-mobile-web-app-title"))
	assert.Equal(t, "Aymeric Wibo", text(cascadia.MustCompile("title").MatchFirst(doc)))

	manifest := cascadia.MustCompile(`link[rel="manifest"]`).MatchFirst(doc)
	require.NotNil(t, manifest)
	assert.Equal(t, "/manifest.json", attr(manifest, "href"))

	s := schema(t, doc)
	assert.Equal(t, "Person", s["@type"])
	assert.Equal(t, "Aymeric Wibo", s["name"])

	style := cascadia.MustCompile("head > style").MatchFirst(doc)
	require.NotNil(t, style)
	css := text(style)
	assert.NotContains(t, css, "\n\t", "stylesheet should be minified")
	assert.Contains(t, css, "a.link:hover{")

	socials := cascadia.MustCompile("header .socials a.social").MatchAll(doc)
	assert.Len(t, socials, len(c.Site.HeaderSocials))
	assert.Equal(t, "https://github.com/obiwac", attr(socials[1], "href"))
	require.NotNil(t, cascadia.MustCompile("svg").MatchFirst(socials[1]), "icons are inlined")

	grids := cascadia.MustCompile("#projects-tab .things").MatchAll(doc)
	require.Len(t, grids, 2)
	featured := cascadia.MustCompile(".thing").MatchAll(grids[0])
	assert.Len(t, featured, len(c.Featured()))
	first := cascadia.MustCompile("h2").MatchFirst(featured[0])
	assert.Equal(t, "aquaBSD", text(first))

	learn := cascadia.MustCompile("a.learn-more").MatchAll(doc)
	var hrefs []string
	for _, a := range learn {
		hrefs = append(hrefs, attr(a, "href"))
	}
	assert.Contains(t, hrefs, "/mcpy")
	assert.Contains(t, hrefs, "https://github.com/inobulles/aquabsd/releases")

	entries := cascadia.MustCompile("#articles-tab .article-entry").MatchAll(doc)
	require.Len(t, entries, len(c.Posts))
	assert.Contains(t, text(entries[0]), "Biometric authentication")
	assert.Contains(t, text(entries[0]), "Reading time:5 min")
	assert.Contains(t, text(entries[0]), "12/10/2024")

	footer := cascadia.MustCompile("footer a.link").MatchFirst(doc)
	require.NotNil(t, footer)
	assert.Equal(t, "https://github.com/yuin/goldmark", attr(footer, "href"))
}

func TestProjectPage(t *testing.T) {
	t.Parallel()
	c := loadCatalog(t)
	r := newRenderer(t, pages.Options{})

	p, ok := c.Project("mcpy")
	require.True(t, ok)

	var buf bytes.Buffer
	require.NoError(t, r.Project(&buf, c, p))
	doc := parse(t, &buf)

	assert.Equal(t, `Project explanation page for "MCPY ⛏️"`, meta(t, doc, "description"))
	assert.Equal(t, "/", attr(cascadia.MustCompile("a.go-back").MatchFirst(doc), "href"))
	assert.Equal(t, "MCPY ⛏️", text(cascadia.MustCompile(".explanation h1").MatchFirst(doc)))

	iframe := cascadia.MustCompile("aside.exhibit iframe").MatchFirst(doc)
	require.NotNil(t, iframe)
	assert.Equal(t, p.Exhibit.Src, attr(iframe, "src"))
	assert.Equal(t, "lazy", attr(iframe, "loading"))

	links := cascadia.MustCompile(".explanation main a.link").MatchAll(doc)
	assert.NotEmpty(t, links)
	assert.Len(t, cascadia.MustCompile(".explanation .socials a").MatchAll(doc), 3)

	s := schema(t, doc)
	assert.Equal(t, "Article", s["@type"])
	assert.Equal(t, "https://obiw.ac/public/thumbnails/mcpy.svg", s["image"])
	assert.Equal(t, "https://obiw.ac/mcpy", s["url"])
}

func TestPostPage(t *testing.T) {
	t.Parallel()
	c := loadCatalog(t)

	p, ok := c.Post("fprint")
	require.True(t, ok)

	var plain bytes.Buffer
	require.NoError(t, newRenderer(t, pages.Options{}).Post(&plain, c, p))
	doc := parse(t, &plain)
	assert.Nil(t, cascadia.MustCompile(".downloads").MatchFirst(doc))

	tags := cascadia.MustCompile(".blog-tag").MatchAll(doc)
	require.Len(t, tags, 2)
	assert.Equal(t, "Reading time:5 min", text(tags[0]))
	assert.Equal(t, "Date published:12/10/2024", text(tags[1]))

	assert.NotNil(t, cascadia.MustCompile(".blog-container div.table > table").MatchFirst(doc))
	assert.NotNil(t, cascadia.MustCompile(".blog-container pre span.keyword").MatchFirst(doc))

	s := schema(t, doc)
	assert.Equal(t, "2024-10-12", s["datePublished"])
	assert.Equal(t, "PT5M", s["timeRequired"])

	var withDownloads bytes.Buffer
	require.NoError(t, newRenderer(t, pages.Options{Downloads: true}).Post(&withDownloads, c, p))
	links := cascadia.MustCompile(".downloads a").MatchAll(parse(t, &withDownloads))
	require.Len(t, links, 2)
	assert.Equal(t, "/fprint.pdf", attr(links[0], "href"))
	assert.Equal(t, "/fprint.md", attr(links[1], "href"))
}

func TestUndatedPost(t *testing.T) {
	t.Parallel()
	c := loadCatalog(t)

	p, ok := c.Post("s0ix")
	require.True(t, ok)

	var buf bytes.Buffer
	require.NoError(t, newRenderer(t, pages.Options{}).Post(&buf, c, p))
	doc := parse(t, &buf)
	assert.Contains(t, text(cascadia.MustCompile(".blog-container").MatchFirst(doc)), "Date published:idk")
	_, dated := schema(t, doc)["datePublished"]
	assert.False(t, dated)
}

func TestNotFound(t *testing.T) {
	t.Parallel()
	c := loadCatalog(t)

	var buf bytes.Buffer
	require.NoError(t, newRenderer(t, pages.Options{}).NotFound(&buf, c))
	doc := parse(t, &buf)
	assert.Equal(t, "Page not found", text(cascadia.MustCompile("title").MatchFirst(doc)))
	assert.Equal(t, "404", text(cascadia.MustCompile("h1").MatchFirst(doc)))
}

func TestSchemaEscapesScriptClose(t *testing.T) {
	t.Parallel()
	c := loadCatalog(t)
	p := &content.Post{Slug: "x", Title: "</script><script>alert(1)</script>", ReadingTime: 1}

	var buf bytes.Buffer
	require.NoError(t, newRenderer(t, pages.Options{}).Post(&buf, c, p))
	assert.NotContains(t, buf.String(), "<script>alert(1)")
	s := schema(t, parse(t, &buf))
	assert.Equal(t, p.Title, s["name"])
}

func TestManifest(t *testing.T) {
	t.Parallel()
	c := loadCatalog(t)

	data, err := pages.Manifest(c.Site)
	require.NoError(t, err)

	var m struct {
		Name       string `json:"name"`
		StartURL   string `json:"start_url"`
		Display    string `json:"display"`
		ThemeColor string `json:"theme_color"`
		Icons      []struct {
			Src   string `json:"src"`
			Sizes string `json:"sizes"`
		} `json:"icons"`
	}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "Aymeric Wibo", m.Name)
	assert.Equal(t, "/", m.StartURL)
	assert.Equal(t, "standalone", m.Display)
	assert.Equal(t, "#000000", m.ThemeColor)
	require.Len(t, m.Icons, 2)
	assert.Equal(t, "/public/icons/app-192.png", m.Icons[0].Src)
	assert.Equal(t, "512x512", m.Icons[1].Sizes)
}
