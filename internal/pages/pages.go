// Package pages renders the site's HTML documents from the content catalog.
package pages

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"sync"

	"github.com/obiwac/obiwac.github.io/internal/content"
	"github.com/obiwac/obiwac.github.io/internal/cssmin"
	"github.com/obiwac/obiwac.github.io/static"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

// Page template names.
const (
	pageHome     = "home"
	pageProject  = "project"
	pagePost     = "post"
	pageNotFound = "notfound"
)

// Options configures a Renderer.
type Options struct {
	// Downloads adds PDF and Markdown links to blog posts.
	Downloads bool
}

// Renderer executes the page templates. It is safe for concurrent use.
type Renderer struct {
	pages  map[string]*template.Template
	css    template.CSS
	assets fs.FS
	opts   Options
	icons  sync.Map // map[string]template.HTML
}

type pageData struct { //nolint:govet // grouped for template readability
	Site        content.Site
	Title       string
	Description string
	Schema      template.JS
	CSS         template.CSS
	Favicon     string
	Manifest    string

	Catalog   *content.Catalog
	Project   *content.Project
	Post      *content.Post
	Downloads bool
}

// New parses the templates and inlines the minified stylesheet from assets.
func New(assets fs.FS, opts Options) (*Renderer, error) {
	if assets == nil {
		assets = static.FS()
	}

	css, err := static.Stylesheet(assets)
	if err != nil {
		return nil, err
	}
	minified, err := cssmin.Minify(css)
	if err != nil {
		return nil, err
	}

	r := &Renderer{
		pages:  make(map[string]*template.Template),
		assets: assets,
		opts:   opts,
		//nolint:gosec // stylesheet ships with the binary or the configured asset dir
		css: template.CSS(minified),
	}

	funcs := template.FuncMap{
		"icon": r.icon,
		"minutes": func(n int) string {
			return fmt.Sprintf("%d min", n)
		},
	}

	base, err := template.New("layout").Funcs(funcs).ParseFS(templateFS, "templates/layout.gohtml", "templates/partials.gohtml")
	if err != nil {
		return nil, err
	}
	for _, name := range []string{pageHome, pageProject, pagePost, pageNotFound} {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name+".gohtml"); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[name] = clone
	}
	return r, nil
}

// Home renders the landing page.
func (r *Renderer) Home(w io.Writer, c *content.Catalog) error {
	schema, err := homeSchema(c.Site)
	if err != nil {
		return err
	}
	data := r.base(c, c.Site.Title, c.Site.Description, schema)
	return r.render(w, pageHome, data)
}

// Project renders the explanation page of p.
func (r *Renderer) Project(w io.Writer, c *content.Catalog, p *content.Project) error {
	schema, err := projectSchema(c.Site, p)
	if err != nil {
		return err
	}
	data := r.base(c, p.Title, p.Description, schema)
	data.Project = p
	return r.render(w, pageProject, data)
}

// Post renders a blog article.
func (r *Renderer) Post(w io.Writer, c *content.Catalog, p *content.Post) error {
	schema, err := postSchema(c.Site, p)
	if err != nil {
		return err
	}
	description := p.Description
	if description == "" {
		description = c.Site.Description
	}
	data := r.base(c, p.Title, description, schema)
	data.Post = p
	data.Downloads = r.opts.Downloads
	return r.render(w, pagePost, data)
}

// NotFound renders the 404 page.
func (r *Renderer) NotFound(w io.Writer, c *content.Catalog) error {
	schema, err := homeSchema(c.Site)
	if err != nil {
		return err
	}
	data := r.base(c, "Page not found", c.Site.Description, schema)
	return r.render(w, pageNotFound, data)
}

func (r *Renderer) base(c *content.Catalog, title, description string, schema template.JS) pageData {
	return pageData{
		Site:        c.Site,
		Title:       title,
		Description: description,
		Schema:      schema,
		CSS:         r.css,
		Favicon:     IconPath(192),
		Manifest:    "/manifest.json",
		Catalog:     c,
	}
}

// render buffers the page so a template error never leaves a half-written
// response.
func (r *Renderer) render(w io.Writer, name string, data pageData) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

func (r *Renderer) icon(name string) (template.HTML, error) {
	if name == "" {
		return "", nil
	}
	if cached, ok := r.icons.Load(name); ok {
		return cached.(template.HTML), nil
	}
	data, err := static.Icon(r.assets, name)
	if err != nil {
		return "", err
	}
	//nolint:gosec // bundled SVG asset
	html := template.HTML(bytes.TrimSpace(data))
	r.icons.Store(name, html)
	return html, nil
}
