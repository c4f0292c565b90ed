package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/obiwac/obiwac.github.io/internal/renderer"
)

// Content layout inside the source tree.
const (
	SiteFile    = "site.yaml"
	ProjectsDir = "projects"
	PostsDir    = "blog"
)

// WordsPerMinute is the reading speed used when a post does not state its
// reading time.
const WordsPerMinute = 200

var dateLayouts = []string{"2006-01-02", "02/01/2006"}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// reserved slugs are taken by fixed routes.
var reserved = map[string]struct{}{
	"public":  {},
	"healthz": {},
	"metrics": {},
	"events":  {},
}

type projectMeta struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Link        string   `yaml:"link"`
	Thumbnail   string   `yaml:"thumbnail"`
	Magic       bool     `yaml:"magic"`
	Featured    bool     `yaml:"featured"`
	Order       int      `yaml:"order"`
	Summary     string   `yaml:"summary"`
	Exhibit     *Exhibit `yaml:"exhibit"`
	Socials     []Social `yaml:"socials"`
	Draft       bool     `yaml:"draft"`
}

type postMeta struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Date        string   `yaml:"date"`
	ReadingTime int      `yaml:"reading_time"`
	Socials     []Social `yaml:"socials"`
	Draft       bool     `yaml:"draft"`
}

// Load reads site.yaml, projects/*.md and blog/*.md from fsys and renders
// every markdown field through r.
func Load(ctx context.Context, fsys fs.FS, r *renderer.Service) (*Catalog, error) {
	if fsys == nil {
		return nil, errors.New("content source must be provided")
	}
	if r == nil {
		return nil, errors.New("renderer service must be provided")
	}

	site, err := loadSite(fsys, r)
	if err != nil {
		return nil, err
	}

	l := &loader{fsys: fsys, renderer: r, slugs: make(map[string]string)}

	projects, err := l.projects(ctx)
	if err != nil {
		return nil, err
	}
	posts, err := l.posts(ctx)
	if err != nil {
		return nil, err
	}

	sortProjects(projects)
	sortPosts(posts)
	return newCatalog(site, projects, posts), nil
}

func loadSite(fsys fs.FS, r *renderer.Service) (Site, error) {
	var site Site
	data, err := fs.ReadFile(fsys, SiteFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return site, ErrMissingSiteManifest
		}
		return site, fmt.Errorf("read %s: %w", SiteFile, err)
	}
	if err := yaml.Unmarshal(data, &site); err != nil {
		return site, fmt.Errorf("parse %s: %w", SiteFile, err)
	}
	if strings.TrimSpace(site.Title) == "" {
		return site, fmt.Errorf("%s: %w", SiteFile, ErrMissingTitle)
	}
	if err := checkDescription(SiteFile, site.Description); err != nil {
		return site, err
	}
	if site.Language == "" {
		site.Language = "en"
	}
	if site.ThemeColor == "" {
		site.ThemeColor = "#000000"
	}
	if site.BackgroundColor == "" {
		site.BackgroundColor = site.ThemeColor
	}
	if site.Author == "" {
		site.Author = site.Title
	}

	fields := []struct {
		name string
		src  string
		dst  *template.HTML
	}{
		{"intro", site.Intro, &site.IntroHTML},
		{"side_projects_note", site.SideProjectsNote, &site.SideProjectsNoteHTML},
		{"footer_note", site.FooterNote, &site.FooterNoteHTML},
	}
	for _, f := range fields {
		if f.src == "" {
			continue
		}
		html, err := r.Fragment(f.src)
		if err != nil {
			return site, fmt.Errorf("%s %s: %w", SiteFile, f.name, err)
		}
		*f.dst = html
	}
	return site, nil
}

type loader struct {
	fsys     fs.FS
	renderer *renderer.Service
	// slug -> file that claimed it
	slugs map[string]string
}

type sourceFile struct {
	path    string
	slug    string
	modTime time.Time
	content []byte
	meta    []byte
	body    []byte
}

func (l *loader) read(ctx context.Context, dir string) ([]*sourceFile, error) {
	entries, err := fs.ReadDir(l.fsys, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var files []*sourceFile
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || !isMarkdownPath(entry.Name()) {
			continue
		}

		rel := path.Join(dir, entry.Name())
		slug := slugify(entry.Name())
		if !slugPattern.MatchString(slug) {
			return nil, fmt.Errorf("%s: %w %q", rel, ErrInvalidSlug, slug)
		}
		if _, ok := reserved[slug]; ok {
			return nil, fmt.Errorf("%s: %w %q (reserved)", rel, ErrInvalidSlug, slug)
		}

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", rel, err)
		}
		content, err := fs.ReadFile(l.fsys, rel)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rel, err)
		}
		meta, body := splitFrontMatter(content)
		files = append(files, &sourceFile{
			path:    rel,
			slug:    slug,
			modTime: info.ModTime(),
			content: content,
			meta:    meta,
			body:    body,
		})
	}
	return files, nil
}

// accept claims the slug of f and renders it.
func (l *loader) accept(ctx context.Context, f *sourceFile) (renderer.Document, error) {
	if other, ok := l.slugs[f.slug]; ok {
		return renderer.Document{}, fmt.Errorf("%s and %s: %w %q", other, f.path, ErrSlugCollision, f.slug)
	}
	l.slugs[f.slug] = f.path
	return l.renderer.Render(ctx, f.path, f.modTime, f.content)
}

func (l *loader) projects(ctx context.Context) ([]*Project, error) {
	files, err := l.read(ctx, ProjectsDir)
	if err != nil {
		return nil, err
	}

	projects := make([]*Project, 0, len(files))
	for _, f := range files {
		var meta projectMeta
		if err := yaml.Unmarshal(f.meta, &meta); err != nil {
			return nil, fmt.Errorf("parse front matter of %s: %w", f.path, err)
		}
		if meta.Draft {
			continue
		}
		doc, err := l.accept(ctx, f)
		if err != nil {
			return nil, err
		}

		title := firstNonEmpty(meta.Title, doc.Metadata.Title)
		if title == "" {
			return nil, fmt.Errorf("%s: %w", f.path, ErrMissingTitle)
		}
		description := meta.Description
		if description == "" {
			description = fmt.Sprintf("Project explanation page for %q", title)
		}
		if err := checkDescription(f.path, description); err != nil {
			return nil, err
		}

		var summary template.HTML
		if meta.Summary != "" {
			summary, err = l.renderer.Fragment(meta.Summary)
			if err != nil {
				return nil, fmt.Errorf("%s summary: %w", f.path, err)
			}
		}

		p := &Project{
			Slug:        f.slug,
			Title:       title,
			Description: description,
			Link:        meta.Link,
			Thumbnail:   meta.Thumbnail,
			Magic:       meta.Magic,
			Featured:    meta.Featured,
			Order:       meta.Order,
			Summary:     summary,
			Exhibit:     meta.Exhibit,
			Socials:     meta.Socials,
			Modified:    f.modTime,
		}
		if len(bytes.TrimSpace(f.body)) > 0 {
			p.Body = doc.HTML
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func (l *loader) posts(ctx context.Context) ([]*Post, error) {
	files, err := l.read(ctx, PostsDir)
	if err != nil {
		return nil, err
	}

	posts := make([]*Post, 0, len(files))
	for _, f := range files {
		var meta postMeta
		if err := yaml.Unmarshal(f.meta, &meta); err != nil {
			return nil, fmt.Errorf("parse front matter of %s: %w", f.path, err)
		}
		if meta.Draft {
			continue
		}
		doc, err := l.accept(ctx, f)
		if err != nil {
			return nil, err
		}

		title := firstNonEmpty(meta.Title, doc.Metadata.Title)
		if title == "" {
			return nil, fmt.Errorf("%s: %w", f.path, ErrMissingTitle)
		}
		if err := checkDescription(f.path, meta.Description); err != nil {
			return nil, err
		}

		date, label := parseDate(meta.Date)
		readingTime := meta.ReadingTime
		if readingTime <= 0 {
			readingTime = ReadingTime(f.body)
		}

		posts = append(posts, &Post{
			Slug:        f.slug,
			Title:       title,
			Description: meta.Description,
			Date:        date,
			DateLabel:   label,
			ReadingTime: readingTime,
			Socials:     meta.Socials,
			Body:        doc.HTML,
			Source:      f.body,
			Modified:    f.modTime,
		})
	}
	return posts, nil
}

// ReadingTime estimates minutes to read markdown at WordsPerMinute, rounded
// up, never below one.
func ReadingTime(markdown []byte) int {
	words := len(bytes.Fields(markdown))
	minutes := (words + WordsPerMinute - 1) / WordsPerMinute
	return max(minutes, 1)
}

// parseDate accepts ISO dates and day/month/year dates. Anything else is
// returned as a label with a zero time.
func parseDate(raw string) (time.Time, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, t.Format("02/01/2006")
		}
	}
	return time.Time{}, raw
}

func checkDescription(where, description string) error {
	if n := utf8.RuneCountInString(description); n > MaxDescriptionLength {
		return fmt.Errorf("%s: %w (%d)", where, ErrDescriptionTooLong, n)
	}
	return nil
}

// splitFrontMatter separates a leading "---" delimited YAML block from the
// markdown body. Without front matter meta is nil and body is src.
func splitFrontMatter(src []byte) (meta, body []byte) {
	first, rest, ok := bytes.Cut(src, []byte("\n"))
	if !ok || !isDelimiter(first) {
		return nil, src
	}
	off := 0
	for off <= len(rest) {
		line := rest[off:]
		next := len(rest)
		if i := bytes.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
			next = off + i + 1
		}
		if isDelimiter(line) {
			return rest[:off], rest[next:]
		}
		if next == len(rest) {
			break
		}
		off = next
	}
	return nil, src
}

func isDelimiter(line []byte) bool {
	return string(bytes.TrimRight(line, " \t\r")) == "---"
}

func slugify(name string) string {
	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(name, " ", "-")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func isMarkdownPath(p string) bool {
	name := strings.ToLower(p)
	return strings.HasSuffix(name, ".md") || strings.HasSuffix(name, ".markdown")
}
