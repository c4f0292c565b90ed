package content

import (
	"errors"
	"html/template"
	"slices"
	"strings"
	"time"
)

// MaxDescriptionLength is the longest meta description search engines show
// without truncating.
const MaxDescriptionLength = 275

// Load failures.
var (
	ErrSlugCollision       = errors.New("slug used more than once")
	ErrInvalidSlug         = errors.New("invalid slug")
	ErrDescriptionTooLong  = errors.New("description longer than 275 characters")
	ErrMissingTitle        = errors.New("missing title")
	ErrMissingSiteManifest = errors.New("missing site.yaml")
)

// Social is a labelled outbound link drawn with one of the bundled icons.
type Social struct {
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
	Icon  string `yaml:"icon"`
}

// Site holds the settings from site.yaml. Markdown fields are rendered into
// the matching HTML fields at load time.
type Site struct {
	Title                  string   `yaml:"title"`
	Author                 string   `yaml:"author"`
	Description            string   `yaml:"description"`
	Language               string   `yaml:"language"`
	BaseURL                string   `yaml:"base_url"`
	ThemeColor             string   `yaml:"theme_color"`
	BackgroundColor        string   `yaml:"background_color"`
	GoogleSiteVerification string   `yaml:"google_site_verification"`
	Avatar                 string   `yaml:"avatar"`
	Greeting               string   `yaml:"greeting"`
	Intro                  string   `yaml:"intro"`
	SideProjectsNote       string   `yaml:"side_projects_note"`
	FooterNote             string   `yaml:"footer_note"`
	SameAs                 []string `yaml:"same_as"`
	HeaderSocials          []Social `yaml:"header_socials"`
	FooterSocials          []Social `yaml:"footer_socials"`

	IntroHTML            template.HTML `yaml:"-"`
	SideProjectsNoteHTML template.HTML `yaml:"-"`
	FooterNoteHTML       template.HTML `yaml:"-"`
}

// Exhibit is the embedded frame shown beside a project page.
type Exhibit struct {
	Src   string `yaml:"src"`
	Title string `yaml:"title"`
}

// Project is one entry of the project grids.
type Project struct {
	Slug        string
	Title       string
	Description string
	Link        string
	Thumbnail   string
	Magic       bool
	Featured    bool
	Order       int
	Summary     template.HTML
	Exhibit     *Exhibit
	Socials     []Social
	Body        template.HTML
	Modified    time.Time
}

// HasPage reports whether the project has its own page.
func (p *Project) HasPage() bool {
	return p.Body != ""
}

// Href is where the project card points: the explicit link, else the
// project page.
func (p *Project) Href() string {
	if p.Link != "" {
		return p.Link
	}
	if p.HasPage() {
		return "/" + p.Slug
	}
	return ""
}

// Post is a blog article.
type Post struct {
	Slug        string
	Title       string
	Description string
	// Date is zero when the front matter date is missing or unparseable; the
	// raw value is then kept in DateLabel.
	Date        time.Time
	DateLabel   string
	ReadingTime int
	Socials     []Social
	Body        template.HTML
	// Source is the markdown body without front matter.
	Source   []byte
	Modified time.Time
}

// Catalog is an immutable snapshot of the site content.
type Catalog struct {
	Site     Site
	Projects []*Project
	Posts    []*Post
	Loaded   time.Time

	projects map[string]*Project
	posts    map[string]*Post
}

func newCatalog(site Site, projects []*Project, posts []*Post) *Catalog {
	c := &Catalog{
		Site:     site,
		Projects: projects,
		Posts:    posts,
		Loaded:   time.Now(),
		projects: make(map[string]*Project, len(projects)),
		posts:    make(map[string]*Post, len(posts)),
	}
	for _, p := range projects {
		c.projects[p.Slug] = p
	}
	for _, p := range posts {
		c.posts[p.Slug] = p
	}
	return c
}

// Project returns the project with a page at slug.
func (c *Catalog) Project(slug string) (*Project, bool) {
	p, ok := c.projects[slug]
	if !ok || !p.HasPage() {
		return nil, false
	}
	return p, true
}

// Post returns the post at slug.
func (c *Catalog) Post(slug string) (*Post, bool) {
	p, ok := c.posts[slug]
	return p, ok
}

// Featured returns the projects of the main grid.
func (c *Catalog) Featured() []*Project {
	return c.filterProjects(true)
}

// SideProjects returns the projects of the secondary grid.
func (c *Catalog) SideProjects() []*Project {
	return c.filterProjects(false)
}

func (c *Catalog) filterProjects(featured bool) []*Project {
	var out []*Project
	for _, p := range c.Projects {
		if p.Featured == featured {
			out = append(out, p)
		}
	}
	return out
}

// Slugs lists every slug that has a page, sorted.
func (c *Catalog) Slugs() []string {
	var out []string
	for slug, p := range c.projects {
		if p.HasPage() {
			out = append(out, slug)
		}
	}
	for slug := range c.posts {
		out = append(out, slug)
	}
	slices.Sort(out)
	return out
}

func sortProjects(projects []*Project) {
	slices.SortStableFunc(projects, func(a, b *Project) int {
		if a.Order != b.Order {
			return a.Order - b.Order
		}
		return strings.Compare(a.Title, b.Title)
	})
}

func sortPosts(posts []*Post) {
	slices.SortStableFunc(posts, func(a, b *Post) int {
		switch {
		case a.Date.IsZero() && !b.Date.IsZero():
			return 1
		case !a.Date.IsZero() && b.Date.IsZero():
			return -1
		case !a.Date.Equal(b.Date):
			return b.Date.Compare(a.Date)
		}
		return strings.Compare(a.Title, b.Title)
	})
}
