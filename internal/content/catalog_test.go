package content_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obiwac/obiwac.github.io/internal/content"
	"github.com/obiwac/obiwac.github.io/internal/renderer"
)

func newRenderer() *renderer.Service {
	return renderer.NewService(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})))
}

func file(s string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(s), ModTime: time.Unix(100, 0)}
}

func baseFS() fstest.MapFS {
	return fstest.MapFS{
		"site.yaml": file("title: obiwac\n" +
			"description: Personal site.\n" +
			"base_url: https://obiw.ac\n" +
			"footer_note: Built with [Go](https://go.dev).\n" +
			"header_socials:\n" +
			"  - {label: \"@obiwac\", url: \"https://github.com/obiwac\", icon: gh}\n"),
		"projects/aquabsd.md": file("---\n" +
			"title: aquaBSD\n" +
			"link: https://github.com/inobulles/aquabsd\n" +
			"featured: true\n" +
			"order: 1\n" +
			"summary: An OS for **everyone**.\n" +
			"---\n"),
		"projects/mcpy.md": file("---\n" +
			"title: MCPY\n" +
			"featured: true\n" +
			"magic: true\n" +
			"order: 2\n" +
			"exhibit: {src: \"https://example.com/mcpy\", title: MCPY}\n" +
			"---\n\n" +
			"Minecraft clone in Python.\n"),
		"projects/moodle.md": file("---\ntitle: MOOdle\norder: 1\n---\n\nA cow.\n"),
		"blog/fprint.md": file("---\n" +
			"title: Fingerprint reader\n" +
			"description: Porting libfprint.\n" +
			"date: 12/10/2024\n" +
			"reading_time: 5\n" +
			"---\n\n" +
			"# Fingerprints\n\nSome words.\n"),
		"blog/s0ix.md":      file("---\ntitle: s0ix\ndate: idk\n---\n\nSleep states.\n"),
		"blog/newer.md":     file("---\ntitle: Newer\ndate: 2025-01-02\n---\n\nBody.\n"),
		"blog/draft.md":     file("---\ntitle: Draft\ndraft: true\n---\n\n[x <https://y>](https://z)\n"),
		"blog/.hidden.md":   file("---\ntitle: Hidden\n---\n"),
		"blog/README.txt":   file("not markdown"),
		"projects/sub/x.md": file("---\ntitle: nested\n---\n"),
	}
}

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	c, err := content.Load(context.Background(), baseFS(), newRenderer())
	require.NoError(t, err)

	assert.Equal(t, "obiwac", c.Site.Title)
	assert.Equal(t, "obiwac", c.Site.Author)
	assert.Equal(t, "en", c.Site.Language)
	assert.Equal(t, "#000000", c.Site.ThemeColor)
	assert.Contains(t, string(c.Site.FooterNoteHTML), `<a class="link" href="https://go.dev">Go</a>`)
	require.Len(t, c.Site.HeaderSocials, 1)
	assert.Equal(t, "gh", c.Site.HeaderSocials[0].Icon)

	var titles []string
	for _, p := range c.Featured() {
		titles = append(titles, p.Title)
	}
	assert.Equal(t, []string{"aquaBSD", "MCPY"}, titles)
	side := c.SideProjects()
	require.Len(t, side, 1)
	assert.Equal(t, "MOOdle", side[0].Title)

	aqua := c.Featured()[0]
	assert.False(t, aqua.HasPage())
	assert.Equal(t, "https://github.com/inobulles/aquabsd", aqua.Href())
	assert.Contains(t, string(aqua.Summary), "<strong>everyone</strong>")
	assert.Equal(t, `Project explanation page for "aquaBSD"`, aqua.Description)

	mcpy, ok := c.Project("mcpy")
	require.True(t, ok)
	assert.Equal(t, "/mcpy", mcpy.Href())
	assert.True(t, mcpy.Magic)
	require.NotNil(t, mcpy.Exhibit)
	assert.Equal(t, "https://example.com/mcpy", mcpy.Exhibit.Src)
	assert.Contains(t, string(mcpy.Body), "<p>Minecraft clone in Python.</p>")

	_, ok = c.Project("aquabsd")
	assert.False(t, ok, "projects without a body have no page")

	var posts []string
	for _, p := range c.Posts {
		posts = append(posts, p.Slug)
	}
	assert.Equal(t, []string{"newer", "fprint", "s0ix"}, posts)

	fprint, ok := c.Post("fprint")
	require.True(t, ok)
	assert.Equal(t, 5, fprint.ReadingTime)
	assert.Equal(t, "12/10/2024", fprint.DateLabel)
	assert.Equal(t, time.October, fprint.Date.Month())
	assert.Contains(t, string(fprint.Body), "<h1>Fingerprints</h1>")
	assert.NotContains(t, string(fprint.Source), "reading_time")

	s0ix, ok := c.Post("s0ix")
	require.True(t, ok)
	assert.True(t, s0ix.Date.IsZero())
	assert.Equal(t, "idk", s0ix.DateLabel)
	assert.Equal(t, 1, s0ix.ReadingTime)

	_, ok = c.Post("draft")
	assert.False(t, ok)

	assert.Equal(t, []string{"fprint", "mcpy", "moodle", "newer", "s0ix"}, c.Slugs())
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(fstest.MapFS)
		want   error
	}{
		{
			name:   "missing site manifest",
			mutate: func(m fstest.MapFS) { delete(m, "site.yaml") },
			want:   content.ErrMissingSiteManifest,
		},
		{
			name:   "slug shared by project and post",
			mutate: func(m fstest.MapFS) { m["blog/mcpy.md"] = file("---\ntitle: clash\n---\nx\n") },
			want:   content.ErrSlugCollision,
		},
		{
			name: "description too long",
			mutate: func(m fstest.MapFS) {
				m["blog/long.md"] = file("---\ntitle: Long\ndescription: " + strings.Repeat("é", 276) + "\n---\nx\n")
			},
			want: content.ErrDescriptionTooLong,
		},
		{
			name:   "reserved slug",
			mutate: func(m fstest.MapFS) { m["blog/metrics.md"] = file("---\ntitle: m\n---\nx\n") },
			want:   content.ErrInvalidSlug,
		},
		{
			name:   "missing title",
			mutate: func(m fstest.MapFS) { m["blog/untitled.md"] = file("no front matter\n") },
			want:   content.ErrMissingTitle,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fsys := baseFS()
			tc.mutate(fsys)
			_, err := content.Load(context.Background(), fsys, newRenderer())
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDescriptionAtLimitLoads(t *testing.T) {
	t.Parallel()

	fsys := baseFS()
	fsys["blog/limit.md"] = file("---\ntitle: Limit\ndescription: " + strings.Repeat("a", content.MaxDescriptionLength) + "\n---\nx\n")
	_, err := content.Load(context.Background(), fsys, newRenderer())
	require.NoError(t, err)
}

func TestLoadFailsOnBrokenMarkdown(t *testing.T) {
	t.Parallel()

	fsys := baseFS()
	fsys["blog/broken.md"] = file("---\ntitle: Broken\n---\n\n[see <https://b.example>](https://a.example)\n")
	_, err := content.Load(context.Background(), fsys, newRenderer())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blog/broken.md")
}

func TestProjectWithoutBodyHasNoLink(t *testing.T) {
	t.Parallel()

	fsys := baseFS()
	fsys["projects/plain.md"] = file("---\ntitle: Plain\n---\n")
	c, err := content.Load(context.Background(), fsys, newRenderer())
	require.NoError(t, err)

	var found bool
	for _, p := range c.Projects {
		if p.Slug == "plain" {
			found = true
			assert.False(t, p.HasPage())
			assert.Empty(t, p.Href())
		}
	}
	assert.True(t, found)
}

func TestReadingTime(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, content.ReadingTime(nil))
	assert.Equal(t, 1, content.ReadingTime([]byte(strings.Repeat("word ", 200))))
	assert.Equal(t, 2, content.ReadingTime([]byte(strings.Repeat("word ", 201))))
}
