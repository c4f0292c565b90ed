// Package exporter writes the site as a static tree of HTML files ready for
// any file server.
package exporter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/obiwac/obiwac.github.io/internal/appicon"
	"github.com/obiwac/obiwac.github.io/internal/content"
	"github.com/obiwac/obiwac.github.io/internal/pages"
	"github.com/obiwac/obiwac.github.io/static"
)

const (
	indexHTML    = "index.html"
	notFoundHTML = "404.html"
	manifestJSON = "manifest.json"
	publicDir    = "public"
)

// Options configure the static export behavior.
type Options struct {
	OutputDir string
	// AssetsDir overrides embedded assets file by file.
	AssetsDir string
	// Downloads writes {slug}.pdf and {slug}.md next to every article and
	// links them from the article page.
	Downloads   bool
	CleanOutput bool
}

// Exporter renders a catalog into a static HTML bundle.
type Exporter struct {
	logger *slog.Logger
}

// New constructs an exporter instance ready for use.
func New(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger.With("component", "exporter")}
}

// Export writes every page of c to opts.OutputDir, along with the manifest,
// the app icons and the /public assets.
//
// Project and post pages land in {slug}/index.html so the exported tree
// serves the same URLs as the live server.
func (e *Exporter) Export(ctx context.Context, c *content.Catalog, opts Options) error {
	if c == nil {
		return errors.New("catalog is required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return errors.New("output directory is required")
	}

	outputDir, err := filepath.Abs(opts.OutputDir)
	if err != nil {
		return fmt.Errorf("resolve output: %w", err)
	}
	if err := prepareOutputDir(outputDir, opts.CleanOutput); err != nil {
		return err
	}

	started := time.Now()
	assets := static.Source(opts.AssetsDir)
	renderer, err := pages.New(assets, pages.Options{Downloads: opts.Downloads})
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	w := &writer{root: outputDir}

	w.page(indexHTML, func(out io.Writer) error { return renderer.Home(out, c) })
	w.page(notFoundHTML, func(out io.Writer) error { return renderer.NotFound(out, c) })

	for _, p := range c.Projects {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !p.HasPage() {
			continue
		}
		w.page(filepath.Join(p.Slug, indexHTML), func(out io.Writer) error { return renderer.Project(out, c, p) })
	}

	for _, p := range c.Posts {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.page(filepath.Join(p.Slug, indexHTML), func(out io.Writer) error { return renderer.Post(out, c, p) })
		if !opts.Downloads {
			continue
		}
		for _, format := range ValidFormats() {
			w.page(FileName(p, format), func(out io.Writer) error { return WriteArticle(out, p, format) })
		}
	}

	w.page(manifestJSON, func(out io.Writer) error {
		data, err := pages.Manifest(c.Site)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	})
	if w.err != nil {
		return w.err
	}

	if err := copyAssetBundle(filepath.Join(outputDir, publicDir), opts.AssetsDir); err != nil {
		return err
	}
	if err := writeIcons(w, assets, c.Site.BackgroundColor); err != nil {
		return err
	}

	e.logger.Info("export complete",
		slog.Int("files", w.count),
		slog.String("output", outputDir),
		slog.Duration("duration", time.Since(started)))

	return nil
}

func prepareOutputDir(output string, clean bool) error {
	if clean {
		if err := os.RemoveAll(output); err != nil {
			return fmt.Errorf("clean output: %w", err)
		}
	}
	return os.MkdirAll(output, 0o755) //nolint:gosec // standard directory permissions
}

// writer renders files under root and remembers the first failure.
type writer struct {
	root  string
	count int
	err   error
}

func (w *writer) page(rel string, render func(io.Writer) error) {
	if w.err != nil {
		return
	}
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		w.err = fmt.Errorf("render %s: %w", filepath.ToSlash(rel), err)
		return
	}
	w.write(rel, buf.Bytes())
}

func (w *writer) write(rel string, data []byte) {
	if w.err != nil {
		return
	}
	dest := filepath.Join(w.root, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil { //nolint:gosec // standard directory permissions
		w.err = err
		return
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil { //nolint:gosec // standard file permissions
		w.err = fmt.Errorf("write %s: %w", filepath.ToSlash(rel), err)
		return
	}
	w.count++
}

// copyAssetBundle lays down the embedded assets, then the override directory
// on top of them.
func copyAssetBundle(dest, override string) error {
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("reset assets dir: %w", err)
	}
	if err := static.CopyAll(static.FS(), dest); err != nil {
		return fmt.Errorf("copy embedded assets: %w", err)
	}

	override = strings.TrimSpace(override)
	if override == "" {
		return nil
	}
	info, err := os.Stat(override)
	if err != nil {
		return fmt.Errorf("stat assets override: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("assets path %s is not a directory", override)
	}
	if err := static.CopyAll(os.DirFS(override), dest); err != nil {
		return fmt.Errorf("copy override assets: %w", err)
	}
	return nil
}

func writeIcons(w *writer, assets fs.FS, background string) error {
	set, err := appicon.Load(assets, static.AvatarSVG, background)
	if err != nil {
		return err
	}
	for _, size := range appicon.Sizes {
		data, err := set.PNG(size)
		if err != nil {
			return fmt.Errorf("app icon %d: %w", size, err)
		}
		w.write(filepath.Join(publicDir, static.IconsDir, appicon.Name(size)), data)
	}
	return w.err
}
