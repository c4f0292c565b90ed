// Package static embeds the site assets served under /public: stylesheets,
// SVG icons and project thumbnails.
package static

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Paths of the assets other packages depend on.
const (
	MainCSS      = "css/main.css"
	HighlightCSS = "css/highlight.css"
	AvatarSVG    = "icons/me.svg"
	IconsDir     = "icons"
)

//go:embed css/*.css icons/*.svg thumbnails/*
var assets embed.FS

// FS exposes the embedded static assets.
func FS() fs.FS {
	return assets
}

// Source returns the asset tree to serve: dir when set, the embedded assets
// otherwise.
func Source(dir string) fs.FS {
	if dir == "" {
		return assets
	}
	return overlay{disk: os.DirFS(dir), base: assets}
}

// overlay prefers files from disk and falls back to the embedded copy, so a
// partial asset directory still serves every icon.
type overlay struct {
	disk fs.FS
	base fs.FS
}

func (o overlay) Open(name string) (fs.File, error) {
	f, err := o.disk.Open(name)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return o.base.Open(name)
}

// Has reports whether the given relative path exists in src.
func Has(src fs.FS, name string) bool {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	f, err := src.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()
	info, err := f.Stat()
	return err == nil && !info.IsDir()
}

// Icon returns the SVG markup of a bundled icon.
func Icon(src fs.FS, name string) ([]byte, error) {
	if name == "" || strings.ContainsAny(name, "/\\.") {
		return nil, fmt.Errorf("invalid icon name %q", name)
	}
	data, err := fs.ReadFile(src, path.Join(IconsDir, name+".svg"))
	if err != nil {
		return nil, fmt.Errorf("icon %s: %w", name, err)
	}
	return data, nil
}

// Stylesheet concatenates the site and highlight stylesheets.
func Stylesheet(src fs.FS) (string, error) {
	var b strings.Builder
	for _, name := range []string{MainCSS, HighlightCSS} {
		data, err := fs.ReadFile(src, name)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
		b.Write(data)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// CopyAll writes every asset of src into dest (relative layout preserved).
func CopyAll(src fs.FS, dest string) error {
	return fs.WalkDir(src, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		target := filepath.Join(dest, filepath.FromSlash(p))
		if err := ensureDir(target); err != nil {
			return err
		}
		data, err := fs.ReadFile(src, p)
		if err != nil {
			return err
		}
		return writeFile(target, data)
	})
}

func ensureDir(target string) error {
	dir := filepath.Dir(target)
	return os.MkdirAll(dir, 0o755) //nolint:gosec // standard directory permissions
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644) //nolint:gosec // standard file permissions
}
