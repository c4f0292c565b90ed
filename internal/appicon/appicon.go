// Package appicon rasterizes the SVG avatar into the PNG icons referenced by
// the web app manifest.
package appicon

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io/fs"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Sizes lists the square icon sizes advertised in the manifest.
var Sizes = []int{192, 512}

// MaxSize bounds the canvas a caller can request.
const MaxSize = 1024

// ErrSize is returned for sizes outside (0, MaxSize].
var ErrSize = errors.New("invalid icon size")

// Rasterize draws svg onto a size×size canvas and encodes it as PNG. The
// drawing is scaled to fit and centered; the rest of the canvas is filled
// with background (transparent when nil).
func Rasterize(svg []byte, size int, background image.Image) ([]byte, error) {
	if size <= 0 || size > MaxSize {
		return nil, fmt.Errorf("%w: %d", ErrSize, size)
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(svg))
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}

	x, y, w, h := fit(icon.ViewBox.W, icon.ViewBox.H, float64(size))
	icon.SetTarget(x, y, w, h)

	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	if background != nil {
		draw.Draw(canvas, canvas.Bounds(), background, image.Point{}, draw.Src)
	}
	scanner := rasterx.NewScannerGV(size, size, canvas, canvas.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// fit keeps the aspect ratio of a w×h viewbox inside a side×side square.
func fit(w, h, side float64) (x, y, tw, th float64) {
	if w <= 0 || h <= 0 {
		return 0, 0, side, side
	}
	scale := side / max(w, h)
	tw, th = w*scale, h*scale
	return (side - tw) / 2, (side - th) / 2, tw, th
}

// Set caches rendered icons for one source SVG.
type Set struct {
	svg        []byte
	background image.Image

	mu    sync.Mutex
	cache map[int][]byte
}

// NewSet prepares icons for svg.
func NewSet(svg []byte, background image.Image) *Set {
	return &Set{svg: svg, background: background, cache: make(map[int][]byte)}
}

// PNG returns the icon at size, rendering it on first use. Only sizes listed
// in Sizes are served.
func (s *Set) PNG(size int) ([]byte, error) {
	if !slices.Contains(Sizes, size) {
		return nil, fmt.Errorf("%w: %d", ErrSize, size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if data, ok := s.cache[size]; ok {
		return data, nil
	}
	data, err := Rasterize(s.svg, size, s.background)
	if err != nil {
		return nil, err
	}
	s.cache[size] = data
	return data, nil
}

// Load reads the SVG at name from src and prepares a Set filled with the
// background colour hex ("#rrggbb"; empty keeps the canvas transparent).
func Load(src fs.FS, name, hex string) (*Set, error) {
	svg, err := fs.ReadFile(src, name)
	if err != nil {
		return nil, fmt.Errorf("read icon source: %w", err)
	}
	bg, err := Background(hex)
	if err != nil {
		return nil, err
	}
	return NewSet(svg, bg), nil
}

// Background parses a "#rgb" or "#rrggbb" colour into a uniform image. The
// empty string yields nil.
func Background(hex string) (image.Image, error) {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if hex == "" {
		return nil, nil
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return nil, fmt.Errorf("invalid colour %q", hex)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid colour %q", hex)
	}
	return image.NewUniform(color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}), nil
}

// ParseSize reads the size from an "app-{size}.png" path component.
func ParseSize(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrSize, raw)
	}
	return n, nil
}

// Name is the file name of the icon at size.
func Name(size int) string {
	return "app-" + strconv.Itoa(size) + ".png"
}
