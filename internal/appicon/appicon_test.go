package appicon

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const square = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 20">` +
	`<rect x="0" y="0" width="10" height="20" fill="#ff0000"/></svg>`

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestRasterizeFitsAndCenters(t *testing.T) {
	t.Parallel()

	data, err := Rasterize([]byte(square), 64, nil)
	require.NoError(t, err)

	img := decode(t, data)
	assert.Equal(t, image.Rect(0, 0, 64, 64), img.Bounds())

	r, _, _, a := img.At(32, 32).RGBA()
	assert.Equal(t, uint32(0xffff), a)
	assert.Equal(t, uint32(0xffff), r)

	_, _, _, a = img.At(2, 32).RGBA()
	assert.Zero(t, a, "left margin should stay transparent")
}

func TestRasterizeBackground(t *testing.T) {
	t.Parallel()

	bg := image.NewUniform(color.RGBA{0, 0, 255, 255})
	data, err := Rasterize([]byte(square), 32, bg)
	require.NoError(t, err)

	_, _, b, a := decode(t, data).At(1, 16).RGBA()
	assert.Equal(t, uint32(0xffff), b)
	assert.Equal(t, uint32(0xffff), a)
}

func TestRasterizeErrors(t *testing.T) {
	t.Parallel()

	_, err := Rasterize([]byte(square), 0, nil)
	assert.ErrorIs(t, err, ErrSize)
	_, err = Rasterize([]byte(square), MaxSize+1, nil)
	assert.ErrorIs(t, err, ErrSize)
	_, err = Rasterize([]byte("<svg><rect"), 16, nil)
	assert.Error(t, err)
}

func TestSetCachesAndRestrictsSizes(t *testing.T) {
	t.Parallel()

	s := NewSet([]byte(square), nil)
	first, err := s.PNG(192)
	require.NoError(t, err)
	second, err := s.PNG(192)
	require.NoError(t, err)
	assert.Same(t, &first[0], &second[0])

	_, err = s.PNG(100)
	assert.ErrorIs(t, err, ErrSize)
}

func TestParseSizeAndName(t *testing.T) {
	t.Parallel()

	n, err := ParseSize("512")
	require.NoError(t, err)
	assert.Equal(t, 512, n)
	assert.Equal(t, "app-512.png", Name(n))

	_, err = ParseSize("big")
	assert.ErrorIs(t, err, ErrSize)
}

func TestBackground(t *testing.T) {
	t.Parallel()

	img, err := Background("")
	require.NoError(t, err)
	assert.Nil(t, img)

	img, err = Background("#0f8")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0x00, G: 0xff, B: 0x88, A: 0xff}, img.At(0, 0))

	_, err = Background("#12345")
	assert.Error(t, err)
	_, err = Background("#zzzzzz")
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	src := fstest.MapFS{"icons/me.svg": &fstest.MapFile{Data: []byte(square)}}
	s, err := Load(src, "icons/me.svg", "#000000")
	require.NoError(t, err)

	data, err := s.PNG(192)
	require.NoError(t, err)
	_, _, _, a := decode(t, data).At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), a, "background fills the margins")

	_, err = Load(src, "icons/missing.svg", "")
	assert.Error(t, err)
}
