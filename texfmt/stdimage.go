package texfmt

import (
	"bytes"
	"image"
	_ "image/jpeg" // register JPEG with image.Decode
	_ "image/png"  // register PNG with image.Decode

	"github.com/gogpu/gputypes"
	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/texload"
)

// magic prefixes for the formats image.Decode handles here.
var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G'}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
)

// StdImage decodes PNG and JPEG files through the standard image package
// and normalizes the pixels to tightly packed RGBA8.
type StdImage struct{}

// Match implements texload.Decoder.
func (StdImage) Match(ext string, magic []byte) bool {
	switch ext {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return bytes.HasPrefix(magic, pngMagic) || bytes.HasPrefix(magic, jpegMagic)
}

// Decode implements texload.Decoder.
func (StdImage) Decode(key string, data []byte, opts texload.DecodeOptions) (*texload.DecodedImage, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, formatErr(key, err.Error())
	}

	b := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Copy(rgba, image.Point{}, src, b, xdraw.Src, nil)

	// PNG and JPEG pixels are sRGB-encoded unless the caller says otherwise.
	srgb := true
	if opts.Linear != nil {
		srgb = !*opts.Linear
	}

	return &texload.DecodedImage{
		Width:    b.Dx(),
		Height:   b.Dy(),
		MipCount: 1,
		Layers:   1,
		Format:   gputypes.TextureFormatRGBA8Unorm,
		SRGB:     srgb,
		Levels:   [][]byte{rgba.Pix},
	}, nil
}
