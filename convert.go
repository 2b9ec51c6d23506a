package texload

import (
	"image"

	"github.com/gogpu/gputypes"
	xdraw "golang.org/x/image/draw"
)

// convertTexture produces a texture of the requested shape from the load's
// retained CPU copy. Conversions never re-decode and never touch the
// original result; they re-slice the level-0 pixels and upload a new
// texture. Only uncompressed RGBA8 sources can be re-sliced; everything
// else, and any load that released its CPU copy (Unreadable), fails with
// ErrCapability.
//
// Supported conversions:
//   - 2D → Cubemap: a 1×6 vertical strip, or a 4×3 horizontal cross,
//     becomes six faces in +X, -X, +Y, -Y, +Z, -Z order.
//   - 2D → Array: a vertical strip of square tiles becomes one layer per
//     tile.
//
// Owner goroutine only; drives the bridge until the new texture's uploads
// fence.
func (l *Loader) convertTexture(hi *handleImpl, shape Shape) (Texture, error) {
	desc := hi.tex.Desc()
	from := shapeOf(desc)
	if from != Shape2D || (shape != ShapeCubemap && shape != ShapeArray) {
		return nil, capabilityError(from, shape)
	}

	img := hi.img
	if img == nil {
		// CPU copy released (Unreadable) or never retained.
		return nil, capabilityError(from, shape)
	}
	if !isRGBA8(img.Format) {
		return nil, capabilityError(from, shape)
	}

	var side int
	var faceRects []image.Rectangle
	if shape == ShapeCubemap {
		side, faceRects = cubemapLayout(img.Width, img.Height)
		if side == 0 {
			return nil, capabilityError(from, shape)
		}
	} else {
		if img.Width == 0 || img.Height%img.Width != 0 {
			return nil, capabilityError(from, shape)
		}
		side = img.Width
		for layer := 0; layer < img.Height/img.Width; layer++ {
			faceRects = append(faceRects, image.Rect(0, layer*side, side, (layer+1)*side))
		}
	}

	src := &image.RGBA{
		Pix:    img.LevelData(0, 0),
		Stride: img.Width * 4,
		Rect:   image.Rect(0, 0, img.Width, img.Height),
	}

	tex, err := l.cfg.uploader.CreateTexture(TextureDesc{
		Label:         desc.Label + "/" + shape.String(),
		Width:         uint32(side),
		Height:        uint32(side),
		Layers:        uint32(len(faceRects)),
		MipLevelCount: 1,
		Format:        img.Format,
		SRGB:          img.SRGB,
		Cube:          shape == ShapeCubemap,
	})
	if err != nil {
		return nil, err
	}

	fences := make([]*Completion[struct{}], 0, len(faceRects))
	for layer, r := range faceRects {
		face := image.NewRGBA(image.Rect(0, 0, side, side))
		xdraw.Copy(face, image.Point{}, src, r, xdraw.Src, nil)
		fences = append(fences, tex.Write(0, uint32(layer), face.Pix))
	}
	agg := NewCompletion[struct{}]()
	awaitAll(fences, agg)
	l.driveUntil(agg)
	if _, err := agg.Result(); err != nil {
		tex.Destroy()
		return nil, err
	}
	Logger().Debug("texload: converted", "label", desc.Label, "to", shape)
	return tex, nil
}

// cubemapLayout maps a 2D source's dimensions to the six face rectangles,
// in +X, -X, +Y, -Y, +Z, -Z order. Two layouts are recognized: a vertical
// strip of six squares, and a 4×3 horizontal cross with +Y above and -Y
// below the +Z face. Returns side 0 when neither fits.
func cubemapLayout(w, h int) (side int, faces []image.Rectangle) {
	square := func(col, row int) image.Rectangle {
		return image.Rect(col*side, row*side, (col+1)*side, (row+1)*side)
	}
	switch {
	case w > 0 && h == w*6:
		side = w
		for i := 0; i < 6; i++ {
			faces = append(faces, square(0, i))
		}
	case w%4 == 0 && h%3 == 0 && w/4 == h/3 && w > 0:
		side = w / 4
		faces = []image.Rectangle{
			square(2, 1), // +X
			square(0, 1), // -X
			square(1, 0), // +Y
			square(1, 2), // -Y
			square(1, 1), // +Z
			square(3, 1), // -Z
		}
	}
	return side, faces
}

// isRGBA8 reports whether the format is 4-byte-per-pixel RGBA, the only
// layout conversions can re-slice.
func isRGBA8(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatRGBA8Unorm || f == gputypes.TextureFormatRGBA8UnormSrgb
}
