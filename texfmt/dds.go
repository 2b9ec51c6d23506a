package texfmt

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/texload"
)

// DDS header constants (DirectDraw Surface, little-endian throughout).
const (
	ddsMagic      = 0x20534444 // "DDS "
	ddsHeaderSize = 124

	// Required header flags.
	ddsdCaps        = 0x1
	ddsdHeight      = 0x2
	ddsdWidth       = 0x4
	ddsdPixelformat = 0x1000
	ddsdMipmapcount = 0x20000

	ddsdRequired = ddsdCaps | ddsdHeight | ddsdWidth | ddsdPixelformat

	// Pixel format flags.
	ddpfAlphapixels = 0x1
	ddpfFourcc      = 0x4
	ddpfRGB         = 0x40

	// Cubemap caps2 bits: all six faces present.
	ddsCubemapAllFaces = 0xFE00
)

// FourCC codes.
const (
	fourccDXT1 = 'D' | 'X'<<8 | 'T'<<16 | '1'<<24
	fourccDXT3 = 'D' | 'X'<<8 | 'T'<<16 | '3'<<24
	fourccDXT5 = 'D' | 'X'<<8 | 'T'<<16 | '5'<<24
	fourccATI1 = 'A' | 'T'<<8 | 'I'<<16 | '1'<<24
	fourccATI2 = 'A' | 'T'<<8 | 'I'<<16 | '2'<<24
	fourccDX10 = 'D' | 'X'<<8 | '1'<<16 | '0'<<24
)

// DXGI format values accepted in DX10 extension headers.
const (
	dxgiRGBA8Unorm = 28
	dxgiBC6HUF16   = 95
	dxgiBC6HSF16   = 96
	dxgiBC7Unorm   = 98
)

// DDS parses DirectDraw Surface headers and slices the mip chain. The
// payload of block-compressed formats is already GPU-ready and is handed to
// the upload phase untouched.
type DDS struct{}

// Match implements texload.Decoder.
func (DDS) Match(ext string, magic []byte) bool {
	if ext == ".dds" {
		return true
	}
	return len(magic) >= 4 && binary.LittleEndian.Uint32(magic) == ddsMagic
}

// ddsLayout captures everything Decode needs from the parsed header.
type ddsLayout struct {
	width, height int
	mipCount      int
	layers        int
	cube          bool
	format        gputypes.TextureFormat
	blockSize     int  // bytes per 4x4 block; 0 for uncompressed
	bytesPerPixel int  // uncompressed only
	srgb          bool // sRGB payload inferred from the format
	dataOffset    int
}

// Decode implements texload.Decoder.
func (DDS) Decode(key string, data []byte, opts texload.DecodeOptions) (*texload.DecodedImage, error) {
	layout, err := parseDDSHeader(key, data)
	if err != nil {
		return nil, err
	}

	srgb := layout.srgb
	if opts.Linear != nil {
		srgb = !*opts.Linear
	}

	img := &texload.DecodedImage{
		Width:    layout.width,
		Height:   layout.height,
		MipCount: layout.mipCount,
		Layers:   layout.layers,
		Format:   layout.format,
		SRGB:     srgb,
		Cube:     layout.cube,
		Levels:   make([][]byte, 0, layout.layers*layout.mipCount),
	}

	// Layer-major, exactly the DDS file order: each face/layer carries its
	// full mip chain before the next begins.
	off := layout.dataOffset
	for layer := 0; layer < layout.layers; layer++ {
		for level := 0; level < layout.mipCount; level++ {
			n := layout.levelSize(level)
			if off+n > len(data) {
				return nil, formatErr(key, fmt.Sprintf(
					"mip chain exceeds file: need %d bytes at offset %d, have %d",
					n, off, len(data)))
			}
			img.Levels = append(img.Levels, data[off:off+n:off+n])
			off += n
		}
	}
	return img, nil
}

// levelSize returns the byte size of one mip level for one layer.
func (ly *ddsLayout) levelSize(level int) int {
	w := max(1, ly.width>>level)
	h := max(1, ly.height>>level)
	if ly.blockSize > 0 {
		return ((w + 3) / 4) * ((h + 3) / 4) * ly.blockSize
	}
	return w * h * ly.bytesPerPixel
}

// parseDDSHeader validates the fixed header and resolves the pixel format.
func parseDDSHeader(key string, data []byte) (*ddsLayout, error) {
	if len(data) < 4+ddsHeaderSize {
		return nil, formatErr(key, "truncated DDS header")
	}
	if binary.LittleEndian.Uint32(data) != ddsMagic {
		return nil, formatErr(key, "bad DDS magic")
	}
	h := data[4:]
	if binary.LittleEndian.Uint32(h) != ddsHeaderSize {
		return nil, formatErr(key, "bad DDS header size")
	}

	flags := binary.LittleEndian.Uint32(h[4:])
	if flags&ddsdRequired != ddsdRequired {
		return nil, formatErr(key, "missing required DDS header flags")
	}

	ly := &ddsLayout{
		height:     int(binary.LittleEndian.Uint32(h[8:])),
		width:      int(binary.LittleEndian.Uint32(h[12:])),
		mipCount:   1,
		layers:     1,
		dataOffset: 4 + ddsHeaderSize,
	}
	if ly.width <= 0 || ly.height <= 0 {
		return nil, formatErr(key, "non-positive DDS dimensions")
	}
	if flags&ddsdMipmapcount != 0 {
		ly.mipCount = int(binary.LittleEndian.Uint32(h[24:]))
		if ly.mipCount < 1 {
			return nil, formatErr(key, "inconsistent DDS mip count")
		}
	}

	caps2 := binary.LittleEndian.Uint32(h[108:])
	if caps2&ddsCubemapAllFaces == ddsCubemapAllFaces {
		ly.cube = true
		ly.layers = 6
	}

	// Pixel format block starts at header offset 72.
	pf := h[72:]
	pfFlags := binary.LittleEndian.Uint32(pf[4:])

	switch {
	case pfFlags&ddpfFourcc != 0:
		fourcc := binary.LittleEndian.Uint32(pf[8:])
		switch fourcc {
		case fourccDXT1:
			ly.format, ly.blockSize = gputypes.TextureFormatBC1RGBAUnorm, 8
		case fourccDXT3:
			ly.format, ly.blockSize = gputypes.TextureFormatBC2RGBAUnorm, 16
		case fourccDXT5:
			ly.format, ly.blockSize = gputypes.TextureFormatBC3RGBAUnorm, 16
		case fourccATI1:
			ly.format, ly.blockSize = gputypes.TextureFormatBC4RUnorm, 8
		case fourccATI2:
			ly.format, ly.blockSize = gputypes.TextureFormatBC5RGUnorm, 16
		case fourccDX10:
			if err := parseDX10(key, data, ly); err != nil {
				return nil, err
			}
		default:
			return nil, formatErr(key, fmt.Sprintf("unsupported DDS fourCC %#08x", fourcc))
		}

	case pfFlags&ddpfRGB != 0:
		bitCount := binary.LittleEndian.Uint32(pf[12:])
		if bitCount != 32 || pfFlags&ddpfAlphapixels == 0 {
			return nil, formatErr(key, "unsupported uncompressed DDS layout")
		}
		ly.bytesPerPixel = 4
		// Red mask distinguishes RGBA from the BGRA byte order.
		if binary.LittleEndian.Uint32(pf[16:]) == 0x00FF0000 {
			ly.format = gputypes.TextureFormatBGRA8Unorm
		} else {
			ly.format = gputypes.TextureFormatRGBA8Unorm
		}

	default:
		return nil, formatErr(key, "unsupported DDS pixel format")
	}

	return ly, nil
}

// parseDX10 consumes the 20-byte DX10 extension header.
func parseDX10(key string, data []byte, ly *ddsLayout) error {
	ext := data[4+ddsHeaderSize:]
	if len(ext) < 20 {
		return formatErr(key, "truncated DX10 header")
	}
	ly.dataOffset += 20

	switch binary.LittleEndian.Uint32(ext) {
	case dxgiRGBA8Unorm:
		ly.bytesPerPixel = 4
		ly.format = gputypes.TextureFormatRGBA8Unorm
	case dxgiBC6HUF16:
		ly.blockSize = 16
		ly.format = gputypes.TextureFormatBC6HRGBUfloat
	case dxgiBC6HSF16:
		ly.blockSize = 16
		ly.format = gputypes.TextureFormatBC6HRGBFloat
	case dxgiBC7Unorm:
		ly.blockSize = 16
		ly.format = gputypes.TextureFormatBC7RGBAUnorm
	default:
		return formatErr(key, "unsupported DXGI format")
	}

	if arraySize := binary.LittleEndian.Uint32(ext[8:]); arraySize > 1 {
		if ly.cube {
			return formatErr(key, "cubemap arrays are not supported")
		}
		ly.layers = int(arraySize)
	}
	return nil
}
