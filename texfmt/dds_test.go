package texfmt

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/texload"
)

// ddsParams drives the test header builder.
type ddsParams struct {
	width, height uint32
	mips          uint32 // 0 omits the mip count flag
	pfFlags       uint32
	fourcc        uint32
	bitCount      uint32
	rMask         uint32
	caps2         uint32
	dx10          []byte // optional 20-byte extension
}

// buildDDS assembles a header plus payload the way the format lays it out:
// 4 magic bytes, 124 header bytes, optional DX10 extension, then data.
func buildDDS(p ddsParams, payload []byte) []byte {
	buf := make([]byte, 4+ddsHeaderSize+len(p.dx10)+len(payload))
	le := binary.LittleEndian

	le.PutUint32(buf, ddsMagic)
	h := buf[4:]
	le.PutUint32(h, ddsHeaderSize)
	flags := uint32(ddsdRequired)
	if p.mips > 0 {
		flags |= ddsdMipmapcount
	}
	le.PutUint32(h[4:], flags)
	le.PutUint32(h[8:], p.height)
	le.PutUint32(h[12:], p.width)
	if p.mips > 0 {
		le.PutUint32(h[24:], p.mips)
	}

	pf := h[72:]
	le.PutUint32(pf, 32) // pixel format struct size
	le.PutUint32(pf[4:], p.pfFlags)
	le.PutUint32(pf[8:], p.fourcc)
	le.PutUint32(pf[12:], p.bitCount)
	le.PutUint32(pf[16:], p.rMask)
	le.PutUint32(h[108:], p.caps2)

	copy(h[ddsHeaderSize:], p.dx10)
	copy(buf[4+ddsHeaderSize+len(p.dx10):], payload)
	return buf
}

func dx10Ext(dxgi, arraySize uint32) []byte {
	ext := make([]byte, 20)
	binary.LittleEndian.PutUint32(ext, dxgi)
	binary.LittleEndian.PutUint32(ext[4:], 3) // 2D resource dimension
	binary.LittleEndian.PutUint32(ext[8:], arraySize)
	return ext
}

func TestDDSMatch(t *testing.T) {
	var d DDS
	if !d.Match(".dds", nil) {
		t.Error("extension .dds should match")
	}
	magic := make([]byte, 8)
	binary.LittleEndian.PutUint32(magic, ddsMagic)
	if !d.Match(".bin", magic) {
		t.Error("DDS magic should match regardless of extension")
	}
	if d.Match(".png", []byte{0x89, 'P', 'N', 'G'}) {
		t.Error("PNG data should not match")
	}
}

func TestDDSDecodeDXT1MipChain(t *testing.T) {
	// 8x8 DXT1 with 4 mips: 32 + 8 + 8 + 8 payload bytes.
	payload := make([]byte, 32+8+8+8)
	for i := range payload {
		payload[i] = byte(i)
	}
	data := buildDDS(ddsParams{
		width: 8, height: 8, mips: 4,
		pfFlags: ddpfFourcc, fourcc: fourccDXT1,
	}, payload)

	img, err := (DDS{}).Decode("a.dds", data, texload.DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Format != gputypes.TextureFormatBC1RGBAUnorm {
		t.Errorf("format = %v, want BC1", img.Format)
	}
	if img.Width != 8 || img.Height != 8 || img.MipCount != 4 || img.Layers != 1 {
		t.Fatalf("layout = %dx%d mips=%d layers=%d, want 8x8 mips=4 layers=1",
			img.Width, img.Height, img.MipCount, img.Layers)
	}
	wantSizes := []int{32, 8, 8, 8}
	for level, want := range wantSizes {
		if got := len(img.LevelData(0, level)); got != want {
			t.Errorf("level %d is %d bytes, want %d", level, got, want)
		}
	}
	// The first payload byte of level 1 sits right after level 0.
	if img.LevelData(0, 1)[0] != 32 {
		t.Error("mip chain sliced at the wrong offsets")
	}
}

func TestDDSDecodeCubemap(t *testing.T) {
	// 4x4 DXT5 cubemap, one mip per face: 6 x 16 bytes.
	payload := make([]byte, 6*16)
	for face := 0; face < 6; face++ {
		for i := 0; i < 16; i++ {
			payload[face*16+i] = byte(face)
		}
	}
	data := buildDDS(ddsParams{
		width: 4, height: 4,
		pfFlags: ddpfFourcc, fourcc: fourccDXT5,
		caps2: ddsCubemapAllFaces,
	}, payload)

	img, err := (DDS{}).Decode("cube.dds", data, texload.DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !img.Cube || img.Layers != 6 {
		t.Fatalf("cube=%v layers=%d, want cube with 6 layers", img.Cube, img.Layers)
	}
	if img.Format != gputypes.TextureFormatBC3RGBAUnorm {
		t.Errorf("format = %v, want BC3", img.Format)
	}
	for face := 0; face < 6; face++ {
		if b := img.LevelData(face, 0)[0]; b != byte(face) {
			t.Errorf("face %d starts with byte %d, faces sliced out of order", face, b)
		}
	}
}

func TestDDSDecodeUncompressed(t *testing.T) {
	payload := make([]byte, 2*2*4)
	tests := []struct {
		rMask uint32
		want  gputypes.TextureFormat
	}{
		{0x000000FF, gputypes.TextureFormatRGBA8Unorm},
		{0x00FF0000, gputypes.TextureFormatBGRA8Unorm},
	}
	for _, tt := range tests {
		data := buildDDS(ddsParams{
			width: 2, height: 2,
			pfFlags:  ddpfRGB | ddpfAlphapixels,
			bitCount: 32,
			rMask:    tt.rMask,
		}, payload)
		img, err := (DDS{}).Decode("u.dds", data, texload.DecodeOptions{})
		if err != nil {
			t.Fatalf("Decode(rMask=%#x): %v", tt.rMask, err)
		}
		if img.Format != tt.want {
			t.Errorf("rMask %#x: format = %v, want %v", tt.rMask, img.Format, tt.want)
		}
		if len(img.LevelData(0, 0)) != 16 {
			t.Errorf("level 0 is %d bytes, want 16", len(img.LevelData(0, 0)))
		}
	}
}

func TestDDSDecodeDX10Array(t *testing.T) {
	// 4x4 BC7, 3 array layers: 3 x 16 bytes.
	payload := make([]byte, 3*16)
	data := buildDDS(ddsParams{
		width: 4, height: 4,
		pfFlags: ddpfFourcc, fourcc: fourccDX10,
		dx10: dx10Ext(dxgiBC7Unorm, 3),
	}, payload)

	img, err := (DDS{}).Decode("arr.dds", data, texload.DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Format != gputypes.TextureFormatBC7RGBAUnorm {
		t.Errorf("format = %v, want BC7", img.Format)
	}
	if img.Layers != 3 || img.Cube {
		t.Errorf("layers=%d cube=%v, want 3 non-cube layers", img.Layers, img.Cube)
	}
}

func TestDDSDecodeDX10BC6H(t *testing.T) {
	tests := []struct {
		dxgi uint32
		want gputypes.TextureFormat
	}{
		{dxgiBC6HUF16, gputypes.TextureFormatBC6HRGBUfloat},
		{dxgiBC6HSF16, gputypes.TextureFormatBC6HRGBFloat},
	}
	for _, tt := range tests {
		// 4x4 BC6H: one 16-byte block.
		data := buildDDS(ddsParams{
			width: 4, height: 4,
			pfFlags: ddpfFourcc, fourcc: fourccDX10,
			dx10: dx10Ext(tt.dxgi, 1),
		}, make([]byte, 16))
		img, err := (DDS{}).Decode("hdr.dds", data, texload.DecodeOptions{})
		if err != nil {
			t.Fatalf("Decode(dxgi=%d): %v", tt.dxgi, err)
		}
		if img.Format != tt.want {
			t.Errorf("dxgi %d: format = %v, want %v", tt.dxgi, img.Format, tt.want)
		}
		if img.SRGB {
			t.Errorf("dxgi %d: BC6H is a float format, want linear", tt.dxgi)
		}
	}
}

func TestDDSDecodeErrors(t *testing.T) {
	valid := buildDDS(ddsParams{
		width: 4, height: 4,
		pfFlags: ddpfFourcc, fourcc: fourccDXT1,
	}, make([]byte, 8))

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated header", valid[:64]},
		{"bad magic", append([]byte{'X', 'X', 'X', 'X'}, valid[4:]...)},
		{"truncated payload", valid[:len(valid)-4]},
		{"unknown fourcc", buildDDS(ddsParams{
			width: 4, height: 4,
			pfFlags: ddpfFourcc, fourcc: 'Z' | 'Z'<<8 | 'Z'<<16 | 'Z'<<24,
		}, nil)},
		{"cubemap array", buildDDS(ddsParams{
			width: 4, height: 4,
			pfFlags: ddpfFourcc, fourcc: fourccDX10,
			caps2: ddsCubemapAllFaces,
			dx10:  dx10Ext(dxgiBC7Unorm, 2),
		}, nil)},
		{"unsupported bit count", buildDDS(ddsParams{
			width: 4, height: 4,
			pfFlags:  ddpfRGB | ddpfAlphapixels,
			bitCount: 16,
		}, nil)},
	}
	for _, tt := range tests {
		_, err := (DDS{}).Decode(tt.name, tt.data, texload.DecodeOptions{})
		if err == nil {
			t.Errorf("%s: Decode succeeded, want error", tt.name)
			continue
		}
		if !errors.Is(err, texload.ErrFormat) {
			t.Errorf("%s: %v does not wrap ErrFormat", tt.name, err)
		}
	}
}

func TestDDSLinearOverride(t *testing.T) {
	data := buildDDS(ddsParams{
		width: 4, height: 4,
		pfFlags: ddpfFourcc, fourcc: fourccDXT1,
	}, make([]byte, 8))

	linear := true
	img, err := (DDS{}).Decode("a.dds", data, texload.DecodeOptions{Linear: &linear})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.SRGB {
		t.Error("Linear override ignored")
	}
}
