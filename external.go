package texload

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Shape identifies the GPU-side layout a texture result is consumed as.
// A cached load keeps its native shape; consumers requesting a different
// shape get a converted copy created on first access (see convert.go).
type Shape uint8

const (
	// Shape2D is a plain two-dimensional texture.
	Shape2D Shape = iota

	// ShapeCubemap is a six-face cube texture.
	ShapeCubemap

	// ShapeArray is a texture array sliced from a vertical strip.
	ShapeArray
)

// String returns the shape name for diagnostics.
func (s Shape) String() string {
	switch s {
	case Shape2D:
		return "2D"
	case ShapeCubemap:
		return "Cubemap"
	case ShapeArray:
		return "Array"
	default:
		return fmt.Sprintf("Shape(%d)", uint8(s))
	}
}

// TextureDesc describes a texture for Uploader.CreateTexture.
type TextureDesc struct {
	// Label is an optional debug name, typically the resource key.
	Label string

	// Width and Height are the level-0 dimensions in pixels.
	Width, Height uint32

	// Layers is the array layer count: 1 for 2D, 6 for cubemaps.
	Layers uint32

	// MipLevelCount is the number of mip levels (at least 1).
	MipLevelCount uint32

	// Format is the pixel format of the uploaded data.
	Format gputypes.TextureFormat

	// SRGB requests sRGB sampling where the backend distinguishes it.
	SRGB bool

	// Cube marks the texture as a cubemap (Layers must be 6).
	Cube bool
}

// Texture is the GPU texture object produced by an Uploader. Apart from
// Write completions, which may settle on a render-thread event, all methods
// must be called from the owner goroutine; texload guarantees this by only
// touching textures inside bridged callbacks.
type Texture interface {
	// Desc returns the creation descriptor.
	Desc() TextureDesc

	// Write uploads raw bytes for one mip level of one layer. The returned
	// completion settles when the GPU has consumed the data (fence-like);
	// data must stay untouched until then.
	Write(level, layer uint32, data []byte) *Completion[struct{}]

	// MakeUnreadable releases any CPU-side copy after upload. Reading the
	// texture back is no longer possible.
	MakeUnreadable()

	// Destroy releases the GPU resource. Called exactly once by the loader
	// when the last handle to a terminal load is disposed.
	Destroy()
}

// Uploader creates GPU textures. backend/native implements it on wgpu HAL;
// tests use an in-memory fake.
type Uploader interface {
	CreateTexture(desc TextureDesc) (Texture, error)
}

// JobScheduler runs CPU-bound background work (file reads, pixel decoding).
// internal/parallel provides the default implementation.
type JobScheduler interface {
	// Submit runs fn on a background worker as soon as one is free.
	Submit(fn func())

	// SubmitBatch runs a group of related jobs, keeping them eligible for
	// shared scheduling. Jobs signal their own completions.
	SubmitBatch(fns []func())
}

// DecodeOptions carries per-load decoding preferences.
type DecodeOptions struct {
	// Linear, when set, overrides the decoder's color-space inference:
	// true forces linear, false forces sRGB.
	Linear *bool
}

// DecodedImage is the CPU-side pixel result handed from a Decoder to the
// upload phase.
//
// Levels is layer-major: Levels[layer*MipCount+level]. Each entry holds the
// tightly packed bytes for that mip level in Format's layout (block-encoded
// formats carry whole block rows).
type DecodedImage struct {
	Width, Height int
	MipCount      int
	Layers        int
	Format        gputypes.TextureFormat
	SRGB          bool
	Cube          bool
	Levels        [][]byte
}

// LevelData returns the bytes for one mip level of one layer.
func (im *DecodedImage) LevelData(layer, level int) []byte {
	return im.Levels[layer*im.MipCount+level]
}

// Decoder turns raw file bytes into pixels. Implementations live in the
// texfmt package and are selected by file extension or magic number;
// register them with RegisterDecoder (typically from an init function, via
// a blank import of texfmt).
type Decoder interface {
	// Match reports whether this decoder handles a file with the given
	// lower-cased extension (including the dot) or leading magic bytes.
	Match(ext string, magic []byte) bool

	// Decode unpacks data into a DecodedImage. key is the canonical
	// resource key, for error reporting only. Decode runs on a background
	// worker and must not touch GPU state.
	Decode(key string, data []byte, opts DecodeOptions) (*DecodedImage, error)
}

// Container is a bulk archive backing one or more texture loads. Releasing
// one synchronizes with background I/O and is costly, so the loader keeps
// containers alive for a configurable grace period after their last
// consumer finishes (see Loader.AddContainer).
type Container interface {
	// Name is the identity used in LoadOptions.Containers.
	Name() string

	// Path is the backing archive file read through the AsyncReader.
	Path() string

	// Entry resolves a canonical resource key to a byte range within the
	// archive.
	Entry(key string) (offset, length int64, ok bool)

	// Close releases the archive. The loader serializes Close against
	// in-flight reads and never calls it twice.
	Close() error
}
