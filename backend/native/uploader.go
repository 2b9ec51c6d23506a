// Package native implements texload's Uploader interface on gogpu/wgpu HAL.
//
// The uploader is handed a HAL device and queue, usually shared with the
// host application through a gpucontext.DeviceProvider:
//
//	up, err := native.NewUploaderFromProvider(app.GPUContextProvider())
//	loader := texload.NewLoader(texload.WithUploader(up))
package native

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/texload"
)

// Uploader errors.
var (
	// ErrNilDevice is returned when creating an uploader without a device.
	ErrNilDevice = errors.New("native: HAL device is nil")

	// ErrNoHALAccess is returned when a provider does not expose HAL types.
	ErrNoHALAccess = errors.New("native: provider does not expose HAL device/queue")

	// ErrTextureDestroyed is returned when writing to a destroyed texture.
	ErrTextureDestroyed = errors.New("native: texture has been destroyed")
)

// Uploader creates and fills wgpu textures for texload.
//
// Thread safety: CreateTexture and texture methods are called by texload
// from the owner goroutine only. Each texture carries a mutex guarding its
// destroyed flag during teardown diagnostics; that is not a concurrency API.
type Uploader struct {
	device hal.Device
	queue  hal.Queue
}

// NewUploader creates an uploader on an explicit HAL device and queue.
func NewUploader(device hal.Device, queue hal.Queue) (*Uploader, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	return &Uploader{device: device, queue: queue}, nil
}

// NewUploaderFromProvider extracts the shared HAL device and queue from a
// gpucontext provider. The provider must also expose HAL access
// (HalDevice() any / HalQueue() any), as gogpu's does.
func NewUploaderFromProvider(provider gpucontext.DeviceProvider) (*Uploader, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALAccess
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, ErrNoHALAccess
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, ErrNoHALAccess
	}
	return &Uploader{device: device, queue: queue}, nil
}

// CreateTexture implements texload.Uploader.
func (u *Uploader) CreateTexture(desc texload.TextureDesc) (texload.Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("native: invalid texture size %dx%d", desc.Width, desc.Height)
	}
	layers := desc.Layers
	if layers == 0 {
		layers = 1
	}
	mips := desc.MipLevelCount
	if mips == 0 {
		mips = 1
	}

	halDesc := &hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: layers,
		},
		MipLevelCount: mips,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	}

	tex, err := u.device.CreateTexture(halDesc)
	if err != nil {
		return nil, fmt.Errorf("native: create texture: %w", err)
	}

	return &gpuTexture{uploader: u, hal: tex, desc: desc}, nil
}

// gpuTexture is a wgpu-backed texload.Texture.
type gpuTexture struct {
	uploader *Uploader
	hal      hal.Texture
	desc     texload.TextureDesc

	mu        sync.Mutex
	destroyed bool
}

// Desc implements texload.Texture.
func (t *gpuTexture) Desc() texload.TextureDesc { return t.desc }

// Write implements texload.Texture. The queue write copies data before
// returning, so the completion settles synchronously; data is free for
// reuse as soon as Write returns.
func (t *gpuTexture) Write(level, layer uint32, data []byte) *texload.Completion[struct{}] {
	done := texload.NewCompletion[struct{}]()

	t.mu.Lock()
	destroyed := t.destroyed
	t.mu.Unlock()
	if destroyed {
		// Late writes during teardown are dropped; the fence still settles
		// so no routine hangs.
		texload.Logger().Warn("native: write to destroyed texture", "label", t.desc.Label)
		done.Complete(struct{}{})
		return done
	}

	w := max(1, t.desc.Width>>level)
	h := max(1, t.desc.Height>>level)

	dst := &hal.ImageCopyTexture{
		Texture:  t.hal,
		MipLevel: level,
		Origin:   hal.Origin3D{X: 0, Y: 0, Z: layer},
		Aspect:   gputypes.TextureAspectAll,
	}
	layout := &hal.ImageDataLayout{
		Offset:       0,
		BytesPerRow:  bytesPerRow(t.desc.Format, w),
		RowsPerImage: rowsPerImage(t.desc.Format, h),
	}
	size := &hal.Extent3D{
		Width:              w,
		Height:             h,
		DepthOrArrayLayers: 1,
	}

	if err := t.uploader.queue.WriteTexture(dst, data, layout, size); err != nil {
		done.Fail(fmt.Errorf("native: write %q level %d layer %d: %w", t.desc.Label, level, layer, err))
		return done
	}
	done.Complete(struct{}{})
	return done
}

// MakeUnreadable implements texload.Texture. The wgpu texture has no CPU
// copy to drop; readback simply stops being offered.
func (t *gpuTexture) MakeUnreadable() {}

// Destroy implements texload.Texture.
func (t *gpuTexture) Destroy() {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return
	}
	t.destroyed = true
	t.mu.Unlock()
	t.uploader.device.DestroyTexture(t.hal)
}

// bytesPerRow returns the row pitch the queue expects for one mip level.
// Block-compressed formats count rows of 4x4 blocks.
func bytesPerRow(f gputypes.TextureFormat, width uint32) uint32 {
	if bs := blockSize(f); bs != 0 {
		return ((width + 3) / 4) * bs
	}
	return width * 4 // all supported uncompressed formats are 4 bytes/pixel
}

// rowsPerImage mirrors bytesPerRow for the vertical dimension.
func rowsPerImage(f gputypes.TextureFormat, height uint32) uint32 {
	if blockSize(f) != 0 {
		return (height + 3) / 4
	}
	return height
}

// blockSize returns bytes per 4x4 block for compressed formats, else 0.
func blockSize(f gputypes.TextureFormat) uint32 {
	switch f {
	case gputypes.TextureFormatBC1RGBAUnorm, gputypes.TextureFormatBC4RUnorm:
		return 8
	case gputypes.TextureFormatBC2RGBAUnorm, gputypes.TextureFormatBC3RGBAUnorm,
		gputypes.TextureFormatBC5RGUnorm, gputypes.TextureFormatBC6HRGBUfloat,
		gputypes.TextureFormatBC6HRGBFloat, gputypes.TextureFormatBC7RGBAUnorm:
		return 16
	default:
		return 0
	}
}
