package texload

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/texload/internal/buf"
)

// loadRoutine is one load expressed as an explicit resumable state machine.
// Each pump runs on the owner goroutine and executes phases until the
// routine either suspends on an awaitable (file read, archive lock, decode
// job, upload fences) or reaches a terminal state. Suspension registers a
// continuation that re-posts pump through the bridge, so resumption always
// happens inside a future Update, which is the only place GPU work runs.
type loadRoutine struct {
	l    *Loader
	impl *handleImpl
	opts LoadOptions

	phase int

	// Intermediate state, owned exclusively by this routine. The raw
	// buffer's release-once guard runs on every exit path.
	container  *containerRef
	lockFut    *LockFuture
	pendingOff int64
	pendingLen int64
	readOp    *ReadOp
	raw       *buf.Buffer
	img       *DecodedImage
	decodeErr error
	decoded   *Completion[struct{}]
	tex       Texture
	uploaded  *Completion[struct{}]
}

// Routine phases, in execution order.
const (
	phaseStart = iota
	phaseLocked
	phaseRead
	phaseDecoded
	phaseUploaded
)

// newLoadRoutine prepares (but does not start) the routine; the caller
// posts pump to the bridge.
func newLoadRoutine(l *Loader, impl *handleImpl, opts LoadOptions) *loadRoutine {
	return &loadRoutine{l: l, impl: impl, opts: opts}
}

// pump advances the routine as far as it can go. Owner goroutine only.
func (r *loadRoutine) pump() {
	defer func() {
		if p := recover(); p != nil {
			// A panicking phase fails the handle instead of unwinding into
			// the driver; every later Result re-raises the captured error.
			r.cleanup()
			r.impl.setError(fmt.Errorf("texload: load %q panicked: %v", r.impl.key, p))
		}
	}()

	for {
		await, done, err := r.step()
		if err != nil {
			r.cleanup()
			r.impl.setError(err)
			return
		}
		if done {
			r.impl.setResult(r.tex)
			return
		}
		if await == nil {
			// Parked (memory watermark); the loader re-posts pump later.
			return
		}
		if !await.Done() {
			await.OnDone(func() { r.l.bridge.Post(r.pump) })
			return
		}
		// Already settled; keep going without a round trip.
	}
}

// step executes the current phase. It returns the awaitable the routine
// suspends on, or done, or an error that becomes the handle's captured
// failure.
func (r *loadRoutine) step() (await Future, done bool, err error) {
	switch r.phase {

	case phaseStart:
		// The throttle is lifted at teardown; Close drives every parked
		// routine to a terminal state and must not see it park again.
		if !r.l.closed && r.l.overWatermark() {
			r.l.gate(r)
			return nil, false, nil // parked, phase unchanged
		}
		ref, off, n := r.l.resolveContainer(r.opts.Containers, r.impl.key)
		if ref != nil {
			r.container = ref
			r.impl.container = ref
			// Hold the container lock across the archive read so a
			// scheduled unload cannot close the file underneath it.
			r.lockFut = ref.mu.Lock()
			r.phase = phaseLocked
			r.pendingOff, r.pendingLen = off, n
			return r.lockFut, false, nil
		}
		r.readOp = r.l.cfg.reader.ReadAsync(r.impl.key, 0, -1)
		r.phase = phaseRead
		return r.readOp.Done(), false, nil

	case phaseLocked:
		if _, err := r.lockFut.Result(); err != nil {
			return nil, false, ioError(r.impl.key, err)
		}
		r.readOp = r.l.cfg.reader.ReadAsync(r.container.c.Path(), r.pendingOff, r.pendingLen)
		r.phase = phaseRead
		return r.readOp.Done(), false, nil

	case phaseRead:
		if r.lockFut != nil {
			token, _ := r.lockFut.Result()
			r.container.mu.Unlock(token)
			r.lockFut = nil
		}
		raw, err := r.readOp.Result()
		r.readOp = nil
		if err != nil {
			return nil, false, err
		}
		r.raw = raw

		dec := selectDecoder(r.l.cfg.decoders, r.impl.key, raw.Bytes())
		if dec == nil {
			return nil, false, formatError(r.impl.key, "no decoder for this format")
		}

		r.decoded = NewCompletion[struct{}]()
		key, data, opts := r.impl.key, raw.Bytes(), DecodeOptions{Linear: r.opts.Linear}
		r.l.enqueueDecode(r.opts.Hint, func() {
			// Runs on a background worker. The raw buffer is released on
			// every exit path, including a panicking decoder; it must never
			// be reclaimed while this job can still touch it.
			defer raw.Release()
			defer func() {
				if p := recover(); p != nil {
					r.decodeErr = formatError(key, fmt.Sprintf("decoder panicked: %v", p))
				}
				r.decoded.Complete(struct{}{})
			}()
			r.img, r.decodeErr = dec.Decode(key, data, opts)
		})
		r.raw = nil // ownership moved to the decode job's guard
		r.phase = phaseDecoded
		return r.decoded, false, nil

	case phaseDecoded:
		if r.decodeErr != nil {
			return nil, false, r.decodeErr
		}
		img := r.img
		if img == nil || len(img.Levels) == 0 {
			return nil, false, formatError(r.impl.key, "decoder produced no pixels")
		}
		if r.l.cfg.uploader == nil {
			return nil, false, fmt.Errorf("%w: no uploader configured", ErrCapability)
		}

		srgb := img.SRGB
		if r.opts.Linear != nil {
			srgb = !*r.opts.Linear
		}
		tex, err := r.l.cfg.uploader.CreateTexture(TextureDesc{
			Label:         r.impl.key,
			Width:         uint32(img.Width),
			Height:        uint32(img.Height),
			Layers:        uint32(img.Layers),
			MipLevelCount: uint32(img.MipCount),
			Format:        img.Format,
			SRGB:          srgb,
			Cube:          img.Cube,
		})
		if err != nil {
			return nil, false, fmt.Errorf("%w: create texture %q: %v", ErrIO, r.impl.key, err)
		}
		r.tex = tex

		// Issue every level upload, then await a single aggregate fence.
		r.uploaded = NewCompletion[struct{}]()
		fences := make([]*Completion[struct{}], 0, len(img.Levels))
		for layer := 0; layer < img.Layers; layer++ {
			for level := 0; level < img.MipCount; level++ {
				fences = append(fences, tex.Write(uint32(level), uint32(layer), img.LevelData(layer, level)))
			}
		}
		awaitAll(fences, r.uploaded)
		r.phase = phaseUploaded
		return r.uploaded, false, nil

	case phaseUploaded:
		if _, err := r.uploaded.Result(); err != nil {
			return nil, false, err
		}
		if r.opts.Unreadable {
			r.tex.MakeUnreadable()
		} else {
			// Retain the CPU copy: shape conversions re-slice it instead of
			// re-decoding the file.
			r.impl.img = r.img
		}
		r.img = nil
		Logger().Debug("texload: load complete", "key", r.impl.key)
		return nil, true, nil

	default:
		panic("texload: load routine in impossible phase")
	}
}

// cleanup releases everything the routine still owns on a failure path.
func (r *loadRoutine) cleanup() {
	if r.lockFut != nil && r.lockFut.Done() {
		if token, err := r.lockFut.Result(); err == nil {
			r.container.mu.Unlock(token)
		}
		r.lockFut = nil
	}
	r.raw.Release()
	r.raw = nil
	if r.tex != nil {
		r.tex.Destroy()
		r.tex = nil
	}
}

// awaitAll settles agg once every fence has settled. If any fence failed,
// agg fails with the first error observed; a rejected write must never
// leave the handle looking complete.
func awaitAll(fences []*Completion[struct{}], agg *Completion[struct{}]) {
	if len(fences) == 0 {
		agg.Complete(struct{}{})
		return
	}
	var firstErr atomic.Pointer[error]
	var remaining atomic.Int32
	remaining.Store(int32(len(fences)))
	for _, f := range fences {
		f.OnDone(func() {
			if _, err := f.Result(); err != nil {
				firstErr.CompareAndSwap(nil, &err)
			}
			if remaining.Add(-1) == 0 {
				if ep := firstErr.Load(); ep != nil {
					agg.Fail(*ep)
					return
				}
				agg.Complete(struct{}{})
			}
		})
	}
}
