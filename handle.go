package texload

import "sync/atomic"

// State is a load's lifecycle position. A handle starts Pending and
// transitions exactly once to Complete or Error; terminal states never
// revert.
type State uint8

const (
	// Pending means the load routine has not finished.
	Pending State = iota

	// Complete means the texture is uploaded and retrievable.
	Complete

	// Error means the load failed; the captured error is re-raised on
	// every Result call.
	Error
)

// String returns the state name for diagnostics.
func (s State) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Complete:
		return "Complete"
	case Error:
		return "Error"
	default:
		return "State(?)"
	}
}

// handleImpl is the single owned record for one resource key: at most one
// live handleImpl exists per key while any strong Handle exists or a load
// is in flight. It is owned by the Loader's cache; all fields except refs
// are mutated only on the owner goroutine.
type handleImpl struct {
	loader *Loader
	key    string

	// refs is the strong reference count. It starts at 1 and is atomic
	// because Acquire/Dispose may be called from any goroutine; the
	// release itself is always marshalled to the owner goroutine.
	refs atomic.Int32

	state State
	tex   Texture // native result, valid when state == Complete
	err   error   // captured failure, valid when state == Error

	// converted caches per-shape conversions of the native result, created
	// on first access. The native result is preserved for other consumers.
	converted map[Shape]Texture

	// img is the retained CPU copy backing shape conversions. Nil for
	// Unreadable loads, which release it after upload.
	img *DecodedImage

	// done settles when state turns terminal; external blocking callers
	// drive the bridge against it.
	done *Completion[struct{}]

	// container is the archive this load read from, if any. Its consumer
	// count is returned when the routine finishes.
	container *containerRef

	// released guards the one-time teardown of the results.
	released bool
}

// terminal reports whether the impl has reached Complete or Error.
func (hi *handleImpl) terminal() bool { return hi.state != Pending }

// setResult transitions Pending → Complete. Owner goroutine only; called
// exactly once by the load routine.
func (hi *handleImpl) setResult(tex Texture) {
	if hi.terminal() {
		panic("texload: result set on terminal handle")
	}
	hi.state = Complete
	hi.tex = tex
	hi.finish()
}

// setError transitions Pending → Error. Owner goroutine only; called
// exactly once by the load routine.
func (hi *handleImpl) setError(err error) {
	if hi.terminal() {
		panic("texload: error set on terminal handle")
	}
	hi.state = Error
	hi.err = err
	hi.finish()
}

func (hi *handleImpl) finish() {
	if hi.container != nil {
		hi.loader.releaseContainer(hi.container)
		hi.container = nil
	}
	hi.done.Complete(struct{}{})
	// All strong handles may already be gone (dropped while Pending); the
	// load still ran to completion to keep in-flight buffers sound, and the
	// result is torn down now instead of at the last Dispose.
	if hi.refs.Load() == 0 {
		hi.release()
	}
}

// release tears down the results exactly once. Owner goroutine only,
// refs == 0 and state terminal.
func (hi *handleImpl) release() {
	if hi.released {
		return
	}
	hi.released = true
	hi.img = nil
	for _, tex := range hi.converted {
		tex.Destroy()
	}
	hi.converted = nil
	if hi.tex != nil {
		hi.tex.Destroy()
		hi.tex = nil
	}
	Logger().Debug("texload: released", "key", hi.key)
}

// Handle is a lightweight, copyable strong reference to a load result or an
// in-flight load. Multiple independent callers may hold Handles to the same
// underlying record; the record is torn down when the last Handle is
// disposed in a terminal state.
type Handle struct {
	impl *handleImpl

	// shape is the layout this handle's Load call asked for. Handles to the
	// same record may differ here; Result converts on first access when the
	// stored result's shape does not match.
	shape Shape
}

// Valid reports whether the handle references a load.
func (h Handle) Valid() bool { return h.impl != nil }

// Key returns the canonical resource key.
func (h Handle) Key() string { return h.impl.key }

// State returns the load's current lifecycle state. A Pending result may
// turn terminal at any Update.
func (h Handle) State() State { return h.impl.state }

// Acquire increments the reference count and returns a new Handle. Safe
// from any goroutine. Acquiring through a handle whose count already
// reached zero is only meaningful from the owner goroutine, where the cache
// uses it to revive a not-yet-released entry.
func (h Handle) Acquire() Handle {
	h.impl.refs.Add(1)
	return h
}

// Dispose releases this reference. Disposing a handle more times than it
// was acquired is a caller bug and panics. When the count reaches zero in a
// terminal state, the texture is destroyed and the cache entry becomes
// stale; a still-Pending load keeps running and is torn down when it
// finishes.
func (h Handle) Dispose() {
	n := h.impl.refs.Add(-1)
	if n < 0 {
		panic("texload: handle disposed twice")
	}
	if n > 0 {
		return
	}
	l := h.impl.loader
	if l.bridge.OnOwner() {
		h.impl.disposeLast()
		return
	}
	l.bridge.Post(h.impl.disposeLast)
}

// disposeLast runs on the owner goroutine after the count hit zero.
func (hi *handleImpl) disposeLast() {
	// A racing Acquire between the decrement and this callback revives the
	// handle; release only if the count is still zero.
	if hi.refs.Load() == 0 && hi.terminal() {
		hi.release()
	}
}

// Result returns the loaded texture, blocking the owner goroutine and
// driving the bridge until the load is terminal. On an already-Complete
// handle it returns immediately without driving the scheduler. In the
// Error state it returns the same captured error on every call; a failed
// load is never retried.
//
// Result must be called from the owner goroutine.
func (h Handle) Result() (Texture, error) {
	hi := h.impl
	if !hi.terminal() {
		hi.loader.driveUntil(hi.done)
	}
	if hi.state == Error {
		return nil, hi.err
	}
	return hi.loader.resultAs(hi, h.shape)
}

// ResultAs is Result with an explicit target shape, converting the stored
// result on first access when the shapes differ. The native result is
// preserved for other consumers.
func (h Handle) ResultAs(shape Shape) (Texture, error) {
	hi := h.impl
	if !hi.terminal() {
		hi.loader.driveUntil(hi.done)
	}
	if hi.state == Error {
		return nil, hi.err
	}
	return hi.loader.resultAs(hi, shape)
}
