package texload

import (
	"runtime"

	"github.com/gogpu/texload/internal/buf"
	"github.com/gogpu/texload/internal/parallel"
)

// Loader is the deduplicating, reference-counted registry of in-flight and
// completed texture loads. Construct it on the goroutine that owns the GPU
// device; Load, Update, Close and Handle.Result must be called from that
// same goroutine. Background work reaches the loader only through its
// Bridge.
//
// Call Update once per frame: it runs marshalled completions, resumes
// suspended load routines, flushes batched decode work, advances the
// delayed-unload schedule and sweeps stale cache entries.
type Loader struct {
	bridge *Bridge
	cfg    loaderConfig

	// cache maps canonical resource keys to their single live record. The
	// entries are weak in effect: one whose record has no strong handles in
	// a terminal state is stale, treated as a miss, and swept later. Owner
	// goroutine only.
	cache map[string]*handleImpl

	// containers maps container names to their bookkeeping. Owner only.
	containers map[string]*containerRef

	// batch accumulates decode jobs from BatchAsynchronous loads until the
	// next flush. Owner only.
	batch []func()

	// gated holds routines throttled by the memory watermark. Owner only.
	gated []*loadRoutine

	workers  *parallel.WorkerPool // backs the default scheduler/reader
	buffers  *buf.Pool
	watchdog *Watchdog
	frame    uint64
	updates  uint64
	closed   bool
}

// NewLoader creates a Loader owned by the calling goroutine.
func NewLoader(opts ...Option) *Loader {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	l := &Loader{
		bridge:     NewBridge(),
		cfg:        cfg,
		cache:      make(map[string]*handleImpl),
		containers: make(map[string]*containerRef),
		buffers:    buf.NewPool(DefaultBufferPoolSize),
	}
	l.bridge.SetPollWindow(cfg.pollWindow)
	l.bridge.SetIdle(l.pumpGated)

	if l.cfg.scheduler == nil || l.cfg.reader == nil {
		l.workers = parallel.NewWorkerPool(cfg.workers)
	}
	if l.cfg.scheduler == nil {
		l.cfg.scheduler = l.workers
	}
	if l.cfg.reader == nil {
		l.cfg.reader = NewFileReader(l.workers, l.buffers)
	}
	if l.cfg.decoders == nil {
		l.cfg.decoders = registeredDecoders()
	}
	if cfg.watchdogAfter >= 0 {
		l.watchdog = NewWatchdog(cfg.watchdogAfter, l)
		l.bridge.SetWatchdog(l.watchdog)
	}

	Logger().Info("texload: loader created",
		"decoders", len(l.cfg.decoders),
		"gracePeriod", cfg.graceFrames,
		"memoryWatermark", cfg.memoryWatermark,
	)
	return l
}

// Bridge returns the loader's scheduling bridge, for collaborators that
// need to marshal their own completions onto the owner goroutine.
func (l *Loader) Bridge() *Bridge { return l.bridge }

// UploadBufferSize returns the configured staging budget hint for Uploader
// implementations.
func (l *Loader) UploadBufferSize() int { return l.cfg.uploadBufferSize }

// Frame returns the current frame counter, advanced by Update.
func (l *Loader) Frame() uint64 { return l.frame }

// Load requests the texture at path, deduplicating against in-flight and
// completed loads of the same canonical key. The returned Handle is newly
// acquired; dispose it when done.
//
// A cache hit whose stored shape differs from the requested one is not
// re-decoded; a conversion is applied on first result access and the
// original is preserved. With a Synchronous or BatchSynchronous hint, Load
// drives the bridge until the handle is terminal before returning.
//
// Load must be called from the owner goroutine; loads for the same key
// issued before the first resolves always dedup onto the one in-flight
// record.
func (l *Loader) Load(path string, shape Shape, opts LoadOptions) Handle {
	l.bridge.assertOwner("Load")
	if l.closed {
		panic("texload: Load on closed loader")
	}

	key := CanonicalKey(path)
	if hi, ok := l.cache[key]; ok && !staleEntry(hi) {
		Logger().Debug("texload: cache hit", "key", key, "state", hi.state)
		h := Handle{impl: hi, shape: shape}.Acquire()
		if opts.Hint.blocking() && !hi.terminal() {
			l.driveUntil(hi.done)
		}
		return h
	}

	hi := &handleImpl{
		loader: l,
		key:    key,
		done:   NewCompletion[struct{}](),
	}
	hi.refs.Store(1)
	l.cache[key] = hi

	r := newLoadRoutine(l, hi, opts)
	l.bridge.Post(r.pump)
	Logger().Debug("texload: load started", "key", key, "hint", opts.Hint)

	if opts.Hint.blocking() {
		l.driveUntil(hi.done)
	}
	return Handle{impl: hi, shape: shape}
}

// staleEntry reports whether a cache entry must be treated as a miss: all
// strong handles are gone and the load already finished, so the record is
// (or is about to be) released. A Pending record with zero handles is NOT
// stale; re-loading its key observes the in-flight load.
func staleEntry(hi *handleImpl) bool {
	return hi.released || (hi.refs.Load() == 0 && hi.terminal())
}

// Update runs one cooperative scheduling turn. Owner goroutine only.
func (l *Loader) Update() {
	l.bridge.assertOwner("Update")
	l.frame++
	l.updates++

	l.bridge.Update()
	l.flushBatch()
	l.pumpGated()
	l.runEvictions()

	if l.cfg.sweepInterval > 0 && l.updates%l.cfg.sweepInterval == 0 {
		l.sweep()
	}
}

// driveUntil blocks the owner goroutine on f, first flushing any batched
// decode work so the awaited load cannot be starved by its own batching.
func (l *Loader) driveUntil(f Future) {
	l.flushBatch()
	l.bridge.WaitUntilComplete(f)
}

// flushBatch submits coalesced decode jobs in one batch.
func (l *Loader) flushBatch() {
	if len(l.batch) == 0 {
		return
	}
	jobs := l.batch
	l.batch = nil
	l.cfg.scheduler.SubmitBatch(jobs)
}

// enqueueDecode routes a decode job according to the load's hint: batched
// loads join the per-frame batch, everything else submits immediately.
func (l *Loader) enqueueDecode(hint LoadHint, job func()) {
	if hint.batched() {
		l.batch = append(l.batch, job)
		return
	}
	l.cfg.scheduler.Submit(job)
}

// overWatermark reports whether new loads should be throttled. In-flight
// loads are never aborted by the watermark.
func (l *Loader) overWatermark() bool {
	if l.cfg.memoryWatermark == 0 {
		return false
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapInuse > l.cfg.memoryWatermark
}

// gate parks a routine until the watermark clears.
func (l *Loader) gate(r *loadRoutine) {
	l.gated = append(l.gated, r)
}

// pumpGated resumes watermark-parked routines once memory drops.
func (l *Loader) pumpGated() {
	if len(l.gated) == 0 || l.overWatermark() {
		return
	}
	gated := l.gated
	l.gated = nil
	for _, r := range gated {
		l.bridge.Post(r.pump)
	}
}

// sweep removes stale cache entries (the orphan sweep standing in for weak
// references). Owner goroutine only.
func (l *Loader) sweep() {
	for key, hi := range l.cache {
		if staleEntry(hi) {
			delete(l.cache, key)
		}
	}
}

// PendingKeys lists the canonical keys of loads that have not reached a
// terminal state, for watchdog diagnostics. Owner goroutine only.
func (l *Loader) PendingKeys() []string {
	var keys []string
	for key, hi := range l.cache {
		if !hi.terminal() {
			keys = append(keys, key)
		}
	}
	return keys
}

// resultAs returns the impl's result in the requested shape, converting on
// first access. Owner goroutine only, state Complete.
func (l *Loader) resultAs(hi *handleImpl, shape Shape) (Texture, error) {
	native := hi.tex.Desc()
	if shapeOf(native) == shape {
		return hi.tex, nil
	}
	if tex, ok := hi.converted[shape]; ok {
		return tex, nil
	}
	tex, err := l.convertTexture(hi, shape)
	if err != nil {
		return nil, err
	}
	if hi.converted == nil {
		hi.converted = make(map[Shape]Texture)
	}
	hi.converted[shape] = tex
	return tex, nil
}

// Close tears the loader down deterministically: batched work is flushed,
// every pending load is driven to a terminal state (in-flight buffers must
// finish their lifetime), containers are unloaded immediately, workers are
// joined and the bridge is shut. The loader is unusable afterwards.
func (l *Loader) Close() {
	l.bridge.assertOwner("Close")
	if l.closed {
		return
	}
	l.closed = true

	l.flushBatch()
	l.pumpGatedForce()
	for {
		var pending *handleImpl
		for _, hi := range l.cache {
			if !hi.terminal() {
				pending = hi
				break
			}
		}
		if pending == nil {
			break
		}
		l.driveUntil(pending.done)
	}

	// Unload every container now; the grace period does not apply at
	// teardown.
	for _, ref := range l.containers {
		ref.scheduled = true
		ref.unloadAt = l.frame
	}
	l.runEvictions()
	l.bridge.Update()

	if l.workers != nil {
		l.workers.Close()
	}
	l.bridge.Update() // completions that landed while workers drained
	l.sweep()
	l.bridge.Close()
	Logger().Info("texload: loader closed")
}

// pumpGatedForce releases watermark-parked routines unconditionally, used
// by Close so teardown cannot stall behind the throttle.
func (l *Loader) pumpGatedForce() {
	gated := l.gated
	l.gated = nil
	for _, r := range gated {
		l.bridge.Post(r.pump)
	}
}

// shapeOf derives the Shape of a texture from its descriptor.
func shapeOf(desc TextureDesc) Shape {
	switch {
	case desc.Cube:
		return ShapeCubemap
	case desc.Layers > 1:
		return ShapeArray
	default:
		return Shape2D
	}
}
