package texload

import "time"

// LoadHint controls how a load's suspension points behave.
type LoadHint uint8

const (
	// Asynchronous loads yield at every suspension point; Load returns a
	// Pending handle immediately. This is the default.
	Asynchronous LoadHint = iota

	// BatchAsynchronous behaves like Asynchronous, but decode work is
	// coalesced with other batch loads issued the same frame and submitted
	// to the worker pool in one batch at the next Update.
	BatchAsynchronous

	// Synchronous drives the bridge until the handle is terminal before
	// Load returns. The caller observes a fully uploaded (or failed)
	// resource.
	Synchronous

	// BatchSynchronous reserves batch submission semantics for callers that
	// still need Load to return a terminal handle. Since the caller blocks
	// until terminal anyway, decode work is submitted immediately like
	// Synchronous; the hint is accepted for call-site symmetry.
	BatchSynchronous
)

// String returns the hint name for diagnostics.
func (h LoadHint) String() string {
	switch h {
	case Asynchronous:
		return "Asynchronous"
	case BatchAsynchronous:
		return "BatchAsynchronous"
	case Synchronous:
		return "Synchronous"
	case BatchSynchronous:
		return "BatchSynchronous"
	default:
		return "LoadHint(?)"
	}
}

// blocking reports whether Load must drive the handle to a terminal state
// before returning.
func (h LoadHint) blocking() bool {
	return h == Synchronous || h == BatchSynchronous
}

// batched reports whether decode submission joins the per-frame batch.
func (h LoadHint) batched() bool {
	return h == BatchAsynchronous
}

// LoadOptions configures a single Load call.
type LoadOptions struct {
	// Containers lists bulk-archive names to search, in order, before
	// falling back to the filesystem.
	Containers []string

	// Hint controls suspension behavior; see LoadHint.
	Hint LoadHint

	// Unreadable releases the CPU-side copy after upload. The texture can
	// no longer be read back.
	Unreadable bool

	// Linear, when set, overrides the decoder's color-space inference:
	// true forces linear, false forces sRGB. Unset leaves the choice to
	// the format.
	Linear *bool
}

// Loader defaults.
const (
	// DefaultGracePeriod is the number of frames a container stays loaded
	// after its last consumer finishes.
	DefaultGracePeriod = 30

	// DefaultUploadBufferSize is the staging budget hint handed to the
	// Uploader.
	DefaultUploadBufferSize = 4 << 20

	// DefaultBufferPoolSize is the per-class retention of the shared read
	// buffer pool.
	DefaultBufferPoolSize = 8
)

// loaderConfig holds constructor-time configuration, set via Options.
type loaderConfig struct {
	reader           AsyncReader
	scheduler        JobScheduler
	uploader         Uploader
	decoders         []Decoder
	graceFrames      uint64
	memoryWatermark  uint64
	uploadBufferSize int
	pollWindow       time.Duration
	watchdogAfter    int
	workers          int
	sweepInterval    uint64
}

// Option configures a Loader during creation, in the functional-options
// style.
//
// Example:
//
//	loader := texload.NewLoader(
//	    texload.WithUploader(native.NewUploader(device)),
//	    texload.WithGracePeriod(60),
//	)
type Option func(*loaderConfig)

// WithReader substitutes the asynchronous file reader. Defaults to a
// FileReader on the loader's worker pool.
func WithReader(r AsyncReader) Option {
	return func(c *loaderConfig) { c.reader = r }
}

// WithScheduler substitutes the background job scheduler. Defaults to an
// internal worker pool sized by WithWorkers.
func WithScheduler(s JobScheduler) Option {
	return func(c *loaderConfig) { c.scheduler = s }
}

// WithUploader sets the GPU upload backend. Required for real use;
// tests may omit it only if every load fails before upload.
func WithUploader(u Uploader) Option {
	return func(c *loaderConfig) { c.uploader = u }
}

// WithDecoders replaces the decoder set for this loader. Defaults to the
// package-level registry (see RegisterDecoder).
func WithDecoders(ds ...Decoder) Option {
	return func(c *loaderConfig) { c.decoders = ds }
}

// WithGracePeriod sets how many frames a container outlives its last
// consumer before its deferred unload runs.
func WithGracePeriod(frames int) Option {
	return func(c *loaderConfig) {
		if frames >= 0 {
			c.graceFrames = uint64(frames)
		}
	}
}

// WithMemoryWatermark throttles new loads while heap-in-use exceeds bytes.
// Zero (the default) disables throttling. In-flight loads are never
// aborted by the watermark.
func WithMemoryWatermark(bytes uint64) Option {
	return func(c *loaderConfig) { c.memoryWatermark = bytes }
}

// WithUploadBufferSize sets the staging budget hint surfaced to the
// Uploader via Loader.UploadBufferSize.
func WithUploadBufferSize(bytes int) Option {
	return func(c *loaderConfig) {
		if bytes > 0 {
			c.uploadBufferSize = bytes
		}
	}
}

// WithWorkers sets the background worker count for the default scheduler
// and reader. Zero or negative selects GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *loaderConfig) { c.workers = n }
}

// WithPollWindow bounds each blocking mailbox wait while the loader drives
// a synchronous load to completion.
func WithPollWindow(d time.Duration) Option {
	return func(c *loaderConfig) {
		if d > 0 {
			c.pollWindow = d
		}
	}
}

// WithWatchdogThreshold sets how many expired poll windows arm the deadlock
// watchdog. Zero selects DefaultWatchdogThreshold; negative disables the
// watchdog entirely.
func WithWatchdogThreshold(windows int) Option {
	return func(c *loaderConfig) { c.watchdogAfter = windows }
}

func defaultConfig() loaderConfig {
	return loaderConfig{
		graceFrames:      DefaultGracePeriod,
		uploadBufferSize: DefaultUploadBufferSize,
		pollWindow:       DefaultPollWindow,
		sweepInterval:    64,
	}
}
