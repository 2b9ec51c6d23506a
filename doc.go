// Package texload loads GPU texture resources asynchronously for
// frame-driven applications.
//
// The package is built around a small set of cooperating pieces:
//
//   - Loader: a reference-counted, deduplicating registry of in-flight and
//     completed texture loads, keyed by canonicalized resource path.
//   - Bridge: routes callbacks between the goroutine that owns the GPU
//     device (the "owner" goroutine, typically the render loop) and
//     background workers, so GPU mutation only ever happens on the owner.
//   - Mailbox: the cross-goroutine blocking queue backing the Bridge.
//   - AsyncMutex: a FIFO-fair exclusive lock for cooperative callers that
//     must not block the owner goroutine.
//
// A load request consults the cache first; on a miss a resumable load
// routine is registered and stepped by Loader.Update. File reads and pixel
// decoding run on background workers; completions are marshalled back
// through the Bridge so texture creation and upload always execute on the
// owner goroutine. Dropping the last Handle to a pending load never
// interrupts background work: buffers run out their lifetime and are
// discarded afterwards.
//
// Format decoders, bulk-archive access and the GPU upload primitive are
// consumed through narrow interfaces (see Decoder, Container, Uploader);
// the texfmt and backend/native packages provide default implementations.
//
// Call Loader.Update once per frame from the owner goroutine. All Loader
// methods except Handle.Acquire/Dispose bookkeeping must be called from
// that same goroutine.
package texload
