package texload

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned or captured by this package wraps
// exactly one of these sentinels, so callers can classify failures with
// errors.Is without depending on message text.
var (
	// ErrIO marks a missing or unreadable file, or a failed archive read.
	ErrIO = errors.New("texload: i/o error")

	// ErrFormat marks a bad magic number, inconsistent header fields, or an
	// unsupported pixel layout.
	ErrFormat = errors.New("texload: format error")

	// ErrCapability marks a requested conversion the loader cannot perform,
	// such as an incompatible array/cubemap transform.
	ErrCapability = errors.New("texload: capability error")

	// ErrConcurrency marks a synchronization misuse detected at runtime.
	// Most concurrency misuses are programmer errors and panic instead; this
	// sentinel covers the recoverable cases (e.g. operations on a closed
	// mailbox or mutex).
	ErrConcurrency = errors.New("texload: concurrency error")

	// ErrResourceLimit marks a file larger than the supported addressing
	// size.
	ErrResourceLimit = errors.New("texload: resource limit exceeded")
)

// Closed-object errors. Both wrap ErrConcurrency.
var (
	// ErrMailboxClosed is returned by Mailbox.Dequeue after Close.
	ErrMailboxClosed = fmt.Errorf("%w: mailbox closed", ErrConcurrency)

	// ErrMutexClosed resolves pending Lock futures when an AsyncMutex is
	// closed with waiters outstanding.
	ErrMutexClosed = fmt.Errorf("%w: async mutex closed", ErrConcurrency)
)

// ioError wraps err as an ErrIO for resource key.
func ioError(key string, err error) error {
	return fmt.Errorf("%w: %q: %v", ErrIO, key, err)
}

// formatError reports a malformed or unrecognized texture file.
func formatError(key, detail string) error {
	return fmt.Errorf("%w: %q: %s", ErrFormat, key, detail)
}

// capabilityError reports an unsupported shape conversion.
func capabilityError(from, to Shape) error {
	return fmt.Errorf("%w: cannot convert %v to %v", ErrCapability, from, to)
}
