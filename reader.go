package texload

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/gogpu/texload/internal/buf"
	"github.com/gogpu/texload/internal/parallel"
)

// MaxFileSize is the addressing limit for a single resource read. Files
// beyond it fail with ErrResourceLimit before any buffer is allocated.
const MaxFileSize = math.MaxInt32

// ReadOp is one in-flight asynchronous file read. The buffer is valid only
// after the completion settles successfully, and only until Release.
type ReadOp struct {
	// Path is the file being read, for diagnostics.
	Path string

	done *Completion[*buf.Buffer]
}

// Done exposes the completion for bridge-driven waits.
func (op *ReadOp) Done() *Completion[*buf.Buffer] { return op.done }

// Result returns the filled buffer or the read error. Panics if the read
// has not completed; gate on Done first.
func (op *ReadOp) Result() (*buf.Buffer, error) { return op.done.Result() }

// AsyncReader reads file regions on background workers. NewFileReader
// provides the default implementation; tests substitute fakes.
type AsyncReader interface {
	// ReadAsync reads n bytes starting at off from the file at path.
	// n < 0 reads from off to end of file. The returned operation's
	// completion settles on a background worker; route continuations
	// through a Bridge before touching owner-confined state.
	ReadAsync(path string, off, n int64) *ReadOp
}

// FileReader is the default AsyncReader: plain os.File reads executed on a
// worker pool, with buffers drawn from a shared release-once pool.
type FileReader struct {
	pool    *parallel.WorkerPool
	buffers *buf.Pool
}

// NewFileReader creates a FileReader running on pool, drawing buffers from
// buffers. Both may be shared with other collaborators.
func NewFileReader(pool *parallel.WorkerPool, buffers *buf.Pool) *FileReader {
	return &FileReader{pool: pool, buffers: buffers}
}

// ReadAsync implements AsyncReader.
func (r *FileReader) ReadAsync(path string, off, n int64) *ReadOp {
	op := &ReadOp{Path: path, done: NewCompletion[*buf.Buffer]()}
	r.pool.Submit(func() {
		b, err := r.read(path, off, n)
		if err != nil {
			op.done.Fail(err)
			return
		}
		op.done.Complete(b)
	})
	return op
}

func (r *FileReader) read(path string, off, n int64) (*buf.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioError(path, err)
	}
	defer func() { _ = f.Close() }()

	if n < 0 {
		info, err := f.Stat()
		if err != nil {
			return nil, ioError(path, err)
		}
		n = info.Size() - off
	}
	if n < 0 {
		return nil, ioError(path, fmt.Errorf("offset %d beyond end of file", off))
	}
	if n > MaxFileSize {
		return nil, fmt.Errorf("%w: %q is %d bytes", ErrResourceLimit, path, n)
	}

	b := r.buffers.Get(int(n))
	read, err := f.ReadAt(b.Bytes(), off)
	if err != nil && err != io.EOF {
		b.Release()
		return nil, ioError(path, err)
	}
	if int64(read) < n {
		// An EOF before n bytes would hand the decoder a buffer whose tail
		// is stale pool memory.
		b.Release()
		return nil, ioError(path, fmt.Errorf("short read: %d of %d bytes at offset %d", read, n, off))
	}
	return b, nil
}
