package texload

import (
	"bytes"
	"runtime"
	"strconv"
)

// goid returns the current goroutine's id, parsed from the first line of a
// stack trace ("goroutine 18 [running]:"). It is used only to enforce the
// owner-goroutine contract of Bridge and Loader; the id never feeds any
// scheduling decision.
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	s := buf[len("goroutine "):n]
	if i := bytes.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	id, err := strconv.ParseUint(string(s), 10, 64)
	if err != nil {
		panic("texload: cannot parse goroutine id: " + err.Error())
	}
	return id
}
