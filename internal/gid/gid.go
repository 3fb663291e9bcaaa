// Package gid exposes the identity of the calling goroutine.
//
// The runtime deliberately hides goroutine ids, but the host bridge needs a
// stable identity to enforce handle affinity: a foreign handle may only be
// dereferenced on the goroutine that wrapped it. The id is parsed from the
// first line of the goroutine's stack header ("goroutine N [running]:"),
// which has been stable across every Go release since 1.0.
package gid

import (
	"bytes"
	"runtime"
	"strconv"
)

var prefix = []byte("goroutine ")

// ID returns the runtime id of the calling goroutine.
func ID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	buf = bytes.TrimPrefix(buf, prefix)
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}
	id, err := strconv.ParseUint(string(buf), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
