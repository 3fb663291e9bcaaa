package worker

import "github.com/edgebind/worker/internal/gid"

// Guard wraps a foreign handle that is not safe to touch off the goroutine
// that created it. The wrapper itself may be freely moved and shared between
// goroutines; every dereference re-checks the caller against the recorded
// origin and fails with ErrAffinityViolation on mismatch. There is no
// unchecked accessor.
type Guard[T any] struct {
	origin uint64
	inner  T
}

// Wrap captures the calling goroutine's identity as the affinity token for
// the handle.
func Wrap[T any](handle T) *Guard[T] {
	return &Guard[T]{origin: gid.ID(), inner: handle}
}

// Get returns the wrapped handle after validating that the caller is the
// origin goroutine.
func (g *Guard[T]) Get() (T, error) {
	if id := gid.ID(); id != g.origin {
		var zero T
		return zero, &AffinityError{Owner: g.origin, Caller: id}
	}
	return g.inner, nil
}

// Origin returns the goroutine id recorded at Wrap time.
func (g *Guard[T]) Origin() uint64 { return g.origin }
