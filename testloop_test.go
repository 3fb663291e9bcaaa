package worker

import (
	"testing"

	"github.com/edgebind/worker/internal/eventloop"
)

// newTestEnv builds an Env on a fresh loop goroutine, the way a host does.
// Handles resolved from it can be used from the test goroutine directly.
func newTestEnv(t *testing.T, b *Bindings) (*Env, *eventloop.Loop) {
	t.Helper()
	l := eventloop.New()
	t.Cleanup(l.Close)
	var env *Env
	if err := l.Do(func() { env = NewEnv(b, l.Schedule) }); err != nil {
		t.Fatalf("building env on loop: %v", err)
	}
	return env, l
}

// onLoop runs a constructor on the loop goroutine, for state that must be
// created there.
func onLoop[T any](t *testing.T, l *eventloop.Loop, get func() (T, error)) T {
	t.Helper()
	var v T
	var err error
	if doErr := l.Do(func() { v, err = get() }); doErr != nil {
		t.Fatalf("loop call: %v", doErr)
	}
	if err != nil {
		t.Fatalf("loop constructor: %v", err)
	}
	return v
}
