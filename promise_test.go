package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPromiseResolve(t *testing.T) {
	var resolve func(int)
	p := NewPromise(func(res func(int), _ func(error)) { resolve = res })

	if p.Settled() {
		t.Fatal("promise settled before resolution")
	}
	if _, _, ok := p.TryGet(); ok {
		t.Fatal("TryGet ok while pending")
	}

	resolve(7)

	v, err := p.Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if v != 7 {
		t.Fatalf("Await = %d, want 7", v)
	}
	// Settled value stays observable.
	if v, _, ok := p.TryGet(); !ok || v != 7 {
		t.Fatalf("TryGet after settle = (%d, %v)", v, ok)
	}
}

func TestPromiseReject(t *testing.T) {
	boom := errors.New("boom")
	p := Rejected[string](boom)
	_, err := p.Await(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Await err = %v, want boom", err)
	}
}

func TestPromiseFirstSettlementWins(t *testing.T) {
	var resolve func(int)
	var reject func(error)
	p := NewPromise(func(res func(int), rej func(error)) { resolve, reject = res, rej })

	resolve(1)
	resolve(2)
	reject(errors.New("late"))

	v, err := p.Await(context.Background())
	if err != nil || v != 1 {
		t.Fatalf("Await = (%d, %v), want (1, nil)", v, err)
	}
}

func TestPromiseAwaitHonorsContext(t *testing.T) {
	p := NewPromise(func(func(int), func(error)) {}) // never settles
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Await(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Await err = %v, want deadline exceeded", err)
	}
}

func TestPromiseLateSettlementAfterAbandon(t *testing.T) {
	var resolve func(int)
	p := NewPromise(func(res func(int), _ func(error)) { resolve = res })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Await(ctx); err == nil {
		t.Fatal("Await with canceled context succeeded")
	}

	// Settling after the waiter gave up must not panic or block.
	resolve(9)
	if v, err := p.Await(context.Background()); err != nil || v != 9 {
		t.Fatalf("late settlement lost: (%d, %v)", v, err)
	}
}

func TestPromiseConcurrentAwaiters(t *testing.T) {
	var resolve func(string)
	p := NewPromise(func(res func(string), _ func(error)) { resolve = res })

	results := make(chan string, 4)
	for i := 0; i < 4; i++ {
		go func() {
			v, _ := p.Await(context.Background())
			results <- v
		}()
	}
	resolve("done")
	for i := 0; i < 4; i++ {
		if v := <-results; v != "done" {
			t.Fatalf("awaiter %d got %q", i, v)
		}
	}
}

func TestPromiseDiscard(t *testing.T) {
	p := Rejected[Void](errors.New("write failed"))
	// Consumes the outcome in the background; must not panic.
	p.Discard()
}
