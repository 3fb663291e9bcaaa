package eventloop

import (
	"sync"
	"testing"
)

func TestPushRunsInOrder(t *testing.T) {
	l := New()
	defer l.Close()

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	wg.Add(100)
	for i := 0; i < 100; i++ {
		i := i
		l.Push(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	for i, v := range got {
		if v != i {
			t.Fatalf("job %d ran out of order: got %d", i, v)
		}
	}
}

func TestOnLoop(t *testing.T) {
	l := New()
	defer l.Close()

	if l.OnLoop() {
		t.Fatal("OnLoop true outside the loop goroutine")
	}
	var inside bool
	if err := l.Do(func() { inside = l.OnLoop() }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !inside {
		t.Fatal("OnLoop false inside a loop job")
	}
}

func TestDoNestedRunsInline(t *testing.T) {
	l := New()
	defer l.Close()

	var nested bool
	err := l.Do(func() {
		// Do from the loop goroutine must not deadlock.
		l.Do(func() { nested = true })
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !nested {
		t.Fatal("nested Do did not run")
	}
}

func TestCloseDrainsQueue(t *testing.T) {
	l := New()

	var mu sync.Mutex
	count := 0
	for i := 0; i < 100; i++ {
		l.Push(func() {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}
	l.Close()

	if count != 100 {
		t.Fatalf("queued jobs after Close: ran %d of 100", count)
	}
	if err := l.Do(func() {}); err != ErrClosed {
		t.Fatalf("Do after Close: got %v, want ErrClosed", err)
	}
}

func TestSubmitAfterCloseReportsClosed(t *testing.T) {
	l := New()
	l.Close()

	ran := false
	if err := l.Push(func() { ran = true }); err != ErrClosed {
		t.Fatalf("Push after Close: got %v, want ErrClosed", err)
	}
	if err := l.Schedule(func() { ran = true }); err != ErrClosed {
		t.Fatalf("Schedule after Close: got %v, want ErrClosed", err)
	}
	if ran {
		t.Fatal("job ran on a closed loop")
	}
}
