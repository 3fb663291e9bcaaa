package gid

import (
	"sync"
	"testing"
)

func TestID_StableWithinGoroutine(t *testing.T) {
	a := ID()
	b := ID()
	if a == 0 {
		t.Fatal("ID() returned 0")
	}
	if a != b {
		t.Fatalf("ID changed within one goroutine: %d then %d", a, b)
	}
}

func TestID_DiffersAcrossGoroutines(t *testing.T) {
	main := ID()

	var wg sync.WaitGroup
	ids := make(chan uint64, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- ID()
		}()
	}
	wg.Wait()
	close(ids)

	for id := range ids {
		if id == 0 {
			t.Fatal("goroutine reported id 0")
		}
		if id == main {
			t.Fatalf("spawned goroutine reported the main goroutine's id %d", main)
		}
	}
}
