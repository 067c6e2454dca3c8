package domain

import (
	"sync"
	"testing"
)

func TestIDGeneratorStrictlyIncreasing(t *testing.T) {
	g := NewIDGenerator(1)
	prev := g.Last()
	for i := 0; i < 100; i++ {
		id := g.Next()
		if id <= prev {
			t.Fatalf("id %d not greater than %d", id, prev)
		}
		prev = id
	}
}

func TestIDGeneratorConcurrentUnique(t *testing.T) {
	g := NewIDGenerator(0)
	const workers, perWorker = 8, 500

	var mu sync.Mutex
	seen := make(map[ID]struct{}, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]ID, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, g.Next())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Fatalf("expected %d unique ids, got %d", workers*perWorker, len(seen))
	}
}

func TestIDGeneratorObserve(t *testing.T) {
	g := NewIDGenerator(5)
	g.Observe(3)
	if g.Last() != 5 {
		t.Fatalf("observe of a smaller id moved the generator to %d", g.Last())
	}
	g.Observe(40)
	if next := g.Next(); next != 41 {
		t.Fatalf("expected 41 after observing 40, got %d", next)
	}
}

func TestParseID(t *testing.T) {
	if id, ok := ParseID("42"); !ok || id != 42 {
		t.Fatalf("ParseID(42) = %d, %v", id, ok)
	}
	for _, bad := range []string{"", "0", "-1", "abc"} {
		if _, ok := ParseID(bad); ok {
			t.Fatalf("expected ParseID(%q) to fail", bad)
		}
	}
}
