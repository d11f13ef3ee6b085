package circularbatch

import (
	"sync"
	"testing"
)

func TestEmitsFullBatchesInOrder(t *testing.T) {
	const batchSize, batchCount = 4, 3
	var mu sync.Mutex
	var batches [][]int

	cb := New[int](batchSize, batchCount, func(items []int) {
		mu.Lock()
		defer mu.Unlock()
		cp := make([]int, len(items))
		copy(cp, items)
		batches = append(batches, cp)
	})

	for i := 0; i < batchSize*2; i++ {
		if closed := cb.Push(i); closed {
			cb.PushSwap()
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	for i, want := range [][]int{{0, 1, 2, 3}, {4, 5, 6, 7}} {
		if len(batches[i]) != len(want) {
			t.Fatalf("batch %d length = %d, want %d", i, len(batches[i]), len(want))
		}
		for j := range want {
			if batches[i][j] != want[j] {
				t.Errorf("batch %d[%d] = %d, want %d", i, j, batches[i][j], want[j])
			}
		}
	}
}

func TestForcePushEmitsPartial(t *testing.T) {
	const batchSize, batchCount = 4, 2
	var mu sync.Mutex
	var got []int

	cb := New[int](batchSize, batchCount, func(items []int) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, items...)
	})

	cb.Push(1)
	cb.Push(2)
	cb.ForcePush()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("ForcePush emitted %v, want [1 2]", got)
	}
}

func TestForcePushNoOpWhenEmpty(t *testing.T) {
	calls := 0
	cb := New[int](4, 2, func([]int) { calls++ })
	cb.ForcePush()
	if calls != 0 {
		t.Errorf("ForcePush invoked callback on empty window, calls=%d", calls)
	}
}

func TestConcurrentProducersConserveAllElements(t *testing.T) {
	const batchSize, batchCount = 8, 4
	const producers, perProducer = 6, 50

	var mu sync.Mutex
	seen := make(map[int]bool)

	cb := New[int](batchSize, batchCount, func(items []int) {
		mu.Lock()
		defer mu.Unlock()
		for _, v := range items {
			if seen[v] {
				t.Errorf("value %d emitted more than once", v)
			}
			seen[v] = true
		}
	})

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if cb.Push(base + i) {
					cb.PushSwap()
				}
			}
		}(p * perProducer)
	}
	wg.Wait()
	cb.ForcePush()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != producers*perProducer {
		t.Fatalf("saw %d distinct values, want %d", len(seen), producers*perProducer)
	}
}

func TestPendingNeverExceedsCapacity(t *testing.T) {
	const batchSize, batchCount = 4, 2
	cb := New[int](batchSize, batchCount, func([]int) {})
	for i := 0; i < batchSize*batchCount*3; i++ {
		if cb.Push(i) {
			cb.PushSwap()
		}
		if p := cb.Pending(); p > batchSize {
			t.Fatalf("Pending() = %d, want <= %d", p, batchSize)
		}
	}
}

func TestMixedPushSwapAndForcePush(t *testing.T) {
	const batchSize, batchCount = 4, 2
	var mu sync.Mutex
	var batches [][]int

	cb := New[int](batchSize, batchCount, func(items []int) {
		mu.Lock()
		defer mu.Unlock()
		cp := make([]int, len(items))
		copy(cp, items)
		batches = append(batches, cp)
	})

	for i := 0; i < batchSize+2; i++ {
		if cb.Push(i) {
			cb.PushSwap()
		}
	}
	cb.ForcePush()

	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	if len(batches[1]) != 2 {
		t.Fatalf("forced batch length = %d, want 2", len(batches[1]))
	}
}
