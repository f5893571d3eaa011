package snowflake

import (
	"sync"
	"testing"
)

func TestGenerate_Unique(t *testing.T) {
	node := NewNode(1)

	seen := make(map[int64]bool)
	for i := 0; i < 10000; i++ {
		id := node.Generate()
		if seen[id] {
			t.Fatalf("Duplicate ID generated: %d", id)
		}
		seen[id] = true
	}
}

func TestGenerate_Monotonic(t *testing.T) {
	node := NewNode(1)

	prev := node.Generate()
	for i := 0; i < 1000; i++ {
		id := node.Generate()
		if id <= prev {
			t.Fatalf("ID not increasing: %d after %d", id, prev)
		}
		prev = id
	}
}

func TestGenerate_Concurrent(t *testing.T) {
	node := NewNode(1)

	const goroutines = 10
	const perGoroutine = 1000

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]int64, 0, perGoroutine)
			for i := 0; i < perGoroutine; i++ {
				ids = append(ids, node.Generate())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range ids {
				if seen[id] {
					t.Errorf("Duplicate ID generated: %d", id)
				}
				seen[id] = true
			}
		}()
	}
	wg.Wait()
}

func TestNewNode_InvalidID(t *testing.T) {
	node := NewNode(-5)
	if node.nodeID != 1 {
		t.Errorf("Expected fallback nodeID 1, got %d", node.nodeID)
	}

	node = NewNode(maxNodeID + 1)
	if node.nodeID != 1 {
		t.Errorf("Expected fallback nodeID 1, got %d", node.nodeID)
	}
}
