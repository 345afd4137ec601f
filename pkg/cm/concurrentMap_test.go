package cm

import (
	"sync"
	"testing"
)

func TestUpdateIsAtomic(t *testing.T) {
	var m ConcurrentMap[string, int]
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Update("10.1.0.2", func(v int) int { return v + 1 })
			}
		}()
	}
	wg.Wait()

	got := make(map[string]int)
	m.Range(func(key string, v int) bool {
		got[key] = v
		return true
	})
	if len(got) != 1 || got["10.1.0.2"] != 5000 {
		t.Fatalf("Expected 5000 for one key, got %v", got)
	}
}

func TestRangeStops(t *testing.T) {
	var m ConcurrentMap[int, int]
	for i := 0; i < 10; i++ {
		m.Update(i, func(v int) int { return v + i })
	}
	calls := 0
	m.Range(func(int, int) bool {
		calls++
		return false
	})
	if calls != 1 {
		t.Fatalf("Expected Range to stop after one call, got %d", calls)
	}
}
