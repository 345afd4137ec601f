package cm

import "sync"

// ConcurrentMap wraps around sync.Map. V must be comparable for Update to work.
type ConcurrentMap[K comparable, V comparable] struct {
	m sync.Map
}

// Update replaces the value for key with updateFunc applied to it, retrying until no
// concurrent writer got in between.
func (cm *ConcurrentMap[K, V]) Update(key K, updateFunc func(V) V) V {
	var zeroValue V
	for {
		current, _ := cm.m.LoadOrStore(key, zeroValue)
		next := updateFunc(current.(V))
		if cm.m.CompareAndSwap(key, current, next) {
			return next
		}
	}
}

// Range calls f for every entry until f returns false.
func (cm *ConcurrentMap[K, V]) Range(f func(K, V) bool) {
	cm.m.Range(func(key, value any) bool {
		return f(key.(K), value.(V))
	})
}
