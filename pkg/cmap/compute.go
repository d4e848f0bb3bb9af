package cmap

// Compute replaces the value under key with the result of fn, holding the
// shard lock for the duration of the call. If fn returns keep=false the key
// is deleted. fn must not call back into the map.
func (m *Map[K, V]) Compute(key K, fn func(current V, exists bool) (next V, keep bool)) (V, bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.items[key]
	next, keep := fn(current, exists)
	if !keep {
		delete(s.items, key)
		return next, false
	}
	s.items[key] = next
	return next, true
}

// GetOrCreate returns the value under key, storing mk() first if absent.
func (m *Map[K, V]) GetOrCreate(key K, mk func() V) V {
	s := m.shardFor(key)
	s.mu.RLock()
	v, ok := s.items[key]
	s.mu.RUnlock()
	if ok {
		return v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.items[key]; ok {
		return v
	}
	v = mk()
	s.items[key] = v
	return v
}

// Range calls fn for each entry until fn returns false. Each shard is read
// under its own lock, so the view is not a consistent snapshot.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.items {
			if !fn(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// DeleteIf removes every entry for which pred returns true and reports how
// many were removed. pred runs under the shard's write lock.
func (m *Map[K, V]) DeleteIf(pred func(key K, value V) bool) int {
	removed := 0
	for _, s := range m.shards {
		s.mu.Lock()
		for k, v := range s.items {
			if pred(k, v) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}
