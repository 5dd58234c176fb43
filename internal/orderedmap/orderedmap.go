// Package orderedmap provides a map that iterates in insertion order.
package orderedmap

// Map associates keys with values and remembers the order in that the keys
// were added. Removing a key is O(n).
type Map[K comparable, V any] struct {
	keys []K
	vals map[K]V
}

func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{vals: map[K]V{}}
}

// Add appends the key with val. If key already exists, the map is unchanged
// and false is returned.
func (m *Map[K, V]) Add(key K, val V) bool {
	if _, exist := m.vals[key]; exist {
		return false
	}

	m.keys = append(m.keys, key)
	m.vals[key] = val

	return true
}

// Set replaces the value of key, keeping its position. If key does not
// exist it is appended.
func (m *Map[K, V]) Set(key K, val V) {
	if _, exist := m.vals[key]; !exist {
		m.keys = append(m.keys, key)
	}

	m.vals[key] = val
}

// Get returns the value for key or the zero value if it does not exist.
func (m *Map[K, V]) Get(key K) V {
	return m.vals[key]
}

func (m *Map[K, V]) Contains(key K) bool {
	_, exist := m.vals[key]
	return exist
}

// Delete removes key and returns its value.
// If the key does not exist, the zero value is returned.
func (m *Map[K, V]) Delete(key K) V {
	val, exist := m.vals[key]
	if !exist {
		return val
	}

	delete(m.vals, key)

	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}

	return val
}

func (m *Map[K, V]) Len() int {
	return len(m.keys)
}

// Foreach calls fn for every element in order until fn returns false.
// fn must not modify the map.
func (m *Map[K, V]) Foreach(fn func(K, V) bool) {
	for _, k := range m.keys {
		if !fn(k, m.vals[k]) {
			return
		}
	}
}

// Keys returns a copy of the keys in order.
func (m *Map[K, V]) Keys() []K {
	return append(make([]K, 0, len(m.keys)), m.keys...)
}

// Values returns the values in order.
func (m *Map[K, V]) Values() []V {
	result := make([]V, 0, len(m.keys))

	for _, k := range m.keys {
		result = append(result, m.vals[k])
	}

	return result
}
