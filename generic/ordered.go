package generic

// OrderedIndex is an insert-if-absent map that remembers insertion order.
// It backs every "first occurrence wins" rule in the engine: the first value
// inserted for a key is kept, later ones are ignored, and iteration follows
// the order keys were first seen.
type OrderedIndex[K comparable, V any] struct {
	keys   []K
	values map[K]V
}

// NewOrderedIndex returns an empty index with room for n keys.
func NewOrderedIndex[K comparable, V any](n int) *OrderedIndex[K, V] {
	return &OrderedIndex[K, V]{
		keys:   make([]K, 0, n),
		values: make(map[K]V, n),
	}
}

// InsertIfAbsent stores v under k unless k is already present.
// Returns true when v was stored.
func (o *OrderedIndex[K, V]) InsertIfAbsent(k K, v V) bool {
	if _, exists := o.values[k]; exists {
		return false
	}
	o.keys = append(o.keys, k)
	o.values[k] = v
	return true
}

// Get returns the value stored for k.
func (o *OrderedIndex[K, V]) Get(k K) (V, bool) {
	v, ok := o.values[k]
	return v, ok
}

// Len returns the number of distinct keys.
func (o *OrderedIndex[K, V]) Len() int { return len(o.keys) }

// Keys returns keys in first-seen order.
func (o *OrderedIndex[K, V]) Keys() []K {
	out := make([]K, len(o.keys))
	copy(out, o.keys)
	return out
}

// Values returns values in first-seen key order.
func (o *OrderedIndex[K, V]) Values() []V {
	out := make([]V, len(o.keys))
	for i, k := range o.keys {
		out[i] = o.values[k]
	}
	return out
}
