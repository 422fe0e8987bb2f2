package vm

// HashFunc hashes a key for bucket placement.
type HashFunc func(key Value) uint64

// EqualFunc reports whether two keys are the same key.
type EqualFunc func(a, b Value) bool

// HashTable is a chained hash table parameterized by a hash function and a
// key-equality predicate. It backs both Maps (arbitrary Value keys) and
// Scopes (interned-string keys); the table does not own keys or values.
type HashTable struct {
	hash   HashFunc
	equals EqualFunc
	buckets []*bucketNode
	count   int
}

type bucketNode struct {
	key   Value
	value Value
	next  *bucketNode
}

// HashTableIterator walks every pair of a table. The zero value is ready to
// use; pass it to MoveNext repeatedly until it returns false.
type HashTableIterator struct {
	// Key and Value are the pair most recently moved to.
	Key   Value
	Value Value

	table  *HashTable
	index  int
	node   *bucketNode
}

// NewHashTable creates a table with the given bucket count.
func NewHashTable(hash HashFunc, equals EqualFunc, bucketCount int) *HashTable {
	return &HashTable{
		hash:    hash,
		equals:  equals,
		buckets: make([]*bucketNode, bucketCount),
	}
}

// Count returns the number of stored pairs.
func (t *HashTable) Count() int {
	return t.count
}

// findNode locates the node for a key, creating one when create is set.
// Mirrors the insert/set duality: when asked to create, finding an existing
// node is a failure; when not, it is a success.
func (t *HashTable) findNode(key Value, create bool) (*bucketNode, bool) {
	index := t.hash(key) % uint64(len(t.buckets))

	var prev *bucketNode
	for curr := t.buckets[index]; curr != nil; curr = curr.next {
		if t.equals(curr.key, key) {
			return curr, !create
		}
		prev = curr
	}

	if !create {
		return nil, false
	}

	node := &bucketNode{key: key}
	if prev != nil {
		prev.next = node
	} else {
		t.buckets[index] = node
	}
	t.count++
	return node, true
}

// Insert adds a new pair, failing if the key is already present.
func (t *HashTable) Insert(key, value Value) bool {
	node, ok := t.findNode(key, true)
	if !ok {
		return false
	}
	node.value = value
	return true
}

// Set replaces the value for an existing key, failing if the key is absent.
func (t *HashTable) Set(key, value Value) bool {
	node, ok := t.findNode(key, false)
	if !ok {
		return false
	}
	node.value = value
	return true
}

// InsertOrSet stores the pair unconditionally, reporting whether a new pair
// was inserted.
func (t *HashTable) InsertOrSet(key, value Value) bool {
	node, inserted := t.findNode(key, true)
	node.value = value
	return inserted
}

// Get returns the value for a key and whether the key was present.
func (t *HashTable) Get(key Value) (Value, bool) {
	node, ok := t.findNode(key, false)
	if !ok {
		return Nil(), false
	}
	return node.value, true
}

// InsertOrGet inserts the pair when the key is absent, or returns the
// existing value. The second result reports whether an insert happened.
func (t *HashTable) InsertOrGet(key, value Value) (Value, bool) {
	node, inserted := t.findNode(key, true)
	if inserted {
		node.value = value
	}
	return node.value, inserted
}

// MoveNext advances the iterator, yielding every pair exactly once in a
// stable order for an unmodified table. Returns false when exhausted or when
// the iterator belongs to another table.
func (t *HashTable) MoveNext(it *HashTableIterator) bool {
	if it.table == nil {
		it.table = t
		it.index = 0
		it.node = t.buckets[0]
	} else if it.table != t {
		return false
	} else if it.node != nil {
		it.node = it.node.next
	}

	for it.node == nil {
		it.index++
		if it.index >= len(t.buckets) {
			return false
		}
		it.node = t.buckets[it.index]
	}

	it.Key = it.node.key
	it.Value = it.node.value
	return true
}
