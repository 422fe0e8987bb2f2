package vm

import (
	"encoding/binary"
	"math"

	"github.com/spaolacci/murmur3"

	"github.com/nominal-lang/nominal/pkg/bytecode"
)

// ObjectKind discriminates the payload of a heap object.
type ObjectKind uint8

const (
	objectFree ObjectKind = iota
	objectString
	objectMap
	objectFunction
	objectClass
	objectInstance
	objectScope
)

// object is one slot in the heap's object table: a kind tag, the mark bit
// used by the collector, and the kind-specific payload. Free slots thread a
// free list through nextFree.
type object struct {
	kind     ObjectKind
	marked   bool
	nextFree uint32
	payload  interface{}
}

type stringObject struct {
	bytes    string
	interned bool
}

type mapEntry struct {
	key   Value
	value Value
}

// mapObject is an insertion-ordered pair sequence plus a hash index from key
// to position in the sequence.
type mapObject struct {
	entries []mapEntry
	index   *HashTable
}

// NativeFunction is a host callback wrapped as a callable value. Arguments
// are pulled through the state's ArgCount/Arg accessors; the return value is
// pushed as the call's result.
type NativeFunction func(s *State) Value

// functionObject is a callable. Script functions reference a compiled
// prototype and the scope captured when the function value was created;
// native functions hold the host callback instead.
type functionObject struct {
	proto   *bytecode.Proto
	protoID int
	scope   uint32
	native  NativeFunction
}

// classObject is a named member map plus an optional parent class.
type classObject struct {
	name    string
	members Value
	parent  Value
}

// instanceObject links an instance to its class and its own member map.
type instanceObject struct {
	class   Value
	members Value
}

// scopeObject is an identifier table plus a parent link; parent 0 is the
// global scope's missing parent.
type scopeObject struct {
	table  *HashTable
	parent uint32
}

// Heap owns every reference-typed object. Objects live in a dense table
// indexed by handle; handle 0 is reserved as "no object". Release happens
// only in the garbage collector.
type Heap struct {
	objects  []object
	freeList uint32
	interned map[string]uint32
	allocs   int
}

const (
	mapBucketCount   = 16
	scopeBucketCount = 8
)

func newHeap() *Heap {
	return &Heap{
		objects:  make([]object, 1), // slot 0 reserved
		interned: make(map[string]uint32),
	}
}

// allocate places a payload in a free slot, reusing the free list before
// growing the table, and returns the handle.
func (h *Heap) allocate(kind ObjectKind, payload interface{}) uint32 {
	h.allocs++

	if h.freeList != 0 {
		id := h.freeList
		h.freeList = h.objects[id].nextFree
		h.objects[id] = object{kind: kind, payload: payload}
		return id
	}

	h.objects = append(h.objects, object{kind: kind, payload: payload})
	return uint32(len(h.objects) - 1)
}

func (h *Heap) stringOf(v Value) *stringObject {
	return h.objects[v.handle()].payload.(*stringObject)
}

func (h *Heap) mapOf(v Value) *mapObject {
	return h.objects[v.handle()].payload.(*mapObject)
}

func (h *Heap) functionOf(v Value) *functionObject {
	return h.objects[v.handle()].payload.(*functionObject)
}

func (h *Heap) classOf(v Value) *classObject {
	return h.objects[v.handle()].payload.(*classObject)
}

func (h *Heap) instanceOf(v Value) *instanceObject {
	return h.objects[v.handle()].payload.(*instanceObject)
}

func (h *Heap) scope(id uint32) *scopeObject {
	return h.objects[id].payload.(*scopeObject)
}

// newValueTable creates a hash table keyed by arbitrary values. The closures
// capture the heap so string keys hash and compare by content.
func (h *Heap) newValueTable(bucketCount int) *HashTable {
	return NewHashTable(h.hashValue, h.valuesEqual, bucketCount)
}

// hashValue returns the 64-bit hash of a value. Numbers hash on
// canonicalized double bits, strings on their bytes, and everything else on
// handle identity, so equal values always share a hash.
func (h *Heap) hashValue(v Value) uint64 {
	if v.IsNumber() {
		f := v.Float64()
		bits := math.Float64bits(f)
		if f == 0 {
			bits = 0 // -0 and +0 are equal, so they must share a hash
		}
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], bits)
		return murmur3.Sum64(buf[:])
	}
	if v.IsString() {
		return murmur3.Sum64([]byte(h.stringOf(v).bytes))
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	return murmur3.Sum64(buf[:])
}

// valuesEqual implements value equality: numbers numerically, booleans by
// payload, nil only to nil, strings bytewise, and heap kinds by handle
// identity. Interned strings compare by handle as a fast path, which agrees
// with the bytewise result across interned and non-interned strings.
func (h *Heap) valuesEqual(a, b Value) bool {
	if a == b {
		// Identical bits: same number, same boolean, same handle. NaN
		// is the one exception to numeric equality.
		if a.IsNumber() {
			return !math.IsNaN(a.Float64())
		}
		return true
	}
	if a.IsNumber() && b.IsNumber() {
		return a.Float64() == b.Float64()
	}
	if a.IsString() && b.IsString() {
		return h.stringOf(a).bytes == h.stringOf(b).bytes
	}
	return false
}
