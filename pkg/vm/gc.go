package vm

// The collector is non-generational mark-and-sweep. It runs only at
// allocation points, never between the operand fetches of an opcode, so
// every value an opcode is working with is either on the value stack or in
// a registered temporary when an allocation can happen.
//
// Cycles are pervasive: a closure's captured scope can contain the closure,
// and maps can contain themselves. Tracing from the roots reclaims them;
// nothing in the runtime counts references.

// gcThreshold is the number of allocations between automatic collections.
const gcThreshold = 1024

// maybeCollect runs a collection when enough allocations have accumulated.
// Called before every allocation, so the object about to be created cannot
// be swept.
func (s *State) maybeCollect() {
	if s.heap.allocs >= gcThreshold {
		s.CollectGarbage()
	}
}

// CollectGarbage reclaims every object not reachable from the roots and
// returns the number of objects released.
//
// The root set: the live portion of the value stack, every call frame's
// scopes and argument region, the current and global scopes, the
// materialized constant pool, values pinned by the host, registered
// temporaries, and the cached import maps.
func (s *State) CollectGarbage() int {
	h := s.heap

	for i := range h.objects {
		h.objects[i].marked = false
	}

	for i := 0; i < s.vm.sp; i++ {
		s.markValue(s.vm.stack[i])
	}
	for i := 0; i < s.vm.fp; i++ {
		f := &s.vm.frames[i]
		s.markObject(f.scope)
		s.markObject(f.callerScope)
		for _, arg := range f.args {
			s.markValue(arg)
		}
	}
	s.markObject(s.vm.scope)
	s.markObject(s.globalScope)
	for _, v := range s.consts {
		s.markValue(v)
	}
	for _, v := range s.extraRoots {
		s.markValue(v)
	}
	for _, params := range s.protoParams {
		for _, v := range params {
			s.markValue(v)
		}
	}
	for _, v := range s.pinned {
		s.markValue(v)
	}
	for _, v := range s.temps {
		s.markValue(v)
	}
	for _, v := range s.imports {
		s.markValue(v)
	}

	reclaimed := 0
	for id := uint32(1); id < uint32(len(h.objects)); id++ {
		obj := &h.objects[id]
		if obj.kind == objectFree || obj.marked {
			continue
		}
		if obj.kind == objectString {
			str := obj.payload.(*stringObject)
			if str.interned {
				delete(h.interned, str.bytes)
			}
		}
		obj.kind = objectFree
		obj.payload = nil
		obj.nextFree = h.freeList
		h.freeList = id
		reclaimed++
	}

	h.allocs = 0
	return reclaimed
}

// markValue marks the object a value references, if any.
func (s *State) markValue(v Value) {
	if v.isHeap() {
		s.markObject(v.handle())
	}
}

// markObject marks an object and recursively everything it references.
func (s *State) markObject(id uint32) {
	if id == 0 {
		return
	}
	obj := &s.heap.objects[id]
	if obj.marked || obj.kind == objectFree {
		return
	}
	obj.marked = true

	switch obj.kind {
	case objectMap:
		m := obj.payload.(*mapObject)
		for _, e := range m.entries {
			s.markValue(e.key)
			s.markValue(e.value)
		}
	case objectFunction:
		fn := obj.payload.(*functionObject)
		s.markObject(fn.scope)
	case objectClass:
		cls := obj.payload.(*classObject)
		s.markValue(cls.members)
		s.markValue(cls.parent)
	case objectInstance:
		inst := obj.payload.(*instanceObject)
		s.markValue(inst.class)
		s.markValue(inst.members)
	case objectScope:
		sc := obj.payload.(*scopeObject)
		var it HashTableIterator
		for sc.table.MoveNext(&it) {
			s.markValue(it.Key)
			s.markValue(it.Value)
		}
		s.markObject(sc.parent)
	}
}
