package vm

// Factory routines. Every constructor may trigger a collection before it
// allocates, so callers holding unrooted values across one must register
// them as temporaries first.

// NewString creates a string value. Interned strings are shared through the
// state-wide pool: two interned strings with equal bytes are the same handle.
func (s *State) NewString(str string, interned bool) Value {
	if interned {
		if id, ok := s.heap.interned[str]; ok {
			return makeTagged(tagInterned, id)
		}
		s.maybeCollect()
		id := s.heap.allocate(objectString, &stringObject{bytes: str, interned: true})
		s.heap.interned[str] = id
		return makeTagged(tagInterned, id)
	}

	s.maybeCollect()
	id := s.heap.allocate(objectString, &stringObject{bytes: str})
	return makeTagged(tagString, id)
}

// StringBytes returns the byte content of a string value, or "" for other
// kinds.
func (s *State) StringBytes(v Value) string {
	if !v.IsString() {
		return ""
	}
	return s.heap.stringOf(v).bytes
}

// NewMap creates an empty map value.
func (s *State) NewMap() Value {
	s.maybeCollect()
	m := &mapObject{index: s.heap.newValueTable(mapBucketCount)}
	id := s.heap.allocate(objectMap, m)
	return makeTagged(tagMap, id)
}

// NewFunction wraps a host callback as a callable value.
func (s *State) NewFunction(cb NativeFunction) Value {
	s.maybeCollect()
	id := s.heap.allocate(objectFunction, &functionObject{native: cb})
	return makeTagged(tagFunction, id)
}

// newScriptFunction creates a closure over the given scope.
func (s *State) newScriptFunction(protoID int, scope uint32) Value {
	s.maybeCollect()
	fo := &functionObject{proto: s.prog.Protos[protoID], protoID: protoID, scope: scope}
	id := s.heap.allocate(objectFunction, fo)
	return makeTagged(tagFunction, id)
}

// NewClass creates a class with an empty member map. The parent must be a
// class value or nil.
func (s *State) NewClass(name string, parent Value) Value {
	members := s.NewMap()
	s.pushTemp(members)
	defer s.popTemp()

	s.maybeCollect()
	id := s.heap.allocate(objectClass, &classObject{name: name, members: members, parent: parent})
	return makeTagged(tagClass, id)
}

// newInstance creates an instance of a class whose member map is a fresh
// copy of the class's members.
func (s *State) newInstance(class Value) Value {
	members := s.NewMap()
	s.pushTemp(members)
	defer s.popTemp()

	cm := s.heap.mapOf(s.heap.classOf(class).members)
	dst := s.heap.mapOf(members)
	for _, e := range cm.entries {
		dst.entries = append(dst.entries, e)
		dst.index.Insert(e.key, FromInt(len(dst.entries)-1))
	}

	s.maybeCollect()
	id := s.heap.allocate(objectInstance, &instanceObject{class: class, members: members})
	return makeTagged(tagInstance, id)
}

// newScope creates a scope chained to the given parent; parent 0 creates a
// root scope.
func (s *State) newScope(parent uint32) uint32 {
	s.maybeCollect()
	sc := &scopeObject{table: s.heap.newValueTable(scopeBucketCount), parent: parent}
	return s.heap.allocate(objectScope, sc)
}

// pushTemp registers a value as a GC root for the duration of an operation
// that allocates while holding it.
func (s *State) pushTemp(v Value) {
	s.temps = append(s.temps, v)
}

func (s *State) popTemp() {
	s.temps = s.temps[:len(s.temps)-1]
}

// Pin registers a value as a root until Unpin. Hosts use it to hold a value
// across API calls that may allocate.
func (s *State) Pin(v Value) {
	s.pinned = append(s.pinned, v)
}

// Unpin removes the most recent pin of the value.
func (s *State) Unpin(v Value) {
	for i := len(s.pinned) - 1; i >= 0; i-- {
		if s.pinned[i] == v {
			s.pinned = append(s.pinned[:i], s.pinned[i+1:]...)
			return
		}
	}
}

// Map operations. The entry sequence preserves insertion order; the index
// table maps a key to its position in the sequence.

func (s *State) mapInsert(m *mapObject, key, value Value) bool {
	if !m.index.Insert(key, FromInt(len(m.entries))) {
		return false
	}
	m.entries = append(m.entries, mapEntry{key: key, value: value})
	return true
}

func (s *State) mapSet(m *mapObject, key, value Value) bool {
	pos, ok := m.index.Get(key)
	if !ok {
		return false
	}
	m.entries[pos.ToInt()].value = value
	return true
}

func (s *State) mapInsertOrSet(m *mapObject, key, value Value) bool {
	if s.mapSet(m, key, value) {
		return false
	}
	return s.mapInsert(m, key, value)
}

func (s *State) mapGet(m *mapObject, key Value) (Value, bool) {
	pos, ok := m.index.Get(key)
	if !ok {
		return Nil(), false
	}
	return m.entries[pos.ToInt()].value, true
}

// memberMap returns the mutable member map behind a map or instance value.
func (s *State) memberMap(v Value) (*mapObject, bool) {
	switch {
	case v.IsMap():
		return s.heap.mapOf(v), true
	case v.IsInstance():
		return s.heap.mapOf(s.heap.instanceOf(v).members), true
	}
	return nil, false
}

// Scope operations. Identifier keys are interned strings, so lookups hash
// and compare by handle.

// scopeLet declares in the target scope only, failing on redeclaration.
func (s *State) scopeLet(scope uint32, name, value Value) bool {
	return s.heap.scope(scope).table.Insert(name, value)
}

// scopeAssign walks the chain for the nearest scope declaring the
// identifier and sets it there, failing when no scope does.
func (s *State) scopeAssign(scope uint32, name, value Value) bool {
	for id := scope; id != 0; id = s.heap.scope(id).parent {
		if s.heap.scope(id).table.Set(name, value) {
			return true
		}
	}
	return false
}

// scopeLookup resolves an identifier through the chain.
func (s *State) scopeLookup(scope uint32, name Value) (Value, bool) {
	for id := scope; id != 0; id = s.heap.scope(id).parent {
		if v, ok := s.heap.scope(id).table.Get(name); ok {
			return v, true
		}
	}
	return Nil(), false
}

// scopeExports copies a scope's own bindings into a fresh map, used to
// capture a module's top-level scope as its export map.
func (s *State) scopeExports(scope uint32) Value {
	m := s.NewMap()
	s.pushTemp(m)
	defer s.popTemp()

	var it HashTableIterator
	for s.heap.scope(scope).table.MoveNext(&it) {
		s.mapInsert(s.heap.mapOf(m), it.Key, it.Value)
	}
	return m
}
