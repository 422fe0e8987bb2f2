package vm

import (
	"math"
	"strconv"
	"strings"

	"github.com/nominal-lang/nominal/pkg/bytecode"
)

// Value operations: equality, hashing, string formatting, arithmetic,
// indexed access and iteration. These back both the opcode handlers and the
// embedding API, so each failure goes through the state's error slot.

// Equals reports value equality. Instances whose class declares an `==`
// member dispatch to it; every other heap kind compares by handle identity.
func (s *State) Equals(a, b Value) bool {
	if a.IsInstance() {
		if op, ok := s.classMember(s.heap.instanceOf(a).class, s.names.eq); ok && op.IsInvokable() {
			return s.vm.call(op, []Value{a, b}).IsTrue()
		}
	}
	return s.heap.valuesEqual(a, b)
}

// Hash returns the 64-bit hash of a value. Equal values hash equal.
func (s *State) Hash(v Value) uint64 {
	return s.heap.hashValue(v)
}

// arith evaluates an arithmetic opcode. Numbers combine numerically, with
// IEEE semantics for division by zero. When either side is an instance
// whose class declares the operator as a member, that member is invoked
// with both operands.
func (s *State) arith(kind bytecode.BinOpKind, left, right Value) Value {
	if left.IsNumber() && right.IsNumber() {
		l, r := left.Float64(), right.Float64()
		switch kind {
		case bytecode.BinOpAdd:
			return FromFloat64(l + r)
		case bytecode.BinOpSub:
			return FromFloat64(l - r)
		case bytecode.BinOpMul:
			return FromFloat64(l * r)
		case bytecode.BinOpDiv:
			return FromFloat64(l / r)
		}
	}

	if op, ok := s.operatorMember(left, right, kind.String()); ok {
		return s.vm.call(op, []Value{left, right})
	}

	s.setError(ErrTypeMismatch, "Cannot %s values of these types", arithVerb(kind))
	return Nil()
}

func arithVerb(kind bytecode.BinOpKind) string {
	switch kind {
	case bytecode.BinOpAdd:
		return "add"
	case bytecode.BinOpSub:
		return "subtract"
	case bytecode.BinOpMul:
		return "multiply"
	default:
		return "divide"
	}
}

// operatorMember finds an operator overload on either operand's class.
func (s *State) operatorMember(left, right Value, name string) (Value, bool) {
	opName, ok := s.names.operators[name]
	if !ok {
		return Nil(), false
	}
	if left.IsInstance() {
		if op, found := s.classMember(s.heap.instanceOf(left).class, opName); found && op.IsInvokable() {
			return op, true
		}
	}
	if right.IsInstance() {
		if op, found := s.classMember(s.heap.instanceOf(right).class, opName); found && op.IsInvokable() {
			return op, true
		}
	}
	return Nil(), false
}

// classMember resolves a member through a class and its parents.
func (s *State) classMember(class Value, name Value) (Value, bool) {
	for class.IsClass() {
		cls := s.heap.classOf(class)
		if v, ok := s.mapGet(s.heap.mapOf(cls.members), name); ok {
			return v, true
		}
		class = cls.parent
	}
	return Nil(), false
}

// Add returns a + b.
func (s *State) Add(a, b Value) Value {
	return s.arith(bytecode.BinOpAdd, a, b)
}

// Subtract returns a - b.
func (s *State) Subtract(a, b Value) Value {
	return s.arith(bytecode.BinOpSub, a, b)
}

// Multiply returns a * b.
func (s *State) Multiply(a, b Value) Value {
	return s.arith(bytecode.BinOpMul, a, b)
}

// Divide returns a / b.
func (s *State) Divide(a, b Value) Value {
	return s.arith(bytecode.BinOpDiv, a, b)
}

// Negate returns -v, dispatching to an instance's `-` member when declared.
func (s *State) Negate(v Value) Value {
	if v.IsNumber() {
		return FromFloat64(-v.Float64())
	}
	if v.IsInstance() {
		if op, ok := s.classMember(s.heap.instanceOf(v).class, s.names.operators["-"]); ok && op.IsInvokable() {
			return s.vm.call(op, []Value{v})
		}
	}
	s.setError(ErrTypeMismatch, "Cannot negate value of this type")
	return Nil()
}

// compare evaluates an ordered comparison, defined only on numbers.
func (s *State) compare(op bytecode.Opcode, left, right Value) Value {
	if !left.IsNumber() || !right.IsNumber() {
		s.setError(ErrTypeMismatch, "Cannot compare values of these types")
		return Nil()
	}
	l, r := left.Float64(), right.Float64()
	switch op {
	case bytecode.OpLt:
		return FromBool(l < r)
	case bytecode.OpLe:
		return FromBool(l <= r)
	case bytecode.OpGt:
		return FromBool(l > r)
	default:
		return FromBool(l >= r)
	}
}

// Get returns the value for a key in a map or instance; nil when the key is
// absent.
func (s *State) Get(v, key Value) Value {
	m, ok := s.memberMap(v)
	if !ok {
		s.setError(ErrTypeMismatch, "Value cannot be indexed")
		return Nil()
	}
	value, _ := s.mapGet(m, key)
	return value
}

// TryGet reports whether the key is present and returns its value.
func (s *State) TryGet(v, key Value) (Value, bool) {
	m, ok := s.memberMap(v)
	if !ok {
		return Nil(), false
	}
	return s.mapGet(m, key)
}

// Insert adds a new key, failing when the key already exists or the value
// has no keys.
func (s *State) Insert(v, key, value Value) bool {
	m, ok := s.memberMap(v)
	if !ok {
		return false
	}
	return s.mapInsert(m, key, value)
}

// Set replaces the value for an existing key, failing when the key is
// absent or the value has no keys.
func (s *State) Set(v, key, value Value) bool {
	m, ok := s.memberMap(v)
	if !ok {
		return false
	}
	return s.mapSet(m, key, value)
}

// InsertOrSet stores the pair unconditionally, reporting whether it
// inserted. It fails only for values without keys.
func (s *State) InsertOrSet(v, key, value Value) bool {
	m, ok := s.memberMap(v)
	if !ok {
		return false
	}
	return s.mapInsertOrSet(m, key, value)
}

// Iterator tracks a position in an iterable value. The zero value starts a
// fresh iteration; Key and Value hold the pair most recently moved to.
type Iterator struct {
	Key   Value
	Value Value

	index int
}

// IsIterable reports whether Next can walk the value's pairs.
func (s *State) IsIterable(v Value) bool {
	return v.IsMap()
}

// Next moves the iterator to the next key/value pair in insertion order.
// Returns false when the value is exhausted or not iterable.
func (s *State) Next(v Value, it *Iterator) bool {
	if !v.IsMap() {
		return false
	}
	m := s.heap.mapOf(v)
	if it.index >= len(m.entries) {
		return false
	}
	it.Key = m.entries[it.index].key
	it.Value = m.entries[it.index].value
	it.index++
	return true
}

// ToString returns the textual form of a value. Numbers with an integral
// value print without a decimal point; maps print their pairs in insertion
// order, guarding against self-reference.
func (s *State) ToString(v Value) string {
	return s.toString(v, make(map[uint32]bool))
}

func (s *State) toString(v Value, seen map[uint32]bool) string {
	if v.IsNumber() {
		return formatNumber(v.Float64())
	}

	switch v.tag() {
	case tagNil:
		return "nil"
	case tagBool:
		if v.IsTrue() {
			return "true"
		}
		return "false"
	case tagString, tagInterned:
		return s.heap.stringOf(v).bytes
	case tagMap:
		if seen[v.handle()] {
			return "{ ... }"
		}
		seen[v.handle()] = true
		m := s.heap.mapOf(v)
		if len(m.entries) == 0 {
			return "{ }"
		}
		var b strings.Builder
		b.WriteString("{ ")
		for i, e := range m.entries {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(s.toString(e.key, seen))
			b.WriteString(" -> ")
			b.WriteString(s.toString(e.value, seen))
		}
		b.WriteString(" }")
		return b.String()
	case tagFunction:
		return "<function>"
	case tagClass:
		cls := s.heap.classOf(v)
		if cls.name == "" {
			return "<class>"
		}
		return "<class " + cls.name + ">"
	case tagInstance:
		class := s.heap.instanceOf(v).class
		name := s.heap.classOf(class).name
		if name == "" {
			return "<instance>"
		}
		return "<instance of " + name + ">"
	}
	return ""
}

// formatNumber prints a double, omitting the decimal point for integral
// values in the exactly representable range.
func formatNumber(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
