// Package vm implements the Nominal runtime: the NaN-boxed value model, the
// object heap with its mark-and-sweep collector, lexical scopes, the
// bytecode dispatch loop, and the State facade that embeds it all.
//
// Execution model:
//
//	Source -> Lexer -> Parser -> AST -> Compiler -> shared Program -> VM -> Value
//
// The VM is a stack machine. Instructions pop operands from a bounded value
// stack and push results back. Script function calls push a call frame
// recording where to resume, the caller's scope, and the argument region
// that native callbacks read through ArgCount/Arg.
//
// Error handling follows the state's error slot: any failure sets the slot,
// the dispatcher checks it before every opcode and unwinds all frames back
// to the API entry when it is set. Native callbacks propagate by returning
// nil after a failed re-entrant call.
//
// The interpreter is single threaded. A State must not be shared between
// concurrent goroutines, and a native callback must not re-enter the state
// that invoked it.
package vm

import "github.com/nominal-lang/nominal/pkg/bytecode"

const (
	valueStackSize = 4096
	callStackSize  = 256
)

// frame is one script or native invocation. returnIP is the instruction to
// resume after RETURN, or -1 for frames entered from Go code, which return
// to their caller instead of resuming the loop.
type frame struct {
	returnIP    int
	callerScope uint32
	scope       uint32
	args        []Value
}

// VM is the bytecode dispatcher: the value stack, the call-frame stack, and
// the current scope handle.
type VM struct {
	state  *State
	stack  []Value
	sp     int
	frames []frame
	fp     int
	scope  uint32
}

func newVM(s *State) *VM {
	return &VM{
		state:  s,
		stack:  make([]Value, valueStackSize),
		frames: make([]frame, callStackSize),
	}
}

func (vm *VM) push(v Value) bool {
	if vm.sp >= valueStackSize {
		vm.state.setError(ErrRuntime, "Stack overflow")
		return false
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return true
}

func (vm *VM) pop() Value {
	if vm.sp == 0 {
		vm.state.setError(ErrRuntime, "Stack underflow")
		return Nil()
	}
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek() Value {
	if vm.sp == 0 {
		return Nil()
	}
	return vm.stack[vm.sp-1]
}

func (vm *VM) pushFrame(f frame) bool {
	if vm.fp >= callStackSize {
		vm.state.setError(ErrRuntime, "Stack overflow")
		return false
	}
	vm.frames[vm.fp] = f
	vm.fp++
	return true
}

// run executes from the given offset until the chunk (or the function body a
// caller framed for us) returns. On error it unwinds every frame pushed
// since entry and restores the entry scope.
func (vm *VM) run(entry int) Value {
	s := vm.state
	prog := s.prog
	startFP := vm.fp
	startScope := vm.scope

	for ip := entry; ; ip++ {
		if s.err != nil {
			vm.fp = startFP
			vm.scope = startScope
			return Nil()
		}

		inst := prog.Instructions[ip]
		switch inst.Op {

		case bytecode.OpPushNil:
			vm.push(Nil())
		case bytecode.OpPushTrue:
			vm.push(True())
		case bytecode.OpPushFalse:
			vm.push(False())
		case bytecode.OpPushNumber, bytecode.OpPushString:
			vm.push(s.consts[inst.Operand])

		case bytecode.OpPushFunction:
			fn := s.newScriptFunction(inst.Operand, vm.scope)
			vm.push(fn)

		case bytecode.OpNewMap:
			vm.push(s.NewMap())

		case bytecode.OpMapInsert:
			key := vm.pop()
			value := vm.pop()
			m, ok := s.memberMap(vm.peek())
			if !ok {
				s.setError(ErrTypeMismatch, "Value cannot be indexed")
				continue
			}
			if !s.mapInsert(m, key, value) {
				s.setError(ErrRedeclaration, "Key already exists")
			}

		case bytecode.OpGet:
			key := vm.pop()
			container := vm.pop()
			m, ok := s.memberMap(container)
			if !ok {
				s.setError(ErrTypeMismatch, "Value cannot be indexed")
				continue
			}
			value, _ := s.mapGet(m, key)
			vm.push(value)

		case bytecode.OpGetMember:
			name := s.consts[inst.Operand]
			container := vm.pop()
			m, ok := s.memberMap(container)
			if !ok {
				s.setError(ErrTypeMismatch, "Value does not have members")
				continue
			}
			value, found := s.mapGet(m, name)
			if !found {
				s.setError(ErrKeyNotFound, "No member '%s'", s.StringBytes(name))
				continue
			}
			vm.push(value)

		case bytecode.OpInsert:
			value := vm.pop()
			key := vm.pop()
			container := vm.pop()
			m, ok := s.memberMap(container)
			if !ok {
				s.setError(ErrTypeMismatch, "Value cannot be indexed")
				continue
			}
			if !s.mapInsert(m, key, value) {
				s.setError(ErrRedeclaration, "Key already exists")
				continue
			}
			vm.push(value)

		case bytecode.OpSet:
			value := vm.pop()
			key := vm.pop()
			container := vm.pop()
			m, ok := s.memberMap(container)
			if !ok {
				s.setError(ErrTypeMismatch, "Value cannot be indexed")
				continue
			}
			if !s.mapSet(m, key, value) {
				s.setError(ErrKeyNotFound, "No value exists for key")
				continue
			}
			vm.push(value)

		case bytecode.OpInsertOrSet:
			value := vm.pop()
			key := vm.pop()
			container := vm.pop()
			m, ok := s.memberMap(container)
			if !ok {
				s.setError(ErrTypeMismatch, "Value cannot be indexed")
				continue
			}
			s.mapInsertOrSet(m, key, value)
			vm.push(value)

		case bytecode.OpBinOp:
			right := vm.pop()
			left := vm.pop()
			vm.push(s.arith(bytecode.BinOpKind(inst.Operand), left, right))

		case bytecode.OpNeg:
			vm.push(s.Negate(vm.pop()))

		case bytecode.OpNot:
			vm.push(FromBool(!vm.pop().IsTrue()))

		case bytecode.OpEq:
			right := vm.pop()
			left := vm.pop()
			vm.push(FromBool(s.Equals(left, right)))

		case bytecode.OpNeq:
			right := vm.pop()
			left := vm.pop()
			vm.push(FromBool(!s.Equals(left, right)))

		case bytecode.OpLt, bytecode.OpLe, bytecode.OpGt, bytecode.OpGe:
			right := vm.pop()
			left := vm.pop()
			vm.push(s.compare(inst.Op, left, right))

		case bytecode.OpLetVar:
			name := s.consts[inst.Operand]
			if !s.scopeLet(vm.scope, name, vm.peek()) {
				s.setError(ErrRedeclaration, "Variable '%s' already exists", s.StringBytes(name))
			}

		case bytecode.OpSetVar:
			name := s.consts[inst.Operand]
			if !s.scopeAssign(vm.scope, name, vm.peek()) {
				s.setError(ErrUndefinedVariable, "No variable '%s' in scope", s.StringBytes(name))
			}

		case bytecode.OpGetVar:
			name := s.consts[inst.Operand]
			value, ok := s.scopeLookup(vm.scope, name)
			if !ok {
				s.setError(ErrUndefinedVariable, "No variable '%s' in scope", s.StringBytes(name))
				continue
			}
			vm.push(value)

		case bytecode.OpJump:
			ip = inst.Operand - 1

		case bytecode.OpJumpIfFalse:
			if !vm.pop().IsTrue() {
				ip = inst.Operand - 1
			}

		case bytecode.OpJumpIfTrue:
			if vm.pop().IsTrue() {
				ip = inst.Operand - 1
			}

		case bytecode.OpInvoke:
			n := inst.Operand
			callee := vm.stack[vm.sp-n-1]

			if callee.IsFunction() {
				fo := s.heap.functionOf(callee)
				if fo.native == nil {
					// Script call: frame the invocation and continue
					// the loop at the function's entry.
					if n > len(fo.proto.Params) {
						s.setError(ErrArgumentArity, "Too many arguments given (expected %d)", len(fo.proto.Params))
						continue
					}
					// Arguments stay on the stack (rooted) while the
					// scope allocates.
					inner := s.newScope(fo.scope)
					params := s.protoParams[fo.protoID]
					for i, pv := range params {
						v := Nil()
						if i < n {
							v = vm.stack[vm.sp-n+i]
						}
						s.scopeLet(inner, pv, v)
					}
					args := make([]Value, n)
					copy(args, vm.stack[vm.sp-n:vm.sp])
					vm.sp -= n + 1
					if !vm.pushFrame(frame{returnIP: ip + 1, callerScope: vm.scope, scope: inner, args: args}) {
						continue
					}
					vm.scope = inner
					ip = fo.proto.Entry - 1
					continue
				}

				// Native call: args become the frame's argument region
				// for ArgCount/Arg during the callback.
				args := make([]Value, n)
				copy(args, vm.stack[vm.sp-n:vm.sp])
				vm.sp -= n + 1
				if !vm.pushFrame(frame{returnIP: -1, callerScope: vm.scope, scope: vm.scope, args: args}) {
					continue
				}
				result := fo.native(s)
				vm.fp--
				if s.err != nil {
					continue
				}
				vm.push(result)
				continue
			}

			if callee.IsClass() {
				args := make([]Value, n)
				copy(args, vm.stack[vm.sp-n:vm.sp])
				vm.sp -= n + 1
				obj := vm.construct(callee, args)
				if s.err != nil {
					continue
				}
				vm.push(obj)
				continue
			}

			s.setError(ErrNotInvokable, "Value cannot be called")

		case bytecode.OpReturn:
			result := vm.pop()
			if vm.fp == startFP {
				return result
			}
			f := &vm.frames[vm.fp-1]
			vm.fp--
			vm.scope = f.callerScope
			ip = f.returnIP - 1
			vm.push(result)

		case bytecode.OpPop:
			vm.pop()

		default:
			s.setError(ErrRuntime, "Unknown opcode %d", inst.Op)
		}
	}
}

// call invokes a callable from Go code (native callbacks, operator
// dispatch, constructors, the host Invoke API). Script functions run in a
// nested dispatch loop that returns when their frame unwinds.
func (vm *VM) call(callee Value, args []Value) Value {
	s := vm.state

	if callee.IsClass() {
		return vm.construct(callee, args)
	}
	if !callee.IsFunction() {
		s.setError(ErrNotInvokable, "Value cannot be called")
		return Nil()
	}

	fo := s.heap.functionOf(callee)
	if fo.native != nil {
		if !vm.pushFrame(frame{returnIP: -1, callerScope: vm.scope, scope: vm.scope, args: args}) {
			return Nil()
		}
		result := fo.native(s)
		vm.fp--
		if s.err != nil {
			return Nil()
		}
		return result
	}

	if len(args) > len(fo.proto.Params) {
		s.setError(ErrArgumentArity, "Too many arguments given (expected %d)", len(fo.proto.Params))
		return Nil()
	}

	for _, a := range args {
		s.pushTemp(a)
	}
	inner := s.newScope(fo.scope)
	for range args {
		s.popTemp()
	}

	for i, pv := range s.protoParams[fo.protoID] {
		v := Nil()
		if i < len(args) {
			v = args[i]
		}
		s.scopeLet(inner, pv, v)
	}

	if !vm.pushFrame(frame{returnIP: -1, callerScope: vm.scope, scope: inner, args: args}) {
		return Nil()
	}
	caller := vm.scope
	vm.scope = inner
	result := vm.run(fo.proto.Entry)
	vm.fp--
	vm.scope = caller
	return result
}

// construct builds an instance of a class: a fresh copy of the class's
// member map, then the class's `new` member invoked with the instance as
// its first argument when present. The instance is the result regardless of
// what `new` returns.
func (vm *VM) construct(class Value, args []Value) Value {
	s := vm.state

	s.pushTemp(class)
	for _, a := range args {
		s.pushTemp(a)
	}
	inst := s.newInstance(class)
	for range args {
		s.popTemp()
	}
	s.popTemp()

	if ctor, ok := s.classMember(class, s.names.ctor); ok && ctor.IsInvokable() {
		s.pushTemp(inst)
		vm.call(ctor, append([]Value{inst}, args...))
		s.popTemp()
		if s.err != nil {
			return Nil()
		}
	}
	return inst
}
