package vm

import (
	"io"
	"os"

	"github.com/nominal-lang/nominal/pkg/bytecode"
	"github.com/nominal-lang/nominal/pkg/compiler"
	"github.com/nominal-lang/nominal/pkg/parser"
)

// State is a complete Nominal interpreter: the shared program buffer, the
// object heap, the VM, the global scope, the error slot and the import
// cache. States are independent of each other and single threaded.
type State struct {
	prog *bytecode.Program
	heap *Heap
	vm   *VM

	// consts is the materialized constant pool: one runtime value per
	// program constant, in the same order. It is a GC root, so string
	// constants referenced by compiled code are never collected.
	consts []Value

	// protoParams holds the interned parameter names of each prototype,
	// ready for binding without allocating during a call.
	protoParams [][]Value

	// extraRoots anchors runtime-interned names that are not part of the
	// program's constant pool.
	extraRoots []Value

	globalScope uint32
	err         *Error
	pinned      []Value
	temps       []Value
	imports     map[string]Value

	names runtimeNames
}

// runtimeNames are interned identifiers the runtime looks up on classes.
// They are anchored in the extra root set, so they survive collection.
type runtimeNames struct {
	ctor      Value
	eq        Value
	operators map[string]Value
}

// NewState creates an interpreter with an empty program, a fresh heap, the
// global scope and the prelude installed.
func NewState() *State {
	s := &State{
		prog:    bytecode.New(),
		heap:    newHeap(),
		imports: make(map[string]Value),
	}
	s.vm = newVM(s)
	s.globalScope = s.newScope(0)
	s.vm.scope = s.globalScope

	s.names.ctor = s.rootedName("new")
	s.names.eq = s.rootedName("==")
	s.names.operators = make(map[string]Value)
	for _, op := range []string{"+", "-", "*", "/"} {
		s.names.operators[op] = s.rootedName(op)
	}

	s.installPrelude()
	return s
}

// rootedName interns an identifier and anchors it in the root set.
func (s *State) rootedName(name string) Value {
	v := s.NewString(name, true)
	s.extraRoots = append(s.extraRoots, v)
	return v
}

// Execute compiles and runs source as a top-level sequence, discarding the
// result. The error slot is cleared on entry; check Error afterwards.
func (s *State) Execute(src string) {
	s.Evaluate(src)
}

// Evaluate compiles and runs source and returns the value of its last
// expression, or nil on failure.
func (s *State) Evaluate(src string) Value {
	s.err = nil
	entry, ok := s.compile(src)
	if !ok {
		return Nil()
	}
	s.vm.sp = 0
	return s.runChunk(entry, s.globalScope)
}

// DoFile reads and executes a file.
func (s *State) DoFile(path string) {
	s.err = nil
	data, err := os.ReadFile(path)
	if err != nil {
		s.setError(ErrRuntime, "Cannot read file '%s'", path)
		return
	}
	s.Execute(string(data))
}

// compile parses and appends code for the source, returning the entry
// offset. Parse and codegen failures land in the error slot.
func (s *State) compile(src string) (int, bool) {
	p := parser.New(src)
	seq, err := p.Parse()
	if err != nil {
		s.setError(ErrParse, "%s", err.Error())
		return 0, false
	}

	entry, cerr := compiler.New(s.prog).Compile(seq)
	if cerr != nil {
		s.setError(ErrParse, "%s", cerr.Error())
		return 0, false
	}

	s.materialize()
	return entry, true
}

// materialize turns program constants appended by the last compilation into
// rooted runtime values, and interns new prototypes' parameter names.
func (s *State) materialize() {
	for i := len(s.consts); i < len(s.prog.Constants); i++ {
		c := s.prog.Constants[i]
		if c.IsText {
			s.consts = append(s.consts, s.NewString(c.Text, true))
		} else {
			s.consts = append(s.consts, FromFloat64(c.Number))
		}
	}
	for i := len(s.protoParams); i < len(s.prog.Protos); i++ {
		params := make([]Value, len(s.prog.Protos[i].Params))
		for j, name := range s.prog.Protos[i].Params {
			params[j] = s.NewString(name, true)
		}
		s.protoParams = append(s.protoParams, params)
	}
}

// runChunk runs compiled code from entry with the given scope current. It
// nests: a module imported mid-execution runs on the same stack with a net
// stack effect of zero.
func (s *State) runChunk(entry int, scope uint32) Value {
	prev := s.vm.scope
	s.vm.scope = scope
	result := s.vm.run(entry)
	s.vm.scope = prev
	return result
}

// currentScope is where host declarations land: the running function's
// scope during a callback, the global scope otherwise.
func (s *State) currentScope() uint32 {
	return s.vm.scope
}

// LetVar declares a variable in the current scope.
func (s *State) LetVar(name string, v Value) {
	s.pushTemp(v)
	n := s.NewString(name, true)
	s.popTemp()
	if !s.scopeLet(s.currentScope(), n, v) {
		s.setError(ErrRedeclaration, "Variable '%s' already exists", name)
	}
}

// SetVar assigns to an existing variable reachable from the current scope.
func (s *State) SetVar(name string, v Value) {
	s.pushTemp(v)
	n := s.NewString(name, true)
	s.popTemp()
	if !s.scopeAssign(s.currentScope(), n, v) {
		s.setError(ErrUndefinedVariable, "No variable '%s' in scope", name)
	}
}

// GetVar returns the value of a variable reachable from the current scope.
func (s *State) GetVar(name string) Value {
	n := s.NewString(name, true)
	v, ok := s.scopeLookup(s.currentScope(), n)
	if !ok {
		s.setError(ErrUndefinedVariable, "No variable '%s' in scope", name)
		return Nil()
	}
	return v
}

// ArgCount returns the number of arguments of the innermost call. Valid
// during a native callback; zero at the top level.
func (s *State) ArgCount() int {
	if s.vm.fp == 0 {
		return 0
	}
	return len(s.vm.frames[s.vm.fp-1].args)
}

// Arg returns the argument at the given index of the innermost call, or nil
// beyond the count.
func (s *State) Arg(i int) Value {
	if s.vm.fp == 0 {
		return Nil()
	}
	args := s.vm.frames[s.vm.fp-1].args
	if i < 0 || i >= len(args) {
		return Nil()
	}
	return args[i]
}

// Invoke calls a function or class with the given arguments and returns the
// result. Check Error afterwards.
func (s *State) Invoke(callee Value, args []Value) Value {
	return s.vm.call(callee, args)
}

// Import resolves a module by name against the current directory, runs it
// once, and returns its top-level scope captured as a map. Later imports of
// the same name return the cached map without re-running the module.
func (s *State) Import(name string) Value {
	if m, ok := s.imports[name]; ok {
		return m
	}

	data, err := os.ReadFile(name + ".ns")
	if err != nil {
		s.setError(ErrRuntime, "Cannot import module '%s'", name)
		return Nil()
	}

	entry, ok := s.compile(string(data))
	if !ok {
		return Nil()
	}

	moduleScope := s.newScope(s.globalScope)
	s.runChunk(entry, moduleScope)
	if s.err != nil {
		return Nil()
	}

	exports := s.scopeExports(moduleScope)
	s.imports[name] = exports
	return exports
}

// DumpBytecode writes a listing of compiled code to w. A non-empty source
// is compiled (not run) and listed alone; an empty source lists the whole
// accumulated program.
func (s *State) DumpBytecode(w io.Writer, src string) {
	s.err = nil
	from := 0
	if src != "" {
		entry, ok := s.compile(src)
		if !ok {
			return
		}
		from = entry
	}
	bytecode.Dump(w, s.prog, from)
}
