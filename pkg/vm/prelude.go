package vm

import (
	"fmt"
	"os"
	"strings"
)

// The prelude is the standard library installed into the global scope of
// every new state: control flow, iteration, printing, assertions and the
// class builder, all as native functions.

func (s *State) installPrelude() {
	s.LetVar("print", s.NewFunction(preludePrint))
	s.LetVar("if", s.NewFunction(preludeIf))
	s.LetVar("while", s.NewFunction(preludeWhile))
	s.LetVar("forValues", s.NewFunction(preludeForValues))
	s.LetVar("forKeys", s.NewFunction(preludeForKeys))
	s.LetVar("assertEqual", s.NewFunction(preludeAssertEqual))
	s.LetVar("collectGarbage", s.NewFunction(preludeCollectGarbage))
	s.LetVar("import", s.NewFunction(preludeImport))
	s.LetVar("class", s.NewFunction(preludeClass))
}

// preludePrint writes its arguments separated by spaces, then a newline.
func preludePrint(s *State) Value {
	parts := make([]string, s.ArgCount())
	for i := range parts {
		parts[i] = s.ToString(s.Arg(i))
	}
	fmt.Fprintln(os.Stdout, strings.Join(parts, " "))
	return Nil()
}

// preludeIf evaluates `if: condition then else`. The condition may be a
// value or an invokable yielding one; the chosen body must be invokable
// when present.
func preludeIf(s *State) Value {
	condition := s.Arg(0)
	thenBody := s.Arg(1)
	elseBody := s.Arg(2)

	result := condition
	if condition.IsInvokable() {
		result = s.Invoke(condition, nil)
	}
	if s.Error() {
		return Nil()
	}

	if result.IsTrue() && thenBody.IsTrue() {
		if !thenBody.IsInvokable() {
			s.SetError("'then' is not invokable")
			return Nil()
		}
		return s.Invoke(thenBody, nil)
	}
	if !result.IsTrue() && elseBody.IsTrue() {
		if !elseBody.IsInvokable() {
			s.SetError("'else' is not invokable")
			return Nil()
		}
		return s.Invoke(elseBody, nil)
	}
	return Nil()
}

// preludeWhile evaluates `while: condition body` until the condition yields
// a falsy value, returning the last body result.
func preludeWhile(s *State) Value {
	condition := s.Arg(0)
	body := s.Arg(1)

	if !condition.IsInvokable() {
		s.SetError("'condition' is not invokable")
		return Nil()
	}
	if !body.IsInvokable() {
		s.SetError("'body' is not invokable")
		return Nil()
	}

	result := Nil()
	for {
		value := s.Invoke(condition, nil)
		if s.Error() || !value.IsTrue() {
			break
		}
		result = s.Invoke(body, nil)
		if s.Error() {
			break
		}
	}
	return result
}

// preludeForValues invokes a function with each value of an iterable.
func preludeForValues(s *State) Value {
	values := s.Arg(0)
	function := s.Arg(1)

	if !s.IsIterable(values) {
		s.SetError("'values' is not iterable")
		return Nil()
	}
	if !function.IsInvokable() {
		s.SetError("'function' is not invokable")
		return Nil()
	}

	var it Iterator
	for s.Next(values, &it) {
		s.Invoke(function, []Value{it.Value})
		if s.Error() {
			break
		}
	}
	return Nil()
}

// preludeForKeys invokes a function with each key of an iterable.
func preludeForKeys(s *State) Value {
	keys := s.Arg(0)
	function := s.Arg(1)

	if !s.IsIterable(keys) {
		s.SetError("'keys' is not iterable")
		return Nil()
	}
	if !function.IsInvokable() {
		s.SetError("'function' is not invokable")
		return Nil()
	}

	var it Iterator
	for s.Next(keys, &it) {
		s.Invoke(function, []Value{it.Key})
		if s.Error() {
			break
		}
	}
	return Nil()
}

// preludeAssertEqual fails with both textual forms when its arguments are
// not equal.
func preludeAssertEqual(s *State) Value {
	actual := s.Arg(0)
	expected := s.Arg(1)

	if !s.Equals(actual, expected) {
		s.SetError("Failed assertion: %s != %s", s.ToString(actual), s.ToString(expected))
	}
	return Nil()
}

// preludeCollectGarbage runs a collection and returns the number of objects
// reclaimed.
func preludeCollectGarbage(s *State) Value {
	return FromInt(s.CollectGarbage())
}

// preludeImport loads a module by name and returns its export map.
func preludeImport(s *State) Value {
	name := s.Arg(0)
	if !name.IsString() {
		s.SetError("'module' is not a string")
		return Nil()
	}
	return s.Import(s.StringBytes(name))
}

// preludeClass builds a class from a member map and an optional parent
// class: `class: { new := [ self | ... ], ... }` or `class: members Parent`.
func preludeClass(s *State) Value {
	members := s.Arg(0)
	parent := s.Arg(1)

	if !members.IsMap() {
		s.SetError("'members' is not a map")
		return Nil()
	}
	if !parent.IsNil() && !parent.IsClass() {
		s.SetError("'parent' is not a class")
		return Nil()
	}

	class := s.NewClass("", parent)
	dst := s.heap.mapOf(s.heap.classOf(class).members)
	src := s.heap.mapOf(members)
	for _, e := range src.entries {
		s.mapInsert(dst, e.key, e.value)
	}
	return class
}
