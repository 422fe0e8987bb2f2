// Package compiler compiles AST nodes into bytecode.
//
// The compiler appends to a shared, append-only Program owned by the
// interpreter state. Compile returns the offset of the first instruction it
// emitted; the VM runs from there. Because the buffer never relocates,
// function entry offsets recorded in prototypes stay valid across every
// later compilation in the same state, which is what lets a REPL session
// accumulate definitions.
package compiler

import (
	"fmt"

	"github.com/nominal-lang/nominal/pkg/ast"
	"github.com/nominal-lang/nominal/pkg/bytecode"
)

// Compiler emits bytecode for one syntax tree into a shared program
type Compiler struct {
	prog *bytecode.Program
}

// New creates a compiler that appends to the given program
func New(prog *bytecode.Program) *Compiler {
	return &Compiler{prog: prog}
}

// Compile appends code for a top-level sequence and returns the entry offset.
// The emitted chunk ends with RETURN, leaving the sequence's value as the
// result when the VM runs it with no call frame active.
func (c *Compiler) Compile(seq *ast.Seq) (int, error) {
	entry := len(c.prog.Instructions)
	if err := c.compileSeq(seq); err != nil {
		return entry, err
	}
	c.prog.Emit(bytecode.OpReturn, 0)
	return entry, nil
}

// compileSeq emits each sub-expression followed by POP except the last,
// whose result is the sequence's value. An empty sequence yields nil.
func (c *Compiler) compileSeq(seq *ast.Seq) error {
	if len(seq.Exprs) == 0 {
		c.prog.Emit(bytecode.OpPushNil, 0)
		return nil
	}
	for i, e := range seq.Exprs {
		if err := c.compileExpr(e); err != nil {
			return err
		}
		if i < len(seq.Exprs)-1 {
			c.prog.Emit(bytecode.OpPop, 0)
		}
	}
	return nil
}

// compileExpr emits code that leaves the expression's value on the stack
func (c *Compiler) compileExpr(expr ast.Expression) error {
	switch e := expr.(type) {
	case *ast.Seq:
		return c.compileSeq(e)

	case *ast.NumberLit:
		c.prog.Emit(bytecode.OpPushNumber, c.prog.AddNumber(e.Value))
		return nil

	case *ast.StringLit:
		c.prog.Emit(bytecode.OpPushString, c.prog.AddText(e.Value))
		return nil

	case *ast.BoolLit:
		if e.Value {
			c.prog.Emit(bytecode.OpPushTrue, 0)
		} else {
			c.prog.Emit(bytecode.OpPushFalse, 0)
		}
		return nil

	case *ast.NilLit:
		c.prog.Emit(bytecode.OpPushNil, 0)
		return nil

	case *ast.Identifier:
		c.prog.Emit(bytecode.OpGetVar, c.prog.AddText(e.Name))
		return nil

	case *ast.Let:
		return c.compileAssign(e.Target, e.Value, bytecode.OpLetVar, bytecode.OpInsert)

	case *ast.Set:
		return c.compileAssign(e.Target, e.Value, bytecode.OpSetVar, bytecode.OpSet)

	case *ast.Binary:
		return c.compileBinary(e)

	case *ast.Logical:
		return c.compileLogical(e)

	case *ast.Unary:
		if err := c.compileExpr(e.Operand); err != nil {
			return err
		}
		if e.Op == "-" {
			c.prog.Emit(bytecode.OpNeg, 0)
		} else {
			c.prog.Emit(bytecode.OpNot, 0)
		}
		return nil

	case *ast.Member:
		if err := c.compileExpr(e.Object); err != nil {
			return err
		}
		c.prog.Emit(bytecode.OpGetMember, c.prog.AddText(e.Name))
		return nil

	case *ast.Index:
		if err := c.compileExpr(e.Object); err != nil {
			return err
		}
		if err := c.compileExpr(e.Key); err != nil {
			return err
		}
		c.prog.Emit(bytecode.OpGet, 0)
		return nil

	case *ast.Invoke:
		if err := c.compileExpr(e.Callee); err != nil {
			return err
		}
		for _, arg := range e.Args {
			if err := c.compileExpr(arg); err != nil {
				return err
			}
		}
		c.prog.Emit(bytecode.OpInvoke, len(e.Args))
		return nil

	case *ast.MapLit:
		return c.compileMapLit(e)

	case *ast.FuncLit:
		return c.compileFuncLit(e)

	default:
		return fmt.Errorf("unknown expression type: %T", expr)
	}
}

// compileAssign handles both assignment forms. varOp is used for identifier
// targets, keyOp for member targets. Index-form `=` relaxes to
// INSERT_OR_SET: setting a fresh key through an index succeeds, while the
// member form requires the key to exist. All forms leave the assigned value
// on the stack.
func (c *Compiler) compileAssign(target, value ast.Expression, varOp, keyOp bytecode.Opcode) error {
	switch t := target.(type) {
	case *ast.Identifier:
		if err := c.compileExpr(value); err != nil {
			return err
		}
		c.prog.Emit(varOp, c.prog.AddText(t.Name))
		return nil

	case *ast.Member:
		if err := c.compileExpr(t.Object); err != nil {
			return err
		}
		c.prog.Emit(bytecode.OpPushString, c.prog.AddText(t.Name))
		if err := c.compileExpr(value); err != nil {
			return err
		}
		c.prog.Emit(keyOp, 0)
		return nil

	case *ast.Index:
		if err := c.compileExpr(t.Object); err != nil {
			return err
		}
		if err := c.compileExpr(t.Key); err != nil {
			return err
		}
		if err := c.compileExpr(value); err != nil {
			return err
		}
		if keyOp == bytecode.OpSet {
			keyOp = bytecode.OpInsertOrSet
		}
		c.prog.Emit(keyOp, 0)
		return nil

	default:
		return fmt.Errorf("invalid assignment target: %T", target)
	}
}

// compileBinary emits arithmetic and comparison operations
func (c *Compiler) compileBinary(e *ast.Binary) error {
	if err := c.compileExpr(e.Left); err != nil {
		return err
	}
	if err := c.compileExpr(e.Right); err != nil {
		return err
	}

	switch e.Op {
	case "+":
		c.prog.Emit(bytecode.OpBinOp, int(bytecode.BinOpAdd))
	case "-":
		c.prog.Emit(bytecode.OpBinOp, int(bytecode.BinOpSub))
	case "*":
		c.prog.Emit(bytecode.OpBinOp, int(bytecode.BinOpMul))
	case "/":
		c.prog.Emit(bytecode.OpBinOp, int(bytecode.BinOpDiv))
	case "==":
		c.prog.Emit(bytecode.OpEq, 0)
	case "!=":
		c.prog.Emit(bytecode.OpNeq, 0)
	case "<":
		c.prog.Emit(bytecode.OpLt, 0)
	case "<=":
		c.prog.Emit(bytecode.OpLe, 0)
	case ">":
		c.prog.Emit(bytecode.OpGt, 0)
	case ">=":
		c.prog.Emit(bytecode.OpGe, 0)
	default:
		return fmt.Errorf("unknown binary operator: %s", e.Op)
	}
	return nil
}

// compileLogical emits the short-circuit encoding of and/or. The conditional
// jump pops the left value, so the false (respectively true) branch pushes
// the boolean result explicitly.
func (c *Compiler) compileLogical(e *ast.Logical) error {
	if err := c.compileExpr(e.Left); err != nil {
		return err
	}

	var short int
	if e.Op == "and" {
		short = c.prog.Emit(bytecode.OpJumpIfFalse, 0)
	} else {
		short = c.prog.Emit(bytecode.OpJumpIfTrue, 0)
	}

	if err := c.compileExpr(e.Right); err != nil {
		return err
	}
	done := c.prog.Emit(bytecode.OpJump, 0)

	c.prog.Patch(short, len(c.prog.Instructions))
	if e.Op == "and" {
		c.prog.Emit(bytecode.OpPushFalse, 0)
	} else {
		c.prog.Emit(bytecode.OpPushTrue, 0)
	}
	c.prog.Patch(done, len(c.prog.Instructions))
	return nil
}

// compileMapLit emits NEW_MAP followed by one MAP_INSERT per entry. Each
// entry compiles its value first, then its key; entries without an explicit
// key use their zero-based position in the literal.
func (c *Compiler) compileMapLit(e *ast.MapLit) error {
	c.prog.Emit(bytecode.OpNewMap, 0)
	for i, entry := range e.Entries {
		if err := c.compileExpr(entry.Value); err != nil {
			return err
		}
		switch {
		case entry.Key != nil:
			if err := c.compileExpr(entry.Key); err != nil {
				return err
			}
		case entry.Name != "":
			c.prog.Emit(bytecode.OpPushString, c.prog.AddText(entry.Name))
		default:
			c.prog.Emit(bytecode.OpPushNumber, c.prog.AddNumber(float64(i)))
		}
		c.prog.Emit(bytecode.OpMapInsert, 0)
	}
	return nil
}

// compileFuncLit emits a jump over the function body, compiles the body in
// place, records a prototype for it and pushes a function value that
// captures the scope current at execution time
func (c *Compiler) compileFuncLit(e *ast.FuncLit) error {
	skip := c.prog.Emit(bytecode.OpJump, 0)

	entry := len(c.prog.Instructions)
	if err := c.compileSeq(e.Body); err != nil {
		return err
	}
	c.prog.Emit(bytecode.OpReturn, 0)

	c.prog.Patch(skip, len(c.prog.Instructions))
	proto := c.prog.AddProto(&bytecode.Proto{Entry: entry, Params: e.Params})
	c.prog.Emit(bytecode.OpPushFunction, proto)
	return nil
}
