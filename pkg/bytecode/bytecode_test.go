package bytecode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitReturnsIndices(t *testing.T) {
	p := New()
	require.Equal(t, 0, p.Emit(OpPushNil, 0))
	require.Equal(t, 1, p.Emit(OpPop, 0))
	require.Len(t, p.Instructions, 2)
}

func TestPatchRewritesOperand(t *testing.T) {
	p := New()
	j := p.Emit(OpJump, 0)
	p.Emit(OpPushNil, 0)
	p.Patch(j, len(p.Instructions))
	assert.Equal(t, 2, p.Instructions[j].Operand)
}

func TestAddNumberDeduplicates(t *testing.T) {
	p := New()
	a := p.AddNumber(1)
	b := p.AddNumber(2)
	c := p.AddNumber(1)
	assert.Equal(t, a, c)
	assert.NotEqual(t, a, b)
	assert.Len(t, p.Constants, 2)
}

func TestAddTextDeduplicates(t *testing.T) {
	p := New()
	a := p.AddText("x")
	b := p.AddText("y")
	c := p.AddText("x")
	assert.Equal(t, a, c)
	assert.NotEqual(t, a, b)
	assert.Len(t, p.Constants, 2)
}

func TestNumberAndTextConstantsDoNotCollide(t *testing.T) {
	p := New()
	n := p.AddNumber(0)
	s := p.AddText("")
	assert.NotEqual(t, n, s)
}

func TestAddProto(t *testing.T) {
	p := New()
	i := p.AddProto(&Proto{Entry: 7, Params: []string{"a"}})
	require.Equal(t, 0, i)
	assert.Equal(t, 7, p.Protos[0].Entry)
}

func TestOpcodeStrings(t *testing.T) {
	names := map[Opcode]string{
		OpPushNil:      "PUSH_NIL",
		OpPushNumber:   "PUSH_NUMBER",
		OpPushFunction: "PUSH_FUNCTION",
		OpMapInsert:    "MAP_INSERT",
		OpGetMember:    "GET_MEMBER",
		OpInsertOrSet:  "INSERT_OR_SET",
		OpBinOp:        "BIN_OP",
		OpJumpIfFalse:  "JUMP_IF_FALSE",
		OpInvoke:       "INVOKE",
		OpReturn:       "RETURN",
	}
	for op, want := range names {
		assert.Equal(t, want, op.String())
	}
	assert.Equal(t, "UNKNOWN", Opcode(255).String())
}

func TestBinOpKindStringsAreOperatorSpellings(t *testing.T) {
	assert.Equal(t, "+", BinOpAdd.String())
	assert.Equal(t, "-", BinOpSub.String())
	assert.Equal(t, "*", BinOpMul.String())
	assert.Equal(t, "/", BinOpDiv.String())
}

func TestDumpAnnotatesConstants(t *testing.T) {
	p := New()
	p.Emit(OpPushNumber, p.AddNumber(1))
	p.Emit(OpLetVar, p.AddText("a"))
	p.Emit(OpReturn, 0)

	var b strings.Builder
	Dump(&b, p, 0)
	out := b.String()

	assert.Contains(t, out, "PUSH_NUMBER 0")
	assert.Contains(t, out, "; 1")
	assert.Contains(t, out, "LET_VAR 1")
	assert.Contains(t, out, `; "a"`)
	assert.Contains(t, out, "RETURN")
}

func TestDumpFromOffset(t *testing.T) {
	p := New()
	p.Emit(OpPushNil, 0)
	p.Emit(OpPop, 0)
	from := p.Emit(OpPushTrue, 0)

	var b strings.Builder
	Dump(&b, p, from)
	out := b.String()

	assert.NotContains(t, out, "PUSH_NIL")
	assert.Contains(t, out, "PUSH_TRUE")
}

func TestDumpAnnotatesProtos(t *testing.T) {
	p := New()
	id := p.AddProto(&Proto{Entry: 3, Params: []string{"a", "b"}})
	p.Emit(OpPushFunction, id)

	var b strings.Builder
	Dump(&b, p, 0)
	assert.Contains(t, b.String(), "entry=3 params=2")
}
