package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectReclaimsUnreachableObjects(t *testing.T) {
	s := NewState()
	s.CollectGarbage() // flush construction garbage

	const n = 10
	for i := 0; i < n; i++ {
		s.NewMap()
	}

	assert.GreaterOrEqual(t, s.CollectGarbage(), n)
}

func TestCollectKeepsPinnedValues(t *testing.T) {
	s := NewState()

	m := s.NewMap()
	s.Pin(m)
	require.True(t, s.Insert(m, FromInt(1), FromInt(2)))

	s.CollectGarbage()

	assert.Equal(t, FromInt(2), s.Get(m, FromInt(1)))

	s.Unpin(m)
	reclaimed := s.CollectGarbage()
	assert.GreaterOrEqual(t, reclaimed, 1)
}

func TestCollectKeepsGlobals(t *testing.T) {
	s := NewState()

	m := s.NewMap()
	s.Pin(m)
	s.LetVar("keep", m)
	s.Unpin(m)
	require.True(t, s.Insert(m, FromInt(0), s.NewString("held", false)))

	s.CollectGarbage()

	v := s.GetVar("keep")
	require.True(t, v.IsMap())
	assert.Equal(t, "held", s.StringBytes(s.Get(v, FromInt(0))))
}

func TestCollectReclaimsCyclicMap(t *testing.T) {
	s := NewState()
	s.CollectGarbage()

	m := s.NewMap()
	s.Pin(m)
	require.True(t, s.Insert(m, s.NewString("self", true), m))
	s.Unpin(m)

	// The cycle keeps itself alive only through itself; tracing from the
	// roots reclaims it.
	assert.GreaterOrEqual(t, s.CollectGarbage(), 1)
}

func TestCollectRemovesSweptInternedStrings(t *testing.T) {
	s := NewState()

	v := s.NewString("ephemeral-intern", true)
	_, pooled := s.heap.interned["ephemeral-intern"]
	require.True(t, pooled)
	_ = v

	s.CollectGarbage()

	_, pooled = s.heap.interned["ephemeral-intern"]
	assert.False(t, pooled, "swept interned strings leave the pool")

	// Re-interning after the sweep creates a fresh object.
	w := s.NewString("ephemeral-intern", true)
	assert.True(t, w.IsString())
}

func TestCollectKeepsInternedConstantsOfCompiledCode(t *testing.T) {
	s := NewState()
	s.Execute(`greeting := "hello"`)
	require.False(t, s.Error(), s.GetError())

	s.CollectGarbage()

	// Both the identifier constant and the string constant survive
	// because the constant pool is a root.
	v := s.Evaluate("greeting")
	require.False(t, s.Error(), s.GetError())
	assert.Equal(t, "hello", s.StringBytes(v))
}

func TestCollectKeepsClosureCapturedScopes(t *testing.T) {
	s := NewState()
	s.Execute("counter := [ n | [ n + 1 ] ]: 41")
	require.False(t, s.Error(), s.GetError())

	s.CollectGarbage()

	v := s.Evaluate("counter:")
	require.False(t, s.Error(), s.GetError())
	assert.Equal(t, FromInt(42), v)
}

func TestFreeListReusesSlots(t *testing.T) {
	s := NewState()
	s.CollectGarbage()

	before := len(s.heap.objects)
	for i := 0; i < 100; i++ {
		s.NewMap()
	}
	s.CollectGarbage()
	for i := 0; i < 100; i++ {
		s.NewMap()
	}

	assert.LessOrEqual(t, len(s.heap.objects), before+101,
		"swept slots are reused before the table grows")
}

func TestAutomaticCollectionAtAllocationPoints(t *testing.T) {
	s := NewState()
	s.CollectGarbage()

	// Far more allocations than the collection threshold; the heap stays
	// bounded because each chunk's garbage is unreachable.
	for i := 0; i < gcThreshold*4; i++ {
		s.NewMap()
	}

	assert.Less(t, len(s.heap.objects), gcThreshold*4,
		"allocation-point collections bound the object table")
}

func TestCollectGarbageScriptFunction(t *testing.T) {
	s := NewState()
	s.Execute("{ 1, 2, 3 }")
	require.False(t, s.Error(), s.GetError())

	v := s.Evaluate("collectGarbage:")
	require.False(t, s.Error(), s.GetError())
	require.True(t, v.IsNumber())
	assert.GreaterOrEqual(t, v.ToInt(), 1)
}
