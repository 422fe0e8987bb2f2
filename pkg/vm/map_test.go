package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapInsertAndGet(t *testing.T) {
	s := NewState()
	m := s.NewMap()

	require.True(t, s.Insert(m, FromInt(5), FromInt(10)))
	assert.Equal(t, FromInt(10), s.Get(m, FromInt(5)))
}

func TestMapInsertDuplicateFails(t *testing.T) {
	s := NewState()
	m := s.NewMap()

	require.True(t, s.Insert(m, FromInt(5), FromInt(10)))
	assert.False(t, s.Insert(m, FromInt(5), FromInt(25)))
	assert.Equal(t, FromInt(10), s.Get(m, FromInt(5)))
}

func TestMapSetExisting(t *testing.T) {
	s := NewState()
	m := s.NewMap()

	require.True(t, s.Insert(m, FromInt(5), FromInt(10)))
	require.True(t, s.Set(m, FromInt(5), FromInt(25)))
	assert.Equal(t, FromInt(25), s.Get(m, FromInt(5)))
}

func TestMapSetMissingFails(t *testing.T) {
	s := NewState()
	m := s.NewMap()
	assert.False(t, s.Set(m, FromInt(5), FromInt(10)))
}

func TestMapInsertOrSet(t *testing.T) {
	s := NewState()
	m := s.NewMap()

	assert.True(t, s.InsertOrSet(m, FromInt(1), FromInt(10)))
	assert.False(t, s.InsertOrSet(m, FromInt(1), FromInt(20)))
	assert.Equal(t, FromInt(20), s.Get(m, FromInt(1)))
}

func TestMapTryGet(t *testing.T) {
	s := NewState()
	m := s.NewMap()

	require.True(t, s.Insert(m, FromInt(5), FromInt(10)))

	v, ok := s.TryGet(m, FromInt(5))
	require.True(t, ok)
	assert.Equal(t, FromInt(10), v)

	v, ok = s.TryGet(m, FromInt(10))
	assert.False(t, ok)
	assert.Equal(t, Nil(), v)
}

func TestMapGetMissingYieldsNil(t *testing.T) {
	s := NewState()
	m := s.NewMap()
	assert.Equal(t, Nil(), s.Get(m, FromInt(404)))
}

func TestMapStringKeys(t *testing.T) {
	s := NewState()
	m := s.NewMap()

	a := s.NewString("a", false)
	b := s.NewString("b", false)
	c := s.NewString("c", false)

	require.True(t, s.Insert(m, a, b))
	require.True(t, s.Insert(m, b, c))
	require.True(t, s.Insert(m, c, a))

	assert.True(t, s.Equals(s.Get(m, a), b))
	assert.True(t, s.Equals(s.Get(m, b), c))
	assert.True(t, s.Equals(s.Get(m, c), a))
}

func TestMapPooledStringKeys(t *testing.T) {
	s := NewState()
	m := s.NewMap()

	a := s.NewString("a", true)
	b := s.NewString("b", true)

	require.True(t, s.Insert(m, a, b))
	require.True(t, s.Insert(m, b, a))

	assert.Equal(t, b, s.Get(m, a))
	assert.Equal(t, a, s.Get(m, b))
}

func TestMapMixedStringKeys(t *testing.T) {
	s := NewState()
	m := s.NewMap()

	pooled := s.NewString("a", true)
	require.True(t, s.Insert(m, pooled, FromInt(1)))

	plain := s.NewString("a", false)
	assert.Equal(t, FromInt(1), s.Get(m, plain))
}

func TestMapNumericKeysIgnoreLiteralForm(t *testing.T) {
	s := NewState()
	m := s.NewMap()

	require.True(t, s.Insert(m, FromInt(2), FromInt(1)))
	assert.Equal(t, FromInt(1), s.Get(m, FromFloat64(2.0)))
}

func TestMapIterationInInsertionOrder(t *testing.T) {
	s := NewState()
	m := s.NewMap()

	keys := []string{"zebra", "apple", "mid", "aaa"}
	for i, k := range keys {
		require.True(t, s.Insert(m, s.NewString(k, false), FromInt(i)))
	}

	var got []string
	var it Iterator
	for s.Next(m, &it) {
		got = append(got, s.StringBytes(it.Key))
		assert.Equal(t, FromInt(len(got)-1), it.Value)
	}
	assert.Equal(t, keys, got)
}

func TestMapIterationVisitsEachPairOnce(t *testing.T) {
	s := NewState()
	m := s.NewMap()
	const n = 50
	for i := 0; i < n; i++ {
		require.True(t, s.Insert(m, FromInt(i), FromInt(i)))
	}

	count := 0
	var it Iterator
	for s.Next(m, &it) {
		assert.Equal(t, FromInt(count), it.Key)
		count++
	}
	assert.Equal(t, n, count)
}

func TestNextOnNonIterable(t *testing.T) {
	s := NewState()
	var it Iterator
	assert.False(t, s.Next(FromInt(1), &it))
	assert.False(t, s.Next(Nil(), &it))
	assert.False(t, s.IsIterable(FromInt(1)))
	assert.True(t, s.IsIterable(s.NewMap()))
}

func TestMapValuedKeysUseIdentity(t *testing.T) {
	s := NewState()
	outer := s.NewMap()
	key := s.NewMap()

	require.True(t, s.Insert(outer, key, FromInt(1)))
	assert.Equal(t, FromInt(1), s.Get(outer, key))

	other := s.NewMap()
	assert.Equal(t, Nil(), s.Get(outer, other))
}
