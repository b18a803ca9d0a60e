package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStorage() *Storage {
	return New().
		Add("Foo", "bar").
		Add("Hello", "World").
		Add("Lorem", "ipsum").
		Add("hello", "Pavlo")
}

func TestStorageGetIsCaseInsensitive(t *testing.T) {
	s := newTestStorage()

	value, ok := s.Get("HELLO")
	require.True(t, ok)
	require.Equal(t, "World", value)
}

func TestStorageValuesCollectsEveryOccurrence(t *testing.T) {
	s := newTestStorage()
	require.Equal(t, []string{"World", "Pavlo"}, s.Values("hello"))
}

func TestStorageValueOrFallsBackWhenAbsent(t *testing.T) {
	s := newTestStorage()
	require.Equal(t, "default", s.ValueOr("Missing", "default"))
}

func TestStorageSetReplacesEveryPriorOccurrence(t *testing.T) {
	s := newTestStorage().Set("HELLO", "no more Pavlo")

	require.Equal(t, []string{"no more Pavlo"}, s.Values("hello"))
	require.Equal(t, 3, s.Len())
}

func TestStorageSetOnNewKeyBehavesLikeAdd(t *testing.T) {
	s := New().Add("Pavlo", "the best").Set("Glory to", "Ukraine")

	require.Equal(t, 2, s.Len())
	require.Equal(t, "Ukraine", s.Value("Glory to"))
}

func TestStorageKeysPreservesFirstSeenOrder(t *testing.T) {
	s := newTestStorage()
	require.Equal(t, []string{"Foo", "Hello", "Lorem"}, s.Keys())
}

func TestStorageHas(t *testing.T) {
	s := newTestStorage()
	require.True(t, s.Has("lorem"))
	require.False(t, s.Has("missing"))
}

func TestStorageClearEmpties(t *testing.T) {
	s := newTestStorage().Clear()
	require.True(t, s.Empty())
	require.Equal(t, 0, s.Len())
}

func TestStorageTryAddRespectsCap(t *testing.T) {
	s := NewCapped(2)
	require.True(t, s.TryAdd("a", "1"))
	require.True(t, s.TryAdd("b", "2"))
	require.False(t, s.TryAdd("c", "3"))
	require.Equal(t, 2, s.Len())
}

func TestStorageIterYieldsInsertionOrder(t *testing.T) {
	s := newTestStorage()

	var keys []string
	for key := range s.Iter() {
		keys = append(keys, key)
	}

	require.Equal(t, []string{"Foo", "Hello", "Lorem", "hello"}, keys)
}
