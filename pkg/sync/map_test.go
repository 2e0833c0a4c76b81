package sync

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLength(t *testing.T) {
	m := NewMap[int, string]()
	m.Store(1, "1")
	require.Equal(t, 1, m.Length())
	m.Store(1, "2")
	require.Equal(t, 1, m.Length())
	m.Store(2, "2")
	require.Equal(t, 2, m.Length())
}

func TestReplaceWithFunc(t *testing.T) {
	m := NewMap[string, int]()
	m.Store("a", 1)
	old, ok := m.ReplaceWithFunc("a", func(oldValue int, oldLoaded bool) (int, bool) {
		return oldValue + 1, false
	})
	require.True(t, ok)
	require.Equal(t, 1, old)
	v, _ := m.Load("a")
	require.Equal(t, 2, v)

	_, _ = m.ReplaceWithFunc("a", func(int, bool) (int, bool) { return 0, true })
	_, ok = m.Load("a")
	require.False(t, ok)
}

func TestRangeAndPullOut(t *testing.T) {
	m := NewMap[int, string]()
	for k, v := range map[int]string{1: "one", 2: "two", 3: "three"} {
		m.Store(k, v)
	}

	// Range iterates a snapshot so deleting inside the callback is safe
	var keys []int
	m.Range(func(key int, value string) bool {
		keys = append(keys, key)
		m.Delete(key)
		return true
	})
	sort.Ints(keys)
	require.Equal(t, []int{1, 2, 3}, keys)
	require.Equal(t, 0, m.Length())

	m.Store(4, "four")
	v, ok := m.PullOut(4)
	require.True(t, ok)
	require.Equal(t, "four", v)
	require.False(t, m.Delete(4))
}
