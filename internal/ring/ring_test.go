package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_PushWithinCapacity(t *testing.T) {
	b := New[int](3)
	b.Push(1)
	b.Push(2)

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, []int{1, 2}, b.Tail(b.Len()))
}

func TestBuffer_EvictsOldest(t *testing.T) {
	b := New[int](3)
	for i := 1; i <= 5; i++ {
		b.Push(i)
	}

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []int{3, 4, 5}, b.Tail(b.Len()))

	last, ok := b.Last()
	require.True(t, ok)
	assert.Equal(t, 5, last)
}

func TestBuffer_Tail(t *testing.T) {
	b := New[string](4)
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		b.Push(s)
	}

	assert.Equal(t, []string{"d", "e"}, b.Tail(2))
	assert.Equal(t, []string{"b", "c", "d", "e"}, b.Tail(10))
	assert.Empty(t, b.Tail(0))
	assert.Empty(t, b.Tail(-1))
}

func TestBuffer_LastEmpty(t *testing.T) {
	b := New[int](2)
	_, ok := b.Last()
	assert.False(t, ok)
}

func TestBuffer_ZeroCapacity(t *testing.T) {
	b := New[int](0)
	b.Push(1)
	b.Push(2)
	assert.Equal(t, []int{2}, b.Tail(b.Len()))
}

func TestBuffer_TailIsCopy(t *testing.T) {
	b := New[int](2)
	b.Push(1)
	s := b.Tail(b.Len())
	s[0] = 99
	assert.Equal(t, 1, b.At(0))
}

func TestBuffer_Do(t *testing.T) {
	b := New[int](3)
	for i := 1; i <= 4; i++ {
		b.Push(i)
	}

	sum := 0
	b.Do(func(v int) { sum += v })
	assert.Equal(t, 9, sum)
}
