// Package ring provides a fixed-capacity FIFO buffer used for rolling windows
// and bounded history.
package ring

// Buffer is a fixed-capacity FIFO buffer. Pushing onto a full buffer evicts
// the oldest element.
//
// Buffer is not safe for concurrent use; owners guard it with their own lock.
type Buffer[T any] struct {
	items []T
	head  int // index of the oldest element
	size  int
}

// New creates a buffer holding at most capacity elements.
// A capacity below 1 is treated as 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when the buffer is full.
func (b *Buffer[T]) Push(v T) {
	if b.size < len(b.items) {
		b.items[(b.head+b.size)%len(b.items)] = v
		b.size++
		return
	}
	b.items[b.head] = v
	b.head = (b.head + 1) % len(b.items)
}

// Len returns the number of stored elements.
func (b *Buffer[T]) Len() int {
	return b.size
}

// At returns the i-th element counting from the oldest.
func (b *Buffer[T]) At(i int) T {
	return b.items[(b.head+i)%len(b.items)]
}

// Last returns the newest element and false when the buffer is empty.
func (b *Buffer[T]) Last() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.At(b.size - 1), true
}

// Tail returns a copy of the newest n elements, oldest first.
func (b *Buffer[T]) Tail(n int) []T {
	if n > b.size {
		n = b.size
	}
	if n < 0 {
		n = 0
	}
	out := make([]T, n)
	start := b.size - n
	for i := 0; i < n; i++ {
		out[i] = b.At(start + i)
	}
	return out
}

// Do calls fn for every element, oldest first.
func (b *Buffer[T]) Do(fn func(T)) {
	for i := 0; i < b.size; i++ {
		fn(b.At(i))
	}
}
