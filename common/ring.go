package common

// Ring is a fixed capacity FIFO. Pushing into a full ring overwrites the
// oldest element. The zero value has capacity zero and drops everything; use
// NewRing.
type Ring[T any] struct {
	buf   []T
	start int
	n     int
}

// NewRing returns a Ring holding at most capacity elements.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Cap returns the capacity of the ring.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Len returns the number of queued elements.
func (r *Ring[T]) Len() int {
	return r.n
}

// Push appends v. It reports true when an element had to be discarded to make
// room, either the oldest element or v itself for a zero capacity ring.
func (r *Ring[T]) Push(v T) (dropped bool) {
	if len(r.buf) == 0 {
		return true
	}
	if r.n == len(r.buf) {
		// overwrite the oldest slot and advance the head
		r.buf[r.start] = v
		r.start = (r.start + 1) % len(r.buf)
		return true
	}
	r.buf[(r.start+r.n)%len(r.buf)] = v
	r.n++
	return false
}

// Pop removes and returns the oldest element.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	if r.n == 0 {
		return zero, false
	}
	v := r.buf[r.start]
	r.buf[r.start] = zero
	r.start = (r.start + 1) % len(r.buf)
	r.n--
	if r.n == 0 {
		r.start = 0
	}
	return v, true
}
