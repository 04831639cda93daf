package common

import (
	"testing"

	"gotest.tools/assert"
)

func TestRing(t *testing.T) {
	t.Run("basic", BasicTest)
	t.Run("fill ring", FillRing)
	t.Run("overwrite oldest", OverwriteOldest)
	t.Run("wraparound", WrapAround)
	t.Run("zero capacity", ZeroCapacity)
}

// Test simple pushes and pops
func BasicTest(t *testing.T) {
	r := NewRing[int](4)
	assert.Equal(t, r.Cap(), 4)

	assert.Equal(t, r.Push(1), false)
	assert.Equal(t, r.Push(2), false)
	assert.Equal(t, r.Len(), 2)

	v, ok := r.Pop()
	assert.Assert(t, ok)
	assert.Equal(t, v, 1)
	v, ok = r.Pop()
	assert.Assert(t, ok)
	assert.Equal(t, v, 2)

	_, ok = r.Pop()
	assert.Assert(t, !ok)
	assert.Equal(t, r.start, 0)
}

// Fill the ring exactly to capacity without dropping anything
func FillRing(t *testing.T) {
	r := NewRing[[]byte](3)
	for i := 0; i < 3; i++ {
		assert.Equal(t, r.Push([]byte{byte(i)}), false)
	}
	assert.Equal(t, r.Len(), 3)
	for i := 0; i < 3; i++ {
		v, ok := r.Pop()
		assert.Assert(t, ok)
		assert.DeepEqual(t, v, []byte{byte(i)})
	}
}

func OverwriteOldest(t *testing.T) {
	r := NewRing[int](3)
	for i := 0; i < 5; i++ {
		r.Push(i)
	}
	assert.Equal(t, r.Len(), 3)

	var got []int
	for {
		v, ok := r.Pop()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.DeepEqual(t, got, []int{2, 3, 4})
}

// Test pushes and pops when the ring has wrapped around
func WrapAround(t *testing.T) {
	r := NewRing[int](4)
	for i := 0; i < 4; i++ {
		r.Push(i)
	}
	for i := 0; i < 3; i++ {
		r.Pop()
	}
	assert.Equal(t, r.start, 3)

	r.Push(10)
	r.Push(11)
	// State of the ring now
	// ++------S+
	assert.Equal(t, r.Len(), 3)

	v, _ := r.Pop()
	assert.Equal(t, v, 3)
	v, _ = r.Pop()
	assert.Equal(t, v, 10)
	v, _ = r.Pop()
	assert.Equal(t, v, 11)
	assert.Equal(t, r.Len(), 0)
}

func ZeroCapacity(t *testing.T) {
	var r Ring[int]
	assert.Equal(t, r.Push(1), true)
	_, ok := r.Pop()
	assert.Assert(t, !ok)
}
