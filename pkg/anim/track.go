package anim

import (
	"cmp"
	"slices"
	"sort"

	"github.com/Faultbox/headless-mmd/pkg/math"
)

// Key is a value at a frame.
type Key[T any] struct {
	Frame int
	Value T
}

// Track is a list of keys in ascending frame order. Sampling an empty track
// panics; importers give every channel at least one key.
type Track[T any] struct {
	Keys []Key[T]
}

// Search finds the keys around frame and the blend factor between them.
// Frames outside the track clamp to the first or last key, and a frame that
// hits a key exactly returns that key twice. s is 0 in both cases.
func (t *Track[T]) Search(frame int) (prev, next T, s float32) {
	first, last := t.Keys[0], t.Keys[len(t.Keys)-1]
	if frame <= first.Frame {
		return first.Value, first.Value, 0
	}
	if frame >= last.Frame {
		return last.Value, last.Value, 0
	}

	i, found := slices.BinarySearchFunc(t.Keys, frame, func(k Key[T], f int) int {
		return cmp.Compare(k.Frame, f)
	})
	if found {
		return t.Keys[i].Value, t.Keys[i].Value, 0
	}

	k0, k1 := t.Keys[i-1], t.Keys[i]
	s = float32(frame-k0.Frame) / float32(k1.Frame-k0.Frame)
	return k0.Value, k1.Value, s
}

// SampleAt returns the value at frame, blending neighbouring keys with lerp.
func (t *Track[T]) SampleAt(frame int, lerp func(a, b T, s float32) T) T {
	prev, next, s := t.Search(frame)
	if s == 0 {
		return prev
	}
	return lerp(prev, next, s)
}

// ValueAt returns the value of the key at index, clamped to the track.
func (t *Track[T]) ValueAt(index int) T {
	index = max(0, min(index, len(t.Keys)-1))
	return t.Keys[index].Value
}

// Insert adds a key, placing it after any existing keys at the same frame.
func (t *Track[T]) Insert(frame int, v T) {
	i := sort.Search(len(t.Keys), func(i int) bool { return t.Keys[i].Frame > frame })
	t.Keys = slices.Insert(t.Keys, i, Key[T]{Frame: frame, Value: v})
}

// Len returns the number of keys.
func (t *Track[T]) Len() int { return len(t.Keys) }

// Empty reports whether the track has no keys.
func (t *Track[T]) Empty() bool { return len(t.Keys) == 0 }

// FirstFrame returns the frame of the first key.
func (t *Track[T]) FirstFrame() int { return t.Keys[0].Frame }

// LastFrame returns the frame of the last key.
func (t *Track[T]) LastFrame() int { return t.Keys[len(t.Keys)-1].Frame }

// LerpFloat blends two scalars.
func LerpFloat(a, b, s float32) float32 {
	return (1-s)*a + s*b
}

// LerpMat4 blends two matrices element by element.
func LerpMat4(a, b math.Mat4, s float32) math.Mat4 {
	return a.Lerp(b, s)
}
