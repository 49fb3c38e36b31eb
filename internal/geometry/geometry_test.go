package geometry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func twoOutputsNoGap() *Space {
	s := NewSpace()
	s.Put(&Output{Handle: 1, Name: 1, Rect: Rect{X: 0, Y: 0, W: 800, H: 600}, InitDone: true})
	s.Put(&Output{Handle: 2, Name: 2, Rect: Rect{X: 800, Y: 0, W: 800, H: 600}, InitDone: true})
	return s
}

func TestContainingOutput(t *testing.T) {
	s := twoOutputsNoGap()
	o, ok := s.ContainingOutput(Point{X: 10, Y: 10})
	require.True(t, ok)
	require.Equal(t, uint32(1), o.Name)

	o, ok = s.ContainingOutput(Point{X: 900, Y: 10})
	require.True(t, ok)
	require.Equal(t, uint32(2), o.Name)

	_, ok = s.ContainingOutput(Point{X: 1700, Y: 10})
	require.False(t, ok)
}

func TestBoundingBox(t *testing.T) {
	s := twoOutputsNoGap()
	box, ok := s.BoundingBox()
	require.True(t, ok)
	require.Equal(t, Rect{X: 0, Y: 0, W: 1600, H: 600}, box)
}

func TestIsGapFreeTrueForAdjacentOutputs(t *testing.T) {
	s := twoOutputsNoGap()
	require.True(t, s.IsGapFree())
}

func TestIsGapFreeFalseWithVoid(t *testing.T) {
	s := NewSpace()
	s.Put(&Output{Handle: 1, Name: 1, Rect: Rect{X: 0, Y: 0, W: 800, H: 600}, InitDone: true})
	s.Put(&Output{Handle: 2, Name: 2, Rect: Rect{X: 0, Y: 700, W: 800, H: 600}, InitDone: true})
	require.False(t, s.IsGapFree())
}

func TestIsGapFreeTrueForEmptySpace(t *testing.T) {
	s := NewSpace()
	require.True(t, s.IsGapFree())
}

func TestOutputsIgnoredUntilInitDone(t *testing.T) {
	s := NewSpace()
	s.Put(&Output{Handle: 1, Name: 1, Rect: Rect{X: 0, Y: 0, W: 800, H: 600}, InitDone: false})
	require.True(t, s.Empty())
	_, ok := s.ContainingOutput(Point{X: 10, Y: 10})
	require.False(t, ok)
}

func TestRemove(t *testing.T) {
	s := twoOutputsNoGap()
	s.Remove(1)
	_, ok := s.Get(1)
	require.False(t, ok)
	require.False(t, s.Empty())
}
