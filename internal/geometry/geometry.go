// Package geometry models the compositor's global pixel space: the
// union of output rectangles placed at their logical origins (spec
// section 2 item 3-4, section 3 Output).
package geometry

import "fmt"

// Point is an integer pixel coordinate in global space.
type Point struct {
	X, Y int32
}

// Rect is an output's logical placement: origin plus size.
type Rect struct {
	X, Y, W, H int32
}

// Contains reports whether p lies within r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// Output is one physical display surface reported by the compositor.
type Output struct {
	// Handle is the opaque compositor object for this output.
	Handle uint32
	// Name is the opaque registry name, the identity used on hot-unplug.
	Name uint32
	Rect Rect
	// InitDone is set only once all geometry events for this output
	// have been received; until then the output is ignored (spec
	// section 7, "Transient protocol").
	InitDone bool
}

// Space is the aggregate bounding box of all initialized outputs.
type Space struct {
	outputs map[uint32]*Output // keyed by registry name
}

// NewSpace returns an empty global space.
func NewSpace() *Space {
	return &Space{outputs: make(map[uint32]*Output)}
}

// Put inserts or replaces an output's geometry.
func (s *Space) Put(o *Output) {
	s.outputs[o.Name] = o
}

// Remove deletes an output by registry name, e.g. on hot-unplug.
func (s *Space) Remove(name uint32) {
	delete(s.outputs, name)
}

// Get returns the output registered under name, if any.
func (s *Space) Get(name uint32) (*Output, bool) {
	o, ok := s.outputs[name]
	return o, ok
}

// All returns every initialized output. Order is not significant; the
// caller must not depend on it beyond stable iteration within a call.
func (s *Space) All() []*Output {
	out := make([]*Output, 0, len(s.outputs))
	for _, o := range s.outputs {
		if o.InitDone {
			out = append(out, o)
		}
	}
	return out
}

// First returns the initialized output with the lowest registry name,
// used as the deterministic recovery anchor when the cursor is found
// in no output at all.
func (s *Space) First() (*Output, bool) {
	outs := s.All()
	if len(outs) == 0 {
		return nil, false
	}
	best := outs[0]
	for _, o := range outs[1:] {
		if o.Name < best.Name {
			best = o
		}
	}
	return best, true
}

// Empty reports whether there are no initialized outputs.
func (s *Space) Empty() bool {
	return len(s.All()) == 0
}

// ContainingOutput returns the output containing pixel p, if any.
func (s *Space) ContainingOutput(p Point) (*Output, bool) {
	for _, o := range s.outputs {
		if !o.InitDone {
			continue
		}
		if o.Rect.Contains(p) {
			return o, true
		}
	}
	return nil, false
}

// BoundingBox returns the smallest rectangle covering every
// initialized output, and false if there are none.
func (s *Space) BoundingBox() (Rect, bool) {
	outs := s.All()
	if len(outs) == 0 {
		return Rect{}, false
	}
	minX, minY := outs[0].Rect.X, outs[0].Rect.Y
	maxX, maxY := outs[0].Rect.X+outs[0].Rect.W, outs[0].Rect.Y+outs[0].Rect.H
	for _, o := range outs[1:] {
		if o.Rect.X < minX {
			minX = o.Rect.X
		}
		if o.Rect.Y < minY {
			minY = o.Rect.Y
		}
		if o.Rect.X+o.Rect.W > maxX {
			maxX = o.Rect.X + o.Rect.W
		}
		if o.Rect.Y+o.Rect.H > maxY {
			maxY = o.Rect.Y + o.Rect.H
		}
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}, true
}

// IsGapFree reports whether every pixel in the bounding box is
// contained by some output. Used at initialization time (spec section
// 7: persistent gaps discovered at startup are fatal); hot-unplug gaps
// are tolerated elsewhere and never checked with this.
//
// This samples the bounding box on a grid rather than testing every
// pixel unconditionally: along each axis the step is one pixel while
// that side of the box is under maxSamples pixels, and grows with the
// box beyond that, so on a larger box a gap narrower than the step can
// go undetected.
func (s *Space) IsGapFree() bool {
	box, ok := s.BoundingBox()
	if !ok {
		return true
	}
	outs := s.All()
	// At most about maxSamples sample points per axis.
	const maxSamples = 4096
	stepX := box.W/maxSamples + 1
	stepY := box.H/maxSamples + 1
	for y := box.Y; y < box.Y+box.H; y += stepY {
		for x := box.X; x < box.X+box.W; x += stepX {
			covered := false
			for _, o := range outs {
				if o.Rect.Contains(Point{X: x, Y: y}) {
					covered = true
					break
				}
			}
			if !covered {
				return false
			}
		}
	}
	return true
}

// String renders a Rect for diagnostics.
func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.W, r.H, r.X, r.Y)
}
