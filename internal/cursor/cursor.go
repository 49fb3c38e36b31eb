// Package cursor implements the software cursor model: CursorPosition
// (spec section 3) and the pixel-path traversal algorithm CursorWalker
// (spec section 4.2) that keeps the cursor gliding along output edges
// instead of teleporting across voids.
package cursor

import "github.com/ArrayBolt3/kloak-v2/internal/geometry"

// Position holds the current and immediately-previous cursor location
// in global-space pixel units. Both are always contained by the union
// of output rectangles, unless no output is initialized (spec section
// 3 invariant).
type Position struct {
	X, Y         float64
	PrevX, PrevY float64
}

// Point returns the current position rounded to the nearest pixel, the
// unit CursorWalker operates on.
func (p *Position) Point() geometry.Point {
	return geometry.Point{X: round(p.X), Y: round(p.Y)}
}

// PrevPoint returns the previous position rounded to the nearest
// pixel.
func (p *Position) PrevPoint() geometry.Point {
	return geometry.Point{X: round(p.PrevX), Y: round(p.PrevY)}
}

func round(v float64) int32 {
	if v >= 0 {
		return int32(v + 0.5)
	}
	return int32(v - 0.5)
}

// ApplyRelative moves the cursor by (dx, dy), walking along output
// edges rather than crossing voids, and returns the walked end
// position. Pointer-motion events are applied immediately and are
// never enqueued in the delay scheduler (spec section 4.1).
func (p *Position) ApplyRelative(dx, dy float64, space *geometry.Space) geometry.Point {
	start := p.Point()
	desired := geometry.Point{X: round(p.X + dx), Y: round(p.Y + dy)}
	end := Walk(start, desired, space)
	p.PrevX, p.PrevY = p.X, p.Y
	p.X, p.Y = float64(end.X), float64(end.Y)
	return end
}

// ApplyAbsolute moves the cursor directly to (x, y), still walking
// along edges from the current position so an absolute jump across a
// void also glides rather than teleports.
func (p *Position) ApplyAbsolute(x, y float64, space *geometry.Space) geometry.Point {
	start := p.Point()
	desired := geometry.Point{X: round(x), Y: round(y)}
	end := Walk(start, desired, space)
	p.PrevX, p.PrevY = p.X, p.Y
	p.X, p.Y = float64(end.X), float64(end.Y)
	return end
}

func signOf(v int32) int32 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// bresenhamLine returns the lattice points from a to b inclusive,
// using the symmetric Bresenham stepping rule: the dominant axis
// advances every step, the minor axis advances by the line's slope,
// and diagonal steps occur when both advance in the same iteration.
func bresenhamLine(a, b geometry.Point) []geometry.Point {
	points := []geometry.Point{a}
	if a == b {
		return points
	}
	dx := abs32(b.X - a.X)
	dy := abs32(b.Y - a.Y)
	sx := signOf(b.X - a.X)
	sy := signOf(b.Y - a.Y)
	err := dx - dy
	x, y := a.X, a.Y
	for x != b.X || y != b.Y {
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x += sx
		}
		if e2 < dx {
			err += dx
			y += sy
		}
		points = append(points, geometry.Point{X: x, Y: y})
	}
	return points
}

// Walk implements the pixel-path traversal described in spec section
// 4.2: it walks integer pixels from prev towards end, and whenever the
// straight line would cross into a void, it glides along the output
// edge that was just crossed instead of entering the void.
func Walk(prev, end geometry.Point, space *geometry.Space) geometry.Point {
	if space.Empty() {
		return prev
	}

	if _, ok := space.ContainingOutput(prev); !ok {
		// Recovery case: reset to pixel (0,0) of the first initialized
		// output (lowest registry name, for deterministic behavior; see
		// DESIGN.md).
		first, _ := space.First()
		prev = geometry.Point{X: first.Rect.X, Y: first.Rect.Y}
	}

	cur := prev
	target := end

	const maxIterations = 1 << 16 // defensive bound against malformed layouts
	for iter := 0; iter < maxIterations; iter++ {
		if cur == target {
			return cur
		}

		path := bresenhamLine(cur, target)
		advanced := cur
		voided := false
		var voidPixel geometry.Point
		for _, p := range path[1:] {
			if _, ok := space.ContainingOutput(p); !ok {
				voided = true
				voidPixel = p
				break
			}
			advanced = p
		}
		if !voided {
			return advanced
		}

		xChanged := voidPixel.X != advanced.X
		yChanged := voidPixel.Y != advanced.Y
		if xChanged && yChanged {
			// Tie-break: prefer the x-axis glide when the crossing step
			// was diagonal.
			yChanged = false
		}

		var candidate geometry.Point
		switch {
		case xChanged:
			xDir := signOf(voidPixel.X - advanced.X)
			candidate = geometry.Point{X: voidPixel.X - xDir, Y: voidPixel.Y}
			if _, ok := space.ContainingOutput(candidate); !ok {
				return advanced
			}
			cur = candidate
			target = geometry.Point{X: candidate.X, Y: target.Y}
		case yChanged:
			yDir := signOf(voidPixel.Y - advanced.Y)
			candidate = geometry.Point{X: voidPixel.X, Y: voidPixel.Y - yDir}
			if _, ok := space.ContainingOutput(candidate); !ok {
				return advanced
			}
			cur = candidate
			target = geometry.Point{X: target.X, Y: candidate.Y}
		default:
			return advanced
		}
	}
	return cur
}
