// Package overlay implements the per-output transparent crosshair
// surface (spec section 3 Overlay, section 4.3).
package overlay

// CursorRadius is half the side length (minus one) of the square block
// cleared and redrawn around the cursor each frame (spec section 4.3;
// design suggests 15).
const CursorRadius = 15

// MaxDrawableLayers bounds the number of simultaneous overlays (spec
// section 4.4; design suggests 128).
const MaxDrawableLayers = 128

// crosshairRed is ARGB8888 opaque red, the crosshair's only non-
// transparent color (spec section 6).
const crosshairRed = 0xFFFF0000

// transparent is ARGB8888 fully transparent.
const transparent = 0x00000000

// PixelBuffer is a raw ARGB8888 pixel surface, stride = width*4
// (spec section 6).
type PixelBuffer struct {
	Width, Height int32
	Stride        int32
	Pixels        []byte // len == Stride*Height
}

// NewPixelBuffer allocates a zeroed (fully transparent) buffer sized
// to width x height.
func NewPixelBuffer(width, height int32) *PixelBuffer {
	stride := width * 4
	return &PixelBuffer{
		Width:  width,
		Height: height,
		Stride: stride,
		Pixels: make([]byte, int64(stride)*int64(height)),
	}
}

func (b *PixelBuffer) setPixel(x, y int32, argb uint32) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return
	}
	off := int64(y)*int64(b.Stride) + int64(x)*4
	b.Pixels[off+0] = byte(argb)
	b.Pixels[off+1] = byte(argb >> 8)
	b.Pixels[off+2] = byte(argb >> 16)
	b.Pixels[off+3] = byte(argb >> 24)
}

// Rect is a damage/clear rectangle in local (per-output) pixel
// coordinates.
type Rect struct {
	X, Y, W, H int32
}

// Clamp returns r with negative X/Y collapsed to zero, preserving the
// opposite edge (spec section 4.3, testable property 10: "A damage
// rectangle with a negative coordinate is emitted with that coordinate
// set to zero and the opposite coordinate preserved").
func (r Rect) Clamp() Rect {
	out := r
	if out.X < 0 {
		out.W += out.X
		out.X = 0
	}
	if out.Y < 0 {
		out.H += out.Y
		out.Y = 0
	}
	if out.W < 0 {
		out.W = 0
	}
	if out.H < 0 {
		out.H = 0
	}
	return out
}

// ClearBlock writes fully transparent pixels into the
// (2*CursorRadius+1)-square block centered at (x, y), and returns the
// damage rectangle for it (spec section 4.3 step: "clear a
// (2*CURSOR_RADIUS+1)-square block around the previous position").
func (b *PixelBuffer) ClearBlock(x, y int32) Rect {
	r := blockRect(x, y)
	for dy := int32(0); dy < r.H; dy++ {
		for dx := int32(0); dx < r.W; dx++ {
			b.setPixel(r.X+dx, r.Y+dy, transparent)
		}
	}
	return r.Clamp()
}

// DrawCrosshair fills the (2*CursorRadius+1)-square block centered at
// (x, y) with transparent pixels, except the single horizontal and
// vertical lines through the center, which are opaque red (spec
// section 4.3).
func (b *PixelBuffer) DrawCrosshair(x, y int32) Rect {
	r := blockRect(x, y)
	for dy := int32(0); dy < r.H; dy++ {
		for dx := int32(0); dx < r.W; dx++ {
			px, py := r.X+dx, r.Y+dy
			if px == x || py == y {
				b.setPixel(px, py, crosshairRed)
			} else {
				b.setPixel(px, py, transparent)
			}
		}
	}
	return r.Clamp()
}

func blockRect(x, y int32) Rect {
	side := 2*CursorRadius + 1
	return Rect{X: x - CursorRadius, Y: y - CursorRadius, W: int32(side), H: int32(side)}
}
