package overlay

import (
	"fmt"

	"github.com/bnema/wlturbo/wl"

	"github.com/ArrayBolt3/kloak-v2/internal/protocol"
	"github.com/ArrayBolt3/kloak-v2/internal/rng"
)

// Overlay is the per-output transparent crosshair surface (spec
// section 3 Output.Overlay / section 4.3). Each Overlay owns one
// shared-memory pixel buffer, one wl_surface/zwlr_layer_surface_v1
// pair, and the frame-pacing state that decides whether it is safe to
// draw a new frame.
type Overlay struct {
	outputName uint32

	pixels *PixelBuffer
	shm    *shmSegment

	surface      *wl.Surface
	pool         *protocol.ShmPool
	buffer       *protocol.ShmBuffer
	layerSurface *protocol.LayerSurface

	// framePending is true between committing a frame and receiving
	// that buffer's release event; a new frame must not be drawn into
	// the buffer while the compositor may still be reading it.
	framePending bool
	// configured is true once the compositor has sent its first
	// configure event and that event has been ack'd (spec section 4.3;
	// section 7: drawing before this would target an unsized surface).
	configured bool

	lastX, lastY int32
	hasLast      bool
}

// Config bundles the wl objects an Overlay is built from.
type Config struct {
	Compositor *wl.Compositor
	Shm        *protocol.Shm
	LayerShell *protocol.LayerShell
	Output     *wl.Output
	OutputName uint32
	Width      int32
	Height     int32
}

// New creates the surfaces for one output and requests its first
// configure. The overlay does not draw anything until OnConfigure
// fires (spec section 4.3).
func New(source *rng.Source, cfg Config) (*Overlay, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("overlay: invalid size %dx%d", cfg.Width, cfg.Height)
	}

	o := &Overlay{
		outputName: cfg.OutputName,
		pixels:     NewPixelBuffer(cfg.Width, cfg.Height),
	}

	seg, err := createShmSegment(source, int64(o.pixels.Stride)*int64(o.pixels.Height))
	if err != nil {
		return nil, err
	}
	o.shm = seg
	copy(seg.data, o.pixels.Pixels)

	pool, err := cfg.Shm.CreatePool(seg.fd, int32(seg.size))
	if err != nil {
		seg.close()
		return nil, fmt.Errorf("overlay: create shm pool: %w", err)
	}
	o.pool = pool

	buf, err := pool.CreateBuffer(0, o.pixels.Width, o.pixels.Height, o.pixels.Stride, protocol.ShmFormatArgb8888)
	if err != nil {
		_ = pool.Destroy()
		seg.close()
		return nil, err
	}
	buf.OnRelease = o.onBufferRelease
	o.buffer = buf

	surface, err := cfg.Compositor.CreateSurface()
	if err != nil {
		return nil, fmt.Errorf("overlay: create surface: %w", err)
	}
	o.surface = surface

	layerSurface, err := cfg.LayerShell.GetLayerSurface(surface, cfg.Output, protocol.LayerOverlay, "kloak-overlay")
	if err != nil {
		return nil, fmt.Errorf("overlay: get layer surface: %w", err)
	}
	layerSurface.OnConfigure = o.onConfigure
	layerSurface.OnClosed = o.onClosed
	o.layerSurface = layerSurface

	if err := layerSurface.SetAnchor(protocol.AnchorAll); err != nil {
		return nil, err
	}
	if err := layerSurface.SetExclusiveZone(-1); err != nil {
		return nil, err
	}
	if err := layerSurface.SetKeyboardInteractivity(protocol.KeyboardInteractivityNone); err != nil {
		return nil, err
	}
	if err := protocol.CommitSurface(surface); err != nil {
		return nil, fmt.Errorf("overlay: initial commit: %w", err)
	}

	return o, nil
}

func (o *Overlay) onConfigure(cfg protocol.LayerSurfaceConfigure) {
	if cfg.Width != 0 && cfg.Height != 0 {
		o.resize(int32(cfg.Width), int32(cfg.Height))
	}
	o.configured = true
	_ = o.layerSurface.AckConfigure(cfg.Serial)
	_ = protocol.CommitSurface(o.surface)
}

func (o *Overlay) onClosed() {
	o.configured = false
}

func (o *Overlay) onBufferRelease() {
	o.framePending = false
}

func (o *Overlay) resize(width, height int32) {
	if width == o.pixels.Width && height == o.pixels.Height {
		return
	}
	o.pixels = NewPixelBuffer(width, height)
	o.hasLast = false
}

// Closed reports whether the overlay has no live configuration: true
// before the compositor's first configure event and after it has sent
// closed for this surface.
func (o *Overlay) Closed() bool { return !o.configured }

// ReadyToDraw reports whether a new frame may be committed: the
// surface has been configured at least once, and the previous frame's
// buffer has been released.
func (o *Overlay) ReadyToDraw() bool {
	return o.configured && !o.framePending
}

// DrawCursor redraws the crosshair at (x, y) local to this output,
// clearing the previous position first, and commits the damaged
// region. It is a no-op when ReadyToDraw is false (spec section 4.3:
// "drawing is skipped for any output whose previous frame has not yet
// been released").
func (o *Overlay) DrawCursor(x, y int32) error {
	if !o.ReadyToDraw() {
		return nil
	}

	var damage Rect
	if o.hasLast {
		clear := o.pixels.ClearBlock(o.lastX, o.lastY)
		draw := o.pixels.DrawCrosshair(x, y)
		damage = union(clear, draw)
	} else {
		damage = o.pixels.DrawCrosshair(x, y)
	}
	o.lastX, o.lastY = x, y
	o.hasLast = true

	copy(o.shm.data, o.pixels.Pixels)

	if err := protocol.AttachBuffer(o.surface, o.buffer, 0, 0); err != nil {
		return fmt.Errorf("overlay: attach buffer: %w", err)
	}
	if err := protocol.DamageBuffer(o.surface, damage.X, damage.Y, damage.W, damage.H); err != nil {
		return fmt.Errorf("overlay: damage buffer: %w", err)
	}
	if err := protocol.CommitSurface(o.surface); err != nil {
		return fmt.Errorf("overlay: commit: %w", err)
	}
	o.framePending = true
	return nil
}

// ClearCursor erases the previously drawn crosshair from this overlay
// without drawing a new one, for an overlay whose output the cursor
// has left (spec section 4.2: the walker flags frame_pending on both
// the overlay of the previous position and the overlay of the new
// position; section 4.3's clear pass applies to the former even though
// nothing new is drawn there). A no-op if nothing has been drawn yet
// or the previous frame has not been released.
func (o *Overlay) ClearCursor() error {
	if !o.hasLast || !o.ReadyToDraw() {
		return nil
	}

	damage := o.pixels.ClearBlock(o.lastX, o.lastY)
	o.hasLast = false

	copy(o.shm.data, o.pixels.Pixels)

	if err := protocol.AttachBuffer(o.surface, o.buffer, 0, 0); err != nil {
		return fmt.Errorf("overlay: attach buffer: %w", err)
	}
	if err := protocol.DamageBuffer(o.surface, damage.X, damage.Y, damage.W, damage.H); err != nil {
		return fmt.Errorf("overlay: damage buffer: %w", err)
	}
	if err := protocol.CommitSurface(o.surface); err != nil {
		return fmt.Errorf("overlay: commit: %w", err)
	}
	o.framePending = true
	return nil
}

// Destroy tears down every object owned by the overlay.
func (o *Overlay) Destroy() {
	if o.layerSurface != nil {
		_ = o.layerSurface.Destroy()
	}
	if o.buffer != nil {
		_ = o.buffer.Destroy()
	}
	if o.pool != nil {
		_ = o.pool.Destroy()
	}
	o.shm.close()
}

func union(a, b Rect) Rect {
	x0, y0 := min32(a.X, b.X), min32(a.Y, b.Y)
	x1, y1 := max32(a.X+a.W, b.X+b.W), max32(a.Y+a.H, b.Y+b.H)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
