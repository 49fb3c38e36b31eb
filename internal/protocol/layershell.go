package protocol

import (
	"github.com/bnema/wlturbo/wl"
)

// Protocol interface names and minimum versions (spec section 6).
const (
	LayerShellInterface   = "zwlr_layer_shell_v1"
	LayerSurfaceInterface = "zwlr_layer_surface_v1"
	LayerShellVersion     = 4
)

// Layer values; the overlay always requests the top-most layer so the
// crosshair draws above every other surface (spec section 3 Overlay).
const (
	LayerBackground uint32 = 0
	LayerBottom     uint32 = 1
	LayerTop        uint32 = 2
	LayerOverlay    uint32 = 3
)

// Anchor bitmask. The overlay anchors all four edges so the compositor
// sizes it to the full output (spec section 4.3).
const (
	AnchorTop    uint32 = 1
	AnchorBottom uint32 = 2
	AnchorLeft   uint32 = 4
	AnchorRight  uint32 = 8
	AnchorAll    uint32 = AnchorTop | AnchorBottom | AnchorLeft | AnchorRight
)

// KeyboardInteractivityNone marks the overlay as never receiving
// keyboard focus; it is a display-only layer (spec section 4.3).
const KeyboardInteractivityNone uint32 = 0

// LayerShell is the zwlr_layer_shell_v1 global.
type LayerShell struct {
	wl.BaseProxy
}

// NewLayerShell wraps an already-bound layer-shell object.
func NewLayerShell(ctx *wl.Context) *LayerShell {
	ls := &LayerShell{}
	ls.SetContext(ctx)
	return ls
}

// GetLayerSurface creates a layer surface for surface, anchored to
// output, on the given layer, with namespace identifying the client
// purpose (here, always "kloak-overlay").
func (ls *LayerShell) GetLayerSurface(surface *wl.Surface, output *wl.Output, layer uint32, namespace string) (*LayerSurface, error) {
	s := &LayerSurface{}
	s.SetContext(ls.Context())
	s.SetID(ls.Context().AllocateID())
	ls.Context().Register(s)

	const opcode = 0 // get_layer_surface
	if err := ls.Context().SendRequest(ls, opcode, s, surface, output, layer, namespace); err != nil {
		ls.Context().Unregister(s)
		return nil, err
	}
	return s, nil
}

// Dispatch handles events for the shell object, which has none.
func (ls *LayerShell) Dispatch(_ *wl.Event) {}

// LayerSurfaceConfigure is delivered when the compositor assigns (or
// reassigns) this surface's size; the client must ack it.
type LayerSurfaceConfigure struct {
	Serial uint32
	Width  uint32
	Height uint32
}

// LayerSurface is a zwlr_layer_surface_v1 object.
type LayerSurface struct {
	wl.BaseProxy

	// OnConfigure is invoked from Dispatch when a configure event
	// arrives. Set once at construction time; never nil in practice.
	OnConfigure func(LayerSurfaceConfigure)
	// OnClosed is invoked when the compositor destroys the surface out
	// from under the client (e.g. output removal).
	OnClosed func()
}

// SetSize requests a surface size; (0,0) lets anchoring determine it.
func (s *LayerSurface) SetSize(width, height uint32) error {
	const opcode = 0 // set_size
	return s.Context().SendRequest(s, opcode, width, height)
}

// SetAnchor sets the anchor bitmask (spec section 4.3: all four
// edges).
func (s *LayerSurface) SetAnchor(anchor uint32) error {
	const opcode = 1 // set_anchor
	return s.Context().SendRequest(s, opcode, anchor)
}

// SetExclusiveZone reserves (or, with -1, ignores) screen space; the
// overlay always passes -1 so it never displaces other surfaces.
func (s *LayerSurface) SetExclusiveZone(zone int32) error {
	const opcode = 2 // set_exclusive_zone
	return s.Context().SendRequest(s, opcode, zone)
}

// SetKeyboardInteractivity marks whether the surface accepts keyboard
// focus; the overlay always passes KeyboardInteractivityNone.
func (s *LayerSurface) SetKeyboardInteractivity(v uint32) error {
	const opcode = 4 // set_keyboard_interactivity
	return s.Context().SendRequest(s, opcode, v)
}

// AckConfigure acknowledges a configure event by serial.
func (s *LayerSurface) AckConfigure(serial uint32) error {
	const opcode = 6 // ack_configure
	return s.Context().SendRequest(s, opcode, serial)
}

// Destroy releases the layer surface object.
func (s *LayerSurface) Destroy() error {
	const opcode = 7 // destroy
	err := s.Context().SendRequest(s, opcode)
	s.Context().Unregister(s)
	return err
}

// Dispatch decodes configure/closed events into typed callbacks,
// rather than exposing a per-interface handler-registration API (spec
// section 9, "Callback-driven protocol" redesign).
func (s *LayerSurface) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // configure
		serial := event.Uint32()
		width := event.Uint32()
		height := event.Uint32()
		if s.OnConfigure != nil {
			s.OnConfigure(LayerSurfaceConfigure{Serial: serial, Width: width, Height: height})
		}
	case 1: // closed
		if s.OnClosed != nil {
			s.OnClosed()
		}
	}
}
