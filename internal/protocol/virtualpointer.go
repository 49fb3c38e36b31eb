package protocol

import (
	"fmt"

	"github.com/bnema/wlturbo/wl"
)

// Protocol interface names and minimum versions (spec section 6).
const (
	VirtualPointerManagerInterface = "zwlr_virtual_pointer_manager_v1"
	VirtualPointerInterface        = "zwlr_virtual_pointer_v1"
	VirtualPointerManagerVersion   = 2
)

// Button state values, matching the raw evdev code space (spec section
// 4.5: button and scroll codes pass through unchanged).
const (
	ButtonStateReleased uint32 = 0
	ButtonStatePressed  uint32 = 1
)

// Scroll axes.
const (
	AxisVerticalScroll   uint32 = 0
	AxisHorizontalScroll uint32 = 1
)

// Axis sources, paired with every axis event (spec section 4.5).
const (
	AxisSourceWheel      uint32 = 0
	AxisSourceFinger     uint32 = 1
	AxisSourceContinuous uint32 = 2
)

// VirtualPointerManager is the zwlr_virtual_pointer_manager_v1 global.
type VirtualPointerManager struct {
	wl.BaseProxy
}

// NewVirtualPointerManager wraps an already-bound manager object.
func NewVirtualPointerManager(ctx *wl.Context) *VirtualPointerManager {
	m := &VirtualPointerManager{}
	m.SetContext(ctx)
	return m
}

// CreatePointer requests a new virtual pointer for seat.
func (m *VirtualPointerManager) CreatePointer(seat *wl.Seat) (*VirtualPointer, error) {
	p := &VirtualPointer{}
	p.SetContext(m.Context())
	p.SetID(m.Context().AllocateID())
	m.Context().Register(p)

	const opcode = 0 // create_virtual_pointer
	if err := m.Context().SendRequest(m, opcode, seat, p); err != nil {
		m.Context().Unregister(p)
		return nil, fmt.Errorf("protocol: create virtual pointer: %w", err)
	}
	return p, nil
}

// Dispatch handles events for the manager object, which has none.
func (m *VirtualPointerManager) Dispatch(_ *wl.Event) {}

// VirtualPointer is a zwlr_virtual_pointer_v1 object.
type VirtualPointer struct {
	wl.BaseProxy
}

// Motion emits a relative motion event.
func (p *VirtualPointer) Motion(timeMs uint32, dx, dy wl.Fixed) error {
	const opcode = 0 // motion
	return p.Context().SendRequest(p, opcode, timeMs, dx, dy)
}

// MotionAbsolute emits an absolute motion event within a
// caller-chosen extent (typically the global space's bounding box).
func (p *VirtualPointer) MotionAbsolute(timeMs, x, y, xExtent, yExtent uint32) error {
	const opcode = 1 // motion_absolute
	return p.Context().SendRequest(p, opcode, timeMs, x, y, xExtent, yExtent)
}

// Button emits a button press or release. Codes pass through
// unmodified; the raw and virtual-pointer protocols share a code
// space (spec section 4.5).
func (p *VirtualPointer) Button(timeMs, button, state uint32) error {
	const opcode = 2 // button
	return p.Context().SendRequest(p, opcode, timeMs, button, state)
}

// Axis emits a scroll event for the given axis and value.
func (p *VirtualPointer) Axis(timeMs, axis uint32, value wl.Fixed) error {
	const opcode = 3 // axis
	return p.Context().SendRequest(p, opcode, timeMs, axis, value)
}

// Frame closes a batch of pointer sub-events (spec section 4.5: every
// batch emitted for one released packet must end with this).
func (p *VirtualPointer) Frame() error {
	const opcode = 4 // frame
	return p.Context().SendRequest(p, opcode)
}

// AxisSource declares the physical source of the following axis
// events (wheel, finger, continuous).
func (p *VirtualPointer) AxisSource(source uint32) error {
	const opcode = 5 // axis_source
	return p.Context().SendRequest(p, opcode, source)
}

// AxisStop emits an axis-stop event, used in place of a zero-value
// axis event (spec section 4.5, property 2/S2).
func (p *VirtualPointer) AxisStop(timeMs, axis uint32) error {
	const opcode = 6 // axis_stop
	return p.Context().SendRequest(p, opcode, timeMs, axis)
}

// Destroy releases the virtual pointer object.
func (p *VirtualPointer) Destroy() error {
	const opcode = 8 // destroy
	err := p.Context().SendRequest(p, opcode)
	p.Context().Unregister(p)
	return err
}

// Dispatch handles events for the pointer object, which has none.
func (p *VirtualPointer) Dispatch(_ *wl.Event) {}
