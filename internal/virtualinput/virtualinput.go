// Package virtualinput owns the single process-wide virtual keyboard
// and virtual pointer (spec section 3 VirtualInput) and the state
// needed to replay captured events through them: the uploaded keymap
// fingerprint, the modifier snapshot, and scroll axis bookkeeping.
package virtualinput

import (
	"bytes"
	"fmt"

	"github.com/bnema/wlturbo/wl"

	"github.com/ArrayBolt3/kloak-v2/internal/protocol"
)

// KeymapOffset is the difference between a raw evdev keycode and the
// XKB keycode space a keymap-state tracker reasons in. Nothing in this
// daemon applies it: there is no compiled keymap-state tracker, and
// internal/daemon's modifier tracker matches raw evdev codes directly.
// The keycode emitted to the compositor in a Key request is always the
// raw evdev value, unmodified.
const KeymapOffset = 8

// Modifiers is the depressed/latched/locked/group quadruple the
// virtual-keyboard protocol's Modifiers request carries (spec section
// 3 VirtualInput).
type Modifiers struct {
	Depressed uint32
	Latched   uint32
	Locked    uint32
	Group     uint32
}

// Equal reports whether m and other carry the same state.
func (m Modifiers) Equal(other Modifiers) bool {
	return m == other
}

// keyboardInjector is the subset of *protocol.VirtualKeyboard this
// package drives; it exists so tests can substitute a fake.
type keyboardInjector interface {
	ID() uint32
	Keymap(format uint32, fd int, size uint32) error
	Key(timeMs, key, state uint32) error
	Modifiers(depressed, latched, locked, group uint32) error
}

// pointerInjector is the subset of *protocol.VirtualPointer this
// package drives; it exists so tests can substitute a fake.
type pointerInjector interface {
	Motion(timeMs uint32, dx, dy wl.Fixed) error
	MotionAbsolute(timeMs, x, y, xExtent, yExtent uint32) error
	Button(timeMs, button, state uint32) error
	Axis(timeMs, axis uint32, value wl.Fixed) error
	Frame() error
	AxisSource(source uint32) error
	AxisStop(timeMs, axis uint32) error
}

// State is the single virtual keyboard/pointer pair this daemon
// injects events through, plus the bookkeeping needed to upload a
// keymap at most once and keep modifier state consistent (spec
// section 4.5, 4.6).
type State struct {
	keyboard keyboardInjector
	pointer  pointerInjector

	keymapFingerprint []byte
	modifiers         Modifiers

	// scrollOpen tracks, per axis, whether an axis_source has been sent
	// since the last axis-stop on that axis. Only the first axis event
	// after an axis-stop (or the first ever) is preceded by axis_source;
	// later axis events on the same axis are sent without one, each in
	// its own frame.
	scrollOpen [2]bool
}

// New binds a single virtual keyboard and virtual pointer for seat.
func New(keyboardMgr *protocol.VirtualKeyboardManager, pointerMgr *protocol.VirtualPointerManager, seat *wl.Seat) (*State, error) {
	kb, err := keyboardMgr.CreateVirtualKeyboard(seat)
	if err != nil {
		return nil, err
	}
	ptr, err := pointerMgr.CreatePointer(seat)
	if err != nil {
		return nil, err
	}
	return &State{keyboard: kb, pointer: ptr}, nil
}

// KeyboardObjectID reports the allocated ID of the underlying virtual
// keyboard proxy, for the post-round-trip unauthorized check (spec
// section 6, 9).
func (s *State) KeyboardObjectID() uint32 {
	return s.keyboard.ID()
}

// UploadKeymap sends the compiled keymap to the compositor, but only
// if it differs byte-for-byte from the one already uploaded (spec
// section 4.6, testable property 7: "uploading the same keymap twice
// in a row is a no-op the second time").
func (s *State) UploadKeymap(format uint32, fd int, size uint32, fingerprint []byte) error {
	if s.keymapFingerprint != nil && bytes.Equal(s.keymapFingerprint, fingerprint) {
		return nil
	}
	if err := s.keyboard.Keymap(format, fd, size); err != nil {
		return err
	}
	s.keymapFingerprint = append([]byte(nil), fingerprint...)
	return nil
}

// SyncModifiers sends a Modifiers request if target differs from the
// last-sent state, then records target as current (spec section 4.5:
// "the modifier snapshot taken at admission time is sent before the
// key event it accompanies, and the tracked state only advances after
// the send succeeds" — testable property 8, modifier atomicity).
func (s *State) SyncModifiers(target Modifiers) error {
	if s.modifiers.Equal(target) {
		return nil
	}
	if err := s.keyboard.Modifiers(target.Depressed, target.Latched, target.Locked, target.Group); err != nil {
		return fmt.Errorf("virtualinput: sync modifiers: %w", err)
	}
	s.modifiers = target
	return nil
}

// EmitKey replays a single raw evdev key event, unmodified (spec
// section 4.5: "key codes pass through verbatim; only release timing
// changes").
func (s *State) EmitKey(timeMs, code uint32, pressed bool) error {
	state := uint32(0)
	if pressed {
		state = 1
	}
	return s.keyboard.Key(timeMs, code, state)
}

// EmitButton replays a raw button event.
func (s *State) EmitButton(timeMs, code uint32, pressed bool) error {
	state := protocol.ButtonStateReleased
	if pressed {
		state = protocol.ButtonStatePressed
	}
	if err := s.pointer.Button(timeMs, code, state); err != nil {
		return err
	}
	return s.pointer.Frame()
}

// EmitMotion replays a relative pointer motion.
func (s *State) EmitMotion(timeMs uint32, dx, dy wl.Fixed) error {
	if err := s.pointer.Motion(timeMs, dx, dy); err != nil {
		return err
	}
	return s.pointer.Frame()
}

// EmitMotionAbsolute replays an absolute pointer motion within the
// global space's bounding box.
func (s *State) EmitMotionAbsolute(timeMs, x, y, xExtent, yExtent uint32) error {
	if err := s.pointer.MotionAbsolute(timeMs, x, y, xExtent, yExtent); err != nil {
		return err
	}
	return s.pointer.Frame()
}

// EmitScroll replays one scroll tick. A zero value closes the axis
// with an axis-stop event instead of an axis event carrying zero
// (spec section 4.5, testable property: "a released scroll packet
// whose value is zero is replayed as an axis-stop, never a zero-value
// axis event").
func (s *State) EmitScroll(timeMs, axis uint32, value wl.Fixed, source uint32) error {
	if value == 0 {
		if err := s.pointer.AxisStop(timeMs, axis); err != nil {
			return err
		}
		s.scrollOpen[axis] = false
		return s.pointer.Frame()
	}

	if !s.scrollOpen[axis] {
		if err := s.pointer.AxisSource(source); err != nil {
			return err
		}
		s.scrollOpen[axis] = true
	}
	if err := s.pointer.Axis(timeMs, axis, value); err != nil {
		return err
	}
	return s.pointer.Frame()
}
