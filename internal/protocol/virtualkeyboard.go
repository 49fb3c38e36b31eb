// Package protocol holds hand-written Wayland wire-protocol bindings
// for the extension interfaces this daemon needs beyond the wl_*
// core objects that github.com/bnema/wlturbo/wl already provides:
// the virtual-keyboard and virtual-pointer input-injection protocols,
// the layer-shell overlay protocol, and xdg-output for per-output
// logical geometry. Every binding follows the same shape: a Go struct
// embedding wl.BaseProxy, opcode constants for requests, and a
// Dispatch method that decodes incoming events into typed Go values
// instead of exposing per-interface callback registration (spec
// section 9, "Callback-driven protocol").
package protocol

import (
	"errors"
	"fmt"

	"github.com/bnema/wlturbo/wl"
)

// Protocol interface names and minimum versions (spec section 6).
const (
	VirtualKeyboardManagerInterface = "zwp_virtual_keyboard_manager_v1"
	VirtualKeyboardInterface        = "zwp_virtual_keyboard_v1"
	VirtualKeyboardManagerVersion   = 1
)

// VirtualKeyboardUnauthorized is the sentinel object ID the compositor
// substitutes for a real handle when virtual-keyboard creation is
// refused (spec section 6 and 9: "a handle whose integer value equals
// the UNAUTHORIZED enum"). Compositors that implement this convention
// return object ID 0 in the new_id slot instead of a live proxy.
const VirtualKeyboardUnauthorized = 0

// ErrVirtualKeyboardUnauthorized is returned when the compositor
// refuses to create a virtual keyboard (spec section 6: fatal).
var ErrVirtualKeyboardUnauthorized = errors.New("protocol: virtual keyboard creation unauthorized")

// VirtualKeyboardManager is the zwp_virtual_keyboard_manager_v1 global.
type VirtualKeyboardManager struct {
	wl.BaseProxy
}

// NewVirtualKeyboardManager wraps an already-bound manager object.
func NewVirtualKeyboardManager(ctx *wl.Context) *VirtualKeyboardManager {
	m := &VirtualKeyboardManager{}
	m.SetContext(ctx)
	return m
}

// CreateVirtualKeyboard requests a new virtual keyboard for seat. The
// returned object's ID must be checked by the caller against
// VirtualKeyboardUnauthorized after a display round-trip: some
// compositors substitute that sentinel for a live handle instead of
// honoring the request (spec section 6, 9). IsUnauthorized performs
// that check.
func (m *VirtualKeyboardManager) CreateVirtualKeyboard(seat *wl.Seat) (*VirtualKeyboard, error) {
	kb := &VirtualKeyboard{}
	kb.SetContext(m.Context())
	id := m.Context().AllocateID()
	kb.SetID(id)
	kb.id = id
	m.Context().Register(kb)

	const opcode = 0 // create_virtual_keyboard
	if err := m.Context().SendRequest(m, opcode, seat, kb); err != nil {
		m.Context().Unregister(kb)
		return nil, fmt.Errorf("protocol: create virtual keyboard: %w", err)
	}
	return kb, nil
}

// IsUnauthorized reports whether id is the compositor's "unauthorized"
// sentinel in place of a real virtual-keyboard handle.
func IsUnauthorized(id uint32) bool {
	return id == VirtualKeyboardUnauthorized
}

// Dispatch handles events for the manager object, which has none.
func (m *VirtualKeyboardManager) Dispatch(_ *wl.Event) {}

// VirtualKeyboard is a zwp_virtual_keyboard_v1 object.
type VirtualKeyboard struct {
	wl.BaseProxy

	id uint32
}

// ID reports the object ID the compositor assigned this keyboard,
// for the post-round-trip unauthorized check (IsUnauthorized).
func (k *VirtualKeyboard) ID() uint32 {
	return k.id
}

// Keymap uploads the compiled keymap (format, fd, size). The format is
// always WL_KEYBOARD_KEYMAP_FORMAT_XKB_V1 (1) in practice.
func (k *VirtualKeyboard) Keymap(format uint32, fd int, size uint32) error {
	if fd < 0 {
		return fmt.Errorf("protocol: invalid keymap fd %d", fd)
	}
	const opcode = 0 // keymap
	return k.Context().SendRequestWithFDs(k, opcode, []int{fd}, format, uintptr(fd), size)
}

// Key emits a raw evdev key event. The raw code is sent unmodified;
// the keymap-state tracker's internal +8 offset (spec section 9) is
// never applied here.
func (k *VirtualKeyboard) Key(timeMs, key, state uint32) error {
	const opcode = 1 // key
	return k.Context().SendRequest(k, opcode, timeMs, key, state)
}

// Modifiers pushes the current depressed/latched/locked masks and
// effective layout group. Spec section 4.5: must be sent before the
// Key call it accompanies, in the same loop iteration.
func (k *VirtualKeyboard) Modifiers(depressed, latched, locked, group uint32) error {
	const opcode = 2 // modifiers
	return k.Context().SendRequest(k, opcode, depressed, latched, locked, group)
}

// Destroy releases the virtual keyboard object.
func (k *VirtualKeyboard) Destroy() error {
	k.Context().Unregister(k)
	return nil
}

// Dispatch handles events for the keyboard object, which has none.
func (k *VirtualKeyboard) Dispatch(_ *wl.Event) {}
