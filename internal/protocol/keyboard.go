package protocol

import (
	"github.com/bnema/wlturbo/wl"
)

// seatOpGetKeyboard is the wl_seat.get_keyboard request opcode
// (stable core protocol).
const seatOpGetKeyboard = 1

// Keyboard is the physical wl_keyboard object bound on the seat. This
// daemon never reads its key/modifiers events (physical keys are
// captured from evdev instead); it exists solely to receive the
// compositor's compiled keymap descriptor (spec section 4.6).
type Keyboard struct {
	wl.BaseProxy

	// OnKeymap fires once the compositor sends its keymap descriptor.
	OnKeymap func(format uint32, fd int, size uint32)
}

// GetKeyboard requests the physical wl_keyboard object for seat.
func GetKeyboard(seat *wl.Seat) (*Keyboard, error) {
	kb := &Keyboard{}
	kb.SetContext(seat.Context())
	kb.SetID(seat.Context().AllocateID())
	seat.Context().Register(kb)

	if err := seat.Context().SendRequest(seat, seatOpGetKeyboard, kb); err != nil {
		seat.Context().Unregister(kb)
		return nil, err
	}
	return kb, nil
}

// Release destroys the keyboard object.
func (k *Keyboard) Release() error {
	const opcode = 0 // release
	err := k.Context().SendRequest(k, opcode)
	k.Context().Unregister(k)
	return err
}

// Dispatch decodes wl_keyboard events. Only keymap is acted on; enter,
// leave, key, modifiers, and repeat_info are ignored since this daemon
// drives key emission from evdev capture, not from the physical
// keyboard's own focus/key events.
func (k *Keyboard) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // keymap
		format := event.Uint32()
		fd := event.Fd()
		size := event.Uint32()
		if k.OnKeymap != nil {
			k.OnKeymap(format, fd, size)
		}
	}
}
