package daemon

import (
	evdev "github.com/gvalkov/golang-evdev"

	"github.com/ArrayBolt3/kloak-v2/internal/virtualinput"
)

// modifierTracker maintains the physical depressed-modifier mask
// derived from raw evdev key codes, independent of whatever has last
// been synced to the compositor. It is updated as modifier keys are
// captured and snapshotted into each admitted key packet, so the
// snapshot taken at admission time can be replayed atomically with the
// key event it accompanies at emission time (spec section 4.5,
// testable property 8, "modifier atomicity").
type modifierTracker struct {
	depressed uint32
}

// Bit positions from the conventional default XKB modmap (Shift,
// Control, Mod1=Alt, Mod4=Super), the layout every common keymap this
// daemon will see already agrees on.
const (
	modShift = 1 << 0
	modCtrl  = 1 << 2
	modMod1  = 1 << 3
	modMod4  = 1 << 6
)

func modifierBit(code uint16) (uint32, bool) {
	switch code {
	case evdev.KEY_LEFTSHIFT, evdev.KEY_RIGHTSHIFT:
		return modShift, true
	case evdev.KEY_LEFTCTRL, evdev.KEY_RIGHTCTRL:
		return modCtrl, true
	case evdev.KEY_LEFTALT, evdev.KEY_RIGHTALT:
		return modMod1, true
	case evdev.KEY_LEFTMETA, evdev.KEY_RIGHTMETA:
		return modMod4, true
	}
	return 0, false
}

// Track updates the depressed mask for one physical key transition and
// returns the resulting snapshot.
func (t *modifierTracker) Track(code uint16, pressed bool) virtualinput.Modifiers {
	if bit, ok := modifierBit(code); ok {
		if pressed {
			t.depressed |= bit
		} else {
			t.depressed &^= bit
		}
	}
	return virtualinput.Modifiers{Depressed: t.depressed}
}
