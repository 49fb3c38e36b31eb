package daemon

import (
	"testing"

	evdev "github.com/gvalkov/golang-evdev"
	"github.com/stretchr/testify/assert"
)

func TestModifierTrackerSetsAndClearsBits(t *testing.T) {
	var tr modifierTracker

	got := tr.Track(evdev.KEY_LEFTSHIFT, true)
	assert.Equal(t, uint32(modShift), got.Depressed)

	got = tr.Track(evdev.KEY_LEFTCTRL, true)
	assert.Equal(t, uint32(modShift|modCtrl), got.Depressed)

	got = tr.Track(evdev.KEY_LEFTSHIFT, false)
	assert.Equal(t, uint32(modCtrl), got.Depressed)
}

func TestModifierTrackerIgnoresNonModifierKeys(t *testing.T) {
	var tr modifierTracker
	got := tr.Track(evdev.KEY_A, true)
	assert.Equal(t, uint32(0), got.Depressed)
}

func TestModifierTrackerRightVariantsShareLeftBit(t *testing.T) {
	var tr modifierTracker
	tr.Track(evdev.KEY_RIGHTALT, true)
	got := tr.Track(evdev.KEY_RIGHTMETA, true)
	assert.Equal(t, uint32(modMod1|modMod4), got.Depressed)
}
