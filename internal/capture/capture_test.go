package capture

import (
	"syscall"
	"testing"

	evdev "github.com/gvalkov/golang-evdev"
	"github.com/stretchr/testify/assert"
)

func convertOne(d *Device, ev evdev.InputEvent) (Packet, bool) {
	var out []Packet
	d.convert(ev, &out)
	if len(out) == 0 {
		return Packet{}, false
	}
	return out[0], true
}

func TestConvertMotionEvent(t *testing.T) {
	d := &Device{}
	ev := evdev.InputEvent{Type: evdev.EV_REL, Code: evdev.REL_X, Value: 5}
	p, ok := convertOne(d, ev)
	assert.True(t, ok)
	assert.Equal(t, Motion, p.Kind)
	assert.Equal(t, int32(5), p.Value)
}

func TestConvertScrollEvent(t *testing.T) {
	d := &Device{}
	ev := evdev.InputEvent{Type: evdev.EV_REL, Code: evdev.REL_WHEEL, Value: -1}
	p, ok := convertOne(d, ev)
	assert.True(t, ok)
	assert.Equal(t, Scroll, p.Kind)
	assert.Equal(t, int32(-1), p.Value)
}

func TestConvertAbsMotionEventCarriesDeviceRange(t *testing.T) {
	d := &Device{absXMin: 0, absXMax: 4095}
	ev := evdev.InputEvent{Type: evdev.EV_ABS, Code: evdev.ABS_X, Value: 2048}
	p, ok := convertOne(d, ev)
	assert.True(t, ok)
	assert.Equal(t, MotionAbs, p.Kind)
	assert.Equal(t, int32(2048), p.Value)
	assert.Equal(t, int32(0), p.AbsMin)
	assert.Equal(t, int32(4095), p.AbsMax)
}

func TestConvertButtonEvent(t *testing.T) {
	d := &Device{}
	ev := evdev.InputEvent{Type: evdev.EV_KEY, Code: evdev.BTN_LEFT, Value: 1}
	p, ok := convertOne(d, ev)
	assert.True(t, ok)
	assert.Equal(t, Button, p.Kind)
	assert.True(t, p.Pressed)
}

func TestConvertKeyEvent(t *testing.T) {
	d := &Device{}
	ev := evdev.InputEvent{Type: evdev.EV_KEY, Code: evdev.KEY_A, Value: 0}
	p, ok := convertOne(d, ev)
	assert.True(t, ok)
	assert.Equal(t, Key, p.Kind)
	assert.False(t, p.Pressed)
}

func TestConvertIgnoresSyn(t *testing.T) {
	d := &Device{}
	ev := evdev.InputEvent{Type: evdev.EV_SYN, Code: 0, Value: 0}
	_, ok := convertOne(d, ev)
	assert.False(t, ok)
}

func TestHandleTouchTapWithoutMotionSynthesizesClick(t *testing.T) {
	d := &Device{tapToClick: true}
	var out []Packet

	d.convert(evdev.InputEvent{Type: evdev.EV_KEY, Code: evdev.BTN_TOUCH, Value: 1}, &out)
	assert.Empty(t, out)

	d.convert(evdev.InputEvent{Type: evdev.EV_KEY, Code: evdev.BTN_TOUCH, Value: 0}, &out)
	if assert.Len(t, out, 2) {
		assert.Equal(t, Button, out[0].Kind)
		assert.Equal(t, uint16(evdev.BTN_LEFT), out[0].Code)
		assert.True(t, out[0].Pressed)
		assert.False(t, out[1].Pressed)
	}
}

func TestHandleTouchWithMotionSuppressesClick(t *testing.T) {
	d := &Device{tapToClick: true}
	var out []Packet

	d.convert(evdev.InputEvent{Type: evdev.EV_KEY, Code: evdev.BTN_TOUCH, Value: 1}, &out)
	d.convert(evdev.InputEvent{Type: evdev.EV_ABS, Code: evdev.ABS_X, Value: 10}, &out)
	out = out[:0]
	d.convert(evdev.InputEvent{Type: evdev.EV_KEY, Code: evdev.BTN_TOUCH, Value: 0}, &out)
	assert.Empty(t, out)
}

func TestHandleTouchTooSlowSuppressesClick(t *testing.T) {
	d := &Device{tapToClick: true}
	var out []Packet

	d.convert(evdev.InputEvent{Type: evdev.EV_KEY, Code: evdev.BTN_TOUCH, Value: 1, Time: syscall.Timeval{Sec: 0, Usec: 0}}, &out)
	d.convert(evdev.InputEvent{Type: evdev.EV_KEY, Code: evdev.BTN_TOUCH, Value: 0, Time: syscall.Timeval{Sec: 1, Usec: 0}}, &out)
	assert.Empty(t, out)
}

func TestManagerReconcileDropsMissingDevices(t *testing.T) {
	m := NewManager()
	// A device entry with no backing path should be reconciled away
	// without touching the real filesystem beyond the stat call.
	m.devices["/nonexistent-kloak-test-device"] = &Device{Path: "/nonexistent-kloak-test-device"}
	removed := m.Reconcile()
	assert.Len(t, removed, 1)
	assert.Empty(t, m.devices)
}
