// Package capture owns the evdev devices this daemon reads raw input
// from: enumeration, exclusive grabbing, hot-plug detection, and
// splitting each device's raw events into cursor-motion events (which
// drive the cursor walker directly) and discrete events (keys,
// buttons, scroll ticks, which are admitted into the delay scheduler).
package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"unsafe"

	evdev "github.com/gvalkov/golang-evdev"
)

const inputDeviceDir = "/dev/input"

// Kind distinguishes the two admission paths a raw evdev event can
// take (spec section 4, motion-vs-non-motion split).
type Kind int

const (
	// Motion is a relative pointer movement (EV_REL REL_X/REL_Y);
	// these never enter the delay scheduler, since delaying cursor
	// motion would make the pointer visibly lag rather than merely
	// altering keystroke timing fingerprints.
	Motion Kind = iota
	// MotionAbs is an absolute pointer movement (EV_ABS ABS_X/ABS_Y),
	// reported by touchpads in absolute mode and graphics tablets.
	// Like Motion it is applied immediately and never enqueued.
	MotionAbs
	// Button is a pointer button press/release.
	Button
	// Scroll is a scroll-wheel tick (REL_WHEEL/REL_HWHEEL).
	Scroll
	// Key is a keyboard key press/release.
	Key
)

// Packet is one raw input event extracted from a device, tagged with
// the admission path it belongs on.
type Packet struct {
	Kind        Kind
	Code        uint16
	Value       int32
	Pressed     bool
	TimestampMs int64
	// AbsMin, AbsMax bound Value for a MotionAbs packet, taken from the
	// originating device's EVIOCGABS range for that axis.
	AbsMin, AbsMax int32
}

// tapMaxDurationMs bounds how long a finger may rest on a tap-to-click
// capable device before a touch-down/touch-up pair no longer counts as
// a tap (spec section 4.4).
const tapMaxDurationMs = 200

// Device is one grabbed evdev input device.
type Device struct {
	Path    string
	Name    string
	handle  *evdev.InputDevice
	grabbed bool

	// tapToClick is true for devices that expose finger-presence and
	// touch buttons (a touchpad), detected at open time (spec section
	// 4.4: "tap-to-click is enabled at open time").
	tapToClick   bool
	touching     bool
	touchStartMs int64
	touchMoved   bool

	absXMin, absXMax int32
	absYMin, absYMax int32
}

// fatalGrabErr is returned by Grab when exclusive access could not be
// obtained; the daemon treats this as fatal (spec section 7:
// "failure to exclusively grab any captured device is fatal").
type fatalGrabErr struct {
	path string
	err  error
}

func (e *fatalGrabErr) Error() string {
	return fmt.Sprintf("capture: grab %s: %v", e.path, e.err)
}

func (e *fatalGrabErr) Unwrap() error { return e.err }

// open opens path and verifies it exposes key or relative-motion
// capabilities before treating it as an input device worth capturing
// (mirrors the EVIOCGBIT capability probe used to validate candidate
// devices). Tap-to-click capability and absolute-axis ranges are
// probed here too, since both are fixed properties of the device for
// its whole lifetime (spec section 4.4: "tap-to-click is enabled at
// open time").
func open(path string) (*Device, error) {
	h, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", path, err)
	}
	if !hasUsableCapabilities(h) {
		h.File.Close()
		return nil, fmt.Errorf("capture: %s has no key or relative-motion capability", path)
	}

	d := &Device{Path: path, Name: h.Name, handle: h, tapToClick: tapToClickCapable(h)}
	if info, ok := queryAbsInfo(h.File, evdev.ABS_X); ok {
		d.absXMin, d.absXMax = info.Minimum, info.Maximum
	}
	if info, ok := queryAbsInfo(h.File, evdev.ABS_Y); ok {
		d.absYMin, d.absYMax = info.Minimum, info.Maximum
	}
	return d, nil
}

// Grab takes exclusive access of the device (EVIOCGRAB). Tap-to-click
// was already detected and recorded at open time (see open); once
// grabbed, this daemon's own convert/handleTouch logic is the only
// thing that ever sees this device's touch events, so tap synthesis
// has to happen here rather than being left to the compositor (spec
// section 4, 7).
func (d *Device) Grab() error {
	if err := d.handle.Grab(); err != nil {
		return &fatalGrabErr{path: d.Path, err: err}
	}
	d.grabbed = true
	return nil
}

// Release ungrabs the device.
func (d *Device) Release() {
	if d.grabbed {
		_ = d.handle.Release()
		d.grabbed = false
	}
}

// Close releases and closes the underlying file.
func (d *Device) Close() {
	d.Release()
	if d.handle != nil {
		_ = d.handle.File.Close()
	}
}

// Fd returns the device's file descriptor, for the main loop's poll
// set.
func (d *Device) Fd() int {
	return int(d.handle.File.Fd())
}

// ReadPackets drains the events currently available on the device and
// converts each into zero or more Packets, dropping event types this
// daemon does not act on (EV_SYN, EV_MSC, etc). A single raw event can
// produce two packets: a detected tap-to-click gesture synthesizes a
// BTN_LEFT press and release together (see handleTouch).
func (d *Device) ReadPackets() ([]Packet, error) {
	events, err := d.handle.Read()
	if err != nil {
		return nil, err
	}
	packets := make([]Packet, 0, len(events))
	for _, ev := range events {
		d.convert(ev, &packets)
	}
	return packets, nil
}

func (d *Device) convert(ev evdev.InputEvent, out *[]Packet) {
	ts := int64(ev.Time.Sec)*1000 + int64(ev.Time.Usec)/1000
	switch ev.Type {
	case evdev.EV_REL:
		switch ev.Code {
		case evdev.REL_X, evdev.REL_Y:
			d.touchMoved = true
			*out = append(*out, Packet{Kind: Motion, Code: ev.Code, Value: ev.Value, TimestampMs: ts})
		case evdev.REL_WHEEL, evdev.REL_HWHEEL:
			*out = append(*out, Packet{Kind: Scroll, Code: ev.Code, Value: ev.Value, TimestampMs: ts})
		}
	case evdev.EV_ABS:
		switch ev.Code {
		case evdev.ABS_X:
			d.touchMoved = true
			*out = append(*out, Packet{Kind: MotionAbs, Code: ev.Code, Value: ev.Value, AbsMin: d.absXMin, AbsMax: d.absXMax, TimestampMs: ts})
		case evdev.ABS_Y:
			d.touchMoved = true
			*out = append(*out, Packet{Kind: MotionAbs, Code: ev.Code, Value: ev.Value, AbsMin: d.absYMin, AbsMax: d.absYMax, TimestampMs: ts})
		}
	case evdev.EV_KEY:
		if d.tapToClick && ev.Code == evdev.BTN_TOUCH {
			d.handleTouch(ev.Value != 0, ts, out)
			return
		}
		pressed := ev.Value != 0
		if ev.Code >= evdev.BTN_LEFT && ev.Code <= evdev.BTN_TASK {
			*out = append(*out, Packet{Kind: Button, Code: ev.Code, Pressed: pressed, TimestampMs: ts})
			return
		}
		*out = append(*out, Packet{Kind: Key, Code: ev.Code, Pressed: pressed, TimestampMs: ts})
	}
}

// handleTouch tracks a tap-to-click capable device's BTN_TOUCH
// transitions and synthesizes a BTN_LEFT click when a touch starts and
// ends quickly, without an intervening motion event (spec section
// 4.4). Grabbing the device exclusively removes it from the
// compositor's own libinput stack, so this daemon is the only thing
// left that can recognize a tap.
func (d *Device) handleTouch(down bool, ts int64, out *[]Packet) {
	if down {
		d.touching = true
		d.touchStartMs = ts
		d.touchMoved = false
		return
	}
	wasTap := d.touching && !d.touchMoved && ts-d.touchStartMs <= tapMaxDurationMs
	d.touching = false
	if wasTap {
		*out = append(*out,
			Packet{Kind: Button, Code: evdev.BTN_LEFT, Pressed: true, TimestampMs: ts},
			Packet{Kind: Button, Code: evdev.BTN_LEFT, Pressed: false, TimestampMs: ts},
		)
	}
}

// hasUsableCapabilities reports whether dev advertises EV_KEY or
// EV_REL bits (grounded on the EVIOCGBIT capability probe used
// elsewhere to validate candidate input devices).
func hasUsableCapabilities(dev *evdev.InputDevice) bool {
	return hasAnyBit(queryEventBits(dev.File, evTypeKey)) || hasAnyBit(queryEventBits(dev.File, evTypeRel))
}

// tapToClickCapable reports whether dev looks like a touchpad: it
// reports finger presence and a touch button, the signature of a
// device that speaks absolute touch coordinates rather than discrete
// buttons (spec section 4.4).
func tapToClickCapable(dev *evdev.InputDevice) bool {
	bits := queryEventBits(dev.File, evTypeKey)
	return hasBit(bits, evdev.BTN_TOOL_FINGER) && hasBit(bits, evdev.BTN_TOUCH)
}

const (
	evTypeKey = 0x01
	evTypeRel = 0x02
)

// queryEventBits runs EVIOCGBIT for eventType and returns the
// capability bitmap, or nil if the ioctl failed.
func queryEventBits(f *os.File, eventType uintptr) []byte {
	bits := make([]byte, 96)
	const iocRead = 0x80000000
	cmd := iocRead | (uintptr(len(bits)) << 16) | (uintptr('E') << 8) | (0x20 + eventType)
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), cmd, uintptr(unsafe.Pointer(&bits[0]))); errno != 0 {
		return nil
	}
	return bits
}

func hasAnyBit(bits []byte) bool {
	for _, b := range bits {
		if b != 0 {
			return true
		}
	}
	return false
}

func hasBit(bits []byte, code uint16) bool {
	idx := int(code) / 8
	return idx < len(bits) && bits[idx]&(1<<uint(code%8)) != 0
}

// rawAbsInfo mirrors struct input_absinfo from linux/input.h.
type rawAbsInfo struct {
	Value, Minimum, Maximum, Fuzz, Flat, Resolution int32
}

// queryAbsInfo runs EVIOCGABS for axis and reports the device's
// reported value range, used to normalize absolute motion into global
// pixel space (spec section 3 InputPacket: POINTER_MOTION_ABS).
func queryAbsInfo(f *os.File, axis uint16) (rawAbsInfo, bool) {
	var info rawAbsInfo
	const iocRead = 0x80000000
	size := uintptr(unsafe.Sizeof(info))
	cmd := iocRead | (size << 16) | (uintptr('E') << 8) | (0x40 + uintptr(axis))
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), cmd, uintptr(unsafe.Pointer(&info)))
	if errno != 0 || info.Maximum <= info.Minimum {
		return rawAbsInfo{}, false
	}
	return info, true
}

// Manager enumerates and tracks every grabbed device under
// /dev/input, and detects hot-plug/unplug by polling the directory
// listing (spec section 7, scenario S3: device hot-unplug recovery).
type Manager struct {
	devices map[string]*Device
}

// NewManager returns an empty manager; call Scan to populate it.
func NewManager() *Manager {
	return &Manager{devices: make(map[string]*Device)}
}

// Scan opens and grabs every usable device under /dev/input not
// already tracked, returning the newly added devices.
func (m *Manager) Scan() ([]*Device, error) {
	entries, err := os.ReadDir(inputDeviceDir)
	if err != nil {
		return nil, fmt.Errorf("capture: list %s: %w", inputDeviceDir, err)
	}

	var added []*Device
	for _, ent := range entries {
		if !strings.HasPrefix(ent.Name(), "event") {
			continue
		}
		path := filepath.Join(inputDeviceDir, ent.Name())
		if _, already := m.devices[path]; already {
			continue
		}
		dev, err := open(path)
		if err != nil {
			continue // not a usable input device, or transient permission issue
		}
		if err := dev.Grab(); err != nil {
			return nil, err
		}
		m.devices[path] = dev
		added = append(added, dev)
	}
	return added, nil
}

// Reconcile drops tracked devices whose backing path no longer
// exists, releasing their resources (spec section 7: an unplugged
// device must not wedge the poll set).
func (m *Manager) Reconcile() []*Device {
	var removed []*Device
	for path, dev := range m.devices {
		if _, err := os.Stat(path); err != nil {
			dev.Close()
			delete(m.devices, path)
			removed = append(removed, dev)
		}
	}
	return removed
}

// All returns every currently tracked device.
func (m *Manager) All() []*Device {
	out := make([]*Device, 0, len(m.devices))
	for _, dev := range m.devices {
		out = append(out, dev)
	}
	return out
}

// Remove drops and closes a single device by path, used when a read
// fails with ENODEV outside of a directory reconcile pass.
func (m *Manager) Remove(path string) {
	if dev, ok := m.devices[path]; ok {
		dev.Close()
		delete(m.devices, path)
	}
}
