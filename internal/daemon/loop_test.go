package daemon

import (
	"testing"

	"github.com/bnema/wlturbo/wl"
	evdev "github.com/gvalkov/golang-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArrayBolt3/kloak-v2/internal/capture"
	"github.com/ArrayBolt3/kloak-v2/internal/clock"
	"github.com/ArrayBolt3/kloak-v2/internal/geometry"
	"github.com/ArrayBolt3/kloak-v2/internal/rng"
	"github.com/ArrayBolt3/kloak-v2/internal/scheduler"
	"github.com/ArrayBolt3/kloak-v2/internal/virtualinput"
)

// fakeInput records every call the main loop makes against
// inputDriver, in order, so tests can assert both which calls happen
// and in what order (the ordering is the point of review comment 2:
// SyncModifiers must land before the EmitKey it accompanies).
type fakeInput struct {
	calls      []string
	lastMods   virtualinput.Modifiers
	lastKey    uint32
	lastButton uint32
	motionAbs  []motionAbsCall
}

type motionAbsCall struct {
	x, y, xExtent, yExtent uint32
}

func (f *fakeInput) KeyboardObjectID() uint32 { return 1 }
func (f *fakeInput) UploadKeymap(format uint32, fd int, size uint32, fingerprint []byte) error {
	f.calls = append(f.calls, "UploadKeymap")
	return nil
}
func (f *fakeInput) SyncModifiers(target virtualinput.Modifiers) error {
	f.calls = append(f.calls, "SyncModifiers")
	f.lastMods = target
	return nil
}
func (f *fakeInput) EmitKey(timeMs, code uint32, pressed bool) error {
	f.calls = append(f.calls, "EmitKey")
	f.lastKey = code
	return nil
}
func (f *fakeInput) EmitButton(timeMs, code uint32, pressed bool) error {
	f.calls = append(f.calls, "EmitButton")
	f.lastButton = code
	return nil
}
func (f *fakeInput) EmitMotion(timeMs uint32, dx, dy wl.Fixed) error {
	f.calls = append(f.calls, "EmitMotion")
	return nil
}
func (f *fakeInput) EmitMotionAbsolute(timeMs, x, y, xExtent, yExtent uint32) error {
	f.calls = append(f.calls, "EmitMotionAbsolute")
	f.motionAbs = append(f.motionAbs, motionAbsCall{x, y, xExtent, yExtent})
	return nil
}
func (f *fakeInput) EmitScroll(timeMs, axis uint32, value wl.Fixed, source uint32) error {
	f.calls = append(f.calls, "EmitScroll")
	return nil
}

// fakeOverlay records draw/clear calls so redrawOverlays' per-frame
// branching (spec section 4.2/4.3) can be asserted without a live
// Wayland surface.
type fakeOverlay struct {
	drawCalls  int
	clearCalls int
	lastX      int32
	lastY      int32
}

func (f *fakeOverlay) DrawCursor(x, y int32) error {
	f.drawCalls++
	f.lastX, f.lastY = x, y
	return nil
}
func (f *fakeOverlay) ClearCursor() error {
	f.clearCalls++
	return nil
}
func (f *fakeOverlay) Destroy() {}

func twoOutputSpace() *geometry.Space {
	s := geometry.NewSpace()
	s.Put(&geometry.Output{Name: 1, Rect: geometry.Rect{X: 0, Y: 0, W: 800, H: 600}, InitDone: true})
	s.Put(&geometry.Output{Name: 2, Rect: geometry.Rect{X: 800, Y: 0, W: 800, H: 600}, InitDone: true})
	return s
}

func testContext(t *testing.T) *Context {
	t.Helper()
	source := rng.New()
	return &Context{
		cfg:      Config{MaxDelayMs: 100},
		rng:      source,
		clock:    clock.New(),
		space:    twoOutputSpace(),
		queue:    scheduler.New(source, 100),
		overlays: make(map[uint32]cursorOverlay),
		input:    &fakeInput{},
	}
}

func TestScheduleKeepAliveWithinConfiguredBound(t *testing.T) {
	c := testContext(t)
	now := c.NowMillis()
	c.scheduleKeepAlive(now)
	assert.GreaterOrEqual(t, c.nextKeepAlive, now)
	assert.LessOrEqual(t, c.nextKeepAlive, now+c.cfg.MaxDelayMs)
}

func TestPollTimeoutBoundedByNearerOfKeepAliveAndRelease(t *testing.T) {
	c := testContext(t)
	now := c.NowMillis()
	c.nextKeepAlive = now + 1000

	// No queued packet: timeout should track the keep-alive deadline.
	wait := c.pollTimeout()
	assert.LessOrEqual(t, wait, 1000)
	assert.Greater(t, wait, 900)

	// A release time nearer than the keep-alive deadline wins.
	_, err := c.queue.Admit(scheduler.ButtonEvent, capture.Packet{}, now)
	require.NoError(t, err)
	rt, ok := c.queue.NextReleaseTime()
	require.True(t, ok)
	require.Less(t, rt, c.nextKeepAlive)

	wait = c.pollTimeout()
	assert.LessOrEqual(t, wait, int(rt-now)+1)
}

func TestEmitKeepAliveSendsCurrentPositionAndReschedules(t *testing.T) {
	c := testContext(t)
	fi := c.input.(*fakeInput)
	c.cursorP.X, c.cursorP.Y = 850, 300

	now := c.NowMillis()
	c.nextKeepAlive = now - 1
	beforeDeadline := c.nextKeepAlive
	c.emitKeepAlive(now)

	require.Len(t, fi.motionAbs, 1)
	box, _ := c.space.BoundingBox()
	assert.Equal(t, uint32(box.W), fi.motionAbs[0].xExtent)
	assert.Equal(t, uint32(box.H), fi.motionAbs[0].yExtent)
	assert.Equal(t, uint32(850), fi.motionAbs[0].x)
	assert.Equal(t, uint32(300), fi.motionAbs[0].y)
	assert.NotEqual(t, beforeDeadline, c.nextKeepAlive)
}

func TestAdmitKeyTracksModifierSnapshotAtAdmissionTime(t *testing.T) {
	c := testContext(t)

	c.admit(capture.Packet{Kind: capture.Key, Code: evdev.KEY_LEFTSHIFT, Pressed: true, TimestampMs: c.NowMillis()})
	c.admit(capture.Packet{Kind: capture.Key, Code: evdev.KEY_A, Pressed: true, TimestampMs: c.NowMillis()})

	var released []scheduler.Packet
	c.queue.DrainReady(c.NowMillis()+1000, func(p scheduler.Packet) { released = append(released, p) })
	require.Len(t, released, 2)

	ka, ok := released[1].Payload.(keyAdmission)
	require.True(t, ok)
	assert.Equal(t, uint32(evdev.KEY_A), uint32(ka.packet.Code))
	assert.Equal(t, uint32(modShift), ka.modifiers.Depressed)
}

func TestEmitPacketKeyEventSyncsModifiersBeforeEmittingKey(t *testing.T) {
	c := testContext(t)
	fi := c.input.(*fakeInput)

	pkt := scheduler.Packet{
		Kind: scheduler.KeyEvent,
		Payload: keyAdmission{
			packet:    capture.Packet{Code: evdev.KEY_A, Pressed: true},
			modifiers: virtualinput.Modifiers{Depressed: modShift},
		},
	}
	c.emitPacket(pkt)

	require.Equal(t, []string{"SyncModifiers", "EmitKey"}, fi.calls)
	assert.Equal(t, uint32(modShift), fi.lastMods.Depressed)
	assert.Equal(t, uint32(evdev.KEY_A), fi.lastKey)
}

func TestEmitPacketButtonEvent(t *testing.T) {
	c := testContext(t)
	fi := c.input.(*fakeInput)

	c.emitPacket(scheduler.Packet{Kind: scheduler.ButtonEvent, Payload: capture.Packet{Code: evdev.BTN_LEFT, Pressed: true}})
	require.Equal(t, []string{"EmitButton"}, fi.calls)
	assert.Equal(t, uint32(evdev.BTN_LEFT), fi.lastButton)
}

func TestApplyMotionAbsNormalizesToOutputBoundingBox(t *testing.T) {
	c := testContext(t)
	fi := c.input.(*fakeInput)

	c.applyMotionAbs(capture.Packet{Kind: capture.MotionAbs, Code: absX, Value: 2048, AbsMin: 0, AbsMax: 4095})

	require.Len(t, fi.motionAbs, 1)
	box, _ := c.space.BoundingBox()
	wantX := uint32(float64(box.W) * (2048.0 / 4095.0))
	assert.InDelta(t, wantX, fi.motionAbs[0].x, 1)
}

func TestRedrawOverlaysDrawsContainingOutputAndClearsOthers(t *testing.T) {
	c := testContext(t)
	onTarget := &fakeOverlay{}
	offTarget := &fakeOverlay{}
	c.overlays[1] = onTarget
	c.overlays[2] = offTarget

	// Cursor sits inside output 1's rect (0,0,800,600).
	c.cursorP.X, c.cursorP.Y = 100, 100
	c.redrawOverlays()

	assert.Equal(t, 1, onTarget.drawCalls)
	assert.Equal(t, 0, onTarget.clearCalls)
	assert.Equal(t, 0, offTarget.drawCalls)
	assert.Equal(t, 1, offTarget.clearCalls)

	// Cursor moves to output 2; the previous overlay must now clear,
	// not stay drawn (spec section 4.2/4.3, the bug fixed by review
	// comment 1: a departed crosshair must not stay painted forever).
	c.cursorP.X, c.cursorP.Y = 900, 100
	c.redrawOverlays()

	assert.Equal(t, 1, onTarget.drawCalls)
	assert.Equal(t, 1, onTarget.clearCalls)
	assert.Equal(t, 1, offTarget.drawCalls)
	assert.Equal(t, 1, offTarget.clearCalls)
}
