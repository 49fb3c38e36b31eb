package virtualinput

import (
	"testing"

	"github.com/bnema/wlturbo/wl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKeyboard struct {
	id          uint32
	keymapCalls int
	keyCalls    []uint32
	modsCalls   []Modifiers
}

func (f *fakeKeyboard) ID() uint32 { return f.id }
func (f *fakeKeyboard) Keymap(format uint32, fd int, size uint32) error {
	f.keymapCalls++
	return nil
}
func (f *fakeKeyboard) Key(timeMs, key, state uint32) error {
	f.keyCalls = append(f.keyCalls, key)
	return nil
}
func (f *fakeKeyboard) Modifiers(depressed, latched, locked, group uint32) error {
	f.modsCalls = append(f.modsCalls, Modifiers{depressed, latched, locked, group})
	return nil
}

type fakePointer struct {
	axisCalls      []uint32
	axisStopCalls  []uint32
	axisSourceCall []uint32
	frameCalls     int
}

func (f *fakePointer) Motion(timeMs uint32, dx, dy wl.Fixed) error                { return nil }
func (f *fakePointer) MotionAbsolute(timeMs, x, y, xExtent, yExtent uint32) error { return nil }
func (f *fakePointer) Button(timeMs, button, state uint32) error                 { return nil }
func (f *fakePointer) Axis(timeMs, axis uint32, value wl.Fixed) error {
	f.axisCalls = append(f.axisCalls, axis)
	return nil
}
func (f *fakePointer) Frame() error { f.frameCalls++; return nil }
func (f *fakePointer) AxisSource(source uint32) error {
	f.axisSourceCall = append(f.axisSourceCall, source)
	return nil
}
func (f *fakePointer) AxisStop(timeMs, axis uint32) error {
	f.axisStopCalls = append(f.axisStopCalls, axis)
	return nil
}

func newTestState() (*State, *fakeKeyboard, *fakePointer) {
	kb := &fakeKeyboard{}
	ptr := &fakePointer{}
	return &State{keyboard: kb, pointer: ptr}, kb, ptr
}

func TestUploadKeymapSkipsIdenticalFingerprint(t *testing.T) {
	s, kb, _ := newTestState()
	fp := []byte{1, 2, 3, 4}

	require.NoError(t, s.UploadKeymap(1, 3, 4096, fp))
	require.NoError(t, s.UploadKeymap(1, 3, 4096, fp))

	assert.Equal(t, 1, kb.keymapCalls)
}

func TestUploadKeymapReuploadsOnChange(t *testing.T) {
	s, kb, _ := newTestState()
	require.NoError(t, s.UploadKeymap(1, 3, 4096, []byte{1, 2, 3}))
	require.NoError(t, s.UploadKeymap(1, 3, 4096, []byte{9, 9, 9}))
	assert.Equal(t, 2, kb.keymapCalls)
}

func TestSyncModifiersSkipsWhenUnchanged(t *testing.T) {
	s, kb, _ := newTestState()
	m := Modifiers{Depressed: 1}
	require.NoError(t, s.SyncModifiers(m))
	require.NoError(t, s.SyncModifiers(m))
	assert.Len(t, kb.modsCalls, 1)
}

func TestSyncModifiersSendsOnChange(t *testing.T) {
	s, kb, _ := newTestState()
	require.NoError(t, s.SyncModifiers(Modifiers{Depressed: 1}))
	require.NoError(t, s.SyncModifiers(Modifiers{Depressed: 0}))
	assert.Len(t, kb.modsCalls, 2)
}

func TestEmitScrollZeroValueEmitsAxisStopNotZeroAxis(t *testing.T) {
	s, _, ptr := newTestState()
	require.NoError(t, s.EmitScroll(100, protocolAxisVertical, 5, 0))
	require.NoError(t, s.EmitScroll(200, protocolAxisVertical, 0, 0))

	assert.Len(t, ptr.axisCalls, 1)
	assert.Len(t, ptr.axisStopCalls, 1)
	assert.Equal(t, 2, ptr.frameCalls)
}

func TestEmitScrollSendsAxisSourceOncePerOpenAxis(t *testing.T) {
	s, _, ptr := newTestState()
	require.NoError(t, s.EmitScroll(100, protocolAxisVertical, 5, 7))
	require.NoError(t, s.EmitScroll(150, protocolAxisVertical, 3, 7))
	assert.Len(t, ptr.axisSourceCall, 1)

	require.NoError(t, s.EmitScroll(200, protocolAxisVertical, 0, 7))
	require.NoError(t, s.EmitScroll(250, protocolAxisVertical, 2, 7))
	assert.Len(t, ptr.axisSourceCall, 2)
}

func TestEmitKeyPassesRawCodeUnmodified(t *testing.T) {
	s, kb, _ := newTestState()
	require.NoError(t, s.EmitKey(0, 30, true))
	require.Len(t, kb.keyCalls, 1)
	assert.Equal(t, uint32(30), kb.keyCalls[0])
}

const protocolAxisVertical = 0
