package daemon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newGlobalsContext(globals map[uint32]globalInfo) *Context {
	return &Context{globals: globals}
}

func TestRequireGlobalAcceptsSufficientVersion(t *testing.T) {
	c := newGlobalsContext(map[uint32]globalInfo{
		1: {Interface: "wl_seat", Version: 9},
	})
	assert.NoError(t, c.requireGlobal("wl_seat", 7))
}

func TestRequireGlobalRejectsBelowMinimumVersion(t *testing.T) {
	c := newGlobalsContext(map[uint32]globalInfo{
		1: {Interface: "wl_seat", Version: 3},
	})
	assert.Error(t, c.requireGlobal("wl_seat", 7))
}

func TestRequireGlobalRejectsMissingInterface(t *testing.T) {
	c := newGlobalsContext(map[uint32]globalInfo{})
	assert.Error(t, c.requireGlobal("wl_seat", 1))
}

func TestFindGlobalReturnsRegistryName(t *testing.T) {
	c := newGlobalsContext(map[uint32]globalInfo{
		42: {Interface: "wl_compositor", Version: 5},
	})
	name, version, ok := c.findGlobal("wl_compositor")
	assert.True(t, ok)
	assert.Equal(t, uint32(42), name)
	assert.Equal(t, uint32(5), version)
}

func TestFindGlobalMissingReportsFalse(t *testing.T) {
	c := newGlobalsContext(map[uint32]globalInfo{})
	_, _, ok := c.findGlobal("wl_compositor")
	assert.False(t, ok)
}
