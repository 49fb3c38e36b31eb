package daemon

import (
	"fmt"

	"github.com/bnema/wlturbo/wl"

	"github.com/ArrayBolt3/kloak-v2/internal/geometry"
	"github.com/ArrayBolt3/kloak-v2/internal/logger"
	"github.com/ArrayBolt3/kloak-v2/internal/overlay"
	"github.com/ArrayBolt3/kloak-v2/internal/protocol"
	"github.com/ArrayBolt3/kloak-v2/internal/virtualinput"
)

// requiredVersions are the minimum protocol versions this daemon
// needs (spec section 6).
var requiredVersions = map[string]uint32{
	"wl_compositor":                   5,
	"wl_shm":                          2,
	"wl_seat":                         9,
	"wl_output":                       4,
	protocol.OutputManagerInterface:        protocol.OutputManagerVersion,
	protocol.LayerShellInterface:           protocol.LayerShellVersion,
	protocol.VirtualPointerManagerInterface: protocol.VirtualPointerManagerVersion,
	protocol.VirtualKeyboardManagerInterface: protocol.VirtualKeyboardManagerVersion,
}

// Bootstrap connects to the Wayland display, collects every announced
// global over one round-trip, binds the required globals, and builds
// the virtual-input and output-tracking state. It exits the process
// (via fatal) if a required global is missing, below its minimum
// version, or if virtual-keyboard creation is refused (spec section
// 6, 7, scenario S4).
func Bootstrap(c *Context) error {
	display, err := wl.Connect("")
	if err != nil {
		return fmt.Errorf("daemon: connect to Wayland display: %w", err)
	}
	c.display = display
	c.wlCtx = display.Context()

	registry := display.GetRegistry()
	c.registry = registry
	registry.AddGlobalHandler(c)
	registry.AddGlobalRemoveHandler(c)

	if err := display.Roundtrip(); err != nil {
		return fmt.Errorf("daemon: initial roundtrip: %w", err)
	}

	for iface, minVersion := range requiredVersions {
		if iface == "wl_output" {
			continue // zero-or-more outputs are handled separately below
		}
		if err := c.requireGlobal(iface, minVersion); err != nil {
			fatal(err, "required Wayland global unavailable")
			return err
		}
	}

	if err := c.bindCore(); err != nil {
		return err
	}
	if err := c.bindExtensions(); err != nil {
		return err
	}
	if err := c.bindOutputs(); err != nil {
		return err
	}

	input, err := virtualinput.New(c.keyboardMgr, c.pointerMgr, c.seat)
	if err != nil {
		return fmt.Errorf("daemon: create virtual input: %w", err)
	}
	c.input = input

	// A second roundtrip lets the compositor's create_virtual_keyboard
	// reply (or unauthorized sentinel) land before we trust the handle
	// (spec section 6, 9).
	if err := display.Roundtrip(); err != nil {
		return fmt.Errorf("daemon: post-bind roundtrip: %w", err)
	}

	// Persistent gaps in the output layout discovered at startup are
	// fatal; gap tolerance is only for layouts disrupted later by
	// hot-unplug (spec section 7, "Tolerated layout").
	if !c.space.IsGapFree() {
		err := fmt.Errorf("daemon: output layout has a gap between outputs")
		fatal(err, "output layout is not gap-free; gaps are not supported")
		return err
	}

	if protocol.IsUnauthorized(input.KeyboardObjectID()) {
		fatal(protocol.ErrVirtualKeyboardUnauthorized, "virtual keyboard creation refused")
		return protocol.ErrVirtualKeyboardUnauthorized
	}

	return nil
}

func (c *Context) requireGlobal(iface string, minVersion uint32) error {
	for _, g := range c.globals {
		if g.Interface == iface {
			if g.Version < minVersion {
				return fmt.Errorf("daemon: %s version %d below required %d", iface, g.Version, minVersion)
			}
			return nil
		}
	}
	return fmt.Errorf("daemon: compositor does not advertise %s", iface)
}

func (c *Context) findGlobal(iface string) (uint32, uint32, bool) {
	for name, g := range c.globals {
		if g.Interface == iface {
			return name, g.Version, true
		}
	}
	return 0, 0, false
}

func (c *Context) bindCore() error {
	name, version, _ := c.findGlobal("wl_compositor")
	compositor := wl.NewCompositor(c.wlCtx)
	if err := c.registry.Bind(name, "wl_compositor", version, compositor); err != nil {
		return fmt.Errorf("daemon: bind wl_compositor: %w", err)
	}
	c.compositor = compositor

	name, version, _ = c.findGlobal("wl_shm")
	shm := protocol.NewShm(c.wlCtx)
	if err := c.registry.Bind(name, "wl_shm", version, shm); err != nil {
		return fmt.Errorf("daemon: bind wl_shm: %w", err)
	}
	c.shm = shm

	name, version, _ = c.findGlobal("wl_seat")
	seat := wl.NewSeat(c.wlCtx)
	if err := c.registry.Bind(name, "wl_seat", version, seat); err != nil {
		return fmt.Errorf("daemon: bind wl_seat: %w", err)
	}
	c.seat = seat

	physKeyboard, err := protocol.GetKeyboard(seat)
	if err != nil {
		return fmt.Errorf("daemon: get physical wl_keyboard: %w", err)
	}
	physKeyboard.OnKeymap = c.onPhysicalKeymap
	c.physKeyboard = physKeyboard

	return nil
}

func (c *Context) bindExtensions() error {
	name, version, ok := c.findGlobal(protocol.LayerShellInterface)
	if ok {
		ls := protocol.NewLayerShell(c.wlCtx)
		if err := c.registry.Bind(name, protocol.LayerShellInterface, version, ls); err != nil {
			return fmt.Errorf("daemon: bind layer shell: %w", err)
		}
		c.layerShell = ls
	}

	name, version, ok = c.findGlobal(protocol.OutputManagerInterface)
	if ok {
		om := protocol.NewOutputManager(c.wlCtx)
		if err := c.registry.Bind(name, protocol.OutputManagerInterface, version, om); err != nil {
			return fmt.Errorf("daemon: bind output manager: %w", err)
		}
		c.outputMgr = om
	}

	name, version, _ = c.findGlobal(protocol.VirtualPointerManagerInterface)
	pm := protocol.NewVirtualPointerManager(c.wlCtx)
	if err := c.registry.Bind(name, protocol.VirtualPointerManagerInterface, version, pm); err != nil {
		return fmt.Errorf("daemon: bind virtual pointer manager: %w", err)
	}
	c.pointerMgr = pm

	name, version, _ = c.findGlobal(protocol.VirtualKeyboardManagerInterface)
	km := protocol.NewVirtualKeyboardManager(c.wlCtx)
	if err := c.registry.Bind(name, protocol.VirtualKeyboardManagerInterface, version, km); err != nil {
		return fmt.Errorf("daemon: bind virtual keyboard manager: %w", err)
	}
	c.keyboardMgr = km

	return nil
}

// bindOutputs binds every currently announced wl_output and, if an
// output manager was bound, requests its logical-geometry handle
// (spec section 4.4). Outputs announced after startup are bound the
// same way from HandleRegistryGlobal.
func (c *Context) bindOutputs() error {
	for name, g := range c.globals {
		if g.Interface != "wl_output" {
			continue
		}
		if err := c.bindOneOutput(name, g.Version); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) bindOneOutput(name, version uint32) error {
	output := wl.NewOutput(c.wlCtx)
	if err := c.registry.Bind(name, "wl_output", version, output); err != nil {
		return fmt.Errorf("daemon: bind wl_output %d: %w", name, err)
	}
	c.outputs[name] = output
	c.space.Put(&geometry.Output{Handle: name, Name: name})

	output.AddGeometryHandler(&outputEventAdapter{ctx: c, name: name})
	output.AddModeHandler(&outputEventAdapter{ctx: c, name: name})
	output.AddDoneHandler(&outputEventAdapter{ctx: c, name: name})

	if c.outputMgr != nil {
		lo, err := c.outputMgr.GetXdgOutput(output)
		if err != nil {
			return fmt.Errorf("daemon: get xdg-output for %d: %w", name, err)
		}
		lo.OnDone = func(geo protocol.LogicalGeometry) {
			c.space.Put(&geometry.Output{
				Handle: name,
				Name:   name,
				Rect: geometry.Rect{
					X: geo.X, Y: geo.Y,
					W: geo.Width, H: geo.Height,
				},
				InitDone: true,
			})
			logger.Debugf("output %d logical geometry ready: %s", name, geometry.Rect{X: geo.X, Y: geo.Y, W: geo.Width, H: geo.Height})
			c.ensureOverlay(name)
		}
	}

	return nil
}

// ensureOverlay creates the per-output crosshair overlay once an
// output's geometry is known, if every object it depends on has
// already been bound (spec section 3 Output.Overlay: one overlay per
// output).
func (c *Context) ensureOverlay(name uint32) {
	if _, exists := c.overlays[name]; exists {
		return
	}
	if c.compositor == nil || c.shm == nil || c.layerShell == nil {
		return
	}
	if len(c.overlays) >= overlay.MaxDrawableLayers {
		logger.Errorf("daemon: overlay limit %d reached, no overlay for output %d", overlay.MaxDrawableLayers, name)
		return
	}
	out, ok := c.space.Get(name)
	if !ok || !out.InitDone {
		return
	}
	output, ok := c.outputs[name]
	if !ok {
		return
	}

	ov, err := overlay.New(c.rng, overlay.Config{
		Compositor: c.compositor,
		Shm:        c.shm,
		LayerShell: c.layerShell,
		Output:     output,
		OutputName: name,
		Width:      out.Rect.W,
		Height:     out.Rect.H,
	})
	if err != nil {
		logger.Errorf("daemon: create overlay for output %d: %v", name, err)
		return
	}
	c.overlays[name] = ov
}

// HandleRegistryGlobal implements the registry global-announcement
// callback. Globals are recorded as they arrive; outputs that appear
// after startup are bound immediately (spec section 7: hot-plugged
// outputs join the space without a restart). Outputs announced during
// Bootstrap's initial roundtrip are left to bindOutputs; c.input is
// set only once that has run.
func (c *Context) HandleRegistryGlobal(event wl.RegistryGlobalEvent) {
	c.globals[event.Name] = globalInfo{Interface: event.Interface, Version: event.Version}
	if event.Interface == "wl_output" && c.registry != nil && c.wlCtx != nil && c.input != nil {
		if err := c.bindOneOutput(event.Name, event.Version); err != nil {
			logger.Errorf("daemon: bind hot-plugged output: %v", err)
		}
	}
}

// HandleRegistryGlobalRemove implements the registry global-removal
// callback (spec section 7: output removal drops it from the space).
func (c *Context) HandleRegistryGlobalRemove(event wl.RegistryGlobalRemoveEvent) {
	delete(c.globals, event.Name)
	if _, ok := c.outputs[event.Name]; ok {
		delete(c.outputs, event.Name)
		c.space.Remove(event.Name)
		if ov, ok := c.overlays[event.Name]; ok {
			ov.Destroy()
			delete(c.overlays, event.Name)
		}
	}
}

// outputEventAdapter routes wl_output geometry/mode/done events for
// one output into the GlobalSpace, mirroring the logical-geometry
// path but keyed off the core protocol's physical geometry for
// compositors that never announce an extended-output-manager.
type outputEventAdapter struct {
	ctx  *Context
	name uint32
}

func (a *outputEventAdapter) HandleOutputGeometry(event wl.OutputGeometryEvent) {
	out, ok := a.ctx.space.Get(a.name)
	if !ok {
		out = &geometry.Output{Handle: a.name, Name: a.name}
	}
	out.Rect.X = event.X
	out.Rect.Y = event.Y
	a.ctx.space.Put(out)
}

func (a *outputEventAdapter) HandleOutputMode(event wl.OutputModeEvent) {
	out, ok := a.ctx.space.Get(a.name)
	if !ok {
		out = &geometry.Output{Handle: a.name, Name: a.name}
	}
	out.Rect.W = event.Width
	out.Rect.H = event.Height
	a.ctx.space.Put(out)
}

func (a *outputEventAdapter) HandleOutputDone(event wl.OutputDoneEvent) {
	out, ok := a.ctx.space.Get(a.name)
	if !ok {
		return
	}
	// Only mark InitDone here if no extended-output-manager is bound;
	// otherwise the logical-geometry OnDone callback is authoritative
	// (spec section 4.4).
	if a.ctx.outputMgr == nil {
		out.InitDone = true
		a.ctx.space.Put(out)
		a.ctx.ensureOverlay(a.name)
	}
}
