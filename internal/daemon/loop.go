package daemon

import (
	"errors"
	"time"

	"github.com/bnema/wlturbo/wl"
	"golang.org/x/sys/unix"

	"github.com/ArrayBolt3/kloak-v2/internal/capture"
	"github.com/ArrayBolt3/kloak-v2/internal/geometry"
	"github.com/ArrayBolt3/kloak-v2/internal/logger"
	"github.com/ArrayBolt3/kloak-v2/internal/protocol"
	"github.com/ArrayBolt3/kloak-v2/internal/scheduler"
	"github.com/ArrayBolt3/kloak-v2/internal/virtualinput"
)

// hotplugPollInterval bounds how often /dev/input is re-scanned for
// newly attached devices when the poll set is otherwise idle.
const hotplugPollInterval = 2 * time.Second

// Raw evdev REL_*/ABS_* codes this loop cares about (spec section 4:
// motion-vs-non-motion split). ABS_X/ABS_Y happen to share the same
// numeric values as REL_X/REL_Y; each event type has its own
// independent code namespace in evdev, so this is coincidence, not a
// shared constant.
const (
	relX      = 0x00
	relY      = 0x01
	relHWheel = 0x06
	absX      = 0x00
	absY      = 0x01
)

// keyAdmission pairs a captured key packet with the physical modifier
// snapshot taken at admission time, so the two are replayed together,
// atomically, when the scheduler releases the packet (spec section
// 4.5, testable property 8, "modifier atomicity").
type keyAdmission struct {
	packet    capture.Packet
	modifiers virtualinput.Modifiers
}

// MainEventLoop runs the single-threaded cooperative loop: one pass
// multiplexes the Wayland display fd and every captured device fd
// with golang.org/x/sys/unix.Poll, timing out at the scheduler's next
// release so delayed packets are never held past their deadline (spec
// section 5, the seven-step loop; section 9, "Threading model"
// redesign: no goroutines or locks guard this state, since it is only
// ever touched from this one loop).
func MainEventLoop(c *Context) error {
	added, err := c.devices.Scan()
	if err != nil {
		return err
	}
	logger.Infof("capturing %d input device(s)", len(added))

	lastHotplugScan := c.NowMillis()
	c.scheduleKeepAlive(lastHotplugScan)

	for {
		timeout := c.pollTimeout()
		fds, order := c.buildPollSet()

		n, err := unix.Poll(fds, timeout)
		if err != nil && !errors.Is(err, unix.EINTR) {
			return err
		}

		// Service the Wayland connection first so protocol events
		// (buffer release, output changes) land before we act below.
		if n > 0 && fds[0].Revents&unix.POLLIN != 0 {
			if err := c.wlCtx.Dispatch(); err != nil {
				return err
			}
		}

		if n > 0 {
			for i := 1; i < len(fds); i++ {
				if fds[i].Revents&unix.POLLIN == 0 {
					continue
				}
				c.handleDeviceReadable(order[i-1])
			}
		}

		now := c.NowMillis()
		c.queue.DrainReady(now, c.emitPacket)
		c.redrawOverlays()

		if now >= c.nextKeepAlive {
			c.emitKeepAlive(now)
		}

		if now-lastHotplugScan >= hotplugPollInterval.Milliseconds() {
			c.scanDevices()
			lastHotplugScan = now
		}
	}
}

func (c *Context) pollTimeout() int {
	deadline := c.nextKeepAlive
	if rt, ok := c.queue.NextReleaseTime(); ok && rt < deadline {
		deadline = rt
	}
	wait := deadline - c.NowMillis()
	if wait < 0 {
		wait = 0
	}
	if ms := hotplugPollInterval.Milliseconds(); wait > ms {
		wait = ms
	}
	return int(wait)
}

// scheduleKeepAlive draws the next idle cursor keep-alive deadline,
// randomized within [now, now+max_delay_ms] so the synthetic motion
// event does not itself introduce a fixed-period timing signal (spec
// section 5 step 7).
func (c *Context) scheduleKeepAlive(now int64) {
	delay, err := c.rng.UniformInt(0, uint64(c.cfg.MaxDelayMs))
	if err != nil {
		logger.Errorf("daemon: schedule keep-alive: %v", err)
		c.nextKeepAlive = now + c.cfg.MaxDelayMs
		return
	}
	c.nextKeepAlive = now + int64(delay)
}

// emitKeepAlive sends a synthetic absolute-motion event at the
// cursor's current position so compositors do not hide the pointer
// during an idle period (spec section 5 step 7), then reschedules.
func (c *Context) emitKeepAlive(now int64) {
	defer c.scheduleKeepAlive(now)

	box, ok := c.space.BoundingBox()
	if !ok {
		return
	}
	point := c.cursorP.Point()
	x := uint32(point.X - box.X)
	y := uint32(point.Y - box.Y)
	if err := c.input.EmitMotionAbsolute(uint32(now), x, y, uint32(box.W), uint32(box.H)); err != nil {
		logger.Errorf("daemon: emit keep-alive: %v", err)
	}
}

func (c *Context) buildPollSet() ([]unix.PollFd, []*capture.Device) {
	devices := c.devices.All()
	fds := make([]unix.PollFd, 0, len(devices)+1)
	fds = append(fds, unix.PollFd{Fd: int32(c.wlCtx.Fd()), Events: unix.POLLIN})
	for _, d := range devices {
		fds = append(fds, unix.PollFd{Fd: int32(d.Fd()), Events: unix.POLLIN})
	}
	return fds, devices
}

func (c *Context) scanDevices() {
	removed := c.devices.Reconcile()
	for _, d := range removed {
		logger.Warnf("input device %s disappeared, releasing it", d.Path)
	}
	added, err := c.devices.Scan()
	if err != nil {
		fatal(err, "rescan input devices failed")
		return
	}
	for _, d := range added {
		logger.Infof("capturing new input device %s (%s)", d.Path, d.Name)
	}
}

func (c *Context) handleDeviceReadable(dev *capture.Device) {
	packets, err := dev.ReadPackets()
	if err != nil {
		logger.Warnf("daemon: read %s failed, dropping device: %v", dev.Path, err)
		c.devices.Remove(dev.Path)
		return
	}
	for _, p := range packets {
		c.admit(p)
	}
}

// admit routes one raw capture packet onto its admission path: motion
// updates the cursor immediately, everything else goes through the
// delay scheduler (spec section 4, motion-vs-non-motion split).
func (c *Context) admit(p capture.Packet) {
	now := c.NowMillis()
	switch p.Kind {
	case capture.Motion:
		c.applyMotion(p)
	case capture.MotionAbs:
		c.applyMotionAbs(p)
	case capture.Key:
		mods := c.modifiers.Track(p.Code, p.Pressed)
		ka := keyAdmission{packet: p, modifiers: mods}
		if _, err := c.queue.Admit(scheduler.KeyEvent, ka, now); err != nil {
			logger.Errorf("daemon: admit key event: %v", err)
		}
	case capture.Button:
		if _, err := c.queue.Admit(scheduler.ButtonEvent, p, now); err != nil {
			logger.Errorf("daemon: admit button event: %v", err)
		}
	case capture.Scroll:
		if _, err := c.queue.Admit(scheduler.ScrollEvent, p, now); err != nil {
			logger.Errorf("daemon: admit scroll event: %v", err)
		}
	}
}

func (c *Context) applyMotion(p capture.Packet) {
	var dx, dy float64
	if p.Code == relX {
		dx = float64(p.Value)
	} else if p.Code == relY {
		dy = float64(p.Value)
	}
	c.cursorP.ApplyRelative(dx, dy, c.space)

	now := uint32(c.NowMillis())
	if err := c.input.EmitMotion(now, wl.Fixed(dx*256), wl.Fixed(dy*256)); err != nil {
		logger.Errorf("daemon: emit motion: %v", err)
	}
}

// applyMotionAbs normalizes one absolute-axis reading into global
// pixel space against the current output bounding box and walks the
// cursor there, mirroring applyMotion's immediate-apply path (spec
// section 3 InputPacket: POINTER_MOTION_ABS is never enqueued).
func (c *Context) applyMotionAbs(p capture.Packet) {
	box, ok := c.space.BoundingBox()
	if !ok || p.AbsMax <= p.AbsMin {
		return
	}
	frac := float64(p.Value-p.AbsMin) / float64(p.AbsMax-p.AbsMin)

	x, y := c.cursorP.X, c.cursorP.Y
	switch p.Code {
	case absX:
		x = float64(box.X) + frac*float64(box.W)
	case absY:
		y = float64(box.Y) + frac*float64(box.H)
	}
	end := c.cursorP.ApplyAbsolute(x, y, c.space)

	now := uint32(c.NowMillis())
	ex := uint32(end.X - box.X)
	ey := uint32(end.Y - box.Y)
	if err := c.input.EmitMotionAbsolute(now, ex, ey, uint32(box.W), uint32(box.H)); err != nil {
		logger.Errorf("daemon: emit absolute motion: %v", err)
	}
}

// emitPacket replays one packet released by the delay scheduler
// through the virtual keyboard/pointer.
func (c *Context) emitPacket(pkt scheduler.Packet) {
	t := uint32(pkt.ReleaseTime)
	switch pkt.Kind {
	case scheduler.KeyEvent:
		ka, ok := pkt.Payload.(keyAdmission)
		if !ok {
			return
		}
		// Modifiers are pushed before the key they accompany, in the
		// same loop iteration, so the pair lands atomically (spec
		// section 4.5, section 5 "Ordering guarantees").
		if err := c.input.SyncModifiers(ka.modifiers); err != nil {
			logger.Errorf("daemon: sync modifiers: %v", err)
		}
		if err := c.input.EmitKey(t, uint32(ka.packet.Code), ka.packet.Pressed); err != nil {
			logger.Errorf("daemon: emit key: %v", err)
		}
	case scheduler.ButtonEvent:
		p, ok := pkt.Payload.(capture.Packet)
		if !ok {
			return
		}
		if err := c.input.EmitButton(t, uint32(p.Code), p.Pressed); err != nil {
			logger.Errorf("daemon: emit button: %v", err)
		}
	case scheduler.ScrollEvent:
		p, ok := pkt.Payload.(capture.Packet)
		if !ok {
			return
		}
		axis := scrollAxis(p.Code)
		value := wl.Fixed(p.Value * 256)
		if err := c.input.EmitScroll(t, axis, value, protocol.AxisSourceWheel); err != nil {
			logger.Errorf("daemon: emit scroll: %v", err)
		}
	}
}

// redrawOverlays drives every overlay once per loop iteration: the one
// containing the cursor gets a fresh crosshair, every other overlay
// that still has a crosshair drawn from a previous frame gets cleared
// (spec section 4.2: the walker flags frame_pending on both the
// overlay of the previous position and the overlay of the new
// position; section 4.3's clear-then-draw contract applies to both).
func (c *Context) redrawOverlays() {
	point := c.cursorP.Point()
	for name, ov := range c.overlays {
		out, ok := c.space.Get(name)
		if !ok || !out.InitDone {
			continue
		}
		if out.Rect.Contains(point) {
			local := geometry.Point{X: point.X - out.Rect.X, Y: point.Y - out.Rect.Y}
			if err := ov.DrawCursor(local.X, local.Y); err != nil {
				logger.Errorf("daemon: draw overlay for output %d: %v", name, err)
			}
			continue
		}
		if err := ov.ClearCursor(); err != nil {
			logger.Errorf("daemon: clear overlay for output %d: %v", name, err)
		}
	}
}

func scrollAxis(code uint16) uint32 {
	if code == relHWheel {
		return protocol.AxisHorizontalScroll
	}
	return protocol.AxisVerticalScroll
}
