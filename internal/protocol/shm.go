package protocol

import (
	"github.com/bnema/wlturbo/wl"
)

// ShmFormatArgb8888 is the wl_shm pixel format the overlay's pool
// buffers are created in (spec section 4.3: the crosshair is drawn in
// ARGB8888).
const ShmFormatArgb8888 uint32 = 0

// Shm is the wl_shm global. Pool creation goes over
// Context.SendRequestWithFDs rather than SendRequest, since
// wl_shm.create_pool is the one request in this package that passes a
// file descriptor as ancillary data alongside the message.
type Shm struct {
	wl.BaseProxy
}

// NewShm wraps an already-bound wl_shm object.
func NewShm(ctx *wl.Context) *Shm {
	s := &Shm{}
	s.SetContext(ctx)
	return s
}

// CreatePool sends wl_shm.create_pool, handing the compositor fd (the
// shared-memory segment backing the pool) and its size.
func (s *Shm) CreatePool(fd int, size int32) (*ShmPool, error) {
	pool := &ShmPool{}
	pool.SetContext(s.Context())
	pool.SetID(s.Context().AllocateID())
	s.Context().Register(pool)

	const opcode = 0 // create_pool
	if err := s.Context().SendRequestWithFDs(s, opcode, []int{fd}, pool, size); err != nil {
		s.Context().Unregister(pool)
		return nil, err
	}
	return pool, nil
}

// Dispatch handles events for the global object, which has none.
func (s *Shm) Dispatch(_ *wl.Event) {}

// ShmPool is a wl_shm_pool object.
type ShmPool struct {
	wl.BaseProxy
}

// CreateBuffer sends wl_shm_pool.create_buffer, returning a handle for
// the new wl_buffer.
func (p *ShmPool) CreateBuffer(offset, width, height, stride int32, format uint32) (*ShmBuffer, error) {
	buf := &ShmBuffer{}
	buf.SetContext(p.Context())
	buf.SetID(p.Context().AllocateID())
	p.Context().Register(buf)

	const opcode = 0 // create_buffer
	if err := p.Context().SendRequest(p, opcode, offset, width, height, stride, format); err != nil {
		p.Context().Unregister(buf)
		return nil, err
	}
	return buf, nil
}

// Destroy sends wl_shm_pool.destroy.
func (p *ShmPool) Destroy() error {
	const opcode = 1 // destroy
	err := p.Context().SendRequest(p, opcode)
	p.Context().Unregister(p)
	return err
}

// Dispatch handles events for the pool object, which has none.
func (p *ShmPool) Dispatch(_ *wl.Event) {}

// ShmBuffer is a wl_buffer object backed by a wl_shm_pool. Released
// buffers fire OnRelease so the overlay knows it is safe to draw into
// the shared memory again (spec section 4.3).
type ShmBuffer struct {
	wl.BaseProxy

	OnRelease func()
}

// Dispatch decodes the buffer's single event, release.
func (b *ShmBuffer) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // release
		if b.OnRelease != nil {
			b.OnRelease()
		}
	}
}

// Destroy sends wl_buffer.destroy.
func (b *ShmBuffer) Destroy() error {
	const opcode = 0 // destroy
	err := b.Context().SendRequest(b, opcode)
	b.Context().Unregister(b)
	return err
}

// wl_surface request opcodes, from the core protocol (wayland.xml).
// The overlay drives its surface through these directly rather than
// through native *wl.Surface helper methods, since attach/damage
// target a buffer type (ShmBuffer) this package defines.
const (
	surfaceOpAttach       = 1
	surfaceOpDamage       = 2
	surfaceOpCommit       = 6
	surfaceOpDamageBuffer = 9
)

// AttachBuffer sends wl_surface.attach.
func AttachBuffer(surface *wl.Surface, buf *ShmBuffer, x, y int32) error {
	return surface.Context().SendRequest(surface, surfaceOpAttach, buf, x, y)
}

// DamageBuffer sends wl_surface.damage_buffer, marking a region of the
// attached buffer (in buffer-local coordinates) as changed.
func DamageBuffer(surface *wl.Surface, x, y, width, height int32) error {
	return surface.Context().SendRequest(surface, surfaceOpDamageBuffer, x, y, width, height)
}

// CommitSurface sends wl_surface.commit.
func CommitSurface(surface *wl.Surface) error {
	return surface.Context().SendRequest(surface, surfaceOpCommit)
}
