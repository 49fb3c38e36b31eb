// Package scheduler implements the anti-fingerprinting delay engine
// (spec section 4.1): a FIFO of captured input packets, each stamped
// with a release time drawn from a strong random source under
// ordering and monotonicity constraints.
package scheduler

import "github.com/ArrayBolt3/kloak-v2/internal/rng"

// Kind identifies the category of a captured input packet.
type Kind int

const (
	KeyEvent Kind = iota
	ButtonEvent
	ScrollEvent
)

// Packet is one captured non-motion event (spec section 3
// InputPacket). Pointer-motion packets are never enqueued: they are
// applied immediately to CursorPosition by the caller and do not flow
// through this type.
type Packet struct {
	Kind        Kind
	Payload     any
	ReleaseTime int64
}

// Queue is a FIFO of packets ordered by release time (spec section 3
// ScheduledQueue). Release times are monotonically non-decreasing
// along the queue by construction: admit() never produces a release
// time earlier than the previous admission's.
type Queue struct {
	rng         *rng.Source
	maxDelayMs  int64
	prevRelease int64
	items       []Packet
}

// New returns an empty Queue with the given maximum delay bound (spec
// section 4.1 "max_delay_ms", a tunable with no specified default;
// this daemon defaults to 100ms at the CLI layer, see DESIGN.md).
func New(source *rng.Source, maxDelayMs int64) *Queue {
	return &Queue{rng: source, maxDelayMs: maxDelayMs}
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// releaseTime draws this packet's release time per the algorithm in
// spec section 4.1: the lower bound enforces ordering against the
// previously admitted packet, the upper bound is now+max_delay_ms, and
// the draw between them uses rejection-sampled uniform selection.
func (q *Queue) releaseTime(now int64) (int64, error) {
	lower := clamp(q.prevRelease-now, 0, q.maxDelayMs)
	delay, err := q.rng.UniformInt(uint64(lower), uint64(q.maxDelayMs))
	if err != nil {
		return 0, err
	}
	return now + int64(delay), nil
}

// Admit appends a non-motion packet, stamping it with a release time
// per spec section 4.1. The caller must never call this for
// pointer-motion packets.
func (q *Queue) Admit(kind Kind, payload any, now int64) (Packet, error) {
	rt, err := q.releaseTime(now)
	if err != nil {
		return Packet{}, err
	}
	p := Packet{Kind: kind, Payload: payload, ReleaseTime: rt}
	q.items = append(q.items, p)
	q.prevRelease = rt
	return p, nil
}

// NextReleaseTime returns the release time of the head packet, or
// false if the queue is empty.
func (q *Queue) NextReleaseTime() (int64, bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	return q.items[0].ReleaseTime, true
}

// Len reports the number of packets currently queued.
func (q *Queue) Len() int {
	return len(q.items)
}

// DrainReady removes every packet whose release time has arrived (<=
// now), in queue order, calling emit on each. Draining is stable:
// equal release times preserve admit order, which holds automatically
// since items are appended in admit order and drained front-to-back.
func (q *Queue) DrainReady(now int64, emit func(Packet)) {
	i := 0
	for i < len(q.items) && q.items[i].ReleaseTime <= now {
		emit(q.items[i])
		i++
	}
	if i == 0 {
		return
	}
	remaining := len(q.items) - i
	copy(q.items, q.items[i:])
	q.items = q.items[:remaining]
}
