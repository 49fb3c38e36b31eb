package protocol

import (
	"github.com/bnema/wlturbo/wl"
)

// Protocol interface names and minimum versions (spec section 6). This
// is the "extended-output-manager" of spec section 4.4: xdg-output,
// which hands out one zxdg_output_v1 "logical-geometry handle" per
// wl_output, reporting logical position/size in compositor global
// space (the coordinate system OutputGeometry and GlobalSpace work
// in).
const (
	OutputManagerInterface = "zxdg_output_manager_v1"
	OutputInterface        = "zxdg_output_v1"
	OutputManagerVersion   = 3
)

// OutputManager is the zxdg_output_manager_v1 global.
type OutputManager struct {
	wl.BaseProxy
}

// NewOutputManager wraps an already-bound manager object.
func NewOutputManager(ctx *wl.Context) *OutputManager {
	m := &OutputManager{}
	m.SetContext(ctx)
	return m
}

// GetXdgOutput creates the logical-geometry handle for a wl_output
// (spec section 4.4: "create the matching logical-geometry handle").
func (m *OutputManager) GetXdgOutput(output *wl.Output) (*LogicalOutput, error) {
	lo := &LogicalOutput{}
	lo.SetContext(m.Context())
	lo.SetID(m.Context().AllocateID())
	m.Context().Register(lo)

	const opcode = 1 // get_xdg_output
	if err := m.Context().SendRequest(m, opcode, lo, output); err != nil {
		m.Context().Unregister(lo)
		return nil, err
	}
	return lo, nil
}

// Dispatch handles events for the manager object, which has none.
func (m *OutputManager) Dispatch(_ *wl.Event) {}

// LogicalGeometry is the logical position and size reported for one
// output (spec section 3 Output: "logical origin (x, y)... logical
// size (width, height)").
type LogicalGeometry struct {
	X, Y          int32
	Width, Height int32
}

// LogicalOutput is a zxdg_output_v1 object.
type LogicalOutput struct {
	wl.BaseProxy

	pending LogicalGeometry
	// OnDone fires once the initial (or updated) burst of geometry
	// events for this output has been received in full, mirroring the
	// Output.InitDone gate in spec section 3/7.
	OnDone func(LogicalGeometry)
}

// Destroy releases the logical-geometry handle.
func (lo *LogicalOutput) Destroy() error {
	lo.Context().Unregister(lo)
	return nil
}

// Dispatch decodes logical_position/logical_size/done events,
// accumulating into a pending geometry that is only surfaced through
// OnDone once complete (spec section 7: "an output whose geometry is
// not yet complete... is silently ignored until its geometry-done
// signal").
func (lo *LogicalOutput) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // logical_position
		lo.pending.X = event.Int32()
		lo.pending.Y = event.Int32()
	case 1: // logical_size
		lo.pending.Width = event.Int32()
		lo.pending.Height = event.Int32()
	case 2: // done
		if lo.OnDone != nil {
			lo.OnDone(lo.pending)
		}
	case 3, 4: // name, description: not consumed by this daemon
	}
}
