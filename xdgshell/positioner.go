package xdgshell

import (
	"github.com/mstarongithub/wayshell/geometry"
	"github.com/mstarongithub/wayshell/wayland"
	"github.com/mstarongithub/wayshell/wire"
)

// constraint_adjustment bits
const (
	AdjustSlideX  uint32 = 1
	AdjustSlideY  uint32 = 2
	AdjustFlipX   uint32 = 4
	AdjustFlipY   uint32 = 8
	AdjustResizeX uint32 = 16
	AdjustResizeY uint32 = 32
)

// Positioner describes where a popup goes relative to its parent's window geometry
type Positioner struct {
	Size       geometry.Size
	AnchorRect geometry.Rect
	Anchor     geometry.Edges
	Gravity    geometry.Edges
	Offset     geometry.Point

	Slide  geometry.Orientations
	Flip   geometry.Orientations
	Resize geometry.Orientations
}

// IsComplete reports whether size and anchor rect were both set to something usable
func (p Positioner) IsComplete() bool {
	return p.Size.Width > 0 && p.Size.Height > 0 && p.AnchorRect.IsValid()
}

// SetConstraintAdjustment decodes the protocol bitmask
func (p *Positioner) SetConstraintAdjustment(bits uint32) {
	axes := func(x, y uint32) geometry.Orientations {
		var o geometry.Orientations
		if bits&x != 0 {
			o |= geometry.Horizontal
		}
		if bits&y != 0 {
			o |= geometry.Vertical
		}
		return o
	}
	p.Slide = axes(AdjustSlideX, AdjustSlideY)
	p.Flip = axes(AdjustFlipX, AdjustFlipY)
	p.Resize = axes(AdjustResizeX, AdjustResizeY)
}

// stable anchor and gravity enum, indexed by wire value
var stableEdges = [...]geometry.Edges{
	geometry.EdgeNone,
	geometry.EdgeTop,
	geometry.EdgeBottom,
	geometry.EdgeLeft,
	geometry.EdgeRight,
	geometry.EdgeTop | geometry.EdgeLeft,
	geometry.EdgeBottom | geometry.EdgeLeft,
	geometry.EdgeTop | geometry.EdgeRight,
	geometry.EdgeBottom | geometry.EdgeRight,
}

// decodeEdges turns an anchor or gravity argument into edges. ok is false for
// values the variant cannot express.
func (v Variant) decodeEdges(value uint32) (edges geometry.Edges, ok bool) {
	if v == Stable {
		if value >= uint32(len(stableEdges)) {
			return 0, false
		}
		return stableEdges[value], true
	}
	edges = geometry.Edges(value)
	if value&^uint32(geometry.EdgesAll) != 0 || edges.HasOpposing() {
		return 0, false
	}
	return edges, true
}

// PositionerResource is the protocol object building a Positioner
type PositionerResource struct {
	wayland.Resource
	variant    Variant
	positioner Positioner
}

// Positioner returns a copy of the state set so far
func (r *PositionerResource) Positioner() Positioner {
	return r.positioner
}

func (r *PositionerResource) Dispatch(opcode uint16, args *wire.Decoder) error {
	switch opcode {
	case 0: // destroy
		r.Destroy()
	case 1: // set_size
		w, h := args.Int(), args.Int()
		if args.Err() != nil {
			return nil
		}
		if w < 1 || h < 1 {
			return r.Errorf(PositionerErrorInvalidInput, "width and height must be positive and non-zero")
		}
		r.positioner.Size = geometry.Size{Width: int(w), Height: int(h)}
	case 2: // set_anchor_rect
		x, y, w, h := args.Int(), args.Int(), args.Int(), args.Int()
		if args.Err() != nil {
			return nil
		}
		if w < 1 || h < 1 {
			return r.Errorf(PositionerErrorInvalidInput, "width and height must be positive and non-zero")
		}
		r.positioner.AnchorRect = geometry.Rect{X: int(x), Y: int(y), Width: int(w), Height: int(h)}
	case 3, 4: // set_anchor, set_gravity
		value := args.Uint()
		if args.Err() != nil {
			return nil
		}
		edges, ok := r.variant.decodeEdges(value)
		if !ok {
			return r.Errorf(PositionerErrorInvalidInput, "invalid %s value %d", positionerRequests[opcode][4:], value)
		}
		if opcode == 3 {
			r.positioner.Anchor = edges
		} else {
			r.positioner.Gravity = edges
		}
	case 5: // set_constraint_adjustment
		bits := args.Uint()
		if args.Err() != nil {
			return nil
		}
		r.positioner.SetConstraintAdjustment(bits)
	case 6: // set_offset
		x, y := args.Int(), args.Int()
		if args.Err() != nil {
			return nil
		}
		r.positioner.Offset = geometry.Point{X: int(x), Y: int(y)}
	}
	return nil
}
