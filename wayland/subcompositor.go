package wayland

import (
	"slices"

	"github.com/mstarongithub/wayshell/geometry"
	"github.com/mstarongithub/wayshell/util/signal"
	"github.com/mstarongithub/wayshell/wire"
)

var subcompositorInterface = Interface{
	Name:     "wl_subcompositor",
	Version:  1,
	Requests: []string{"destroy", "get_subsurface"},
}

var subsurfaceInterface = Interface{
	Name:     "wl_subsurface",
	Version:  1,
	Requests: []string{"destroy", "set_position", "place_above", "place_below", "set_sync", "set_desync"},
}

const (
	SubcompositorErrorBadSurface uint32 = 0
	SubcompositorErrorBadParent  uint32 = 1

	SubsurfaceErrorBadSurface uint32 = 0
)

type Subcompositor struct {
	global *Global
}

func NewSubcompositor(d *Display) *Subcompositor {
	s := &Subcompositor{}
	s.global = d.CreateGlobal(&subcompositorInterface, func(c *Client, version, id uint32) error {
		return c.AddObject(id, &subcompositorInterface, version, &subcompositorResource{})
	})
	return s
}

type subcompositorResource struct {
	Resource
}

func (r *subcompositorResource) Dispatch(opcode uint16, args *wire.Decoder) error {
	if opcode == 0 {
		r.Destroy()
		return nil
	}
	id, surfaceID, parentID := args.NewID(), args.Object(), args.Object()
	if args.Err() != nil {
		return nil
	}
	surface, ok := r.client.Object(surfaceID).(*Surface)
	if !ok {
		return r.Errorf(ErrorInvalidObject, "object %d is not a wl_surface", surfaceID)
	}
	parent, ok := r.client.Object(parentID).(*Surface)
	if !ok {
		return r.Errorf(ErrorInvalidObject, "object %d is not a wl_surface", parentID)
	}
	if surface == parent {
		return r.Errorf(SubcompositorErrorBadParent, "wl_surface@%d cannot be its own parent", surfaceID)
	}
	for p := parent; p != nil && p.subsurface != nil; p = p.subsurface.parent {
		if p.subsurface.parent == surface {
			return r.Errorf(SubcompositorErrorBadParent, "wl_surface@%d is an ancestor of its parent", surfaceID)
		}
	}
	sub := &Subsurface{surface: surface, parent: parent, sync: true}
	if err := surface.SetRole(sub); err != nil {
		return r.Errorf(SubcompositorErrorBadSurface, "wl_surface@%d already has a role", surfaceID)
	}
	if err := r.client.AddObject(id, &subsurfaceInterface, r.version, sub); err != nil {
		surface.ClearRole(sub)
		return err
	}
	surface.subsurface = sub
	parent.pendingOrder = append(parent.pendingOrder, sub)
	parent.ChildSubsurfaceAdded.Emit(sub)
	return nil
}

// Subsurface is a wl_subsurface: a surface positioned relative to its parent
type Subsurface struct {
	Resource
	surface *Surface
	// parent is nil once the parent surface was destroyed
	parent *Surface

	position        geometry.Point
	pendingPosition *geometry.Point
	sync            bool

	PositionChanged signal.Signal[geometry.Point]
}

func (s *Subsurface) RoleName() string {
	return "wl_subsurface"
}

func (s *Subsurface) CommitRole() error {
	return nil
}

func (s *Subsurface) Surface() *Surface {
	return s.surface
}

func (s *Subsurface) Parent() *Surface {
	return s.parent
}

// Position is relative to the parent's top left corner
func (s *Subsurface) Position() geometry.Point {
	return s.position
}

// IsSynchronized reports whether commits are cached until the parent commits,
// either because of this sub-surface's own mode or an ancestor's
func (s *Subsurface) IsSynchronized() bool {
	for sub := s; sub != nil; {
		if sub.sync {
			return true
		}
		if sub.parent == nil {
			return false
		}
		sub = sub.parent.subsurface
	}
	return false
}

func (s *Subsurface) Dispatch(opcode uint16, args *wire.Decoder) error {
	switch opcode {
	case 0:
		s.Destroy()
	case 1: // set_position
		x, y := args.Int(), args.Int()
		if args.Err() != nil {
			return nil
		}
		s.pendingPosition = &geometry.Point{X: int(x), Y: int(y)}
	case 2, 3: // place_above, place_below
		id := args.Object()
		if args.Err() != nil {
			return nil
		}
		return s.place(id, opcode == 2)
	case 4:
		s.sync = true
	case 5:
		wasSync := s.IsSynchronized()
		s.sync = false
		if wasSync && !s.IsSynchronized() && s.surface.hasCached {
			st := s.surface.takeState()
			return s.surface.apply(&st)
		}
	}
	return nil
}

func (s *Subsurface) place(siblingID uint32, above bool) error {
	if s.parent == nil {
		return nil
	}
	target, ok := s.client.Object(siblingID).(*Surface)
	if !ok {
		return s.Errorf(SubsurfaceErrorBadSurface, "object %d is not a wl_surface", siblingID)
	}
	var sibling *Subsurface
	if target != s.parent {
		if target.subsurface == nil || target.subsurface.parent != s.parent || target == s.surface {
			return s.Errorf(SubsurfaceErrorBadSurface, "wl_surface@%d is not a sibling or the parent", siblingID)
		}
		sibling = target.subsurface
	}
	order := s.parent.pendingOrder
	order = slices.DeleteFunc(order, func(o *Subsurface) bool { return o == s })
	idx := slices.Index(order, sibling)
	if above {
		idx++
	}
	s.parent.pendingOrder = slices.Insert(order, idx, s)
	return nil
}

// parentCommitted applies the state that waits for the parent's commit
func (s *Subsurface) parentCommitted() {
	if s.pendingPosition != nil {
		pos := *s.pendingPosition
		s.pendingPosition = nil
		if pos != s.position {
			s.position = pos
			s.PositionChanged.Emit(pos)
		}
	}
	if s.surface.hasCached && s.IsSynchronized() {
		st := s.surface.takeState()
		s.surface.apply(&st)
	}
}

// detach removes the sub-surface from its parent's stacking order
func (s *Subsurface) detach() {
	if s.parent == nil {
		return
	}
	parent := s.parent
	s.parent = nil
	notThis := func(o *Subsurface) bool { return o == s }
	parent.order = slices.DeleteFunc(parent.order, notThis)
	parent.pendingOrder = slices.DeleteFunc(parent.pendingOrder, notThis)
	parent.ChildSubsurfaceRemoved.Emit(s)
}

func (s *Subsurface) HandleDestroy() {
	wasMapped := s.surface.IsMapped()
	s.detach()
	if s.surface.subsurface == s {
		s.surface.subsurface = nil
	}
	s.surface.ClearRole(s)
	if wasMapped {
		s.surface.Unmapped.Emit(signal.Void{})
	}
}
