package wayland

import (
	"slices"

	"github.com/mstarongithub/wayshell/geometry"
	"github.com/mstarongithub/wayshell/util/signal"
	"github.com/mstarongithub/wayshell/wire"
)

var surfaceInterface = Interface{
	Name:    "wl_surface",
	Version: 4,
	Requests: []string{
		"destroy", "attach", "damage", "frame", "set_opaque_region", "set_input_region",
		"commit", "set_buffer_transform", "set_buffer_scale", "damage_buffer", "offset",
	},
}

const (
	surfaceEventEnter = 0
	surfaceEventLeave = 1
)

// wl_surface error codes
const (
	SurfaceErrorInvalidScale     uint32 = 0
	SurfaceErrorInvalidTransform uint32 = 1
	SurfaceErrorInvalidSize      uint32 = 2
	SurfaceErrorInvalidOffset    uint32 = 3
	SurfaceErrorDefunctRole      uint32 = 4
)

// Buffer is content a client can attach to a surface
type Buffer interface {
	Object
	Size() geometry.Size
	// Release tells the client the compositor is done reading the buffer
	Release()
}

// SurfaceRole is the object giving a surface its meaning, like an xdg_surface or a sub-surface
type SurfaceRole interface {
	RoleName() string
	// CommitRole runs after the new state was applied and before Committed fires
	CommitRole() error
}

type surfaceState struct {
	attached bool
	buffer   Buffer
	offset   geometry.Point

	damage       []geometry.Rect
	bufferDamage []geometry.Rect
	callbacks    []*Callback

	opaqueSet bool
	opaque    RegionData
	inputSet  bool
	input     RegionData

	transformSet bool
	transform    int32
	scaleSet     bool
	scale        int32
}

// mergeInto layers s on top of dst
func (s *surfaceState) mergeInto(dst *surfaceState) {
	if s.attached {
		dst.attached = true
		dst.buffer = s.buffer
		dst.offset = dst.offset.Add(s.offset)
	}
	dst.damage = append(dst.damage, s.damage...)
	dst.bufferDamage = append(dst.bufferDamage, s.bufferDamage...)
	dst.callbacks = append(dst.callbacks, s.callbacks...)
	if s.opaqueSet {
		dst.opaqueSet, dst.opaque = true, s.opaque
	}
	if s.inputSet {
		dst.inputSet, dst.input = true, s.input
	}
	if s.transformSet {
		dst.transformSet, dst.transform = true, s.transform
	}
	if s.scaleSet {
		dst.scaleSet, dst.scale = true, s.scale
	}
}

// Surface is a wl_surface. State written by requests stays pending until commit.
type Surface struct {
	Resource
	compositor *Compositor

	pending   surfaceState
	cached    surfaceState
	hasCached bool

	buffer    Buffer
	size      geometry.Size
	offset    geometry.Point
	scale     int32
	transform int32
	opaque    RegionData
	input     RegionData
	damage    []geometry.Rect
	callbacks []*Callback

	role     SurfaceRole
	roleName string

	// subsurface is set when this surface has the sub-surface role
	subsurface *Subsurface
	// order is the stacking of this surface and its children, bottom to top. nil stands for this surface.
	order        []*Subsurface
	pendingOrder []*Subsurface

	outputs []*Output

	Committed              signal.Signal[signal.Void]
	SizeChanged            signal.Signal[geometry.Size]
	Mapped                 signal.Signal[signal.Void]
	Unmapped               signal.Signal[signal.Void]
	ChildSubsurfaceAdded   signal.Signal[*Subsurface]
	ChildSubsurfaceRemoved signal.Signal[*Subsurface]
}

func newSurface(c *Compositor) *Surface {
	return &Surface{
		compositor:   c,
		scale:        1,
		order:        []*Subsurface{nil},
		pendingOrder: []*Subsurface{nil},
	}
}

func (s *Surface) Buffer() Buffer {
	return s.buffer
}

// Size is the surface size in surface local coordinates
func (s *Surface) Size() geometry.Size {
	return s.size
}

func (s *Surface) Scale() int32 {
	return s.scale
}

func (s *Surface) InputRegion() RegionData {
	return s.input
}

// HasPendingBuffer reports whether a buffer is attached but not yet committed
func (s *Surface) HasPendingBuffer() bool {
	return s.pending.attached && s.pending.buffer != nil
}

func (s *Surface) IsMapped() bool {
	if s.buffer == nil || s.IsDestroyed() {
		return false
	}
	if s.subsurface != nil {
		p := s.subsurface.parent
		return p != nil && p.IsMapped()
	}
	return true
}

func (s *Surface) Role() SurfaceRole {
	return s.role
}

// SetRole gives the surface a role. A surface keeps the name of its first role forever
// and can only hold one role object at a time.
func (s *Surface) SetRole(role SurfaceRole) error {
	if s.role != nil || (s.roleName != "" && s.roleName != role.RoleName()) {
		return &ProtocolError{
			Object:    s.id,
			Interface: surfaceInterface.Name,
			Code:      SurfaceErrorDefunctRole,
			Message:   "surface already has role " + s.roleName,
		}
	}
	s.role = role
	s.roleName = role.RoleName()
	return nil
}

// ClearRole drops the role object, leaving the role name
func (s *Surface) ClearRole(role SurfaceRole) {
	if s.role == role {
		s.role = nil
	}
}

// Subsurface returns the sub-surface role object, if any
func (s *Surface) Subsurface() *Subsurface {
	return s.subsurface
}

// Subsurfaces returns the children in stacking order, bottom to top
func (s *Surface) Subsurfaces() []*Subsurface {
	out := make([]*Subsurface, 0, len(s.order))
	for _, sub := range s.order {
		if sub != nil {
			out = append(out, sub)
		}
	}
	return out
}

// BoundingRect is the union of this surface and all mapped sub-surfaces, in local coordinates
func (s *Surface) BoundingRect() geometry.Rect {
	r := geometry.NewRect(geometry.Point{}, s.size)
	for _, sub := range s.Subsurfaces() {
		if !sub.surface.IsMapped() {
			continue
		}
		r = r.United(sub.surface.BoundingRect().Translated(sub.position))
	}
	return r
}

func (s *Surface) Dispatch(opcode uint16, args *wire.Decoder) error {
	switch opcode {
	case 0: // destroy
		s.Destroy()
	case 1: // attach
		bufID := args.Object()
		x, y := args.Int(), args.Int()
		if args.Err() != nil {
			return nil
		}
		var buf Buffer
		if bufID != 0 {
			obj, ok := s.client.Object(bufID).(Buffer)
			if !ok {
				return s.Errorf(ErrorInvalidObject, "object %d is not a wl_buffer", bufID)
			}
			buf = obj
		}
		s.pending.attached = true
		s.pending.buffer = buf
		s.pending.offset = geometry.Point{X: int(x), Y: int(y)}
	case 2, 9: // damage, damage_buffer
		r := geometry.Rect{X: int(args.Int()), Y: int(args.Int()), Width: int(args.Int()), Height: int(args.Int())}
		if args.Err() != nil {
			return nil
		}
		if opcode == 2 {
			s.pending.damage = append(s.pending.damage, r)
		} else {
			s.pending.bufferDamage = append(s.pending.bufferDamage, r)
		}
	case 3: // frame
		id := args.NewID()
		if args.Err() != nil {
			return nil
		}
		cb, err := NewCallback(s.client, id)
		if err != nil {
			return err
		}
		s.pending.callbacks = append(s.pending.callbacks, cb)
	case 4, 5: // set_opaque_region, set_input_region
		id := args.Object()
		if args.Err() != nil {
			return nil
		}
		var data RegionData
		if id != 0 {
			region, ok := s.client.Object(id).(*Region)
			if !ok {
				return s.Errorf(ErrorInvalidObject, "object %d is not a wl_region", id)
			}
			data = region.Snapshot()
		}
		if opcode == 4 {
			s.pending.opaqueSet, s.pending.opaque = true, data
		} else {
			s.pending.inputSet, s.pending.input = true, data
		}
	case 6: // commit
		return s.commit()
	case 7: // set_buffer_transform
		t := args.Int()
		if args.Err() != nil {
			return nil
		}
		if t < 0 || t > 7 {
			return s.Errorf(SurfaceErrorInvalidTransform, "buffer transform %d is invalid", t)
		}
		s.pending.transformSet, s.pending.transform = true, t
	case 8: // set_buffer_scale
		scale := args.Int()
		if args.Err() != nil {
			return nil
		}
		if scale < 1 {
			return s.Errorf(SurfaceErrorInvalidScale, "buffer scale %d is invalid", scale)
		}
		s.pending.scaleSet, s.pending.scale = true, scale
	case 10: // offset
		x, y := args.Int(), args.Int()
		if args.Err() != nil {
			return nil
		}
		s.pending.offset = geometry.Point{X: int(x), Y: int(y)}
	}
	return nil
}

func (s *Surface) commit() error {
	if s.subsurface != nil && s.subsurface.IsSynchronized() {
		s.pending.mergeInto(&s.cached)
		s.hasCached = true
		s.pending = surfaceState{}
		return nil
	}
	st := s.takeState()
	return s.apply(&st)
}

// takeState returns the state to apply, folding in anything cached while synchronized
func (s *Surface) takeState() surfaceState {
	var st surfaceState
	if s.hasCached {
		st = s.cached
		s.cached = surfaceState{}
		s.hasCached = false
	}
	s.pending.mergeInto(&st)
	s.pending = surfaceState{}
	return st
}

func (s *Surface) apply(st *surfaceState) error {
	wasMapped := s.IsMapped()
	oldSize := s.size

	if st.attached {
		if s.buffer != nil && s.buffer != st.buffer {
			s.buffer.Release()
		}
		s.buffer = st.buffer
		s.offset = s.offset.Add(st.offset)
	}
	if st.scaleSet {
		s.scale = st.scale
	}
	if st.transformSet {
		s.transform = st.transform
	}
	if st.opaqueSet {
		s.opaque = st.opaque
	}
	if st.inputSet {
		s.input = st.input
	}
	s.damage = append(s.damage, st.damage...)
	s.callbacks = append(s.callbacks, st.callbacks...)
	s.size = s.computeSize()

	s.order = slices.Clone(s.pendingOrder)
	for _, sub := range s.Subsurfaces() {
		sub.parentCommitted()
	}

	if s.role != nil {
		if err := s.role.CommitRole(); err != nil {
			return err
		}
	}

	if s.size != oldSize {
		s.SizeChanged.Emit(s.size)
	}
	if mapped := s.IsMapped(); mapped != wasMapped {
		if mapped {
			s.Mapped.Emit(signal.Void{})
		} else {
			s.Unmapped.Emit(signal.Void{})
		}
	}
	s.Committed.Emit(signal.Void{})
	return nil
}

func (s *Surface) computeSize() geometry.Size {
	if s.buffer == nil {
		return geometry.Size{}
	}
	size := s.buffer.Size()
	// odd transforms rotate by 90 or 270 degrees
	if s.transform%2 == 1 {
		size.Width, size.Height = size.Height, size.Width
	}
	return geometry.Size{Width: size.Width / int(s.scale), Height: size.Height / int(s.scale)}
}

// TakeDamage returns and clears the damage collected since the last call
func (s *Surface) TakeDamage() []geometry.Rect {
	d := s.damage
	s.damage = nil
	return d
}

// SendFrameDone fires the committed frame callbacks
func (s *Surface) SendFrameDone(ms uint32) {
	cbs := s.callbacks
	s.callbacks = nil
	for _, cb := range cbs {
		cb.Done(ms)
	}
}

func (s *Surface) Outputs() []*Output {
	return s.outputs
}

// SetOutputs updates the outputs the surface is shown on and sends enter and leave
func (s *Surface) SetOutputs(outputs []*Output) {
	for _, o := range s.outputs {
		if !slices.Contains(outputs, o) {
			for _, r := range o.resourcesFor(s.client) {
				s.Post(s.Event(surfaceEventLeave).PutObject(r.id))
			}
		}
	}
	for _, o := range outputs {
		if !slices.Contains(s.outputs, o) {
			for _, r := range o.resourcesFor(s.client) {
				s.Post(s.Event(surfaceEventEnter).PutObject(r.id))
			}
		}
	}
	s.outputs = slices.Clone(outputs)
}

func (s *Surface) HandleDestroy() {
	wasMapped := s.buffer != nil
	delete(s.compositor.surfaces, s)
	for _, cb := range s.pending.callbacks {
		cb.Destroy()
	}
	for _, cb := range s.cached.callbacks {
		cb.Destroy()
	}
	for _, cb := range s.callbacks {
		cb.Destroy()
	}
	s.pending, s.cached, s.callbacks = surfaceState{}, surfaceState{}, nil
	for _, sub := range append(s.order, s.pendingOrder...) {
		if sub != nil {
			sub.parent = nil
		}
	}
	if s.subsurface != nil {
		s.subsurface.detach()
	}
	if wasMapped {
		s.buffer = nil
		s.Unmapped.Emit(signal.Void{})
	}
}
