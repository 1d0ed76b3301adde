package wayland

import (
	"time"

	"github.com/mstarongithub/wayshell/geometry"
	"github.com/mstarongithub/wayshell/util/signal"
	"github.com/mstarongithub/wayshell/wire"
)

var compositorInterface = Interface{
	Name:     "wl_compositor",
	Version:  4,
	Requests: []string{"create_surface", "create_region"},
}

var regionInterface = Interface{
	Name:     "wl_region",
	Version:  4,
	Requests: []string{"destroy", "add", "subtract"},
}

// Compositor is the wl_compositor global. It tracks every live surface.
type Compositor struct {
	display  *Display
	global   *Global
	surfaces map[*Surface]struct{}

	SurfaceCreated signal.Signal[*Surface]
}

func NewCompositor(d *Display) *Compositor {
	c := &Compositor{display: d, surfaces: map[*Surface]struct{}{}}
	c.global = d.CreateGlobal(&compositorInterface, c.bind)
	return c
}

func (c *Compositor) bind(client *Client, version, id uint32) error {
	return client.AddObject(id, &compositorInterface, version, &compositorResource{compositor: c})
}

// Surfaces returns every live surface
func (c *Compositor) Surfaces() []*Surface {
	out := make([]*Surface, 0, len(c.surfaces))
	for s := range c.surfaces {
		out = append(out, s)
	}
	return out
}

// FrameDone fires the frame callbacks of every surface that committed since the last frame
func (c *Compositor) FrameDone(now time.Time) {
	ms := uint32(now.UnixMilli())
	for s := range c.surfaces {
		s.SendFrameDone(ms)
	}
}

type compositorResource struct {
	Resource
	compositor *Compositor
}

func (r *compositorResource) Dispatch(opcode uint16, args *wire.Decoder) error {
	id := args.NewID()
	if args.Err() != nil {
		return nil
	}
	switch opcode {
	case 0:
		s := newSurface(r.compositor)
		if err := r.client.AddObject(id, &surfaceInterface, r.version, s); err != nil {
			return err
		}
		r.compositor.surfaces[s] = struct{}{}
		r.compositor.SurfaceCreated.Emit(s)
	case 1:
		return r.client.AddObject(id, &regionInterface, r.version, &Region{})
	}
	return nil
}

type regionOp struct {
	rect     geometry.Rect
	subtract bool
}

// Region records add and subtract operations in order
type Region struct {
	Resource
	ops []regionOp
}

func (r *Region) Dispatch(opcode uint16, args *wire.Decoder) error {
	if opcode == 0 {
		r.Destroy()
		return nil
	}
	rect := geometry.Rect{X: int(args.Int()), Y: int(args.Int()), Width: int(args.Int()), Height: int(args.Int())}
	if args.Err() != nil {
		return nil
	}
	r.ops = append(r.ops, regionOp{rect: rect, subtract: opcode == 2})
	return nil
}

// Snapshot copies the region so it survives the resource
func (r *Region) Snapshot() RegionData {
	return RegionData{ops: append([]regionOp(nil), r.ops...)}
}

type RegionData struct {
	ops []regionOp
}

func (r RegionData) Contains(p geometry.Point) bool {
	inside := false
	for _, op := range r.ops {
		if op.rect.Contains(p) {
			inside = !op.subtract
		}
	}
	return inside
}

func (r RegionData) IsEmpty() bool {
	return len(r.ops) == 0
}
