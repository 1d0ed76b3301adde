package wayland

import (
	"slices"

	"github.com/mstarongithub/wayshell/geometry"
	"github.com/mstarongithub/wayshell/wire"
)

var outputInterface = Interface{
	Name:     "wl_output",
	Version:  3,
	Requests: []string{"release"},
}

const (
	outputEventGeometry = 0
	outputEventMode     = 1
	outputEventDone     = 2
	outputEventScale    = 3

	outputModeCurrent   = 0x1
	outputModePreferred = 0x2
)

type OutputMode struct {
	Width, Height int
	// Refresh is in mHz
	Refresh   int
	Preferred bool
}

type OutputInfo struct {
	Name                          string
	Make, Model                   string
	PhysicalWidth, PhysicalHeight int
	Subpixel                      int32
	Transform                     int32
	Position                      geometry.Point
	Mode                          OutputMode
	Scale                         int32
}

// Output is a wl_output global describing one screen
type Output struct {
	display   *Display
	global    *Global
	info      OutputInfo
	resources []*outputResource
}

func NewOutput(d *Display, info OutputInfo) *Output {
	if info.Scale < 1 {
		info.Scale = 1
	}
	o := &Output{display: d, info: info}
	o.global = d.CreateGlobal(&outputInterface, o.bind)
	return o
}

func (o *Output) Info() OutputInfo {
	return o.info
}

func (o *Output) Name() string {
	return o.info.Name
}

// Geometry is the area the output covers in the global compositor space
func (o *Output) Geometry() geometry.Rect {
	return geometry.Rect{
		X:      o.info.Position.X,
		Y:      o.info.Position.Y,
		Width:  o.info.Mode.Width / int(o.info.Scale),
		Height: o.info.Mode.Height / int(o.info.Scale),
	}
}

// Update replaces the description and re-sends it to every bound client
func (o *Output) Update(info OutputInfo) {
	if info.Scale < 1 {
		info.Scale = 1
	}
	o.info = info
	for _, r := range o.resources {
		o.sendInfo(r)
	}
}

// Remove withdraws the global. Bound objects stay until the clients release them.
func (o *Output) Remove() {
	o.display.RemoveGlobal(o.global)
}

func (o *Output) bind(c *Client, version, id uint32) error {
	r := &outputResource{output: o}
	if err := c.AddObject(id, &outputInterface, version, r); err != nil {
		return err
	}
	o.resources = append(o.resources, r)
	o.sendInfo(r)
	return nil
}

func (o *Output) sendInfo(r *outputResource) {
	i := o.info
	r.Post(r.Event(outputEventGeometry).
		PutInt(int32(i.Position.X)).
		PutInt(int32(i.Position.Y)).
		PutInt(int32(i.PhysicalWidth)).
		PutInt(int32(i.PhysicalHeight)).
		PutInt(i.Subpixel).
		PutString(i.Make).
		PutString(i.Model).
		PutInt(i.Transform))
	flags := uint32(outputModeCurrent)
	if i.Mode.Preferred {
		flags |= outputModePreferred
	}
	r.Post(r.Event(outputEventMode).
		PutUint(flags).
		PutInt(int32(i.Mode.Width)).
		PutInt(int32(i.Mode.Height)).
		PutInt(int32(i.Mode.Refresh)))
	if r.version >= 2 {
		r.Post(r.Event(outputEventScale).PutInt(i.Scale))
		r.Post(r.Event(outputEventDone))
	}
}

func (o *Output) resourcesFor(c *Client) []*Resource {
	var out []*Resource
	for _, r := range o.resources {
		if r.client == c {
			out = append(out, &r.Resource)
		}
	}
	return out
}

// OutputFor returns the output behind a wl_output object of a client
func OutputFor(c *Client, id uint32) *Output {
	if r, ok := c.Object(id).(*outputResource); ok {
		return r.output
	}
	return nil
}

type outputResource struct {
	Resource
	output *Output
}

func (r *outputResource) Dispatch(uint16, *wire.Decoder) error {
	r.Destroy()
	return nil
}

func (r *outputResource) HandleDestroy() {
	r.output.resources = slices.DeleteFunc(r.output.resources, func(o *outputResource) bool { return o == r })
}
