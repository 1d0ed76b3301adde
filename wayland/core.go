package wayland

import (
	"github.com/mstarongithub/wayshell/wire"
)

const (
	displayEventError    = 0
	displayEventDeleteID = 1

	registryEventGlobal       = 0
	registryEventGlobalRemove = 1

	callbackEventDone = 0
)

var displayInterface = Interface{
	Name:     "wl_display",
	Version:  1,
	Requests: []string{"sync", "get_registry"},
}

var registryInterface = Interface{
	Name:     "wl_registry",
	Version:  1,
	Requests: []string{"bind"},
}

var callbackInterface = Interface{
	Name:    "wl_callback",
	Version: 1,
}

type displayObject struct {
	Resource
}

func (o *displayObject) Dispatch(opcode uint16, args *wire.Decoder) error {
	c := o.client
	switch opcode {
	case 0: // sync
		id := args.NewID()
		if args.Err() != nil {
			return nil
		}
		cb, err := NewCallback(c, id)
		if err != nil {
			return err
		}
		cb.Done(c.display.Serial())
	case 1: // get_registry
		id := args.NewID()
		if args.Err() != nil {
			return nil
		}
		r := &registry{}
		if err := c.AddObject(id, &registryInterface, 1, r); err != nil {
			return err
		}
		c.display.registries = append(c.display.registries, r)
		for _, g := range c.display.globals {
			r.sendGlobal(g)
		}
	}
	return nil
}

type registry struct {
	Resource
}

func (r *registry) sendGlobal(g *Global) {
	r.Post(r.Event(registryEventGlobal).
		PutUint(g.name).
		PutString(g.iface.Name).
		PutUint(g.iface.Version))
}

func (r *registry) Dispatch(opcode uint16, args *wire.Decoder) error {
	name := args.Uint()
	iface, version, id := args.UntypedNewID()
	if args.Err() != nil {
		return nil
	}
	g := r.client.display.findGlobal(name)
	if g == nil || g.iface.Name != iface {
		return r.Errorf(ErrorInvalidObject, "invalid global %s (%d)", iface, name)
	}
	if version == 0 || version > g.iface.Version {
		return r.Errorf(ErrorInvalidObject, "invalid version for global %s (%d): have %d, wanted %d",
			iface, name, g.iface.Version, version)
	}
	return g.bind(r.client, version, id)
}

func (r *registry) HandleDestroy() {
	d := r.client.display
	for i, o := range d.registries {
		if o == r {
			d.registries = append(d.registries[:i], d.registries[i+1:]...)
			return
		}
	}
}

// Callback is a one shot wl_callback
type Callback struct {
	Resource
}

func NewCallback(c *Client, id uint32) (*Callback, error) {
	cb := &Callback{}
	if err := c.AddObject(id, &callbackInterface, 1, cb); err != nil {
		return nil, err
	}
	return cb, nil
}

// Done fires the callback and destroys it
func (cb *Callback) Done(data uint32) {
	cb.Post(cb.Event(callbackEventDone).PutUint(data))
	cb.Destroy()
}

func (cb *Callback) Dispatch(uint16, *wire.Decoder) error {
	return nil
}

// inert is an object that accepts only its destructor request
type inert struct {
	Resource
	destructor int
}

func (o *inert) Dispatch(opcode uint16, _ *wire.Decoder) error {
	if int(opcode) == o.destructor {
		o.Destroy()
	}
	return nil
}
