package xdgshell

import (
	"time"

	"github.com/mstarongithub/wayshell/util/signal"
	"github.com/mstarongithub/wayshell/wayland"
	"github.com/mstarongithub/wayshell/wire"
	"github.com/sirupsen/logrus"
)

const DefaultPingInterval = time.Second

type ping struct {
	resource *shellResource
	timer    *wayland.Timer
	ticks    int
}

// Shell is one xdg-shell global
type Shell struct {
	display *wayland.Display
	variant Variant
	global  *wayland.Global

	// PingInterval is the time between a ping and each of its two timeout steps
	PingInterval time.Duration

	resources map[*wayland.Client]*shellResource
	pings     map[uint32]*ping

	SurfaceCreated  signal.Signal[*Surface]
	ToplevelCreated signal.Signal[*Toplevel]
	PopupCreated    signal.Signal[*Popup]
	PongReceived    signal.Signal[uint32]
	// PingDelayed fires once the first interval passed without a pong
	PingDelayed signal.Signal[uint32]
	// PingTimeout fires after the second interval. The serial is forgotten afterwards.
	PingTimeout signal.Signal[uint32]
}

func NewShell(d *wayland.Display, variant Variant) *Shell {
	s := &Shell{
		display:      d,
		variant:      variant,
		PingInterval: DefaultPingInterval,
		resources:    map[*wayland.Client]*shellResource{},
		pings:        map[uint32]*ping{},
	}
	s.global = d.CreateGlobal(&variant.interfaces().shell, s.bind)
	return s
}

func (s *Shell) Variant() Variant {
	return s.variant
}

func (s *Shell) Display() *wayland.Display {
	return s.display
}

// Remove withdraws the global. Bound resources keep working.
func (s *Shell) Remove() {
	s.display.RemoveGlobal(s.global)
	for serial, p := range s.pings {
		p.timer.Stop()
		delete(s.pings, serial)
	}
}

func (s *Shell) bind(c *wayland.Client, version, id uint32) error {
	r := &shellResource{shell: s}
	if err := c.AddObject(id, &s.variant.interfaces().shell, version, r); err != nil {
		return err
	}
	s.resources[c] = r
	return nil
}

// Ping sends a ping to the client owning surface and returns its serial,
// or 0 if that client has no shell bound
func (s *Shell) Ping(surface *Surface) uint32 {
	r := s.resources[surface.Client()]
	if r == nil || r.IsDestroyed() {
		return 0
	}
	serial := s.display.NextSerial()
	r.Post(r.Event(shellEventPing).PutUint(serial))

	p := &ping{resource: r}
	p.timer = s.display.Every(s.PingInterval, func() {
		p.ticks++
		if p.ticks == 1 {
			s.PingDelayed.Emit(serial)
			return
		}
		p.timer.Stop()
		delete(s.pings, serial)
		s.PingTimeout.Emit(serial)
	})
	s.pings[serial] = p
	return serial
}

// PendingPings returns the number of pings still waiting for a pong
func (s *Shell) PendingPings() int {
	return len(s.pings)
}

type shellResource struct {
	wayland.Resource
	shell    *Shell
	surfaces []*Surface
}

func (r *shellResource) Dispatch(opcode uint16, args *wire.Decoder) error {
	s := r.shell
	ifaces := s.variant.interfaces()
	switch opcode {
	case 0: // destroy
		if len(r.surfaces) > 0 {
			return r.Errorf(ShellErrorDefunctSurfaces, "%s destroyed before its surfaces", ifaces.shell.Name)
		}
		r.Destroy()
	case 1: // create_positioner
		id := args.NewID()
		if args.Err() != nil {
			return nil
		}
		return r.Client().AddObject(id, &ifaces.positioner, r.Version(), &PositionerResource{variant: s.variant})
	case 2: // get_xdg_surface
		id, surfaceID := args.NewID(), args.Object()
		if args.Err() != nil {
			return nil
		}
		surface, ok := r.Client().Object(surfaceID).(*wayland.Surface)
		if !ok {
			return r.Errorf(wayland.ErrorInvalidObject, "object %d is not a wl_surface", surfaceID)
		}
		xs := &Surface{shell: s, owner: r, surface: surface}
		if err := surface.SetRole(xs); err != nil {
			return r.Errorf(ShellErrorRole, "wl_surface@%d already has a role", surfaceID)
		}
		if err := r.Client().AddObject(id, &ifaces.surface, r.Version(), xs); err != nil {
			surface.ClearRole(xs)
			return err
		}
		if surface.Buffer() != nil || surface.HasPendingBuffer() {
			return xs.Errorf(SurfaceErrorUnconfiguredBuffer, "wl_surface@%d already has a buffer", surfaceID)
		}
		r.surfaces = append(r.surfaces, xs)
		s.SurfaceCreated.Emit(xs)
	case 3: // pong
		serial := args.Uint()
		if args.Err() != nil {
			return nil
		}
		p, ok := s.pings[serial]
		if !ok || p.resource != r {
			logrus.WithField("serial", serial).Debugln("Ignoring pong with unknown serial")
			return nil
		}
		p.timer.Stop()
		delete(s.pings, serial)
		s.PongReceived.Emit(serial)
	}
	return nil
}

func (r *shellResource) removeSurface(xs *Surface) {
	for i, o := range r.surfaces {
		if o == xs {
			r.surfaces = append(r.surfaces[:i], r.surfaces[i+1:]...)
			return
		}
	}
}

func (r *shellResource) HandleDestroy() {
	s := r.shell
	for serial, p := range s.pings {
		if p.resource == r {
			p.timer.Stop()
			delete(s.pings, serial)
		}
	}
	if s.resources[r.Client()] == r {
		delete(s.resources, r.Client())
	}
}
