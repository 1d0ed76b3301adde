package xdgshell

import (
	"github.com/mstarongithub/wayshell/util/signal"
	"github.com/mstarongithub/wayshell/wayland"
	"github.com/mstarongithub/wayshell/wire"
)

var decorationManagerInterface = wayland.Interface{
	Name:     "zxdg_decoration_manager_v1",
	Version:  1,
	Requests: []string{"destroy", "get_toplevel_decoration"},
}

var decorationInterface = wayland.Interface{
	Name:     "zxdg_toplevel_decoration_v1",
	Version:  1,
	Requests: []string{"destroy", "set_mode", "unset_mode"},
}

const (
	DecorationErrorUnconfiguredBuffer uint32 = 0
	DecorationErrorAlreadyConstructed uint32 = 1
	DecorationErrorOrphaned           uint32 = 2
)

type DecorationMode uint32

const (
	DecorationModeNone DecorationMode = iota
	DecorationModeClientSide
	DecorationModeServerSide
)

func (m DecorationMode) String() string {
	switch m {
	case DecorationModeClientSide:
		return "client-side"
	case DecorationModeServerSide:
		return "server-side"
	}
	return "none"
}

// DecorationManager negotiates decoration modes for stable toplevels.
// Decorations are never drawn by the compositor, so every answer is client-side.
type DecorationManager struct {
	global      *wayland.Global
	decorations map[*Toplevel]*Decoration

	DecorationCreated signal.Signal[*Decoration]
}

func NewDecorationManager(d *wayland.Display) *DecorationManager {
	m := &DecorationManager{decorations: map[*Toplevel]*Decoration{}}
	m.global = d.CreateGlobal(&decorationManagerInterface, func(c *wayland.Client, version, id uint32) error {
		return c.AddObject(id, &decorationManagerInterface, version, &decorationManagerResource{manager: m})
	})
	return m
}

// DecorationFor returns the decoration object of t, if the client created one
func (m *DecorationManager) DecorationFor(t *Toplevel) *Decoration {
	return m.decorations[t]
}

type decorationManagerResource struct {
	wayland.Resource
	manager *DecorationManager
}

func (r *decorationManagerResource) Dispatch(opcode uint16, args *wire.Decoder) error {
	if opcode == 0 {
		r.Destroy()
		return nil
	}
	id, toplevelID := args.NewID(), args.Object()
	if args.Err() != nil {
		return nil
	}
	t, ok := r.Client().Object(toplevelID).(*Toplevel)
	if !ok || t.xdg.shell.variant != Stable {
		return r.Errorf(wayland.ErrorInvalidObject, "object %d is not an xdg_toplevel", toplevelID)
	}
	if r.manager.decorations[t] != nil {
		return r.Errorf(DecorationErrorAlreadyConstructed, "xdg_toplevel@%d already has a decoration object", toplevelID)
	}
	if t.xdg.surface.Buffer() != nil {
		return r.Errorf(DecorationErrorUnconfiguredBuffer, "xdg_toplevel@%d already has a buffer", toplevelID)
	}
	d := &Decoration{manager: r.manager, toplevel: t}
	if err := r.Client().AddObject(id, &decorationInterface, r.Version(), d); err != nil {
		return err
	}
	r.manager.decorations[t] = d
	d.disconnect = t.Destroyed.Connect(func(signal.Void) {
		d.disconnect = nil
		d.orphaned = true
		delete(r.manager.decorations, t)
	})
	r.manager.DecorationCreated.Emit(d)
	return nil
}

// Decoration is a zxdg_toplevel_decoration_v1
type Decoration struct {
	wayland.Resource
	manager    *DecorationManager
	toplevel   *Toplevel
	requested  DecorationMode
	orphaned   bool
	disconnect func()

	ModeRequested signal.Signal[DecorationMode]
}

func (d *Decoration) Toplevel() *Toplevel {
	return d.toplevel
}

// RequestedMode is the client's preference, DecorationModeNone if it has none
func (d *Decoration) RequestedMode() DecorationMode {
	return d.requested
}

// SendConfigure tells the client which mode to use
func (d *Decoration) SendConfigure(mode DecorationMode) {
	d.Post(d.Event(0).PutUint(uint32(mode)))
}

func (d *Decoration) Dispatch(opcode uint16, args *wire.Decoder) error {
	switch opcode {
	case 0: // destroy
		d.Destroy()
		return nil
	case 1: // set_mode
		mode := DecorationMode(args.Uint())
		if args.Err() != nil {
			return nil
		}
		if mode != DecorationModeClientSide && mode != DecorationModeServerSide {
			return d.Errorf(ErrorInvalidArgument, "invalid decoration mode %d", mode)
		}
		d.requested = mode
	case 2: // unset_mode
		d.requested = DecorationModeNone
	}
	if d.orphaned {
		return d.Errorf(DecorationErrorOrphaned, "xdg_toplevel destroyed before its decoration")
	}
	d.ModeRequested.Emit(d.requested)
	d.SendConfigure(DecorationModeClientSide)
	return nil
}

func (d *Decoration) HandleDestroy() {
	if d.disconnect != nil {
		d.disconnect()
		d.disconnect = nil
	}
	if d.manager.decorations[d.toplevel] == d {
		delete(d.manager.decorations, d.toplevel)
	}
}
