package xdgshell

import (
	"github.com/mstarongithub/wayshell/geometry"
	"github.com/mstarongithub/wayshell/util/signal"
	"github.com/mstarongithub/wayshell/wayland"
	"github.com/mstarongithub/wayshell/wire"
)

type GrabRequest struct {
	Seat   *wayland.Seat
	Serial uint32
}

// Popup is an xdg_popup
type Popup struct {
	wayland.Resource
	xdg        *Surface
	positioner Positioner

	parent           *Surface
	parentDisconnect func()

	grabbed bool
	done    bool

	InitializeRequested signal.Signal[signal.Void]
	GrabRequested       signal.Signal[GrabRequest]
}

func (p *Popup) roleName() string {
	return "popup"
}

func (p *Popup) XdgSurface() *Surface {
	return p.xdg
}

// Positioner is the positioner state copied at creation
func (p *Popup) Positioner() Positioner {
	return p.positioner
}

// Parent is the parent xdg_surface, nil once it was destroyed
func (p *Popup) Parent() *Surface {
	return p.parent
}

func (p *Popup) HasGrab() bool {
	return p.grabbed
}

func (p *Popup) setParent(parent *Surface) {
	p.parent = parent
	p.parentDisconnect = parent.Destroyed.Connect(func(signal.Void) {
		p.parentDisconnect = nil
		p.parent = nil
		p.SendPopupDone()
	})
}

// SendConfigure sends the popup geometry relative to the parent's window geometry
// and returns the serial
func (p *Popup) SendConfigure(r geometry.Rect) uint32 {
	p.Post(p.Event(popupEventConfigure).
		PutInt(int32(r.X)).
		PutInt(int32(r.Y)).
		PutInt(int32(r.Width)).
		PutInt(int32(r.Height)))
	return p.xdg.sendConfigure()
}

// SendPopupDone dismisses the popup. Only the first call sends anything.
func (p *Popup) SendPopupDone() {
	if p.done {
		return
	}
	p.done = true
	p.Post(p.Event(popupEventPopupDone))
}

func (p *Popup) IsDismissed() bool {
	return p.done
}

func (p *Popup) initialize() {
	p.InitializeRequested.Emit(signal.Void{})
}

func (p *Popup) commit() {}

func (p *Popup) Dispatch(opcode uint16, args *wire.Decoder) error {
	switch opcode {
	case 0: // destroy
		p.Destroy()
	case 1: // grab
		seatID, serial := args.Object(), args.Uint()
		if args.Err() != nil {
			return nil
		}
		if p.xdg.surface.IsMapped() {
			return p.Errorf(PopupErrorInvalidGrab, "grab requested on a mapped popup")
		}
		seat := wayland.SeatFor(p.Client(), seatID)
		if seat == nil {
			return p.Errorf(wayland.ErrorInvalidObject, "object %d is not a wl_seat", seatID)
		}
		p.grabbed = true
		p.GrabRequested.Emit(GrabRequest{Seat: seat, Serial: serial})
	}
	return nil
}

func (p *Popup) HandleDestroy() {
	if p.parentDisconnect != nil {
		p.parentDisconnect()
		p.parentDisconnect = nil
	}
	if p.xdg.role == p {
		p.xdg.role = nil
		p.xdg.configured = false
	}
}
