package xdgshell

import (
	"math"

	"github.com/mstarongithub/wayshell/geometry"
	"github.com/mstarongithub/wayshell/util/signal"
	"github.com/mstarongithub/wayshell/wayland"
	"github.com/mstarongithub/wayshell/wire"
)

// States is the state set sent along with a toplevel configure
type States uint32

const (
	StateMaximizedHorizontal States = 1 << iota
	StateMaximizedVertical
	StateFullscreen
	StateResizing
	StateActivated

	StateMaximized = StateMaximizedHorizontal | StateMaximizedVertical
)

func (s States) Has(o States) bool {
	return s&o == o
}

// wire encodes the states as the protocol's array of uint32
func (s States) wire() []uint32 {
	var out []uint32
	if s.Has(StateMaximized) {
		out = append(out, stateMaximized)
	}
	if s.Has(StateFullscreen) {
		out = append(out, stateFullscreen)
	}
	if s.Has(StateResizing) {
		out = append(out, stateResizing)
	}
	if s.Has(StateActivated) {
		out = append(out, stateActivated)
	}
	return out
}

type MoveRequest struct {
	Seat   *wayland.Seat
	Serial uint32
}

type ResizeRequest struct {
	Seat   *wayland.Seat
	Serial uint32
	Edges  geometry.Edges
}

type WindowMenuRequest struct {
	Seat     *wayland.Seat
	Serial   uint32
	Position geometry.Point
}

type FullscreenRequest struct {
	Fullscreen bool
	// Output is the output the client asked for, nil for the compositor's choice
	Output *wayland.Output
}

type toplevelState struct {
	minSize, maxSize       geometry.Size
	minSizeSet, maxSizeSet bool
}

// Toplevel is an xdg_toplevel
type Toplevel struct {
	wayland.Resource
	xdg *Surface

	title string
	appID string

	parent           *Toplevel
	parentDisconnect func()

	pending toplevelState
	current toplevelState

	InitializeRequested signal.Signal[signal.Void]
	TitleChanged        signal.Signal[string]
	AppIDChanged        signal.Signal[string]
	ParentChanged       signal.Signal[*Toplevel]
	MinimumSizeChanged  signal.Signal[geometry.Size]
	MaximumSizeChanged  signal.Signal[geometry.Size]
	MoveRequested       signal.Signal[MoveRequest]
	ResizeRequested     signal.Signal[ResizeRequest]
	WindowMenuRequested signal.Signal[WindowMenuRequest]
	// MaximizeRequested carries true for set_maximized and false for unset_maximized
	MaximizeRequested   signal.Signal[bool]
	FullscreenRequested signal.Signal[FullscreenRequest]
	MinimizeRequested   signal.Signal[signal.Void]
}

func (t *Toplevel) roleName() string {
	return "toplevel"
}

// XdgSurface returns the xdg_surface this toplevel belongs to
func (t *Toplevel) XdgSurface() *Surface {
	return t.xdg
}

func (t *Toplevel) Title() string {
	return t.title
}

func (t *Toplevel) AppID() string {
	return t.appID
}

// Parent is the toplevel this one is transient for, if any
func (t *Toplevel) Parent() *Toplevel {
	return t.parent
}

// MinimumSize is the committed minimum size, 0x0 when unset
func (t *Toplevel) MinimumSize() geometry.Size {
	return t.current.minSize
}

// MaximumSize is the committed maximum size. Unbounded dimensions are MaxInt32.
func (t *Toplevel) MaximumSize() geometry.Size {
	s := t.current.maxSize
	if s.Width <= 0 {
		s.Width = math.MaxInt32
	}
	if s.Height <= 0 {
		s.Height = math.MaxInt32
	}
	return s
}

// SendConfigure sends a configure with the given size and states and returns its serial.
// A zero size leaves the size up to the client.
func (t *Toplevel) SendConfigure(size geometry.Size, states States) uint32 {
	t.Post(t.Event(toplevelEventConfigure).
		PutInt(int32(size.Width)).
		PutInt(int32(size.Height)).
		PutUintArray(states.wire()))
	return t.xdg.sendConfigure()
}

// SendClose asks the client to close the window
func (t *Toplevel) SendClose() {
	t.Post(t.Event(toplevelEventClose))
}

func (t *Toplevel) initialize() {
	t.InitializeRequested.Emit(signal.Void{})
}

func (t *Toplevel) commit() {
	old := t.current
	if t.pending.minSizeSet {
		t.current.minSize = t.pending.minSize
	}
	if t.pending.maxSizeSet {
		t.current.maxSize = t.pending.maxSize
	}
	t.pending = toplevelState{}
	if old.minSize != t.current.minSize {
		t.MinimumSizeChanged.Emit(t.MinimumSize())
	}
	if old.maxSize != t.current.maxSize {
		t.MaximumSizeChanged.Emit(t.MaximumSize())
	}
}

func (t *Toplevel) setParent(parent *Toplevel) {
	if parent == t.parent {
		return
	}
	if t.parentDisconnect != nil {
		t.parentDisconnect()
		t.parentDisconnect = nil
	}
	t.parent = parent
	if parent != nil {
		t.parentDisconnect = parent.Destroyed.Connect(func(signal.Void) {
			t.parentDisconnect = nil
			t.parent = nil
			t.ParentChanged.Emit(nil)
		})
	}
	t.ParentChanged.Emit(parent)
}

func (t *Toplevel) seat(id uint32) (*wayland.Seat, error) {
	seat := wayland.SeatFor(t.Client(), id)
	if seat == nil {
		return nil, t.Errorf(wayland.ErrorInvalidObject, "object %d is not a wl_seat", id)
	}
	return seat, nil
}

func (t *Toplevel) Dispatch(opcode uint16, args *wire.Decoder) error {
	switch opcode {
	case 0: // destroy
		t.Destroy()
	case 1: // set_parent
		id := args.Object()
		if args.Err() != nil {
			return nil
		}
		var parent *Toplevel
		if id != 0 {
			p, ok := t.Client().Object(id).(*Toplevel)
			if !ok {
				return t.Errorf(wayland.ErrorInvalidObject, "object %d is not a toplevel", id)
			}
			parent = p
		}
		t.setParent(parent)
	case 2: // set_title
		title := args.String()
		if args.Err() != nil || title == t.title {
			return nil
		}
		t.title = title
		t.TitleChanged.Emit(title)
	case 3: // set_app_id
		appID := args.String()
		if args.Err() != nil || appID == t.appID {
			return nil
		}
		t.appID = appID
		t.AppIDChanged.Emit(appID)
	case 4: // show_window_menu
		seatID, serial, x, y := args.Object(), args.Uint(), args.Int(), args.Int()
		if args.Err() != nil {
			return nil
		}
		if !t.xdg.configured {
			return t.xdg.Errorf(SurfaceErrorNotConstructed, "window menu requested before the first configure")
		}
		seat, err := t.seat(seatID)
		if err != nil {
			return err
		}
		t.WindowMenuRequested.Emit(WindowMenuRequest{Seat: seat, Serial: serial, Position: geometry.Point{X: int(x), Y: int(y)}})
	case 5: // move
		seatID, serial := args.Object(), args.Uint()
		if args.Err() != nil {
			return nil
		}
		if !t.xdg.configured {
			return t.xdg.Errorf(SurfaceErrorNotConstructed, "move requested before the first configure")
		}
		seat, err := t.seat(seatID)
		if err != nil {
			return err
		}
		t.MoveRequested.Emit(MoveRequest{Seat: seat, Serial: serial})
	case 6: // resize
		seatID, serial, edges := args.Object(), args.Uint(), args.Uint()
		if args.Err() != nil {
			return nil
		}
		if !t.xdg.configured {
			return t.xdg.Errorf(SurfaceErrorNotConstructed, "resize requested before the first configure")
		}
		seat, err := t.seat(seatID)
		if err != nil {
			return err
		}
		e := geometry.Edges(edges)
		if edges&^uint32(geometry.EdgesAll) != 0 || e.HasOpposing() {
			return t.Errorf(ErrorInvalidArgument, "invalid resize edges %d", edges)
		}
		t.ResizeRequested.Emit(ResizeRequest{Seat: seat, Serial: serial, Edges: e})
	case 7, 8: // set_max_size, set_min_size
		w, h := args.Int(), args.Int()
		if args.Err() != nil {
			return nil
		}
		if w < 0 || h < 0 {
			return t.Errorf(ErrorInvalidArgument, "%s with negative size %dx%d", toplevelRequests[opcode], w, h)
		}
		size := geometry.Size{Width: int(w), Height: int(h)}
		if opcode == 7 {
			t.pending.maxSize, t.pending.maxSizeSet = size, true
		} else {
			t.pending.minSize, t.pending.minSizeSet = size, true
		}
	case 9, 10: // set_maximized, unset_maximized
		t.MaximizeRequested.Emit(opcode == 9)
	case 11: // set_fullscreen
		id := args.Object()
		if args.Err() != nil {
			return nil
		}
		var output *wayland.Output
		if id != 0 {
			output = wayland.OutputFor(t.Client(), id)
			if output == nil {
				return t.Errorf(wayland.ErrorInvalidObject, "object %d is not a wl_output", id)
			}
		}
		t.FullscreenRequested.Emit(FullscreenRequest{Fullscreen: true, Output: output})
	case 12: // unset_fullscreen
		t.FullscreenRequested.Emit(FullscreenRequest{})
	case 13: // set_minimized
		t.MinimizeRequested.Emit(signal.Void{})
	}
	return nil
}

func (t *Toplevel) HandleDestroy() {
	if t.parentDisconnect != nil {
		t.parentDisconnect()
		t.parentDisconnect = nil
	}
	if t.xdg.role == t {
		t.xdg.role = nil
		t.xdg.configured = false
	}
}
