package wayland

import (
	"github.com/mstarongithub/wayshell/wire"
)

var seatInterface = Interface{
	Name:     "wl_seat",
	Version:  5,
	Requests: []string{"get_pointer", "get_keyboard", "get_touch", "release"},
}

var (
	pointerInterface  = Interface{Name: "wl_pointer", Version: 5, Requests: []string{"set_cursor", "release"}}
	keyboardInterface = Interface{Name: "wl_keyboard", Version: 5, Requests: []string{"release"}}
	touchInterface    = Interface{Name: "wl_touch", Version: 5, Requests: []string{"release"}}
)

const (
	seatEventCapabilities = 0
	seatEventName         = 1
)

// Seat advertises a seat without input capabilities. Input routing lives elsewhere;
// the seat exists so clients can name it in move, resize and grab requests.
type Seat struct {
	global *Global
	name   string
}

func NewSeat(d *Display, name string) *Seat {
	s := &Seat{name: name}
	s.global = d.CreateGlobal(&seatInterface, s.bind)
	return s
}

func (s *Seat) Name() string {
	return s.name
}

func (s *Seat) bind(c *Client, version, id uint32) error {
	r := &SeatResource{seat: s}
	if err := c.AddObject(id, &seatInterface, version, r); err != nil {
		return err
	}
	r.Post(r.Event(seatEventCapabilities).PutUint(0))
	if version >= 2 {
		r.Post(r.Event(seatEventName).PutString(s.name))
	}
	return nil
}

type SeatResource struct {
	Resource
	seat *Seat
}

func (r *SeatResource) Seat() *Seat {
	return r.seat
}

func (r *SeatResource) Dispatch(opcode uint16, args *wire.Decoder) error {
	if opcode == 3 {
		r.Destroy()
		return nil
	}
	id := args.NewID()
	if args.Err() != nil {
		return nil
	}
	switch opcode {
	case 0:
		return r.client.AddObject(id, &pointerInterface, r.version, &inert{destructor: 1})
	case 1:
		return r.client.AddObject(id, &keyboardInterface, r.version, &inert{destructor: 0})
	case 2:
		return r.client.AddObject(id, &touchInterface, r.version, &inert{destructor: 0})
	}
	return nil
}

// SeatFor returns the seat behind a wl_seat object of a client
func SeatFor(c *Client, id uint32) *Seat {
	if r, ok := c.Object(id).(*SeatResource); ok {
		return r.seat
	}
	return nil
}
