package drm

import "encoding/binary"

const (
	EventVBlank       = 0x01
	EventFlipComplete = 0x02

	eventHeaderSize = 8
	eventVBlankSize = 32
)

// Event is a decoded struct drm_event_vblank
type Event struct {
	Type     uint32
	UserData uint64
	Sec      uint32
	Usec     uint32
	Sequence uint32
	CrtcID   uint32
}

// ParseEvents decodes the vblank and flip events in buf. Other event types and
// a truncated tail are skipped.
func ParseEvents(buf []byte) []Event {
	order := binary.NativeEndian
	var events []Event
	for len(buf) >= eventHeaderSize {
		typ := order.Uint32(buf[0:])
		length := int(order.Uint32(buf[4:]))
		if length < eventHeaderSize || length > len(buf) {
			break
		}
		if (typ == EventVBlank || typ == EventFlipComplete) && length >= eventVBlankSize {
			events = append(events, Event{
				Type:     typ,
				UserData: order.Uint64(buf[8:]),
				Sec:      order.Uint32(buf[16:]),
				Usec:     order.Uint32(buf[20:]),
				Sequence: order.Uint32(buf[24:]),
				CrtcID:   order.Uint32(buf[28:]),
			})
		}
		buf = buf[length:]
	}
	return events
}

// AppendEvent encodes ev the way the kernel writes it
func AppendEvent(buf []byte, ev Event) []byte {
	order := binary.NativeEndian
	b := make([]byte, eventVBlankSize)
	order.PutUint32(b[0:], ev.Type)
	order.PutUint32(b[4:], eventVBlankSize)
	order.PutUint64(b[8:], ev.UserData)
	order.PutUint32(b[16:], ev.Sec)
	order.PutUint32(b[20:], ev.Usec)
	order.PutUint32(b[24:], ev.Sequence)
	order.PutUint32(b[28:], ev.CrtcID)
	return append(buf, b...)
}
