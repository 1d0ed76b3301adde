// Package wire implements the Wayland wire format on the server side.
//
// Every message starts with an 8 byte header: the target object id, then a word holding
// the message size in the upper 16 bits and the opcode in the lower 16. All words use the
// host byte order. File descriptors travel out of band as SCM_RIGHTS control messages.
package wire

import (
	"encoding/binary"
	"errors"
	"math"
)

const (
	HeaderSize = 8
	// MaxMessageSize is the largest message libwayland will accept
	MaxMessageSize = 4096
)

var byteOrder = binary.NativeEndian

var (
	ErrShortMessage   = errors.New("message shorter than its arguments")
	ErrMessageTooBig  = errors.New("message exceeds the maximum size")
	ErrNoFD           = errors.New("no file descriptor queued for message")
	ErrBadMessageSize = errors.New("message size smaller than header")
)

type Header struct {
	Object uint32
	Opcode uint16
	// Size includes the header
	Size uint16
}

func parseHeader(b []byte) Header {
	word := byteOrder.Uint32(b[4:8])
	return Header{
		Object: byteOrder.Uint32(b[0:4]),
		Opcode: uint16(word & 0xffff),
		Size:   uint16(word >> 16),
	}
}

func padded(n int) int {
	return (n + 3) &^ 3
}

// Fixed is the signed 24.8 fixed point number type used by the protocol
type Fixed int32

func FixedFromInt(v int) Fixed {
	return Fixed(int32(v) << 8)
}

func FixedFromFloat(v float64) Fixed {
	return Fixed(int32(math.Round(v * 256)))
}

func (f Fixed) Int() int {
	return int(f >> 8)
}

func (f Fixed) Float() float64 {
	return float64(f) / 256
}
