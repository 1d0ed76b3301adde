package wire

import "bytes"

// FDSource hands out the file descriptors received alongside messages, in order
type FDSource interface {
	PopFD() (int, error)
}

// Decoder reads the arguments of a single request.
// The first failure sticks: later reads return zero values and Err reports the failure.
type Decoder struct {
	data []byte
	fds  FDSource
	err  error
}

func NewDecoder(args []byte, fds FDSource) *Decoder {
	return &Decoder{data: args, fds: fds}
}

func (d *Decoder) Err() error {
	return d.err
}

func (d *Decoder) Remaining() int {
	return len(d.data)
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.data) < n {
		d.err = ErrShortMessage
		return nil
	}
	b := d.data[:n]
	d.data = d.data[n:]
	return b
}

func (d *Decoder) Uint() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return byteOrder.Uint32(b)
}

func (d *Decoder) Int() int32 {
	return int32(d.Uint())
}

func (d *Decoder) Fixed() Fixed {
	return Fixed(d.Uint())
}

func (d *Decoder) Object() uint32 {
	return d.Uint()
}

func (d *Decoder) NewID() uint32 {
	return d.Uint()
}

// String reads a string argument. A null string decodes as "".
func (d *Decoder) String() string {
	n := int(d.Uint())
	if n == 0 {
		return ""
	}
	b := d.take(padded(n))
	if b == nil {
		return ""
	}
	b = b[:n]
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func (d *Decoder) Array() []byte {
	n := int(d.Uint())
	b := d.take(padded(n))
	if b == nil {
		return nil
	}
	return append([]byte(nil), b[:n]...)
}

// UntypedNewID reads the interface, version and id triple used by wl_registry.bind
func (d *Decoder) UntypedNewID() (iface string, version uint32, id uint32) {
	iface = d.String()
	version = d.Uint()
	id = d.Uint()
	return
}

func (d *Decoder) FD() int {
	if d.err != nil {
		return -1
	}
	if d.fds == nil {
		d.err = ErrNoFD
		return -1
	}
	fd, err := d.fds.PopFD()
	if err != nil {
		d.err = err
		return -1
	}
	return fd
}
