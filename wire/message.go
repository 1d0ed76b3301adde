package wire

// Message is an outgoing event under construction.
// The Put functions return the message so calls can be chained.
type Message struct {
	Sender uint32
	Opcode uint16
	args   []byte
	fds    []int
}

func NewMessage(sender uint32, opcode uint16) *Message {
	return &Message{Sender: sender, Opcode: opcode}
}

func (m *Message) PutUint(v uint32) *Message {
	m.args = byteOrder.AppendUint32(m.args, v)
	return m
}

func (m *Message) PutInt(v int32) *Message {
	return m.PutUint(uint32(v))
}

func (m *Message) PutFixed(v Fixed) *Message {
	return m.PutUint(uint32(v))
}

// PutObject writes an object id, 0 meaning null
func (m *Message) PutObject(id uint32) *Message {
	return m.PutUint(id)
}

func (m *Message) PutNewID(id uint32) *Message {
	return m.PutUint(id)
}

// PutString writes a NUL terminated string
func (m *Message) PutString(s string) *Message {
	m.PutUint(uint32(len(s) + 1))
	m.args = append(m.args, s...)
	m.args = append(m.args, make([]byte, padded(len(s)+1)-len(s))...)
	return m
}

func (m *Message) PutArray(data []byte) *Message {
	m.PutUint(uint32(len(data)))
	m.args = append(m.args, data...)
	m.args = append(m.args, make([]byte, padded(len(data))-len(data))...)
	return m
}

// PutUintArray writes a list of words as an array argument
func (m *Message) PutUintArray(vals []uint32) *Message {
	data := make([]byte, 0, len(vals)*4)
	for _, v := range vals {
		data = byteOrder.AppendUint32(data, v)
	}
	return m.PutArray(data)
}

func (m *Message) PutFD(fd int) *Message {
	m.fds = append(m.fds, fd)
	return m
}

func (m *Message) Size() int {
	return HeaderSize + len(m.args)
}

// Bytes encodes the header and the arguments
func (m *Message) Bytes() ([]byte, error) {
	size := m.Size()
	if size > MaxMessageSize {
		return nil, ErrMessageTooBig
	}
	out := make([]byte, 0, size)
	out = byteOrder.AppendUint32(out, m.Sender)
	out = byteOrder.AppendUint32(out, uint32(size)<<16|uint32(m.Opcode))
	return append(out, m.args...), nil
}

func (m *Message) FDs() []int {
	return m.fds
}
