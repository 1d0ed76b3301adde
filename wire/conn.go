package wire

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"golang.org/x/sys/unix"
)

// maxFDsPerRead matches the control buffer libwayland uses
const maxFDsPerRead = 28

// Conn is the server end of one client connection.
// ReadMessage must only be called from a single goroutine. Queue, Flush and PopFD are safe
// to call from another one.
type Conn struct {
	conn *net.UnixConn

	in []byte

	fdLock sync.Mutex
	fds    []int

	outLock sync.Mutex
	out     []byte
	outFDs  []int
}

// NewConn creates a new Conn that wraps c. After this is called, use
// the provided Close method to close c instead of calling its own
// Close method.
func NewConn(c *net.UnixConn) *Conn {
	return &Conn{conn: c}
}

// Close closes the underlying connection and every received fd nobody claimed
func (c *Conn) Close() error {
	c.fdLock.Lock()
	for _, fd := range c.fds {
		unix.Close(fd)
	}
	c.fds = nil
	c.fdLock.Unlock()
	return c.conn.Close()
}

func (c *Conn) readFDs(data []byte) error {
	cmsgs, err := unix.ParseSocketControlMessage(data)
	if err != nil {
		return fmt.Errorf("parse socket control messages: %w", err)
	}
	for _, cmsg := range cmsgs {
		fds, err := unix.ParseUnixRights(&cmsg)
		if err != nil {
			if errors.Is(err, unix.EINVAL) {
				continue
			}
			return fmt.Errorf("parse unix control message: %w", err)
		}
		c.fdLock.Lock()
		c.fds = append(c.fds, fds...)
		c.fdLock.Unlock()
	}
	return nil
}

// PopFD returns the oldest received fd. The caller owns it afterwards.
func (c *Conn) PopFD() (int, error) {
	c.fdLock.Lock()
	defer c.fdLock.Unlock()
	if len(c.fds) == 0 {
		return -1, ErrNoFD
	}
	fd := c.fds[0]
	c.fds = c.fds[1:]
	return fd, nil
}

func (c *Conn) fill() error {
	buf := make([]byte, MaxMessageSize)
	oob := make([]byte, unix.CmsgSpace(maxFDsPerRead*4))
	n, oobn, _, _, err := c.conn.ReadMsgUnix(buf, oob)
	if oobn > 0 {
		if ferr := c.readFDs(oob[:oobn]); ferr != nil {
			return ferr
		}
	}
	if n > 0 {
		c.in = append(c.in, buf[:n]...)
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return net.ErrClosed
	}
	return nil
}

// ReadMessage blocks until a whole request has arrived.
// The returned arguments stay valid until the next call.
func (c *Conn) ReadMessage() (Header, []byte, error) {
	for {
		if len(c.in) >= HeaderSize {
			h := parseHeader(c.in)
			if h.Size < HeaderSize {
				return h, nil, ErrBadMessageSize
			}
			if len(c.in) >= int(h.Size) {
				args := make([]byte, int(h.Size)-HeaderSize)
				copy(args, c.in[HeaderSize:h.Size])
				c.in = c.in[h.Size:]
				return h, args, nil
			}
		}
		if err := c.fill(); err != nil {
			return Header{}, nil, err
		}
	}
}

// Queue appends m to the outgoing buffer. Nothing is written until Flush.
func (c *Conn) Queue(m *Message) error {
	b, err := m.Bytes()
	if err != nil {
		return err
	}
	c.outLock.Lock()
	c.out = append(c.out, b...)
	c.outFDs = append(c.outFDs, m.FDs()...)
	c.outLock.Unlock()
	return nil
}

// Flush writes every queued message
func (c *Conn) Flush() error {
	c.outLock.Lock()
	defer c.outLock.Unlock()
	if len(c.out) == 0 {
		return nil
	}
	var oob []byte
	if len(c.outFDs) > 0 {
		oob = unix.UnixRights(c.outFDs...)
	}
	data := c.out
	for len(data) > 0 {
		n, _, err := c.conn.WriteMsgUnix(data, oob, nil)
		if err != nil {
			c.out, c.outFDs = nil, nil
			return fmt.Errorf("write to client: %w", err)
		}
		data = data[n:]
		oob = nil
	}
	c.out = c.out[:0]
	c.outFDs = nil
	return nil
}

// Credentials returns the peer's process credentials as recorded by the kernel at connect time
func (c *Conn) Credentials() (*unix.Ucred, error) {
	raw, err := c.conn.SyscallConn()
	if err != nil {
		return nil, err
	}
	var cred *unix.Ucred
	var credErr error
	err = raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return nil, err
	}
	return cred, credErr
}
