// Package wltest drives a wayland.Display from tests through a real socket,
// the way httptest drives an http.Handler.
package wltest

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/mstarongithub/wayshell/wayland"
	"github.com/mstarongithub/wayshell/wire"
	"golang.org/x/sys/unix"
)

const Timeout = 5 * time.Second

// Start runs the display loop until the test ends
func Start(t testing.TB, d *wayland.Display) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// Run executes fn on the display loop and waits for it
func Run(t testing.TB, d *wayland.Display, fn func()) {
	t.Helper()
	done := make(chan struct{})
	if err := d.Post(func() {
		defer close(done)
		fn()
	}); err != nil {
		t.Fatalf("display loop is gone: %v", err)
	}
	select {
	case <-done:
	case <-time.After(Timeout):
		t.Fatal("timed out waiting for the display loop")
	}
}

type Event struct {
	Object uint32
	Opcode uint16
	Args   []byte
}

func (e Event) Decoder() *wire.Decoder {
	return wire.NewDecoder(e.Args, nil)
}

// Filter returns the events sent by object with the given opcode
func Filter(events []Event, object uint32, opcode uint16) []Event {
	var out []Event
	for _, e := range events {
		if e.Object == object && e.Opcode == opcode {
			out = append(out, e)
		}
	}
	return out
}

type Global struct {
	Name    uint32
	Version uint32
}

// Client is a minimal protocol client speaking raw messages
type Client struct {
	t       testing.TB
	display *wayland.Display
	conn    *wire.Conn
	server  *wayland.Client
	events  chan Event
	nextID  uint32

	registry   uint32
	Globals    map[string]Global
	compositor uint32
	shm        uint32
}

// Connect opens a new client connection to a running display
func Connect(t testing.TB, d *wayland.Display) *Client {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	mk := func(fd int) *wire.Conn {
		f := os.NewFile(uintptr(fd), "wltest")
		defer f.Close()
		c, err := net.FileConn(f)
		if err != nil {
			t.Fatalf("file conn: %v", err)
		}
		return wire.NewConn(c.(*net.UnixConn))
	}
	serverConn, clientConn := mk(fds[0]), mk(fds[1])

	c := &Client{
		t:       t,
		display: d,
		conn:    clientConn,
		events:  make(chan Event, 4096),
		nextID:  2,
		Globals: map[string]Global{},
	}
	Run(t, d, func() { c.server = d.AddClient(serverConn) })
	go c.read()
	t.Cleanup(func() { clientConn.Close() })

	c.registry = c.NewID()
	c.Send(wire.NewMessage(1, 1).PutNewID(c.registry))
	for _, e := range Filter(c.Roundtrip(), c.registry, 0) {
		d := e.Decoder()
		name := d.Uint()
		iface := d.String()
		version := d.Uint()
		c.Globals[iface] = Global{Name: name, Version: version}
	}
	return c
}

func (c *Client) read() {
	defer close(c.events)
	for {
		h, args, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.events <- Event{Object: h.Object, Opcode: h.Opcode, Args: args}
	}
}

// Server returns the server side view of this client
func (c *Client) Server() *wayland.Client {
	return c.server
}

func (c *Client) NewID() uint32 {
	id := c.nextID
	c.nextID++
	return id
}

// Send writes one request immediately
func (c *Client) Send(m *wire.Message) {
	c.t.Helper()
	if err := c.conn.Queue(m); err != nil {
		c.t.Fatalf("queue request: %v", err)
	}
	if err := c.conn.Flush(); err != nil {
		c.t.Fatalf("send request: %v", err)
	}
}

// Roundtrip returns every event received until the server processed all earlier requests
// and went idle at least once
func (c *Client) Roundtrip() []Event {
	c.t.Helper()
	var out []Event
	for i := 0; i < 2; i++ {
		cb := c.NewID()
		c.Send(wire.NewMessage(1, 0).PutNewID(cb))
	wait:
		for {
			select {
			case e, ok := <-c.events:
				if !ok {
					c.t.Fatalf("connection closed during roundtrip, got %d events", len(out))
				}
				if e.Object == cb && e.Opcode == 0 {
					break wait
				}
				out = append(out, e)
			case <-time.After(Timeout):
				c.t.Fatal("roundtrip timed out")
			}
		}
	}
	return out
}

// ProtocolError is a decoded wl_display.error event
type ProtocolError struct {
	Object  uint32
	Code    uint32
	Message string
}

// ExpectError waits for a wl_display.error and the disconnect that follows it
func (c *Client) ExpectError() ProtocolError {
	c.t.Helper()
	c.Send(wire.NewMessage(1, 0).PutNewID(c.NewID()))
	var perr *ProtocolError
	for {
		select {
		case e, ok := <-c.events:
			if !ok {
				if perr == nil {
					c.t.Fatal("disconnected without a protocol error")
				}
				return *perr
			}
			if e.Object == 1 && e.Opcode == 0 {
				d := e.Decoder()
				perr = &ProtocolError{Object: d.Object(), Code: d.Uint(), Message: d.String()}
			}
		case <-time.After(Timeout):
			c.t.Fatal("no protocol error received")
		}
	}
}

// Bind binds the named global at the given version
func (c *Client) Bind(iface string, version uint32) uint32 {
	c.t.Helper()
	g, ok := c.Globals[iface]
	if !ok {
		c.t.Fatalf("global %s is not advertised", iface)
	}
	id := c.NewID()
	c.Send(wire.NewMessage(c.registry, 0).
		PutUint(g.Name).
		PutString(iface).
		PutUint(version).
		PutNewID(id))
	return id
}

// CreateSurface creates a wl_surface, binding wl_compositor on first use
func (c *Client) CreateSurface() uint32 {
	if c.compositor == 0 {
		c.compositor = c.Bind("wl_compositor", 4)
	}
	id := c.NewID()
	c.Send(wire.NewMessage(c.compositor, 0).PutNewID(id))
	return id
}

// CreateBuffer creates an XRGB8888 shm buffer, binding wl_shm on first use
func (c *Client) CreateBuffer(width, height int) uint32 {
	c.t.Helper()
	if c.shm == 0 {
		c.shm = c.Bind("wl_shm", 1)
	}
	size := width * height * 4
	fd, err := unix.MemfdCreate("wltest", unix.MFD_CLOEXEC)
	if err != nil {
		c.t.Fatalf("memfd: %v", err)
	}
	defer unix.Close(fd)
	if err = unix.Ftruncate(fd, int64(size)); err != nil {
		c.t.Fatalf("ftruncate: %v", err)
	}
	pool := c.NewID()
	c.Send(wire.NewMessage(c.shm, 0).PutNewID(pool).PutFD(fd).PutInt(int32(size)))
	buf := c.NewID()
	c.Send(wire.NewMessage(pool, 0).
		PutNewID(buf).
		PutInt(0).
		PutInt(int32(width)).
		PutInt(int32(height)).
		PutInt(int32(width * 4)).
		PutUint(wayland.ShmFormatXRGB8888))
	c.Send(wire.NewMessage(pool, 1))
	return buf
}

// Attach attaches buffer (0 for none) to surface
func (c *Client) Attach(surface, buffer uint32) {
	c.Send(wire.NewMessage(surface, 1).PutObject(buffer).PutInt(0).PutInt(0))
}

func (c *Client) Commit(surface uint32) {
	c.Send(wire.NewMessage(surface, 6))
}

// Close drops the connection
func (c *Client) Close() {
	c.conn.Close()
}
