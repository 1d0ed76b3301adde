package wayland

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/mstarongithub/wayshell/util/multiplexer"
	"github.com/mstarongithub/wayshell/util/signal"
	"github.com/mstarongithub/wayshell/wire"
	"github.com/sirupsen/logrus"
)

const inboxSize = 256

// BindFunc creates the object for a client binding a global
type BindFunc func(c *Client, version uint32, id uint32) error

type Global struct {
	name    uint32
	iface   *Interface
	bind    BindFunc
	removed bool
}

func (g *Global) Name() uint32 {
	return g.name
}

func (g *Global) Interface() *Interface {
	return g.iface
}

// Display owns the globals, the clients and the event loop.
//
// Everything touching protocol state runs on the loop goroutine: request dispatch,
// timers and idle hooks. Other goroutines hand work over with Post.
type Display struct {
	inbox *multiplexer.ManyToOne[func()]

	serial uint32

	globals    []*Global
	nextGlobal uint32
	registries []*registry

	clients map[*Client]struct{}
	dirty   map[*Client]struct{}

	idleHooks []func()

	listener *wire.Listener

	ClientCreated signal.Signal[*Client]
}

func NewDisplay() *Display {
	return &Display{
		inbox:      multiplexer.NewManyToOne(make(chan func(), inboxSize)),
		nextGlobal: 1,
		clients:    map[*Client]struct{}{},
		dirty:      map[*Client]struct{}{},
	}
}

// Serial returns the last serial handed out
func (d *Display) Serial() uint32 {
	return d.serial
}

// NextSerial increments and returns the display wide serial counter
func (d *Display) NextSerial() uint32 {
	d.serial++
	return d.serial
}

// Post schedules fn to run on the event loop. It is safe to call from any goroutine.
func (d *Display) Post(fn func()) error {
	return d.inbox.Send(fn)
}

// OnIdle registers fn to run every time the loop has drained its queue, right before
// events are flushed to the clients
func (d *Display) OnIdle(fn func()) {
	d.idleHooks = append(d.idleHooks, fn)
}

// Timer is a callback scheduled onto the event loop
type Timer struct {
	display *Display
	timer   *time.Timer
	stopped bool
	lock    sync.Mutex
}

// AfterFunc runs fn on the event loop once d has elapsed
func (d *Display) AfterFunc(delay time.Duration, fn func()) *Timer {
	t := &Timer{display: d}
	t.timer = time.AfterFunc(delay, func() {
		d.Post(func() {
			if t.Stopped() {
				return
			}
			fn()
		})
	})
	return t
}

// Every runs fn on the event loop each interval until stopped
func (d *Display) Every(interval time.Duration, fn func()) *Timer {
	t := &Timer{display: d}
	var arm func()
	arm = func() {
		t.timer = time.AfterFunc(interval, func() {
			d.Post(func() {
				if t.Stopped() {
					return
				}
				fn()
				if !t.Stopped() {
					t.lock.Lock()
					arm()
					t.lock.Unlock()
				}
			})
		})
	}
	t.lock.Lock()
	arm()
	t.lock.Unlock()
	return t
}

// Stop cancels the timer. A callback that already fired but did not run yet is dropped.
func (t *Timer) Stop() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *Timer) Stopped() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.stopped
}

// CreateGlobal advertises a new global to all current and future registries
func (d *Display) CreateGlobal(iface *Interface, bind BindFunc) *Global {
	g := &Global{name: d.nextGlobal, iface: iface, bind: bind}
	d.nextGlobal++
	d.globals = append(d.globals, g)
	for _, r := range d.registries {
		r.sendGlobal(g)
	}
	return g
}

// RemoveGlobal withdraws a global. Existing bound objects stay alive.
func (d *Display) RemoveGlobal(g *Global) {
	if g.removed {
		return
	}
	g.removed = true
	for i, o := range d.globals {
		if o == g {
			d.globals = append(d.globals[:i], d.globals[i+1:]...)
			break
		}
	}
	for _, r := range d.registries {
		r.Post(r.Event(registryEventGlobalRemove).PutUint(g.name))
	}
}

func (d *Display) Globals() []*Global {
	return d.globals
}

func (d *Display) findGlobal(name uint32) *Global {
	for _, g := range d.globals {
		if g.name == name {
			return g
		}
	}
	return nil
}

// Clients returns a snapshot of the connected clients
func (d *Display) Clients() []*Client {
	out := make([]*Client, 0, len(d.clients))
	for c := range d.clients {
		out = append(out, c)
	}
	return out
}

// AddClient adopts an accepted connection. Must be called on the loop.
func (d *Display) AddClient(conn *wire.Conn) *Client {
	c := newClient(d, conn)
	obj := &displayObject{}
	c.AddObject(1, &displayInterface, 1, obj)
	d.clients[c] = struct{}{}
	logrus.WithField("pid", c.pid).Debugln("Client connected")
	d.ClientCreated.Emit(c)
	go d.readClient(c, conn)
	return c
}

func (d *Display) readClient(c *Client, conn *wire.Conn) {
	for {
		h, args, err := conn.ReadMessage()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				logrus.WithError(err).WithField("pid", c.pid).Debugln("Client connection ended")
			}
			d.Post(c.Destroy)
			return
		}
		if d.Post(func() { c.dispatch(h, args) }) != nil {
			return
		}
	}
}

func (d *Display) removeClient(c *Client) {
	delete(d.clients, c)
	delete(d.dirty, c)
	kept := d.registries[:0]
	for _, r := range d.registries {
		if r.client != c {
			kept = append(kept, r)
		}
	}
	d.registries = kept
	logrus.WithField("pid", c.pid).Debugln("Client disconnected")
}

func (d *Display) markDirty(c *Client) {
	d.dirty[c] = struct{}{}
}

// Listen opens the client socket. An empty name picks the first free wayland-N.
func (d *Display) Listen(name string) (string, error) {
	var (
		l   *wire.Listener
		err error
	)
	if name == "" {
		l, err = wire.ListenAuto()
	} else {
		l, err = wire.Listen(name)
	}
	if err != nil {
		return "", err
	}
	d.listener = l
	go d.accept(l)
	return l.Name(), nil
}

func (d *Display) accept(l *wire.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				logrus.WithError(err).Errorln("Accepting clients failed")
			}
			return
		}
		if d.Post(func() { d.AddClient(conn) }) != nil {
			conn.Close()
			return
		}
	}
}

// Flush runs the idle hooks and writes out every pending event
func (d *Display) Flush() {
	for _, hook := range d.idleHooks {
		hook()
	}
	for c := range d.dirty {
		delete(d.dirty, c)
		if err := c.Flush(); err != nil && !errors.Is(err, ErrClientGone) {
			logrus.WithError(err).WithField("pid", c.pid).Debugln("Dropping client after failed write")
			c.Destroy()
		}
	}
}

// Run processes the loop until ctx is cancelled or Terminate is called
func (d *Display) Run(ctx context.Context) error {
	defer d.shutdown()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.inbox.Done():
			return nil
		case fn := <-d.inbox.Receiver():
			fn()
		}
		d.drain()
		d.Flush()
	}
}

// drain runs everything already queued without blocking
func (d *Display) drain() {
	for {
		select {
		case fn := <-d.inbox.Receiver():
			fn()
		default:
			return
		}
	}
}

// Terminate stops Run. Safe to call from any goroutine.
func (d *Display) Terminate() {
	d.inbox.Close()
}

func (d *Display) shutdown() {
	d.inbox.Close()
	if d.listener != nil {
		d.listener.Close()
	}
	for c := range d.clients {
		c.Destroy()
	}
}
