package wayland

import (
	"errors"
	"sort"

	"github.com/mstarongithub/wayshell/util/signal"
	"github.com/mstarongithub/wayshell/wire"
	"github.com/sirupsen/logrus"
)

// ServerIDBase is the first object id the server allocates
const ServerIDBase = 0xff000000

var ErrClientGone = errors.New("client is gone")

// Client is one connected Wayland client. It must only be used from the event loop.
type Client struct {
	display *Display
	conn    *wire.Conn

	objects      map[uint32]Object
	nextServerID uint32

	pid, uid, gid int32

	destroyed bool
	Destroyed signal.Signal[*Client]
}

func newClient(d *Display, conn *wire.Conn) *Client {
	c := &Client{
		display:      d,
		conn:         conn,
		objects:      map[uint32]Object{},
		nextServerID: ServerIDBase,
		pid:          -1,
	}
	if cred, err := conn.Credentials(); err == nil {
		c.pid, c.uid, c.gid = cred.Pid, int32(cred.Uid), int32(cred.Gid)
	} else {
		logrus.WithError(err).Debugln("Could not read client credentials")
	}
	return c
}

func (c *Client) Display() *Display {
	return c.display
}

// Pid returns the peer process id, or -1 if unknown
func (c *Client) Pid() int32 {
	return c.pid
}

func (c *Client) IsDestroyed() bool {
	return c.destroyed
}

// Object looks up a live object by id
func (c *Client) Object(id uint32) Object {
	return c.objects[id]
}

// AddObject registers obj under id. The id must be unused.
func (c *Client) AddObject(id uint32, iface *Interface, version uint32, obj Object) error {
	if c.destroyed {
		return ErrClientGone
	}
	if id == 0 {
		return &ProtocolError{Object: 1, Interface: "wl_display", Code: ErrorInvalidObject, Message: "invalid new id 0"}
	}
	if _, ok := c.objects[id]; ok {
		return &ProtocolError{
			Object:    1,
			Interface: "wl_display",
			Code:      ErrorInvalidObject,
			Message:   "invalid new id, already in use",
		}
	}
	r := obj.BaseResource()
	r.client = c
	r.id = id
	r.iface = iface
	r.version = version
	r.impl = obj
	c.objects[id] = obj
	return nil
}

// AddServerObject registers obj under a freshly allocated server side id
func (c *Client) AddServerObject(iface *Interface, version uint32, obj Object) (uint32, error) {
	id := c.nextServerID
	c.nextServerID++
	return id, c.AddObject(id, iface, version, obj)
}

func (c *Client) removeObject(id uint32) {
	if _, ok := c.objects[id]; !ok {
		return
	}
	delete(c.objects, id)
	if id < ServerIDBase && !c.destroyed {
		c.Send(wire.NewMessage(1, displayEventDeleteID).PutUint(id))
	}
}

// Send queues an event for this client
func (c *Client) Send(m *wire.Message) {
	if c.destroyed {
		return
	}
	if err := c.conn.Queue(m); err != nil {
		logrus.WithError(err).WithField("object", m.Sender).Warnln("Dropping event")
		return
	}
	c.display.markDirty(c)
}

// Flush writes all queued events
func (c *Client) Flush() error {
	if c.destroyed {
		return ErrClientGone
	}
	return c.conn.Flush()
}

// PostError sends a protocol error to the client and disconnects it
func (c *Client) PostError(e *ProtocolError) {
	if c.destroyed {
		return
	}
	logrus.WithFields(logrus.Fields{
		"pid":       c.pid,
		"interface": e.Interface,
		"object":    e.Object,
		"code":      e.Code,
	}).Warnln("Protocol error:", e.Message)
	c.Send(wire.NewMessage(1, displayEventError).
		PutObject(e.Object).
		PutUint(e.Code).
		PutString(e.Interface + ": " + e.Message))
	if err := c.conn.Flush(); err != nil {
		logrus.WithError(err).Debugln("Failed to deliver protocol error")
	}
	c.Destroy()
}

func (c *Client) dispatch(h wire.Header, args []byte) {
	if c.destroyed {
		return
	}
	obj, ok := c.objects[h.Object]
	if !ok {
		c.PostError(&ProtocolError{
			Object:    1,
			Interface: "wl_display",
			Code:      ErrorInvalidObject,
			Message:   "invalid object",
		})
		return
	}
	r := obj.BaseResource()
	if int(h.Opcode) >= len(r.iface.Requests) {
		c.PostError(r.Errorf(ErrorInvalidMethod, "invalid method %d", h.Opcode))
		return
	}
	dec := wire.NewDecoder(args, c.conn)
	err := obj.Dispatch(h.Opcode, dec)
	if err == nil && dec.Err() != nil {
		err = &ProtocolError{
			Object:    r.id,
			Interface: r.iface.Name,
			Code:      ErrorInvalidMethod,
			Message:   "invalid arguments for " + r.iface.Requests[h.Opcode],
		}
	}
	if err == nil {
		return
	}
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		logrus.WithError(err).WithField("request", r.iface.Name+"."+r.iface.Requests[h.Opcode]).Errorln("Request failed")
		perr = r.Errorf(ErrorImplementation, "%s", err.Error())
	}
	c.PostError(perr)
}

// Destroy tears down every object in reverse creation order and closes the connection
func (c *Client) Destroy() {
	if c.destroyed {
		return
	}
	ids := make([]uint32, 0, len(c.objects))
	for id := range c.objects {
		ids = append(ids, id)
	}
	// server side objects first, then client objects newest first
	sort.Slice(ids, func(i, j int) bool {
		ci, cj := ids[i] < ServerIDBase, ids[j] < ServerIDBase
		if ci != cj {
			return !ci
		}
		return ids[i] > ids[j]
	})
	c.destroyed = true
	for _, id := range ids {
		if obj, ok := c.objects[id]; ok {
			obj.BaseResource().Destroy()
		}
	}
	c.conn.Close()
	c.display.removeClient(c)
	c.Destroyed.Emit(c)
}
