package wayland

import (
	"fmt"

	"github.com/mstarongithub/wayshell/util/signal"
	"github.com/mstarongithub/wayshell/wire"
)

// Interface describes a protocol interface as advertised to clients
type Interface struct {
	Name    string
	Version uint32
	// Requests names the requests by opcode, used for logging and opcode validation
	Requests []string
}

// Object is a protocol object living in a client's object map
type Object interface {
	BaseResource() *Resource
	// Dispatch handles one request. Returning a *ProtocolError posts it to the client.
	Dispatch(opcode uint16, args *wire.Decoder) error
}

// Destructor is implemented by objects that need cleanup when their resource goes away,
// whether through a request or because the client disconnected
type Destructor interface {
	HandleDestroy()
}

// Resource is the per-object state shared by every protocol object. Embed it.
type Resource struct {
	client  *Client
	id      uint32
	iface   *Interface
	version uint32
	impl    Object
	dead    bool

	Destroyed signal.Signal[signal.Void]
}

// BaseResource gives access to the embedded Resource through the Object interface
func (r *Resource) BaseResource() *Resource {
	return r
}

func (r *Resource) Client() *Client {
	return r.client
}

func (r *Resource) ID() uint32 {
	return r.id
}

func (r *Resource) Version() uint32 {
	return r.version
}

func (r *Resource) Interface() *Interface {
	return r.iface
}

func (r *Resource) IsDestroyed() bool {
	return r.dead
}

// Event starts a new event message from this object
func (r *Resource) Event(opcode uint16) *wire.Message {
	return wire.NewMessage(r.id, opcode)
}

// Post queues an event. Events for destroyed resources are dropped.
func (r *Resource) Post(m *wire.Message) {
	if r.dead || r.client == nil {
		return
	}
	r.client.Send(m)
}

// Errorf builds a protocol error against this object
func (r *Resource) Errorf(code uint32, format string, args ...any) *ProtocolError {
	return &ProtocolError{
		Object:    r.id,
		Interface: r.iface.Name,
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
	}
}

// PostError sends a protocol error for this object and disconnects the client
func (r *Resource) PostError(code uint32, format string, args ...any) {
	if r.client == nil {
		return
	}
	r.client.PostError(r.Errorf(code, format, args...))
}

// Destroy removes the resource from its client. Observers of Destroyed run first,
// then the object's own HandleDestroy.
func (r *Resource) Destroy() {
	if r.dead {
		return
	}
	r.dead = true
	r.Destroyed.Emit(signal.Void{})
	if d, ok := r.impl.(Destructor); ok {
		d.HandleDestroy()
	}
	if r.client != nil {
		r.client.removeObject(r.id)
	}
}

// ProtocolError is a fatal client error reported through wl_display.error
type ProtocolError struct {
	Object    uint32
	Interface string
	Code      uint32
	Message   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s@%d: error %d: %s", e.Interface, e.Object, e.Code, e.Message)
}

// wl_display error codes
const (
	ErrorInvalidObject  uint32 = 0
	ErrorInvalidMethod  uint32 = 1
	ErrorNoMemory       uint32 = 2
	ErrorImplementation uint32 = 3
)
