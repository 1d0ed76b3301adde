package shell

import (
	"slices"

	"github.com/mstarongithub/wayshell/geometry"
	"github.com/mstarongithub/wayshell/util/signal"
	"github.com/mstarongithub/wayshell/wayland"
	"github.com/mstarongithub/wayshell/xdgshell"
	"github.com/sirupsen/logrus"
)

// Configure is a configure event the client has not acknowledged yet
type Configure struct {
	Serial uint32
	// Geometry is the frame geometry requested with this configure
	Geometry geometry.Rect
	States   xdgshell.States
}

// roleClient is the toplevel or popup specific part of a SurfaceClient
type roleClient interface {
	Window
	IsMovable() bool
	IsResizable() bool
	constrainSize(geometry.Size) geometry.Size
	sendRoleConfigure() *Configure
	handleRoleCommit()
}

// SurfaceClient is the role independent part of a shell window. It owns the
// configure queue and turns acknowledged configures into frame geometry.
type SurfaceClient struct {
	manager *Manager
	role    roleClient
	xdg     *xdgshell.Surface
	surface *wayland.Surface
	id      uint32

	requested      geometry.Rect
	frame          geometry.Rect
	bufferGeometry geometry.Rect
	windowGeometry geometry.Rect

	configures             []*Configure
	lastAck                *Configure
	haveNextWindowGeometry bool

	unmapped bool
	closing  bool

	moveResize moveResize

	monitor     *SubSurfaceTreeMonitor
	disconnects []func()

	// GeometryChanged carries the previous frame geometry
	GeometryChanged signal.Signal[geometry.Rect]
	Mapped          signal.Signal[signal.Void]
	Unmapped        signal.Signal[signal.Void]
	Closed          signal.Signal[signal.Void]
}

func (c *SurfaceClient) init(m *Manager, role roleClient, xdg *xdgshell.Surface) {
	c.manager = m
	c.role = role
	c.xdg = xdg
	c.surface = xdg.Surface()
	c.id = m.createWindowID(c.surface)
	c.unmapped = true
	c.monitor = NewSubSurfaceTreeMonitor(c.surface)

	setNext := func() { c.haveNextWindowGeometry = true }
	c.disconnects = append(c.disconnects,
		xdg.ConfigureAcknowledged.Connect(c.handleConfigureAcknowledged),
		xdg.WindowGeometryChanged.Connect(func(geometry.Rect) { setNext() }),
		xdg.Destroyed.Connect(func(signal.Void) { c.destroyClient() }),
		c.surface.Committed.Connect(func(signal.Void) { c.handleCommit() }),
		c.surface.SizeChanged.Connect(func(geometry.Size) { setNext() }),
		c.surface.Unmapped.Connect(func(signal.Void) { c.internalUnmap() }),
		c.surface.Destroyed.Connect(func(signal.Void) { c.destroyClient() }),
		c.monitor.SubSurfaceAdded.Connect(func(*wayland.Subsurface) { setNext() }),
		c.monitor.SubSurfaceRemoved.Connect(func(*wayland.Subsurface) { setNext() }),
		c.monitor.SubSurfaceMoved.Connect(func(*wayland.Subsurface) { setNext() }),
		c.monitor.SubSurfaceResized.Connect(func(*wayland.Subsurface) { setNext() }),
	)
}

func (c *SurfaceClient) base() *SurfaceClient {
	return c
}

func (c *SurfaceClient) ID() uint32 {
	return c.id
}

func (c *SurfaceClient) Surface() *wayland.Surface {
	return c.surface
}

func (c *SurfaceClient) XdgSurface() *xdgshell.Surface {
	return c.xdg
}

// FrameGeometry is the applied window geometry in compositor coordinates
func (c *SurfaceClient) FrameGeometry() geometry.Rect {
	return c.frame
}

// RequestedGeometry is the frame geometry last asked for, which may still be in flight
func (c *SurfaceClient) RequestedGeometry() geometry.Rect {
	return c.requested
}

// BufferGeometry is where the main surface's buffer is shown
func (c *SurfaceClient) BufferGeometry() geometry.Rect {
	return c.bufferGeometry
}

// WindowGeometry is the effective window geometry in surface local coordinates
func (c *SurfaceClient) WindowGeometry() geometry.Rect {
	return c.windowGeometry
}

func (c *SurfaceClient) Pos() geometry.Point {
	return c.frame.TopLeft()
}

func (c *SurfaceClient) IsMapped() bool {
	return !c.unmapped
}

func (c *SurfaceClient) IsClosing() bool {
	return c.closing
}

// PendingConfigures returns the configures sent but not acknowledged yet, oldest first
func (c *SurfaceClient) PendingConfigures() []Configure {
	out := make([]Configure, len(c.configures))
	for i, ev := range c.configures {
		out[i] = *ev
	}
	return out
}

// LastAcknowledged returns the configure acknowledged since the last commit, if any
func (c *SurfaceClient) LastAcknowledged() *Configure {
	if c.lastAck == nil {
		return nil
	}
	ev := *c.lastAck
	return &ev
}

// SetFrameGeometry asks for a new frame geometry. A new size needs a configure
// round trip, a new position alone is applied right away.
func (c *SurfaceClient) SetFrameGeometry(r geometry.Rect) {
	c.requested = r
	if r.Size() != c.frame.Size() {
		c.requestGeometry(r)
	} else {
		c.updateGeometry(r)
	}
}

// Move changes the position without involving the client
func (c *SurfaceClient) Move(p geometry.Point) {
	c.requested.MoveTopLeft(p)
	if c.frame.TopLeft() == p {
		return
	}
	r := c.frame
	r.MoveTopLeft(p)
	c.updateGeometry(r)
}

func (c *SurfaceClient) requestGeometry(r geometry.Rect) {
	c.requested = r
	c.scheduleConfigure()
}

// scheduleConfigure marks a configure as owed. It goes out when the loop goes idle.
func (c *SurfaceClient) scheduleConfigure() {
	if c.closing {
		return
	}
	c.manager.scheduleConfigure(c)
}

func (c *SurfaceClient) sendConfigure() {
	if c.closing || c.xdg.IsDestroyed() {
		return
	}
	ev := c.role.sendRoleConfigure()
	if ev == nil {
		return
	}
	// a configure without a size leaves the geometry to the client and is not tracked
	if ev.Geometry.IsValid() {
		c.configures = append(c.configures, ev)
	}
}

func (c *SurfaceClient) handleConfigureAcknowledged(serial uint32) {
	for len(c.configures) > 0 && serial >= c.configures[0].Serial {
		c.lastAck = c.configures[0]
		c.configures = slices.Delete(c.configures, 0, 1)
	}
}

func (c *SurfaceClient) handleCommit() {
	if c.surface.Buffer() == nil {
		return
	}
	if c.haveNextWindowGeometry || c.lastAck != nil {
		c.handleNextWindowGeometry()
		c.haveNextWindowGeometry = false
	}
	c.role.handleRoleCommit()
	c.lastAck = nil
	c.internalMap()
}

func (c *SurfaceClient) handleNextWindowGeometry() {
	bounding := c.surface.BoundingRect()

	declared := c.xdg.WindowGeometry()
	if declared.IsValid() {
		c.windowGeometry = declared.Intersected(bounding)
	} else {
		c.windowGeometry = bounding
	}
	if c.windowGeometry.IsEmpty() {
		logrus.WithFields(logrus.Fields{
			"window":   c.id,
			"declared": declared,
			"bounding": bounding,
		}).Warnln("Client committed an empty window geometry, using the buffer size")
		c.windowGeometry = geometry.NewRect(geometry.Point{}, c.surface.Size())
	}

	r := geometry.NewRect(c.frame.TopLeft(), c.windowGeometry.Size())
	if c.IsMoveResize() {
		r = c.adjustMoveResizeGeometry(r)
	} else if c.lastAck != nil {
		r.MoveTopLeft(c.lastAck.Geometry.TopLeft())
	}
	c.updateGeometry(r)
}

func (c *SurfaceClient) updateGeometry(r geometry.Rect) {
	old := c.frame
	c.frame = r
	c.bufferGeometry = geometry.NewRect(r.TopLeft().Sub(c.windowGeometry.TopLeft()), c.surface.Size())
	if old == c.frame {
		return
	}
	c.updateClientOutputs()
	c.GeometryChanged.Emit(old)
}

func (c *SurfaceClient) updateClientOutputs() {
	if c.manager.areas == nil || c.surface.IsDestroyed() {
		return
	}
	var outputs []*wayland.Output
	for _, o := range c.manager.areas.Outputs() {
		if o.Geometry().Intersects(c.frame) {
			outputs = append(outputs, o)
		}
	}
	c.surface.SetOutputs(outputs)
}

func (c *SurfaceClient) internalMap() {
	if !c.unmapped {
		return
	}
	c.unmapped = false
	if !c.requested.IsValid() {
		c.requested = c.frame
	}
	logrus.WithFields(logrus.Fields{"window": c.id, "geometry": c.frame}).Debugln("Window mapped")
	c.Mapped.Emit(signal.Void{})
	c.manager.WindowShown.Emit(c.role)
}

func (c *SurfaceClient) internalUnmap() {
	if c.unmapped {
		return
	}
	if c.IsMoveResize() {
		c.EndMoveResize()
	}
	c.unmapped = true
	c.requested = geometry.Rect{}
	c.lastAck = nil
	c.configures = nil
	c.manager.cancelConfigure(c)
	logrus.WithField("window", c.id).Debugln("Window unmapped")
	c.Unmapped.Emit(signal.Void{})
	c.manager.WindowHidden.Emit(c.role)
}

// destroyClient runs once, when either the xdg_surface or its wl_surface goes away
func (c *SurfaceClient) destroyClient() {
	if c.closing {
		return
	}
	c.closing = true
	c.manager.cancelConfigure(c)
	if c.IsMoveResize() {
		c.EndMoveResize()
	}
	for _, disconnect := range c.disconnects {
		disconnect()
	}
	c.disconnects = nil
	c.monitor.Close()
	c.Closed.Emit(signal.Void{})
	c.manager.removeWindow(c.role)
}
