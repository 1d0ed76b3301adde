package shell

import (
	"github.com/mstarongithub/wayshell/geometry"
	"github.com/mstarongithub/wayshell/util/signal"
	"github.com/mstarongithub/wayshell/xdgshell"
	"github.com/sirupsen/logrus"
)

// PopupClient is a managed xdg_popup. It is always transient for its parent.
type PopupClient struct {
	SurfaceClient
	popup        *xdgshell.Popup
	transientFor Window
	explicitGrab bool
}

func newPopupClient(m *Manager, p *xdgshell.Popup) *PopupClient {
	c := &PopupClient{popup: p}
	if parent := p.Parent(); parent != nil {
		c.transientFor = m.WindowFor(parent.Surface())
	}
	c.init(m, c, p.XdgSurface())
	c.disconnects = append(c.disconnects,
		p.InitializeRequested.Connect(func(signal.Void) { c.initialize() }),
		p.GrabRequested.Connect(func(xdgshell.GrabRequest) { c.explicitGrab = true }),
		p.Destroyed.Connect(func(signal.Void) { c.destroyClient() }),
	)
	return c
}

func (c *PopupClient) Popup() *xdgshell.Popup {
	return c.popup
}

func (c *PopupClient) Caption() string {
	return ""
}

func (c *PopupClient) TransientFor() Window {
	return c.transientFor
}

func (c *PopupClient) clearTransient(w Window) {
	if c.transientFor == w {
		c.transientFor = nil
	}
}

// HasPopupGrab reports whether the client asked for an explicit grab
func (c *PopupClient) HasPopupGrab() bool {
	return c.explicitGrab
}

func (c *PopupClient) IsMovable() bool   { return false }
func (c *PopupClient) IsResizable() bool { return false }

func (c *PopupClient) constrainSize(s geometry.Size) geometry.Size {
	return s
}

// CloseWindow dismisses the popup
func (c *PopupClient) CloseWindow() {
	c.popup.SendPopupDone()
}

func (c *PopupClient) parentPos() geometry.Point {
	if c.transientFor == nil {
		return geometry.Point{}
	}
	return c.transientFor.FrameGeometry().TopLeft()
}

// TransientPlacement is where the popup goes within bounds. Before the first map the
// positioner's size is used, afterwards the size the client settled on.
func (c *PopupClient) TransientPlacement(bounds geometry.Rect) geometry.Rect {
	size := c.frame.Size()
	if c.unmapped {
		size = c.popup.Positioner().Size
	}
	return PlacePopup(c.popup.Positioner(), c.parentPos(), size, bounds)
}

func (c *PopupClient) initialize() {
	c.SetFrameGeometry(c.TransientPlacement(c.manager.areas.PlacementArea()))
	c.scheduleConfigure()
}

func (c *PopupClient) sendRoleConfigure() *Configure {
	rel := geometry.NewRect(c.requested.TopLeft().Sub(c.parentPos()), c.requested.Size())
	serial := c.popup.SendConfigure(rel)
	logrus.WithFields(logrus.Fields{
		"window":   c.id,
		"serial":   serial,
		"geometry": rel,
	}).Debugln("Sent popup configure")
	return &Configure{Serial: serial, Geometry: c.requested}
}

func (c *PopupClient) handleRoleCommit() {}
