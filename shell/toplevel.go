package shell

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/mstarongithub/wayshell/geometry"
	"github.com/mstarongithub/wayshell/util"
	"github.com/mstarongithub/wayshell/util/signal"
	"github.com/mstarongithub/wayshell/xdgshell"
	"github.com/sirupsen/logrus"
)

type MaximizeMode int

const (
	MaximizeRestore    MaximizeMode = 0
	MaximizeVertical   MaximizeMode = 1
	MaximizeHorizontal MaximizeMode = 2
	MaximizeFull                    = MaximizeVertical | MaximizeHorizontal
)

func (m MaximizeMode) String() string {
	switch m {
	case MaximizeRestore:
		return "restore"
	case MaximizeVertical:
		return "vertical"
	case MaximizeHorizontal:
		return "horizontal"
	case MaximizeFull:
		return "full"
	}
	return "MaximizeMode(" + strconv.Itoa(int(m)) + ")"
}

// PingReason is why a ping was sent, which decides what a timeout leads to
type PingReason int

const (
	PingCloseWindow PingReason = iota
	PingFocusWindow
)

// ToplevelClient is a managed xdg_toplevel window
type ToplevelClient struct {
	SurfaceClient
	shell    *xdgshell.Shell
	toplevel *xdgshell.Toplevel

	needsPlacement bool
	active         bool
	minimized      bool
	unresponsive   bool

	maximizeMode          MaximizeMode
	requestedMaximizeMode MaximizeMode
	fullScreen            bool
	lastAckedStates       xdgshell.States

	geometryRestore           geometry.Rect
	fullScreenGeometryRestore geometry.Rect

	pings        map[uint32]PingReason
	transientFor Window

	captionNormal string
	captionSuffix string

	CaptionChanged      signal.Signal[string]
	ActiveChanged       signal.Signal[bool]
	MinimizedChanged    signal.Signal[bool]
	UnresponsiveChanged signal.Signal[bool]
	MaximizeModeChanged signal.Signal[MaximizeMode]
	FullScreenChanged   signal.Signal[bool]
	TransientChanged    signal.Signal[Window]
	// WindowMenuRequested carries the requested menu position in compositor coordinates
	WindowMenuRequested signal.Signal[geometry.Point]
}

func newToplevelClient(m *Manager, shell *xdgshell.Shell, t *xdgshell.Toplevel) *ToplevelClient {
	c := &ToplevelClient{
		shell:    shell,
		toplevel: t,
		pings:    map[uint32]PingReason{},
	}
	c.init(m, c, t.XdgSurface())
	c.disconnects = append(c.disconnects,
		t.InitializeRequested.Connect(func(signal.Void) { c.initialize() }),
		t.TitleChanged.Connect(func(string) { c.updateCaption() }),
		t.ParentChanged.Connect(func(*xdgshell.Toplevel) { c.handleTransientForChanged() }),
		t.MoveRequested.Connect(func(xdgshell.MoveRequest) {
			if c.IsMovable() {
				m.MoveRequested.Emit(c)
			}
		}),
		t.ResizeRequested.Connect(func(r xdgshell.ResizeRequest) {
			if c.IsResizable() {
				m.ResizeRequested.Emit(ResizeRequest{Window: c, Edges: r.Edges})
			}
		}),
		t.WindowMenuRequested.Connect(func(r xdgshell.WindowMenuRequest) {
			c.WindowMenuRequested.Emit(c.Pos().Add(r.Position))
		}),
		t.MaximizeRequested.Connect(func(set bool) {
			if set {
				c.Maximize(MaximizeFull)
			} else {
				c.Maximize(MaximizeRestore)
			}
			c.scheduleConfigure()
		}),
		t.FullscreenRequested.Connect(func(r xdgshell.FullscreenRequest) {
			c.SetFullScreen(r.Fullscreen)
			c.scheduleConfigure()
		}),
		t.MinimizeRequested.Connect(func(signal.Void) { c.SetMinimized(true) }),
		t.Destroyed.Connect(func(signal.Void) { c.destroyClient() }),
	)
	c.updateCaption()
	c.handleTransientForChanged()
	return c
}

func (c *ToplevelClient) Toplevel() *xdgshell.Toplevel {
	return c.toplevel
}

// Caption is the simplified title plus a " <N>" suffix when another window has the same one
func (c *ToplevelClient) Caption() string {
	return c.captionNormal + c.captionSuffix
}

func (c *ToplevelClient) TransientFor() Window {
	return c.transientFor
}

func (c *ToplevelClient) clearTransient(w Window) {
	if c.transientFor == w {
		c.transientFor = nil
		c.TransientChanged.Emit(nil)
	}
}

func (c *ToplevelClient) IsActive() bool       { return c.active }
func (c *ToplevelClient) IsMinimized() bool    { return c.minimized }
func (c *ToplevelClient) IsUnresponsive() bool { return c.unresponsive }
func (c *ToplevelClient) IsFullScreen() bool   { return c.fullScreen }

// MaximizeMode is the mode the client acknowledged
func (c *ToplevelClient) MaximizeMode() MaximizeMode {
	return c.maximizeMode
}

// RequestedMaximizeMode is the mode asked for, which may not be acknowledged yet
func (c *ToplevelClient) RequestedMaximizeMode() MaximizeMode {
	return c.requestedMaximizeMode
}

func (c *ToplevelClient) MinSize() geometry.Size {
	return c.toplevel.MinimumSize()
}

func (c *ToplevelClient) MaxSize() geometry.Size {
	return c.toplevel.MaximumSize()
}

func (c *ToplevelClient) IsMovable() bool {
	return !c.fullScreen
}

// IsResizable is false for fullscreen windows and for windows whose minimum and
// maximum size pin them to one size
func (c *ToplevelClient) IsResizable() bool {
	if c.fullScreen {
		return false
	}
	minSize, maxSize := c.MinSize(), c.MaxSize()
	return minSize.Width < maxSize.Width || minSize.Height < maxSize.Height
}

func (c *ToplevelClient) constrainSize(s geometry.Size) geometry.Size {
	minSize, maxSize := c.MinSize(), c.MaxSize()
	clamp := func(v, lo, hi int) int {
		return min(max(v, lo, 1), hi)
	}
	return geometry.Size{
		Width:  clamp(s.Width, minSize.Width, maxSize.Width),
		Height: clamp(s.Height, minSize.Height, maxSize.Height),
	}
}

func (c *ToplevelClient) sendRoleConfigure() *Configure {
	var states xdgshell.States
	if c.active {
		states |= xdgshell.StateActivated
	}
	if c.IsResize() {
		states |= xdgshell.StateResizing
	}
	if c.requestedMaximizeMode&MaximizeHorizontal != 0 {
		states |= xdgshell.StateMaximizedHorizontal
	}
	if c.requestedMaximizeMode&MaximizeVertical != 0 {
		states |= xdgshell.StateMaximizedVertical
	}
	if c.fullScreen {
		states |= xdgshell.StateFullscreen
	}
	serial := c.toplevel.SendConfigure(c.requested.Size(), states)
	logrus.WithFields(logrus.Fields{
		"window": c.id,
		"serial": serial,
		"size":   c.requested.Size(),
	}).Debugln("Sent toplevel configure")
	return &Configure{Serial: serial, Geometry: c.requested, States: states}
}

func (c *ToplevelClient) handleRoleCommit() {
	if c.lastAck != nil {
		c.handleStatesAcknowledged(c.lastAck.States)
	}
	if c.needsPlacement && c.frame.IsValid() {
		c.needsPlacement = false
		c.placeIn(c.manager.areas.PlacementArea())
	}
}

func (c *ToplevelClient) handleStatesAcknowledged(states xdgshell.States) {
	delta := c.lastAckedStates ^ states
	if delta&xdgshell.StateMaximized != 0 {
		mode := MaximizeRestore
		if states&xdgshell.StateMaximizedHorizontal != 0 {
			mode |= MaximizeHorizontal
		}
		if states&xdgshell.StateMaximizedVertical != 0 {
			mode |= MaximizeVertical
		}
		c.updateMaximizeMode(mode)
	}
	if delta&xdgshell.StateFullscreen != 0 {
		c.updateFullScreenMode(states&xdgshell.StateFullscreen != 0)
	}
	c.lastAckedStates = states
}

func (c *ToplevelClient) updateMaximizeMode(mode MaximizeMode) {
	if c.maximizeMode == mode {
		return
	}
	c.maximizeMode = mode
	c.MaximizeModeChanged.Emit(mode)
}

func (c *ToplevelClient) updateFullScreenMode(set bool) {
	if c.fullScreen == set {
		return
	}
	c.fullScreen = set
	c.FullScreenChanged.Emit(set)
}

// initialize runs on the first commit, before any buffer is attached
func (c *ToplevelClient) initialize() {
	c.needsPlacement = !c.fullScreen && c.requestedMaximizeMode == MaximizeRestore
	if c.needsPlacement && c.frame.IsValid() {
		c.needsPlacement = false
		c.placeIn(c.manager.areas.PlacementArea())
	}
	c.scheduleConfigure()
}

// placeIn centres the window over its parent, or in area if it has none
func (c *ToplevelClient) placeIn(area geometry.Rect) {
	target := area
	if c.transientFor != nil && c.transientFor.IsMapped() {
		target = c.transientFor.FrameGeometry()
	}
	size := c.frame.Size()
	pos := geometry.Point{
		X: target.X + (target.Width-size.Width)/2,
		Y: target.Y + (target.Height-size.Height)/2,
	}
	pos.X = util.Clamp(pos.X, area.X, area.X+area.Width-size.Width)
	pos.Y = util.Clamp(pos.Y, area.Y, area.Y+area.Height-size.Height)
	c.Move(pos)
}

// Maximize asks the client to take the given maximize mode. The mode counts as
// applied once the client acknowledges a configure carrying it.
func (c *ToplevelClient) Maximize(mode MaximizeMode) {
	if c.closing || !c.IsResizable() {
		return
	}
	old := c.requestedMaximizeMode
	if mode == old {
		return
	}
	if old == MaximizeRestore {
		c.geometryRestore = c.frame
	}
	c.requestedMaximizeMode = mode

	if mode == MaximizeRestore {
		if c.geometryRestore.IsValid() {
			c.SetFrameGeometry(c.geometryRestore)
		} else {
			c.SetFrameGeometry(c.manager.areas.PlacementArea())
		}
	} else {
		area := c.manager.areas.MaximizeArea(c.frame)
		r := c.geometryRestore
		if !r.IsValid() {
			r = c.frame
		}
		if mode&MaximizeHorizontal != 0 {
			r.X, r.Width = area.X, area.Width
		}
		if mode&MaximizeVertical != 0 {
			r.Y, r.Height = area.Y, area.Height
		}
		c.SetFrameGeometry(r)
	}
	logrus.WithFields(logrus.Fields{"window": c.id, "mode": mode}).Debugln("Maximize requested")
	c.scheduleConfigure()
}

// SetFullScreen puts the window on the whole output it is on, or brings it back
func (c *ToplevelClient) SetFullScreen(set bool) {
	if c.closing || c.fullScreen == set {
		return
	}
	if set {
		c.fullScreenGeometryRestore = c.frame
	}
	c.fullScreen = set

	switch {
	case set:
		c.SetFrameGeometry(c.manager.areas.FullScreenArea(c.frame))
	case c.fullScreenGeometryRestore.IsValid():
		restore := c.fullScreenGeometryRestore
		c.SetFrameGeometry(geometry.NewRect(restore.TopLeft(), c.constrainSize(restore.Size())))
	default:
		// the window started out fullscreen, let the client pick its size
		c.SetFrameGeometry(geometry.NewRect(c.manager.areas.PlacementArea().TopLeft(), geometry.Size{}))
	}
	c.scheduleConfigure()
	c.FullScreenChanged.Emit(set)
}

func (c *ToplevelClient) SetActive(active bool) {
	if c.active == active {
		return
	}
	c.active = active
	c.scheduleConfigure()
	c.ActiveChanged.Emit(active)
}

// TakeFocus activates the window and checks that the client is still alive
func (c *ToplevelClient) TakeFocus() {
	c.sendPing(PingFocusWindow)
	c.SetActive(true)
}

func (c *ToplevelClient) SetMinimized(minimized bool) {
	if c.minimized == minimized {
		return
	}
	c.minimized = minimized
	c.MinimizedChanged.Emit(minimized)
}

// CloseWindow asks the client to close. A client that does not answer the ping
// sent along gets killed.
func (c *ToplevelClient) CloseWindow() {
	if c.closing {
		return
	}
	c.sendPing(PingCloseWindow)
	c.toplevel.SendClose()
}

// KillWindow terminates the client owning the window
func (c *ToplevelClient) KillWindow() {
	logrus.WithFields(logrus.Fields{
		"window":  c.id,
		"caption": c.Caption(),
	}).Infoln("Killing unresponsive window")
	c.manager.KillClient(c.surface.Client())
}

// PendingPings returns the serials of the pings this window waits for
func (c *ToplevelClient) PendingPings() map[uint32]PingReason {
	out := make(map[uint32]PingReason, len(c.pings))
	for serial, reason := range c.pings {
		out[serial] = reason
	}
	return out
}

// Ping checks that the client is alive. Missing the answer only marks the window unresponsive.
func (c *ToplevelClient) Ping() {
	c.sendPing(PingFocusWindow)
}

func (c *ToplevelClient) sendPing(reason PingReason) {
	serial := c.shell.Ping(c.xdg)
	if serial == 0 {
		return
	}
	c.pings[serial] = reason
	c.manager.pings[serial] = c
}

func (c *ToplevelClient) handlePingDelayed(serial uint32) {
	if _, ok := c.pings[serial]; ok {
		logrus.WithField("caption", c.Caption()).Debugln("First ping timeout")
		c.setUnresponsive(true)
	}
}

func (c *ToplevelClient) handlePingTimeout(serial uint32) {
	reason, ok := c.pings[serial]
	if !ok {
		return
	}
	delete(c.pings, serial)
	if reason == PingCloseWindow {
		logrus.WithField("caption", c.Caption()).Debugln("Final ping timeout on a close attempt, killing")
		c.KillWindow()
	}
}

func (c *ToplevelClient) handlePongReceived(serial uint32) {
	if _, ok := c.pings[serial]; ok {
		delete(c.pings, serial)
		c.setUnresponsive(false)
	}
}

func (c *ToplevelClient) setUnresponsive(unresponsive bool) {
	if c.unresponsive == unresponsive {
		return
	}
	c.unresponsive = unresponsive
	c.UnresponsiveChanged.Emit(unresponsive)
}

func (c *ToplevelClient) handleTransientForChanged() {
	var w Window
	if parent := c.toplevel.Parent(); parent != nil {
		w = c.manager.WindowFor(parent.XdgSurface().Surface())
	}
	if w == c.transientFor {
		return
	}
	c.transientFor = w
	c.TransientChanged.Emit(w)
}

func simplifyCaption(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

func (c *ToplevelClient) updateCaption() {
	oldNormal, oldSuffix := c.captionNormal, c.captionSuffix
	c.captionNormal = simplifyCaption(c.toplevel.Title())
	c.captionSuffix = ""
	if c.captionNormal != "" {
		for i := 2; c.manager.hasOtherCaption(c, c.Caption()); i++ {
			c.captionSuffix = " <" + strconv.Itoa(i) + ">"
		}
	}
	if c.captionNormal != oldNormal || c.captionSuffix != oldSuffix {
		c.CaptionChanged.Emit(c.Caption())
	}
}
