// Package shell holds the compositor side of xdg-shell windows: the configure
// queue, geometry negotiation, maximize and fullscreen, liveness pings and popup
// placement. It turns protocol objects from package xdgshell into windows.
package shell

import (
	"os"
	"slices"
	"time"

	"github.com/mstarongithub/wayshell/geometry"
	"github.com/mstarongithub/wayshell/util/signal"
	"github.com/mstarongithub/wayshell/wayland"
	"github.com/mstarongithub/wayshell/xdgshell"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const DefaultKillTimeout = 5 * time.Second

// Areas is the screen geometry the window manager places windows in
type Areas interface {
	// PlacementArea is where new windows and popups are placed
	PlacementArea() geometry.Rect
	// MaximizeArea is the area a window with the given frame maximizes into
	MaximizeArea(frame geometry.Rect) geometry.Rect
	// FullScreenArea is the output a window with the given frame goes fullscreen on
	FullScreenArea(frame geometry.Rect) geometry.Rect
	Outputs() []*wayland.Output
}

// Window is a toplevel or popup client
type Window interface {
	ID() uint32
	Caption() string
	Surface() *wayland.Surface
	FrameGeometry() geometry.Rect
	IsMapped() bool
	TransientFor() Window
	CloseWindow()

	base() *SurfaceClient
	clearTransient(Window)
}

// Manager owns all shell windows and flushes their configure events once per loop iteration
type Manager struct {
	display *wayland.Display
	areas   Areas

	// KillTimeout is how long a SIGTERMed client may take before its connection is dropped
	KillTimeout time.Duration

	clientIDs map[*wayland.Client]uint16
	windows   []Window
	dirty     map[*SurfaceClient]struct{}
	pings     map[uint32]*ToplevelClient

	WindowAdded   signal.Signal[Window]
	WindowShown   signal.Signal[Window]
	WindowHidden  signal.Signal[Window]
	WindowRemoved signal.Signal[Window]
	// MoveRequested and ResizeRequested ask the window manager to start an interactive operation
	MoveRequested   signal.Signal[*ToplevelClient]
	ResizeRequested signal.Signal[ResizeRequest]
}

type ResizeRequest struct {
	Window *ToplevelClient
	Edges  geometry.Edges
}

func NewManager(d *wayland.Display, areas Areas) *Manager {
	m := &Manager{
		display:     d,
		areas:       areas,
		KillTimeout: DefaultKillTimeout,
		clientIDs:   map[*wayland.Client]uint16{},
		dirty:       map[*SurfaceClient]struct{}{},
		pings:       map[uint32]*ToplevelClient{},
	}
	d.OnIdle(m.flush)
	return m
}

func (m *Manager) Display() *wayland.Display {
	return m.display
}

func (m *Manager) Areas() Areas {
	return m.areas
}

// Attach starts managing the windows created through shell
func (m *Manager) Attach(shell *xdgshell.Shell) {
	shell.ToplevelCreated.Connect(func(t *xdgshell.Toplevel) {
		m.addWindow(newToplevelClient(m, shell, t))
	})
	shell.PopupCreated.Connect(func(p *xdgshell.Popup) {
		m.addWindow(newPopupClient(m, p))
	})
	shell.PingDelayed.Connect(func(serial uint32) {
		if t := m.pings[serial]; t != nil {
			t.handlePingDelayed(serial)
		}
	})
	shell.PingTimeout.Connect(func(serial uint32) {
		if t := m.pings[serial]; t != nil {
			delete(m.pings, serial)
			t.handlePingTimeout(serial)
		}
	})
	shell.PongReceived.Connect(func(serial uint32) {
		if t := m.pings[serial]; t != nil {
			delete(m.pings, serial)
			t.handlePongReceived(serial)
		}
	})
}

// Windows returns all windows in creation order
func (m *Manager) Windows() []Window {
	return slices.Clone(m.windows)
}

func (m *Manager) FindWindow(id uint32) Window {
	for _, w := range m.windows {
		if w.ID() == id {
			return w
		}
	}
	return nil
}

// WindowFor returns the window whose main surface is s
func (m *Manager) WindowFor(s *wayland.Surface) Window {
	for _, w := range m.windows {
		if w.Surface() == s {
			return w
		}
	}
	return nil
}

// Transients returns the windows that are transient for w
func (m *Manager) Transients(w Window) []Window {
	var out []Window
	for _, o := range m.windows {
		if o.TransientFor() == w {
			out = append(out, o)
		}
	}
	return out
}

func (m *Manager) hasOtherCaption(self Window, caption string) bool {
	for _, w := range m.windows {
		if w != self && w.Caption() == caption {
			return true
		}
	}
	return false
}

func (m *Manager) addWindow(w Window) {
	m.windows = append(m.windows, w)
	logrus.WithFields(logrus.Fields{
		"window": w.ID(),
		"client": w.Surface().Client().Pid(),
	}).Debugln("New shell window")
	m.WindowAdded.Emit(w)
}

func (m *Manager) removeWindow(w Window) {
	i := slices.Index(m.windows, w)
	if i < 0 {
		return
	}
	m.windows = slices.Delete(m.windows, i, i+1)
	delete(m.dirty, w.base())
	for serial, t := range m.pings {
		if Window(t) == w {
			delete(m.pings, serial)
		}
	}
	for _, o := range m.windows {
		o.clearTransient(w)
	}
	logrus.WithField("window", w.ID()).Debugln("Shell window removed")
	m.WindowRemoved.Emit(w)
}

func (m *Manager) scheduleConfigure(c *SurfaceClient) {
	m.dirty[c] = struct{}{}
}

func (m *Manager) cancelConfigure(c *SurfaceClient) {
	delete(m.dirty, c)
}

// flush sends the configure events owed, oldest window first
func (m *Manager) flush() {
	if len(m.dirty) == 0 {
		return
	}
	for _, w := range m.windows {
		c := w.base()
		if _, ok := m.dirty[c]; ok {
			delete(m.dirty, c)
			c.sendConfigure()
		}
	}
	clear(m.dirty)
}

// createWindowID combines a per client id with the surface id
func (m *Manager) createWindowID(s *wayland.Surface) uint32 {
	clientID, ok := m.clientIDs[s.Client()]
	if !ok {
		clientID = m.createClientID(s.Client())
	}
	id := uint32(clientID)<<16 | s.ID()&0xffff
	if m.FindWindow(id) != nil {
		logrus.WithField("id", id).Warnln("Window id generated twice")
		return 0
	}
	return id
}

// createClientID picks the highest free id not above the number of known clients plus one
func (m *Manager) createClientID(c *wayland.Client) uint16 {
	used := map[uint16]bool{}
	for _, id := range m.clientIDs {
		used[id] = true
	}
	id := uint16(1)
	for i := len(used) + 1; i >= 1; i-- {
		if !used[uint16(i)] {
			id = uint16(i)
			break
		}
	}
	m.clientIDs[c] = id
	c.Destroyed.Connect(func(c *wayland.Client) { delete(m.clientIDs, c) })
	return id
}

// KillClient terminates the process behind c. Clients that are us or have an unknown
// pid lose their connection right away, everyone else gets SIGTERM and then loses
// the connection after KillTimeout.
func (m *Manager) KillClient(c *wayland.Client) {
	pid := c.Pid()
	if pid <= 0 || int(pid) == os.Getpid() {
		c.Destroy()
		return
	}
	log := logrus.WithField("pid", pid)
	if err := unix.Kill(int(pid), unix.SIGTERM); err != nil {
		log.WithError(err).Warnln("Failed to terminate client")
	} else {
		log.Infoln("Sent SIGTERM to unresponsive client")
	}
	m.display.AfterFunc(m.KillTimeout, func() {
		if !c.IsDestroyed() {
			log.Infoln("Dropping connection of client that ignored SIGTERM")
			c.Destroy()
		}
	})
}

// UpdateOutputs recomputes the outputs of every window, for example after hotplug
func (m *Manager) UpdateOutputs() {
	for _, w := range m.windows {
		w.base().updateClientOutputs()
	}
}
