package main

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mstarongithub/wayshell/config"
	"github.com/mstarongithub/wayshell/drm"
	"github.com/mstarongithub/wayshell/geometry"
	"github.com/mstarongithub/wayshell/shell"
	"github.com/mstarongithub/wayshell/util/multiplexer"
	"github.com/mstarongithub/wayshell/wayland"
	"github.com/mstarongithub/wayshell/xdgshell"
	"github.com/sirupsen/logrus"
)

type CursorMode int

const (
	CursorModePassThrough CursorMode = iota
	CursorModeMove
	CursorModeResize
)

func (m CursorMode) String() string {
	switch m {
	case CursorModeMove:
		return "Move"
	case CursorModeResize:
		return "Resize"
	}
	return "PassThrough"
}

// WindowEvent is one line of the repl's watch stream
type WindowEvent struct {
	Kind    string
	ID      uint32
	Caption string
}

func (e WindowEvent) String() string {
	return fmt.Sprintf("%s %#x %q", e.Kind, e.ID, e.Caption)
}

// serverOutput ties a wl_output to the connector it shows. The headless output has no connector.
type serverOutput struct {
	connector *drm.Connector
	output    *wayland.Output
}

type Server struct {
	conf *config.Config

	display       *wayland.Display
	compositor    *wayland.Compositor
	subcompositor *wayland.Subcompositor
	shm           *wayland.Shm
	seat          *wayland.Seat
	xdgShell      *xdgshell.Shell
	xdgShellV6    *xdgshell.Shell
	decorations   *xdgshell.DecorationManager
	shell         *shell.Manager

	drm     *drm.DeviceManager
	outputs []*serverOutput
	frames  *wayland.Timer

	// Mapped toplevels, most recently focused first
	topLevelList list.List
	focused      *shell.ToplevelClient

	// There is no input backend, the repl drives this cursor
	cursor     geometry.Point
	cursorMode CursorMode
	grabbed    *shell.ToplevelClient

	events *multiplexer.OneToMany[WindowEvent]
	socket string
	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer(conf *config.Config) (server *Server, err error) {
	server = &Server{conf: conf}
	server.topLevelList.Init()

	server.display = wayland.NewDisplay()
	server.compositor = wayland.NewCompositor(server.display)
	server.subcompositor = wayland.NewSubcompositor(server.display)
	server.shm = wayland.NewShm(server.display)
	server.seat = wayland.NewSeat(server.display, "seat0")

	server.shell = shell.NewManager(server.display, server)
	server.shell.KillTimeout = conf.KillTimeout()
	server.xdgShell = xdgshell.NewShell(server.display, xdgshell.Stable)
	server.xdgShell.PingInterval = conf.PingInterval()
	server.shell.Attach(server.xdgShell)
	if conf.XdgShellV6 {
		server.xdgShellV6 = xdgshell.NewShell(server.display, xdgshell.V6)
		server.xdgShellV6.PingInterval = conf.PingInterval()
		server.shell.Attach(server.xdgShellV6)
	}
	server.decorations = xdgshell.NewDecorationManager(server.display)

	server.shell.WindowAdded.Connect(server.handleNewWindow)
	server.shell.WindowShown.Connect(server.handleMapWindow)
	server.shell.WindowHidden.Connect(server.handleUnmapWindow)
	server.shell.WindowRemoved.Connect(func(w shell.Window) {
		server.publish("removed", w)
	})
	server.shell.MoveRequested.Connect(func(t *shell.ToplevelClient) {
		server.beginInteractive(t, CursorModeMove, 0)
	})
	server.shell.ResizeRequested.Connect(func(r shell.ResizeRequest) {
		server.beginInteractive(r.Window, CursorModeResize, r.Edges)
	})

	server.events = multiplexer.NewOneToMany[WindowEvent]()
	go server.events.StartPlexer()

	if !conf.Headless() {
		if err = server.openDrm(); err != nil {
			return nil, err
		}
	}
	if len(server.outputs) == 0 {
		server.addHeadlessOutput()
	}
	return server, nil
}

// openDrm enumerates the DRM devices. Having none is not fatal, the server then runs headless.
func (server *Server) openDrm() error {
	compositing, err := drm.ParseCompositingType(server.conf.Compositing)
	if err != nil {
		return err
	}
	opts := drm.DeviceManagerOptions{Compositing: compositing}
	if server.conf.DrmDevice != "" {
		opts.Paths = []string{server.conf.DrmDevice}
	}
	manager, err := drm.NewDeviceManager(opts)
	if err != nil {
		logrus.WithError(err).Warnln("No usable DRM device, running headless")
		return nil
	}
	server.drm = manager
	manager.DeviceAdded.Connect(server.handleNewDevice)
	manager.DeviceRemoved.Connect(server.handleDeviceRemoved)
	for _, d := range manager.Devices() {
		server.handleNewDevice(d)
	}
	return nil
}

func (server *Server) handleNewDevice(d *drm.Device) {
	logrus.WithFields(logrus.Fields{
		"device":      d.Path(),
		"compositing": d.Compositing(),
	}).Infoln("Using DRM device")
	d.ConnectorAdded.Connect(server.handleNewOutput)
	d.ConnectorRemoved.Connect(server.handleOutputDestroy)
	for _, c := range d.Connectors() {
		server.handleNewOutput(c)
	}
}

func (server *Server) handleDeviceRemoved(d *drm.Device) {
	logrus.WithField("device", d.Path()).Infoln("DRM device removed")
	var gone []*drm.Connector
	for _, o := range server.outputs {
		if o.connector != nil && o.connector.Device() == d {
			gone = append(gone, o.connector)
		}
	}
	for _, c := range gone {
		server.handleOutputDestroy(c)
	}
}

func (server *Server) handleNewOutput(c *drm.Connector) {
	mode, ok := c.PreferredMode()
	if !ok {
		return
	}
	logrus.WithFields(logrus.Fields{
		"name": c.Name(),
		"mode": mode,
	}).Debugln("New output added")
	server.removeHeadlessOutput()

	mmWidth, mmHeight := c.PhysicalSize()
	info := wayland.OutputInfo{
		Name:           c.Name(),
		Make:           "wayshell",
		Model:          c.Name(),
		PhysicalWidth:  mmWidth,
		PhysicalHeight: mmHeight,
		Position:       geometry.Point{X: server.outputsWidth()},
		Mode: wayland.OutputMode{
			Width:     mode.Width,
			Height:    mode.Height,
			Refresh:   mode.Refresh,
			Preferred: mode.Preferred,
		},
	}
	server.outputs = append(server.outputs, &serverOutput{connector: c, output: wayland.NewOutput(server.display, info)})
	server.outputsChanged()
}

func (server *Server) handleOutputDestroy(c *drm.Connector) {
	kept := server.outputs[:0]
	for _, o := range server.outputs {
		if o.connector == c {
			logrus.WithField("name", c.Name()).Debugln("Output getting destroyed")
			o.output.Remove()
			continue
		}
		kept = append(kept, o)
	}
	server.outputs = kept
	if len(server.outputs) == 0 {
		server.addHeadlessOutput()
	}
	server.layoutOutputs()
	server.outputsChanged()
}

func (server *Server) addHeadlessOutput() {
	logrus.Infoln("Adding headless output")
	info := wayland.OutputInfo{
		Name:  "HEADLESS-1",
		Make:  "wayshell",
		Model: "headless",
		Mode: wayland.OutputMode{
			Width:     server.conf.HeadlessWidth,
			Height:    server.conf.HeadlessHeight,
			Refresh:   60000,
			Preferred: true,
		},
	}
	server.outputs = append(server.outputs, &serverOutput{output: wayland.NewOutput(server.display, info)})
	server.outputsChanged()
}

func (server *Server) removeHeadlessOutput() {
	for i, o := range server.outputs {
		if o.connector == nil {
			o.output.Remove()
			server.outputs = append(server.outputs[:i], server.outputs[i+1:]...)
			return
		}
	}
}

func (server *Server) outputsWidth() int {
	width := 0
	for _, o := range server.outputs {
		width += o.output.Geometry().Width
	}
	return width
}

// layoutOutputs arranges the outputs from left to right in the order they appeared
func (server *Server) layoutOutputs() {
	x := 0
	for _, o := range server.outputs {
		info := o.output.Info()
		if info.Position.X != x || info.Position.Y != 0 {
			info.Position = geometry.Point{X: x}
			o.output.Update(info)
		}
		x += o.output.Geometry().Width
	}
}

func (server *Server) outputsChanged() {
	server.shell.UpdateOutputs()
	if server.frames != nil {
		server.startFrames()
	}
}

// startFrames sends frame callbacks at the refresh rate of the first output.
// Nothing is drawn, so clients are throttled as if every frame made it to the screen.
func (server *Server) startFrames() {
	if server.frames != nil {
		server.frames.Stop()
	}
	refresh := 60000
	if len(server.outputs) > 0 && server.outputs[0].output.Info().Mode.Refresh > 0 {
		refresh = server.outputs[0].output.Info().Mode.Refresh
	}
	interval := time.Duration(int64(time.Second) * 1000 / int64(refresh))
	server.frames = server.display.Every(interval, func() {
		server.compositor.FrameDone(time.Now())
	})
}

// PlacementArea implements shell.Areas. New windows go to the output under the cursor.
func (server *Server) PlacementArea() geometry.Rect {
	for _, o := range server.outputs {
		if o.output.Geometry().Contains(server.cursor) {
			return o.output.Geometry()
		}
	}
	return server.outputFor(geometry.Rect{})
}

// MaximizeArea implements shell.Areas. There are no panels, so it is the whole output.
func (server *Server) MaximizeArea(frame geometry.Rect) geometry.Rect {
	return server.outputFor(frame)
}

func (server *Server) FullScreenArea(frame geometry.Rect) geometry.Rect {
	return server.outputFor(frame)
}

func (server *Server) Outputs() []*wayland.Output {
	outputs := make([]*wayland.Output, 0, len(server.outputs))
	for _, o := range server.outputs {
		outputs = append(outputs, o.output)
	}
	return outputs
}

// outputFor returns the geometry of the output showing most of frame
func (server *Server) outputFor(frame geometry.Rect) geometry.Rect {
	if len(server.outputs) == 0 {
		return geometry.Rect{}
	}
	best := server.outputs[0].output.Geometry()
	bestArea := 0
	for _, o := range server.outputs {
		overlap := o.output.Geometry().Intersected(frame)
		if area := overlap.Width * overlap.Height; overlap.IsValid() && area > bestArea {
			best, bestArea = o.output.Geometry(), area
		}
	}
	return best
}

// publish hands a window event to the watchers without ever blocking the event loop
func (server *Server) publish(kind string, w shell.Window) {
	select {
	case server.events.GetSender() <- WindowEvent{Kind: kind, ID: w.ID(), Caption: w.Caption()}:
	default:
		logrus.WithField("event", kind).Debugln("Dropping window event, watchers are behind")
	}
}

func (server *Server) handleNewWindow(w shell.Window) {
	server.publish("added", w)
	topLevel, ok := w.(*shell.ToplevelClient)
	if !ok {
		return
	}
	topLevel.CaptionChanged.Connect(func(string) {
		server.publish("caption", topLevel)
	})
	topLevel.UnresponsiveChanged.Connect(func(unresponsive bool) {
		if unresponsive {
			server.publish("unresponsive", topLevel)
		} else {
			server.publish("responsive", topLevel)
		}
	})
	topLevel.MinimizedChanged.Connect(func(minimized bool) {
		if minimized && server.focused == topLevel {
			server.focusNext()
		}
	})
}

func (server *Server) inTopLevel(topLevel *shell.ToplevelClient) *list.Element {
	for e := server.topLevelList.Front(); e != nil; e = e.Next() {
		if e.Value.(*shell.ToplevelClient) == topLevel {
			return e
		}
	}
	return nil
}

func (server *Server) removeTopLevel(topLevel *shell.ToplevelClient) {
	if e := server.inTopLevel(topLevel); e != nil {
		server.topLevelList.Remove(e)
	}
	logrus.WithField("server.topLevelList.Len", server.topLevelList.Len()).Debugln("removeTopLevel")
}

func (server *Server) handleMapWindow(w shell.Window) {
	server.publish("shown", w)
	topLevel, ok := w.(*shell.ToplevelClient)
	if !ok {
		return
	}
	if server.inTopLevel(topLevel) == nil {
		server.topLevelList.PushFront(topLevel)
	}
	server.focusTopLevel(topLevel)
}

func (server *Server) handleUnmapWindow(w shell.Window) {
	server.publish("hidden", w)
	topLevel, ok := w.(*shell.ToplevelClient)
	if !ok {
		return
	}
	/* Reset the cursor mode if the grabbed toplevel was unmapped. */
	if server.grabbed == topLevel {
		server.resetCursorMode()
	}
	server.removeTopLevel(topLevel)
	if server.focused == topLevel {
		server.focused = nil
		server.focusNext()
	}
}

// focusTopLevel activates topLevel, raises it and deactivates the previous window
func (server *Server) focusTopLevel(topLevel *shell.ToplevelClient) {
	if topLevel == nil || topLevel == server.focused {
		return
	}
	logrus.WithFields(logrus.Fields{
		"previous": server.focused != nil,
		"window":   topLevel.ID(),
	}).Debugln("focusTopLevel")
	if server.focused != nil {
		server.focused.SetActive(false)
	}
	if e := server.inTopLevel(topLevel); e != nil {
		server.topLevelList.MoveToFront(e)
	}
	topLevel.SetMinimized(false)
	topLevel.TakeFocus()
	server.focused = topLevel
}

// focusNext focuses the most recent window that is not minimized or already focused
func (server *Server) focusNext() {
	for e := server.topLevelList.Front(); e != nil; e = e.Next() {
		topLevel := e.Value.(*shell.ToplevelClient)
		if topLevel != server.focused && !topLevel.IsMinimized() {
			server.focusTopLevel(topLevel)
			return
		}
	}
}

// CycleFocus moves focus to the second window of the stack, like alt-tab
func (server *Server) CycleFocus() {
	if server.topLevelList.Len() < 2 {
		return
	}
	server.focusTopLevel(server.topLevelList.Front().Next().Value.(*shell.ToplevelClient))
}

func (server *Server) topLevelAt(p geometry.Point) *shell.ToplevelClient {
	for e := server.topLevelList.Front(); e != nil; e = e.Next() {
		topLevel := e.Value.(*shell.ToplevelClient)
		if !topLevel.IsMinimized() && topLevel.FrameGeometry().Contains(p) {
			return topLevel
		}
	}
	return nil
}

// beginInteractive starts a move or resize driven by the cursor. Only the
// focused window may start one.
func (server *Server) beginInteractive(topLevel *shell.ToplevelClient, mode CursorMode, edges geometry.Edges) {
	if topLevel != server.focused {
		logrus.WithField("window", topLevel.ID()).Debugln("Denying move/resize request from unfocused window")
		return
	}
	var started bool
	if mode == CursorModeMove {
		started = topLevel.BeginMove(server.cursor)
	} else {
		started = topLevel.BeginResize(server.cursor, edges)
	}
	if !started {
		return
	}
	server.grabbed = topLevel
	server.cursorMode = mode
}

func (server *Server) resetCursorMode() {
	server.cursorMode = CursorModePassThrough
	server.grabbed = nil
}

// PointerMotion moves the cursor to p and updates a running move or resize
func (server *Server) PointerMotion(p geometry.Point) {
	server.cursor = p
	if server.cursorMode != CursorModePassThrough && server.grabbed != nil {
		server.grabbed.UpdateMoveResize(p)
	}
}

// PointerButton ends an interactive operation on release and focuses the
// window under the cursor on press
func (server *Server) PointerButton(pressed bool) {
	if !pressed {
		if server.grabbed != nil {
			server.grabbed.EndMoveResize()
		}
		server.resetCursorMode()
		return
	}
	server.focusTopLevel(server.topLevelAt(server.cursor))
}

// Do runs fn on the event loop and waits for it. Everything outside the loop
// goroutine has to go through here.
func (server *Server) Do(fn func()) error {
	done := make(chan struct{})
	if err := server.display.Post(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-server.ctx.Done():
		return server.ctx.Err()
	}
}

func (server *Server) Start() error {
	server.ctx, server.cancel = context.WithCancel(context.Background())

	socket, err := server.display.Listen(server.conf.SocketName)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	server.socket = socket
	logrus.WithField("socket", socket).Debugln("got wl socket")

	if res := os.Getenv("WAYLAND_DISPLAY"); res != "" {
		logrus.WithField("WAYLAND_DISPLAY", res).Debugln("Wayland display already set, overwriting")
	}
	if err = os.Setenv("WAYLAND_DISPLAY", socket); err != nil {
		return err
	}

	server.startFrames()
	if server.drm != nil {
		server.watchHotplug()
	}
	logrus.WithField("WAYLAND_DISPLAY", socket).Infoln("Running Wayland compositor")
	return nil
}

// watchHotplug feeds DRM uevents into the event loop
func (server *Server) watchHotplug() {
	monitor, err := drm.NewUEventMonitor()
	if err != nil {
		logrus.WithError(err).Warnln("Hotplug detection unavailable")
		return
	}
	go func() {
		defer monitor.Close()
		err := monitor.Run(server.ctx, func(ev *drm.UEvent) {
			if !ev.IsDrmCard() {
				return
			}
			server.display.Post(func() { server.drm.HandleUEvent(ev) })
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logrus.WithError(err).Errorln("Hotplug monitor stopped")
		}
	}()
}

// Run processes clients until Stop is called. It tears the server down before returning.
func (server *Server) Run() error {
	err := server.display.Run(server.ctx)
	server.cancel()
	if server.frames != nil {
		server.frames.Stop()
	}
	if server.drm != nil {
		server.drm.Close()
	}
	server.events.CloseSender()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (server *Server) Stop() {
	server.display.Terminate()
}
