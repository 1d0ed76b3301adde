package shell

import (
	"testing"
	"time"

	"github.com/mstarongithub/wayshell/geometry"
	"github.com/mstarongithub/wayshell/util/signal"
	"github.com/mstarongithub/wayshell/wayland"
	"github.com/mstarongithub/wayshell/wayland/wltest"
	"github.com/mstarongithub/wayshell/wire"
	"github.com/mstarongithub/wayshell/xdgshell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAreas struct {
	placement, maximize, fullscreen geometry.Rect
	outputs                         []*wayland.Output
}

func (a *testAreas) PlacementArea() geometry.Rect               { return a.placement }
func (a *testAreas) MaximizeArea(geometry.Rect) geometry.Rect   { return a.maximize }
func (a *testAreas) FullScreenArea(geometry.Rect) geometry.Rect { return a.fullscreen }
func (a *testAreas) Outputs() []*wayland.Output                 { return a.outputs }

type fixture struct {
	display *wayland.Display
	shell   *xdgshell.Shell
	manager *Manager

	shown, hidden, removed []Window
}

func newFixture(t *testing.T) *fixture {
	d := wayland.NewDisplay()
	wayland.NewCompositor(d)
	wayland.NewSubcompositor(d)
	wayland.NewShm(d)
	wayland.NewSeat(d, "seat0")
	areas := &testAreas{
		placement:  geometry.Rect{Width: 1280, Height: 1024},
		maximize:   geometry.Rect{Y: 24, Width: 1280, Height: 1000},
		fullscreen: geometry.Rect{Width: 1280, Height: 1024},
		outputs: []*wayland.Output{
			wayland.NewOutput(d, wayland.OutputInfo{Name: "A", Mode: wayland.OutputMode{Width: 1280, Height: 1024}}),
			wayland.NewOutput(d, wayland.OutputInfo{
				Name:     "B",
				Position: geometry.Point{X: 1280},
				Mode:     wayland.OutputMode{Width: 1280, Height: 1024},
			}),
		},
	}
	f := &fixture{display: d, shell: xdgshell.NewShell(d, xdgshell.Stable)}
	f.manager = NewManager(d, areas)
	f.manager.Attach(f.shell)
	f.manager.WindowShown.Connect(func(w Window) { f.shown = append(f.shown, w) })
	f.manager.WindowHidden.Connect(func(w Window) { f.hidden = append(f.hidden, w) })
	f.manager.WindowRemoved.Connect(func(w Window) { f.removed = append(f.removed, w) })
	wltest.Start(t, d)
	return f
}

type client struct {
	*wltest.Client
	wm uint32
}

type ids struct {
	surface, xdg, role uint32
}

func (f *fixture) connect(t *testing.T) *client {
	c := wltest.Connect(t, f.display)
	return &client{Client: c, wm: c.Bind("xdg_wm_base", 1)}
}

func (c *client) toplevel() ids {
	w := ids{surface: c.CreateSurface(), xdg: c.NewID(), role: c.NewID()}
	c.Send(wire.NewMessage(c.wm, 2).PutNewID(w.xdg).PutObject(w.surface))
	c.Send(wire.NewMessage(w.xdg, 1).PutNewID(w.role))
	return w
}

func (c *client) ack(xdg, serial uint32) {
	c.Send(wire.NewMessage(xdg, 4).PutUint(serial))
}

// answer acknowledges serial and commits a buffer of the given size
func (c *client) answer(w ids, serial uint32, width, height int) {
	c.ack(w.xdg, serial)
	c.Attach(w.surface, c.CreateBuffer(width, height))
	c.Commit(w.surface)
	c.Roundtrip()
}

func lastSerial(t *testing.T, events []wltest.Event, xdg uint32) uint32 {
	t.Helper()
	configures := wltest.Filter(events, xdg, 0)
	require.NotEmpty(t, configures, "no configure for xdg_surface@%d", xdg)
	return configures[len(configures)-1].Decoder().Uint()
}

type toplevelConfigure struct {
	size   geometry.Size
	states []byte
}

func lastToplevelConfigure(t *testing.T, events []wltest.Event, toplevel uint32) toplevelConfigure {
	t.Helper()
	configures := wltest.Filter(events, toplevel, 0)
	require.NotEmpty(t, configures)
	d := configures[len(configures)-1].Decoder()
	w, h := d.Int(), d.Int()
	return toplevelConfigure{size: geometry.Size{Width: int(w), Height: int(h)}, states: d.Array()}
}

func (f *fixture) window(t *testing.T, c *client, surface uint32) Window {
	var w Window
	wltest.Run(t, f.display, func() {
		if s, ok := c.Server().Object(surface).(*wayland.Surface); ok {
			w = f.manager.WindowFor(s)
		}
	})
	require.NotNil(t, w)
	return w
}

// mapToplevel creates a toplevel and answers its initial configure with a buffer
func (f *fixture) mapToplevel(t *testing.T, c *client, width, height int) (ids, *ToplevelClient) {
	w := c.toplevel()
	c.Commit(w.surface)
	serial := lastSerial(t, c.Roundtrip(), w.xdg)
	c.answer(w, serial, width, height)
	return w, f.window(t, c, w.surface).(*ToplevelClient)
}

func TestInitialConfigureLeavesSizeToClient(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)

	w := c.toplevel()
	c.Commit(w.surface)
	events := c.Roundtrip()
	cfg := lastToplevelConfigure(t, events, w.role)
	assert.Equal(t, geometry.Size{}, cfg.size)
	assert.Empty(t, cfg.states)

	tl := f.window(t, c, w.surface).(*ToplevelClient)
	wltest.Run(t, f.display, func() {
		assert.Empty(t, tl.PendingConfigures(), "a configure without a size is not tracked")
		assert.False(t, tl.IsMapped())
	})
}

func TestToplevelIsCentredOnFirstMap(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)

	_, tl := f.mapToplevel(t, c, 200, 100)
	wltest.Run(t, f.display, func() {
		assert.True(t, tl.IsMapped())
		assert.Equal(t, geometry.Rect{X: 540, Y: 462, Width: 200, Height: 100}, tl.FrameGeometry())
		assert.Equal(t, tl.FrameGeometry(), tl.BufferGeometry())
		assert.Equal(t, []Window{tl}, f.shown)
		assert.Equal(t, []string{"A"}, outputNames(tl.Surface().Outputs()))
	})
}

func outputNames(outputs []*wayland.Output) []string {
	var names []string
	for _, o := range outputs {
		names = append(names, o.Name())
	}
	return names
}

func TestWindowGeometryIsClampedToSurface(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	w, tl := f.mapToplevel(t, c, 200, 100)

	c.Send(wire.NewMessage(w.xdg, 3).PutInt(10).PutInt(10).PutInt(500).PutInt(50))
	c.Commit(w.surface)
	c.Roundtrip()
	wltest.Run(t, f.display, func() {
		assert.Equal(t, geometry.Rect{X: 10, Y: 10, Width: 190, Height: 50}, tl.WindowGeometry())
		assert.Equal(t, geometry.Rect{X: 540, Y: 462, Width: 190, Height: 50}, tl.FrameGeometry())
		assert.Equal(t, geometry.Rect{X: 530, Y: 452, Width: 200, Height: 100}, tl.BufferGeometry())
	})
}

func TestEmptyWindowGeometryFallsBackToBuffer(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	w, tl := f.mapToplevel(t, c, 200, 100)

	c.Send(wire.NewMessage(w.xdg, 3).PutInt(300).PutInt(300).PutInt(10).PutInt(10))
	c.Commit(w.surface)
	c.Roundtrip()
	wltest.Run(t, f.display, func() {
		assert.Equal(t, geometry.Rect{Width: 200, Height: 100}, tl.WindowGeometry())
		assert.True(t, tl.IsMapped())
	})
}

func TestBoundingRectIncludesSubsurfaces(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	subcompositor := c.Bind("wl_subcompositor", 1)
	w, tl := f.mapToplevel(t, c, 100, 100)

	child := c.CreateSurface()
	sub := c.NewID()
	c.Send(wire.NewMessage(subcompositor, 1).PutNewID(sub).PutObject(child).PutObject(w.surface))
	c.Send(wire.NewMessage(sub, 1).PutInt(90).PutInt(0))
	c.Attach(child, c.CreateBuffer(50, 50))
	c.Commit(child)
	c.Commit(w.surface)
	c.Roundtrip()

	wltest.Run(t, f.display, func() {
		assert.Equal(t, geometry.Rect{Width: 140, Height: 100}, tl.WindowGeometry())
		assert.Equal(t, geometry.Size{Width: 140, Height: 100}, tl.FrameGeometry().Size())
	})
}

func TestAckRetiresOlderConfigures(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	w, tl := f.mapToplevel(t, c, 200, 100)

	var serials []uint32
	for _, width := range []int{300, 400, 500} {
		wltest.Run(t, f.display, func() {
			tl.SetFrameGeometry(geometry.Rect{X: 540, Y: 462, Width: width, Height: 100})
		})
		serials = append(serials, lastSerial(t, c.Roundtrip(), w.xdg))
	}
	require.Len(t, serials, 3)
	assert.Less(t, serials[0], serials[1])
	assert.Less(t, serials[1], serials[2])

	pending := func() []uint32 {
		var out []uint32
		wltest.Run(t, f.display, func() {
			for _, ev := range tl.PendingConfigures() {
				out = append(out, ev.Serial)
			}
		})
		return out
	}
	assert.Equal(t, serials, pending())

	c.ack(w.xdg, serials[1])
	c.Roundtrip()
	assert.Equal(t, serials[2:], pending())

	// acking again or acking an older serial retires nothing
	c.ack(w.xdg, serials[1])
	c.ack(w.xdg, serials[0])
	c.Roundtrip()
	assert.Equal(t, serials[2:], pending())
	wltest.Run(t, f.display, func() {
		ack := tl.LastAcknowledged()
		require.NotNil(t, ack)
		assert.Equal(t, serials[1], ack.Serial)
		assert.Equal(t, 400, ack.Geometry.Width)
		assert.Equal(t, 200, tl.FrameGeometry().Width, "nothing applies before the commit")
	})

	c.Attach(w.surface, c.CreateBuffer(400, 100))
	c.Commit(w.surface)
	c.Roundtrip()
	wltest.Run(t, f.display, func() {
		assert.Nil(t, tl.LastAcknowledged())
		assert.Equal(t, geometry.Rect{X: 540, Y: 462, Width: 400, Height: 100}, tl.FrameGeometry())
		assert.Equal(t, serials[2:], func() []uint32 {
			var out []uint32
			for _, ev := range tl.PendingConfigures() {
				out = append(out, ev.Serial)
			}
			return out
		}())
	})
}

func TestAcknowledgedPositionIsAdopted(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	w, tl := f.mapToplevel(t, c, 200, 100)

	wltest.Run(t, f.display, func() {
		tl.SetFrameGeometry(geometry.Rect{X: 10, Y: 20, Width: 300, Height: 200})
	})
	events := c.Roundtrip()
	assert.Equal(t, geometry.Size{Width: 300, Height: 200}, lastToplevelConfigure(t, events, w.role).size)
	c.answer(w, lastSerial(t, events, w.xdg), 300, 200)

	wltest.Run(t, f.display, func() {
		assert.Equal(t, geometry.Rect{X: 10, Y: 20, Width: 300, Height: 200}, tl.FrameGeometry())
	})
}

func TestMoveAppliesImmediately(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	w, tl := f.mapToplevel(t, c, 200, 100)

	var changes []geometry.Rect
	wltest.Run(t, f.display, func() {
		tl.GeometryChanged.Connect(func(old geometry.Rect) { changes = append(changes, old) })
		tl.Move(geometry.Point{X: 1200, Y: 6})
		assert.Equal(t, geometry.Rect{X: 1200, Y: 6, Width: 200, Height: 100}, tl.FrameGeometry())
	})
	assert.Empty(t, wltest.Filter(c.Roundtrip(), w.xdg, 0))
	wltest.Run(t, f.display, func() {
		assert.Equal(t, []geometry.Rect{{X: 540, Y: 462, Width: 200, Height: 100}}, changes)
		assert.Equal(t, []string{"A", "B"}, outputNames(tl.Surface().Outputs()))
	})
}

func TestMaximizeRoundTrip(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	w, tl := f.mapToplevel(t, c, 200, 100)

	var modes []MaximizeMode
	wltest.Run(t, f.display, func() {
		tl.MaximizeModeChanged.Connect(func(m MaximizeMode) { modes = append(modes, m) })
		tl.Maximize(MaximizeFull)
		assert.Equal(t, MaximizeFull, tl.RequestedMaximizeMode())
		assert.Equal(t, MaximizeRestore, tl.MaximizeMode())
	})
	events := c.Roundtrip()
	cfg := lastToplevelConfigure(t, events, w.role)
	assert.Equal(t, geometry.Size{Width: 1280, Height: 1000}, cfg.size)
	assert.Equal(t, []byte{1, 0, 0, 0}, cfg.states)

	c.answer(w, lastSerial(t, events, w.xdg), 1280, 1000)
	wltest.Run(t, f.display, func() {
		assert.Equal(t, MaximizeFull, tl.MaximizeMode())
		assert.Equal(t, geometry.Rect{Y: 24, Width: 1280, Height: 1000}, tl.FrameGeometry())
	})

	wltest.Run(t, f.display, func() { tl.Maximize(MaximizeRestore) })
	events = c.Roundtrip()
	cfg = lastToplevelConfigure(t, events, w.role)
	assert.Equal(t, geometry.Size{Width: 200, Height: 100}, cfg.size)
	assert.Empty(t, cfg.states)

	c.answer(w, lastSerial(t, events, w.xdg), 200, 100)
	wltest.Run(t, f.display, func() {
		assert.Equal(t, MaximizeRestore, tl.MaximizeMode())
		assert.Equal(t, geometry.Rect{X: 540, Y: 462, Width: 200, Height: 100}, tl.FrameGeometry())
		assert.Equal(t, []MaximizeMode{MaximizeFull, MaximizeRestore}, modes)
	})
}

func TestFixedSizeWindowDoesNotMaximize(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	w, tl := f.mapToplevel(t, c, 100, 100)

	c.Send(wire.NewMessage(w.role, 8).PutInt(100).PutInt(100))
	c.Send(wire.NewMessage(w.role, 7).PutInt(100).PutInt(100))
	c.Commit(w.surface)
	c.Roundtrip()
	c.Send(wire.NewMessage(w.role, 9))
	cfg := lastToplevelConfigure(t, c.Roundtrip(), w.role)
	assert.Equal(t, geometry.Size{Width: 100, Height: 100}, cfg.size)
	assert.Empty(t, cfg.states)

	wltest.Run(t, f.display, func() {
		assert.False(t, tl.IsResizable())
		assert.Equal(t, MaximizeRestore, tl.RequestedMaximizeMode())
	})
}

func TestFullScreenRestoresGeometry(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	w, tl := f.mapToplevel(t, c, 200, 100)

	var changes []bool
	wltest.Run(t, f.display, func() {
		tl.FullScreenChanged.Connect(func(b bool) { changes = append(changes, b) })
		tl.SetFullScreen(true)
		assert.False(t, tl.IsResizable())
		assert.False(t, tl.IsMovable())
	})
	events := c.Roundtrip()
	cfg := lastToplevelConfigure(t, events, w.role)
	assert.Equal(t, geometry.Size{Width: 1280, Height: 1024}, cfg.size)
	assert.Equal(t, []byte{2, 0, 0, 0}, cfg.states)
	c.answer(w, lastSerial(t, events, w.xdg), 1280, 1024)
	wltest.Run(t, f.display, func() {
		assert.Equal(t, geometry.Rect{Width: 1280, Height: 1024}, tl.FrameGeometry())
	})

	wltest.Run(t, f.display, func() { tl.SetFullScreen(false) })
	events = c.Roundtrip()
	assert.Equal(t, geometry.Size{Width: 200, Height: 100}, lastToplevelConfigure(t, events, w.role).size)
	c.answer(w, lastSerial(t, events, w.xdg), 200, 100)
	wltest.Run(t, f.display, func() {
		assert.Equal(t, geometry.Rect{X: 540, Y: 462, Width: 200, Height: 100}, tl.FrameGeometry())
		assert.Equal(t, []bool{true, false}, changes)
	})
}

func TestLeavingInitialFullScreenLetsClientPick(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	w := c.toplevel()
	c.Commit(w.surface)
	c.Roundtrip()
	tl := f.window(t, c, w.surface).(*ToplevelClient)

	wltest.Run(t, f.display, func() { tl.SetFullScreen(true) })
	cfg := lastToplevelConfigure(t, c.Roundtrip(), w.role)
	assert.Equal(t, geometry.Size{Width: 1280, Height: 1024}, cfg.size)

	wltest.Run(t, f.display, func() { tl.SetFullScreen(false) })
	cfg = lastToplevelConfigure(t, c.Roundtrip(), w.role)
	assert.Equal(t, geometry.Size{}, cfg.size)
	assert.Empty(t, cfg.states)
}

func TestInteractiveResizeKeepsOppositeCorner(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	w, tl := f.mapToplevel(t, c, 200, 100)

	wltest.Run(t, f.display, func() {
		require.True(t, tl.BeginResize(geometry.Point{X: 540, Y: 462}, geometry.EdgeTop|geometry.EdgeLeft))
		tl.UpdateMoveResize(geometry.Point{X: 500, Y: 442})
		assert.Equal(t, geometry.Rect{X: 500, Y: 442, Width: 240, Height: 120}, tl.MoveResizeGeometry())
	})
	events := c.Roundtrip()
	cfg := lastToplevelConfigure(t, events, w.role)
	assert.Equal(t, geometry.Size{Width: 240, Height: 120}, cfg.size)
	assert.Equal(t, []byte{3, 0, 0, 0}, cfg.states)

	// the client settles on a smaller size than asked for
	c.answer(w, lastSerial(t, events, w.xdg), 230, 110)
	wltest.Run(t, f.display, func() {
		assert.Equal(t, geometry.Rect{X: 510, Y: 452, Width: 230, Height: 110}, tl.FrameGeometry())

		// dragging past the opposite edge leaves at least one pixel
		tl.UpdateMoveResize(geometry.Point{X: 900, Y: 900})
		assert.Equal(t, geometry.Rect{X: 739, Y: 561, Width: 1, Height: 1}, tl.MoveResizeGeometry())
		tl.EndMoveResize()
		assert.False(t, tl.IsMoveResize())
	})
	cfg = lastToplevelConfigure(t, c.Roundtrip(), w.role)
	assert.Empty(t, cfg.states)
}

func TestInteractiveMove(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	_, tl := f.mapToplevel(t, c, 200, 100)

	wltest.Run(t, f.display, func() {
		require.True(t, tl.BeginMove(geometry.Point{}))
		assert.False(t, tl.IsResize())
		tl.UpdateMoveResize(geometry.Point{X: 10, Y: 5})
		assert.Equal(t, geometry.Rect{X: 550, Y: 467, Width: 200, Height: 100}, tl.FrameGeometry())
		tl.EndMoveResize()
	})
}

func TestResizeRequestReachesManager(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	seat := c.Bind("wl_seat", 1)
	w, tl := f.mapToplevel(t, c, 200, 100)

	var requests []ResizeRequest
	wltest.Run(t, f.display, func() {
		f.manager.ResizeRequested.Connect(func(r ResizeRequest) { requests = append(requests, r) })
	})
	c.Send(wire.NewMessage(w.role, 6).PutObject(seat).PutUint(1).PutUint(uint32(geometry.EdgeBottom | geometry.EdgeRight)))
	c.Roundtrip()
	wltest.Run(t, f.display, func() {
		require.Len(t, requests, 1)
		assert.Same(t, tl, requests[0].Window)
		assert.Equal(t, geometry.EdgeBottom|geometry.EdgeRight, requests[0].Edges)
	})
}

func TestPongClearsUnresponsive(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	_, tl := f.mapToplevel(t, c, 200, 100)

	var serial uint32
	wltest.Run(t, f.display, func() {
		tl.TakeFocus()
		assert.True(t, tl.IsActive())
		pings := tl.PendingPings()
		require.Len(t, pings, 1)
		for s, reason := range pings {
			serial = s
			assert.Equal(t, PingFocusWindow, reason)
		}
		tl.handlePingDelayed(serial)
		assert.True(t, tl.IsUnresponsive())
	})
	events := c.Roundtrip()
	pings := wltest.Filter(events, c.wm, 0)
	require.Len(t, pings, 1)
	assert.Equal(t, serial, pings[0].Decoder().Uint())

	c.Send(wire.NewMessage(c.wm, 3).PutUint(serial))
	c.Roundtrip()
	wltest.Run(t, f.display, func() {
		assert.False(t, tl.IsUnresponsive())
		assert.Empty(t, tl.PendingPings())
	})
}

func TestFocusPingTimeoutKeepsClient(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	_, tl := f.mapToplevel(t, c, 200, 100)

	wltest.Run(t, f.display, func() {
		tl.TakeFocus()
		for serial := range tl.PendingPings() {
			tl.handlePingTimeout(serial)
		}
		assert.Empty(t, tl.PendingPings())
		assert.False(t, c.Server().IsDestroyed())
	})
}

func TestUnansweredCloseKillsClient(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	_, tl := f.mapToplevel(t, c, 200, 100)

	var unresponsive []bool
	wltest.Run(t, f.display, func() {
		f.shell.PingInterval = 10 * time.Millisecond
		tl.UnresponsiveChanged.Connect(func(b bool) { unresponsive = append(unresponsive, b) })
		tl.CloseWindow()
	})

	require.Eventually(t, func() bool {
		var gone bool
		wltest.Run(t, f.display, func() { gone = c.Server().IsDestroyed() })
		return gone
	}, wltest.Timeout, 10*time.Millisecond)
	wltest.Run(t, f.display, func() {
		assert.Equal(t, []bool{true}, unresponsive)
		assert.Equal(t, []Window{tl}, f.removed)
		assert.Empty(t, f.manager.Windows())
		assert.True(t, tl.IsClosing())
	})
}

func TestWindowIDs(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t)
	b := f.connect(t)

	a1 := a.toplevel()
	a2 := a.toplevel()
	a.Roundtrip()
	b1 := b.toplevel()
	b.Roundtrip()

	assert.Equal(t, uint32(1<<16|a1.surface), f.window(t, a, a1.surface).ID())
	assert.Equal(t, uint32(1<<16|a2.surface), f.window(t, a, a2.surface).ID())
	w := f.window(t, b, b1.surface)
	assert.Equal(t, uint32(2<<16|b1.surface), w.ID())
	wltest.Run(t, f.display, func() {
		assert.Same(t, w, f.manager.FindWindow(w.ID()))
		assert.Nil(t, f.manager.FindWindow(0))
	})

	// a freed client id is handed out again
	a.Close()
	require.Eventually(t, func() bool {
		var n int
		wltest.Run(t, f.display, func() { n = len(f.manager.Windows()) })
		return n == 1
	}, wltest.Timeout, 10*time.Millisecond)

	c := f.connect(t)
	c1 := c.toplevel()
	c.Roundtrip()
	assert.Equal(t, uint32(1<<16|c1.surface), f.window(t, c, c1.surface).ID())
}

func TestDuplicateCaptionsAreNumbered(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)

	var windows []ids
	for _, title := range []string{"Terminal", "Terminal", "Terminal", "\tEditor\n"} {
		w := c.toplevel()
		c.Send(wire.NewMessage(w.role, 2).PutString(title))
		windows = append(windows, w)
	}
	c.Roundtrip()

	var captions []string
	for _, w := range windows {
		captions = append(captions, f.window(t, c, w.surface).Caption())
	}
	assert.Equal(t, []string{"Terminal", "Terminal <2>", "Terminal <3>", "Editor"}, captions)
}

func TestSimplifyCaption(t *testing.T) {
	assert.Equal(t, "a b", simplifyCaption(" a\x00b\r\n"))
	assert.Equal(t, "", simplifyCaption("\t\t"))
}

func TestPopupIsPlacedAgainstParent(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	parent, tl := f.mapToplevel(t, c, 200, 100)

	surface := c.CreateSurface()
	xdg := c.NewID()
	c.Send(wire.NewMessage(c.wm, 2).PutNewID(xdg).PutObject(surface))
	pos := c.NewID()
	c.Send(wire.NewMessage(c.wm, 1).PutNewID(pos))
	c.Send(wire.NewMessage(pos, 1).PutInt(50).PutInt(30))
	c.Send(wire.NewMessage(pos, 2).PutInt(0).PutInt(0).PutInt(200).PutInt(100))
	c.Send(wire.NewMessage(pos, 3).PutUint(6)) // bottom_left
	c.Send(wire.NewMessage(pos, 4).PutUint(8)) // bottom_right
	popup := c.NewID()
	c.Send(wire.NewMessage(xdg, 2).PutNewID(popup).PutObject(parent.xdg).PutObject(pos))
	c.Commit(surface)
	events := c.Roundtrip()

	configures := wltest.Filter(events, popup, 0)
	require.Len(t, configures, 1)
	d := configures[0].Decoder()
	assert.Equal(t, []int32{0, 100, 50, 30}, []int32{d.Int(), d.Int(), d.Int(), d.Int()})

	c.answer(ids{surface: surface, xdg: xdg, role: popup}, lastSerial(t, events, xdg), 50, 30)
	pc := f.window(t, c, surface).(*PopupClient)
	wltest.Run(t, f.display, func() {
		assert.Equal(t, geometry.Rect{X: 540, Y: 562, Width: 50, Height: 30}, pc.FrameGeometry())
		assert.Same(t, tl, pc.TransientFor())
		assert.Equal(t, []Window{pc}, f.manager.Transients(tl))
		assert.False(t, pc.IsResizable())
	})

	c.Send(wire.NewMessage(parent.role, 0))
	c.Send(wire.NewMessage(parent.xdg, 0))
	events = c.Roundtrip()
	assert.Len(t, wltest.Filter(events, popup, 1), 1)
	wltest.Run(t, f.display, func() {
		assert.Nil(t, pc.TransientFor())
		assert.Equal(t, []Window{tl}, f.removed)
	})
}

func TestUnmapDropsPendingConfigures(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	w, tl := f.mapToplevel(t, c, 200, 100)

	wltest.Run(t, f.display, func() {
		tl.SetFrameGeometry(geometry.Rect{X: 540, Y: 462, Width: 300, Height: 100})
	})
	c.Roundtrip()
	wltest.Run(t, f.display, func() { require.Len(t, tl.PendingConfigures(), 1) })

	c.Attach(w.surface, 0)
	c.Commit(w.surface)
	c.Roundtrip()
	wltest.Run(t, f.display, func() {
		assert.False(t, tl.IsMapped())
		assert.Empty(t, tl.PendingConfigures())
		assert.Equal(t, []Window{tl}, f.hidden)
		assert.Len(t, f.manager.Windows(), 1)
	})
}

func TestDestroyRemovesWindow(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	w, tl := f.mapToplevel(t, c, 200, 100)

	var closed int
	wltest.Run(t, f.display, func() {
		tl.Closed.Connect(func(signal.Void) { closed++ })
	})
	c.Send(wire.NewMessage(w.role, 0))
	c.Send(wire.NewMessage(w.xdg, 0))
	c.Roundtrip()
	wltest.Run(t, f.display, func() {
		assert.Equal(t, 1, closed)
		assert.Equal(t, []Window{tl}, f.removed)
		assert.Empty(t, f.manager.Windows())
		assert.Nil(t, f.manager.WindowFor(tl.Surface()))
	})
}

func TestSubSurfaceTreeMonitor(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	subcompositor := c.Bind("wl_subcompositor", 1)
	root, child, grandchild := c.CreateSurface(), c.CreateSurface(), c.CreateSurface()
	c.Roundtrip()

	var monitor *SubSurfaceTreeMonitor
	var added, removed, moved int
	wltest.Run(t, f.display, func() {
		monitor = NewSubSurfaceTreeMonitor(c.Server().Object(root).(*wayland.Surface))
		monitor.SubSurfaceAdded.Connect(func(*wayland.Subsurface) { added++ })
		monitor.SubSurfaceRemoved.Connect(func(*wayland.Subsurface) { removed++ })
		monitor.SubSurfaceMoved.Connect(func(*wayland.Subsurface) { moved++ })
	})

	childSub, grandSub := c.NewID(), c.NewID()
	c.Send(wire.NewMessage(subcompositor, 1).PutNewID(childSub).PutObject(child).PutObject(root))
	c.Send(wire.NewMessage(subcompositor, 1).PutNewID(grandSub).PutObject(grandchild).PutObject(child))
	c.Send(wire.NewMessage(grandSub, 1).PutInt(5).PutInt(5))
	c.Commit(child)
	c.Commit(root)
	c.Roundtrip()
	wltest.Run(t, f.display, func() {
		assert.Equal(t, 2, added)
		assert.Equal(t, 1, moved)
	})

	c.Send(wire.NewMessage(grandSub, 0))
	c.Roundtrip()
	wltest.Run(t, f.display, func() {
		assert.Equal(t, 1, removed)
		monitor.Close()
	})

	c.Send(wire.NewMessage(subcompositor, 1).PutNewID(c.NewID()).PutObject(grandchild).PutObject(child))
	c.Roundtrip()
	wltest.Run(t, f.display, func() { assert.Equal(t, 2, added) })
}
