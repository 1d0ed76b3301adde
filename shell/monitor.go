package shell

import (
	"github.com/mstarongithub/wayshell/geometry"
	"github.com/mstarongithub/wayshell/util/signal"
	"github.com/mstarongithub/wayshell/wayland"
)

// SubSurfaceTreeMonitor reports changes anywhere in the sub-surface tree below a surface
type SubSurfaceTreeMonitor struct {
	root        *wayland.Surface
	disconnects map[*wayland.Surface][]func()

	SubSurfaceAdded   signal.Signal[*wayland.Subsurface]
	SubSurfaceRemoved signal.Signal[*wayland.Subsurface]
	SubSurfaceMoved   signal.Signal[*wayland.Subsurface]
	SubSurfaceResized signal.Signal[*wayland.Subsurface]
}

func NewSubSurfaceTreeMonitor(root *wayland.Surface) *SubSurfaceTreeMonitor {
	m := &SubSurfaceTreeMonitor{
		root:        root,
		disconnects: map[*wayland.Surface][]func(){},
	}
	m.registerSurface(root)
	return m
}

func (m *SubSurfaceTreeMonitor) registerSurface(s *wayland.Surface) {
	m.disconnects[s] = append(m.disconnects[s],
		s.ChildSubsurfaceAdded.Connect(func(sub *wayland.Subsurface) {
			m.registerSubsurface(sub)
			m.SubSurfaceAdded.Emit(sub)
		}),
		s.ChildSubsurfaceRemoved.Connect(func(sub *wayland.Subsurface) {
			m.unregisterSubsurface(sub)
			m.SubSurfaceRemoved.Emit(sub)
		}),
	)
	for _, sub := range s.Subsurfaces() {
		m.registerSubsurface(sub)
	}
}

func (m *SubSurfaceTreeMonitor) registerSubsurface(sub *wayland.Subsurface) {
	s := sub.Surface()
	if _, ok := m.disconnects[s]; ok {
		return
	}
	m.disconnects[s] = []func(){
		sub.PositionChanged.Connect(func(geometry.Point) { m.SubSurfaceMoved.Emit(sub) }),
		s.SizeChanged.Connect(func(geometry.Size) { m.SubSurfaceResized.Emit(sub) }),
		// a child that turns mapped or unmapped changes the bounding rect as well
		s.Mapped.Connect(func(signal.Void) { m.SubSurfaceResized.Emit(sub) }),
		s.Unmapped.Connect(func(signal.Void) { m.SubSurfaceResized.Emit(sub) }),
	}
	m.registerSurface(s)
}

func (m *SubSurfaceTreeMonitor) unregisterSubsurface(sub *wayland.Subsurface) {
	s := sub.Surface()
	for _, child := range s.Subsurfaces() {
		m.unregisterSubsurface(child)
	}
	m.unregisterSurface(s)
}

func (m *SubSurfaceTreeMonitor) unregisterSurface(s *wayland.Surface) {
	for _, disconnect := range m.disconnects[s] {
		disconnect()
	}
	delete(m.disconnects, s)
}

// Close stops watching the tree
func (m *SubSurfaceTreeMonitor) Close() {
	for s := range m.disconnects {
		m.unregisterSurface(s)
	}
}
