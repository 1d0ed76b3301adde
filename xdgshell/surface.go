package xdgshell

import (
	"github.com/mstarongithub/wayshell/geometry"
	"github.com/mstarongithub/wayshell/util/signal"
	"github.com/mstarongithub/wayshell/wayland"
	"github.com/mstarongithub/wayshell/wire"
	"github.com/sirupsen/logrus"
)

// role is implemented by Toplevel and Popup
type role interface {
	wayland.Object
	roleName() string
	initialize()
	commit()
}

type surfaceState struct {
	windowGeometry    geometry.Rect
	windowGeometrySet bool
}

// Surface is an xdg_surface. It is the role object of its wl_surface and holds
// the toplevel or popup role on top of that.
type Surface struct {
	wayland.Resource
	shell   *Shell
	owner   *shellResource
	surface *wayland.Surface

	role     role
	roleName string

	configured bool
	pending    surfaceState
	current    surfaceState

	// ConfigureAcknowledged carries the serial of every ack_configure
	ConfigureAcknowledged signal.Signal[uint32]
	WindowGeometryChanged signal.Signal[geometry.Rect]
}

func (s *Surface) RoleName() string {
	return "xdg_surface"
}

func (s *Surface) Shell() *Shell {
	return s.shell
}

// Surface returns the underlying wl_surface
func (s *Surface) Surface() *wayland.Surface {
	return s.surface
}

func (s *Surface) Toplevel() *Toplevel {
	t, _ := s.role.(*Toplevel)
	return t
}

func (s *Surface) Popup() *Popup {
	p, _ := s.role.(*Popup)
	return p
}

// IsConfigured reports whether a configure event was sent
func (s *Surface) IsConfigured() bool {
	return s.configured
}

// WindowGeometry is the committed window geometry. It is the zero Rect if the
// client never set one.
func (s *Surface) WindowGeometry() geometry.Rect {
	return s.current.windowGeometry
}

func (s *Surface) Dispatch(opcode uint16, args *wire.Decoder) error {
	ifaces := s.shell.variant.interfaces()
	switch opcode {
	case 0: // destroy
		s.Destroy()
	case 1: // get_toplevel
		id := args.NewID()
		if args.Err() != nil {
			return nil
		}
		t := &Toplevel{xdg: s}
		if err := s.assignRole(t); err != nil {
			return err
		}
		if err := s.Client().AddObject(id, &ifaces.toplevel, s.Version(), t); err != nil {
			s.role = nil
			return err
		}
		s.shell.ToplevelCreated.Emit(t)
	case 2: // get_popup
		id, parentID, positionerID := args.NewID(), args.Object(), args.Object()
		if args.Err() != nil {
			return nil
		}
		if s.role != nil {
			return s.Errorf(SurfaceErrorAlreadyConstructed, "xdg_surface@%d already has a role object", s.ID())
		}
		pr, ok := s.Client().Object(positionerID).(*PositionerResource)
		if !ok {
			return s.Errorf(wayland.ErrorInvalidObject, "object %d is not a positioner", positionerID)
		}
		positioner := pr.Positioner()
		if !positioner.IsComplete() {
			return s.owner.Errorf(ShellErrorInvalidPositioner, "positioner@%d is incomplete", positionerID)
		}
		if parentID == 0 {
			return s.Errorf(ErrorInvalidArgument, "popups need a parent surface")
		}
		parent, ok := s.Client().Object(parentID).(*Surface)
		if !ok {
			return s.Errorf(wayland.ErrorInvalidObject, "object %d is not an xdg_surface", parentID)
		}
		p := &Popup{xdg: s, positioner: positioner}
		if err := s.assignRole(p); err != nil {
			return err
		}
		if err := s.Client().AddObject(id, &ifaces.popup, s.Version(), p); err != nil {
			s.role = nil
			return err
		}
		p.setParent(parent)
		s.shell.PopupCreated.Emit(p)
	case 3: // set_window_geometry
		x, y, w, h := args.Int(), args.Int(), args.Int(), args.Int()
		if args.Err() != nil {
			return nil
		}
		if s.role == nil {
			return s.Errorf(SurfaceErrorNotConstructed, "xdg_surface must have a role before setting the window geometry")
		}
		if w < 1 || h < 1 {
			return s.Errorf(ErrorInvalidArgument, "invalid window geometry size (%dx%d)", w, h)
		}
		s.pending.windowGeometry = geometry.Rect{X: int(x), Y: int(y), Width: int(w), Height: int(h)}
		s.pending.windowGeometrySet = true
	case 4: // ack_configure
		serial := args.Uint()
		if args.Err() != nil {
			return nil
		}
		s.ConfigureAcknowledged.Emit(serial)
	}
	return nil
}

func (s *Surface) assignRole(r role) error {
	if s.role != nil || (s.roleName != "" && s.roleName != r.roleName()) {
		return s.Errorf(SurfaceErrorAlreadyConstructed, "xdg_surface@%d already has a role object", s.ID())
	}
	s.role = r
	s.roleName = r.roleName()
	return nil
}

// CommitRole runs on every wl_surface commit
func (s *Surface) CommitRole() error {
	if s.role == nil {
		if s.roleName == "" {
			return s.Errorf(SurfaceErrorNotConstructed, "xdg_surface@%d committed without a role", s.ID())
		}
		// the role object is gone, the client is tearing down
		return nil
	}
	if !s.configured {
		if s.surface.Buffer() != nil {
			return s.Errorf(SurfaceErrorUnconfiguredBuffer, "xdg_surface@%d attached a buffer before the first configure", s.ID())
		}
		s.role.initialize()
		return nil
	}
	if s.pending.windowGeometrySet {
		old := s.current.windowGeometry
		s.current.windowGeometry = s.pending.windowGeometry
		s.pending = surfaceState{}
		if old != s.current.windowGeometry {
			s.WindowGeometryChanged.Emit(s.current.windowGeometry)
		}
	}
	s.role.commit()
	return nil
}

// sendConfigure finishes a configure sequence started by the role and returns its serial
func (s *Surface) sendConfigure() uint32 {
	serial := s.shell.display.NextSerial()
	s.Post(s.Event(surfaceEventConfigure).PutUint(serial))
	s.configured = true
	return serial
}

func (s *Surface) HandleDestroy() {
	// the role object must not outlive its xdg_surface
	if s.role != nil {
		logrus.WithFields(logrus.Fields{
			"surface": s.ID(),
			"role":    s.role.roleName(),
		}).Warnln("xdg_surface destroyed before its role object")
		s.role.BaseResource().Destroy()
		s.role = nil
	}
	s.surface.ClearRole(s)
	s.owner.removeSurface(s)
}
