// Package xdgshell implements the server side of xdg-shell, both the stable
// xdg_wm_base and the legacy zxdg_shell_v6 flavour.
//
// The two variants share opcodes. They differ in interface names and in how
// positioner anchors and gravities are encoded: stable uses an enum, v6 a bitmask.
package xdgshell

import (
	"github.com/mstarongithub/wayshell/wayland"
)

type Variant int

const (
	Stable Variant = iota
	V6
)

func (v Variant) String() string {
	if v == V6 {
		return "zxdg_shell_v6"
	}
	return "xdg_wm_base"
}

type interfaces struct {
	shell      wayland.Interface
	positioner wayland.Interface
	surface    wayland.Interface
	toplevel   wayland.Interface
	popup      wayland.Interface
}

var (
	shellRequests      = []string{"destroy", "create_positioner", "get_xdg_surface", "pong"}
	positionerRequests = []string{
		"destroy", "set_size", "set_anchor_rect", "set_anchor", "set_gravity",
		"set_constraint_adjustment", "set_offset",
	}
	surfaceRequests  = []string{"destroy", "get_toplevel", "get_popup", "set_window_geometry", "ack_configure"}
	toplevelRequests = []string{
		"destroy", "set_parent", "set_title", "set_app_id", "show_window_menu", "move", "resize",
		"set_max_size", "set_min_size", "set_maximized", "unset_maximized", "set_fullscreen",
		"unset_fullscreen", "set_minimized",
	}
	popupRequests = []string{"destroy", "grab"}
)

var variantInterfaces = [...]interfaces{
	Stable: {
		shell:      wayland.Interface{Name: "xdg_wm_base", Version: 1, Requests: shellRequests},
		positioner: wayland.Interface{Name: "xdg_positioner", Version: 1, Requests: positionerRequests},
		surface:    wayland.Interface{Name: "xdg_surface", Version: 1, Requests: surfaceRequests},
		toplevel:   wayland.Interface{Name: "xdg_toplevel", Version: 1, Requests: toplevelRequests},
		popup:      wayland.Interface{Name: "xdg_popup", Version: 1, Requests: popupRequests},
	},
	V6: {
		shell:      wayland.Interface{Name: "zxdg_shell_v6", Version: 1, Requests: shellRequests},
		positioner: wayland.Interface{Name: "zxdg_positioner_v6", Version: 1, Requests: positionerRequests},
		surface:    wayland.Interface{Name: "zxdg_surface_v6", Version: 1, Requests: surfaceRequests},
		toplevel:   wayland.Interface{Name: "zxdg_toplevel_v6", Version: 1, Requests: toplevelRequests},
		popup:      wayland.Interface{Name: "zxdg_popup_v6", Version: 1, Requests: popupRequests},
	},
}

func (v Variant) interfaces() *interfaces {
	return &variantInterfaces[v]
}

// Protocol error codes. The values are identical in both variants.
const (
	ShellErrorRole                uint32 = 0
	ShellErrorDefunctSurfaces     uint32 = 1
	ShellErrorNotTheTopmostPopup  uint32 = 2
	ShellErrorInvalidPopupParent  uint32 = 3
	ShellErrorInvalidSurfaceState uint32 = 4
	ShellErrorInvalidPositioner   uint32 = 5

	PositionerErrorInvalidInput uint32 = 0

	SurfaceErrorNotConstructed     uint32 = 1
	SurfaceErrorAlreadyConstructed uint32 = 2
	SurfaceErrorUnconfiguredBuffer uint32 = 3

	PopupErrorInvalidGrab uint32 = 0
)

// ErrorInvalidArgument is raised for malformed arguments the protocol has no
// dedicated error code for
const ErrorInvalidArgument uint32 = 0xffffffff

// event opcodes
const (
	shellEventPing         = 0
	surfaceEventConfigure  = 0
	toplevelEventConfigure = 0
	toplevelEventClose     = 1
	popupEventConfigure    = 0
	popupEventPopupDone    = 1
)

// toplevel configure state values
const (
	stateMaximized  uint32 = 1
	stateFullscreen uint32 = 2
	stateResizing   uint32 = 3
	stateActivated  uint32 = 4
)
