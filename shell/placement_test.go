package shell

import (
	"testing"

	"github.com/mstarongithub/wayshell/geometry"
	"github.com/mstarongithub/wayshell/xdgshell"
	"github.com/stretchr/testify/assert"
)

var (
	placementBounds = geometry.Rect{Width: 1280, Height: 1024}
	popupSize       = geometry.Size{Width: 200, Height: 200}
	anchorRect      = geometry.Rect{X: 50, Y: 50, Width: 400, Height: 400}
)

const (
	top    = geometry.EdgeTop
	bottom = geometry.EdgeBottom
	left   = geometry.EdgeLeft
	right  = geometry.EdgeRight
	both   = geometry.Horizontal | geometry.Vertical
)

func TestPopupAnchor(t *testing.T) {
	tests := []struct {
		name   string
		anchor geometry.Edges
		want   geometry.Point
	}{
		{"centre", geometry.EdgeNone, geometry.Point{X: 550, Y: 550}},
		{"topLeft", top | left, geometry.Point{X: 350, Y: 350}},
		{"top", top, geometry.Point{X: 550, Y: 350}},
		{"topRight", top | right, geometry.Point{X: 750, Y: 350}},
		{"right", right, geometry.Point{X: 750, Y: 550}},
		{"bottomRight", bottom | right, geometry.Point{X: 750, Y: 750}},
		{"bottom", bottom, geometry.Point{X: 550, Y: 750}},
		{"bottomLeft", bottom | left, geometry.Point{X: 350, Y: 750}},
		{"left", left, geometry.Point{X: 350, Y: 550}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := xdgshell.Positioner{
				Size:       popupSize,
				AnchorRect: anchorRect,
				Anchor:     tt.anchor,
				Gravity:    bottom | right,
			}
			got := PlacePopup(p, geometry.Point{X: 300, Y: 300}, popupSize, placementBounds)
			assert.Equal(t, geometry.NewRect(tt.want, popupSize), got)
		})
	}
}

func TestPopupGravity(t *testing.T) {
	tests := []struct {
		name    string
		gravity geometry.Edges
		want    geometry.Point
	}{
		{"centre", geometry.EdgeNone, geometry.Point{X: 650, Y: 650}},
		{"topLeft", top | left, geometry.Point{X: 550, Y: 550}},
		{"top", top, geometry.Point{X: 650, Y: 550}},
		{"topRight", top | right, geometry.Point{X: 750, Y: 550}},
		{"right", right, geometry.Point{X: 750, Y: 650}},
		{"bottomRight", bottom | right, geometry.Point{X: 750, Y: 750}},
		{"bottom", bottom, geometry.Point{X: 650, Y: 750}},
		{"bottomLeft", bottom | left, geometry.Point{X: 550, Y: 750}},
		{"left", left, geometry.Point{X: 550, Y: 650}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := xdgshell.Positioner{
				Size:       popupSize,
				AnchorRect: anchorRect,
				Anchor:     bottom | right,
				Gravity:    tt.gravity,
			}
			got := PlacePopup(p, geometry.Point{X: 300, Y: 300}, popupSize, placementBounds)
			assert.Equal(t, geometry.NewRect(tt.want, popupSize), got)
		})
	}
}

func TestPopupConstraints(t *testing.T) {
	tests := []struct {
		name            string
		parent          geometry.Point
		anchor, gravity geometry.Edges
		size            geometry.Size
		slide, flip     geometry.Orientations
		resize          geometry.Orientations
		want            geometry.Rect
	}{
		{name: "slideTop", parent: geometry.Point{X: 80, Y: 80}, anchor: top, gravity: top, slide: both,
			want: geometry.Rect{X: 230, Y: 0, Width: 200, Height: 200}},
		{name: "slideLeft", parent: geometry.Point{X: 80, Y: 80}, anchor: left, gravity: left, slide: both,
			want: geometry.Rect{X: 0, Y: 230, Width: 200, Height: 200}},
		{name: "slideRight", parent: geometry.Point{X: 700, Y: 80}, anchor: right, gravity: right, slide: both,
			want: geometry.Rect{X: 1080, Y: 230, Width: 200, Height: 200}},
		{name: "slideBottom", parent: geometry.Point{X: 80, Y: 500}, anchor: bottom, gravity: bottom, slide: both,
			want: geometry.Rect{X: 230, Y: 824, Width: 200, Height: 200}},
		{name: "slideBottomRight", parent: geometry.Point{X: 700, Y: 1000}, anchor: bottom | right, gravity: bottom | right, slide: both,
			want: geometry.Rect{X: 1080, Y: 824, Width: 200, Height: 200}},

		{name: "flipTop", parent: geometry.Point{X: 80, Y: 80}, anchor: top, gravity: top, flip: both,
			want: geometry.Rect{X: 230, Y: 530, Width: 200, Height: 200}},
		{name: "flipLeft", parent: geometry.Point{X: 80, Y: 80}, anchor: left, gravity: left, flip: both,
			want: geometry.Rect{X: 530, Y: 230, Width: 200, Height: 200}},
		{name: "flipRight", parent: geometry.Point{X: 700, Y: 80}, anchor: right, gravity: right, flip: both,
			want: geometry.Rect{X: 550, Y: 230, Width: 200, Height: 200}},
		{name: "flipBottom", parent: geometry.Point{X: 80, Y: 500}, anchor: bottom, gravity: bottom, flip: both,
			want: geometry.Rect{X: 230, Y: 350, Width: 200, Height: 200}},
		{name: "flipBottomRight", parent: geometry.Point{X: 700, Y: 500}, anchor: bottom | right, gravity: bottom | right, flip: both,
			want: geometry.Rect{X: 550, Y: 350, Width: 200, Height: 200}},
		{name: "flipRightNoAnchor", parent: geometry.Point{X: 700, Y: 80}, anchor: top, gravity: right, flip: both,
			size: geometry.Size{Width: 400, Height: 400},
			want: geometry.Rect{X: 550, Y: 330, Width: 400, Height: 400}},
		{name: "flipRightNoGravity", parent: geometry.Point{X: 700, Y: 80}, anchor: right, gravity: top, flip: both,
			size: geometry.Size{Width: 300, Height: 200},
			want: geometry.Rect{X: 600, Y: 130, Width: 300, Height: 200}},

		{name: "resizeTop", parent: geometry.Point{X: 80, Y: 80}, anchor: top, gravity: top, resize: both,
			want: geometry.Rect{X: 230, Y: 0, Width: 200, Height: 130}},
		{name: "noAdjustment", parent: geometry.Point{X: 80, Y: 80}, anchor: top, gravity: top,
			want: geometry.Rect{X: 230, Y: -70, Width: 200, Height: 200}},
		{name: "flipBeforeSlide", parent: geometry.Point{X: 80, Y: 80}, anchor: top, gravity: top, flip: both, slide: both,
			want: geometry.Rect{X: 230, Y: 530, Width: 200, Height: 200}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size := tt.size
			if size.IsEmpty() {
				size = popupSize
			}
			p := xdgshell.Positioner{
				Size:       size,
				AnchorRect: anchorRect,
				Anchor:     tt.anchor,
				Gravity:    tt.gravity,
				Slide:      tt.slide,
				Flip:       tt.flip,
				Resize:     tt.resize,
			}
			assert.Equal(t, tt.want, PlacePopup(p, tt.parent, size, placementBounds))
		})
	}
}

func TestPopupOffsetRoundsCentre(t *testing.T) {
	got := PopupOffset(geometry.Rect{Width: 5, Height: 5}, geometry.EdgeNone, geometry.EdgeNone, geometry.Size{Width: 3, Height: 3})
	// 2.5 rounds up to 3, -1.5 rounds up to -1
	assert.Equal(t, geometry.Point{X: 2, Y: 2}, got)
}

func TestPopupFlipThatDoesNotFitIsDropped(t *testing.T) {
	p := xdgshell.Positioner{
		Size:       geometry.Size{Width: 200, Height: 700},
		AnchorRect: geometry.Rect{X: 0, Y: 0, Width: 10, Height: 10},
		Anchor:     top,
		Gravity:    top,
		Flip:       geometry.Vertical,
	}
	got := PlacePopup(p, geometry.Point{X: 500, Y: 500}, p.Size, placementBounds)
	assert.Equal(t, -200, got.Y)
}
