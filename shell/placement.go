package shell

import (
	"math"

	"github.com/mstarongithub/wayshell/geometry"
	"github.com/mstarongithub/wayshell/xdgshell"
)

// round rounds halves up, matching what clients compute for centred anchors
func round(v float64) int {
	return int(math.Floor(v + 0.5))
}

// PopupOffset returns the top-left corner of a popup of the given size, relative to
// the coordinate space of anchorRect
func PopupOffset(anchorRect geometry.Rect, anchor, gravity geometry.Edges, size geometry.Size) geometry.Point {
	var p geometry.Point
	switch anchor & geometry.EdgesHorizontal {
	case geometry.EdgeLeft:
		p.X = anchorRect.X
	case geometry.EdgeRight:
		p.X = anchorRect.X + anchorRect.Width
	default:
		p.X = round(float64(anchorRect.X) + float64(anchorRect.Width)/2)
	}
	switch anchor & geometry.EdgesVertical {
	case geometry.EdgeTop:
		p.Y = anchorRect.Y
	case geometry.EdgeBottom:
		p.Y = anchorRect.Y + anchorRect.Height
	default:
		p.Y = round(float64(anchorRect.Y) + float64(anchorRect.Height)/2)
	}

	// gravity points away from the anchor: gravity top puts the popup's bottom edge on it
	switch gravity & geometry.EdgesHorizontal {
	case geometry.EdgeLeft:
		p.X -= size.Width
	case geometry.EdgeRight:
	default:
		p.X += round(-float64(size.Width) / 2)
	}
	switch gravity & geometry.EdgesVertical {
	case geometry.EdgeTop:
		p.Y -= size.Height
	case geometry.EdgeBottom:
	default:
		p.Y += round(-float64(size.Height) / 2)
	}
	return p
}

// inBounds checks the given edges of target against bounds
func inBounds(bounds, target geometry.Rect, edges geometry.Edges) bool {
	if edges.Has(geometry.EdgeLeft) && target.Left() < bounds.Left() {
		return false
	}
	if edges.Has(geometry.EdgeTop) && target.Top() < bounds.Top() {
		return false
	}
	if edges.Has(geometry.EdgeRight) && target.Right() > bounds.Right() {
		return false
	}
	if edges.Has(geometry.EdgeBottom) && target.Bottom() > bounds.Bottom() {
		return false
	}
	return true
}

// PlacePopup computes the absolute rectangle of a popup.
//
// parentPos is the absolute position of the parent's window geometry and size the
// popup size to place. The candidate from PopupOffset is kept if it fits in bounds.
// Otherwise each axis, horizontal first, tries flip, then slide, then resize, as far
// as the positioner allows them.
func PlacePopup(p xdgshell.Positioner, parentPos geometry.Point, size geometry.Size, bounds geometry.Rect) geometry.Rect {
	place := func(anchor, gravity geometry.Edges) geometry.Rect {
		pos := PopupOffset(p.AnchorRect, anchor, gravity, size).Add(p.Offset).Add(parentPos)
		return geometry.NewRect(pos, size)
	}

	rect := place(p.Anchor, p.Gravity)
	if inBounds(bounds, rect, geometry.EdgesAll) {
		return rect
	}

	axes := []struct {
		orientation geometry.Orientations
		edges       geometry.Edges
		near, far   geometry.Edges
		moveNear    func(*geometry.Rect, int)
		moveFar     func(*geometry.Rect, int)
		setNear     func(*geometry.Rect, int)
		setFar      func(*geometry.Rect, int)
		near0, far0 int
		flippedNear func(geometry.Rect) int
	}{
		{
			orientation: geometry.Horizontal,
			edges:       geometry.EdgesHorizontal,
			near:        geometry.EdgeLeft,
			far:         geometry.EdgeRight,
			moveNear:    (*geometry.Rect).MoveLeft,
			moveFar:     (*geometry.Rect).MoveRight,
			setNear:     (*geometry.Rect).SetLeft,
			setFar:      (*geometry.Rect).SetRight,
			near0:       bounds.Left(),
			far0:        bounds.Right(),
			flippedNear: geometry.Rect.Left,
		},
		{
			orientation: geometry.Vertical,
			edges:       geometry.EdgesVertical,
			near:        geometry.EdgeTop,
			far:         geometry.EdgeBottom,
			moveNear:    (*geometry.Rect).MoveTop,
			moveFar:     (*geometry.Rect).MoveBottom,
			setNear:     (*geometry.Rect).SetTop,
			setFar:      (*geometry.Rect).SetBottom,
			near0:       bounds.Top(),
			far0:        bounds.Bottom(),
			flippedNear: geometry.Rect.Top,
		},
	}

	for _, axis := range axes {
		if p.Flip.Has(axis.orientation) && !inBounds(bounds, rect, axis.edges) {
			flipped := place(p.Anchor.Flipped(axis.orientation), p.Gravity.Flipped(axis.orientation))
			// a flip that still does not fit is dropped
			if inBounds(bounds, flipped, axis.edges) {
				axis.moveNear(&rect, axis.flippedNear(flipped))
			}
		}
		if p.Slide.Has(axis.orientation) {
			if !inBounds(bounds, rect, axis.near) {
				axis.moveNear(&rect, axis.near0)
			}
			if !inBounds(bounds, rect, axis.far) {
				axis.moveFar(&rect, axis.far0)
			}
		}
		if p.Resize.Has(axis.orientation) {
			resized := rect
			if !inBounds(bounds, resized, axis.near) {
				axis.setNear(&resized, axis.near0)
			}
			if !inBounds(bounds, resized, axis.far) {
				axis.setFar(&resized, axis.far0)
			}
			if resized.IsValid() {
				rect = resized
			}
		}
	}
	return rect
}
