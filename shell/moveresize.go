package shell

import (
	"github.com/mstarongithub/wayshell/geometry"
	"github.com/sirupsen/logrus"
)

type moveResize struct {
	active bool
	edges  geometry.Edges
	// grab is the cursor position the operation started at
	grab geometry.Point
	// initial is the frame geometry when the operation started
	initial geometry.Rect
	// target is where the operation wants the window to be
	target geometry.Rect
}

// BeginMove starts an interactive move driven by UpdateMoveResize
func (c *SurfaceClient) BeginMove(cursor geometry.Point) bool {
	if c.closing || c.unmapped || !c.role.IsMovable() {
		return false
	}
	c.beginMoveResize(cursor, geometry.EdgeNone)
	return true
}

// BeginResize starts an interactive resize from the given edges
func (c *SurfaceClient) BeginResize(cursor geometry.Point, edges geometry.Edges) bool {
	if c.closing || c.unmapped || edges == geometry.EdgeNone || edges.HasOpposing() || !c.role.IsResizable() {
		return false
	}
	c.beginMoveResize(cursor, edges)
	// the resizing state goes out with the next configure
	c.scheduleConfigure()
	return true
}

func (c *SurfaceClient) beginMoveResize(cursor geometry.Point, edges geometry.Edges) {
	if c.moveResize.active {
		c.EndMoveResize()
	}
	c.moveResize = moveResize{
		active:  true,
		edges:   edges,
		grab:    cursor,
		initial: c.frame,
		target:  c.frame,
	}
	logrus.WithFields(logrus.Fields{
		"window": c.id,
		"edges":  edges,
	}).Debugln("Interactive move/resize started")
}

// UpdateMoveResize moves the grabbed edges (or the whole window) along with the cursor
func (c *SurfaceClient) UpdateMoveResize(cursor geometry.Point) {
	mr := &c.moveResize
	if !mr.active {
		return
	}
	delta := cursor.Sub(mr.grab)
	if mr.edges == geometry.EdgeNone {
		mr.target = mr.initial.Translated(delta)
		c.Move(mr.target.TopLeft())
		return
	}

	// right and bottom are exclusive here
	nLeft := mr.initial.X
	nRight := mr.initial.X + mr.initial.Width
	nTop := mr.initial.Y
	nBottom := mr.initial.Y + mr.initial.Height

	if mr.edges.Has(geometry.EdgeTop) {
		nTop = mr.initial.Y + delta.Y
		if nTop >= nBottom {
			nTop = nBottom - 1
		}
	} else if mr.edges.Has(geometry.EdgeBottom) {
		nBottom = mr.initial.Y + mr.initial.Height + delta.Y
		if nBottom <= nTop {
			nBottom = nTop + 1
		}
	}
	if mr.edges.Has(geometry.EdgeLeft) {
		nLeft = mr.initial.X + delta.X
		if nLeft >= nRight {
			nLeft = nRight - 1
		}
	} else if mr.edges.Has(geometry.EdgeRight) {
		nRight = mr.initial.X + mr.initial.Width + delta.X
		if nRight <= nLeft {
			nRight = nLeft + 1
		}
	}

	size := c.role.constrainSize(geometry.Size{Width: nRight - nLeft, Height: nBottom - nTop})
	// the grabbed edge gives way to the size limits, the opposite one stays put
	if mr.edges.Has(geometry.EdgeLeft) {
		nLeft = nRight - size.Width
	}
	if mr.edges.Has(geometry.EdgeTop) {
		nTop = nBottom - size.Height
	}
	mr.target = geometry.Rect{X: nLeft, Y: nTop, Width: size.Width, Height: size.Height}
	c.requestGeometry(mr.target)
}

// EndMoveResize finishes the interactive operation
func (c *SurfaceClient) EndMoveResize() {
	if !c.moveResize.active {
		return
	}
	wasResize := c.IsResize()
	c.moveResize.active = false
	logrus.WithField("window", c.id).Debugln("Interactive move/resize finished")
	if wasResize {
		c.scheduleConfigure()
	}
}

func (c *SurfaceClient) IsMoveResize() bool {
	return c.moveResize.active
}

func (c *SurfaceClient) IsResize() bool {
	return c.moveResize.active && c.moveResize.edges != geometry.EdgeNone
}

// MoveResizeGeometry is the geometry the interactive operation is heading for
func (c *SurfaceClient) MoveResizeGeometry() geometry.Rect {
	return c.moveResize.target
}

// adjustMoveResizeGeometry keeps the edges opposite to the grabbed ones in place,
// so a client that answers with a different size does not make the window jump
func (c *SurfaceClient) adjustMoveResizeGeometry(r geometry.Rect) geometry.Rect {
	mr := c.moveResize.target
	if c.moveResize.edges.Has(geometry.EdgeLeft) {
		r.MoveRight(mr.Right())
	} else {
		r.MoveLeft(mr.Left())
	}
	if c.moveResize.edges.Has(geometry.EdgeTop) {
		r.MoveBottom(mr.Bottom())
	} else {
		r.MoveTop(mr.Top())
	}
	return r
}
