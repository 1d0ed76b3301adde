// Package geometry holds the integer point, size and rectangle types used for window placement.
//
// Rectangles follow the usual compositor convention where Right and Bottom are inclusive,
// so a rect at x=0 with a width of 10 has Right() == 9.
package geometry

import "fmt"

type Point struct {
	X, Y int
}

func (p Point) Add(o Point) Point {
	return Point{p.X + o.X, p.Y + o.Y}
}

func (p Point) Sub(o Point) Point {
	return Point{p.X - o.X, p.Y - o.Y}
}

func (p Point) IsNull() bool {
	return p.X == 0 && p.Y == 0
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

type Size struct {
	Width, Height int
}

// IsValid reports whether both dimensions are non-negative
func (s Size) IsValid() bool {
	return s.Width >= 0 && s.Height >= 0
}

// IsEmpty reports whether either dimension is zero or less
func (s Size) IsEmpty() bool {
	return s.Width <= 0 || s.Height <= 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

type Rect struct {
	X, Y          int
	Width, Height int
}

func NewRect(pos Point, size Size) Rect {
	return Rect{X: pos.X, Y: pos.Y, Width: size.Width, Height: size.Height}
}

func (r Rect) Left() int   { return r.X }
func (r Rect) Top() int    { return r.Y }
func (r Rect) Right() int  { return r.X + r.Width - 1 }
func (r Rect) Bottom() int { return r.Y + r.Height - 1 }

func (r Rect) TopLeft() Point     { return Point{r.X, r.Y} }
func (r Rect) BottomRight() Point { return Point{r.Right(), r.Bottom()} }
func (r Rect) Size() Size         { return Size{r.Width, r.Height} }

func (r Rect) Center() Point {
	return Point{(r.Left() + r.Right()) / 2, (r.Top() + r.Bottom()) / 2}
}

// IsValid reports whether the rect covers at least one pixel
func (r Rect) IsValid() bool {
	return r.Width > 0 && r.Height > 0
}

func (r Rect) IsEmpty() bool {
	return !r.IsValid()
}

// IsNull reports whether the rect has no extent at all
func (r Rect) IsNull() bool {
	return r.Width == 0 && r.Height == 0
}

func (r Rect) Translated(p Point) Rect {
	r.X += p.X
	r.Y += p.Y
	return r
}

func (r Rect) Contains(p Point) bool {
	return r.IsValid() && p.X >= r.Left() && p.X <= r.Right() && p.Y >= r.Top() && p.Y <= r.Bottom()
}

func (r Rect) ContainsRect(o Rect) bool {
	if !r.IsValid() || !o.IsValid() {
		return false
	}
	return o.Left() >= r.Left() && o.Right() <= r.Right() && o.Top() >= r.Top() && o.Bottom() <= r.Bottom()
}

func (r Rect) Intersects(o Rect) bool {
	return r.Intersected(o).IsValid()
}

// Intersected returns the overlapping area, or the zero rect if there is none
func (r Rect) Intersected(o Rect) Rect {
	if r.IsEmpty() || o.IsEmpty() {
		return Rect{}
	}
	left := max(r.Left(), o.Left())
	right := min(r.Right(), o.Right())
	top := max(r.Top(), o.Top())
	bottom := min(r.Bottom(), o.Bottom())
	if left > right || top > bottom {
		return Rect{}
	}
	return Rect{X: left, Y: top, Width: right - left + 1, Height: bottom - top + 1}
}

// United returns the bounding rect of both. Null rects are ignored.
func (r Rect) United(o Rect) Rect {
	if r.IsNull() {
		return o
	}
	if o.IsNull() {
		return r
	}
	left := min(r.Left(), o.Left())
	right := max(r.Right(), o.Right())
	top := min(r.Top(), o.Top())
	bottom := max(r.Bottom(), o.Bottom())
	return Rect{X: left, Y: top, Width: right - left + 1, Height: bottom - top + 1}
}

// The Move functions keep the size and shift the rect so the named edge lands on the given coordinate

func (r *Rect) MoveLeft(x int)   { r.X = x }
func (r *Rect) MoveTop(y int)    { r.Y = y }
func (r *Rect) MoveRight(x int)  { r.X = x - r.Width + 1 }
func (r *Rect) MoveBottom(y int) { r.Y = y - r.Height + 1 }

func (r *Rect) MoveTopLeft(p Point) {
	r.X, r.Y = p.X, p.Y
}

func (r *Rect) MoveBottomRight(p Point) {
	r.MoveRight(p.X)
	r.MoveBottom(p.Y)
}

// The Set functions move a single edge and change the size accordingly

func (r *Rect) SetLeft(x int) {
	r.Width += r.X - x
	r.X = x
}

func (r *Rect) SetTop(y int) {
	r.Height += r.Y - y
	r.Y = y
}

func (r *Rect) SetRight(x int) {
	r.Width = x - r.X + 1
}

func (r *Rect) SetBottom(y int) {
	r.Height = y - r.Y + 1
}

func (r *Rect) SetSize(s Size) {
	r.Width, r.Height = s.Width, s.Height
}

func (r Rect) String() string {
	return fmt.Sprintf("%d,%d %dx%d", r.X, r.Y, r.Width, r.Height)
}
