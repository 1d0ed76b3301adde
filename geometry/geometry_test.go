package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRectEdges(t *testing.T) {
	assert := assert.New(t)
	r := Rect{10, 20, 100, 50}
	assert.Equal(109, r.Right())
	assert.Equal(69, r.Bottom())
	assert.Equal(Point{109, 69}, r.BottomRight())

	r.MoveRight(199)
	assert.Equal(100, r.X)
	r.MoveBottom(99)
	assert.Equal(50, r.Y)
	assert.Equal(Size{100, 50}, r.Size())
}

func TestRectSetEdges(t *testing.T) {
	assert := assert.New(t)
	r := Rect{10, 10, 100, 100}
	r.SetLeft(0)
	assert.Equal(Rect{0, 10, 110, 100}, r)
	r.SetRight(49)
	assert.Equal(Rect{0, 10, 50, 100}, r)
	r.SetTop(20)
	assert.Equal(Rect{0, 20, 50, 90}, r)
	r.SetBottom(10)
	assert.False(r.IsValid())
}

func TestRectIntersected(t *testing.T) {
	assert := assert.New(t)
	a := Rect{0, 0, 100, 100}
	assert.Equal(Rect{50, 50, 50, 50}, a.Intersected(Rect{50, 50, 100, 100}))
	assert.Equal(Rect{}, a.Intersected(Rect{100, 0, 10, 10}))
	assert.Equal(Rect{}, a.Intersected(Rect{}))
	assert.True(a.Intersects(Rect{99, 99, 1, 1}))
	assert.False(a.Intersects(Rect{100, 100, 1, 1}))
}

func TestRectUnited(t *testing.T) {
	assert := assert.New(t)
	a := Rect{0, 0, 10, 10}
	assert.Equal(Rect{0, 0, 30, 30}, a.United(Rect{20, 20, 10, 10}))
	assert.Equal(a, a.United(Rect{}))
	assert.Equal(a, Rect{}.United(a))
}

func TestRectContains(t *testing.T) {
	assert := assert.New(t)
	a := Rect{0, 0, 10, 10}
	assert.True(a.Contains(Point{9, 9}))
	assert.False(a.Contains(Point{10, 9}))
	assert.True(a.ContainsRect(Rect{2, 2, 8, 8}))
	assert.False(a.ContainsRect(Rect{2, 2, 9, 8}))
}

func TestEdgesFlipped(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(EdgeBottom|EdgeLeft, (EdgeTop | EdgeLeft).Flipped(Vertical))
	assert.Equal(EdgeBottom|EdgeRight, (EdgeTop | EdgeLeft).Flipped(Horizontal|Vertical))
	assert.Equal(EdgeTop, EdgeTop.Flipped(Horizontal))
	assert.True((EdgeLeft | EdgeRight).HasOpposing())
	assert.False((EdgeLeft | EdgeTop).HasOpposing())
	assert.Equal("top|right", (EdgeTop | EdgeRight).String())
}
