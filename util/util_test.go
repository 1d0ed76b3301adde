package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnpack(t *testing.T) {
	var a, b, c string
	Unpack([]string{"one", "two"}, &a, &b, &c)
	assert.Equal(t, "one", a)
	assert.Equal(t, "two", b)
	assert.Equal(t, "", c)

	Unpack([]string{"x", "y", "z", "w"}, &a, &b)
	assert.Equal(t, "x", a)
	assert.Equal(t, "y", b)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, Clamp(10, 0, 5))
	assert.Equal(t, 0, Clamp(-3, 0, 5))
	assert.Equal(t, 3, Clamp(3, 0, 5))
	// an empty range keeps the lower bound
	assert.Equal(t, 7, Clamp(3, 7, 5))
}
