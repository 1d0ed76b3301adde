package wayland

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Every protocol object embeds Resource, the field must not hide the Object methods
var (
	_ Object = (*displayObject)(nil)
	_ Object = (*registry)(nil)
	_ Object = (*Callback)(nil)
	_ Object = (*inert)(nil)
	_ Object = (*compositorResource)(nil)
	_ Object = (*Region)(nil)
	_ Object = (*Surface)(nil)
	_ Object = (*subcompositorResource)(nil)
	_ Object = (*Subsurface)(nil)
	_ Object = (*shmResource)(nil)
	_ Object = (*ShmPool)(nil)
	_ Object = (*ShmBuffer)(nil)
	_ Object = (*SeatResource)(nil)
	_ Object = (*outputResource)(nil)
)

func TestBaseResourceIsEmbeddedResource(t *testing.T) {
	cb := &Callback{}
	var obj Object = cb
	assert.Same(t, &cb.Resource, obj.BaseResource())
}
