package drm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uevent(fields ...string) []byte {
	return []byte(strings.Join(fields, "\x00") + "\x00")
}

func TestParseUEvent(t *testing.T) {
	ev, err := ParseUEvent(uevent(
		"change@/devices/pci0000:00/0000:00:02.0/drm/card0",
		"ACTION=change",
		"DEVPATH=/devices/pci0000:00/0000:00:02.0/drm/card0",
		"SUBSYSTEM=drm",
		"HOTPLUG=1",
		"DEVNAME=dri/card0",
		"SEQNUM=2841",
	))
	require.NoError(t, err)
	assert := assert.New(t)
	assert.Equal("change", ev.Action)
	assert.Equal("/devices/pci0000:00/0000:00:02.0/drm/card0", ev.DevPath)
	assert.Equal("drm", ev.Subsystem)
	assert.Equal("/dev/dri/card0", ev.DeviceNode())
	assert.True(ev.IsDrmCard())
	assert.Equal("1", ev.Env["HOTPLUG"])
}

func TestParseUEventFiltersOtherSources(t *testing.T) {
	_, err := ParseUEvent([]byte("libudev\x00\xfe\xed\xca\xfe"))
	assert.ErrorIs(t, err, ErrNotKernelEvent)

	_, err = ParseUEvent(uevent("garbage", "ACTION=add"))
	assert.Error(t, err)

	ev, err := ParseUEvent(uevent("add@/devices/drm/renderD128", "SUBSYSTEM=drm", "DEVNAME=dri/renderD128"))
	require.NoError(t, err)
	assert.False(t, ev.IsDrmCard())

	ev, err = ParseUEvent(uevent("add@/devices/virtual/input/input9", "SUBSYSTEM=input"))
	require.NoError(t, err)
	assert.Equal(t, "add", ev.Action)
	assert.Empty(t, ev.DeviceNode())
	assert.False(t, ev.IsDrmCard())
}
