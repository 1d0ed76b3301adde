package drm

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvents(t *testing.T) {
	buf := AppendEvent(nil, Event{Type: EventVBlank, Sequence: 1, CrtcID: 5})
	other := make([]byte, 12)
	binary.NativeEndian.PutUint32(other[0:], 0x80000000)
	binary.NativeEndian.PutUint32(other[4:], 12)
	buf = append(buf, other...)
	buf = AppendEvent(buf, Event{Type: EventFlipComplete, UserData: 9, Sec: 3, Usec: 4, Sequence: 2, CrtcID: 6})
	buf = append(buf, AppendEvent(nil, Event{Type: EventFlipComplete})[:20]...)

	events := ParseEvents(buf)
	require.Len(t, events, 2)
	assert.Equal(t, Event{Type: EventVBlank, Sequence: 1, CrtcID: 5}, events[0])
	assert.Equal(t, Event{Type: EventFlipComplete, UserData: 9, Sec: 3, Usec: 4, Sequence: 2, CrtcID: 6}, events[1])
	assert.Empty(t, ParseEvents(nil))
}

func scannedDevice(t *testing.T) (*Device, *testLayout) {
	l := newTestLayout("/dev/dri/card0")
	d := NewDevice(l.card, CompositingQPainter)
	require.True(t, d.IsValid())
	d.Scan()
	return d, l
}

func TestDispatchEventsReportsFlips(t *testing.T) {
	d, l := scannedDevice(t)
	var flips []PageFlip
	d.PageFlipped.Connect(func(f PageFlip) { flips = append(flips, f) })

	crtc := d.Crtcs()[1]
	d.ExpectFlip(crtc)
	assert.False(t, d.IsIdle())
	l.card.events = AppendEvent(nil, Event{Type: EventFlipComplete, Sequence: 7, Sec: 1, Usec: 2, CrtcID: crtc.ID()})

	n, err := d.DispatchEvents()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, flips, 1)
	assert.Equal(t, PageFlip{Crtc: crtc, Sequence: 7, Sec: 1, Usec: 2}, flips[0])
	assert.True(t, d.IsIdle())
}

func TestFrozenDeviceSwallowsFlips(t *testing.T) {
	d, l := scannedDevice(t)
	flips := 0
	d.PageFlipped.Connect(func(PageFlip) { flips++ })

	d.Freeze()
	d.Freeze()
	d.Unfreeze()
	assert.True(t, d.IsFrozen())
	crtc := d.Crtcs()[0]
	d.ExpectFlip(crtc)
	l.card.events = AppendEvent(nil, Event{Type: EventFlipComplete, CrtcID: crtc.ID()})
	_, err := d.DispatchEvents()
	require.NoError(t, err)
	assert.Zero(t, flips)
	assert.True(t, d.IsIdle())

	d.Unfreeze()
	d.Unfreeze()
	assert.False(t, d.IsFrozen())
}

func TestWaitIdleDrainsFlips(t *testing.T) {
	d, l := scannedDevice(t)
	flips := 0
	d.PageFlipped.Connect(func(PageFlip) { flips++ })

	a, b := d.Crtcs()[0], d.Crtcs()[1]
	d.ExpectFlip(a)
	d.ExpectFlip(b)
	l.card.events = AppendEvent(nil, Event{Type: EventFlipComplete, CrtcID: a.ID()})

	require.NoError(t, d.WaitIdle())
	assert.True(t, d.IsIdle())
	assert.False(t, d.IsFrozen())
	assert.Zero(t, flips)
}

func TestCloseReleasesCard(t *testing.T) {
	d, l := scannedDevice(t)
	require.NoError(t, d.Close())
	assert.True(t, l.card.closed)
	assert.False(t, d.IsValid())
	assert.Empty(t, d.Connectors())
}
