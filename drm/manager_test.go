package drm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSystem struct {
	devDir, sysDir string
	cards          map[string]*fakeCard
}

func newFakeSystem(t *testing.T) *fakeSystem {
	root := t.TempDir()
	s := &fakeSystem{
		devDir: filepath.Join(root, "dev", "dri"),
		sysDir: filepath.Join(root, "sys", "class", "drm"),
		cards:  map[string]*fakeCard{},
	}
	require.NoError(t, os.MkdirAll(s.devDir, 0o755))
	return s
}

// addCard creates the device node, the sysfs boot_vga flag and a card with one crtc
func (s *fakeSystem) addCard(t *testing.T, name string, bootVGA bool, prime uint64) *fakeCard {
	path := filepath.Join(s.devDir, name)
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	dir := filepath.Join(s.sysDir, name, "device")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	flag := "0\n"
	if bootVGA {
		flag = "1\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "boot_vga"), []byte(flag), 0o644))

	card := newFakeCard(path)
	card.caps[CapPrime] = prime
	card.crtcs = []uint32{card.id()}
	card.addPlane(PlanePrimary, 0b1, []uint32{FormatXRGB8888}, nil)
	s.cards[path] = card
	return card
}

func (s *fakeSystem) open(path string, compositing CompositingType) (*Device, error) {
	card, ok := s.cards[path]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	return NewDevice(card, compositing), nil
}

func (s *fakeSystem) options() DeviceManagerOptions {
	return DeviceManagerOptions{Compositing: CompositingQPainter, DevDir: s.devDir, SysDir: s.sysDir, Open: s.open}
}

func devicePaths(devices []*Device) []string {
	var paths []string
	for _, d := range devices {
		paths = append(paths, filepath.Base(d.Path()))
	}
	return paths
}

func TestDeviceManagerPrefersBootVGA(t *testing.T) {
	s := newFakeSystem(t)
	s.addCard(t, "card0", false, PrimeCapImport|PrimeCapExport)
	s.addCard(t, "card1", true, PrimeCapExport)
	broken := s.addCard(t, "card2", false, PrimeCapImport)
	broken.noRes = true

	m, err := NewDeviceManager(s.options())
	require.NoError(t, err)
	assert.True(t, m.IsValid())
	assert.Equal(t, "card1", filepath.Base(m.Primary().Path()))
	assert.Equal(t, []string{"card1", "card0"}, devicePaths(m.Devices()))
	assert.True(t, broken.closed)
	assert.NotNil(t, m.Devices()[0].Crtcs()[0].PrimaryPlane())
}

func TestFirstUsableCardBecomesPrimary(t *testing.T) {
	s := newFakeSystem(t)
	boot := s.addCard(t, "card0", true, PrimeCapExport)
	boot.noRes = true
	s.addCard(t, "card1", false, PrimeCapExport)

	m, err := NewDeviceManager(s.options())
	require.NoError(t, err)
	assert.Equal(t, "card1", filepath.Base(m.Primary().Path()))
	assert.Len(t, m.Devices(), 1)
}

func TestSecondaryGPUNeedsPrime(t *testing.T) {
	s := newFakeSystem(t)
	s.addCard(t, "card0", true, PrimeCapImport)
	secondary := s.addCard(t, "card1", false, PrimeCapImport|PrimeCapExport)

	m, err := NewDeviceManager(s.options())
	require.NoError(t, err)
	assert.Equal(t, []string{"card0"}, devicePaths(m.Devices()))
	assert.True(t, secondary.closed)
}

func TestDeviceManagerWithoutDevices(t *testing.T) {
	s := newFakeSystem(t)
	_, err := NewDeviceManager(s.options())
	assert.ErrorIs(t, err, ErrInvalidDevice)

	broken := s.addCard(t, "card0", true, 0)
	broken.noRes = true
	_, err = NewDeviceManager(s.options())
	assert.ErrorIs(t, err, ErrInvalidDevice)
}

func TestDeviceManagerExplicitPaths(t *testing.T) {
	s := newFakeSystem(t)
	s.addCard(t, "card0", true, PrimeCapExport)
	s.addCard(t, "card1", false, PrimeCapImport)
	opts := s.options()
	opts.Paths = []string{filepath.Join(s.devDir, "card1")}

	m, err := NewDeviceManager(opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"card1"}, devicePaths(m.Devices()))
}

func TestDeviceManagerHotplug(t *testing.T) {
	s := newFakeSystem(t)
	s.addCard(t, "card0", true, PrimeCapExport)
	m, err := NewDeviceManager(s.options())
	require.NoError(t, err)

	var added, removed []string
	m.DeviceAdded.Connect(func(d *Device) { added = append(added, filepath.Base(d.Path())) })
	m.DeviceRemoved.Connect(func(d *Device) { removed = append(removed, filepath.Base(d.Path())) })

	hot := s.addCard(t, "card1", false, PrimeCapImport)
	conn := hot.addConnector(connectorDP, 2, false, 0b1)
	m.HandleUEvent(&UEvent{Action: "add", Subsystem: "drm", DevName: "dri/card1"})
	assert.Equal(t, []string{"card1"}, added)

	// events for other nodes are ignored
	m.HandleUEvent(&UEvent{Action: "add", Subsystem: "drm", DevName: "dri/renderD128"})
	assert.Len(t, m.Devices(), 2)

	d := m.Find(hot.Path())
	require.NotNil(t, d)
	var connectors []string
	d.ConnectorAdded.Connect(func(c *Connector) { connectors = append(connectors, c.Name()) })
	conn.Connection = ConnectionConnected
	conn.Modes = []ModeInfo{mode(1024, 768, true)}

	d.Freeze()
	m.HandleUEvent(&UEvent{Action: "change", Subsystem: "drm", DevName: "dri/card1"})
	assert.Empty(t, connectors)
	d.Unfreeze()
	m.HandleUEvent(&UEvent{Action: "change", Subsystem: "drm", DevName: "dri/card1"})
	assert.Equal(t, []string{"DP-2"}, connectors)

	m.HandleUEvent(&UEvent{Action: "remove", Subsystem: "drm", DevName: "dri/card1"})
	assert.Equal(t, []string{"card1"}, removed)
	assert.True(t, hot.closed)
	assert.Nil(t, m.Find(hot.Path()))

	m.HandleUEvent(&UEvent{Action: "remove", Subsystem: "drm", DevName: "dri/card0"})
	assert.Nil(t, m.Primary())
	assert.False(t, m.IsValid())
}

func TestDeviceManagerClose(t *testing.T) {
	s := newFakeSystem(t)
	card := s.addCard(t, "card0", true, 0)
	m, err := NewDeviceManager(s.options())
	require.NoError(t, err)

	m.Devices()[0].ExpectFlip(m.Devices()[0].Crtcs()[0])
	m.Close()
	assert.True(t, card.closed)
	assert.Empty(t, m.Devices())
	assert.Nil(t, m.Primary())
}
