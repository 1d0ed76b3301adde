package drm

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"

	"github.com/mstarongithub/wayshell/util/signal"
	"github.com/sirupsen/logrus"
	"gitlab.com/mstarongitlab/goutils/sliceutils"
)

type DeviceManagerOptions struct {
	Compositing CompositingType
	// Paths limits the manager to these device nodes. Empty means every card in DevDir.
	Paths  []string
	DevDir string
	SysDir string
	// Open defaults to OpenDevice
	Open func(path string, compositing CompositingType) (*Device, error)
}

// DeviceManager owns every usable DRM device. The primary GPU comes first,
// secondary GPUs are only used when buffers can be shared with it.
type DeviceManager struct {
	opts    DeviceManagerOptions
	devices []*Device
	primary *Device

	DeviceAdded   signal.Signal[*Device]
	DeviceRemoved signal.Signal[*Device]
}

func NewDeviceManager(opts DeviceManagerOptions) (*DeviceManager, error) {
	if opts.DevDir == "" {
		opts.DevDir = "/dev/dri"
	}
	if opts.SysDir == "" {
		opts.SysDir = "/sys/class/drm"
	}
	if opts.Open == nil {
		opts.Open = OpenDevice
	}
	m := &DeviceManager{opts: opts}

	paths := opts.Paths
	if len(paths) == 0 {
		found, err := filepath.Glob(filepath.Join(opts.DevDir, "card[0-9]*"))
		if err != nil {
			return nil, err
		}
		paths = found
	}
	slices.Sort(paths)

	tried := map[string]bool{}
	for _, path := range sliceutils.Filter(paths, m.isBootVGA) {
		tried[path] = true
		if m.Add(path) != nil {
			break
		}
	}
	for _, path := range sliceutils.Filter(paths, func(p string) bool { return !tried[p] }) {
		m.Add(path)
	}
	if len(m.devices) == 0 {
		return nil, ErrInvalidDevice
	}
	return m, nil
}

func (m *DeviceManager) isBootVGA(path string) bool {
	data, err := os.ReadFile(filepath.Join(m.opts.SysDir, filepath.Base(path), "device", "boot_vga"))
	return err == nil && string(bytes.TrimSpace(data)) == "1"
}

func (m *DeviceManager) IsValid() bool {
	return len(m.devices) > 0
}

func (m *DeviceManager) Devices() []*Device {
	return m.devices
}

// Primary is the device that renders, nil once it was removed
func (m *DeviceManager) Primary() *Device {
	return m.primary
}

func (m *DeviceManager) Find(path string) *Device {
	for _, d := range m.devices {
		if d.Path() == path {
			return d
		}
	}
	return nil
}

// Add opens the device at path and scans it. It returns nil if the device is
// not usable on its own or cannot share buffers with the primary GPU.
func (m *DeviceManager) Add(path string) *Device {
	log := logrus.WithField("device", path)
	if m.Find(path) != nil {
		return nil
	}
	d, err := m.opts.Open(path, m.opts.Compositing)
	if err != nil {
		log.WithError(err).Warnln("Failed to open DRM device")
		return nil
	}
	if !d.IsValid() {
		log.Infoln("Skipping invalid DRM device")
		d.Close()
		return nil
	}
	if m.primary != nil {
		if !m.primary.Supports(CapabilityExportBuffer) || !d.Supports(CapabilityImportBuffer) {
			log.Infoln("Skipping secondary GPU without PRIME buffer sharing")
			d.Close()
			return nil
		}
	}
	d.Scan()
	if m.primary == nil {
		m.primary = d
	}
	m.devices = append(m.devices, d)
	m.DeviceAdded.Emit(d)
	return d
}

func (m *DeviceManager) Remove(path string) {
	d := m.Find(path)
	if d == nil {
		return
	}
	m.devices = sliceutils.Filter(m.devices, func(other *Device) bool { return other != d })
	if m.primary == d {
		m.primary = nil
		logrus.WithField("device", path).Warnln("Primary GPU removed")
	}
	d.Freeze()
	if err := d.WaitIdle(); err != nil {
		logrus.WithError(err).WithField("device", path).Debugln("Device did not go idle")
	}
	m.DeviceRemoved.Emit(d)
	d.Close()
}

// Change rescans the connectors of the device at path, unless it is frozen
func (m *DeviceManager) Change(path string) {
	d := m.Find(path)
	if d == nil || d.IsFrozen() {
		return
	}
	if err := d.WaitIdle(); err != nil {
		logrus.WithError(err).WithField("device", path).Debugln("Device did not go idle")
	}
	d.ScanConnectors()
}

// HandleUEvent applies a hotplug event for a DRM card
func (m *DeviceManager) HandleUEvent(ev *UEvent) {
	if !ev.IsDrmCard() {
		return
	}
	path := filepath.Join(m.opts.DevDir, filepath.Base(ev.DevName))
	logrus.WithFields(logrus.Fields{"action": ev.Action, "device": path}).Debugln("DRM uevent")
	switch ev.Action {
	case "add":
		m.Add(path)
	case "remove":
		m.Remove(path)
	case "change":
		m.Change(path)
	}
}

// Close waits for every device to go idle and closes them
func (m *DeviceManager) Close() {
	for _, d := range m.devices {
		d.Freeze()
	}
	for _, d := range m.devices {
		if err := d.WaitIdle(); err != nil {
			logrus.WithError(err).WithField("device", d.Path()).Debugln("Device did not go idle")
		}
		d.Close()
	}
	m.devices = nil
	m.primary = nil
}
