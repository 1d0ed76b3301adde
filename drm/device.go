// Package drm models a DRM/KMS device: its connectors, crtcs and planes,
// and the allocation of scanout buffers on it.
package drm

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mstarongithub/wayshell/util/signal"
	"github.com/sirupsen/logrus"
)

// CompositingType selects how frames are rendered, and with it the allocator
type CompositingType int

const (
	CompositingNone CompositingType = iota
	CompositingQPainter
	CompositingOpenGL
)

func ParseCompositingType(s string) (CompositingType, error) {
	switch strings.ToLower(s) {
	case "qpainter", "software":
		return CompositingQPainter, nil
	case "opengl", "gl", "":
		return CompositingOpenGL, nil
	case "none":
		return CompositingNone, nil
	}
	return CompositingNone, fmt.Errorf("unknown compositing type %q", s)
}

func (t CompositingType) String() string {
	switch t {
	case CompositingQPainter:
		return "qpainter"
	case CompositingOpenGL:
		return "opengl"
	}
	return "none"
}

type DeviceCapability int

const (
	CapabilityDumbBuffer DeviceCapability = iota
	CapabilityExportBuffer
	CapabilityImportBuffer
	CapabilityBufferModifier
)

// PageFlip is a completed flip or vblank reported by the kernel
type PageFlip struct {
	Crtc     *Crtc
	Sequence uint32
	Sec      uint32
	Usec     uint32
}

// Device is one opened DRM card. A Device that failed to initialize is kept
// around but reports IsValid false and must not be used for output.
type Device struct {
	card        Card
	compositing CompositingType
	valid       bool

	supportsDumb      bool
	supportsExport    bool
	supportsImport    bool
	supportsModifiers bool

	allocator Allocator

	// connectors holds the online subset of known
	known      []*Connector
	connectors []*Connector
	crtcs      []*Crtc
	planes     []*Plane

	freezeCount  int
	pendingFlips map[uint32]bool

	ConnectorAdded   signal.Signal[*Connector]
	ConnectorRemoved signal.Signal[*Connector]
	PageFlipped      signal.Signal[PageFlip]
}

func queryCapability(card Card, capability uint64) uint64 {
	value, err := card.GetCap(capability)
	if err != nil {
		return 0
	}
	return value
}

// OpenDevice opens the card at path and wraps it with NewDevice
func OpenDevice(path string, compositing CompositingType) (*Device, error) {
	card, err := OpenCard(path)
	if err != nil {
		return nil, err
	}
	return NewDevice(card, compositing), nil
}

// NewDevice takes ownership of card. It never fails, check IsValid.
func NewDevice(card Card, compositing CompositingType) *Device {
	d := &Device{card: card, compositing: compositing, pendingFlips: map[uint32]bool{}}
	log := logrus.WithField("device", card.Path())

	if _, err := card.Resources(); err != nil {
		log.WithError(err).Warnln("Device has no mode setting resources")
		return d
	}

	d.supportsDumb = queryCapability(card, CapDumbBuffer) != 0
	prime := queryCapability(card, CapPrime)
	d.supportsExport = prime&PrimeCapExport != 0
	d.supportsImport = prime&PrimeCapImport != 0
	d.supportsModifiers = queryCapability(card, CapAddFB2Modifiers) != 0

	switch compositing {
	case CompositingQPainter:
		d.allocator = NewDumbAllocator(d)
	case CompositingOpenGL:
		backend, err := openGbm(card)
		if err != nil {
			log.WithError(err).Warnln("Failed to create GBM device")
			return d
		}
		d.allocator = NewGbmAllocator(d, backend)
	default:
		log.Warnln("No allocator for compositing type", compositing)
		return d
	}
	if !d.allocator.IsValid() {
		log.WithField("compositing", compositing).Warnln("Allocator is not usable on this device")
		return d
	}
	d.valid = true

	log.WithFields(logrus.Fields{
		"dumb":      d.supportsDumb,
		"export":    d.supportsExport,
		"import":    d.supportsImport,
		"modifiers": d.supportsModifiers,
	}).Infoln("Opened DRM device")
	return d
}

func (d *Device) IsValid() bool {
	return d.valid
}

func (d *Device) Path() string {
	return d.card.Path()
}

func (d *Device) Card() Card {
	return d.card
}

func (d *Device) Compositing() CompositingType {
	return d.compositing
}

func (d *Device) Supports(c DeviceCapability) bool {
	switch c {
	case CapabilityDumbBuffer:
		return d.supportsDumb
	case CapabilityExportBuffer:
		return d.supportsExport
	case CapabilityImportBuffer:
		return d.supportsImport
	case CapabilityBufferModifier:
		return d.supportsModifiers
	}
	return false
}

// Enable turns on a client capability such as ClientCapUniversal
func (d *Device) Enable(capability uint64) bool {
	return d.card.SetClientCap(capability, 1) == nil
}

func (d *Device) Allocator() Allocator {
	return d.allocator
}

// Connectors returns the online connectors
func (d *Device) Connectors() []*Connector { return d.connectors }

// AllConnectors also returns the connectors that are currently offline
func (d *Device) AllConnectors() []*Connector { return d.known }

func (d *Device) Crtcs() []*Crtc   { return d.crtcs }
func (d *Device) Planes() []*Plane { return d.planes }

func (d *Device) FindConnector(id uint32) *Connector {
	for _, c := range d.known {
		if c.id == id {
			return c
		}
	}
	return nil
}

func (d *Device) FindConnectorByName(name string) *Connector {
	for _, c := range d.known {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (d *Device) FindCrtc(id uint32) *Crtc {
	for _, c := range d.crtcs {
		if c.id == id {
			return c
		}
	}
	return nil
}

// Scan enumerates crtcs, then planes, then connectors, and attaches planes to crtcs
func (d *Device) Scan() {
	d.Enable(ClientCapUniversal)
	d.ScanCrtcs()
	d.ScanPlanes()
	d.ScanConnectors()
	d.Reroute()
}

// ScanConnectors rereads the connector list. Every connector the kernel still
// reports keeps its identity, going offline only takes it out of Connectors.
func (d *Device) ScanConnectors() {
	res, err := d.card.Resources()
	if err != nil {
		logrus.WithError(err).WithField("device", d.Path()).Warnln("Failed to rescan connectors")
		return
	}
	var known, online, added, removed []*Connector
	for _, id := range res.Connectors {
		c := d.FindConnector(id)
		wasOnline := c != nil && c.online
		if c != nil {
			c.update()
		} else {
			c = newConnector(d, id)
		}
		known = append(known, c)
		if c.online {
			online = append(online, c)
			if !wasOnline {
				added = append(added, c)
			}
		} else if wasOnline {
			removed = append(removed, c)
		}
	}
	// connectors the kernel no longer lists at all
	for _, c := range d.connectors {
		if !slices.Contains(known, c) {
			removed = append(removed, c)
		}
	}
	d.known = known
	d.connectors = online

	for _, c := range removed {
		logrus.WithField("connector", c.name).Infoln("Connector went away")
		d.ConnectorRemoved.Emit(c)
	}
	for _, c := range added {
		logrus.WithField("connector", c.name).Infoln("Connector appeared")
		d.ConnectorAdded.Emit(c)
	}
}

func (d *Device) ScanCrtcs() {
	res, err := d.card.Resources()
	if err != nil {
		return
	}
	crtcs := make([]*Crtc, 0, len(res.Crtcs))
	for i, id := range res.Crtcs {
		crtcs = append(crtcs, newCrtc(d, id, i))
	}
	d.crtcs = crtcs
}

func (d *Device) ScanPlanes() {
	ids, err := d.card.PlaneResources()
	if err != nil {
		logrus.WithError(err).WithField("device", d.Path()).Debugln("No plane resources")
		return
	}
	planes := make([]*Plane, 0, len(ids))
	for _, id := range ids {
		planes = append(planes, newPlane(d, id))
	}
	d.planes = planes
}

// Reroute gives every crtc a primary and, if one is left, a cursor plane.
// Planes already bound to a crtc by the kernel stay where they are.
func (d *Device) Reroute() {
	used := map[*Plane]bool{}
	for _, c := range d.crtcs {
		c.setPrimaryPlane(nil)
		c.setCursorPlane(nil)
	}
	assign := func(c *Crtc, t PlaneType) *Plane {
		var candidate *Plane
		for _, p := range d.planes {
			if used[p] || p.planeType != t || !p.CanUse(c) {
				continue
			}
			if p.crtc == c {
				candidate = p
				break
			}
			if candidate == nil && p.crtc == nil {
				candidate = p
			}
		}
		if candidate != nil {
			used[candidate] = true
			candidate.setCrtc(c)
		}
		return candidate
	}
	for _, c := range d.crtcs {
		c.setPrimaryPlane(assign(c, PlanePrimary))
	}
	for _, c := range d.crtcs {
		c.setCursorPlane(assign(c, PlaneCursor))
	}
}

func (d *Device) IsFrozen() bool {
	return d.freezeCount > 0
}

// Freeze stops page flip delivery, calls nest
func (d *Device) Freeze() {
	d.freezeCount++
}

func (d *Device) Unfreeze() {
	if d.freezeCount > 0 {
		d.freezeCount--
	}
}

// ExpectFlip records that a flip was queued on crtc
func (d *Device) ExpectFlip(crtc *Crtc) {
	d.pendingFlips[crtc.id] = true
}

func (d *Device) IsIdle() bool {
	return len(d.pendingFlips) == 0
}

// WaitIdle drains page flip events until no flip is pending. Events are not
// delivered while waiting.
func (d *Device) WaitIdle() error {
	d.Freeze()
	defer d.Unfreeze()
	for !d.IsIdle() {
		n, err := d.DispatchEvents()
		if err != nil {
			return err
		}
		if n == 0 {
			// nothing readable, the flips are not coming back
			logrus.WithField("device", d.Path()).Debugln("Dropping pending flips without events")
			clear(d.pendingFlips)
		}
	}
	return nil
}

// DispatchEvents reads the pending kernel events and reports flips through
// PageFlipped unless the device is frozen. It returns the number of events read.
func (d *Device) DispatchEvents() (int, error) {
	buf := make([]byte, 1024)
	n, err := d.card.ReadEvents(buf)
	if err != nil {
		return 0, fmt.Errorf("read drm events: %w", err)
	}
	events := ParseEvents(buf[:n])
	for _, ev := range events {
		delete(d.pendingFlips, ev.CrtcID)
		crtc := d.FindCrtc(ev.CrtcID)
		if crtc == nil || d.IsFrozen() {
			continue
		}
		d.PageFlipped.Emit(PageFlip{Crtc: crtc, Sequence: ev.Sequence, Sec: ev.Sec, Usec: ev.Usec})
	}
	return len(events), nil
}

// Close releases the card. Objects of the device must not be used afterwards.
func (d *Device) Close() error {
	d.known, d.connectors, d.crtcs, d.planes = nil, nil, nil, nil
	d.valid = false
	if d.allocator != nil {
		d.allocator.Close()
	}
	return d.card.Close()
}
