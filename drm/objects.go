package drm

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Object is a kernel mode setting object owned by a Device
type Object struct {
	device     *Device
	id         uint32
	objectType uint32
}

func (o *Object) Device() *Device { return o.device }
func (o *Object) ID() uint32      { return o.id }

func (o *Object) forEachProperty(fn func(p *PropertyInfo, value uint64)) {
	card := o.device.card
	values, err := card.ObjectProperties(o.id, o.objectType)
	if err != nil {
		logrus.WithError(err).WithField("object", o.id).Debugln("Failed to read object properties")
		return
	}
	for _, v := range values {
		p, err := card.Property(v.ID)
		if err != nil {
			continue
		}
		fn(p, v.Value)
	}
}

var connectorTypeNames = []string{
	"Unknown", "VGA", "DVI-I", "DVI-D", "DVI-A", "Composite", "SVIDEO", "LVDS", "Component",
	"DIN", "DP", "HDMI-A", "HDMI-B", "TV", "eDP", "Virtual", "DSI", "DPI", "Writeback", "SPI", "USB",
}

// Mode is one display timing of a connector
type Mode struct {
	Width, Height int
	// Refresh is in mHz
	Refresh   int
	Preferred bool
	Name      string
	info      ModeInfo
}

func newMode(info ModeInfo) Mode {
	refresh := int(info.VRefresh) * 1000
	if info.HTotal > 0 && info.VTotal > 0 {
		refresh = int((uint64(info.Clock)*1000000/uint64(info.HTotal) + uint64(info.VTotal)/2) / uint64(info.VTotal))
	}
	return Mode{
		Width:     int(info.HDisplay),
		Height:    int(info.VDisplay),
		Refresh:   refresh,
		Preferred: info.Type&ModeTypePreferred != 0,
		Name:      cstring(info.Name[:]),
		info:      info,
	}
}

func (m Mode) String() string {
	return fmt.Sprintf("%dx%d@%.3f", m.Width, m.Height, float64(m.Refresh)/1000)
}

// Connector is a display connector such as HDMI-A-1
type Connector struct {
	Object
	name          string
	online        bool
	modes         []Mode
	possibleCrtcs uint32
	mmWidth       int
	mmHeight      int
}

func newConnector(d *Device, id uint32) *Connector {
	c := &Connector{Object: Object{device: d, id: id, objectType: ObjectConnector}}
	c.update()
	return c
}

// update rereads the connector state, used after hotplug
func (c *Connector) update() {
	card := c.device.card
	info, err := card.Connector(c.id)
	if err != nil {
		logrus.WithError(err).WithField("connector", c.id).Warnln("Failed to query connector")
		c.online = false
		return
	}
	typeName := "Unknown"
	if int(info.Type) < len(connectorTypeNames) {
		typeName = connectorTypeNames[info.Type]
	}
	c.name = typeName + "-" + strconv.Itoa(int(info.TypeID))
	c.online = info.Connection == ConnectionConnected && len(info.Modes) > 0
	c.mmWidth, c.mmHeight = int(info.MMWidth), int(info.MMHeight)
	c.modes = make([]Mode, 0, len(info.Modes))
	for _, m := range info.Modes {
		c.modes = append(c.modes, newMode(m))
	}
	c.possibleCrtcs = 0
	for _, id := range info.Encoders {
		enc, err := card.Encoder(id)
		if err != nil {
			continue
		}
		c.possibleCrtcs |= enc.PossibleCrtcs
	}
}

func (c *Connector) Name() string   { return c.name }
func (c *Connector) IsOnline() bool { return c.online }
func (c *Connector) Modes() []Mode  { return c.modes }

// PhysicalSize is in millimeters
func (c *Connector) PhysicalSize() (int, int) {
	return c.mmWidth, c.mmHeight
}

// PreferredMode returns the mode flagged as preferred, or the first one
func (c *Connector) PreferredMode() (Mode, bool) {
	for _, m := range c.modes {
		if m.Preferred {
			return m, true
		}
	}
	if len(c.modes) > 0 {
		return c.modes[0], true
	}
	return Mode{}, false
}

// Crtc is a scanout engine. Planes are attached to it by Device.Reroute.
type Crtc struct {
	Object
	pipe         int
	primaryPlane *Plane
	cursorPlane  *Plane
}

func newCrtc(d *Device, id uint32, pipe int) *Crtc {
	return &Crtc{Object: Object{device: d, id: id, objectType: ObjectCrtc}, pipe: pipe}
}

// Pipe is the index of the crtc in the resources list, used by possible_crtcs masks
func (c *Crtc) Pipe() int            { return c.pipe }
func (c *Crtc) PrimaryPlane() *Plane { return c.primaryPlane }
func (c *Crtc) CursorPlane() *Plane  { return c.cursorPlane }

func (c *Crtc) setPrimaryPlane(p *Plane) { c.primaryPlane = p }
func (c *Crtc) setCursorPlane(p *Plane)  { c.cursorPlane = p }

type PlaneType int

const (
	PlaneOverlay PlaneType = iota
	PlanePrimary
	PlaneCursor
)

func (t PlaneType) String() string {
	switch t {
	case PlanePrimary:
		return "primary"
	case PlaneCursor:
		return "cursor"
	}
	return "overlay"
}

// FormatModifier is one entry of an IN_FORMATS blob. Formats is a bit mask
// over the format table starting at Offset.
type FormatModifier struct {
	Formats  uint64
	Offset   uint32
	Modifier uint64
}

type Plane struct {
	Object
	planeType     PlaneType
	formats       []uint32
	modifiers     []FormatModifier
	possibleCrtcs uint32
	crtc          *Crtc
}

func newPlane(d *Device, id uint32) *Plane {
	p := &Plane{Object: Object{device: d, id: id, objectType: ObjectPlane}}
	info, err := d.card.Plane(id)
	if err != nil {
		logrus.WithError(err).WithField("plane", id).Warnln("Failed to query plane")
		return p
	}
	p.possibleCrtcs = info.PossibleCrtcs

	p.forEachProperty(func(prop *PropertyInfo, value uint64) {
		switch prop.Name {
		case "type":
			p.planeType = planeTypeFromProperty(prop, value)
		case "IN_FORMATS":
			blob, err := d.card.PropertyBlob(uint32(value))
			if err != nil {
				logrus.WithError(err).WithField("plane", id).Debugln("Failed to read IN_FORMATS")
				return
			}
			formats, modifiers, err := ParseFormatModifierBlob(blob)
			if err != nil {
				logrus.WithError(err).WithField("plane", id).Warnln("Malformed IN_FORMATS blob")
				return
			}
			p.formats, p.modifiers = formats, modifiers
		}
	})
	p.crtc = d.FindCrtc(info.CrtcID)
	if len(p.formats) == 0 {
		p.formats = info.Formats
	}
	return p
}

func planeTypeFromProperty(prop *PropertyInfo, value uint64) PlaneType {
	for _, e := range prop.Enums {
		if e.Value != value {
			continue
		}
		switch e.Name {
		case "Primary":
			return PlanePrimary
		case "Cursor":
			return PlaneCursor
		}
	}
	return PlaneOverlay
}

func (p *Plane) Type() PlaneType   { return p.planeType }
func (p *Plane) Formats() []uint32 { return p.formats }
func (p *Plane) Crtc() *Crtc       { return p.crtc }

func (p *Plane) setCrtc(c *Crtc) { p.crtc = c }

// CanUse reports whether the plane can be attached to c
func (p *Plane) CanUse(c *Crtc) bool {
	return c.pipe < 32 && p.possibleCrtcs&(1<<c.pipe) != 0
}

// Modifiers returns the modifiers the plane supports for format
func (p *Plane) Modifiers(format uint32) []uint64 {
	index := -1
	for i, f := range p.formats {
		if f == format {
			index = i
			break
		}
	}
	if index < 0 {
		return nil
	}
	var out []uint64
	for _, m := range p.modifiers {
		bit := int64(index) - int64(m.Offset)
		if bit < 0 || bit >= 64 {
			continue
		}
		if m.Formats&(1<<uint(bit)) != 0 {
			out = append(out, m.Modifier)
		}
	}
	return out
}

const (
	formatBlobHeaderSize = 24
	formatModifierSize   = 24
)

// ParseFormatModifierBlob decodes a struct drm_format_modifier_blob
func ParseFormatModifierBlob(data []byte) ([]uint32, []FormatModifier, error) {
	if len(data) < formatBlobHeaderSize {
		return nil, nil, fmt.Errorf("blob of %d bytes is shorter than its header", len(data))
	}
	order := binary.NativeEndian
	countFormats := uint64(order.Uint32(data[8:]))
	formatsOffset := uint64(order.Uint32(data[12:]))
	countModifiers := uint64(order.Uint32(data[16:]))
	modifiersOffset := uint64(order.Uint32(data[20:]))

	if formatsOffset+countFormats*4 > uint64(len(data)) {
		return nil, nil, fmt.Errorf("format table at %d runs past the blob", formatsOffset)
	}
	if modifiersOffset+countModifiers*formatModifierSize > uint64(len(data)) {
		return nil, nil, fmt.Errorf("modifier table at %d runs past the blob", modifiersOffset)
	}

	formats := make([]uint32, countFormats)
	for i := range formats {
		formats[i] = order.Uint32(data[formatsOffset+uint64(i)*4:])
	}
	modifiers := make([]FormatModifier, countModifiers)
	for i := range modifiers {
		b := data[modifiersOffset+uint64(i)*formatModifierSize:]
		modifiers[i] = FormatModifier{
			Formats:  order.Uint64(b[0:]),
			Offset:   order.Uint32(b[8:]),
			Modifier: order.Uint64(b[16:]),
		}
	}
	return formats, modifiers, nil
}

// EncodeFormatModifierBlob is the inverse of ParseFormatModifierBlob
func EncodeFormatModifierBlob(formats []uint32, modifiers []FormatModifier) []byte {
	order := binary.NativeEndian
	formatsOffset := formatBlobHeaderSize
	modifiersOffset := formatsOffset + len(formats)*4
	modifiersOffset = (modifiersOffset + 7) &^ 7
	data := make([]byte, modifiersOffset+len(modifiers)*formatModifierSize)
	order.PutUint32(data[0:], 1)
	order.PutUint32(data[8:], uint32(len(formats)))
	order.PutUint32(data[12:], uint32(formatsOffset))
	order.PutUint32(data[16:], uint32(len(modifiers)))
	order.PutUint32(data[20:], uint32(modifiersOffset))
	for i, f := range formats {
		order.PutUint32(data[formatsOffset+i*4:], f)
	}
	for i, m := range modifiers {
		b := data[modifiersOffset+i*formatModifierSize:]
		order.PutUint64(b[0:], m.Formats)
		order.PutUint32(b[8:], m.Offset)
		order.PutUint64(b[16:], m.Modifier)
	}
	return data
}
