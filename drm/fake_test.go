package drm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// fakeCard models the kernel object tables of one device in memory
type fakeCard struct {
	path       string
	caps       map[uint64]uint64
	clientCaps map[uint64]uint64
	noRes      bool

	crtcs      []uint32
	connectors []*ConnectorInfo
	encoders   map[uint32]*EncoderInfo
	planes     []*PlaneInfo
	objProps   map[uint32][]PropertyValue
	props      map[uint32]*PropertyInfo
	blobs      map[uint32][]byte

	nextID   uint32
	fbs      map[uint32]FramebufferInfo
	fbFlags  map[uint32]uint32
	dumbs    map[uint32]DumbInfo
	addFBErr error
	dumbErr  error
	ops      []string
	events   []byte
	closed   bool
}

func newFakeCard(path string) *fakeCard {
	return &fakeCard{
		path:       path,
		caps:       map[uint64]uint64{CapDumbBuffer: 1},
		clientCaps: map[uint64]uint64{},
		encoders:   map[uint32]*EncoderInfo{},
		objProps:   map[uint32][]PropertyValue{},
		props:      map[uint32]*PropertyInfo{},
		blobs:      map[uint32][]byte{},
		nextID:     100,
		fbs:        map[uint32]FramebufferInfo{},
		fbFlags:    map[uint32]uint32{},
		dumbs:      map[uint32]DumbInfo{},
	}
}

func (c *fakeCard) id() uint32 {
	c.nextID++
	return c.nextID
}

// addConnector adds a connector driven by one encoder that can use every crtc in mask
func (c *fakeCard) addConnector(typ, typeID uint32, connected bool, mask uint32, modes ...ModeInfo) *ConnectorInfo {
	enc := &EncoderInfo{ID: c.id(), PossibleCrtcs: mask}
	c.encoders[enc.ID] = enc
	info := &ConnectorInfo{ID: c.id(), Type: typ, TypeID: typeID, Modes: modes, Encoders: []uint32{enc.ID}}
	if connected {
		info.Connection = ConnectionConnected
	} else {
		info.Connection = 2
	}
	c.connectors = append(c.connectors, info)
	return info
}

func (c *fakeCard) addProperty(object uint32, p PropertyInfo, value uint64) {
	p.ID = c.id()
	c.props[p.ID] = &p
	c.objProps[object] = append(c.objProps[object], PropertyValue{ID: p.ID, Value: value})
}

var planeTypeEnums = []PropertyEnum{{Value: 0, Name: "Overlay"}, {Value: 1, Name: "Primary"}, {Value: 2, Name: "Cursor"}}

func (c *fakeCard) addPlane(t PlaneType, mask uint32, formats []uint32, blob []byte) *PlaneInfo {
	info := &PlaneInfo{ID: c.id(), PossibleCrtcs: mask, Formats: formats}
	c.planes = append(c.planes, info)
	value := map[PlaneType]uint64{PlaneOverlay: 0, PlanePrimary: 1, PlaneCursor: 2}[t]
	c.addProperty(info.ID, PropertyInfo{Name: "type", Enums: planeTypeEnums}, value)
	if blob != nil {
		blobID := c.id()
		c.blobs[blobID] = blob
		c.addProperty(info.ID, PropertyInfo{Name: "IN_FORMATS"}, uint64(blobID))
	}
	return info
}

func (c *fakeCard) Path() string { return c.path }
func (c *fakeCard) Fd() int      { return -1 }

func (c *fakeCard) GetCap(capability uint64) (uint64, error) {
	v, ok := c.caps[capability]
	if !ok {
		return 0, unix.EINVAL
	}
	return v, nil
}

func (c *fakeCard) SetClientCap(capability, value uint64) error {
	c.clientCaps[capability] = value
	return nil
}

func (c *fakeCard) Resources() (*Resources, error) {
	if c.noRes {
		return nil, unix.EOPNOTSUPP
	}
	res := &Resources{Crtcs: c.crtcs}
	for _, conn := range c.connectors {
		res.Connectors = append(res.Connectors, conn.ID)
	}
	return res, nil
}

func (c *fakeCard) Connector(id uint32) (*ConnectorInfo, error) {
	for _, conn := range c.connectors {
		if conn.ID == id {
			cp := *conn
			return &cp, nil
		}
	}
	return nil, unix.ENOENT
}

func (c *fakeCard) Encoder(id uint32) (*EncoderInfo, error) {
	if enc, ok := c.encoders[id]; ok {
		return enc, nil
	}
	return nil, unix.ENOENT
}

func (c *fakeCard) PlaneResources() ([]uint32, error) {
	var ids []uint32
	for _, p := range c.planes {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (c *fakeCard) Plane(id uint32) (*PlaneInfo, error) {
	for _, p := range c.planes {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, unix.ENOENT
}

func (c *fakeCard) ObjectProperties(id, _ uint32) ([]PropertyValue, error) {
	return c.objProps[id], nil
}

func (c *fakeCard) Property(id uint32) (*PropertyInfo, error) {
	if p, ok := c.props[id]; ok {
		return p, nil
	}
	return nil, unix.ENOENT
}

func (c *fakeCard) PropertyBlob(id uint32) ([]byte, error) {
	if b, ok := c.blobs[id]; ok {
		return b, nil
	}
	return nil, unix.ENOENT
}

func (c *fakeCard) AddFB2(fb FramebufferInfo, flags uint32) (uint32, error) {
	if c.addFBErr != nil {
		return 0, c.addFBErr
	}
	id := c.id()
	c.fbs[id] = fb
	c.fbFlags[id] = flags
	c.ops = append(c.ops, fmt.Sprintf("addfb %d", id))
	return id, nil
}

func (c *fakeCard) RmFB(id uint32) error {
	if _, ok := c.fbs[id]; !ok {
		return unix.ENOENT
	}
	delete(c.fbs, id)
	c.ops = append(c.ops, fmt.Sprintf("rmfb %d", id))
	return nil
}

func (c *fakeCard) CreateDumb(width, height, bpp uint32) (DumbInfo, error) {
	if c.dumbErr != nil {
		return DumbInfo{}, c.dumbErr
	}
	pitch := width * bpp / 8
	d := DumbInfo{Handle: c.id(), Pitch: pitch, Size: uint64(pitch) * uint64(height)}
	c.dumbs[d.Handle] = d
	c.ops = append(c.ops, fmt.Sprintf("create_dumb %d", d.Handle))
	return d, nil
}

func (c *fakeCard) MapDumb(handle uint32) (uint64, error) {
	if _, ok := c.dumbs[handle]; !ok {
		return 0, unix.ENOENT
	}
	return uint64(handle) << 12, nil
}

func (c *fakeCard) DestroyDumb(handle uint32) error {
	if _, ok := c.dumbs[handle]; !ok {
		return unix.ENOENT
	}
	delete(c.dumbs, handle)
	c.ops = append(c.ops, fmt.Sprintf("destroy_dumb %d", handle))
	return nil
}

func (c *fakeCard) Mmap(offset uint64, size int) ([]byte, error) {
	c.ops = append(c.ops, fmt.Sprintf("mmap %d", offset>>12))
	return make([]byte, size), nil
}

func (c *fakeCard) Munmap([]byte) error {
	c.ops = append(c.ops, "munmap")
	return nil
}

func (c *fakeCard) ReadEvents(buf []byte) (int, error) {
	n := copy(buf, c.events)
	c.events = c.events[n:]
	return n, nil
}

func (c *fakeCard) Close() error {
	c.closed = true
	return nil
}

func mode(w, h uint16, preferred bool) ModeInfo {
	m := ModeInfo{HDisplay: w, VDisplay: h, HTotal: w, VTotal: h, VRefresh: 60}
	m.Clock = uint32(w) * uint32(h) * 60 / 1000
	if preferred {
		m.Type = ModeTypePreferred
	}
	copy(m.Name[:], fmt.Sprintf("%dx%d", w, h))
	return m
}
