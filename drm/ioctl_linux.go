package drm

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	iocWrite = 1
	iocRead  = 2
	iocBase  = 'd'
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | iocBase<<8 | nr
}

func iowr(nr, size uintptr) uintptr { return ioc(iocRead|iocWrite, nr, size) }
func iow(nr, size uintptr) uintptr  { return ioc(iocWrite, nr, size) }

type sysGetCap struct {
	capability uint64
	value      uint64
}

type sysSetClientCap struct {
	capability uint64
	value      uint64
}

type sysCardRes struct {
	fbIDPtr         uint64
	crtcIDPtr       uint64
	connectorIDPtr  uint64
	encoderIDPtr    uint64
	countFbs        uint32
	countCrtcs      uint32
	countConnectors uint32
	countEncoders   uint32
	minWidth        uint32
	maxWidth        uint32
	minHeight       uint32
	maxHeight       uint32
}

type sysGetConnector struct {
	encodersPtr     uint64
	modesPtr        uint64
	propsPtr        uint64
	propValuesPtr   uint64
	countModes      uint32
	countProps      uint32
	countEncoders   uint32
	encoderID       uint32
	connectorID     uint32
	connectorType   uint32
	connectorTypeID uint32
	connection      uint32
	mmWidth         uint32
	mmHeight        uint32
	subpixel        uint32
	pad             uint32
}

type sysGetEncoder struct {
	encoderID      uint32
	encoderType    uint32
	crtcID         uint32
	possibleCrtcs  uint32
	possibleClones uint32
}

type sysGetPlaneRes struct {
	planeIDPtr  uint64
	countPlanes uint32
	pad         uint32
}

type sysGetPlane struct {
	planeID          uint32
	crtcID           uint32
	fbID             uint32
	possibleCrtcs    uint32
	gammaSize        uint32
	countFormatTypes uint32
	formatTypePtr    uint64
}

type sysObjGetProperties struct {
	propsPtr      uint64
	propValuesPtr uint64
	countProps    uint32
	objID         uint32
	objType       uint32
	pad           uint32
}

type sysGetProperty struct {
	valuesPtr      uint64
	enumBlobPtr    uint64
	propID         uint32
	flags          uint32
	name           [32]byte
	countValues    uint32
	countEnumBlobs uint32
}

type sysPropertyEnum struct {
	value uint64
	name  [32]byte
}

type sysGetBlob struct {
	blobID uint32
	length uint32
	data   uint64
}

type sysFBCmd2 struct {
	fbID        uint32
	width       uint32
	height      uint32
	pixelFormat uint32
	flags       uint32
	handles     [4]uint32
	pitches     [4]uint32
	offsets     [4]uint32
	modifier    [4]uint64
}

type sysCreateDumb struct {
	height uint32
	width  uint32
	bpp    uint32
	flags  uint32
	handle uint32
	pitch  uint32
	size   uint64
}

type sysMapDumb struct {
	handle uint32
	pad    uint32
	offset uint64
}

type sysDestroyDumb struct {
	handle uint32
}

var (
	ioctlGetCap             = iowr(0x0c, unsafe.Sizeof(sysGetCap{}))
	ioctlSetClientCap       = iow(0x0d, unsafe.Sizeof(sysSetClientCap{}))
	ioctlModeGetResources   = iowr(0xa0, unsafe.Sizeof(sysCardRes{}))
	ioctlModeGetEncoder     = iowr(0xa6, unsafe.Sizeof(sysGetEncoder{}))
	ioctlModeGetConnector   = iowr(0xa7, unsafe.Sizeof(sysGetConnector{}))
	ioctlModeGetProperty    = iowr(0xaa, unsafe.Sizeof(sysGetProperty{}))
	ioctlModeGetPropBlob    = iowr(0xac, unsafe.Sizeof(sysGetBlob{}))
	ioctlModeRmFB           = iowr(0xaf, unsafe.Sizeof(uint32(0)))
	ioctlModeCreateDumb     = iowr(0xb2, unsafe.Sizeof(sysCreateDumb{}))
	ioctlModeMapDumb        = iowr(0xb3, unsafe.Sizeof(sysMapDumb{}))
	ioctlModeDestroyDumb    = iowr(0xb4, unsafe.Sizeof(sysDestroyDumb{}))
	ioctlModeGetPlaneRes    = iowr(0xb5, unsafe.Sizeof(sysGetPlaneRes{}))
	ioctlModeGetPlane       = iowr(0xb6, unsafe.Sizeof(sysGetPlane{}))
	ioctlModeAddFB2         = iowr(0xb8, unsafe.Sizeof(sysFBCmd2{}))
	ioctlModeObjGetProperty = iowr(0xb9, unsafe.Sizeof(sysObjGetProperties{}))
)

// cardFile is a Card backed by an open /dev/dri/cardN node
type cardFile struct {
	path string
	fd   int
}

// OpenCard opens a DRM device node for mode setting. Reads of the event
// stream never block.
func OpenCard(path string) (Card, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return &cardFile{path: path, fd: fd}, nil
}

func (c *cardFile) ioctl(request uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(c.fd), request, uintptr(arg))
		switch errno {
		case 0:
			return nil
		case unix.EINTR, unix.EAGAIN:
			continue
		default:
			return errno
		}
	}
}

func ptr[T any](s []T) uint64 {
	if len(s) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&s[0])))
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func (c *cardFile) Path() string {
	return c.path
}

func (c *cardFile) Fd() int {
	return c.fd
}

func (c *cardFile) GetCap(capability uint64) (uint64, error) {
	arg := sysGetCap{capability: capability}
	if err := c.ioctl(ioctlGetCap, unsafe.Pointer(&arg)); err != nil {
		return 0, fmt.Errorf("DRM_IOCTL_GET_CAP %#x: %w", capability, err)
	}
	return arg.value, nil
}

func (c *cardFile) SetClientCap(capability, value uint64) error {
	arg := sysSetClientCap{capability: capability, value: value}
	if err := c.ioctl(ioctlSetClientCap, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("DRM_IOCTL_SET_CLIENT_CAP %#x: %w", capability, err)
	}
	return nil
}

func (c *cardFile) Resources() (*Resources, error) {
	var arg sysCardRes
	if err := c.ioctl(ioctlModeGetResources, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("DRM_IOCTL_MODE_GETRESOURCES: %w", err)
	}
	res := &Resources{
		Framebuffers: make([]uint32, arg.countFbs),
		Crtcs:        make([]uint32, arg.countCrtcs),
		Connectors:   make([]uint32, arg.countConnectors),
		Encoders:     make([]uint32, arg.countEncoders),
	}
	arg.fbIDPtr = ptr(res.Framebuffers)
	arg.crtcIDPtr = ptr(res.Crtcs)
	arg.connectorIDPtr = ptr(res.Connectors)
	arg.encoderIDPtr = ptr(res.Encoders)
	err := c.ioctl(ioctlModeGetResources, unsafe.Pointer(&arg))
	runtime.KeepAlive(res)
	if err != nil {
		return nil, fmt.Errorf("DRM_IOCTL_MODE_GETRESOURCES: %w", err)
	}
	// objects may appear between the two calls, the kernel only fills what fits
	res.Framebuffers = res.Framebuffers[:min(len(res.Framebuffers), int(arg.countFbs))]
	res.Crtcs = res.Crtcs[:min(len(res.Crtcs), int(arg.countCrtcs))]
	res.Connectors = res.Connectors[:min(len(res.Connectors), int(arg.countConnectors))]
	res.Encoders = res.Encoders[:min(len(res.Encoders), int(arg.countEncoders))]
	res.MinWidth, res.MaxWidth = arg.minWidth, arg.maxWidth
	res.MinHeight, res.MaxHeight = arg.minHeight, arg.maxHeight
	return res, nil
}

func (c *cardFile) Connector(id uint32) (*ConnectorInfo, error) {
	arg := sysGetConnector{connectorID: id}
	if err := c.ioctl(ioctlModeGetConnector, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("DRM_IOCTL_MODE_GETCONNECTOR %d: %w", id, err)
	}
	modes := make([]ModeInfo, arg.countModes)
	encoders := make([]uint32, arg.countEncoders)
	props := make([]uint32, arg.countProps)
	values := make([]uint64, arg.countProps)
	arg.modesPtr = ptr(modes)
	arg.encodersPtr = ptr(encoders)
	arg.propsPtr = ptr(props)
	arg.propValuesPtr = ptr(values)
	err := c.ioctl(ioctlModeGetConnector, unsafe.Pointer(&arg))
	runtime.KeepAlive(modes)
	runtime.KeepAlive(encoders)
	runtime.KeepAlive(props)
	runtime.KeepAlive(values)
	if err != nil {
		return nil, fmt.Errorf("DRM_IOCTL_MODE_GETCONNECTOR %d: %w", id, err)
	}
	return &ConnectorInfo{
		ID:         arg.connectorID,
		EncoderID:  arg.encoderID,
		Type:       arg.connectorType,
		TypeID:     arg.connectorTypeID,
		Connection: arg.connection,
		MMWidth:    arg.mmWidth,
		MMHeight:   arg.mmHeight,
		Subpixel:   arg.subpixel,
		Modes:      modes[:min(len(modes), int(arg.countModes))],
		Encoders:   encoders[:min(len(encoders), int(arg.countEncoders))],
	}, nil
}

func (c *cardFile) Encoder(id uint32) (*EncoderInfo, error) {
	arg := sysGetEncoder{encoderID: id}
	if err := c.ioctl(ioctlModeGetEncoder, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("DRM_IOCTL_MODE_GETENCODER %d: %w", id, err)
	}
	return &EncoderInfo{
		ID:            arg.encoderID,
		Type:          arg.encoderType,
		CrtcID:        arg.crtcID,
		PossibleCrtcs: arg.possibleCrtcs,
	}, nil
}

func (c *cardFile) PlaneResources() ([]uint32, error) {
	var arg sysGetPlaneRes
	if err := c.ioctl(ioctlModeGetPlaneRes, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("DRM_IOCTL_MODE_GETPLANERESOURCES: %w", err)
	}
	planes := make([]uint32, arg.countPlanes)
	arg.planeIDPtr = ptr(planes)
	err := c.ioctl(ioctlModeGetPlaneRes, unsafe.Pointer(&arg))
	runtime.KeepAlive(planes)
	if err != nil {
		return nil, fmt.Errorf("DRM_IOCTL_MODE_GETPLANERESOURCES: %w", err)
	}
	return planes[:min(len(planes), int(arg.countPlanes))], nil
}

func (c *cardFile) Plane(id uint32) (*PlaneInfo, error) {
	arg := sysGetPlane{planeID: id}
	if err := c.ioctl(ioctlModeGetPlane, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("DRM_IOCTL_MODE_GETPLANE %d: %w", id, err)
	}
	formats := make([]uint32, arg.countFormatTypes)
	arg.formatTypePtr = ptr(formats)
	err := c.ioctl(ioctlModeGetPlane, unsafe.Pointer(&arg))
	runtime.KeepAlive(formats)
	if err != nil {
		return nil, fmt.Errorf("DRM_IOCTL_MODE_GETPLANE %d: %w", id, err)
	}
	return &PlaneInfo{
		ID:            arg.planeID,
		CrtcID:        arg.crtcID,
		FramebufferID: arg.fbID,
		PossibleCrtcs: arg.possibleCrtcs,
		Formats:       formats[:min(len(formats), int(arg.countFormatTypes))],
	}, nil
}

func (c *cardFile) ObjectProperties(id, objectType uint32) ([]PropertyValue, error) {
	arg := sysObjGetProperties{objID: id, objType: objectType}
	if err := c.ioctl(ioctlModeObjGetProperty, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("DRM_IOCTL_MODE_OBJ_GETPROPERTIES %d: %w", id, err)
	}
	props := make([]uint32, arg.countProps)
	values := make([]uint64, arg.countProps)
	arg.propsPtr = ptr(props)
	arg.propValuesPtr = ptr(values)
	err := c.ioctl(ioctlModeObjGetProperty, unsafe.Pointer(&arg))
	runtime.KeepAlive(props)
	runtime.KeepAlive(values)
	if err != nil {
		return nil, fmt.Errorf("DRM_IOCTL_MODE_OBJ_GETPROPERTIES %d: %w", id, err)
	}
	n := min(len(props), int(arg.countProps))
	out := make([]PropertyValue, n)
	for i := range out {
		out[i] = PropertyValue{ID: props[i], Value: values[i]}
	}
	return out, nil
}

func (c *cardFile) Property(id uint32) (*PropertyInfo, error) {
	arg := sysGetProperty{propID: id}
	if err := c.ioctl(ioctlModeGetProperty, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("DRM_IOCTL_MODE_GETPROPERTY %d: %w", id, err)
	}
	values := make([]uint64, arg.countValues)
	enums := make([]sysPropertyEnum, arg.countEnumBlobs)
	arg.valuesPtr = ptr(values)
	arg.enumBlobPtr = ptr(enums)
	err := c.ioctl(ioctlModeGetProperty, unsafe.Pointer(&arg))
	runtime.KeepAlive(values)
	runtime.KeepAlive(enums)
	if err != nil {
		return nil, fmt.Errorf("DRM_IOCTL_MODE_GETPROPERTY %d: %w", id, err)
	}
	p := &PropertyInfo{ID: arg.propID, Name: cstring(arg.name[:]), Flags: arg.flags}
	for _, e := range enums[:min(len(enums), int(arg.countEnumBlobs))] {
		p.Enums = append(p.Enums, PropertyEnum{Value: e.value, Name: cstring(e.name[:])})
	}
	return p, nil
}

func (c *cardFile) PropertyBlob(id uint32) ([]byte, error) {
	arg := sysGetBlob{blobID: id}
	if err := c.ioctl(ioctlModeGetPropBlob, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("DRM_IOCTL_MODE_GETPROPBLOB %d: %w", id, err)
	}
	data := make([]byte, arg.length)
	arg.data = ptr(data)
	err := c.ioctl(ioctlModeGetPropBlob, unsafe.Pointer(&arg))
	runtime.KeepAlive(data)
	if err != nil {
		return nil, fmt.Errorf("DRM_IOCTL_MODE_GETPROPBLOB %d: %w", id, err)
	}
	return data[:min(len(data), int(arg.length))], nil
}

func (c *cardFile) AddFB2(fb FramebufferInfo, flags uint32) (uint32, error) {
	arg := sysFBCmd2{
		width:       fb.Width,
		height:      fb.Height,
		pixelFormat: fb.Format,
		flags:       flags,
		handles:     fb.Handles,
		pitches:     fb.Pitches,
		offsets:     fb.Offsets,
	}
	if flags&FBModifiers != 0 {
		arg.modifier = fb.Modifiers
	}
	if err := c.ioctl(ioctlModeAddFB2, unsafe.Pointer(&arg)); err != nil {
		return 0, fmt.Errorf("DRM_IOCTL_MODE_ADDFB2: %w", err)
	}
	return arg.fbID, nil
}

func (c *cardFile) RmFB(id uint32) error {
	if err := c.ioctl(ioctlModeRmFB, unsafe.Pointer(&id)); err != nil {
		return fmt.Errorf("DRM_IOCTL_MODE_RMFB %d: %w", id, err)
	}
	return nil
}

func (c *cardFile) CreateDumb(width, height, bpp uint32) (DumbInfo, error) {
	arg := sysCreateDumb{width: width, height: height, bpp: bpp}
	if err := c.ioctl(ioctlModeCreateDumb, unsafe.Pointer(&arg)); err != nil {
		return DumbInfo{}, fmt.Errorf("DRM_IOCTL_MODE_CREATE_DUMB: %w", err)
	}
	return DumbInfo{Handle: arg.handle, Pitch: arg.pitch, Size: arg.size}, nil
}

func (c *cardFile) MapDumb(handle uint32) (uint64, error) {
	arg := sysMapDumb{handle: handle}
	if err := c.ioctl(ioctlModeMapDumb, unsafe.Pointer(&arg)); err != nil {
		return 0, fmt.Errorf("DRM_IOCTL_MODE_MAP_DUMB: %w", err)
	}
	return arg.offset, nil
}

func (c *cardFile) DestroyDumb(handle uint32) error {
	arg := sysDestroyDumb{handle: handle}
	if err := c.ioctl(ioctlModeDestroyDumb, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("DRM_IOCTL_MODE_DESTROY_DUMB: %w", err)
	}
	return nil
}

func (c *cardFile) Mmap(offset uint64, size int) ([]byte, error) {
	return unix.Mmap(c.Fd(), int64(offset), size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func (c *cardFile) Munmap(b []byte) error {
	return unix.Munmap(b)
}

func (c *cardFile) ReadEvents(buf []byte) (int, error) {
	n, err := unix.Read(c.Fd(), buf)
	if err == unix.EAGAIN {
		return 0, nil
	}
	return n, err
}

func (c *cardFile) Close() error {
	return unix.Close(c.fd)
}
