package drm

import "errors"

const (
	CapDumbBuffer       = 0x1
	CapPrime            = 0x5
	CapAddFB2Modifiers  = 0x10
	PrimeCapImport      = 0x1
	PrimeCapExport      = 0x2
	ClientCapUniversal  = 0x2
	ClientCapAtomic     = 0x3
	ObjectCrtc          = 0xcccccccc
	ObjectConnector     = 0xc0c0c0c0
	ObjectEncoder       = 0xe0e0e0e0
	ObjectPlane         = 0xeeeeeeee
	ConnectionConnected = 1

	// FBModifiers makes AddFB2 honour the modifier array
	FBModifiers = 1 << 1

	// ModInvalid marks a buffer without an explicit modifier
	ModInvalid uint64 = 0x00ffffffffffffff
	ModLinear  uint64 = 0
)

var (
	ErrInvalidDevice      = errors.New("drm device is not usable")
	ErrUnsupportedFormat  = errors.New("pixel format is not supported")
	ErrSwapchainExhausted = errors.New("every swapchain image is in use")
	ErrReleased           = errors.New("already released")
)

// Resources is the result of DRM_IOCTL_MODE_GETRESOURCES
type Resources struct {
	Framebuffers []uint32
	Crtcs        []uint32
	Connectors   []uint32
	Encoders     []uint32

	MinWidth, MaxWidth   uint32
	MinHeight, MaxHeight uint32
}

// ModeInfo mirrors struct drm_mode_modeinfo
type ModeInfo struct {
	Clock                                         uint32
	HDisplay, HSyncStart, HSyncEnd, HTotal, HSkew uint16
	VDisplay, VSyncStart, VSyncEnd, VTotal, VScan uint16
	VRefresh                                      uint32
	Flags                                         uint32
	Type                                          uint32
	Name                                          [32]byte
}

const ModeTypePreferred = 1 << 3

// ConnectorInfo is the kernel view of one connector
type ConnectorInfo struct {
	ID         uint32
	EncoderID  uint32
	Type       uint32
	TypeID     uint32
	Connection uint32
	MMWidth    uint32
	MMHeight   uint32
	Subpixel   uint32
	Modes      []ModeInfo
	Encoders   []uint32
}

type EncoderInfo struct {
	ID            uint32
	Type          uint32
	CrtcID        uint32
	PossibleCrtcs uint32
}

type PlaneInfo struct {
	ID            uint32
	CrtcID        uint32
	FramebufferID uint32
	PossibleCrtcs uint32
	Formats       []uint32
}

// PropertyEnum is one named value of an enum property
type PropertyEnum struct {
	Value uint64
	Name  string
}

type PropertyInfo struct {
	ID    uint32
	Name  string
	Flags uint32
	Enums []PropertyEnum
}

// PropertyValue is a property id attached to an object together with its current value
type PropertyValue struct {
	ID    uint32
	Value uint64
}

// DumbInfo describes a dumb buffer created by the kernel
type DumbInfo struct {
	Handle uint32
	Pitch  uint32
	Size   uint64
}

// FramebufferInfo describes the planes registered with AddFB2
type FramebufferInfo struct {
	Width, Height uint32
	Format        uint32
	Handles       [4]uint32
	Pitches       [4]uint32
	Offsets       [4]uint32
	Modifiers     [4]uint64
}

// Card is the kernel interface of one DRM device node. The ioctl backed
// implementation is returned by OpenCard.
type Card interface {
	Path() string
	GetCap(capability uint64) (uint64, error)
	SetClientCap(capability, value uint64) error

	Resources() (*Resources, error)
	Connector(id uint32) (*ConnectorInfo, error)
	Encoder(id uint32) (*EncoderInfo, error)
	PlaneResources() ([]uint32, error)
	Plane(id uint32) (*PlaneInfo, error)
	ObjectProperties(id, objectType uint32) ([]PropertyValue, error)
	Property(id uint32) (*PropertyInfo, error)
	PropertyBlob(id uint32) ([]byte, error)

	AddFB2(fb FramebufferInfo, flags uint32) (uint32, error)
	RmFB(id uint32) error

	CreateDumb(width, height, bpp uint32) (DumbInfo, error)
	MapDumb(handle uint32) (uint64, error)
	DestroyDumb(handle uint32) error
	Mmap(offset uint64, size int) ([]byte, error)
	Munmap(b []byte) error

	// ReadEvents reads pending drm_event records, see ParseEvents
	ReadEvents(buf []byte) (int, error)
	Fd() int
	Close() error
}
