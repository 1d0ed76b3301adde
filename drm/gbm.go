package drm

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	GbmUseScanout   = 1 << 0
	GbmUseRendering = 1 << 2
)

var ErrGbmUnavailable = errors.New("built without GBM support")

// GbmBackend is the part of libgbm the allocator needs
type GbmBackend interface {
	CreateBO(width, height, format uint32, modifiers []uint64, flags uint32) (GbmBO, error)
	Close()
}

// GbmBO is a gbm_bo
type GbmBO interface {
	Width() uint32
	Height() uint32
	Format() uint32
	PlaneCount() int
	Handle(plane int) uint32
	Stride(plane int) uint32
	Offset(plane int) uint32
	Modifier() uint64
	Destroy()
}

// GbmAllocator allocates buffer objects through GBM, for GL rendering
type GbmAllocator struct {
	device  *Device
	backend GbmBackend
}

func NewGbmAllocator(d *Device, backend GbmBackend) *GbmAllocator {
	return &GbmAllocator{device: d, backend: backend}
}

func (a *GbmAllocator) IsValid() bool {
	return a.backend != nil
}

func (a *GbmAllocator) Close() {
	if a.backend != nil {
		a.backend.Close()
		a.backend = nil
	}
}

// Allocate negotiates the layout with the driver when modifiers are given and
// falls back to a rendering and scanout usage otherwise
func (a *GbmAllocator) Allocate(width, height, format uint32, modifiers []uint64) (Image, error) {
	if a.backend == nil {
		return nil, ErrInvalidDevice
	}
	var flags uint32
	if len(modifiers) == 0 {
		flags = GbmUseRendering | GbmUseScanout
	}
	bo, err := a.backend.CreateBO(width, height, format, modifiers, flags)
	if err != nil {
		logrus.WithError(err).WithField("format", FormatName(format)).Warnln("Failed to create buffer object")
		return nil, err
	}

	planes := bo.PlaneCount()
	if planes < 1 || planes > 4 {
		bo.Destroy()
		return nil, fmt.Errorf("buffer object has %d planes", planes)
	}
	info := FramebufferInfo{Width: bo.Width(), Height: bo.Height(), Format: bo.Format()}
	for i := 0; i < planes; i++ {
		info.Handles[i] = bo.Handle(i)
		info.Pitches[i] = bo.Stride(i)
		info.Offsets[i] = bo.Offset(i)
		info.Modifiers[i] = bo.Modifier()
	}
	buffer, err := newBuffer(a.device, info, planes)
	if err != nil {
		logrus.WithError(err).Warnln("Failed to add framebuffer for buffer object")
		bo.Destroy()
		return nil, err
	}
	return &GbmImage{buffer: buffer, bo: bo}, nil
}

type GbmImage struct {
	buffer *Buffer
	bo     GbmBO
}

func (i *GbmImage) Buffer() *Buffer { return i.buffer }
func (i *GbmImage) BO() GbmBO       { return i.bo }

func (i *GbmImage) Release() error {
	if i.bo == nil {
		return ErrReleased
	}
	err := i.buffer.Release()
	i.bo.Destroy()
	i.bo = nil
	return err
}
