package drm

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// DumbAllocator allocates single plane dumb buffers for software rendering.
// Modifiers are ignored.
type DumbAllocator struct {
	device *Device
}

func NewDumbAllocator(d *Device) *DumbAllocator {
	return &DumbAllocator{device: d}
}

func (a *DumbAllocator) IsValid() bool {
	return a.device.Supports(CapabilityDumbBuffer)
}

func (a *DumbAllocator) Close() {}

func (a *DumbAllocator) Allocate(width, height, format uint32, _ []uint64) (Image, error) {
	pf, ok := LookupFormat(format)
	if !ok || pf.PlaneCount != 1 {
		return nil, fmt.Errorf("dumb buffer in %s: %w", FormatName(format), ErrUnsupportedFormat)
	}
	card := a.device.card
	dumb, err := card.CreateDumb(width, height, uint32(pf.BitsPerPixel))
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"width":  width,
			"height": height,
		}).Warnln("Failed to create dumb buffer")
		return nil, err
	}

	info := FramebufferInfo{Width: width, Height: height, Format: format}
	info.Handles[0] = dumb.Handle
	info.Pitches[0] = dumb.Pitch
	info.Modifiers[0] = ModInvalid
	buffer, err := newBuffer(a.device, info, 1)
	if err != nil {
		logrus.WithError(err).Warnln("Failed to add framebuffer for dumb buffer")
		if derr := card.DestroyDumb(dumb.Handle); derr != nil {
			err = errors.Join(err, derr)
		}
		return nil, err
	}
	return &DumbImage{device: a.device, buffer: buffer, handle: dumb.Handle, pitch: dumb.Pitch, size: dumb.Size}, nil
}

type DumbImage struct {
	device  *Device
	buffer  *Buffer
	handle  uint32
	pitch   uint32
	size    uint64
	mapping []byte
}

func (i *DumbImage) Buffer() *Buffer { return i.buffer }
func (i *DumbImage) Pitch() uint32   { return i.pitch }

// Map returns the buffer memory for CPU access. The mapping lives until Release.
func (i *DumbImage) Map() ([]byte, error) {
	if i.handle == 0 {
		return nil, ErrReleased
	}
	if i.mapping != nil {
		return i.mapping, nil
	}
	card := i.device.card
	offset, err := card.MapDumb(i.handle)
	if err != nil {
		return nil, err
	}
	data, err := card.Mmap(offset, int(i.size))
	if err != nil {
		return nil, fmt.Errorf("mmap dumb buffer: %w", err)
	}
	i.mapping = data
	return data, nil
}

func (i *DumbImage) Release() error {
	if i.handle == 0 {
		return ErrReleased
	}
	card := i.device.card
	errs := []error{i.buffer.Release()}
	if i.mapping != nil {
		errs = append(errs, card.Munmap(i.mapping))
		i.mapping = nil
	}
	errs = append(errs, card.DestroyDumb(i.handle))
	i.handle = 0
	return errors.Join(errs...)
}
