package drm

import (
	"github.com/sirupsen/logrus"
)

// Buffer is a framebuffer registered with the kernel. Its FB_ID is released
// exactly once, by Release.
type Buffer struct {
	device   *Device
	id       uint32
	info     FramebufferInfo
	planes   int
	modifier uint64
}

// newBuffer registers the planes in info with AddFB2, using the modifier
// variant when the first plane carries a valid modifier
func newBuffer(d *Device, info FramebufferInfo, planes int) (*Buffer, error) {
	var flags uint32
	modifier := info.Modifiers[0]
	if modifier != ModInvalid && d.supportsModifiers {
		flags |= FBModifiers
	} else {
		modifier = ModInvalid
	}
	id, err := d.card.AddFB2(info, flags)
	if err != nil {
		return nil, err
	}
	return &Buffer{device: d, id: id, info: info, planes: planes, modifier: modifier}, nil
}

func (b *Buffer) ID() uint32      { return b.id }
func (b *Buffer) Width() uint32   { return b.info.Width }
func (b *Buffer) Height() uint32  { return b.info.Height }
func (b *Buffer) Format() uint32  { return b.info.Format }
func (b *Buffer) PlaneCount() int { return b.planes }

func (b *Buffer) Handle(plane int) uint32 { return b.info.Handles[plane] }
func (b *Buffer) Pitch(plane int) uint32  { return b.info.Pitches[plane] }
func (b *Buffer) Offset(plane int) uint32 { return b.info.Offsets[plane] }

// Modifier is ModInvalid for buffers registered without modifiers
func (b *Buffer) Modifier() uint64 { return b.modifier }

func (b *Buffer) Release() error {
	if b.id == 0 {
		return ErrReleased
	}
	id := b.id
	b.id = 0
	if err := b.device.card.RmFB(id); err != nil {
		logrus.WithError(err).WithField("fb", id).Warnln("Failed to remove framebuffer")
		return err
	}
	return nil
}
