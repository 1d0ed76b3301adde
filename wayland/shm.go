package wayland

import (
	"github.com/mstarongithub/wayshell/geometry"
	"github.com/mstarongithub/wayshell/wire"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

var shmInterface = Interface{
	Name:     "wl_shm",
	Version:  1,
	Requests: []string{"create_pool"},
}

var shmPoolInterface = Interface{
	Name:     "wl_shm_pool",
	Version:  1,
	Requests: []string{"create_buffer", "destroy", "resize"},
}

var bufferInterface = Interface{
	Name:     "wl_buffer",
	Version:  1,
	Requests: []string{"destroy"},
}

const (
	ShmErrorInvalidFormat uint32 = 0
	ShmErrorInvalidStride uint32 = 1
	ShmErrorInvalidFD     uint32 = 2

	shmEventFormat     = 0
	bufferEventRelease = 0
)

// wl_shm formats. Only these two have codes that differ from their fourcc.
const (
	ShmFormatARGB8888 uint32 = 0
	ShmFormatXRGB8888 uint32 = 1
)

type Shm struct {
	global  *Global
	formats []uint32
}

// NewShm advertises wl_shm with the given formats on top of the two mandatory ones
func NewShm(d *Display, extra ...uint32) *Shm {
	s := &Shm{formats: append([]uint32{ShmFormatARGB8888, ShmFormatXRGB8888}, extra...)}
	s.global = d.CreateGlobal(&shmInterface, s.bind)
	return s
}

func (s *Shm) bind(c *Client, version, id uint32) error {
	r := &shmResource{shm: s}
	if err := c.AddObject(id, &shmInterface, version, r); err != nil {
		return err
	}
	for _, f := range s.formats {
		r.Post(r.Event(shmEventFormat).PutUint(f))
	}
	return nil
}

func (s *Shm) supports(format uint32) bool {
	for _, f := range s.formats {
		if f == format {
			return true
		}
	}
	return false
}

type shmResource struct {
	Resource
	shm *Shm
}

func (r *shmResource) Dispatch(_ uint16, args *wire.Decoder) error {
	id := args.NewID()
	fd := args.FD()
	size := args.Int()
	if args.Err() != nil {
		if fd >= 0 {
			unix.Close(fd)
		}
		return nil
	}
	if size <= 0 {
		unix.Close(fd)
		return r.Errorf(ShmErrorInvalidStride, "invalid size (%d)", size)
	}
	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return r.Errorf(ShmErrorInvalidFD, "failed mmap fd %d: %s", fd, err)
	}
	pool := &ShmPool{shm: r.shm, fd: fd, data: data, refs: 1}
	if err := r.client.AddObject(id, &shmPoolInterface, r.version, pool); err != nil {
		pool.unref()
		return err
	}
	return nil
}

// ShmPool is shared memory a client carves buffers out of.
// The mapping lives until the pool and all its buffers are gone.
type ShmPool struct {
	Resource
	shm  *Shm
	fd   int
	data []byte
	refs int
}

func (p *ShmPool) unref() {
	p.refs--
	if p.refs > 0 {
		return
	}
	if p.data != nil {
		unix.Munmap(p.data)
		p.data = nil
	}
	unix.Close(p.fd)
}

func (p *ShmPool) Dispatch(opcode uint16, args *wire.Decoder) error {
	switch opcode {
	case 0: // create_buffer
		id := args.NewID()
		offset, width, height, stride := args.Int(), args.Int(), args.Int(), args.Int()
		format := args.Uint()
		if args.Err() != nil {
			return nil
		}
		if !p.shm.supports(format) {
			return p.Errorf(ShmErrorInvalidFormat, "invalid format 0x%x", format)
		}
		if offset < 0 || width <= 0 || height <= 0 || stride < width ||
			int64(offset)+int64(stride)*int64(height) > int64(len(p.data)) {
			return p.Errorf(ShmErrorInvalidStride, "invalid width, height or stride (%dx%d, %d)", width, height, stride)
		}
		buf := &ShmBuffer{
			pool:   p,
			offset: int(offset),
			size:   geometry.Size{Width: int(width), Height: int(height)},
			stride: int(stride),
			format: format,
		}
		if err := p.client.AddObject(id, &bufferInterface, 1, buf); err != nil {
			return err
		}
		p.refs++
	case 1: // destroy
		p.Destroy()
	case 2: // resize
		size := args.Int()
		if args.Err() != nil {
			return nil
		}
		if int(size) < len(p.data) {
			return p.Errorf(ShmErrorInvalidStride, "shrinking pool invalid")
		}
		data, err := unix.Mmap(p.fd, 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			return p.Errorf(ShmErrorInvalidFD, "failed mmap on resize: %s", err)
		}
		unix.Munmap(p.data)
		p.data = data
	}
	return nil
}

func (p *ShmPool) HandleDestroy() {
	p.unref()
}

// ShmBuffer is a wl_buffer backed by a shm pool
type ShmBuffer struct {
	Resource
	pool   *ShmPool
	offset int
	size   geometry.Size
	stride int
	format uint32
}

func (b *ShmBuffer) Size() geometry.Size {
	return b.size
}

func (b *ShmBuffer) Stride() int {
	return b.stride
}

func (b *ShmBuffer) Format() uint32 {
	return b.format
}

// Data returns the pixels. The slice is only valid until the next request is handled.
func (b *ShmBuffer) Data() []byte {
	if b.pool.data == nil {
		return nil
	}
	end := b.offset + b.stride*b.size.Height
	if end > len(b.pool.data) {
		logrus.WithField("buffer", b.id).Warnln("Shm buffer outside of its pool")
		return nil
	}
	return b.pool.data[b.offset:end]
}

func (b *ShmBuffer) Release() {
	b.Post(b.Event(bufferEventRelease))
}

func (b *ShmBuffer) Dispatch(uint16, *wire.Decoder) error {
	b.Destroy()
	return nil
}

func (b *ShmBuffer) HandleDestroy() {
	b.pool.unref()
}
