package drm

import (
	"errors"
	"fmt"
)

// SwapchainImage is one image of a Swapchain
type SwapchainImage struct {
	image    Image
	sequence uint32
	acquired bool
}

func (i *SwapchainImage) Image() Image         { return i.image }
func (i *SwapchainImage) Buffer() *Buffer      { return i.image.Buffer() }
func (i *SwapchainImage) Sequence() uint32     { return i.sequence }
func (i *SwapchainImage) IsAcquired() bool     { return i.acquired }
func (i *SwapchainImage) SetSequence(s uint32) { i.sequence = s }

// Swapchain is a fixed ring of images of one size and format
type Swapchain struct {
	images []*SwapchainImage
	next   int
}

// NewSwapchain allocates count images. Nothing is left allocated if one of them fails.
func NewSwapchain(a Allocator, count int, width, height, format uint32, modifiers []uint64) (*Swapchain, error) {
	if count < 1 {
		return nil, fmt.Errorf("swapchain needs at least one image, got %d", count)
	}
	s := &Swapchain{}
	for n := 0; n < count; n++ {
		img, err := a.Allocate(width, height, format, modifiers)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("allocate swapchain image %d: %w", n, err)
		}
		s.images = append(s.images, &SwapchainImage{image: img})
	}
	return s, nil
}

func (s *Swapchain) ImageCount() int {
	return len(s.images)
}

// Acquire hands out the oldest free image
func (s *Swapchain) Acquire() (*SwapchainImage, error) {
	for n := 0; n < len(s.images); n++ {
		img := s.images[(s.next+n)%len(s.images)]
		if img.acquired {
			continue
		}
		img.acquired = true
		s.next = (s.next + n + 1) % len(s.images)
		return img, nil
	}
	return nil, ErrSwapchainExhausted
}

func (s *Swapchain) Release(img *SwapchainImage) {
	img.acquired = false
}

// Close releases every image, acquired or not
func (s *Swapchain) Close() error {
	var errs []error
	for _, img := range s.images {
		errs = append(errs, img.image.Release())
	}
	s.images = nil
	return errors.Join(errs...)
}
