package drm

// Image is an allocation that can be scanned out through its Buffer
type Image interface {
	Buffer() *Buffer
	// Release removes the framebuffer first and frees the memory behind it after
	Release() error
}

// Allocator creates scanout images on one device. Allocations are owned by the caller.
type Allocator interface {
	IsValid() bool
	// Allocate returns a nil image and an error if any step fails, with every
	// kernel object created on the way already released
	Allocate(width, height, format uint32, modifiers []uint64) (Image, error)
	Close()
}
