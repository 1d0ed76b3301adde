//go:build gbm && cgo

package drm

/*
#cgo pkg-config: gbm
#include <stdlib.h>
#include <gbm.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

type cgoGbm struct {
	device *C.struct_gbm_device
}

func openGbm(card Card) (GbmBackend, error) {
	dev := C.gbm_create_device(C.int(card.Fd()))
	if dev == nil {
		return nil, fmt.Errorf("gbm_create_device on %s failed", card.Path())
	}
	return &cgoGbm{device: dev}, nil
}

func (g *cgoGbm) CreateBO(width, height, format uint32, modifiers []uint64, flags uint32) (GbmBO, error) {
	var bo *C.struct_gbm_bo
	if len(modifiers) > 0 {
		mods := C.malloc(C.size_t(len(modifiers)) * C.size_t(unsafe.Sizeof(C.uint64_t(0))))
		defer C.free(mods)
		copy(unsafe.Slice((*uint64)(mods), len(modifiers)), modifiers)
		bo = C.gbm_bo_create_with_modifiers(g.device, C.uint32_t(width), C.uint32_t(height),
			C.uint32_t(format), (*C.uint64_t)(mods), C.uint(len(modifiers)))
	} else {
		bo = C.gbm_bo_create(g.device, C.uint32_t(width), C.uint32_t(height), C.uint32_t(format), C.uint32_t(flags))
	}
	if bo == nil {
		return nil, fmt.Errorf("gbm_bo_create %dx%d %s failed", width, height, FormatName(format))
	}
	return &cgoBO{bo: bo}, nil
}

func (g *cgoGbm) Close() {
	C.gbm_device_destroy(g.device)
}

type cgoBO struct {
	bo *C.struct_gbm_bo
}

func (b *cgoBO) Width() uint32   { return uint32(C.gbm_bo_get_width(b.bo)) }
func (b *cgoBO) Height() uint32  { return uint32(C.gbm_bo_get_height(b.bo)) }
func (b *cgoBO) Format() uint32  { return uint32(C.gbm_bo_get_format(b.bo)) }
func (b *cgoBO) PlaneCount() int { return int(C.gbm_bo_get_plane_count(b.bo)) }

func (b *cgoBO) Handle(plane int) uint32 {
	h := C.gbm_bo_get_handle_for_plane(b.bo, C.int(plane))
	return *(*uint32)(unsafe.Pointer(&h))
}

func (b *cgoBO) Stride(plane int) uint32 {
	return uint32(C.gbm_bo_get_stride_for_plane(b.bo, C.int(plane)))
}

func (b *cgoBO) Offset(plane int) uint32 {
	return uint32(C.gbm_bo_get_offset(b.bo, C.int(plane)))
}

func (b *cgoBO) Modifier() uint64 { return uint64(C.gbm_bo_get_modifier(b.bo)) }
func (b *cgoBO) Destroy()         { C.gbm_bo_destroy(b.bo) }
