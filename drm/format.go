package drm

import "fmt"

func fourcc(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

var (
	FormatARGB8888 = fourcc('A', 'R', '2', '4')
	FormatXRGB8888 = fourcc('X', 'R', '2', '4')
	FormatABGR8888 = fourcc('A', 'B', '2', '4')
	FormatXBGR8888 = fourcc('X', 'B', '2', '4')
	FormatRGB565   = fourcc('R', 'G', '1', '6')
	FormatNV12     = fourcc('N', 'V', '1', '2')
)

// PixelFormat describes the memory layout of a fourcc format
type PixelFormat struct {
	Format       uint32
	BitsPerPixel int
	PlaneCount   int
}

// LookupFormat returns the layout of a known format
func LookupFormat(format uint32) (PixelFormat, bool) {
	switch format {
	case FormatARGB8888, FormatXRGB8888, FormatABGR8888, FormatXBGR8888:
		return PixelFormat{Format: format, BitsPerPixel: 32, PlaneCount: 1}, true
	case FormatRGB565:
		return PixelFormat{Format: format, BitsPerPixel: 16, PlaneCount: 1}, true
	case FormatNV12:
		// bits of the luma plane, chroma is subsampled into a second plane
		return PixelFormat{Format: format, BitsPerPixel: 8, PlaneCount: 2}, true
	}
	return PixelFormat{}, false
}

// FormatName renders a fourcc code the way drm_fourcc.h spells it
func FormatName(format uint32) string {
	b := []byte{byte(format), byte(format >> 8), byte(format >> 16), byte(format >> 24)}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("%#08x", format)
		}
	}
	return string(b)
}
