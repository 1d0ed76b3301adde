package util

import "cmp"

// Unpacks a slice into arguments
// If the slice has less elements than variables passed in, the rest of the variables are not modified
// If the slice has more elements than the variables passed in, the additional elements are ignored
func Unpack[T any](toUnpack []T, unpackInto ...*T) {
	n := min(len(toUnpack), len(unpackInto))
	for i := 0; i < n; i++ {
		*unpackInto[i] = toUnpack[i]
	}
}

// Clamp limits val to the range [low, high]
// If low > high, low wins
func Clamp[T cmp.Ordered](val, low, high T) T {
	if val > high {
		val = high
	}
	if val < low {
		val = low
	}
	return val
}
