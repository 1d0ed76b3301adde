//go:build !gbm || !cgo

package drm

func openGbm(Card) (GbmBackend, error) {
	return nil, ErrGbmUnavailable
}
