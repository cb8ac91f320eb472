//go:build !cuda

package nvtiff

import "errors"

// Available reports whether the native nvTIFF binding is compiled in.
func Available() bool {
	return false
}

// New returns the native engine. This build has no CUDA support; rebuild
// with -tags cuda and the nvTIFF + CUDA runtime libraries installed.
func New() (Engine, error) {
	return nil, errors.New("nvtiff: built without cuda support (rebuild with -tags cuda)")
}
