//go:build !(linux && amd64)

package arena

// region falls back to ordinary heap memory on platforms without the
// mmap-backed implementation. The in-process sequence runner does not need
// execute permission.
type region struct {
	buf []byte
}

func allocRegion(size int) (region, error) {
	return region{buf: make([]byte, size)}, nil
}

func (r region) bytes() []byte { return r.buf }

func (r region) release() {}
