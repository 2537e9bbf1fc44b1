//go:build linux && amd64

package arena

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// region is a mmap'd span with execute permission. On some hardened
// kernels PROT_EXEC on anonymous mappings is refused; allocRegion then
// falls back to a plain read-write mapping, which the in-process sequence
// runner does not mind.
type region struct {
	buf []byte
}

func allocRegion(size int) (region, error) {
	buf, err := unix.Mmap(
		-1, 0,
		size,
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_PRIVATE|unix.MAP_ANON,
	)
	if err != nil {
		buf, err = unix.Mmap(
			-1, 0,
			size,
			unix.PROT_READ|unix.PROT_WRITE,
			unix.MAP_PRIVATE|unix.MAP_ANON,
		)
	}
	if err != nil {
		return region{}, fmt.Errorf("mmap %d bytes: %w", size, err)
	}
	return region{buf: buf}, nil
}

func (r region) bytes() []byte { return r.buf }

func (r region) release() {
	if r.buf != nil {
		_ = unix.Munmap(r.buf)
	}
}
