package guestmem

// Flat is a flat guest address space backed by a byte slice, identity
// translated. Used by tests and the CLI demo guest; a production MMU
// replaces it wholesale.
type Flat struct {
	Base uint64
	Data []byte
}

// NewFlat allocates a flat memory of the given size starting at base.
func NewFlat(base uint64, size int) *Flat {
	return &Flat{Base: base, Data: make([]byte, size)}
}

func (f *Flat) in(addr uint64, n int) bool {
	if addr < f.Base {
		return false
	}
	off := addr - f.Base
	return off+uint64(n) <= uint64(len(f.Data))
}

// Read implements Memory.
func (f *Flat) Read(addr uint64, buf []byte) error {
	if !f.in(addr, len(buf)) {
		return &Fault{Addr: addr, Access: AccessRead}
	}
	copy(buf, f.Data[addr-f.Base:])
	return nil
}

// Write implements Memory.
func (f *Flat) Write(addr uint64, buf []byte) error {
	if !f.in(addr, len(buf)) {
		return &Fault{Addr: addr, Access: AccessWrite}
	}
	copy(f.Data[addr-f.Base:], buf)
	return nil
}

// Translate implements Memory with the identity mapping.
func (f *Flat) Translate(addr uint64, access AccessType) (uint64, error) {
	if !f.in(addr, 1) {
		return 0, &Fault{Addr: addr, Access: access}
	}
	return addr, nil
}

// Snapshot returns a copy of the backing bytes, for state comparison in
// tests.
func (f *Flat) Snapshot() []byte {
	out := make([]byte, len(f.Data))
	copy(out, f.Data)
	return out
}
