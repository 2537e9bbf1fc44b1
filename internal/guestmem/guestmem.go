// Package guestmem is the execution core's view of the soft-MMU
// subsystem. The MMU itself (TLBs, page walks, permissions) lives outside
// the core; the core only needs a capability to read, write and translate
// guest addresses. No component retains a raw host pointer derived from
// guest memory across calls.
package guestmem

import (
	"encoding/binary"
	"fmt"
)

// AccessType distinguishes translation intents.
type AccessType uint8

const (
	AccessRead AccessType = iota
	AccessWrite
	AccessExec
)

// String returns the access type name.
func (a AccessType) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessExec:
		return "exec"
	default:
		return "unknown"
	}
}

// Fault is a guest-visible memory fault. It is surfaced to the guest, not
// treated as a host failure.
type Fault struct {
	Addr   uint64
	Access AccessType
}

func (f *Fault) Error() string {
	return fmt.Sprintf("guest memory fault: %s at 0x%x", f.Access, f.Addr)
}

// Memory is the soft-MMU capability handed to the execution core.
type Memory interface {
	// Read fills buf from guest memory starting at addr.
	Read(addr uint64, buf []byte) error
	// Write copies buf into guest memory starting at addr.
	Write(addr uint64, buf []byte) error
	// Translate maps a guest-virtual address for the given access.
	Translate(addr uint64, access AccessType) (uint64, error)
}

// LoadValue reads a size-byte value at addr in the given byte order.
func LoadValue(m Memory, order binary.ByteOrder, addr uint64, size uint8) (uint64, error) {
	var buf [8]byte
	if err := m.Read(addr, buf[:size]); err != nil {
		return 0, err
	}
	switch size {
	case 1:
		return uint64(buf[0]), nil
	case 2:
		return uint64(order.Uint16(buf[:2])), nil
	case 4:
		return uint64(order.Uint32(buf[:4])), nil
	case 8:
		return order.Uint64(buf[:8]), nil
	default:
		return 0, fmt.Errorf("bad access size %d", size)
	}
}

// StoreValue writes the low size bytes of v at addr in the given byte order.
func StoreValue(m Memory, order binary.ByteOrder, addr uint64, size uint8, v uint64) error {
	var buf [8]byte
	switch size {
	case 1:
		buf[0] = byte(v)
	case 2:
		order.PutUint16(buf[:2], uint16(v))
	case 4:
		order.PutUint32(buf[:4], uint32(v))
	case 8:
		order.PutUint64(buf[:8], v)
	default:
		return fmt.Errorf("bad access size %d", size)
	}
	return m.Write(addr, buf[:size])
}
