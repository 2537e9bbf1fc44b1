package engine

import (
	"fmt"

	"warp/internal/guestmem"
	"warp/internal/ir"
)

// Decoder lifts guest code at a PC into an IR block. The block is never
// cached: a cache miss regenerates it from guest memory, so stale decode
// state cannot outlive the code cache.
type Decoder interface {
	Decode(mem guestmem.Memory, pc uint64) (*ir.Block, error)
}

// DecodeError reports undecodable guest bytes at a PC. It surfaces to the
// guest as a fault, mirroring what real hardware would raise.
type DecodeError struct {
	PC  uint64
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode at PC 0x%x: %v", e.PC, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// BlockMap is a Decoder backed by a fixed PC-to-block table. Frontends for
// real guest encodings implement Decoder directly; BlockMap serves image
// loading, benchmarks and tests, where the program is already in IR form.
type BlockMap map[uint64]*ir.Block

func (m BlockMap) Decode(_ guestmem.Memory, pc uint64) (*ir.Block, error) {
	b, ok := m[pc]
	if !ok {
		return nil, &DecodeError{PC: pc, Err: fmt.Errorf("no block mapped")}
	}
	return b, nil
}
