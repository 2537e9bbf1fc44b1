// Package program defines the portable guest program container the CLI
// consumes: entry point, register seed, a flat memory image and the IR
// blocks of the guest code, serialized as msgpack.
package program

import (
	"errors"
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"warp/internal/guestmem"
	"warp/internal/interp"
	"warp/internal/ir"
	"warp/internal/isa"
)

// Current schema version - increment when Program format changes
const schemaVersion uint16 = 1

// Program is one runnable guest image.
type Program struct {
	Schema uint16
	Source string // source ISA name

	EntryPC uint64
	Regs    [ir.NumRegs]uint64

	MemBase uint64
	MemSize uint64
	MemInit []byte

	Blocks []*ir.Block
}

// Validate checks structural soundness: a parsable source ISA, valid
// blocks, unique PCs and a resolvable entry point.
func (p *Program) Validate() error {
	var errs []error
	if p.Schema != schemaVersion {
		errs = append(errs, fmt.Errorf("schema %d, want %d", p.Schema, schemaVersion))
	}
	if _, err := isa.Parse(p.Source); err != nil {
		errs = append(errs, err)
	}
	if uint64(len(p.MemInit)) > p.MemSize {
		errs = append(errs, fmt.Errorf("memory init %d bytes exceeds size %d", len(p.MemInit), p.MemSize))
	}
	seen := make(map[uint64]struct{}, len(p.Blocks))
	entryFound := false
	for i, b := range p.Blocks {
		if err := ir.Validate(b); err != nil {
			errs = append(errs, fmt.Errorf("block %d: %w", i, err))
			continue
		}
		if _, dup := seen[b.StartPC]; dup {
			errs = append(errs, fmt.Errorf("duplicate block at 0x%x", b.StartPC))
		}
		seen[b.StartPC] = struct{}{}
		if b.StartPC == p.EntryPC {
			entryFound = true
		}
	}
	if len(p.Blocks) > 0 && !entryFound {
		errs = append(errs, fmt.Errorf("entry PC 0x%x has no block", p.EntryPC))
	}
	return errors.Join(errs...)
}

// SourceISA returns the parsed source architecture.
func (p *Program) SourceISA() (isa.ID, error) {
	return isa.Parse(p.Source)
}

// BlockMap builds the PC-indexed decode table.
func (p *Program) BlockMap() map[uint64]*ir.Block {
	m := make(map[uint64]*ir.Block, len(p.Blocks))
	for _, b := range p.Blocks {
		m[b.StartPC] = b
	}
	return m
}

// Machine materializes a fresh guest machine: flat memory seeded with
// the image, registers seeded from the program, byte order from the
// source ISA.
func (p *Program) Machine() (*interp.Machine, error) {
	src, err := p.SourceISA()
	if err != nil {
		return nil, err
	}
	desc, ok := isa.Lookup(src)
	if !ok {
		return nil, fmt.Errorf("program: no descriptor for %s", src)
	}
	mem := guestmem.NewFlat(p.MemBase, int(p.MemSize))
	if len(p.MemInit) > 0 {
		if err := mem.Write(p.MemBase, p.MemInit); err != nil {
			return nil, err
		}
	}
	m := interp.NewMachine(mem, desc.ByteOrder)
	m.Regs = p.Regs
	return m, nil
}

// Load reads and validates a program file.
func Load(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var p Program
	if err := msgpack.NewDecoder(f).Decode(&p); err != nil {
		return nil, fmt.Errorf("program %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("program %s: %w", path, err)
	}
	return &p, nil
}

// Save writes the program. Mainly for tooling that synthesizes guests.
func (p *Program) Save(path string) error {
	p.Schema = schemaVersion
	if err := p.Validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := msgpack.NewEncoder(f).Encode(p); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
