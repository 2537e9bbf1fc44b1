package program

import (
	"path/filepath"
	"strings"
	"testing"

	"warp/internal/ir"
	"warp/internal/testkit"
)

func sample() *Program {
	return &Program{
		Schema:  schemaVersion,
		Source:  "aarch64",
		EntryPC: 0x1000,
		MemBase: 0x10000,
		MemSize: 4096,
		MemInit: []byte{0xaa, 0xbb},
		Blocks: []*ir.Block{
			testkit.LoopBlock(0x1000, 0x2000),
			testkit.ArithBlock(0x2000),
		},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := sample().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Program)
		frag string
	}{
		{"bad schema", func(p *Program) { p.Schema = 99 }, "schema"},
		{"bad source", func(p *Program) { p.Source = "vax" }, "unknown architecture"},
		{"oversized init", func(p *Program) { p.MemInit = make([]byte, 8192) }, "memory init"},
		{"duplicate pc", func(p *Program) { p.Blocks = append(p.Blocks, testkit.ArithBlock(0x2000)) }, "duplicate"},
		{"dangling entry", func(p *Program) { p.EntryPC = 0x9000 }, "entry PC"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := sample()
			tc.mut(p)
			err := p.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.frag) {
				t.Fatalf("Validate = %v, want complaint about %q", err, tc.frag)
			}
		})
	}
}

func TestMachine_SeedsStateFromProgram(t *testing.T) {
	p := sample()
	p.Regs[1] = 42
	m, err := p.Machine()
	if err != nil {
		t.Fatalf("Machine: %v", err)
	}
	if m.Regs[1] != 42 {
		t.Fatalf("r1 = %d, want the program seed", m.Regs[1])
	}

	var buf [2]byte
	if err := m.Mem.Read(p.MemBase, buf[:]); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if buf != [2]byte{0xaa, 0xbb} {
		t.Fatalf("memory image = %v, want the init bytes", buf)
	}
	if err := m.Mem.Read(p.MemBase-1, buf[:1]); err == nil {
		t.Fatal("below-base read should fault")
	}
}

func TestBlockMap_IndexesByPC(t *testing.T) {
	p := sample()
	bm := p.BlockMap()
	if len(bm) != 2 || bm[0x1000] != p.Blocks[0] || bm[0x2000] != p.Blocks[1] {
		t.Fatalf("BlockMap = %v", bm)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	p := sample()
	p.Regs[1] = 7
	path := filepath.Join(t.TempDir(), "guest.warp")
	if err := p.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.EntryPC != p.EntryPC || got.Source != p.Source || got.Regs[1] != 7 {
		t.Fatalf("loaded = %+v", got)
	}
	if len(got.Blocks) != 2 || got.Blocks[1].StartPC != 0x2000 {
		t.Fatalf("blocks = %+v", got.Blocks)
	}
	if got.Blocks[0].Term.Kind != p.Blocks[0].Term.Kind {
		t.Fatal("terminator lost in serialization")
	}
}

func TestSave_RejectsInvalid(t *testing.T) {
	p := sample()
	p.Source = "vax"
	if err := p.Save(filepath.Join(t.TempDir(), "bad.warp")); err == nil {
		t.Fatal("invalid program must not be written")
	}
}
