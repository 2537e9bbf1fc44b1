package target

import (
	"fmt"

	"fortio.org/safecast"

	"warp/internal/ir"
	"warp/internal/isa"
)

// Encoded sequence layout: a 16-byte header, the 16-byte register map,
// then one 16-byte record per instruction. Multi-byte fields follow the
// target architecture's byte order; the header is what the runner and the
// AOT image loader validate before touching anything else.
const (
	blobMagic0 = 'W'
	blobMagic1 = 'C'
	blobVer    = 1

	headerSize = 16
	recordSize = 16
)

// BlobSize returns the encoded size in bytes of a sequence with n
// instructions.
func BlobSize(n int) int {
	return headerSize + ir.NumRegs + n*recordSize
}

// Encode serializes the sequence into its byte form.
func Encode(seq *Seq) ([]byte, error) {
	desc, ok := isa.Lookup(seq.Target)
	if !ok {
		return nil, fmt.Errorf("encode: unknown target %v", seq.Target)
	}
	count, err := safecast.Conv[uint16](len(seq.Instrs))
	if err != nil {
		return nil, fmt.Errorf("encode: sequence too long: %w", err)
	}

	buf := make([]byte, BlobSize(len(seq.Instrs)))
	buf[0] = blobMagic0
	buf[1] = blobMagic1
	buf[2] = blobVer
	buf[3] = byte(seq.Target)
	buf[4] = byte(seq.Source)
	buf[5] = byte(seq.Groups)
	desc.ByteOrder.PutUint16(buf[6:8], count)

	for i, loc := range seq.RegMap {
		buf[headerSize+i] = byte(loc)
	}

	off := headerSize + ir.NumRegs
	for i := range seq.Instrs {
		encodeRecord(buf[off:off+recordSize], &seq.Instrs[i], desc)
		off += recordSize
	}
	return buf, nil
}

func encodeRecord(rec []byte, in *Instr, desc *isa.Desc) {
	rec[0] = byte(in.Op)
	rec[1] = in.Flags
	rec[2] = byte(in.Dst)
	rec[3] = byte(in.Src1)
	rec[4] = byte(in.Src2)
	rec[5] = in.Size
	rec[6] = in.Slot
	rec[7] = 0
	desc.ByteOrder.PutUint64(rec[8:16], in.Imm)
}

// CorruptError reports an encoded sequence the runner refused to execute.
type CorruptError struct {
	Reason string
}

func (e *CorruptError) Error() string {
	return "corrupt compiled sequence: " + e.Reason
}

// Decode parses an encoded sequence back into instruction form.
func Decode(code []byte) (*Seq, error) {
	if len(code) < headerSize+ir.NumRegs {
		return nil, &CorruptError{Reason: "truncated header"}
	}
	if code[0] != blobMagic0 || code[1] != blobMagic1 {
		return nil, &CorruptError{Reason: "bad magic"}
	}
	if code[2] != blobVer {
		return nil, &CorruptError{Reason: fmt.Sprintf("unsupported version %d", code[2])}
	}
	tgt := isa.ID(code[3])
	desc, ok := isa.Lookup(tgt)
	if !ok {
		return nil, &CorruptError{Reason: fmt.Sprintf("unknown target %d", code[3])}
	}
	seq := &Seq{
		Source: isa.ID(code[4]),
		Target: tgt,
		Groups: int(code[5]),
	}
	count := int(desc.ByteOrder.Uint16(code[6:8]))
	if len(code) < BlobSize(count) {
		return nil, &CorruptError{Reason: "truncated body"}
	}

	for i := 0; i < ir.NumRegs; i++ {
		seq.RegMap[i] = Location(code[headerSize+i])
	}

	seq.Instrs = make([]Instr, count)
	off := headerSize + ir.NumRegs
	for i := 0; i < count; i++ {
		decodeRecord(code[off:off+recordSize], &seq.Instrs[i], desc)
		off += recordSize
	}
	return seq, nil
}

func decodeRecord(rec []byte, in *Instr, desc *isa.Desc) {
	in.Op = Opcode(rec[0])
	in.Flags = rec[1]
	in.Dst = isa.PhysReg(rec[2])
	in.Src1 = isa.PhysReg(rec[3])
	in.Src2 = isa.PhysReg(rec[4])
	in.Size = rec[5]
	in.Slot = rec[6]
	in.Imm = desc.ByteOrder.Uint64(rec[8:16])
}
