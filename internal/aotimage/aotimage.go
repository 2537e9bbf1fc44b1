// Package aotimage persists ahead-of-time compiled artifacts between
// runs. An image is a single msgpack file mapping guest PCs to encoded
// target sequences for one ISA pair, deduplicated by code hash.
package aotimage

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"warp/internal/isa"
)

// Current schema version - increment when Image format changes
const schemaVersion uint16 = 1

// Digest identifies one encoded sequence by content.
type Digest [sha256.Size]byte

// Image is the on-disk representation. Identical code bytes shared by
// several PCs (unrolled copies, aliased mappings) are stored once and
// referenced by blob index.
type Image struct {
	Schema uint16
	Source uint8 // isa.ID
	Target uint8

	// Entries maps guest PC to an index into Blobs.
	Entries map[uint64]uint32
	// Blobs holds each distinct encoded sequence once.
	Blobs [][]byte

	// index maps content digest to blob index. Rebuilt on load, never
	// serialized.
	index map[Digest]uint32 `msgpack:"-"`
}

// New creates an empty image for the pair.
func New(pair isa.Pair) *Image {
	return &Image{
		Schema:  schemaVersion,
		Source:  uint8(pair.Source),
		Target:  uint8(pair.Target),
		Entries: make(map[uint64]uint32),
		index:   make(map[Digest]uint32),
	}
}

// Pair returns the image's translation direction.
func (img *Image) Pair() isa.Pair {
	return isa.Pair{Source: isa.ID(img.Source), Target: isa.ID(img.Target)}
}

// Add records code for pc, deduplicating by content.
func (img *Image) Add(pc uint64, code []byte) {
	d := Digest(sha256.Sum256(code))
	idx, ok := img.index[d]
	if !ok {
		idx = uint32(len(img.Blobs))
		img.Blobs = append(img.Blobs, append([]byte(nil), code...))
		img.index[d] = idx
	}
	img.Entries[pc] = idx
}

// Code returns the blob for pc.
func (img *Image) Code(pc uint64) ([]byte, bool) {
	idx, ok := img.Entries[pc]
	if !ok || int(idx) >= len(img.Blobs) {
		return nil, false
	}
	return img.Blobs[idx], true
}

// Len is the number of PC entries.
func (img *Image) Len() int { return len(img.Entries) }

// Save writes the image atomically: encode to a temp file in the target
// directory, then rename over the destination.
func (img *Image) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	enc := msgpack.NewEncoder(f)
	if err := enc.Encode(img); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads and validates an image. A schema or pair mismatch is an
// error, not a silent empty image; the caller decides whether to discard.
func Load(path string, pair isa.Pair) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var img Image
	dec := msgpack.NewDecoder(f)
	if err := dec.Decode(&img); err != nil {
		return nil, fmt.Errorf("aot image %s: %w", path, err)
	}
	if img.Schema != schemaVersion {
		return nil, fmt.Errorf("aot image %s: schema %d, want %d", path, img.Schema, schemaVersion)
	}
	if got := img.Pair(); got != pair {
		return nil, fmt.Errorf("aot image %s: pair %s, want %s", path, got, pair)
	}
	if img.Entries == nil {
		img.Entries = make(map[uint64]uint32)
	}
	img.index = make(map[Digest]uint32, len(img.Blobs))
	for i, b := range img.Blobs {
		img.index[Digest(sha256.Sum256(b))] = uint32(i)
	}
	for pc, idx := range img.Entries {
		if int(idx) >= len(img.Blobs) {
			return nil, fmt.Errorf("aot image %s: entry 0x%x references missing blob %d", path, pc, idx)
		}
	}
	return &img, nil
}
