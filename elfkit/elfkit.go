// Package elfkit parses ELF program-header tables and translates
// between file offsets and virtual addresses.
//
// The parser is deliberately minimal: it understands exactly the layout
// that boot-stage images (preloaders, trusted firmware, boot ROM dumps)
// carry, and nothing else. Section headers, symbols, and relocations
// are ignored.
package elfkit

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidClass is returned by ParseImage when the identification
// byte at offset 4 names neither a 32-bit nor a 64-bit image.
var ErrInvalidClass = errors.New("unsupported elf class")

// Class is the address width of an image.
type Class int

const (
	Class32 Class = 32
	Class64 Class = 64
)

const (
	classByteOffset = 4

	// Offsets of the (e_ehsize, e_phentsize, e_phnum) triplet,
	// three consecutive little-endian uint16 values.
	sizeTripletOffset32 = 0x28
	sizeTripletOffset64 = 0x34

	minEntrySize32 = 32
	minEntrySize64 = 56
)

// Segment describes one program-header entry as a contiguous region
// of virtual-address space and of the on-disk image. Bounds are
// inclusive on both ends for lookup purposes.
type Segment struct {
	PhysicalAddr uint64
	VirtStart    uint64
	VirtEnd      uint64
	FileStart    uint64
	FileEnd      uint64
}

// Image is a parsed executable image. It is built once by ParseImage
// and is read-only afterward, which makes it safe to share across
// concurrent lookups.
type Image struct {
	class    Class
	raw      []byte
	segments []Segment
}

// ParseImageOrExit calls ParseImage and calls DefaultExitFn
// if an error occurs.
func ParseImageOrExit(raw []byte) *Image {
	image, err := ParseImage(raw)
	if err != nil {
		DefaultExitFn(fmt.Errorf("elfkit: failed to parse image - %w", err))
	}

	return image
}

// ParseImage parses the header and program-header table of raw.
//
// Parsing fails fast: a malformed class byte or a truncated table
// produces an error and no Image. There is no partial recovery.
//
// The program-header table is located relative to e_ehsize rather
// than e_phoff; the boot images this package targets place the table
// directly after the file header.
func ParseImage(raw []byte) (*Image, error) {
	if len(raw) <= classByteOffset {
		return nil, fmt.Errorf("image is %d bytes, too short for an identification block",
			len(raw))
	}

	var class Class
	var tripletAt int
	var minEntrySize int

	switch raw[classByteOffset] {
	case 1:
		class = Class32
		tripletAt = sizeTripletOffset32
		minEntrySize = minEntrySize32
	case 2:
		class = Class64
		tripletAt = sizeTripletOffset64
		minEntrySize = minEntrySize64
	default:
		return nil, fmt.Errorf("class byte is 0x%02x - %w",
			raw[classByteOffset], ErrInvalidClass)
	}

	if len(raw) < tripletAt+6 {
		return nil, fmt.Errorf("image is %d bytes, too short for the header size fields",
			len(raw))
	}

	headerSize := int(binary.LittleEndian.Uint16(raw[tripletAt:]))
	entrySize := int(binary.LittleEndian.Uint16(raw[tripletAt+2:]))
	entryCount := int(binary.LittleEndian.Uint16(raw[tripletAt+4:]))

	if entryCount > 0 && entrySize < minEntrySize {
		return nil, fmt.Errorf("program header entry size is %d bytes, need at least %d",
			entrySize, minEntrySize)
	}

	segments := make([]Segment, 0, entryCount)

	for i := 0; i < entryCount; i++ {
		start := headerSize + i*entrySize
		end := start + entrySize
		if end > len(raw) {
			return nil, fmt.Errorf("program header %d ends at %d, past the end of the %d byte image",
				i, end, len(raw))
		}

		segments = append(segments, parseProgramEntry(class, raw[start:end]))
	}

	return &Image{
		class:    class,
		raw:      raw,
		segments: segments,
	}, nil
}

func parseProgramEntry(class Class, entry []byte) Segment {
	le := binary.LittleEndian

	if class == Class32 {
		// p_type, p_offset, p_vaddr, p_paddr, p_filesz, p_memsz,
		// p_flags, p_align - all uint32.
		fileStart := uint64(le.Uint32(entry[4:]))
		virtStart := uint64(le.Uint32(entry[8:]))

		return Segment{
			PhysicalAddr: uint64(le.Uint32(entry[12:])),
			VirtStart:    virtStart,
			VirtEnd:      virtStart + uint64(le.Uint32(entry[20:])),
			FileStart:    fileStart,
			FileEnd:      fileStart + uint64(le.Uint32(entry[16:])),
		}
	}

	// p_type, p_flags (uint32), then p_offset, p_vaddr, p_paddr,
	// p_filesz, p_memsz, p_align as uint64.
	fileStart := le.Uint64(entry[8:])
	virtStart := le.Uint64(entry[16:])

	return Segment{
		PhysicalAddr: le.Uint64(entry[24:]),
		VirtStart:    virtStart,
		VirtEnd:      virtStart + le.Uint64(entry[40:]),
		FileStart:    fileStart,
		FileEnd:      fileStart + le.Uint64(entry[32:]),
	}
}

// Class returns the address width class of the image.
func (o *Image) Class() Class {
	return o.class
}

// Raw returns the raw bytes the image was parsed from.
func (o *Image) Raw() []byte {
	return o.raw
}

// Segments returns a copy of the parsed segment table in
// program-header order.
func (o *Image) Segments() []Segment {
	segments := make([]Segment, len(o.segments))

	copy(segments, o.segments)

	return segments
}

// FileOffsetToVirtual maps an on-disk file offset to its runtime
// virtual address. The boolean is false when no segment contains
// the offset, which is a legitimate outcome rather than an error.
//
// Segments are assumed to be non-overlapping. If they do overlap,
// the first matching entry in table order wins.
func (o *Image) FileOffsetToVirtual(fileOffset uint64) (uint64, bool) {
	for _, segment := range o.segments {
		if fileOffset >= segment.FileStart && fileOffset <= segment.FileEnd {
			return segment.VirtStart + (fileOffset - segment.FileStart), true
		}
	}

	return 0, false
}

// VirtualToFileOffset maps a runtime virtual address to its on-disk
// file offset. Miss and overlap behavior match FileOffsetToVirtual.
func (o *Image) VirtualToFileOffset(vaddr uint64) (uint64, bool) {
	for _, segment := range o.segments {
		if vaddr >= segment.VirtStart && vaddr <= segment.VirtEnd {
			return segment.FileStart + (vaddr - segment.VirtStart), true
		}
	}

	return 0, false
}

// BaseAddress returns the virtual start address of the segment
// containing vaddr. Miss and overlap behavior match
// FileOffsetToVirtual.
func (o *Image) BaseAddress(vaddr uint64) (uint64, bool) {
	for _, segment := range o.segments {
		if vaddr >= segment.VirtStart && vaddr <= segment.VirtEnd {
			return segment.VirtStart, true
		}
	}

	return 0, false
}
