package asmkit

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// ErrAssemblerUnavailable indicates that no encoder exists for the
// requested architecture. Callers should disable assembly-dependent
// features rather than treat this as a crash.
var ErrAssemblerUnavailable = errors.New("no assembler available")

// Assembler encodes assembly source text into raw machine bytes.
type Assembler interface {
	// Assemble encodes source. On an encode failure the returned
	// error is a *AssemblyError naming the offending fragment and
	// its position. The failure is fatal to this request only.
	Assemble(source string) ([]byte, error)
}

// NewAssembler returns the builtin encoder for the specified
// architecture, or an UnavailableAssembler when none exists.
func NewAssembler(arch Arch) Assembler {
	switch arch {
	case ArchARM64:
		return A64Assembler{}
	case ArchARM:
		return A32Assembler{}
	default:
		return UnavailableAssembler{Arch: arch}
	}
}

// UnavailableAssembler is the explicit absent-capability
// implementation of Assembler. Assemble always fails with an error
// matching ErrAssemblerUnavailable.
type UnavailableAssembler struct {
	// Arch optionally names the architecture lacking an encoder.
	Arch Arch
}

func (o UnavailableAssembler) Assemble(source string) ([]byte, error) {
	if o.Arch == "" {
		return nil, ErrAssemblerUnavailable
	}

	return nil, fmt.Errorf("arch %q - %w", o.Arch, ErrAssemblerUnavailable)
}

// AssemblyError reports an encode failure. It carries the failing
// source fragment and its position so callers can display exactly
// what could not be encoded.
type AssemblyError struct {
	// Line is the 1-based source line number.
	Line int

	// Offset is the byte offset of the line within the source.
	Offset int

	// Fragment is the failing line, trimmed.
	Fragment string

	// Reason describes why the fragment could not be encoded.
	Reason string
}

func (o *AssemblyError) Error() string {
	return fmt.Sprintf("line %d (offset %d): %q - %s",
		o.Line, o.Offset, o.Fragment, o.Reason)
}

// A64Assembler encodes the AArch64 subset emitted by the synthesis
// pipeline: mov/movz/movk with an optional LSL shift, and add/sub
// with a 12-bit immediate. Words are little endian.
type A64Assembler struct{}

func (o A64Assembler) Assemble(source string) ([]byte, error) {
	return assembleLines(source, encodeA64)
}

// A32Assembler encodes the 32-bit ARM subset emitted by the synthesis
// pipeline: movw/movt, and mov/add/sub with a modified immediate.
// Words are little endian, ARM (not Thumb) encoding, condition AL.
type A32Assembler struct{}

func (o A32Assembler) Assemble(source string) ([]byte, error) {
	return assembleLines(source, encodeA32)
}

func assembleLines(source string, encodeFn func(mnemonic string, operands []string) (uint32, error)) ([]byte, error) {
	var out []byte

	offset := 0

	for i, rawLine := range strings.Split(source, "\n") {
		line := strings.TrimSpace(rawLine)
		line = strings.TrimSuffix(line, ";")
		line = strings.TrimSpace(line)

		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			offset += len(rawLine) + 1

			continue
		}

		mnemonic, operands := splitInst(line)

		word, err := encodeFn(mnemonic, operands)
		if err != nil {
			return nil, &AssemblyError{
				Line:     i + 1,
				Offset:   offset,
				Fragment: line,
				Reason:   err.Error(),
			}
		}

		out = binary.LittleEndian.AppendUint32(out, word)

		offset += len(rawLine) + 1
	}

	return out, nil
}

func splitInst(line string) (string, []string) {
	index := strings.IndexAny(line, " \t")
	if index < 0 {
		return strings.ToLower(line), nil
	}

	mnemonic := strings.ToLower(line[:index])

	var operands []string
	for _, operand := range strings.Split(line[index:], ",") {
		operands = append(operands, strings.TrimSpace(operand))
	}

	return mnemonic, operands
}

func encodeA64(mnemonic string, operands []string) (uint32, error) {
	switch mnemonic {
	case "mov", "movz", "movk":
		if len(operands) < 2 || len(operands) > 3 {
			return 0, fmt.Errorf("%s requires 2 or 3 operands, got %d",
				mnemonic, len(operands))
		}

		rd, sf, err := parseA64Register(operands[0])
		if err != nil {
			return 0, err
		}

		imm, err := parseImmediate(operands[1])
		if err != nil {
			return 0, err
		}

		if imm > 0xffff {
			return 0, fmt.Errorf("immediate 0x%x does not fit in 16 bits", imm)
		}

		var shift uint32
		if len(operands) == 3 {
			shift, err = parseLSLShift(operands[2])
			if err != nil {
				return 0, err
			}
		}

		if shift%16 != 0 || shift > 48 || (sf == 0 && shift > 16) {
			return 0, fmt.Errorf("unsupported shift %d for %s", shift, operands[0])
		}

		base := uint32(0x52800000) // MOVZ
		if mnemonic == "movk" {
			base = 0x72800000
		}

		return base | sf<<31 | (shift/16)<<21 | imm<<5 | rd, nil
	case "add", "sub":
		if len(operands) != 3 {
			return 0, fmt.Errorf("%s requires 3 operands, got %d",
				mnemonic, len(operands))
		}

		rd, sfd, err := parseA64Register(operands[0])
		if err != nil {
			return 0, err
		}

		rn, sfn, err := parseA64Register(operands[1])
		if err != nil {
			return 0, err
		}

		if sfd != sfn {
			return 0, fmt.Errorf("register width mismatch: %s, %s",
				operands[0], operands[1])
		}

		imm, err := parseImmediate(operands[2])
		if err != nil {
			return 0, err
		}

		if imm > 0xfff {
			return 0, fmt.Errorf("immediate 0x%x does not fit in 12 bits", imm)
		}

		base := uint32(0x11000000) // ADD (immediate)
		if mnemonic == "sub" {
			base = 0x51000000
		}

		return base | sfd<<31 | imm<<10 | rn<<5 | rd, nil
	default:
		return 0, fmt.Errorf("unsupported mnemonic %q", mnemonic)
	}
}

func encodeA32(mnemonic string, operands []string) (uint32, error) {
	const condAlways = uint32(0xe) << 28

	switch mnemonic {
	case "movw", "movt":
		if len(operands) != 2 {
			return 0, fmt.Errorf("%s requires 2 operands, got %d",
				mnemonic, len(operands))
		}

		rd, err := parseA32Register(operands[0])
		if err != nil {
			return 0, err
		}

		imm, err := parseImmediate(operands[1])
		if err != nil {
			return 0, err
		}

		if imm > 0xffff {
			return 0, fmt.Errorf("immediate 0x%x does not fit in 16 bits", imm)
		}

		base := uint32(0x03000000) // MOVW
		if mnemonic == "movt" {
			base = 0x03400000
		}

		return condAlways | base | (imm>>12)<<16 | rd<<12 | imm&0xfff, nil
	case "mov":
		if len(operands) != 2 {
			return 0, fmt.Errorf("mov requires 2 operands, got %d", len(operands))
		}

		rd, err := parseA32Register(operands[0])
		if err != nil {
			return 0, err
		}

		imm, err := parseImmediate(operands[1])
		if err != nil {
			return 0, err
		}

		encoded, ok := a32ModifiedImmediate(imm)
		if !ok {
			return 0, fmt.Errorf("0x%x is not an arm modified immediate", imm)
		}

		return condAlways | 0x03a00000 | rd<<12 | encoded, nil
	case "add", "sub":
		if len(operands) != 3 {
			return 0, fmt.Errorf("%s requires 3 operands, got %d",
				mnemonic, len(operands))
		}

		rd, err := parseA32Register(operands[0])
		if err != nil {
			return 0, err
		}

		rn, err := parseA32Register(operands[1])
		if err != nil {
			return 0, err
		}

		imm, err := parseImmediate(operands[2])
		if err != nil {
			return 0, err
		}

		encoded, ok := a32ModifiedImmediate(imm)
		if !ok {
			return 0, fmt.Errorf("0x%x is not an arm modified immediate", imm)
		}

		base := uint32(0x02800000) // ADD (immediate)
		if mnemonic == "sub" {
			base = 0x02400000
		}

		return condAlways | base | rn<<16 | rd<<12 | encoded, nil
	default:
		return 0, fmt.Errorf("unsupported mnemonic %q", mnemonic)
	}
}

// a32ModifiedImmediate encodes value as an 8-bit immediate rotated
// right by an even amount, the only immediate form the A32 data
// processing instructions accept.
func a32ModifiedImmediate(value uint32) (uint32, bool) {
	for rot := uint32(0); rot < 16; rot++ {
		rotated := bits.RotateLeft32(value, int(2*rot))
		if rotated <= 0xff {
			return rot<<8 | rotated, true
		}
	}

	return 0, false
}

func parseA64Register(token string) (num uint32, sf uint32, err error) {
	name := strings.ToLower(token)

	switch name {
	case "xzr":
		return 31, 1, nil
	case "wzr":
		return 31, 0, nil
	}

	switch {
	case strings.HasPrefix(name, "x"):
		sf = 1
	case strings.HasPrefix(name, "w"):
		sf = 0
	default:
		return 0, 0, fmt.Errorf("unknown register %q", token)
	}

	parsed, parseErr := strconv.ParseUint(name[1:], 10, 8)
	if parseErr != nil || parsed > 30 {
		return 0, 0, fmt.Errorf("unknown register %q", token)
	}

	return uint32(parsed), sf, nil
}

func parseA32Register(token string) (uint32, error) {
	name := strings.ToLower(token)

	switch name {
	case "sp":
		return 13, nil
	case "lr":
		return 14, nil
	case "pc":
		return 15, nil
	}

	if !strings.HasPrefix(name, "r") {
		return 0, fmt.Errorf("unknown register %q", token)
	}

	parsed, err := strconv.ParseUint(name[1:], 10, 8)
	if err != nil || parsed > 15 {
		return 0, fmt.Errorf("unknown register %q", token)
	}

	return uint32(parsed), nil
}

func parseImmediate(token string) (uint32, error) {
	withoutPrefix, hadPrefix := strings.CutPrefix(token, "#")
	if !hadPrefix {
		return 0, fmt.Errorf("expected an immediate, got %q", token)
	}

	parsed, err := strconv.ParseUint(withoutPrefix, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad immediate %q - %w", token, err)
	}

	return uint32(parsed), nil
}

func parseLSLShift(token string) (uint32, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(token, " ", ""))

	withoutPrefix, hadPrefix := strings.CutPrefix(normalized, "LSL#")
	if !hadPrefix {
		return 0, fmt.Errorf("expected an LSL shift, got %q", token)
	}

	parsed, err := strconv.ParseUint(withoutPrefix, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("bad shift %q - %w", token, err)
	}

	return uint32(parsed), nil
}
