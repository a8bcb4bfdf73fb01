// Package asmkit is the boundary to instruction encoding and
// decoding.
//
// Decoding delegates to golang.org/x/arch. Encoding is provided by
// builtin encoders covering the immediate-move/add/sub subset that the
// synthesis pipeline emits; architectures without an encoder get an
// UnavailableAssembler so callers can degrade instead of crash.
package asmkit

import (
	"fmt"

	"golang.org/x/arch/arm/armasm"
	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

// Arch identifies a target instruction set.
type Arch string

const (
	ArchARM    Arch = "arm"
	ArchARM64  Arch = "arm64"
	ArchX86    Arch = "x86"
	ArchX86_64 Arch = "x86_64"
)

// Syntax selects the disassembly text flavor.
type Syntax string

const (
	// SkipSyntax decodes without producing disassembly text.
	SkipSyntax  Syntax = ""
	GNUSyntax   Syntax = "gnu"
	GoSyntax    Syntax = "go"
	IntelSyntax Syntax = "intel"
)

// DisassemblerConfig configures a Disassembler.
type DisassemblerConfig struct {
	Arch   Arch
	Syntax Syntax
}

// NewDisassembler creates a Disassembler for the specified
// architecture and syntax.
func NewDisassembler(config DisassemblerConfig) (*Disassembler, error) {
	switch config.Arch {
	case ArchARM64:
		switch config.Syntax {
		case SkipSyntax, GNUSyntax:
			// OK.
		default:
			return nil, fmt.Errorf("unsupported syntax for arm64: %q", config.Syntax)
		}

		return &Disassembler{
			decodeOneInstFn: func(remaining []byte) (Inst, error) {
				armInst, err := arm64asm.Decode(remaining)
				if err != nil {
					return Inst{}, err
				}

				var disassembly string
				if config.Syntax == GNUSyntax {
					disassembly = arm64asm.GNUSyntax(armInst)
				}

				return Inst{
					Bin:  copySlice(remaining, 4),
					Len:  4,
					Dis:  disassembly,
					Inst: armInst,
				}, nil
			},
		}, nil
	case ArchARM:
		switch config.Syntax {
		case SkipSyntax, GNUSyntax:
			// OK.
		default:
			return nil, fmt.Errorf("unsupported syntax for arm: %q", config.Syntax)
		}

		return &Disassembler{
			decodeOneInstFn: func(remaining []byte) (Inst, error) {
				armInst, err := armasm.Decode(remaining, armasm.ModeARM)
				if err != nil {
					return Inst{}, err
				}

				var disassembly string
				if config.Syntax == GNUSyntax {
					disassembly = armasm.GNUSyntax(armInst)
				}

				return Inst{
					Bin:  copySlice(remaining, armInst.Len),
					Len:  armInst.Len,
					Dis:  disassembly,
					Inst: armInst,
				}, nil
			},
		}, nil
	case ArchX86, ArchX86_64:
		bits := 32
		if config.Arch == ArchX86_64 {
			bits = 64
		}

		var disassemblyFn func(inst x86asm.Inst) string

		switch config.Syntax {
		case SkipSyntax:
			// Do nothing.
		case GNUSyntax:
			disassemblyFn = func(inst x86asm.Inst) string {
				return x86asm.GNUSyntax(inst, 0, nil)
			}
		case GoSyntax:
			disassemblyFn = func(inst x86asm.Inst) string {
				return x86asm.GoSyntax(inst, 0, nil)
			}
		case IntelSyntax:
			disassemblyFn = func(inst x86asm.Inst) string {
				return x86asm.IntelSyntax(inst, 0, nil)
			}
		default:
			return nil, fmt.Errorf("unsupported syntax for x86: %q", config.Syntax)
		}

		return &Disassembler{
			decodeOneInstFn: func(remaining []byte) (Inst, error) {
				x86Inst, err := x86asm.Decode(remaining, bits)
				if err != nil {
					return Inst{}, err
				}

				var disassembly string
				if disassemblyFn != nil {
					disassembly = disassemblyFn(x86Inst)
				}

				return Inst{
					Bin:  copySlice(remaining, x86Inst.Len),
					Len:  x86Inst.Len,
					Dis:  disassembly,
					Inst: x86Inst,
				}, nil
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported arch: %q", config.Arch)
	}
}

// Disassembler decodes raw machine code one instruction at a time.
type Disassembler struct {
	decodeOneInstFn func(remaining []byte) (Inst, error)
}

// All decodes every instruction in rawInstructions, invoking
// onDecodeFn for each.
func (o *Disassembler) All(rawInstructions []byte, onDecodeFn func(Inst) error) error {
	index := 0

	for index < len(rawInstructions) {
		inst, err := o.decodeOneInstFn(rawInstructions[index:])
		if err != nil {
			return fmt.Errorf("failed to decode instruction at %d - %w - remaining data: 0x%x",
				index, err, rawInstructions[index:])
		}

		inst.Index = index

		err = onDecodeFn(inst)
		if err != nil {
			return fmt.Errorf("on decode function failed for instruction at %d (%q) - %w",
				index, inst.Dis, err)
		}

		index += inst.Len
	}

	return nil
}

// Next decodes the first instruction in rawInstructions.
func (o *Disassembler) Next(rawInstructions []byte) (Inst, error) {
	return o.decodeOneInstFn(rawInstructions)
}

// Inst is a single decoded instruction.
type Inst struct {
	// Bin is the instruction's raw bytes.
	Bin []byte

	// Len is the instruction length in bytes.
	Len int

	// Index is the instruction's byte offset in the decoded buffer.
	Index int

	// Dis is the disassembly text (empty for SkipSyntax).
	Dis string

	// Inst is the underlying golang.org/x/arch instruction value.
	Inst interface{}
}

func copySlice(src []byte, numBytes int) []byte {
	cp := make([]byte, numBytes)

	copy(cp, src[0:numBytes])

	return cp
}
