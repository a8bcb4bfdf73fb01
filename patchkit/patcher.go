package patchkit

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"gitlab.com/stephen-fox/injectkit/asmkit"
)

// ErrSearchExhausted is returned when no filter-clean divisor exists
// within the bounds limit. The zero-divisor fallback of the search is
// never silently trusted.
var ErrSearchExhausted = errors.New("offset search exhausted bounds limit")

// PatcherConfig configures a Patcher.
type PatcherConfig struct {
	// Filter is the forbidden byte set of the transport.
	Filter ByteFilter

	// BoundsLimit is the exclusive bound on the divisor search.
	// Defaults to DefaultBoundsLimit when zero.
	BoundsLimit uint32

	// Dialect selects the mnemonic syntax of synthesized code.
	Dialect Dialect

	// Assembler encodes synthesized assembly into machine bytes.
	// Defaults to the builtin encoder matching Dialect when nil.
	Assembler asmkit.Assembler
}

// DefaultPatcherConfig returns a PatcherConfig for an AArch64 target
// behind a UART console transport.
func DefaultPatcherConfig() PatcherConfig {
	return PatcherConfig{
		Filter:      DefaultUARTFilter(),
		BoundsLimit: DefaultBoundsLimit,
		Dialect:     DialectA64,
	}
}

// NewPatcher creates a new Patcher with the given configuration.
// A nil logger disables logging.
func NewPatcher(config PatcherConfig, logger *zap.Logger) *Patcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	if config.Assembler == nil {
		switch config.Dialect {
		case DialectA32:
			config.Assembler = asmkit.NewAssembler(asmkit.ArchARM)
		default:
			config.Assembler = asmkit.NewAssembler(asmkit.ArchARM64)
		}
	}

	return &Patcher{
		config: config,
		searcher: OffsetSearcher{
			Filter:      config.Filter,
			BoundsLimit: config.BoundsLimit,
		},
		logger: logger,
	}
}

// Patcher ties the offset search, the instruction synthesizer, and
// the assembler together into the full synthesis pipeline.
type Patcher struct {
	config   PatcherConfig
	searcher OffsetSearcher
	logger   *zap.Logger
}

// GenerateOffset searches for a filter-clean divisor for target.
// The result's Found field must be checked; see OffsetResult.
func (o *Patcher) GenerateOffset(target uint32) OffsetResult {
	result := o.searcher.Compute(target)

	o.logger.Debug("offset search finished",
		zap.Uint32("target", target),
		zap.Int32("divisor", result.Divisor),
		zap.Bool("found", result.Found))

	return result
}

// GenerateOffsetASM searches for a divisor and synthesizes the
// load sequence for target in the named register.
//
// It fails with ErrSearchExhausted when the search soft-fails, rather
// than emitting code built on an unverified zero divisor.
func (o *Patcher) GenerateOffsetASM(target uint32, register string) (string, error) {
	result := o.GenerateOffset(target)
	if !result.Found {
		return "", fmt.Errorf("no clean divisor for 0x%x within 0x%x - %w",
			target, result.BoundsLimit, ErrSearchExhausted)
	}

	return LoadSequence(o.config.Dialect, target, result.Divisor, register), nil
}

// LoadSequenceResult is the outcome of a full synthesis request.
type LoadSequenceResult struct {
	// Assembly is the synthesized source text.
	Assembly string

	// MachineCode is the encoded, filter-validated instruction words.
	MachineCode []byte

	// Divisor is the divisor the search selected.
	Divisor int32
}

// EncodeLoadSequence runs the full pipeline for target: divisor
// search, synthesis, assembly, and a final safety check of the
// machine bytes against the filter.
//
// An encode failure or a forbidden byte in the output is fatal to
// this request only. Nothing is returned that is unsafe to transmit.
func (o *Patcher) EncodeLoadSequence(target uint32, register string) (LoadSequenceResult, error) {
	result := o.GenerateOffset(target)
	if !result.Found {
		return LoadSequenceResult{}, fmt.Errorf("no clean divisor for 0x%x within 0x%x - %w",
			target, result.BoundsLimit, ErrSearchExhausted)
	}

	assembly := LoadSequence(o.config.Dialect, target, result.Divisor, register)

	machineCode, err := o.config.Assembler.Assemble(assembly)
	if err != nil {
		return LoadSequenceResult{}, fmt.Errorf("failed to assemble load sequence - %w", err)
	}

	err = o.config.Filter.Check(machineCode)
	if err != nil {
		o.logger.Error("machine code failed final safety check",
			zap.Uint32("target", target),
			zap.Error(err))

		return LoadSequenceResult{}, fmt.Errorf("machine code failed final safety check - %w", err)
	}

	o.logger.Debug("load sequence encoded",
		zap.Uint32("target", target),
		zap.Int32("divisor", result.Divisor),
		zap.Int("code_len", len(machineCode)))

	return LoadSequenceResult{
		Assembly:    assembly,
		MachineCode: machineCode,
		Divisor:     result.Divisor,
	}, nil
}

// EncodeLoadSequenceOrExit calls EncodeLoadSequence and calls
// DefaultExitFn if an error occurs.
func (o *Patcher) EncodeLoadSequenceOrExit(target uint32, register string) LoadSequenceResult {
	result, err := o.EncodeLoadSequence(target, register)
	if err != nil {
		DefaultExitFn(fmt.Errorf("patchkit: failed to encode load sequence for 0x%x - %w",
			target, err))
	}

	return result
}

// ValidateShellcode checks caller-supplied machine bytes against the
// filter. A non-nil error is a *UnsafeByteError naming the offending
// byte, its offset, and its opcode index; such code must not be
// transmitted.
func (o *Patcher) ValidateShellcode(shellcode []byte) error {
	err := o.config.Filter.Check(shellcode)
	if err != nil {
		o.logger.Error("shellcode failed safety check", zap.Error(err))

		return err
	}

	return nil
}
