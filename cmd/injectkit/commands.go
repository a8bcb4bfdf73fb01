package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"gitlab.com/stephen-fox/injectkit/asmkit"
	"gitlab.com/stephen-fox/injectkit/elfkit"
	"gitlab.com/stephen-fox/injectkit/patchkit"
)

var (
	logLevel       string
	profilePath    string
	fromFileOffset bool
	showBase       bool
)

// profileFile is the YAML synthesis profile. Every field is optional;
// unset fields keep their defaults.
type profileFile struct {
	ForbiddenBytes []int  `yaml:"forbidden_bytes"`
	BoundsLimit    uint32 `yaml:"bounds_limit"`
	Arch           string `yaml:"arch"`
	Register       string `yaml:"register"`
}

func defaultProfile() profileFile {
	return profileFile{
		ForbiddenBytes: []int{0x00, 0x0a, 0x0d, 0x08, 0x7f, 0x20, 0x09},
		BoundsLimit:    patchkit.DefaultBoundsLimit,
		Arch:           string(asmkit.ArchARM64),
		Register:       "x0",
	}
}

func loadProfile(path string) (profileFile, error) {
	profile := defaultProfile()

	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("failed to read profile - %w", err)
	}

	err = yaml.Unmarshal(data, &profile)
	if err != nil {
		return profile, fmt.Errorf("failed to parse profile %q - %w", path, err)
	}

	return profile, nil
}

func (o profileFile) patcherConfig() (patchkit.PatcherConfig, error) {
	forbidden := make([]byte, 0, len(o.ForbiddenBytes))
	for _, value := range o.ForbiddenBytes {
		if value < 0 || value > 0xff {
			return patchkit.PatcherConfig{}, fmt.Errorf("forbidden byte %d is out of range", value)
		}

		forbidden = append(forbidden, byte(value))
	}

	config := patchkit.PatcherConfig{
		Filter:      patchkit.NewByteFilter(forbidden),
		BoundsLimit: o.BoundsLimit,
	}

	switch asmkit.Arch(o.Arch) {
	case asmkit.ArchARM64, "":
		config.Dialect = patchkit.DialectA64
	case asmkit.ArchARM:
		config.Dialect = patchkit.DialectA32
	default:
		config.Dialect = patchkit.DialectA64
		config.Assembler = asmkit.UnavailableAssembler{Arch: asmkit.Arch(o.Arch)}
	}

	return config, nil
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "" {
		return zap.NewNop(), nil
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}

func parseAddress(s string) (uint64, error) {
	value, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad address %q - %w", s, err)
	}

	return value, nil
}

// parseTarget parses a synthesis target address. The offset search
// operates on 32-bit values, so wider addresses are rejected rather
// than silently truncated.
func parseTarget(s string) (uint32, error) {
	value, err := parseAddress(s)
	if err != nil {
		return 0, err
	}

	if value > 0xffffffff {
		return 0, fmt.Errorf("target 0x%x does not fit in 32 bits", value)
	}

	return uint32(value), nil
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <image> <address>",
	Short: "Translate between file offsets and virtual addresses",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		image, err := elfkit.ParseImage(raw)
		if err != nil {
			return fmt.Errorf("failed to parse %q - %w", args[0], err)
		}

		address, err := parseAddress(args[1])
		if err != nil {
			return err
		}

		if fromFileOffset {
			vaddr, ok := image.FileOffsetToVirtual(address)
			if !ok {
				return fmt.Errorf("file offset 0x%x is not inside any segment", address)
			}

			fmt.Printf("0x%x\n", vaddr)

			return nil
		}

		if showBase {
			base, ok := image.BaseAddress(address)
			if !ok {
				return fmt.Errorf("virtual address 0x%x is not inside any segment", address)
			}

			fmt.Printf("0x%x\n", base)

			return nil
		}

		fileOffset, ok := image.VirtualToFileOffset(address)
		if !ok {
			return fmt.Errorf("virtual address 0x%x is not inside any segment", address)
		}

		fmt.Printf("0x%x\n", fileOffset)

		return nil
	},
}

var offsetCmd = &cobra.Command{
	Use:   "offset <target>",
	Short: "Find a transport-safe divisor for a target address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseTarget(args[0])
		if err != nil {
			return err
		}

		profile, err := loadProfile(profilePath)
		if err != nil {
			return err
		}

		config, err := profile.patcherConfig()
		if err != nil {
			return err
		}

		logger, err := newLogger(logLevel)
		if err != nil {
			return err
		}
		defer logger.Sync()

		patcher := patchkit.NewPatcher(config, logger)

		result := patcher.GenerateOffset(target)
		if !result.Found {
			return fmt.Errorf("no clean divisor for 0x%x within 0x%x",
				target, result.BoundsLimit)
		}

		fmt.Printf("%#x (%d)\n", result.Divisor, result.Divisor)

		return nil
	},
}

var synthCmd = &cobra.Command{
	Use:   "synth <target> [register]",
	Short: "Synthesize, encode, and verify a load sequence",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseTarget(args[0])
		if err != nil {
			return err
		}

		profile, err := loadProfile(profilePath)
		if err != nil {
			return err
		}

		register := profile.Register
		if len(args) == 2 {
			register = args[1]
		}

		config, err := profile.patcherConfig()
		if err != nil {
			return err
		}

		logger, err := newLogger(logLevel)
		if err != nil {
			return err
		}
		defer logger.Sync()

		patcher := patchkit.NewPatcher(config, logger)

		result, err := patcher.EncodeLoadSequence(target, register)
		if errors.Is(err, asmkit.ErrAssemblerUnavailable) {
			// No encoder for this architecture: still useful to
			// print the assembly, just without machine code.
			asm, asmErr := patcher.GenerateOffsetASM(target, register)
			if asmErr != nil {
				return asmErr
			}

			fmt.Print(asm)
			fmt.Fprintln(os.Stderr, "warning: no assembler for this architecture, encoding skipped")

			return nil
		}
		if err != nil {
			return err
		}

		fmt.Print(result.Assembly)
		fmt.Printf("%x\n", result.MachineCode)

		return nil
	},
}

var disasmCmd = &cobra.Command{
	Use:   "disasm <arch>",
	Short: "Disassemble raw machine code from stdin",
	Long: `Disassemble raw machine code read from stdin.

Input is raw bytes by default, or hex pairs with --hex. Supported
architectures: arm, arm64, x86, x86_64.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		syntax := asmkit.GNUSyntax
		arch := asmkit.Arch(args[0])
		if arch == asmkit.ArchX86 || arch == asmkit.ArchX86_64 {
			syntax = asmkit.IntelSyntax
		}

		disassembler, err := asmkit.NewDisassembler(asmkit.DisassemblerConfig{
			Arch:   arch,
			Syntax: syntax,
		})
		if err != nil {
			return err
		}

		input, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin - %w", err)
		}

		if hexInput {
			input, err = hex.DecodeString(strings.Join(strings.Fields(string(input)), ""))
			if err != nil {
				return fmt.Errorf("failed to hex decode input - %w", err)
			}
		}

		return disassembler.All(input, func(inst asmkit.Inst) error {
			_, err := fmt.Printf("%06x  %-8x  %s\n", inst.Index, inst.Bin, inst.Dis)
			return err
		})
	},
}

var hexInput bool

func init() {
	resolveCmd.Flags().BoolVar(&fromFileOffset, "from-file-offset", false,
		"treat the address as a file offset and print its virtual address")
	resolveCmd.Flags().BoolVar(&showBase, "base", false,
		"print the base address of the containing segment")

	offsetCmd.Flags().StringVar(&profilePath, "profile", "",
		"path to a YAML synthesis profile")
	synthCmd.Flags().StringVar(&profilePath, "profile", "",
		"path to a YAML synthesis profile")

	disasmCmd.Flags().BoolVar(&hexInput, "hex", false,
		"input is hex pairs instead of raw bytes")
}
