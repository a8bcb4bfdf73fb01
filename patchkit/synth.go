package patchkit

import (
	"fmt"
	"strings"
)

// Dialect selects the mnemonic syntax LoadSequence emits.
type Dialect int

const (
	// DialectA64 emits mov/movk with an LSL#16 shift (AArch64).
	DialectA64 Dialect = iota

	// DialectA32 emits movw/movt (32-bit ARM).
	DialectA32
)

// LoadSequence emits the assembly text that rebuilds target in the
// named register.
//
// The sequence moves the low 16 bits of (target + divisor) into the
// register, keeps the high 16 bits into the upper half, then undoes
// the divisor with a sub (positive divisor) or add (negative divisor).
// A zero divisor omits the third instruction. The leading comment line
// names the raw target address.
func LoadSequence(dialect Dialect, target uint32, divisor int32, register string) string {
	adjusted := target + uint32(divisor)
	low := adjusted & 0xffff
	high := adjusted >> 16

	var builder strings.Builder

	fmt.Fprintf(&builder, "# 0x%x\n", target)

	switch dialect {
	case DialectA32:
		fmt.Fprintf(&builder, "movw %s, #0x%x;\n", register, low)
		fmt.Fprintf(&builder, "movt %s, #0x%x;\n", register, high)
	default:
		fmt.Fprintf(&builder, "mov %s, #0x%x;\n", register, low)
		fmt.Fprintf(&builder, "movk %s, #0x%x, LSL#16;\n", register, high)
	}

	switch {
	case divisor > 0:
		fmt.Fprintf(&builder, "sub %s, %s, #0x%x;\n", register, register, divisor)
	case divisor < 0:
		fmt.Fprintf(&builder, "add %s, %s, #0x%x;\n", register, register, -divisor)
	}

	return builder.String()
}
