package patchkit

import (
	"testing"
)

func TestLoadSequenceA64PositiveDivisor(t *testing.T) {
	exp := "# 0x41414141\n" +
		"mov x24, #0x4245;\n" +
		"movk x24, #0x4141, LSL#16;\n" +
		"sub x24, x24, #0x104;\n"

	asm := LoadSequence(DialectA64, 0x41414141, 0x104, "x24")
	if asm != exp {
		t.Fatalf("expected:\n%s\ngot:\n%s", exp, asm)
	}
}

func TestLoadSequenceA64NegativeDivisor(t *testing.T) {
	exp := "# 0x2000000\n" +
		"mov x8, #0xfffc;\n" +
		"movk x8, #0x1ff, LSL#16;\n" +
		"add x8, x8, #0x4;\n"

	asm := LoadSequence(DialectA64, 0x02000000, -4, "x8")
	if asm != exp {
		t.Fatalf("expected:\n%s\ngot:\n%s", exp, asm)
	}
}

func TestLoadSequenceA64ZeroDivisorOmitsCorrection(t *testing.T) {
	exp := "# 0x41414141\n" +
		"mov x0, #0x4141;\n" +
		"movk x0, #0x4141, LSL#16;\n"

	asm := LoadSequence(DialectA64, 0x41414141, 0, "x0")
	if asm != exp {
		t.Fatalf("expected:\n%s\ngot:\n%s", exp, asm)
	}
}

func TestLoadSequenceA32(t *testing.T) {
	exp := "# 0x41414141\n" +
		"movw r4, #0x4245;\n" +
		"movt r4, #0x4141;\n" +
		"sub r4, r4, #0x104;\n"

	asm := LoadSequence(DialectA32, 0x41414141, 0x104, "r4")
	if asm != exp {
		t.Fatalf("expected:\n%s\ngot:\n%s", exp, asm)
	}
}
