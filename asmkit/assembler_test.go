package asmkit

import (
	"bytes"
	"errors"
	"testing"
)

func TestA64AssemblerKnownEncodings(t *testing.T) {
	testCases := []struct {
		source string
		exp    []byte
	}{
		{"mov x0, #1", []byte{0x20, 0x00, 0x80, 0xd2}},
		{"movz x0, #1", []byte{0x20, 0x00, 0x80, 0xd2}},
		{"mov w0, #1", []byte{0x20, 0x00, 0x80, 0x52}},
		{"movk x0, #1, LSL#16", []byte{0x20, 0x00, 0xa0, 0xf2}},
		{"movk x0, #1, lsl #16", []byte{0x20, 0x00, 0xa0, 0xf2}},
		{"add x1, x1, #4", []byte{0x21, 0x10, 0x00, 0x91}},
		{"sub x1, x1, #4", []byte{0x21, 0x10, 0x00, 0xd1}},
	}

	for _, tc := range testCases {
		b, err := A64Assembler{}.Assemble(tc.source)
		if err != nil {
			t.Fatalf("%q: %v", tc.source, err)
		}

		if !bytes.Equal(b, tc.exp) {
			t.Fatalf("%q: expected 0x%x - got 0x%x", tc.source, tc.exp, b)
		}
	}
}

func TestA64AssemblerMultiLine(t *testing.T) {
	source := `# 0x41414141
mov x24, #0x4245;
movk x24, #0x4141, LSL#16;
sub x24, x24, #0x104;
`

	b, err := A64Assembler{}.Assemble(source)
	if err != nil {
		t.Fatal(err)
	}

	if len(b) != 12 {
		t.Fatalf("expected 12 bytes - got %d (0x%x)", len(b), b)
	}
}

func TestA64AssemblerErrors(t *testing.T) {
	testCases := []string{
		"bogus x0, #1",
		"mov x0",
		"mov q0, #1",
		"mov x0, #0x10000",
		"mov x0, x1",
		"movk w0, #1, LSL#32",
		"add x1, w1, #4",
		"add x1, x1, #0x1000",
	}

	for _, source := range testCases {
		_, err := A64Assembler{}.Assemble(source)

		var asmErr *AssemblyError
		if !errors.As(err, &asmErr) {
			t.Fatalf("%q: expected *AssemblyError - got %v", source, err)
		}

		if asmErr.Fragment != source {
			t.Fatalf("%q: expected fragment to match - got %q", source, asmErr.Fragment)
		}
	}
}

func TestA64AssemblerErrorPosition(t *testing.T) {
	source := "mov x0, #1\nbogus x0\n"

	_, err := A64Assembler{}.Assemble(source)

	var asmErr *AssemblyError
	if !errors.As(err, &asmErr) {
		t.Fatalf("expected *AssemblyError - got %v", err)
	}

	if asmErr.Line != 2 {
		t.Fatalf("expected line 2 - got %d", asmErr.Line)
	}

	if asmErr.Offset != 11 {
		t.Fatalf("expected offset 11 - got %d", asmErr.Offset)
	}

	if asmErr.Fragment != "bogus x0" {
		t.Fatalf("expected fragment 'bogus x0' - got %q", asmErr.Fragment)
	}
}

func TestA32AssemblerKnownEncodings(t *testing.T) {
	testCases := []struct {
		source string
		exp    []byte
	}{
		{"movw r0, #1", []byte{0x01, 0x00, 0x00, 0xe3}},
		{"movw r0, #0x4245", []byte{0x45, 0x02, 0x04, 0xe3}},
		{"movt r0, #1", []byte{0x01, 0x00, 0x40, 0xe3}},
		{"mov r0, #1", []byte{0x01, 0x00, 0xa0, 0xe3}},
		{"add r0, r0, #4", []byte{0x04, 0x00, 0x80, 0xe2}},
		{"sub r0, r0, #4", []byte{0x04, 0x00, 0x40, 0xe2}},
		{"sub sp, sp, #8", []byte{0x08, 0xd0, 0x4d, 0xe2}},
	}

	for _, tc := range testCases {
		b, err := A32Assembler{}.Assemble(tc.source)
		if err != nil {
			t.Fatalf("%q: %v", tc.source, err)
		}

		if !bytes.Equal(b, tc.exp) {
			t.Fatalf("%q: expected 0x%x - got 0x%x", tc.source, tc.exp, b)
		}
	}
}

func TestA32AssemblerRejectsUnencodableImmediate(t *testing.T) {
	// 0x604 spans more than 8 bits at any even rotation.
	_, err := A32Assembler{}.Assemble("sub r0, r0, #0x604")

	var asmErr *AssemblyError
	if !errors.As(err, &asmErr) {
		t.Fatalf("expected *AssemblyError - got %v", err)
	}
}

func TestA32ModifiedImmediate(t *testing.T) {
	testCases := []struct {
		value uint32
		ok    bool
	}{
		{0, true},
		{0xff, true},
		{0x101, false},
		{0x3fc, true}, // 0xff ror 30
		{0xff000000, true},
		{0x604, false},
	}

	for _, tc := range testCases {
		_, ok := a32ModifiedImmediate(tc.value)
		if ok != tc.ok {
			t.Fatalf("0x%x: expected ok=%v - got %v", tc.value, tc.ok, ok)
		}
	}
}

func TestUnavailableAssembler(t *testing.T) {
	_, err := UnavailableAssembler{}.Assemble("mov x0, #1")
	if !errors.Is(err, ErrAssemblerUnavailable) {
		t.Fatalf("expected ErrAssemblerUnavailable - got %v", err)
	}

	_, err = NewAssembler(ArchX86_64).Assemble("mov eax, 1")
	if !errors.Is(err, ErrAssemblerUnavailable) {
		t.Fatalf("expected ErrAssemblerUnavailable - got %v", err)
	}
}
