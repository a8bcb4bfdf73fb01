package asmkit_test

import (
	"fmt"

	"gitlab.com/stephen-fox/injectkit/asmkit"
)

func ExampleA64Assembler_Assemble() {
	machineCode, err := asmkit.NewAssembler(asmkit.ArchARM64).Assemble(
		"mov x0, #1\nadd x0, x0, #4\n")
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Printf("0x%x", machineCode)

	// Output: 0x200080d200100091
}
