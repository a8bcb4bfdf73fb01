package patchkit_test

import (
	"fmt"

	"gitlab.com/stephen-fox/injectkit/patchkit"
)

func ExamplePatcher_GenerateOffsetASM() {
	patcher := patchkit.NewPatcher(patchkit.DefaultPatcherConfig(), nil)

	asm, err := patcher.GenerateOffsetASM(0x41414141, "x24")
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Print(asm)

	// Output:
	// # 0x41414141
	// mov x24, #0x4245;
	// movk x24, #0x4141, LSL#16;
	// sub x24, x24, #0x104;
}

func ExamplePatcher_EncodeLoadSequence() {
	patcher := patchkit.NewPatcher(patchkit.DefaultPatcherConfig(), nil)

	result := patcher.EncodeLoadSequenceOrExit(0x41414141, "x24")

	fmt.Printf("%d 0x%x", result.Divisor, result.MachineCode)

	// Output: 260 0xb84888d23828a8f2181304d1
}
