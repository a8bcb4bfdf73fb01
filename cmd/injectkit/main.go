// Injectkit resolves addresses in executable images and synthesizes
// filter-safe address-loading code.
//
// It is the command line front end for the elfkit, patchkit, and
// asmkit packages: translate between file offsets and virtual
// addresses, search for transport-safe address divisors, synthesize
// and encode load sequences, and disassemble raw machine code.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "injectkit",
	Short: "Address resolution and filter-safe code synthesis",
	Long: `Tools for boot-time code injection research.

Given an executable image and a target virtual address, injectkit
translates between on-disk file offsets and runtime virtual addresses,
and synthesizes short instruction sequences that rebuild an address in
a register using only bytes that survive a byte-filtering transport
(for example, a UART console that consumes control bytes).

Synthesis behavior (forbidden bytes, search bound, architecture,
register) is configured with a YAML profile; see the --profile flag.`,
	Example: `  # Map a virtual address to its file offset
  injectkit resolve preloader.elf 0x201000

  # Find a transport-safe divisor for an address
  injectkit offset 0x41414141

  # Synthesize, encode, and verify a load sequence
  injectkit synth 0x41414141 x24

  # Disassemble raw machine code from stdin
  injectkit disasm arm64 < code.bin`,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"logging verbosity (debug, info, warn, error); silent when empty")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(offsetCmd)
	rootCmd.AddCommand(synthCmd)
	rootCmd.AddCommand(disasmCmd)
}
