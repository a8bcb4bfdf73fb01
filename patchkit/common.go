// Package patchkit computes filter-safe address offsets and
// synthesizes the instruction sequences that rebuild a target address
// in a register at runtime.
//
// The transport carrying synthesized code (typically a UART console)
// treats certain byte values specially, so neither the code nor the
// numeric values it encodes may contain them. The workflow is: search
// for a small divisor that makes both the adjusted address and the
// divisor itself filter-clean, emit a mov/movk (or movw/movt) sequence
// for the adjusted address followed by a compensating add or sub, then
// assemble and re-validate the machine bytes before transmission.
package patchkit

import (
	"log"
)

var (
	// DefaultExitFn is invoked by functions and methods ending in
	// the "OrExit" suffix when an error occurs.
	DefaultExitFn = func(err error) {
		log.Fatalln(err)
	}
)
