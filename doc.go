// Package injectkit provides functionality for boot-time code
// injection research.
//
// Given an executable image and a target virtual address, injectkit
// resolves addresses between their on-disk and runtime forms and
// synthesizes short instruction sequences that rebuild the address in
// a register using only bytes that survive a byte-filtering transport
// (for example, a UART console that consumes NUL, CR, LF, and other
// control bytes).
//
// APIs are separated into subpackages, and documented accordingly.
//
// For scripting convenience, "OrExit" functions and methods are provided.
// Any errors encountered by these functions are treated as fatal. In such
// cases, an exit handler function is invoked.
package injectkit
