package patchkit

import (
	"fmt"
)

// FindBinaryOrExit calls FindBinary and calls DefaultExitFn
// if the pattern is not found.
func FindBinaryOrExit(data []byte, pattern []byte, pos int) int {
	offset, ok := FindBinary(data, pattern, pos)
	if !ok {
		DefaultExitFn(fmt.Errorf("patchkit: failed to find pattern 0x%x at or after offset %d",
			pattern, pos))
	}

	return offset
}

// FindBinary locates the first occurrence of pattern in data at or
// after pos, returning its absolute offset. A '.' byte in the pattern
// matches any single byte, which allows anchoring a search around
// fields that vary between image builds.
//
// The boolean is false when the pattern does not occur.
func FindBinary(data []byte, pattern []byte, pos int) (int, bool) {
	if pos < 0 || pos > len(data) || len(pattern) == 0 {
		return 0, false
	}

	for offset := pos; offset+len(pattern) <= len(data); offset++ {
		if matchesAt(data[offset:], pattern) {
			return offset, true
		}
	}

	return 0, false
}

func matchesAt(data []byte, pattern []byte) bool {
	for i, p := range pattern {
		if p != '.' && data[i] != p {
			return false
		}
	}

	return true
}
