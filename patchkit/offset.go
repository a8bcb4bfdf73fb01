package patchkit

import (
	"encoding/binary"
)

// DefaultBoundsLimit is the default exclusive bound on the divisor
// search. It keeps the search under ~386 iterations per pass.
const DefaultBoundsLimit = 0x606

// OffsetResult is the outcome of a divisor search.
type OffsetResult struct {
	// Divisor is the value to add to the target address before
	// encoding it, and to subtract again at runtime. It is a
	// multiple of 4 with |Divisor| < BoundsLimit.
	//
	// A Divisor of 0 with Found set means the target address is
	// already filter-clean. A Divisor of 0 without Found set means
	// the search exhausted both passes; code must not be built on
	// such a result.
	Divisor int32

	// Found reports whether the search succeeded.
	Found bool

	// BoundsLimit is the bound the search ran with.
	BoundsLimit uint32
}

// OffsetSearcher finds a small divisor d such that the little-endian
// encodings of both (target + d) as 4 bytes and d as 2 bytes contain
// no forbidden byte.
//
// The zero value searches with an empty filter and DefaultBoundsLimit.
type OffsetSearcher struct {
	// Filter is the forbidden byte set.
	Filter ByteFilter

	// BoundsLimit is the exclusive bound on |divisor|.
	// Defaults to DefaultBoundsLimit when zero.
	BoundsLimit uint32
}

// Compute searches divisors 0, 4, 8, … ascending; the first clean
// value wins, so the smallest magnitude is returned with positive
// divisors preferred. If the ascending pass exhausts the bound, the
// identical pass runs over (target - d), returning -d on success.
//
// Compute is deterministic and always terminates within the bound.
// Arithmetic wraps mod 2^32, matching the runtime add/sub that later
// undoes the divisor.
func (o OffsetSearcher) Compute(target uint32) OffsetResult {
	limit := o.BoundsLimit
	if limit == 0 {
		limit = DefaultBoundsLimit
	}

	for div := uint32(0); div < limit; div += 4 {
		if o.clean(target+div, div) {
			return OffsetResult{
				Divisor:     int32(div),
				Found:       true,
				BoundsLimit: limit,
			}
		}
	}

	for div := uint32(0); div < limit; div += 4 {
		if o.clean(target-div, div) {
			return OffsetResult{
				Divisor:     -int32(div),
				Found:       true,
				BoundsLimit: limit,
			}
		}
	}

	return OffsetResult{BoundsLimit: limit}
}

func (o OffsetSearcher) clean(adjusted uint32, div uint32) bool {
	var word [4]byte

	binary.LittleEndian.PutUint32(word[:], adjusted)

	if !o.Filter.IsSafe(word[:]) {
		return false
	}

	var half [2]byte

	binary.LittleEndian.PutUint16(half[:], uint16(div))

	return o.Filter.IsSafe(half[:])
}
