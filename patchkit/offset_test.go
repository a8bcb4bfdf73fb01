package patchkit

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeUARTScenario(t *testing.T) {
	searcher := OffsetSearcher{
		Filter:      DefaultUARTFilter(),
		BoundsLimit: DefaultBoundsLimit,
	}

	result := searcher.Compute(0x41414141)

	require.True(t, result.Found)
	// Divisors below 0x100 encode with a NUL high byte, so the
	// smallest clean multiple of 4 is 0x104.
	require.Equal(t, int32(0x104), result.Divisor)

	// The result must satisfy both encoding checks directly.
	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], 0x41414141+uint32(result.Divisor))
	require.True(t, searcher.Filter.IsSafe(word[:]))

	var half [2]byte
	binary.LittleEndian.PutUint16(half[:], uint16(result.Divisor))
	require.True(t, searcher.Filter.IsSafe(half[:]))

	// Identity: adjusting and correcting recovers the target.
	adjusted := 0x41414141 + uint32(result.Divisor)
	require.Equal(t, uint32(0x41414141), adjusted-uint32(result.Divisor))
}

func TestComputeIsDeterministic(t *testing.T) {
	searcher := OffsetSearcher{Filter: DefaultUARTFilter()}

	first := searcher.Compute(0x41414141)

	for i := 0; i < 10; i++ {
		require.Equal(t, first, searcher.Compute(0x41414141))
	}
}

func TestComputeCleanTargetNeedsNoOffset(t *testing.T) {
	// With nothing forbidden, divisor 0 is clean immediately.
	var searcher OffsetSearcher

	result := searcher.Compute(0x41414141)

	require.True(t, result.Found)
	require.Equal(t, int32(0), result.Divisor)
}

func TestComputeFallsBackToNegativePass(t *testing.T) {
	// The top byte of (0x02000000 + d) stays 0x02 for every divisor
	// within the bound, so the ascending pass cannot succeed. The
	// descending pass borrows out of the top byte on the first step.
	searcher := OffsetSearcher{
		Filter: NewByteFilter([]byte{0x02}),
	}

	result := searcher.Compute(0x02000000)

	require.True(t, result.Found)
	require.Equal(t, int32(-4), result.Divisor)
}

func TestComputeExhaustionIsSoftFailure(t *testing.T) {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}

	searcher := OffsetSearcher{Filter: NewByteFilter(all)}

	result := searcher.Compute(0x41414141)

	require.False(t, result.Found)
	require.Equal(t, int32(0), result.Divisor)
	require.Equal(t, uint32(DefaultBoundsLimit), result.BoundsLimit)
}

func TestComputeRespectsBoundsLimit(t *testing.T) {
	searcher := OffsetSearcher{
		Filter:      DefaultUARTFilter(),
		BoundsLimit: 8,
	}

	targets := []uint32{0x41414141, 0x00000000, 0xffffffff, 0x0d0a0908}

	for _, target := range targets {
		result := searcher.Compute(target)

		if result.Divisor < 0 {
			require.Less(t, -result.Divisor, int32(result.BoundsLimit))
		} else {
			require.Less(t, result.Divisor, int32(result.BoundsLimit))
		}

		require.Zero(t, result.Divisor%4)
	}
}

func TestComputeDivisorIsMultipleOfFour(t *testing.T) {
	searcher := OffsetSearcher{Filter: DefaultUARTFilter()}

	for _, target := range []uint32{0x41414141, 0x00201000, 0x0a0a0a0a, 0x11223344} {
		result := searcher.Compute(target)

		require.Zero(t, result.Divisor%4, "target 0x%x", target)
	}
}
