package grid

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filled(v float64) Grid {
	g := New()
	for i := range g {
		g[i] = v
	}
	return g
}

func TestSample_OutOfRangeRowsReturnZero(t *testing.T) {
	g := filled(1013)
	for _, row := range []int{-100, -1, Height, Height + 1, 1 << 20} {
		for _, col := range []int{-5, 0, 90, Width - 1, Width + 7} {
			assert.Zero(t, Sample(g, col, row), "col=%d row=%d", col, row)
		}
	}
}

func TestSample_ClampsColumns(t *testing.T) {
	g := New()
	for row := 0; row < Height; row++ {
		for col := 0; col < Width; col++ {
			g[row*Width+col] = float64(row*1000 + col)
		}
	}
	assert.Equal(t, 10000.0, Sample(g, -1, 10))
	assert.Equal(t, 10000.0, Sample(g, -50, 10))
	assert.Equal(t, 10180.0, Sample(g, Width, 10))
	assert.Equal(t, 10180.0, Sample(g, Width+30, 10))
	assert.Equal(t, 10042.0, Sample(g, 42, 10))
}

func TestSample_ShortGridIsSafe(t *testing.T) {
	assert.Zero(t, Sample(Grid{1, 2, 3}, 50, 50))
}

func TestInterpolate_EndpointsAreIdentity(t *testing.T) {
	g := Synthetic(DefaultSystems, 0.3)

	at0, err := Interpolate(g, g, 0)
	require.NoError(t, err)
	assert.Equal(t, g, at0)

	at1, err := Interpolate(g, g, 1)
	require.NoError(t, err)
	assert.Equal(t, g, at1)
}

func TestInterpolate_Blends(t *testing.T) {
	out, err := Interpolate(filled(1000), filled(1020), 0.25)
	require.NoError(t, err)
	for _, v := range out {
		assert.InDelta(t, 1005.0, v, 1e-9)
	}
}

func TestInterpolate_MissingSamplesStayZero(t *testing.T) {
	a, b := filled(1000), filled(1010)
	a[7] = math.NaN()
	b[9] = math.NaN()

	out, err := Interpolate(a, b, 0.5)
	require.NoError(t, err)
	assert.Zero(t, out[7])
	assert.Zero(t, out[9])
	assert.InDelta(t, 1005.0, out[8], 1e-9)
}

func TestInterpolate_ShapeMismatch(t *testing.T) {
	_, err := Interpolate(New(), Grid{1, 2}, 0.5)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestDecode_RejectsWrongSize(t *testing.T) {
	for _, n := range []int{0, 100, PayloadBytes - 1, PayloadBytes + 1} {
		_, err := Decode(make([]byte, n))
		require.ErrorIs(t, err, ErrPayloadSize, "len=%d", n)
	}
}

func TestDecode_LittleEndianRowMajor(t *testing.T) {
	payload := make([]byte, PayloadBytes)
	binary.LittleEndian.PutUint16(payload[0:], 0x3c00)              // row 0, col 0 = 1
	binary.LittleEndian.PutUint16(payload[2*(Width+3):], 0x4000)    // row 1, col 3 = 2
	binary.LittleEndian.PutUint16(payload[PayloadBytes-2:], 0xfc00) // last sample = -Inf
	binary.LittleEndian.PutUint16(payload[2*(5*Width+5):], EncodeHalf(1013.5))

	g, err := Decode(payload)
	require.NoError(t, err)
	require.Len(t, g, Size)
	assert.Equal(t, 1.0, Sample(g, 0, 0))
	assert.Equal(t, 2.0, Sample(g, 3, 1))
	assert.Equal(t, 1013.5, Sample(g, 5, 5))
	assert.True(t, math.IsInf(g[Size-1], -1))
}

func TestEncodeDecode_SyntheticField(t *testing.T) {
	g := Synthetic(DefaultSystems, 1)
	payload, err := Encode(g)
	require.NoError(t, err)
	assert.Len(t, payload, PayloadBytes)

	back, err := Decode(payload)
	require.NoError(t, err)
	for i := range g {
		// Half precision spacing is 1.0 between 1024 and 2048.
		assert.InDelta(t, g[i], back[i], 0.51)
	}
}

func TestSynthetic_Layout(t *testing.T) {
	g := Synthetic(DefaultSystems, 0)
	for row := 0; row < Height; row++ {
		assert.Equal(t, Sample(g, 0, row), Sample(g, Width-1, row), "wrap column row %d", row)
	}
	for col := 1; col < Width; col++ {
		assert.Equal(t, Sample(g, 0, 0), Sample(g, col, 0))
		assert.Equal(t, Sample(g, 0, Height-1), Sample(g, col, Height-1))
	}
	lo, hi, ok := Range(g)
	require.True(t, ok)
	assert.Less(t, lo, StandardPressure)
	assert.Greater(t, hi, StandardPressure)
}

func TestRange_AllMissing(t *testing.T) {
	_, _, ok := Range(filled(math.NaN()))
	assert.False(t, ok)
}
