package grid

import "math"

// Half-precision layout: 1 sign bit, 5 exponent bits (bias 15), 10 fraction bits.
const (
	halfSignMask = 0x8000
	halfExpMask  = 0x7c00
	halfFracMask = 0x03ff
	halfExpBias  = 15
)

// DecodeHalf returns the IEEE 754 binary16 value encoded by h.
//
// An all-zero exponent yields signed zero or a subnormal (fraction scaled by
// 2^-14); an all-ones exponent yields signed infinity or NaN.
func DecodeHalf(h uint16) float64 {
	neg := h&halfSignMask != 0
	exp := int(h&halfExpMask) >> 10
	frac := float64(h & halfFracMask)

	var v float64
	switch exp {
	case 0:
		v = frac / 1024 * math.Ldexp(1, 1-halfExpBias)
	case 0x1f:
		if frac != 0 {
			return math.NaN()
		}
		v = math.Inf(1)
	default:
		v = math.Ldexp(1+frac/1024, exp-halfExpBias)
	}
	if neg {
		return math.Copysign(v, -1)
	}
	return v
}

// EncodeHalf converts f to binary16 with round-to-nearest-even, rounding
// once from the full float64 significand. Values beyond the half range become
// infinities and NaN stays NaN.
func EncodeHalf(f float64) uint16 {
	bits := math.Float64bits(f)
	sign := uint16(bits>>48) & halfSignMask
	exp := int(bits>>52) & 0x7ff
	mant := bits & (1<<52 - 1)

	if exp == 0x7ff {
		if mant != 0 {
			return sign | 0x7e00
		}
		return sign | halfExpMask
	}

	e := exp - 1023 + halfExpBias
	switch {
	case e >= 0x1f:
		return sign | halfExpMask
	case e <= 0:
		if e < -10 {
			return sign
		}
		// Subnormal: shift the full significand into the 10-bit fraction.
		full := mant | 1<<52
		shift := uint(43 - e)
		h := full >> shift
		rem := full & (1<<shift - 1)
		mid := uint64(1) << (shift - 1)
		if rem > mid || (rem == mid && h&1 == 1) {
			h++
		}
		return sign | uint16(h)
	}

	h := uint64(e)<<10 | mant>>42
	rem := mant & (1<<42 - 1)
	const mid = 1 << 41
	if rem > mid || (rem == mid && h&1 == 1) {
		// A carry out of the fraction bumps the exponent, possibly to Inf.
		h++
	}
	return sign | uint16(h)
}
