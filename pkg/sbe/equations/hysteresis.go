package equations

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// HysteresisCorrect removes membrane-lag artifacts from an oxygen
// sensor voltage series with a first-order recursive filter across the
// scan sequence. Scan 0 is seeded directly from its own offset-shifted
// input because no prior scan exists; every later scan depends on the
// one before it, so the loop is a strict sequential fold and must stay
// one: floating-point rounding makes the recurrence order-sensitive.
//
// For scan i with pressure p[i] and offset-shifted voltage v[i]:
//
//	D[i] = 1 + H1·(exp(p[i]/H2) − 1)
//	C    = exp(−Δt/H3)
//	out[i] = ((v[i] + out[i−1]·C·D[i]) − v[i−1]·C) / D[i]
//
// where Δt is the sample interval in seconds.
func HysteresisCorrect(volts, p []float64, h1, h2, h3, offset, sampleInterval float64) []float64 {
	if len(volts) == 0 {
		return nil
	}

	shifted := make([]float64, len(volts))
	copy(shifted, volts)
	floats.AddConst(offset, shifted)

	cc := math.Exp(-sampleInterval / h3)

	out := make([]float64, len(shifted))
	out[0] = shifted[0]
	for i := 1; i < len(shifted); i++ {
		d := 1 + h1*(math.Exp(p[i]/h2)-1)
		out[i] = ((shifted[i] + out[i-1]*cc*d) - shifted[i-1]*cc) / d
	}

	floats.AddConst(-offset, out)
	return out
}

// HysteresisInvert runs the documented inverse recurrence, recovering
// the raw voltage series from a corrected one. Useful for validating a
// correction and for regenerating instrument-original data.
func HysteresisInvert(corrected, p []float64, h1, h2, h3, offset, sampleInterval float64) []float64 {
	if len(corrected) == 0 {
		return nil
	}

	oc := make([]float64, len(corrected))
	copy(oc, corrected)
	floats.AddConst(offset, oc)

	cc := math.Exp(-sampleInterval / h3)

	raw := make([]float64, len(oc))
	raw[0] = oc[0]
	for i := 1; i < len(oc); i++ {
		d := 1 + h1*(math.Exp(p[i]/h2)-1)
		raw[i] = oc[i]*d - oc[i-1]*cc*d + raw[i-1]*cc
	}

	floats.AddConst(-offset, raw)
	return raw
}
