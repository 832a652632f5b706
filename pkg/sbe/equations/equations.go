// Package equations implements the calibration equations that turn
// engineering values into science units. Every function validates its
// required coefficient keys, NaNs out physically impossible inputs and
// reports how many it replaced, and rounds to a fixed precision
// appropriate to the quantity.
package equations

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/oceanodyne/sonde/pkg/seawater"
)

// psiToDbar converts pounds-per-square-inch to decibar.
const psiToDbar = 0.6894759

// atmospherePSI is subtracted to report gauge rather than absolute
// pressure.
const atmospherePSI = 14.7

// Rounding precision per quantity.
const (
	tempDecimals = 4
	presDecimals = 4
	condDecimals = 4
	salDecimals  = 4
	oxyDecimals  = 4
	altDecimals  = 3
	voltDecimals = 4
)

// MissingCoefsError names the calibration coefficients a sensor entry
// failed to supply.
type MissingCoefsError struct {
	Keys []string
}

func (e *MissingCoefsError) Error() string {
	return fmt.Sprintf("coefficient set missing keys: %v", e.Keys)
}

// parseCoefs validates that every required key is present and parses
// the values as floats. Missing keys are reported together, sorted.
func parseCoefs(coefs map[string]string, required ...string) (map[string]float64, error) {
	var missing []string
	out := make(map[string]float64, len(required))

	for _, key := range required {
		raw, ok := coefs[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("coefficient %s=%q is not a number", key, raw)
		}
		out[key] = v
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingCoefsError{Keys: missing}
	}
	return out, nil
}

// sanitizeFreq copies the series with zero readings replaced by NaN,
// returning the replacement count.
func sanitizeFreq(freq []float64) ([]float64, int) {
	out := make([]float64, len(freq))
	replaced := 0
	for i, f := range freq {
		if f == 0 {
			out[i] = math.NaN()
			replaced++
			continue
		}
		out[i] = f
	}
	return out, replaced
}

// sanitizeVolts copies the series with readings outside 0-5 V replaced
// by NaN, returning the replacement count.
func sanitizeVolts(volts []float64) ([]float64, int) {
	out := make([]float64, len(volts))
	replaced := 0
	for i, v := range volts {
		if v < 0 || v > 5 {
			out[i] = math.NaN()
			replaced++
			continue
		}
		out[i] = v
	}
	return out, replaced
}

// roundTo rounds to the given number of decimals, passing NaN through.
func roundTo(x float64, decimals int) float64 {
	if math.IsNaN(x) {
		return x
	}
	pow := math.Pow(10, float64(decimals))
	return math.Round(x*pow) / pow
}

func roundSeries(xs []float64, decimals int) []float64 {
	for i := range xs {
		xs[i] = roundTo(xs[i], decimals)
	}
	return xs
}

// Temperature converts frequency (Hz) to ITS-90 °C using the inverse
// polynomial-of-log form with coefficients G, H, I, J, F0.
func Temperature(freq []float64, coefs map[string]string) ([]float64, int, error) {
	c, err := parseCoefs(coefs, "G", "H", "I", "J", "F0")
	if err != nil {
		return nil, 0, err
	}
	freq, replaced := sanitizeFreq(freq)

	out := make([]float64, len(freq))
	for i, f := range freq {
		lf := math.Log(c["F0"] / f)
		out[i] = 1/(c["G"]+lf*(c["H"]+lf*(c["I"]+lf*c["J"]))) - 273.15
	}
	return roundSeries(out, tempDecimals), replaced, nil
}

// Pressure converts frequency (Hz) and the raw probe-temperature code
// to dbar. The probe code first maps linearly through AD590M/AD590B,
// feeds the T0 compensation polynomial, and combines with frequency
// through the weighted-quadratic correction, finished with the
// slope/offset calibration.
func Pressure(freq, probeCode []float64, coefs map[string]string) ([]float64, int, error) {
	c, err := parseCoefs(coefs,
		"T1", "T2", "T3", "T4", "T5",
		"C1", "C2", "C3",
		"D1", "D2",
		"AD590M", "AD590B",
		"Slope", "Offset")
	if err != nil {
		return nil, 0, err
	}
	freq, replaced := sanitizeFreq(freq)

	out := make([]float64, len(freq))
	for i, f := range freq {
		fMHz := f * 1e-6
		tp := c["AD590M"]*probeCode[i] + c["AD590B"]

		t0 := c["T1"] + tp*(c["T2"]+tp*(c["T3"]+tp*c["T4"]))
		w := 1 - t0*t0*fMHz*fMHz
		psia := (c["C1"]+tp*(c["C2"]+tp*c["C3"]))*w*(1-(c["D1"]+c["D2"]*tp)*w) - atmospherePSI

		out[i] = psiToDbar*psia*c["Slope"] + c["Offset"]
	}
	return roundSeries(out, presDecimals), replaced, nil
}

// Conductivity converts frequency (Hz) to mS/cm given already-converted
// temperature and pressure, using the quartic-in-kHz polynomial over a
// temperature/pressure compensation denominator.
func Conductivity(freq, t, p []float64, coefs map[string]string) ([]float64, int, error) {
	c, err := parseCoefs(coefs, "G", "H", "I", "J", "CPcor", "CTcor")
	if err != nil {
		return nil, 0, err
	}
	freq, replaced := sanitizeFreq(freq)

	out := make([]float64, len(freq))
	for i, f := range freq {
		fk := f * 1e-3
		cSm := (c["G"] + fk*fk*(c["H"]+fk*(c["I"]+fk*c["J"]))) /
			(10 * (1 + c["CTcor"]*t[i] + c["CPcor"]*p[i]))
		out[i] = cSm * 10 // S/m to mS/cm
	}
	return roundSeries(out, condDecimals), replaced, nil
}

// Salinity derives practical salinity from converted conductivity,
// temperature and pressure. It has no physical channel and no
// coefficients of its own.
func Salinity(c, t, p []float64) []float64 {
	out := make([]float64, len(c))
	for i := range c {
		out[i] = seawater.SPFromC(c[i], t[i], p[i])
	}
	return roundSeries(out, salDecimals)
}

// Oxygen converts sensor voltage to µmol/kg given converted pressure,
// temperature and conductivity. When the coefficient set carries the
// H1/H2/H3 hysteresis constants, the voltage series is
// hysteresis-corrected first. Sanitization happens before the
// correction, and the recurrence carries each scan's value forward, so
// a NaN scan poisons every later scan of a hysteresis-corrected
// column; the replacement count still reports only the scans replaced
// directly. Tau20 is validated for completeness of the calibration
// record but not consumed by the steady-state model.
func Oxygen(volts, p, t, cond []float64, coefs map[string]string, sampleInterval float64) ([]float64, int, error) {
	c, err := parseCoefs(coefs, "Soc", "offset", "Tau20", "A", "B", "C", "E")
	if err != nil {
		return nil, 0, err
	}
	volts, replaced := sanitizeVolts(volts)

	if hasHysteresisCoefs(coefs) {
		h, err := parseCoefs(coefs, "H1", "H2", "H3")
		if err != nil {
			return nil, 0, err
		}
		volts = HysteresisCorrect(volts, p, h["H1"], h["H2"], h["H3"], c["offset"], sampleInterval)
	}

	out := make([]float64, len(volts))
	for i, v := range volts {
		ti := t[i]
		tK := ti + 273.15

		sp := seawater.SPFromC(cond[i], ti, p[i])
		theta := seawater.Theta(sp, ti, p[i], 0)
		sigma := seawater.Sigma0(sp, ti, p[i])
		solMl := seawater.UmolPerKgToMlPerL(seawater.O2Sol(sp, theta), sigma)

		ml := c["Soc"] * (v + c["offset"]) *
			(1 + ti*(c["A"]+ti*(c["B"]+ti*c["C"]))) *
			solMl * math.Exp(c["E"]*p[i]/tK)
		out[i] = seawater.MlPerLToUmolPerKg(ml, sigma)
	}
	return roundSeries(out, oxyDecimals), replaced, nil
}

func hasHysteresisCoefs(coefs map[string]string) bool {
	for _, key := range []string{"H1", "H2", "H3"} {
		if _, ok := coefs[key]; !ok {
			return false
		}
	}
	return true
}

// Altimeter converts voltage to meters above bottom with the linear
// 300·V/ScaleFactor + Offset map.
func Altimeter(volts []float64, coefs map[string]string) ([]float64, int, error) {
	c, err := parseCoefs(coefs, "ScaleFactor", "Offset")
	if err != nil {
		return nil, 0, err
	}
	volts, replaced := sanitizeVolts(volts)

	out := make([]float64, len(volts))
	for i, v := range volts {
		out[i] = 300*v/c["ScaleFactor"] + c["Offset"]
	}
	return roundSeries(out, altDecimals), replaced, nil
}

// Voltage is the pass-through for fluorometers, transmissometers and
// any channel without a known equation: sanitized, rounded, otherwise
// untouched. Coefficients, when present, ride along for provenance
// only.
func Voltage(volts []float64) ([]float64, int) {
	volts, replaced := sanitizeVolts(volts)
	return roundSeries(volts, voltDecimals), replaced
}
