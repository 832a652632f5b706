// Package seawater implements the standard derived seawater quantities
// the conversion equations depend on: practical salinity (PSS-78),
// potential temperature (UNESCO 1983), potential density anomaly
// (EOS-80 at surface pressure) and oxygen solubility (García & Gordon
// 1992, Benson-Krause fit). Inputs and outputs use ITS-90 temperatures;
// the IPTS-68 conversion happens internally where the published fits
// require it.
package seawater

import "math"

// t68Scale converts ITS-90 temperatures to IPTS-68.
const t68Scale = 1.00024

// cStandard is the conductivity of standard seawater (SP 35) at
// 15 °C (IPTS-68) and 0 dbar, in mS/cm.
const cStandard = 42.9140

// mlPerLPerUmol converts dissolved oxygen between mL/L and µmol/L.
const mlPerLPerUmol = 44660.0

// SPFromC computes practical salinity from conductivity (mS/cm),
// in-situ temperature (ITS-90 °C) and pressure (dbar) per PSS-78.
func SPFromC(c, t, p float64) float64 {
	t68 := t * t68Scale
	r := c / cStandard

	rt35 := 0.6766097 + t68*(2.00564e-2+t68*(1.104259e-4+t68*(-6.9698e-7+t68*1.0031e-9)))
	rp := 1 + p*(2.070e-5+p*(-6.370e-10+p*3.989e-15))/
		(1+3.426e-2*t68+4.464e-4*t68*t68+(4.215e-1-3.107e-3*t68)*r)

	rt := r / (rp * rt35)
	if rt < 0 {
		return math.NaN()
	}
	rtx := math.Sqrt(rt)
	ft68 := (t68 - 15) / (1 + 0.0162*(t68-15))

	sp := 0.0080 + rtx*(-0.1692+rtx*(25.3851+rtx*(14.0941+rtx*(-7.0261+rtx*2.7081)))) +
		ft68*(0.0005+rtx*(-0.0056+rtx*(-0.0066+rtx*(-0.0375+rtx*(0.0636+rtx*-0.0144)))))
	return sp
}

// adiabaticLapseRate is the UNESCO 1983 lapse rate in °C/dbar, with
// IPTS-68 temperature.
func adiabaticLapseRate(s, t68, p float64) float64 {
	ds := s - 35
	return 3.5803e-5 + t68*(8.5258e-6+t68*(-6.836e-8+t68*6.6228e-10)) +
		ds*(1.8932e-6-4.2393e-8*t68) +
		p*(1.8741e-8+t68*(-6.7795e-10+t68*(8.733e-12-t68*5.4481e-14))) +
		ds*p*(-1.1351e-10+2.7759e-12*t68) +
		p*p*(-4.6206e-13+t68*(1.8676e-14-t68*2.1687e-16))
}

// Theta computes potential temperature (ITS-90 °C) of a water parcel
// moved adiabatically from pressure p to pRef, using the UNESCO 1983
// fourth-order Runge-Kutta integration of the adiabatic lapse rate.
func Theta(sp, t, p, pRef float64) float64 {
	t68 := t * t68Scale

	h := pRef - p
	xk := h * adiabaticLapseRate(sp, t68, p)
	t68 += 0.5 * xk
	q := xk
	pr := p + 0.5*h

	xk = h * adiabaticLapseRate(sp, t68, pr)
	t68 += 0.29289322 * (xk - q)
	q = 0.58578644*xk + 0.121320344*q

	xk = h * adiabaticLapseRate(sp, t68, pr)
	t68 += 1.70710678 * (xk - q)
	q = 3.414213562*xk - 4.121320344*q

	xk = h * adiabaticLapseRate(sp, t68, pRef)
	t68 += (xk - 2*q) / 6

	return t68 / t68Scale
}

// densityAtSurface is the EOS-80 (Millero & Poisson 1981) density of
// seawater at 0 dbar, in kg/m³, with IPTS-68 temperature.
func densityAtSurface(s, t68 float64) float64 {
	rhoW := 999.842594 + t68*(6.793952e-2+t68*(-9.095290e-3+
		t68*(1.001685e-4+t68*(-1.120083e-6+t68*6.536332e-9))))

	a := 8.24493e-1 + t68*(-4.0899e-3+t68*(7.6438e-5+t68*(-8.2467e-7+t68*5.3875e-9)))
	b := -5.72466e-3 + t68*(1.0227e-4-t68*1.6546e-6)
	const c = 4.8314e-4

	return rhoW + s*(a+b*math.Sqrt(s)+c*s)
}

// Sigma0 computes the potential density anomaly (kg/m³, minus
// 1000 kg/m³) referenced to 0 dbar from practical salinity, in-situ
// temperature (ITS-90 °C) and pressure (dbar).
func Sigma0(sp, t, p float64) float64 {
	theta := Theta(sp, t, p, 0)
	return densityAtSurface(sp, theta*t68Scale) - 1000
}

// O2Sol computes oxygen solubility at equilibrium with the atmosphere,
// in µmol/kg, from practical salinity and potential temperature
// (ITS-90 °C), per García & Gordon (1992) with the Benson & Krause
// coefficient fit.
func O2Sol(sp, pt float64) float64 {
	ts := math.Log((298.15 - pt) / (273.15 + pt))

	lnC := 5.80871 + ts*(3.20291+ts*(4.17887+ts*(5.10006+ts*(-9.86643e-2+ts*3.80369)))) +
		sp*(-7.01577e-3+ts*(-7.70028e-3+ts*(-1.13864e-2-ts*9.51519e-3))) -
		2.75915e-7*sp*sp
	return math.Exp(lnC)
}

// MlPerLToUmolPerKg converts dissolved oxygen from mL/L to µmol/kg
// using the potential density anomaly.
func MlPerLToUmolPerKg(o2MlPerL, sigma0 float64) float64 {
	return o2MlPerL * mlPerLPerUmol / (sigma0 + 1000)
}

// UmolPerKgToMlPerL is the inverse of MlPerLToUmolPerKg.
func UmolPerKgToMlPerL(o2UmolPerKg, sigma0 float64) float64 {
	return o2UmolPerKg / mlPerLPerUmol * (sigma0 + 1000)
}
