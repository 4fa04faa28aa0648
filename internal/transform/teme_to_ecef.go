// Package transform converts SGP4 output into Earth-fixed and observer-relative
// coordinates: TEME → ECEF via GMST, ECEF → WGS-84 geodetic, and SEZ look angles.
//
// Method: Vallado-style rotation using GMST only (TEME → PEF ≈ ECEF). Polar motion
// and the equation of the equinoxes are ignored; the resulting error of tens of
// meters is far below what elevation or path loss can resolve.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"math"
	"time"
)

// PositionTEME represents a satellite position and velocity in the TEME frame.
type PositionTEME struct {
	X, Y, Z    float64 // km
	VX, VY, VZ float64 // km/s
}

// PositionECEF represents a satellite position and velocity in the ECEF frame.
type PositionECEF struct {
	X, Y, Z    float64 // meters
	VX, VY, VZ float64 // m/s
}

// Finite reports whether every position component is a finite number.
func (p PositionECEF) Finite() bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Z)
}

// RadiusM returns the distance from Earth's center in meters.
func (p PositionECEF) RadiusM() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// TEMEToECEF transforms a TEME position/velocity to ECEF at the given UTC time.
// Input: TEME in km and km/s. Output: ECEF in meters and m/s.
func TEMEToECEF(teme PositionTEME, t time.Time) PositionECEF {
	return TEMEToECEFWithGMST(teme, GMST(t))
}

// TEMEToECEFWithGMST transforms TEME to ECEF using a precomputed GMST angle (radians).
// A coverage request evaluates every satellite at one instant, so GMST is computed once.
//
// Position transform: r_ECEF = R3(θ) * r_TEME
// Velocity transform: v_ECEF = R3(θ) * v_TEME - ω × r_ECEF
func TEMEToECEFWithGMST(teme PositionTEME, gmst float64) PositionECEF {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	xECEF := teme.X*cosG + teme.Y*sinG
	yECEF := -teme.X*sinG + teme.Y*cosG
	zECEF := teme.Z

	// ω × r_ECEF = [-ω*y_ECEF, ω*x_ECEF, 0]
	vxRot := teme.VX*cosG + teme.VY*sinG
	vyRot := -teme.VX*sinG + teme.VY*cosG

	return PositionECEF{
		X:  xECEF * 1000.0,
		Y:  yECEF * 1000.0,
		Z:  zECEF * 1000.0,
		VX: (vxRot + OmegaEarth*yECEF) * 1000.0,
		VY: (vyRot - OmegaEarth*xECEF) * 1000.0,
		VZ: teme.VZ * 1000.0,
	}
}

// ECEFToTEMEWithGMST is the inverse of TEMEToECEFWithGMST for position only:
// ECEF meters in, TEME km out. Velocity is left zero.
func ECEFToTEMEWithGMST(ecef PositionECEF, gmst float64) PositionTEME {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)
	return PositionTEME{
		X: (ecef.X*cosG - ecef.Y*sinG) / 1000.0,
		Y: (ecef.X*sinG + ecef.Y*cosG) / 1000.0,
		Z: ecef.Z / 1000.0,
	}
}

// ValidateECEF checks that an ECEF position is physically reasonable for an
// Earth-orbiting satellite: finite, and between 6200 km and 50000 km from the center.
func ValidateECEF(pos PositionECEF) bool {
	if !pos.Finite() {
		return false
	}

	const minRadius = 6200.0 * 1000.0
	const maxRadius = 50000.0 * 1000.0

	mag := pos.RadiusM()
	return mag >= minRadius && mag <= maxRadius
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
