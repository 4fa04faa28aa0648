// Package geometry turns a propagated TEME position into what a ground observer
// sees: the satellite's ground position, its look angles, and the radius of
// its coverage footprint.
package geometry

import (
	"math"
	"time"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/transform"
)

const (
	// EarthRadiusKm is the mean Earth radius used for the footprint model.
	EarthRadiusKm = 6371.0

	// MinElevationDeg is the elevation mask the footprint radius is computed at.
	MinElevationDeg = 10.0
)

// State is a satellite's geometry relative to one observer at one instant.
type State struct {
	LatDeg           float64
	LngDeg           float64
	AltitudeKm       float64
	ElevationDeg     float64 // NaN when Degenerate
	AzimuthDeg       float64 // NaN when Degenerate
	RangeKm          float64
	CoverageRadiusKm float64
	Degenerate       bool // look angles could not be resolved
}

// Evaluate computes the State for a TEME position at t.
func Evaluate(teme transform.PositionTEME, t time.Time, site transform.Site) State {
	return EvaluateWithGMST(teme, transform.GMST(t), site)
}

// EvaluateWithGMST is Evaluate with a precomputed GMST angle (radians), for
// evaluating many satellites at the same instant.
func EvaluateWithGMST(teme transform.PositionTEME, gmst float64, site transform.Site) State {
	ecef := transform.TEMEToECEFWithGMST(teme, gmst)
	geo := transform.ECEFToGeodetic(ecef)
	la := transform.ECEFToLookAngles(site, ecef)

	return State{
		LatDeg:           geo.LatDeg,
		LngDeg:           geo.LngDeg,
		AltitudeKm:       geo.AltKm,
		ElevationDeg:     la.ElevationDeg,
		AzimuthDeg:       la.AzimuthDeg,
		RangeKm:          la.RangeKm,
		CoverageRadiusKm: CoverageRadiusKm(geo.AltKm, MinElevationDeg),
		Degenerate:       la.Degenerate(),
	}
}

// CoverageRadiusKm returns the ground radius of the circle from which a
// satellite at altitudeKm is seen above minElevDeg, on a sphere of radius
// EarthRadiusKm:
//
//	central = acos(R·cos(e) / (R+h)) − e
//	radius  = R · central
//
// It is a property of altitude only, not of the satellite's current elevation.
// Altitudes too low for the geometry to close yield 0.
func CoverageRadiusKm(altitudeKm, minElevDeg float64) float64 {
	if math.IsNaN(altitudeKm) || math.IsNaN(minElevDeg) {
		return 0
	}
	e := minElevDeg * math.Pi / 180.0
	r := EarthRadiusKm

	ratio := r * math.Cos(e) / (r + altitudeKm)
	if r+altitudeKm <= 0 || ratio > 1 || ratio < -1 {
		return 0
	}

	central := math.Acos(ratio) - e
	if central <= 0 {
		return 0
	}
	return r * central
}
