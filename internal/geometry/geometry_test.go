package geometry

import (
	"math"
	"testing"
	"time"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/transform"
)

var instant = time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)

// temeAbove returns the TEME position of a point at altM above (lat, lng) at t.
func temeAbove(lat, lng, altM float64, t time.Time) transform.PositionTEME {
	return transform.ECEFToTEMEWithGMST(transform.NewSite(lat, lng, altM).ECEF, transform.GMST(t))
}

func TestEvaluateOverhead(t *testing.T) {
	site := transform.NewSite(45.42, -75.70, 100)
	teme := temeAbove(45.42, -75.70, 100+550000, instant)

	s := Evaluate(teme, instant, site)
	if s.Degenerate {
		t.Fatal("overhead satellite reported as degenerate")
	}
	if math.Abs(s.ElevationDeg-90) > 0.01 {
		t.Errorf("elevation = %.4f, want ~90", s.ElevationDeg)
	}
	if math.Abs(s.RangeKm-550) > 0.01 {
		t.Errorf("range = %.4f, want ~550", s.RangeKm)
	}
	if math.Abs(s.LatDeg-45.42) > 1e-6 || math.Abs(s.LngDeg+75.70) > 1e-6 {
		t.Errorf("ground position = (%.6f, %.6f)", s.LatDeg, s.LngDeg)
	}
	if math.Abs(s.AltitudeKm-550.1) > 1e-3 {
		t.Errorf("altitude = %.4f km, want 550.1", s.AltitudeKm)
	}
	if want := CoverageRadiusKm(s.AltitudeKm, MinElevationDeg); s.CoverageRadiusKm != want {
		t.Errorf("coverage radius = %v, want %v", s.CoverageRadiusKm, want)
	}
}

func TestEvaluateWithGMSTMatchesEvaluate(t *testing.T) {
	site := transform.NewSite(-33.9, 151.2, 20)
	teme := temeAbove(-30, 140, 780000, instant)

	a := Evaluate(teme, instant, site)
	b := EvaluateWithGMST(teme, transform.GMST(instant), site)
	if a != b {
		t.Errorf("Evaluate = %+v, EvaluateWithGMST = %+v", a, b)
	}
}

func TestEvaluateDegenerate(t *testing.T) {
	site := transform.NewSite(45.42, -75.70, 100)
	// A "satellite" at the observer's own position.
	teme := transform.ECEFToTEMEWithGMST(site.ECEF, transform.GMST(instant))

	s := Evaluate(teme, instant, site)
	if !s.Degenerate {
		t.Fatalf("coincident position not degenerate: %+v", s)
	}
	if math.IsNaN(s.LatDeg) || math.IsNaN(s.LngDeg) {
		t.Errorf("ground position should still be reported: %+v", s)
	}
}

func TestCoverageRadiusKm(t *testing.T) {
	tests := []struct {
		name  string
		altKm float64
		want  float64
		tol   float64
	}{
		// acos(6371·cos10°/6921) − 10° = 0.26123 rad
		{"starlink shell 550 km", 550, 1664.32, 0.01},
		// acos(6371·cos10°/7151) − 10° = 0.32587 rad
		{"iridium 780 km", 780, 2076.12, 0.01},
		{"surface", 0, 0, 0},
		{"underground", -100, 0, 0},
		{"below center", -7000, 0, 0},
		{"NaN", math.NaN(), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoverageRadiusKm(tt.altKm, MinElevationDeg)
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("CoverageRadiusKm(%v) = %.2f, want %.2f", tt.altKm, got, tt.want)
			}
		})
	}
}

func TestCoverageRadiusGrowsWithAltitude(t *testing.T) {
	prev := 0.0
	for alt := 100.0; alt <= 36000; alt += 100 {
		r := CoverageRadiusKm(alt, MinElevationDeg)
		if r <= prev {
			t.Fatalf("radius not increasing at %v km: %v <= %v", alt, r, prev)
		}
		prev = r
	}
}
