package transform

import (
	"math"
	"testing"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

func gsTime(t time.Time) float64 {
	return satellite.GSTimeFromDate(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
}

func TestJulianDate(t *testing.T) {
	tests := []struct {
		at   time.Time
		want float64
	}{
		{time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC), 2451545.0},
		{time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), 2440587.5},
		{time.Date(2004, 4, 6, 7, 51, 28, 386009000, time.UTC), 2453101.827411875},
		// Non-UTC input is normalised first.
		{time.Date(2000, 1, 1, 7, 0, 0, 0, time.FixedZone("EST", -5*3600)), 2451545.0},
	}
	for _, tt := range tests {
		if got := JulianDate(tt.at); math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("JulianDate(%v) = %.9f, want %.9f", tt.at, got, tt.want)
		}
	}
}

// GMST must agree with go-satellite's IAU-82 sidereal time, since SGP4 output
// is rotated with it.
func TestGMSTMatchesSGP4Library(t *testing.T) {
	for _, at := range []time.Time{
		time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC),
		time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC),
	} {
		got, ref := GMST(at), gsTime(at)
		if math.Abs(got-ref) > 1e-8 {
			t.Errorf("GMST(%v) = %.12f, go-satellite %.12f", at, got, ref)
		}
		if got < 0 || got >= 2*math.Pi {
			t.Errorf("GMST(%v) = %v outside [0, 2π)", at, got)
		}
	}
}

// A real SGP4 state rotated by our transform must land where go-satellite's
// own ECI→ECEF rotation puts it.
func TestTEMEToECEFMatchesSGP4Library(t *testing.T) {
	sat := satellite.TLEToSat(
		"1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9993",
		"2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495058",
		satellite.GravityWGS84,
	)

	for _, at := range []time.Time{
		time.Date(2025, 2, 14, 4, 20, 0, 0, time.UTC),
		time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 15, 3, 33, 7, 0, time.UTC),
	} {
		pos, vel := satellite.Propagate(sat, at.Year(), int(at.Month()), at.Day(), at.Hour(), at.Minute(), at.Second())
		teme := PositionTEME{X: pos.X, Y: pos.Y, Z: pos.Z, VX: vel.X, VY: vel.Y, VZ: vel.Z}
		gmst := gsTime(at)

		got := TEMEToECEFWithGMST(teme, gmst)
		ref := satellite.ECIToECEF(pos, gmst)

		d := math.Sqrt(sq(got.X-ref.X*1000) + sq(got.Y-ref.Y*1000) + sq(got.Z-ref.Z*1000))
		if d > 1 {
			t.Errorf("%v: ECEF differs from go-satellite by %.3f m", at, d)
		}
		if !ValidateECEF(got) {
			t.Errorf("%v: ECEF %+v failed validation", at, got)
		}
	}
}

func sq(v float64) float64 { return v * v }

// ECEF velocity is the rotated inertial velocity minus ω × r.
func TestTEMEToECEFVelocity(t *testing.T) {
	const r, v = 6778.0, 7.5
	ecef := TEMEToECEFWithGMST(PositionTEME{X: r, VY: v}, 0)

	if math.Abs(ecef.X-r*1000) > 1e-6 {
		t.Errorf("X = %.3f m, want %.3f", ecef.X, r*1000)
	}
	if want := (v - OmegaEarth*r) * 1000; math.Abs(ecef.VY-want) > 1e-6 {
		t.Errorf("VY = %.3f m/s, want %.3f", ecef.VY, want)
	}

	// A quarter turn of sidereal time moves the TEME x-axis onto ECEF -y.
	q := TEMEToECEFWithGMST(PositionTEME{X: r}, math.Pi/2)
	if math.Abs(q.X) > 1e-6 || math.Abs(q.Y+r*1000) > 1e-6 {
		t.Errorf("rotated = (%.3f, %.3f), want (0, %.3f)", q.X, q.Y, -r*1000)
	}
}

func TestValidateECEF(t *testing.T) {
	tests := []struct {
		name string
		pos  PositionECEF
		want bool
	}{
		{"LEO", PositionECEF{X: 6_928_000}, true},
		{"GEO", PositionECEF{Y: 42_164_000}, true},
		{"inside the Earth", PositionECEF{Z: 5_000_000}, false},
		{"beyond 50000 km", PositionECEF{X: 60_000_000}, false},
		{"NaN", PositionECEF{X: math.NaN()}, false},
		{"+Inf", PositionECEF{Y: math.Inf(1)}, false},
		{"origin", PositionECEF{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateECEF(tt.pos); got != tt.want {
				t.Errorf("ValidateECEF(%+v) = %v, want %v", tt.pos, got, tt.want)
			}
		})
	}
}

func TestECEFToTEMERoundTrip(t *testing.T) {
	teme := PositionTEME{X: 5094.18016, Y: 6127.64465, Z: 6380.34453}
	gmst := GMST(time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC))

	back := ECEFToTEMEWithGMST(TEMEToECEFWithGMST(teme, gmst), gmst)
	if math.Abs(back.X-teme.X) > 1e-9 || math.Abs(back.Y-teme.Y) > 1e-9 || math.Abs(back.Z-teme.Z) > 1e-9 {
		t.Errorf("round trip = %+v, want %+v", back, teme)
	}
}
