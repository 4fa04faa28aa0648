package propagation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/transform"
)

// Physical bounds on an SGP4 position, in km from the Earth's center.
const (
	minRadiusKm = 6200.0
	maxRadiusKm = 50000.0
	tleLineLen  = 69
)

// SGP4Propagator wraps a go-satellite model for one element set.
//
// go-satellite hides SGP4 error codes from Propagate, so failures are detected
// from the output: non-finite components or a radius outside
// [minRadiusKm, maxRadiusKm].
type SGP4Propagator struct {
	sat     satellite.Satellite
	noradID int
}

// NewSGP4Propagator initialises SGP4 from TLE lines. The lines are checked
// first because go-satellite calls log.Fatal on any field it cannot parse,
// which no recover can intercept.
func NewSGP4Propagator(line1, line2 string, noradID int) (*SGP4Propagator, error) {
	line1, line2 = strings.TrimSpace(line1), strings.TrimSpace(line2)
	if err := validateTLELines(line1, line2); err != nil {
		return nil, fmt.Errorf("%w: NORAD %d: %v", ErrPropagation, noradID, err)
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("%w: NORAD %d: sgp4 init code %d %s", ErrPropagation, noradID, sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat, noradID: noradID}, nil
}

func validateTLELines(line1, line2 string) error {
	var errs []error
	for i, l := range []string{line1, line2} {
		n := i + 1
		switch {
		case len(l) != tleLineLen:
			errs = append(errs, fmt.Errorf("line%d has %d characters, want %d", n, len(l), tleLineLen))
		case l[0] != byte('0'+n) || l[1] != ' ':
			errs = append(errs, fmt.Errorf("line%d must start with %q", n, fmt.Sprintf("%d ", n)))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if line1[2:7] != line2[2:7] {
		return fmt.Errorf("catalog numbers differ: %q vs %q", line1[2:7], line2[2:7])
	}
	for _, f := range numericFields {
		line := line1
		if f.line == 2 {
			line = line2
		}
		text := f.text(line)
		if f.integer {
			if _, err := strconv.ParseInt(text, 10, 0); err != nil {
				errs = append(errs, fmt.Errorf("line%d %s %q is not an integer", f.line, f.name, text))
			}
			continue
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("line%d %s %q is not a finite number", f.line, f.name, text))
		}
	}
	return errors.Join(errs...)
}

// numericFields mirrors the column slices go-satellite parses, including its
// space stripping and implied-decimal expansion.
var numericFields = []struct {
	name    string
	line    int
	integer bool
	text    func(string) string
}{
	{"catalog number", 1, true, func(l string) string { return strings.TrimSpace(l[2:7]) }},
	{"epoch year", 1, true, func(l string) string { return l[18:20] }},
	{"epoch day", 1, false, func(l string) string { return l[20:32] }},
	{"mean motion derivative", 1, false, func(l string) string { return squeeze(l[33:43]) }},
	{"mean motion second derivative", 1, false, func(l string) string { return impliedDecimal(l[44:52]) }},
	{"bstar", 1, false, func(l string) string { return impliedDecimal(l[53:61]) }},
	{"inclination", 2, false, func(l string) string { return squeeze(l[8:16]) }},
	{"right ascension", 2, false, func(l string) string { return squeeze(l[17:25]) }},
	{"eccentricity", 2, false, func(l string) string { return "." + l[26:33] }},
	{"argument of perigee", 2, false, func(l string) string { return squeeze(l[34:42]) }},
	{"mean anomaly", 2, false, func(l string) string { return squeeze(l[43:51]) }},
	{"mean motion", 2, false, func(l string) string { return squeeze(l[52:63]) }},
}

func squeeze(s string) string { return strings.Replace(s, " ", "", 2) }

// impliedDecimal expands " 12345-3" to ".12345e-3".
func impliedDecimal(s string) string {
	return squeeze(s[0:1] + "." + s[1:6] + "e" + s[6:8])
}

// PropagateAt returns the TEME state (km, km/s) at t, truncated to whole seconds.
func (p *SGP4Propagator) PropagateAt(t time.Time) (transform.PositionTEME, error) {
	t = t.UTC()
	pos, vel := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	out := transform.PositionTEME{X: pos.X, Y: pos.Y, Z: pos.Z, VX: vel.X, VY: vel.Y, VZ: vel.Z}
	r := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	switch {
	case math.IsNaN(r) || math.IsInf(r, 0):
		return transform.PositionTEME{}, fmt.Errorf("%w: NORAD %d: non-finite position at %s", ErrPropagation, p.noradID, t.Format(time.RFC3339))
	case r < minRadiusKm || r > maxRadiusKm:
		return transform.PositionTEME{}, fmt.Errorf("%w: NORAD %d: radius %.1f km at %s", ErrPropagation, p.noradID, r, t.Format(time.RFC3339))
	}
	return out, nil
}
