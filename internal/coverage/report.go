package coverage

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/tle"
)

// DefaultMaxSats is the number of satellites evaluated when a request sets no limit.
const DefaultMaxSats = tle.MaxElementSets

// Observer altitude bounds in meters.
const (
	MinAltitudeM = -500.0
	MaxAltitudeM = 100000.0
)

// ErrInvalidRequest marks an observer or limit outside the accepted ranges.
var ErrInvalidRequest = errors.New("invalid coverage request")

// Observer is the ground location a report is computed for.
type Observer struct {
	Lat float64 `json:"lat"` // degrees
	Lng float64 `json:"lng"` // degrees
	Alt float64 `json:"alt"` // meters
}

// Validate checks the observer is a finite point on or near the Earth's surface.
func (o Observer) Validate() error {
	switch {
	case math.IsNaN(o.Lat) || o.Lat < -90 || o.Lat > 90:
		return fmt.Errorf("%w: lat must be within [-90, 90]", ErrInvalidRequest)
	case math.IsNaN(o.Lng) || o.Lng < -180 || o.Lng > 180:
		return fmt.Errorf("%w: lng must be within [-180, 180]", ErrInvalidRequest)
	case math.IsNaN(o.Alt) || o.Alt < MinAltitudeM || o.Alt > MaxAltitudeM:
		return fmt.Errorf("%w: alt must be within [%g, %g] meters", ErrInvalidRequest, MinAltitudeM, MaxAltitudeM)
	}
	return nil
}

// Request asks for the coverage of one constellation at one observer.
type Request struct {
	Constellation string
	Observer      Observer
	MaxSats       int // 0 means DefaultMaxSats; otherwise 1..DefaultMaxSats
}

// Validate checks the observer and satellite limit.
func (r Request) Validate() error {
	if err := r.Observer.Validate(); err != nil {
		return err
	}
	if r.MaxSats < 0 || r.MaxSats > DefaultMaxSats {
		return fmt.Errorf("%w: maxSats must be within [1, %d]", ErrInvalidRequest, DefaultMaxSats)
	}
	return nil
}

func (r Request) limit() int {
	if r.MaxSats <= 0 {
		return DefaultMaxSats
	}
	return r.MaxSats
}

// Satellite is one entry of a Report. RangeKm and PathLossDB are null when the
// geometry is degenerate; Elevation and Azimuth are then reported as 0.
type Satellite struct {
	NORADID          int      `json:"noradId"`
	Name             string   `json:"name"`
	Lat              float64  `json:"lat"`
	Lng              float64  `json:"lng"`
	AltitudeKm       float64  `json:"altitudeKm"`
	Elevation        float64  `json:"elevation"`
	Azimuth          float64  `json:"azimuth"`
	RangeKm          *float64 `json:"rangeKm"`
	PathLossDB       *float64 `json:"pathLossDb"`
	CoverageRadiusKm float64  `json:"coverageRadiusKm"`
	Available        bool     `json:"available"`
}

// Report is the coverage of a constellation for one observer at one instant.
// Satellites keep catalog order and are never nil.
type Report struct {
	Observer      Observer    `json:"observer"`
	Constellation string      `json:"constellation"`
	GeneratedAt   time.Time   `json:"generatedAt"`
	TLEFetchedAt  time.Time   `json:"tleFetchedAt"`
	TLEAgeSeconds int64       `json:"tleAgeSeconds"`
	Degraded      bool        `json:"degraded"`
	Satellites    []Satellite `json:"satellites"`
}

// AvailableCount returns the number of satellites with a usable link.
func (r *Report) AvailableCount() int {
	n := 0
	for _, s := range r.Satellites {
		if s.Available {
			n++
		}
	}
	return n
}
