// Package passes predicts upcoming passes of a constellation's satellites over
// an observer: rise, culmination and set, with a sampled ground track.
package passes

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/geometry"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/linkbudget"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/propagation"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/tle"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/transform"
)

// GroundTrackPoint is a sub-satellite position at a specific time during a pass.
type GroundTrackPoint struct {
	Time       time.Time `json:"time"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	AltitudeKm float64   `json:"altitudeKm"`
	Elevation  float64   `json:"elevation"`
}

// PassEvent describes a single satellite pass over an observer location.
type PassEvent struct {
	StartTime        time.Time          `json:"startTime"`
	MaxElevationTime time.Time          `json:"maxElevationTime"`
	EndTime          time.Time          `json:"endTime"`
	DurationSeconds  float64            `json:"durationSeconds"`
	MaxElevation     float64            `json:"maxElevation"`
	AzimuthAtMax     float64            `json:"azimuthAtMax"`
	StartAzimuth     float64            `json:"startAzimuth"`
	EndAzimuth       float64            `json:"endAzimuth"`
	MinPathLossDB    *float64           `json:"minPathLossDb"` // at culmination; null without a frequency
	GroundTrack      []GroundTrackPoint `json:"groundTrack"`
}

// SatellitePasses holds the predicted passes for one satellite.
type SatellitePasses struct {
	NORADID int         `json:"noradId"`
	Name    string      `json:"name"`
	Passes  []PassEvent `json:"passes"`
	Error   string      `json:"error,omitempty"`
}

// Request holds the parameters for a pass prediction request.
type Request struct {
	Site         transform.Site
	Sets         []tle.ElementSet
	Propagator   propagation.Propagator
	Start        time.Time
	Horizon      time.Duration
	MinElevation float64 // degrees above the horizon
	MaxPasses    int     // per satellite
	FrequencyGHz float64 // optional, for MinPathLossDB
}

const (
	// MaxHorizon bounds how far ahead a request may look.
	MaxHorizon = 24 * time.Hour

	coarseStep      = 30 * time.Second
	fineStep        = time.Second
	groundTrackStep = 10 * time.Second
	minPassDur      = 10 * time.Second
)

// Predict computes satellite passes for the given request, one result per
// set in input order. Each satellite is processed in its own goroutine,
// bounded by a semaphore; a satellite that cannot be propagated reports its
// error inline without affecting the others.
func Predict(ctx context.Context, req Request) []SatellitePasses {
	if req.Horizon <= 0 || req.Horizon > MaxHorizon {
		req.Horizon = MaxHorizon
	}
	if req.MaxPasses <= 0 {
		req.MaxPasses = 10
	}

	results := make([]SatellitePasses, len(req.Sets))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, set := range req.Sets {
		wg.Add(1)
		go func(idx int, s tle.ElementSet) {
			defer wg.Done()
			results[idx] = SatellitePasses{NORADID: s.NORADID, Name: s.Name}

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx].Error = "cancelled"
				return
			}

			passes, err := predictSatellite(ctx, req, s)
			if err != nil {
				results[idx].Error = err.Error()
				return
			}
			results[idx].Passes = passes
		}(i, set)
	}

	wg.Wait()
	return results
}

// predictSatellite finds all passes for a single satellite.
func predictSatellite(ctx context.Context, req Request, set tle.ElementSet) (passes []PassEvent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: NORAD %d panicked: %v", propagation.ErrPropagation, set.NORADID, r)
		}
	}()

	// One probe up front so an unusable element set reports an error instead
	// of an empty pass list.
	if _, err := stateAt(req, set, req.Start); err != nil {
		return nil, err
	}

	end := req.Start.Add(req.Horizon)
	passes = []PassEvent{}

	// Coarse scan: step through the time range looking for elevation > 0.
	t := req.Start
	for t.Before(end) && len(passes) < req.MaxPasses {
		if ctx.Err() != nil {
			return passes, nil
		}

		st, err := stateAt(req, set, t)
		if err != nil || st.ElevationDeg <= 0 {
			t = t.Add(coarseStep)
			continue
		}

		pass, windowEnd := refinePass(ctx, req, set, t, end)
		if pass != nil && pass.EndTime.Sub(pass.StartTime) >= minPassDur {
			passes = append(passes, *pass)
		}
		t = windowEnd.Add(coarseStep)
	}

	return passes, nil
}

// refinePass does a fine-grained scan around a coarse-detected above-horizon region.
// It backs up to find the actual rise, then scans forward to find set.
// Returns the pass event and the time the window ends.
func refinePass(ctx context.Context, req Request, set tle.ElementSet, coarseHit, windowEnd time.Time) (*PassEvent, time.Time) {
	searchStart := coarseHit.Add(-coarseStep)
	if searchStart.Before(req.Start) {
		searchStart = req.Start
	}

	var (
		pass        PassEvent
		peakRangeKm float64
		wasAbove    bool
		foundRise   bool
	)

	t := searchStart
	for t.Before(windowEnd) {
		if ctx.Err() != nil {
			break
		}

		st, err := stateAt(req, set, t)
		if err != nil {
			t = t.Add(fineStep)
			continue
		}

		above := !st.Degenerate && st.ElevationDeg >= req.MinElevation

		if above && !wasAbove {
			foundRise = true
			pass.StartTime = t
			pass.StartAzimuth = st.AzimuthDeg
			pass.MaxElevation = st.ElevationDeg
			pass.MaxElevationTime = t
			pass.AzimuthAtMax = st.AzimuthDeg
			peakRangeKm = st.RangeKm
		}

		if above && foundRise {
			if st.ElevationDeg > pass.MaxElevation {
				pass.MaxElevation = st.ElevationDeg
				pass.MaxElevationTime = t
				pass.AzimuthAtMax = st.AzimuthDeg
				peakRangeKm = st.RangeKm
			}
			if t.Sub(pass.StartTime)%groundTrackStep == 0 {
				pass.GroundTrack = append(pass.GroundTrack, GroundTrackPoint{
					Time:       t,
					Lat:        st.LatDeg,
					Lng:        st.LngDeg,
					AltitudeKm: st.AltitudeKm,
					Elevation:  st.ElevationDeg,
				})
			}
		}

		if !above && wasAbove && foundRise {
			pass.EndTime = t
			pass.EndAzimuth = st.AzimuthDeg
			break
		}

		wasAbove = above
		t = t.Add(fineStep)
	}

	// Still above at windowEnd: close the pass there.
	if foundRise && pass.EndTime.IsZero() && wasAbove {
		pass.EndTime = t
		if st, err := stateAt(req, set, t); err == nil {
			pass.EndAzimuth = st.AzimuthDeg
		}
	}

	if !foundRise || pass.EndTime.IsZero() {
		return nil, t
	}

	pass.DurationSeconds = pass.EndTime.Sub(pass.StartTime).Seconds()
	if req.FrequencyGHz > 0 {
		lb := linkbudget.Evaluate(peakRangeKm, pass.MaxElevation, req.FrequencyGHz)
		pass.MinPathLossDB = lb.PathLossDB
	}
	return &pass, pass.EndTime
}

// stateAt propagates set to t and evaluates it from the request's site.
func stateAt(req Request, set tle.ElementSet, t time.Time) (geometry.State, error) {
	teme, err := req.Propagator.Propagate(set, t)
	if err != nil {
		return geometry.State{}, err
	}
	return geometry.Evaluate(teme, t, req.Site), nil
}
