// Package coverage assembles coverage reports: for each element set of a
// constellation it propagates, evaluates geometry and scores the link.
package coverage

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/clock"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/constellation"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/geometry"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/linkbudget"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/metrics"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/propagation"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/tle"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/tracing"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/transform"
)

// Catalog resolves a catalog group to element sets. *tle.Manager implements it.
type Catalog interface {
	Resolve(ctx context.Context, group string) (tle.Resolution, error)
}

// Service computes coverage reports.
type Service struct {
	catalog Catalog
	pool    *propagation.WorkerPool
	prop    propagation.Propagator
	clock   clock.Clock
	logger  *slog.Logger
}

// NewService creates a Service.
func NewService(catalog Catalog, pool *propagation.WorkerPool, prop propagation.Propagator, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		catalog: catalog,
		pool:    pool,
		prop:    prop,
		clock:   clk,
		logger:  logger.With("component", "coverage"),
	}
}

// Coverage builds the report for req at the clock's current instant.
//
// An unknown constellation fails with constellation.ErrUnknown before the
// catalog is touched; a missing catalog fails with tle.ErrNoCacheAvailable.
// Any per-satellite failure only drops that satellite. Once started, the
// computation is not canceled by ctx.
func (s *Service) Coverage(ctx context.Context, req Request) (*Report, error) {
	c, err := constellation.Lookup(req.Constellation)
	if err != nil {
		metrics.IncCoverageErrors("unknown", "unknown_constellation")
		return nil, err
	}
	if err := req.Validate(); err != nil {
		metrics.IncCoverageErrors(c.ID, "invalid_request")
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	ctx, span := tracing.Start(ctx, "coverage.compute",
		attribute.String("constellation", c.ID),
		attribute.Int("max_sats", req.limit()),
	)
	defer span.End()

	res, err := s.catalog.Resolve(ctx, c.Group)
	if err != nil {
		metrics.IncCoverageErrors(c.ID, "no_cache")
		span.RecordError(err)
		return nil, fmt.Errorf("resolving %s catalog: %w", c.ID, err)
	}

	sets := res.Sets
	if n := req.limit(); len(sets) > n {
		sets = sets[:n]
	}

	at := s.clock.Now()
	start := time.Now()
	results := s.pool.PropagateBatch(ctx, sets, at, s.prop)

	gmst := transform.GMST(at)
	site := transform.NewSite(req.Observer.Lat, req.Observer.Lng, req.Observer.Alt)
	freq := linkbudget.FrequencyGHz(c.ID)

	report := &Report{
		Observer:      req.Observer,
		Constellation: c.ID,
		GeneratedAt:   at,
		TLEFetchedAt:  res.FetchedAt,
		TLEAgeSeconds: int64(at.Sub(res.FetchedAt).Seconds()),
		Degraded:      res.Degraded(),
		Satellites:    make([]Satellite, 0, len(results)),
	}

	var failed, degenerate int
	for i, r := range results {
		if r.Err != nil {
			failed++
			s.logger.Warn("satellite skipped", "norad_id", r.NORADID, "error", r.Err)
			continue
		}
		sat, ok := evaluate(sets[i], r.Position, gmst, site, freq)
		if !ok {
			failed++
			s.logger.Warn("satellite skipped", "norad_id", r.NORADID, "error", "non-finite ground position")
			continue
		}
		if sat.RangeKm == nil {
			degenerate++
		}
		report.Satellites = append(report.Satellites, sat)
	}

	available := report.AvailableCount()
	metrics.RecordCoverage(c.ID, len(report.Satellites), available, degenerate)
	span.SetAttributes(
		attribute.Int("satellites", len(report.Satellites)),
		attribute.Int("available", available),
		attribute.Int("failed", failed),
	)

	s.logger.Info("coverage computed",
		"constellation", c.ID,
		"satellites", len(report.Satellites),
		"available", available,
		"failed", failed,
		"degenerate", degenerate,
		"degraded", report.Degraded,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return report, nil
}

// evaluate runs geometry and link budget for one propagated satellite. It
// reports false when the ground position itself is not finite, which makes
// the satellite unusable rather than merely degenerate.
func evaluate(set tle.ElementSet, pos transform.PositionTEME, gmst float64, site transform.Site, freqGHz float64) (Satellite, bool) {
	st := geometry.EvaluateWithGMST(pos, gmst, site)
	if !finite(st.LatDeg, st.LngDeg, st.AltitudeKm, st.CoverageRadiusKm) {
		return Satellite{}, false
	}

	sat := Satellite{
		NORADID:          set.NORADID,
		Name:             set.Name,
		Lat:              st.LatDeg,
		Lng:              st.LngDeg,
		AltitudeKm:       st.AltitudeKm,
		CoverageRadiusKm: st.CoverageRadiusKm,
	}
	if st.Degenerate {
		return sat, true
	}

	lb := linkbudget.Evaluate(st.RangeKm, st.ElevationDeg, freqGHz)
	sat.Elevation = st.ElevationDeg
	sat.Azimuth = st.AzimuthDeg
	sat.RangeKm = lb.RangeKm
	sat.PathLossDB = lb.PathLossDB
	sat.Available = lb.Available
	return sat, true
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
