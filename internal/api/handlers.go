package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/clock"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/constellation"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/coverage"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/httputil"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/linkbudget"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/passes"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/propagation"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/tle"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/transform"
)

// Pass query bounds.
const (
	DefaultPassHours        = 24
	MaxPassesPerSat         = 10
	DefaultPassMinElevation = linkbudget.MinElevationDeg
)

// Coverer computes coverage reports. *coverage.Service implements it.
type Coverer interface {
	Coverage(ctx context.Context, req coverage.Request) (*coverage.Report, error)
}

// Catalog resolves and inspects cached catalogs. *tle.Manager implements it.
type Catalog interface {
	Resolve(ctx context.Context, group string) (tle.Resolution, error)
	Peek(ctx context.Context, group string) (tle.Snapshot, error)
	TTL() time.Duration
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, constellation.ErrUnknown):
		httputil.WriteError(w, http.StatusNotFound, httputil.CodeUnknownConstellation, err.Error())
	case errors.Is(err, coverage.ErrInvalidRequest):
		httputil.WriteError(w, http.StatusBadRequest, httputil.CodeInvalidParameter, err.Error())
	case errors.Is(err, tle.ErrNoCacheAvailable):
		httputil.WriteError(w, http.StatusServiceUnavailable, httputil.CodeNoCacheAvailable, "no catalog available, try again later")
	default:
		logger.ErrorContext(r.Context(), "request failed",
			"component", "api",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		httputil.WriteError(w, http.StatusInternalServerError, httputil.CodeInternal, "internal server error")
	}
}

// lookupConstellation writes a 404 and reports false for unknown ids.
func lookupConstellation(w http.ResponseWriter, r *http.Request) (constellation.Constellation, bool) {
	c, err := constellation.Lookup(r.PathValue("constellation"))
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, httputil.CodeUnknownConstellation, err.Error())
		return constellation.Constellation{}, false
	}
	return c, true
}

// coverageHandler serves GET /api/{constellation}/coverage?lat=&lng=&alt=&maxSats=
func coverageHandler(logger *slog.Logger, cov Coverer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := lookupConstellation(w, r)
		if !ok {
			return
		}
		req, err := coverage.ParseQuery(c.ID, r.URL.Query())
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}

		report, err := cov.Coverage(r.Context(), req)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, report)
	}
}

type passesResponse struct {
	Constellation string                   `json:"constellation"`
	Observer      coverage.Observer        `json:"observer"`
	Start         time.Time                `json:"start"`
	Hours         int                      `json:"hours"`
	MinElevation  float64                  `json:"minElevation"`
	TLEFetchedAt  time.Time                `json:"tleFetchedAt"`
	Degraded      bool                     `json:"degraded"`
	Satellites    []passes.SatellitePasses `json:"satellites"`
}

// passesHandler serves GET /api/{constellation}/passes?lat=&lng=&alt=&maxSats=&hours=&minElevation=
func passesHandler(logger *slog.Logger, catalog Catalog, prop propagation.Propagator, clk clock.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := lookupConstellation(w, r)
		if !ok {
			return
		}
		q := r.URL.Query()
		req, err := coverage.ParseQuery(c.ID, q)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}

		hours := DefaultPassHours
		if v := q.Get("hours"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > int(passes.MaxHorizon/time.Hour) {
				httputil.WriteError(w, http.StatusBadRequest, httputil.CodeInvalidParameter,
					fmt.Sprintf("invalid hours parameter, must be 1-%d", int(passes.MaxHorizon/time.Hour)))
				return
			}
			hours = n
		}

		minElev := float64(DefaultPassMinElevation)
		if v := q.Get("minElevation"); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < 0 || f > 90 {
				httputil.WriteError(w, http.StatusBadRequest, httputil.CodeInvalidParameter,
					"invalid minElevation parameter, must be 0-90")
				return
			}
			minElev = f
		}

		res, err := catalog.Resolve(r.Context(), c.Group)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		sets := res.Sets
		limit := req.MaxSats
		if limit <= 0 {
			limit = coverage.DefaultMaxSats
		}
		if len(sets) > limit {
			sets = sets[:limit]
		}

		start := clk.Now()
		results := passes.Predict(r.Context(), passes.Request{
			Site:         transform.NewSite(req.Observer.Lat, req.Observer.Lng, req.Observer.Alt),
			Sets:         sets,
			Propagator:   prop,
			Start:        start,
			Horizon:      time.Duration(hours) * time.Hour,
			MinElevation: minElev,
			MaxPasses:    MaxPassesPerSat,
			FrequencyGHz: linkbudget.FrequencyGHz(c.ID),
		})

		httputil.WriteJSON(w, http.StatusOK, passesResponse{
			Constellation: c.ID,
			Observer:      req.Observer,
			Start:         start,
			Hours:         hours,
			MinElevation:  minElev,
			TLEFetchedAt:  res.FetchedAt,
			Degraded:      res.Degraded(),
			Satellites:    results,
		})
	}
}

type tleMetadataResponse struct {
	Constellation string     `json:"constellation"`
	Group         string     `json:"group"`
	Cached        bool       `json:"cached"`
	FetchedAt     *time.Time `json:"fetchedAt"`
	AgeSeconds    *int64     `json:"ageSeconds"`
	Stale         bool       `json:"stale"`
	TTLSeconds    int64      `json:"ttlSeconds"`
	ElementSets   int        `json:"elementSets"`
	EpochMin      *time.Time `json:"epochMin"`
	EpochMax      *time.Time `json:"epochMax"`
}

// tleMetadataHandler serves GET /api/{constellation}/tle/metadata without
// triggering a fetch.
func tleMetadataHandler(logger *slog.Logger, catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := lookupConstellation(w, r)
		if !ok {
			return
		}
		resp := tleMetadataResponse{
			Constellation: c.ID,
			Group:         c.Group,
			TTLSeconds:    int64(catalog.TTL().Seconds()),
		}

		snap, err := catalog.Peek(r.Context(), c.Group)
		switch {
		case errors.Is(err, tle.ErrNotFound):
			resp.Stale = true
		case err != nil:
			writeServiceError(w, r, logger, err)
			return
		default:
			ageSec := int64(snap.Age.Seconds())
			resp.Cached = true
			resp.FetchedAt = &snap.FetchedAt
			resp.AgeSeconds = &ageSec
			resp.Stale = snap.Age >= catalog.TTL()
			resp.ElementSets = snap.Sets
			if !snap.Epochs.Min.IsZero() {
				resp.EpochMin, resp.EpochMax = &snap.Epochs.Min, &snap.Epochs.Max
			}
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

type constellationInfo struct {
	constellation.Constellation
	FrequencyGHz float64 `json:"frequencyGHz"`
}

// constellationsHandler serves GET /api/constellations.
func constellationsHandler(w http.ResponseWriter, r *http.Request) {
	all := constellation.All()
	out := make([]constellationInfo, len(all))
	for i, c := range all {
		out[i] = constellationInfo{Constellation: c, FrequencyGHz: linkbudget.FrequencyGHz(c.ID)}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"constellations": out})
}
