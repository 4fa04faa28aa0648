package propagation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/tle"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/transform"
)

// maxCachedSatellites bounds the init cache. Reaching it drops every entry;
// catalogs are refreshed every few hours so stale line pairs accumulate slowly.
const maxCachedSatellites = 4096

type cacheKey struct {
	line1, line2 string
}

// SGP4 implements Propagator with go-satellite. SGP4 initialisation is
// memoised per (line1, line2), so repeated requests against the same catalog
// skip it. Safe for concurrent use.
type SGP4 struct {
	mu     sync.RWMutex
	props  map[cacheKey]*SGP4Propagator
	logger *slog.Logger
}

// NewSGP4 creates an SGP4 propagator.
func NewSGP4(logger *slog.Logger) *SGP4 {
	return &SGP4{
		props:  make(map[cacheKey]*SGP4Propagator),
		logger: logger,
	}
}

// Propagate implements Propagator.
func (s *SGP4) Propagate(set tle.ElementSet, at time.Time) (transform.PositionTEME, error) {
	p, err := s.propagatorFor(set)
	if err != nil {
		return transform.PositionTEME{}, err
	}
	return p.PropagateAt(at)
}

// propagatorFor returns the initialised propagator for set (double-checked locking).
func (s *SGP4) propagatorFor(set tle.ElementSet) (*SGP4Propagator, error) {
	key := cacheKey{set.Line1, set.Line2}

	s.mu.RLock()
	p, ok := s.props[key]
	s.mu.RUnlock()
	if ok {
		return p, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.props[key]; ok {
		return p, nil
	}

	p, err := NewSGP4Propagator(set.Line1, set.Line2, set.NORADID)
	if err != nil {
		return nil, err
	}
	if len(s.props) >= maxCachedSatellites {
		s.logger.Info("sgp4 propagator cache reset", "cached", len(s.props))
		s.props = make(map[cacheKey]*SGP4Propagator)
	}
	s.props[key] = p
	return p, nil
}

// Cached returns the number of initialised propagators held.
func (s *SGP4) Cached() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.props)
}
