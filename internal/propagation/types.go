package propagation

import (
	"errors"
	"time"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/tle"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/transform"
)

// ErrPropagation marks a per-satellite failure: unusable element set,
// SGP4 init error, or non-physical output.
var ErrPropagation = errors.New("propagation failed")

// Propagator computes a satellite's TEME position (km, km/s) at an instant.
type Propagator interface {
	Propagate(set tle.ElementSet, at time.Time) (transform.PositionTEME, error)
}

// Result is the outcome of propagating one element set in a batch.
type Result struct {
	NORADID  int
	Position transform.PositionTEME
	Err      error
}

// PropConfig holds propagation configuration.
type PropConfig struct {
	Workers int // Worker pool size (default: runtime.NumCPU())
}
