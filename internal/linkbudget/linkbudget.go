// Package linkbudget scores a single downlink by free-space path loss.
package linkbudget

import "math"

const (
	// MinElevationDeg is the elevation a satellite must exceed to be usable.
	MinElevationDeg = 10.0

	// MaxPathLossDB is the path loss a usable link must stay below.
	MaxPathLossDB = 160.0

	// DefaultFrequencyGHz applies to constellations without a table entry.
	DefaultFrequencyGHz = 1.6
)

// downlinkGHz maps constellation ids to their user downlink frequency.
var downlinkGHz = map[string]float64{
	"iridium":  1.6,  // L-band
	"starlink": 12.0, // Ku-band
	"kuiper":   12.0, // Ku-band
}

// FrequencyGHz returns the downlink frequency for a constellation id.
func FrequencyGHz(constellation string) float64 {
	if f, ok := downlinkGHz[constellation]; ok {
		return f
	}
	return DefaultFrequencyGHz
}

// Result is the link verdict for one satellite. RangeKm and PathLossDB are
// nil when the geometry is degenerate.
type Result struct {
	RangeKm    *float64
	PathLossDB *float64
	Available  bool
}

// PathLossDB returns free-space path loss in dB for a slant range in km and a
// frequency in GHz: 32.44 + 20·log10(d) + 20·log10(f).
func PathLossDB(rangeKm, freqGHz float64) float64 {
	return 32.44 + 20*math.Log10(rangeKm) + 20*math.Log10(freqGHz)
}

// Evaluate scores a link. A range that is non-finite or not positive yields
// nil range and loss and an unavailable link. Otherwise the link is available
// when elevation exceeds MinElevationDeg and loss is below MaxPathLossDB.
func Evaluate(rangeKm, elevationDeg, freqGHz float64) Result {
	if math.IsNaN(rangeKm) || math.IsInf(rangeKm, 0) || rangeKm <= 0 {
		return Result{}
	}

	r := rangeKm
	loss := PathLossDB(rangeKm, freqGHz)
	return Result{
		RangeKm:    &r,
		PathLossDB: &loss,
		Available:  elevationDeg > MinElevationDeg && loss < MaxPathLossDB,
	}
}
