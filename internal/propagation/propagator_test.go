package propagation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/tle"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/transform"
)

// ISS TLE (epoch 2024, will still propagate reasonably for near-future times).
const (
	issLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005"
	issLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"
)

// Starlink TLE (typical LEO constellation satellite).
const (
	starlinkLine1 = "1 44713U 19074A   24100.50000000  .00001000  00000-0  10000-4 0  9995"
	starlinkLine2 = "2 44713  53.0000 200.0000 0001500  90.0000 270.0000 15.06000000    05"
)

var target = time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestPropagateSingle verifies that a single satellite can be propagated
// and that the ECEF output is reasonable.
func TestPropagateSingle(t *testing.T) {
	prop, err := NewSGP4Propagator(issLine1, issLine2, 25544)
	if err != nil {
		t.Fatalf("NewSGP4Propagator failed: %v", err)
	}

	teme, err := prop.PropagateAt(target)
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}

	// Expected: ~6371 + 420 ≈ 6791 km.
	mag := math.Sqrt(teme.X*teme.X + teme.Y*teme.Y + teme.Z*teme.Z)
	if mag < 6500 || mag > 7000 {
		t.Errorf("TEME position magnitude = %.1f km, expected ~6791 km (ISS orbit)", mag)
	}

	ecef := transform.TEMEToECEF(teme, target)
	if !transform.ValidateECEF(ecef) {
		t.Errorf("ECEF position failed validation: [%.1f, %.1f, %.1f] m", ecef.X, ecef.Y, ecef.Z)
	}

	// ECEF magnitude should match TEME magnitude (just rotated + unit converted).
	ecefMag := math.Sqrt(ecef.X*ecef.X+ecef.Y*ecef.Y+ecef.Z*ecef.Z) / 1000.0
	if math.Abs(ecefMag-mag) > 0.01 {
		t.Errorf("ECEF magnitude = %.3f km, TEME magnitude = %.3f km (should match)", ecefMag, mag)
	}
}

func TestPropagateInvalidTLE(t *testing.T) {
	tests := []struct {
		name         string
		line1, line2 string
	}{
		{"garbage", "invalid line 1", "invalid line 2"},
		{"short line1", issLine1[:60], issLine2},
		{"swapped", issLine2, issLine1},
		{"mismatched catalog numbers", issLine1, "2 25545" + issLine2[7:]},
		{"missing separator", "1" + issLine1[2:] + "0", issLine2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSGP4Propagator(tt.line1, tt.line2, 99999)
			if !errors.Is(err, ErrPropagation) {
				t.Fatalf("want ErrPropagation, got %v", err)
			}
		})
	}
}

// setAt overwrites line at column i with s.
func setAt(line string, i int, s string) string {
	return line[:i] + s + line[i+len(s):]
}

// TestPropagateCorruptNumericField covers every field go-satellite parses;
// each row must come back as an error instead of terminating the process.
func TestPropagateCorruptNumericField(t *testing.T) {
	tests := []struct {
		field        string
		line1, line2 string
	}{
		{"catalog number", setAt(issLine1, 2, "A5544"), setAt(issLine2, 2, "A5544")},
		{"epoch year", setAt(issLine1, 18, "X4"), issLine2},
		{"epoch day", setAt(issLine1, 20, "241X0"), issLine2},
		{"mean motion derivative", setAt(issLine1, 35, "X"), issLine2},
		{"mean motion second derivative", setAt(issLine1, 46, "X"), issLine2},
		{"bstar", setAt(issLine1, 55, "X"), issLine2},
		{"inclination", issLine1, setAt(issLine2, 9, "X")},
		{"right ascension", issLine1, setAt(issLine2, 17, "1XX")},
		{"eccentricity", issLine1, setAt(issLine2, 27, "X")},
		{"argument of perigee", issLine1, setAt(issLine2, 36, "X")},
		{"mean anomaly", issLine1, setAt(issLine2, 45, "X")},
		{"mean motion", issLine1, setAt(issLine2, 54, "X")},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			_, err := NewSGP4Propagator(tt.line1, tt.line2, 25544)
			if !errors.Is(err, ErrPropagation) {
				t.Fatalf("want ErrPropagation, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name field %q", err, tt.field)
			}
		})
	}
}

// TestWorkerPoolSkipsCorruptSet checks a corrupt set in a real SGP4 batch only
// fails its own slot.
func TestWorkerPoolSkipsCorruptSet(t *testing.T) {
	pool := NewWorkerPool(2, testLogger())
	sets := []tle.ElementSet{
		{NORADID: 25544, Line1: issLine1, Line2: setAt(issLine2, 17, "1XX")},
		{NORADID: 44713, Line1: starlinkLine1, Line2: starlinkLine2},
	}

	results := pool.PropagateBatch(context.Background(), sets, target, NewSGP4(testLogger()))
	if !errors.Is(results[0].Err, ErrPropagation) {
		t.Errorf("corrupt set: want ErrPropagation, got %v", results[0].Err)
	}
	if results[1].Err != nil {
		t.Errorf("valid set: %v", results[1].Err)
	}
}

func TestSGP4Memoises(t *testing.T) {
	s := NewSGP4(testLogger())
	iss := tle.ElementSet{NORADID: 25544, Line1: issLine1, Line2: issLine2}

	a, err := s.Propagate(iss, target)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Propagate(iss, target)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("repeated propagation differs: %+v vs %+v", a, b)
	}
	if s.Cached() != 1 {
		t.Errorf("cached = %d, want 1", s.Cached())
	}

	if _, err := s.Propagate(tle.ElementSet{NORADID: 1, Line1: "1 bad", Line2: "2 bad"}, target); err == nil {
		t.Error("expected error for malformed set")
	}
	if s.Cached() != 1 {
		t.Errorf("failed init should not be cached, cached = %d", s.Cached())
	}
}

type stubPropagator struct {
	fail  map[int]error
	panic map[int]bool
}

func (s stubPropagator) Propagate(set tle.ElementSet, at time.Time) (transform.PositionTEME, error) {
	if s.panic[set.NORADID] {
		panic("boom")
	}
	if err := s.fail[set.NORADID]; err != nil {
		return transform.PositionTEME{}, err
	}
	return transform.PositionTEME{X: float64(set.NORADID)}, nil
}

// TestWorkerPoolOrderAndIsolation checks that results keep input order and that
// one satellite's error or panic does not affect the others.
func TestWorkerPoolOrderAndIsolation(t *testing.T) {
	pool := NewWorkerPool(4, testLogger())

	sets := make([]tle.ElementSet, 50)
	for i := range sets {
		sets[i] = tle.ElementSet{NORADID: 1000 + i}
	}
	prop := stubPropagator{
		fail:  map[int]error{1003: ErrPropagation},
		panic: map[int]bool{1007: true},
	}

	results := pool.PropagateBatch(context.Background(), sets, target, prop)
	if len(results) != len(sets) {
		t.Fatalf("got %d results, want %d", len(results), len(sets))
	}
	for i, r := range results {
		if r.NORADID != sets[i].NORADID {
			t.Errorf("slot %d holds NORAD %d, want %d", i, r.NORADID, sets[i].NORADID)
		}
		switch r.NORADID {
		case 1003, 1007:
			if !errors.Is(r.Err, ErrPropagation) {
				t.Errorf("NORAD %d: want ErrPropagation, got %v", r.NORADID, r.Err)
			}
		default:
			if r.Err != nil || r.Position.X != float64(r.NORADID) {
				t.Errorf("NORAD %d: result %+v", r.NORADID, r)
			}
		}
	}
}

func TestWorkerPoolBatchSGP4(t *testing.T) {
	pool := NewWorkerPool(2, testLogger())
	sets := []tle.ElementSet{
		{NORADID: 25544, Name: "ISS", Line1: issLine1, Line2: issLine2},
		{NORADID: 44713, Name: "STARLINK-1007", Line1: starlinkLine1, Line2: starlinkLine2},
	}

	results := pool.PropagateBatch(context.Background(), sets, target, NewSGP4(testLogger()))
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("NORAD %d: %v", r.NORADID, r.Err)
		}
		if ecef := transform.TEMEToECEF(r.Position, target); !transform.ValidateECEF(ecef) {
			t.Errorf("NORAD %d: ECEF position failed validation", r.NORADID)
		}
	}
}

func TestWorkerPoolCancellation(t *testing.T) {
	pool := NewWorkerPool(2, testLogger())
	sets := make([]tle.ElementSet, 100)
	for i := range sets {
		sets[i] = tle.ElementSet{NORADID: 25544 + i, Line1: issLine1, Line2: issLine2}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := pool.PropagateBatch(ctx, sets, target, stubPropagator{})
	if len(results) != len(sets) {
		t.Fatalf("got %d results, want one per input", len(results))
	}
	var canceled int
	for _, r := range results {
		if errors.Is(r.Err, context.Canceled) {
			canceled++
		}
	}
	if canceled == 0 {
		t.Error("expected some slots to carry context.Canceled")
	}
}

func TestWorkerPoolEmpty(t *testing.T) {
	pool := NewWorkerPool(0, testLogger())
	if pool.Workers() < 1 {
		t.Errorf("default workers = %d", pool.Workers())
	}
	if got := pool.PropagateBatch(context.Background(), nil, target, stubPropagator{}); len(got) != 0 {
		t.Errorf("got %d results for empty input", len(got))
	}
}

// BenchmarkPropagate1000 benchmarks propagating 1000 satellites.
func BenchmarkPropagate1000(b *testing.B) {
	sets := make([]tle.ElementSet, 1000)
	for i := range sets {
		sets[i] = tle.ElementSet{NORADID: 25544 + i, Line1: issLine1, Line2: issLine2}
	}

	pool := NewWorkerPool(4, testLogger())
	prop := NewSGP4(testLogger())
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pool.PropagateBatch(ctx, sets, target, prop)
	}
}
