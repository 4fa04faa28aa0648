package propagation

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/metrics"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/tle"
)

// WorkerPool runs propagation over a fixed number of goroutines.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
// A non-positive count uses runtime.NumCPU().
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	metrics.SetPropagationWorkers(workers)
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int { return wp.workers }

// PropagateBatch propagates every set to at and returns one Result per input,
// in input order. Each worker writes only the slots of the indices it takes,
// so no lock guards the output. A failing or panicking propagation fills its
// own slot with an error; the rest of the batch is unaffected. Sets not reached
// before ctx is done carry ctx.Err().
func (wp *WorkerPool) PropagateBatch(ctx context.Context, sets []tle.ElementSet, at time.Time, prop Propagator) []Result {
	results := make([]Result, len(sets))
	if len(sets) == 0 {
		return results
	}

	start := time.Now()
	jobs := make(chan int)

	workers := min(wp.workers, len(sets))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = propagateSingle(prop, sets[idx], at)
			}
		}()
	}

	next := 0
feed:
	for ; next < len(sets); next++ {
		select {
		case jobs <- next:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	for i := next; i < len(sets); i++ {
		results[i] = Result{NORADID: sets[i].NORADID, Err: ctx.Err()}
	}

	var successCount, errorCount int
	for _, r := range results {
		if r.Err != nil {
			errorCount++
			continue
		}
		successCount++
	}
	duration := time.Since(start)
	metrics.RecordPropagation(duration, successCount, errorCount)

	wp.logger.Debug("propagation complete",
		"success", successCount,
		"errors", errorCount,
		"workers", workers,
		"duration_ms", duration.Milliseconds(),
	)

	return results
}

// propagateSingle runs one propagation, converting a panic into an error.
func propagateSingle(prop Propagator, set tle.ElementSet, at time.Time) (res Result) {
	res.NORADID = set.NORADID
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%w: NORAD %d panicked: %v", ErrPropagation, set.NORADID, r)
		}
	}()

	pos, err := prop.Propagate(set, at)
	if err != nil {
		res.Err = err
		return res
	}
	res.Position = pos
	return res
}
