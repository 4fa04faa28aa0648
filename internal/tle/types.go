package tle

import (
	"errors"
	"time"
)

// MaxElementSets caps how many element sets a single coverage request evaluates.
// Catalogs such as starlink list thousands of objects; the first 30 in catalog
// order keep per-request propagation cost and latency bounded.
const MaxElementSets = 30

var (
	// ErrNotFound is returned by a Store that holds no entry for a group.
	ErrNotFound = errors.New("tle cache entry not found")

	// ErrUpstreamFetch marks any failure to obtain catalog text from upstream:
	// transport error, timeout, non-200 status, oversize or empty body.
	ErrUpstreamFetch = errors.New("upstream catalog fetch failed")

	// ErrNoCacheAvailable is returned when a fetch failed and no entry exists to fall back on.
	ErrNoCacheAvailable = errors.New("no cached catalog available")
)

// ElementSet is a single satellite's two-line element set.
type ElementSet struct {
	NORADID int
	Name    string
	Epoch   time.Time // zero when line1 carries an unreadable epoch
	Line1   string
	Line2   string
}

// Entry is the persisted raw catalog text for one group.
type Entry struct {
	Group     string
	Data      []byte
	FetchedAt time.Time
}

// Outcome describes how a Resolution was produced.
type Outcome string

const (
	OutcomeFresh         Outcome = "fresh"          // cached entry younger than the TTL
	OutcomeRefreshed     Outcome = "refreshed"      // fetched from upstream during this call
	OutcomeStaleFallback Outcome = "stale_fallback" // refresh failed, older entry served
)

// Resolution is the result of resolving a group's element sets.
type Resolution struct {
	Group     string
	Sets      []ElementSet
	FetchedAt time.Time
	Outcome   Outcome
}

// Degraded reports whether stale data was served because a refresh failed.
func (r Resolution) Degraded() bool {
	return r.Outcome == OutcomeStaleFallback
}

// Snapshot summarises a stored entry for inspection.
type Snapshot struct {
	FetchedAt time.Time
	Age       time.Duration
	Sets      int // element sets a request would be served
	Epochs    EpochRange
}

// EpochRange holds the minimum and maximum epoch times of a set of element sets.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Epochs returns the epoch range of sets, skipping entries without an epoch.
func Epochs(sets []ElementSet) EpochRange {
	var r EpochRange
	for _, s := range sets {
		if s.Epoch.IsZero() {
			continue
		}
		if r.Min.IsZero() || s.Epoch.Before(r.Min) {
			r.Min = s.Epoch
		}
		if r.Max.IsZero() || s.Epoch.After(r.Max) {
			r.Max = s.Epoch
		}
	}
	return r
}
