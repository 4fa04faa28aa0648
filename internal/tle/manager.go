package tle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/clock"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/metrics"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/tracing"
)

// DefaultTTL is how long a stored catalog is served without contacting upstream.
const DefaultTTL = 2 * time.Hour

// ManagerConfig holds cache policy settings.
type ManagerConfig struct {
	TTL     time.Duration // default: DefaultTTL
	MaxSets int           // default: MaxElementSets
}

// Manager resolves a group's element sets from the store, refreshing from
// upstream when the stored entry is missing or older than the TTL.
//
// State lives entirely in the store: an entry's age is the only thing
// retained. A failed refresh leaves the prior entry untouched and serves it.
type Manager struct {
	store   Store
	fetcher Fetcher
	clock   clock.Clock
	config  ManagerConfig
	logger  *slog.Logger

	// refreshes collapses concurrent upstream fetches for the same group.
	refreshes singleflight.Group
}

// NewManager creates a Manager.
func NewManager(store Store, fetcher Fetcher, clk clock.Clock, config ManagerConfig, logger *slog.Logger) *Manager {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.MaxSets <= 0 {
		config.MaxSets = MaxElementSets
	}
	return &Manager{
		store:   store,
		fetcher: fetcher,
		clock:   clk,
		config:  config,
		logger:  logger.With("component", "tle"),
	}
}

// ElementSets returns up to MaxSets element sets for group in catalog order,
// or an error wrapping ErrNoCacheAvailable.
func (m *Manager) ElementSets(ctx context.Context, group string) ([]ElementSet, error) {
	res, err := m.Resolve(ctx, group)
	if err != nil {
		return nil, err
	}
	return res.Sets, nil
}

// Resolve is ElementSets plus provenance: when the data was fetched and whether
// it came from a fresh entry, a refresh, or a stale fallback.
func (m *Manager) Resolve(ctx context.Context, group string) (Resolution, error) {
	ctx, span := tracing.Start(ctx, "tle.resolve", attribute.String("tle.group", group))
	defer span.End()

	now := m.clock.Now()

	prior, err := m.store.Get(ctx, group)
	hasPrior := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		// An unreadable store is treated like a missing entry; upstream may still succeed.
		m.logger.Warn("cache read failed", "group", group, "error", err)
	}

	if hasPrior && now.Sub(prior.FetchedAt) < m.config.TTL {
		span.SetAttributes(attribute.String("tle.outcome", string(OutcomeFresh)))
		return m.resolution(group, prior, OutcomeFresh)
	}

	entry, err := m.refresh(ctx, group)
	if err == nil {
		span.SetAttributes(attribute.String("tle.outcome", string(OutcomeRefreshed)))
		return m.resolution(group, entry, OutcomeRefreshed)
	}

	if hasPrior {
		m.logger.Warn("serving stale catalog after failed refresh",
			"group", group,
			"age_seconds", int(now.Sub(prior.FetchedAt).Seconds()),
			"error", err,
		)
		span.SetAttributes(attribute.String("tle.outcome", string(OutcomeStaleFallback)))
		return m.resolution(group, prior, OutcomeStaleFallback)
	}

	metrics.RecordTLEResolution(group, "unavailable")
	span.RecordError(err)
	m.logger.Error("no catalog available", "group", group, "error", err)
	return Resolution{}, fmt.Errorf("%w for group %q: %v", ErrNoCacheAvailable, group, err)
}

// Age reports how long ago group's stored entry was fetched. Only the
// store's timestamp is read; the catalog body is not loaded.
func (m *Manager) Age(ctx context.Context, group string) (time.Duration, error) {
	return m.store.AgeOf(ctx, group)
}

// Peek describes group's stored entry without fetching: when it was fetched
// and which element sets a request would currently be served.
func (m *Manager) Peek(ctx context.Context, group string) (Snapshot, error) {
	e, err := m.store.Get(ctx, group)
	if err != nil {
		return Snapshot{}, err
	}
	// Malformed triplets were already reported when the entry was resolved.
	sets, err := Parse(bytes.NewReader(e.Data), m.config.MaxSets, slog.New(slog.DiscardHandler))
	if err != nil {
		return Snapshot{}, fmt.Errorf("parsing catalog for %q: %w", group, err)
	}
	return Snapshot{
		FetchedAt: e.FetchedAt,
		Age:       m.clock.Now().Sub(e.FetchedAt),
		Sets:      len(sets),
		Epochs:    Epochs(sets),
	}, nil
}

// TTL returns the configured freshness window.
func (m *Manager) TTL() time.Duration { return m.config.TTL }

// refresh fetches group from upstream and persists it. Concurrent callers for
// the same group share one fetch, which runs detached from any single caller's
// cancellation and is bounded by the fetcher's own timeout.
func (m *Manager) refresh(ctx context.Context, group string) (Entry, error) {
	v, err, shared := m.refreshes.Do(group, func() (any, error) {
		return m.fetchAndStore(context.WithoutCancel(ctx), group)
	})
	if shared {
		m.logger.Debug("joined in-flight refresh", "group", group)
	}
	if err != nil {
		return Entry{}, err
	}
	return v.(Entry), nil
}

func (m *Manager) fetchAndStore(ctx context.Context, group string) (Entry, error) {
	ctx, span := tracing.Start(ctx, "tle.fetch", attribute.String("tle.group", group))
	defer span.End()

	start := time.Now()
	data, err := m.fetcher.Fetch(ctx, group)
	if err == nil && len(bytes.TrimSpace(data)) == 0 {
		err = fmt.Errorf("%w: empty body", ErrUpstreamFetch)
	}
	metrics.RecordTLEFetch(group, err == nil, time.Since(start))
	if err != nil {
		span.RecordError(err)
		return Entry{}, err
	}

	fetchedAt := m.clock.Now()
	if err := m.store.Put(ctx, group, data); err != nil {
		// The fetched data is still good for this request; the next one will retry.
		m.logger.Error("cache write failed", "group", group, "error", err)
	}

	m.logger.Info("catalog refreshed", "group", group, "bytes", len(data))
	return Entry{Group: group, Data: data, FetchedAt: fetchedAt}, nil
}

func (m *Manager) resolution(group string, e Entry, outcome Outcome) (Resolution, error) {
	sets, err := Parse(bytes.NewReader(e.Data), m.config.MaxSets, m.logger)
	if err != nil {
		return Resolution{}, fmt.Errorf("parsing catalog for %q: %w", group, err)
	}

	metrics.RecordTLEResolution(group, string(outcome))
	metrics.SetTLECacheAge(group, m.clock.Now().Sub(e.FetchedAt))

	return Resolution{
		Group:     group,
		Sets:      sets,
		FetchedAt: e.FetchedAt,
		Outcome:   outcome,
	}, nil
}
