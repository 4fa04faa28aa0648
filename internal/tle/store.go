package tle

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/clock"
)

// Store persists one raw catalog entry per group.
//
// Put stamps the entry with the store's clock and replaces any prior entry.
// Get returns ErrNotFound when the group has never been stored.
type Store interface {
	Get(ctx context.Context, group string) (Entry, error)
	Put(ctx context.Context, group string, data []byte) error
	AgeOf(ctx context.Context, group string) (time.Duration, error)
}

// Pinger is implemented by stores that can report their own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

var groupPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

func validateGroup(group string) error {
	if !groupPattern.MatchString(group) {
		return fmt.Errorf("invalid catalog group %q", group)
	}
	return nil
}

// MemoryStore keeps entries in process memory. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	clock   clock.Clock
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		clock:   clk,
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, group string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[group]
	if !ok {
		return Entry{}, ErrNotFound
	}
	// Hand out a copy so callers cannot mutate the stored bytes.
	e.Data = append([]byte(nil), e.Data...)
	return e, nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, group string, data []byte) error {
	if err := validateGroup(group); err != nil {
		return err
	}
	e := Entry{
		Group:     group,
		Data:      append([]byte(nil), data...),
		FetchedAt: s.clock.Now(),
	}

	s.mu.Lock()
	s.entries[group] = e
	s.mu.Unlock()
	return nil
}

// PutAt stores data with an explicit fetch time. Used to seed entries.
func (s *MemoryStore) PutAt(group string, data []byte, fetchedAt time.Time) {
	s.mu.Lock()
	s.entries[group] = Entry{Group: group, Data: append([]byte(nil), data...), FetchedAt: fetchedAt}
	s.mu.Unlock()
}

// AgeOf implements Store.
func (s *MemoryStore) AgeOf(_ context.Context, group string) (time.Duration, error) {
	s.mu.RLock()
	e, ok := s.entries[group]
	s.mu.RUnlock()
	if !ok {
		return 0, ErrNotFound
	}
	return s.clock.Now().Sub(e.FetchedAt), nil
}

// Ping implements Pinger.
func (s *MemoryStore) Ping(context.Context) error { return nil }
