package tle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/clock"
)

var storeEpoch = time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)

func TestFileStorePutGet(t *testing.T) {
	clk := clock.NewManual(storeEpoch)
	s := NewFileStore(t.TempDir(), 1, clk)
	ctx := context.Background()

	if _, err := s.Get(ctx, "starlink"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty store: want ErrNotFound, got %v", err)
	}

	if err := s.Put(ctx, "starlink", []byte(starlinkTLE)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	e, err := s.Get(ctx, "starlink")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(e.Data) != starlinkTLE {
		t.Errorf("data mismatch")
	}
	if !e.FetchedAt.Equal(storeEpoch) {
		t.Errorf("FetchedAt = %v, want %v", e.FetchedAt, storeEpoch)
	}

	clk.Advance(90 * time.Minute)
	age, err := s.AgeOf(ctx, "starlink")
	if err != nil {
		t.Fatalf("AgeOf: %v", err)
	}
	if age != 90*time.Minute {
		t.Errorf("AgeOf = %v, want 90m", age)
	}
}

func TestFileStoreNewestWinsAndPrunes(t *testing.T) {
	dir := t.TempDir()
	clk := clock.NewManual(storeEpoch)
	s := NewFileStore(dir, 2, clk)
	ctx := context.Background()

	for i, body := range []string{"one", "two", "three"} {
		clk.Set(storeEpoch.Add(time.Duration(i) * time.Hour))
		if err := s.Put(ctx, "kuiper", []byte(body)); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}

	e, err := s.Get(ctx, "kuiper")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(e.Data) != "three" {
		t.Errorf("Get returned %q, want newest entry", e.Data)
	}

	files, err := filepath.Glob(filepath.Join(dir, "kuiper_*.tle"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("got %d files after prune, want 2", len(files))
	}
}

func TestFileStoreGroupsAreIndependent(t *testing.T) {
	s := NewFileStore(t.TempDir(), 1, clock.NewManual(storeEpoch))
	ctx := context.Background()

	if err := s.Put(ctx, "iridium-NEXT", []byte("iridium")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "starlink", []byte("starlink")); err != nil {
		t.Fatal(err)
	}

	e, err := s.Get(ctx, "iridium-NEXT")
	if err != nil {
		t.Fatal(err)
	}
	if string(e.Data) != "iridium" {
		t.Errorf("iridium-NEXT entry = %q", e.Data)
	}
}

// TestFileStoreTimestampFromName checks that an entry's age comes from the
// timestamp in its file name, not from the file's mtime.
func TestFileStoreTimestampFromName(t *testing.T) {
	dir := t.TempDir()
	written := storeEpoch.Add(-3 * time.Hour)
	if err := os.WriteFile(filepath.Join(dir, fileName("starlink", written)), []byte(starlinkTLE), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewFileStore(dir, 1, clock.NewManual(storeEpoch))
	age, err := s.AgeOf(context.Background(), "starlink")
	if err != nil {
		t.Fatalf("AgeOf: %v", err)
	}
	if age != 3*time.Hour {
		t.Errorf("AgeOf = %v, want 3h", age)
	}
}

func TestFileStoreIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"starlink_notanumber.tle", "starlink_123.txt", "starlinkx_100.tle"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	s := NewFileStore(dir, 1, clock.NewManual(storeEpoch))
	if _, err := s.Get(context.Background(), "starlink"); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestFileStoreRejectsBadGroup(t *testing.T) {
	s := NewFileStore(t.TempDir(), 1, clock.NewManual(storeEpoch))
	for _, g := range []string{"", "../etc", "a/b", "star link"} {
		if err := s.Put(context.Background(), g, []byte("x")); err == nil {
			t.Errorf("Put(%q) should fail", g)
		}
	}
}

func TestFileStorePingCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	s := NewFileStore(dir, 1, clock.NewManual(storeEpoch))
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("cache dir not created: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	clk := clock.NewManual(storeEpoch)
	s := NewMemoryStore(clk)
	ctx := context.Background()

	if _, err := s.Get(ctx, "starlink"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := s.Put(ctx, "starlink", []byte("abc")); err != nil {
		t.Fatal(err)
	}

	e, _ := s.Get(ctx, "starlink")
	e.Data[0] = 'X'
	again, _ := s.Get(ctx, "starlink")
	if string(again.Data) != "abc" {
		t.Errorf("stored bytes were mutated through a returned entry: %q", again.Data)
	}

	clk.Advance(time.Hour)
	if age, _ := s.AgeOf(ctx, "starlink"); age != time.Hour {
		t.Errorf("AgeOf = %v, want 1h", age)
	}
}
