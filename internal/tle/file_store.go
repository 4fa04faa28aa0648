package tle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/clock"
)

const fileSuffix = ".tle"

// FileStore keeps catalog text on disk, one timestamped file per write:
// <group>_<unix>.tle. The newest file for a group is its entry; the timestamp
// in the name is the fetch time, independent of the file's content or mtime.
type FileStore struct {
	dir      string
	maxFiles int
	clock    clock.Clock
}

// NewFileStore creates a FileStore in dir that keeps at most maxFiles per group.
func NewFileStore(dir string, maxFiles int, clk clock.Clock) *FileStore {
	if maxFiles <= 0 {
		maxFiles = 1
	}
	return &FileStore{
		dir:      dir,
		maxFiles: maxFiles,
		clock:    clk,
	}
}

// Dir returns the cache directory.
func (s *FileStore) Dir() string { return s.dir }

// Put writes data as the group's newest entry and prunes older files.
// The write goes through a temp file and rename, so concurrent readers see
// either the old entry or the complete new one.
func (s *FileStore) Put(_ context.Context, group string, data []byte) error {
	if err := validateGroup(group); err != nil {
		return err
	}
	if err := s.ensureDir(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+group+"-*")
	if err != nil {
		return fmt.Errorf("creating cache temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}

	path := filepath.Join(s.dir, fileName(group, s.clock.Now()))
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming cache file: %w", err)
	}

	return s.prune(group)
}

// Get reads the newest cache file for group.
func (s *FileStore) Get(_ context.Context, group string) (Entry, error) {
	if err := validateGroup(group); err != nil {
		return Entry{}, err
	}
	files, err := s.listFiles(group)
	if err != nil {
		return Entry{}, err
	}
	if len(files) == 0 {
		return Entry{}, ErrNotFound
	}

	// Files are sorted oldest first; take the last one.
	latest := files[len(files)-1]
	data, err := os.ReadFile(filepath.Join(s.dir, latest.name))
	if err != nil {
		if os.IsNotExist(err) {
			// Pruned by a concurrent writer between list and read.
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("reading cache file: %w", err)
	}

	return Entry{Group: group, Data: data, FetchedAt: latest.ts}, nil
}

// AgeOf returns how long ago the group's newest entry was fetched.
func (s *FileStore) AgeOf(_ context.Context, group string) (time.Duration, error) {
	if err := validateGroup(group); err != nil {
		return 0, err
	}
	files, err := s.listFiles(group)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, ErrNotFound
	}
	return s.clock.Now().Sub(files[len(files)-1].ts), nil
}

// Ping verifies the cache directory exists or can be created.
func (s *FileStore) Ping(context.Context) error {
	return s.ensureDir()
}

func fileName(group string, ts time.Time) string {
	return fmt.Sprintf("%s_%d%s", group, ts.Unix(), fileSuffix)
}

type cacheFile struct {
	name string
	ts   time.Time
}

func (s *FileStore) listFiles(group string) ([]cacheFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	prefix := group + "_"
	var files []cacheFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		// Extract unix timestamp from filename.
		tsStr := strings.TrimSuffix(strings.TrimPrefix(name, prefix), fileSuffix)
		unix, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, cacheFile{name: name, ts: time.Unix(unix, 0).UTC()})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts.Before(files[j].ts)
	})

	return files, nil
}

func (s *FileStore) prune(group string) error {
	files, err := s.listFiles(group)
	if err != nil {
		return err
	}

	if len(files) <= s.maxFiles {
		return nil
	}

	// Remove oldest files.
	for _, f := range files[:len(files)-s.maxFiles] {
		path := filepath.Join(s.dir, f.name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("pruning cache file %s: %w", f.name, err)
		}
	}

	return nil
}

func (s *FileStore) ensureDir() error {
	return os.MkdirAll(s.dir, 0755)
}
