// Package store manages the directory of downloaded files. Files are named
// by job id, so concurrent jobs never collide; the only shared concern is the
// periodic retention sweep.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidName = errors.New("invalid file name")
)

// FileInfo describes one stored file.
type FileInfo struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Store serves files from a single flat directory with an age-based
// retention window.
type Store struct {
	dir       string
	retention time.Duration
}

// New creates a store over dir. Files older than retention are eligible for
// removal by the sweep.
func New(dir string, retention time.Duration) *Store {
	return &Store{dir: dir, retention: retention}
}

// Dir returns the backing directory.
func (s *Store) Dir() string { return s.dir }

// List returns metadata for every stored file, newest first.
func (s *Store) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []FileInfo{}, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		stat, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:      entry.Name(),
			Size:      stat.Size(),
			CreatedAt: stat.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].CreatedAt.After(files[j].CreatedAt) })
	return files, nil
}

// Path resolves a stored file name to its on-disk path. Names carrying path
// separators or parent references are rejected outright.
func (s *Store) Path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", ErrInvalidName
	}
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("stat file: %w", err)
	}
	return path, nil
}

// Delete removes a stored file.
func (s *Store) Delete(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// SweepOnce removes files whose last-modified time exceeds the retention
// window and reports how many were removed. In-flight job files are always
// newer than the window, so the sweep cannot race them into deletion.
func (s *Store) SweepOnce() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	cutoff := time.Now().Add(-s.retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		stat, err := entry.Info()
		if err != nil {
			continue
		}
		if stat.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			log.Warn().Str("file", entry.Name()).Err(err).Msg("sweep remove failed")
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("retention sweep removed expired files")
	}
	return removed
}

// StartSweeper runs SweepOnce on the given interval until ctx is cancelled.
// Started once at process startup; shutdown cancels the base context.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.SweepOnce()
			case <-ctx.Done():
				return
			}
		}
	}()
}
