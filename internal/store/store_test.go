package store

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestListReportsSizeAndCreation(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, time.Hour)
	writeFile(t, dir, "a.mp4", "12345")

	files, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 1 || files[0].Name != "a.mp4" || files[0].Size != 5 {
		t.Fatalf("unexpected listing: %+v", files)
	}
	if files[0].CreatedAt.IsZero() {
		t.Fatalf("expected creation time, got %+v", files[0])
	}
}

func TestListIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, time.Hour)
	writeFile(t, dir, "a.mp4", "x")
	writeFile(t, dir, "b.mp3", "yy")

	first, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	second, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("listing changed without writes: %+v vs %+v", first, second)
	}
}

func TestListMissingDirIsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope"), time.Hour)
	files, err := s.List()
	if err != nil || len(files) != 0 {
		t.Fatalf("expected empty listing, got %v %v", files, err)
	}
}

func TestPathRejectsTraversal(t *testing.T) {
	s := New(t.TempDir(), time.Hour)
	for _, name := range []string{"", "../etc/passwd", "a/b.mp4", `a\b.mp4`, "..", "x..y/../z"} {
		if _, err := s.Path(name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("expected ErrInvalidName for %q, got %v", name, err)
		}
	}
}

func TestPathNotFound(t *testing.T) {
	s := New(t.TempDir(), time.Hour)
	if _, err := s.Path("never-created.mp4"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, time.Hour)
	writeFile(t, dir, "a.mp4", "x")

	if err := s.Delete("a.mp4"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Path("a.mp4"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected file gone, got %v", err)
	}
	if err := s.Delete("a.mp4"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSweepRemovesOnlyExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, time.Hour)

	old := writeFile(t, dir, "old.mp4", "x")
	writeFile(t, dir, "fresh.mp4", "y")
	stale := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if removed := s.SweepOnce(); removed != 1 {
		t.Fatalf("expected one removal, got %d", removed)
	}
	if _, err := s.Path("old.mp4"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired file survived sweep: %v", err)
	}
	if _, err := s.Path("fresh.mp4"); err != nil {
		t.Fatalf("fresh file removed by sweep: %v", err)
	}
}
