// Package store persists page artifacts on local disk, one file per page,
// and reconstructs the set of completed pages at startup.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// ArtifactExt is the extension of artifact files.
const ArtifactExt = ".json"

var (
	// ErrArtifactAlreadyExists is returned when a page artifact is already on disk.
	ErrArtifactAlreadyExists = errors.New("artifact already exists")
)

// CorruptArtifactNameError is returned by ScanCompleted when a file in the
// artifact directory is not named by a page index.
type CorruptArtifactNameError struct {
	Name string
	Err  error
}

// Error implements the error interface.
func (e *CorruptArtifactNameError) Error() string {
	return fmt.Sprintf("corrupt artifact name %q: %v", e.Name, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *CorruptArtifactNameError) Unwrap() error {
	return e.Err
}

// CompletionSet is the set of pages already persisted. It is built once and
// must not be mutated afterwards.
type CompletionSet map[int]struct{}

// Contains reports whether page is completed.
func (s CompletionSet) Contains(page int) bool {
	_, ok := s[page]
	return ok
}

// Len returns the number of completed pages.
func (s CompletionSet) Len() int {
	return len(s)
}

// CountBelow returns how many completed pages fall in [0, n).
func (s CompletionSet) CountBelow(n int) int {
	count := 0
	for page := range s {
		if page < n {
			count++
		}
	}
	return count
}

// Pages returns the completed pages in ascending order.
func (s CompletionSet) Pages() []int {
	pages := make([]int, 0, len(s))
	for page := range s {
		pages = append(pages, page)
	}
	sort.Ints(pages)
	return pages
}

// Store is a flat directory of page artifacts.
type Store struct {
	dir    string
	logger zerolog.Logger
}

// Open returns a store rooted at dir, creating the directory if needed.
func Open(dir string, logger zerolog.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory is required")
	}

	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		logger.Info().Str("dir", dir).Msg("Created store directory")
	case err != nil:
		return nil, fmt.Errorf("stat store directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("store path %q is not a directory", dir)
	}

	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the artifact path for a page.
func (s *Store) Path(page int) string {
	return filepath.Join(s.dir, strconv.Itoa(page)+ArtifactExt)
}

// ScanCompleted lists the store directory and returns the pages found.
//
// Dot-prefixed entries are in-flight temp files and are ignored, as are
// sub-directories. Any other name that is not "<index>.json" with a
// non-negative, canonically formatted decimal index aborts the scan with
// *CorruptArtifactNameError.
func (s *Store) ScanCompleted() (CompletionSet, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read store directory: %w", err)
	}

	completed := make(CompletionSet, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		page, err := parsePage(name)
		if err != nil {
			return nil, &CorruptArtifactNameError{Name: name, Err: err}
		}
		completed[page] = struct{}{}
	}

	s.logger.Debug().
		Str("dir", s.dir).
		Int("completed", len(completed)).
		Msg("Scanned store directory")

	return completed, nil
}

// parsePage extracts the page index from an artifact file name. Only the
// canonical form written by Write is accepted, so every scanned page has an
// artifact at Path(page).
func parsePage(name string) (int, error) {
	base, ok := strings.CutSuffix(name, ArtifactExt)
	if !ok {
		return 0, fmt.Errorf("missing %s extension", ArtifactExt)
	}
	page, err := strconv.Atoi(base)
	if err != nil {
		return 0, fmt.Errorf("not a page index: %w", err)
	}
	if page < 0 {
		return 0, fmt.Errorf("negative page index %d", page)
	}
	if strconv.Itoa(page) != base {
		return 0, fmt.Errorf("non-canonical page index %q", base)
	}
	return page, nil
}

// Exists reports whether the artifact for page is on disk.
func (s *Store) Exists(page int) bool {
	_, err := os.Lstat(s.Path(page))
	return err == nil
}

// Write persists body as the artifact for page.
//
// The body is written to a temp file in the store directory and then linked
// into place, so readers never observe a partial artifact. The link fails if
// the artifact exists, which makes every page write-once.
func (s *Store) Write(page int, body []byte) error {
	target := s.Path(page)
	if s.Exists(page) {
		return fmt.Errorf("write page %d: %w", page, ErrArtifactAlreadyExists)
	}

	tmp, err := os.CreateTemp(s.dir, "."+strconv.Itoa(page)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write page %d: create temp file: %w", page, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("write page %d: %w", page, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("write page %d: sync: %w", page, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write page %d: close: %w", page, err)
	}

	if err := os.Link(tmpName, target); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("write page %d: %w", page, ErrArtifactAlreadyExists)
		}
		return fmt.Errorf("write page %d: link: %w", page, err)
	}

	return nil
}
