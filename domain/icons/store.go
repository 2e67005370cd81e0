// Package icons loads and serves the reference images the detector searches
// for.
package icons

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
)

// ErrNotFound reports a template name the store does not hold.
var ErrNotFound = errors.New("template not found")

// LoadError wraps a filesystem or decode failure with the path it happened
// on.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load %s: %v", e.Path, e.Err) }

func (e *LoadError) Unwrap() error { return e.Err }

// Template is one named reference image.
type Template struct {
	Name  string
	Image image.Image
	W, H  int
}

// Store holds the template set for a directory and serves lookups by name.
// Refresh re-reads the directory; lookups and refreshes may race freely.
type Store struct {
	dir string
	log *slog.Logger

	mu     sync.RWMutex
	byName map[string]*Template
	names  []string
}

// Load reads every decodable image in dir and returns a store over them.
// Template names are file stems: icons/fire.png becomes "fire".
func Load(dir string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{dir: dir, log: log}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh re-reads the store's directory. On failure the previous template
// set stays in place.
func (s *Store) Refresh() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return &LoadError{Path: s.dir, Err: err}
	}
	byName := make(map[string]*Template)
	for _, entry := range entries {
		if entry.IsDir() || !IsImageFile(entry.Name()) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if _, dup := byName[name]; dup {
			s.log.Warn("store.skip", slog.String("path", path), slog.String("reason", "duplicate template name"))
			continue
		}
		img, err := imaging.Open(path)
		if err != nil {
			s.log.Warn("store.skip", slog.String("path", path), slog.String("reason", err.Error()))
			continue
		}
		b := img.Bounds()
		byName[name] = &Template{Name: name, Image: img, W: b.Dx(), H: b.Dy()}
	}
	if len(byName) == 0 {
		return &LoadError{Path: s.dir, Err: errors.New("no loadable templates")}
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	s.mu.Lock()
	s.byName = byName
	s.names = names
	s.mu.Unlock()
	s.log.Info("store.load", slog.String("dir", s.dir), slog.Int("templates", len(names)))
	return nil
}

// Get returns the template for name or ErrNotFound.
func (s *Store) Get(name string) (*Template, error) {
	s.mu.RLock()
	t, ok := s.byName[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return t, nil
}

// Names returns the loaded template names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len reports how many templates are loaded.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.names)
}

// Dir returns the directory the store reads from.
func (s *Store) Dir() string { return s.dir }

// IsImageFile reports whether name has a decodable image extension.
func IsImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}
