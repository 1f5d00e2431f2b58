package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/argestone/marble-site/backend/internal/metrics"
	"github.com/argestone/marble-site/backend/internal/sanitizer"
)

// Store errors.
var (
	ErrNotFound    = errors.New("marble not found")
	ErrValidation  = errors.New("missing required fields: name, color, origin")
	ErrDuplicateID = errors.New("marble id already exists")
)

// Store persists the catalog as one JSON document on disk. Every mutation is
// a full read-modify-write under a process-level mutex, and the write itself
// is atomic (temp file + rename) so a crash mid-write cannot truncate the
// document. Writes are last-writer-wins across processes; that limitation is
// accepted for a single-admin deployment.
type Store struct {
	mu       sync.Mutex
	filePath string
	logger   *slog.Logger
	now      func() time.Time
}

// NewStore creates a catalog store backed by the given file path.
func NewStore(filePath string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		filePath: filePath,
		logger:   log,
		now:      time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FilePath returns the path of the live catalog document.
func (s *Store) FilePath() string {
	return s.filePath
}

// List returns every entry in the catalog. A missing, unreadable or
// malformed document degrades to an empty list: the storefront renders "no
// products" rather than an error page. The failure is logged.
func (s *Store) List() []Marble {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Create sanitizes and appends a new entry. Name, color and origin must be
// non-empty after sanitization. The server assigns the ID when absent and
// stamps CreatedAt and UpdatedAt.
func (s *Store) Create(entry Marble) (Marble, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry = sanitizeEntry(entry)
	if entry.Name == "" || entry.Color == "" || entry.Origin == "" {
		return Marble{}, ErrValidation
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := timestamp(s.now())
	entry.CreatedAt = now
	entry.UpdatedAt = now

	marbles := s.read()
	for _, m := range marbles {
		if m.ID == entry.ID {
			return Marble{}, fmt.Errorf("duplicate marble id %q: %w", entry.ID, ErrDuplicateID)
		}
	}
	marbles = append(marbles, entry)

	if err := s.write(marbles); err != nil {
		return Marble{}, err
	}
	metrics.CatalogMutationsTotal.WithLabelValues("create").Inc()
	return entry, nil
}

// Update replaces the entry with a matching ID in place, preserving list
// order. ID and CreatedAt are immutable; UpdatedAt is refreshed.
func (s *Store) Update(entry Marble) (Marble, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry = sanitizeEntry(entry)

	marbles := s.read()
	index := -1
	for i, m := range marbles {
		if m.ID == entry.ID {
			index = i
			break
		}
	}
	if index == -1 {
		return Marble{}, ErrNotFound
	}

	entry.CreatedAt = marbles[index].CreatedAt
	entry.UpdatedAt = timestamp(s.now())
	marbles[index] = entry

	if err := s.write(marbles); err != nil {
		return Marble{}, err
	}
	metrics.CatalogMutationsTotal.WithLabelValues("update").Inc()
	return entry, nil
}

// Delete removes the entry with the given ID and returns it so the caller
// can run associated cleanup (media deletion). A failed delete leaves the
// document unchanged.
func (s *Store) Delete(id string) (Marble, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	marbles := s.read()
	index := -1
	for i, m := range marbles {
		if m.ID == id {
			index = i
			break
		}
	}
	if index == -1 {
		return Marble{}, ErrNotFound
	}

	removed := marbles[index]
	marbles = append(marbles[:index], marbles[index+1:]...)

	if err := s.write(marbles); err != nil {
		return Marble{}, err
	}
	metrics.CatalogMutationsTotal.WithLabelValues("delete").Inc()
	return removed, nil
}

// read loads the document without taking the lock; callers hold it.
func (s *Store) read() []Marble {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("catalog read failed, serving empty list",
				"path", s.filePath, "error", err)
		}
		return []Marble{}
	}

	var marbles []Marble
	if err := json.Unmarshal(data, &marbles); err != nil {
		s.logger.Warn("catalog document is not a valid array, serving empty list",
			"path", s.filePath, "error", err)
		return []Marble{}
	}
	if marbles == nil {
		return []Marble{}
	}
	return marbles
}

// write replaces the document atomically: marshal to a temp file in the same
// directory, fsync, then rename over the live path.
func (s *Store) write(marbles []Marble) error {
	timer := prometheus.NewTimer(metrics.CatalogWriteDuration)
	defer timer.ObserveDuration()

	data, err := json.MarshalIndent(marbles, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".marbles-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.filePath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace catalog: %w", err)
	}
	return nil
}

// sanitizeEntry runs every free-text field through the sanitizer. The
// description may carry markup from the admin editor, so it is HTML-stripped
// first.
func sanitizeEntry(m Marble) Marble {
	m.Name = sanitizer.Sanitize(m.Name)
	m.Color = sanitizer.Sanitize(m.Color)
	m.PriceContact = sanitizer.Sanitize(m.PriceContact)
	m.Origin = sanitizer.Sanitize(m.Origin)
	m.Description = sanitizer.StripHTML(m.Description)
	m.Size = sanitizer.Sanitize(m.Size)
	m.Rarity = Rarity(sanitizer.Sanitize(string(m.Rarity)))
	m.Category = sanitizer.Sanitize(m.Category)
	m.Material = sanitizer.Sanitize(m.Material)
	m.Finish = sanitizer.Sanitize(m.Finish)
	m.Status = SellingStatus(sanitizer.Sanitize(string(m.Status)))
	for i, p := range m.Patterns {
		m.Patterns[i] = sanitizer.Sanitize(p)
	}
	return m
}
