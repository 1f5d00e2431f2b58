// Package backup snapshots the catalog document to timestamped files,
// prunes old snapshots, and restores a chosen snapshot. A restore always
// takes a pre-restore copy first so restores are themselves undoable.
package backup

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/argestone/marble-site/backend/internal/metrics"
)

// DefaultRetention is the number of most recent snapshots kept.
const DefaultRetention = 10

const (
	snapshotPrefix   = "marbles-backup-"
	preRestorePrefix = "marbles-pre-restore-"
	snapshotSuffix   = ".json"
)

// Manager errors.
var (
	ErrSnapshotNotFound = errors.New("backup file not found")
	ErrCatalogMissing   = errors.New("catalog document not found")
	ErrBadSnapshotName  = errors.New("invalid backup file name")
)

// Mirror replicates finished snapshots to remote storage. Mirroring is
// best-effort: a failure is logged, never surfaced.
type Mirror interface {
	Upload(name string, data []byte) error
}

// Manager creates and restores catalog snapshots.
type Manager struct {
	liveFile  string
	dir       string
	retention int
	mirror    Mirror
	logger    *slog.Logger
	now       func() time.Time
}

// NewManager creates a backup Manager. mirror may be nil. A non-positive
// retention falls back to the default.
func NewManager(liveFile, dir string, retention int, mirror Mirror, log *slog.Logger) *Manager {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		liveFile:  liveFile,
		dir:       dir,
		retention: retention,
		mirror:    mirror,
		logger:    log,
		now:       time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Snapshot copies the live document to a new timestamped file and prunes
// all but the newest retention-count snapshots. Returns the new snapshot's
// file name and the number of snapshots retained.
func (m *Manager) Snapshot() (string, int, error) {
	if _, err := os.Stat(m.liveFile); err != nil {
		if os.IsNotExist(err) {
			return "", 0, ErrCatalogMissing
		}
		return "", 0, fmt.Errorf("failed to stat catalog: %w", err)
	}

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := snapshotPrefix + safeTimestamp(m.now()) + snapshotSuffix
	if err := copyFile(m.liveFile, filepath.Join(m.dir, name)); err != nil {
		return "", 0, err
	}

	total, err := m.prune()
	if err != nil {
		return "", 0, err
	}

	m.mirrorSnapshot(name)
	metrics.BackupSnapshotsTotal.Inc()
	return name, total, nil
}

// Restore replaces the live document with the named snapshot's contents.
// The current document is snapshotted first under a pre-restore name that
// the retention policy never prunes, so the restore can itself be undone.
func (m *Manager) Restore(name string) (preRestore string, err error) {
	if !validSnapshotName(name) {
		return "", ErrBadSnapshotName
	}

	source := filepath.Join(m.dir, name)
	if _, err := os.Stat(source); err != nil {
		if os.IsNotExist(err) {
			return "", ErrSnapshotNotFound
		}
		return "", fmt.Errorf("failed to stat snapshot: %w", err)
	}

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	preRestore = fmt.Sprintf("%s%d%s", preRestorePrefix, m.now().UnixMilli(), snapshotSuffix)
	if err := copyFile(m.liveFile, filepath.Join(m.dir, preRestore)); err != nil {
		return "", fmt.Errorf("failed to snapshot current document before restore: %w", err)
	}

	if err := copyFile(source, m.liveFile); err != nil {
		return "", fmt.Errorf("failed to restore from snapshot: %w", err)
	}

	metrics.BackupRestoresTotal.Inc()
	return preRestore, nil
}

// ListSnapshots returns the retained snapshot names, newest first.
// Pre-restore copies are excluded.
func (m *Manager) ListSnapshots() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, snapshotPrefix) && strings.HasSuffix(name, snapshotSuffix) {
			names = append(names, name)
		}
	}
	// The timestamp format is zero-padded, so lexical order is
	// chronological; descending puts the newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// prune deletes all but the newest retention-count snapshots and returns the
// retained count.
func (m *Manager) prune() (int, error) {
	names, err := m.ListSnapshots()
	if err != nil {
		return 0, err
	}

	if len(names) <= m.retention {
		return len(names), nil
	}

	for _, name := range names[m.retention:] {
		if err := os.Remove(filepath.Join(m.dir, name)); err != nil {
			m.logger.Warn("failed to prune old snapshot", "name", name, "error", err)
		}
	}
	return m.retention, nil
}

// mirrorSnapshot pushes the snapshot to remote storage, best-effort.
func (m *Manager) mirrorSnapshot(name string) {
	if m.mirror == nil {
		return
	}
	data, err := os.ReadFile(filepath.Join(m.dir, name))
	if err != nil {
		m.logger.Warn("failed to read snapshot for mirroring", "name", name, "error", err)
		return
	}
	if err := m.mirror.Upload(name, data); err != nil {
		m.logger.Warn("failed to mirror snapshot", "name", name, "error", err)
	}
}

// copyFile copies src to dst without ever leaving dst half-written: data
// goes to a temp file in dst's directory first, then a rename swaps it in.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, ".backup-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync copy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close copy: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to finalize copy: %w", err)
	}
	return nil
}

// safeTimestamp renders a time as an ISO-8601-derived, filesystem-safe name
// component: colons and periods become hyphens. Zero padding keeps lexical
// order equal to chronological order.
func safeTimestamp(t time.Time) string {
	iso := t.UTC().Format("2006-01-02T15:04:05.000000000Z")
	return strings.NewReplacer(":", "-", ".", "-").Replace(iso)
}

// validSnapshotName accepts only plain snapshot file names, rejecting
// anything that could escape the backup directory.
func validSnapshotName(name string) bool {
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return false
	}
	isSnapshot := strings.HasPrefix(name, snapshotPrefix)
	isPreRestore := strings.HasPrefix(name, preRestorePrefix)
	return (isSnapshot || isPreRestore) && strings.HasSuffix(name, snapshotSuffix)
}
