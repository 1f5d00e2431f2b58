package backup

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// tickingClock hands out strictly increasing timestamps so snapshot names
// never collide.
type tickingClock struct {
	current time.Time
}

func newTickingClock() *tickingClock {
	return &tickingClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *tickingClock) Now() time.Time {
	c.current = c.current.Add(time.Second)
	return c.current
}

func newTestManager(t *testing.T, retention int) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	liveFile := filepath.Join(dir, "marbles.json")
	if err := os.WriteFile(liveFile, []byte(`[{"id":"1","name":"Carrara White"}]`), 0644); err != nil {
		t.Fatal(err)
	}
	m := NewManager(liveFile, filepath.Join(dir, "backups"), retention, nil, nil)
	m.SetClock(newTickingClock().Now)
	return m, liveFile
}

func TestSnapshotCreatesCopy(t *testing.T) {
	m, liveFile := newTestManager(t, 10)

	name, total, err := m.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if total != 1 {
		t.Errorf("totalBackups = %d, want 1", total)
	}
	if !strings.HasPrefix(name, "marbles-backup-") || !strings.HasSuffix(name, ".json") {
		t.Errorf("unexpected snapshot name %q", name)
	}
	if strings.Contains(strings.TrimSuffix(name, ".json"), ":") {
		t.Errorf("snapshot name %q contains filesystem-unsafe characters", name)
	}

	live, _ := os.ReadFile(liveFile)
	snap, err := os.ReadFile(filepath.Join(m.dir, name))
	if err != nil {
		t.Fatalf("snapshot not readable: %v", err)
	}
	if string(live) != string(snap) {
		t.Error("snapshot content differs from live document")
	}
}

func TestSnapshotMissingCatalog(t *testing.T) {
	m, liveFile := newTestManager(t, 10)
	os.Remove(liveFile)

	if _, _, err := m.Snapshot(); !errors.Is(err, ErrCatalogMissing) {
		t.Errorf("expected ErrCatalogMissing, got %v", err)
	}
}

func TestRetentionKeepsNewestN(t *testing.T) {
	m, liveFile := newTestManager(t, 10)

	var names []string
	for i := 0; i < 12; i++ {
		// Vary content so restores are distinguishable.
		os.WriteFile(liveFile, []byte(`[{"id":"`+strings.Repeat("x", i+1)+`"}]`), 0644)
		name, _, err := m.Snapshot()
		if err != nil {
			t.Fatalf("snapshot %d failed: %v", i, err)
		}
		names = append(names, name)
	}

	retained, err := m.ListSnapshots()
	if err != nil {
		t.Fatal(err)
	}
	if len(retained) != 10 {
		t.Fatalf("expected 10 retained snapshots, got %d", len(retained))
	}

	// The newest 10 survive; the oldest 2 are pruned.
	for _, old := range names[:2] {
		for _, kept := range retained {
			if kept == old {
				t.Errorf("old snapshot %s should have been pruned", old)
			}
		}
	}
	if retained[0] != names[11] {
		t.Errorf("newest first: got %s, want %s", retained[0], names[11])
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	m, liveFile := newTestManager(t, 10)

	original := `[{"id":"1","name":"Carrara White"}]`
	name, _, err := m.Snapshot()
	if err != nil {
		t.Fatal(err)
	}

	// Mutate the live document, then restore the snapshot.
	os.WriteFile(liveFile, []byte(`[]`), 0644)

	preRestore, err := m.Restore(name)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	live, _ := os.ReadFile(liveFile)
	if string(live) != original {
		t.Errorf("restored content = %s, want %s", live, original)
	}

	// The pre-restore copy holds the state from just before the restore.
	if !strings.HasPrefix(preRestore, "marbles-pre-restore-") {
		t.Errorf("unexpected pre-restore name %q", preRestore)
	}
	pre, err := os.ReadFile(filepath.Join(m.dir, preRestore))
	if err != nil {
		t.Fatalf("pre-restore copy not readable: %v", err)
	}
	if string(pre) != `[]` {
		t.Errorf("pre-restore content = %s, want []", pre)
	}
}

func TestRestoreIsUndoable(t *testing.T) {
	m, liveFile := newTestManager(t, 10)

	name, _, _ := m.Snapshot()
	os.WriteFile(liveFile, []byte(`["mutated"]`), 0644)

	preRestore, err := m.Restore(name)
	if err != nil {
		t.Fatal(err)
	}

	// Restoring the pre-restore copy undoes the restore.
	if _, err := m.Restore(preRestore); err != nil {
		t.Fatalf("undo restore failed: %v", err)
	}
	live, _ := os.ReadFile(liveFile)
	if string(live) != `["mutated"]` {
		t.Errorf("undo produced %s, want [\"mutated\"]", live)
	}
}

func TestRestoreUnknownSnapshot(t *testing.T) {
	m, _ := newTestManager(t, 10)

	if _, err := m.Restore("marbles-backup-2099-01-01T00-00-00-000000000Z.json"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("expected ErrSnapshotNotFound, got %v", err)
	}
}

func TestRestoreRejectsTraversal(t *testing.T) {
	m, _ := newTestManager(t, 10)

	for _, name := range []string{
		"",
		"../marbles.json",
		"marbles-backup-..-..-etc.json/../x",
		"/etc/passwd",
		"random-file.json",
		"marbles-backup-x.txt",
	} {
		if _, err := m.Restore(name); !errors.Is(err, ErrBadSnapshotName) {
			t.Errorf("Restore(%q): expected ErrBadSnapshotName, got %v", name, err)
		}
	}
}

func TestPreRestoreCopiesEscapeRetention(t *testing.T) {
	m, liveFile := newTestManager(t, 10)

	name, _, _ := m.Snapshot()
	os.WriteFile(liveFile, []byte(`[]`), 0644)
	preRestore, _ := m.Restore(name)

	// Churn through enough snapshots to trigger pruning repeatedly.
	for i := 0; i < 15; i++ {
		if _, _, err := m.Snapshot(); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := os.Stat(filepath.Join(m.dir, preRestore)); err != nil {
		t.Errorf("pre-restore copy was pruned: %v", err)
	}
}

// failingMirror always errors; snapshots must still succeed.
type failingMirror struct{}

func (failingMirror) Upload(string, []byte) error { return errors.New("mirror unavailable") }

func TestMirrorFailureDoesNotFailSnapshot(t *testing.T) {
	dir := t.TempDir()
	liveFile := filepath.Join(dir, "marbles.json")
	os.WriteFile(liveFile, []byte(`[]`), 0644)

	m := NewManager(liveFile, filepath.Join(dir, "backups"), 10, failingMirror{}, nil)
	m.SetClock(newTickingClock().Now)

	if _, _, err := m.Snapshot(); err != nil {
		t.Fatalf("snapshot must succeed despite mirror failure: %v", err)
	}
}

// recordingMirror captures uploads for assertions.
type recordingMirror struct {
	names []string
	data  [][]byte
}

func (m *recordingMirror) Upload(name string, data []byte) error {
	m.names = append(m.names, name)
	m.data = append(m.data, data)
	return nil
}

func TestMirrorReceivesSnapshot(t *testing.T) {
	dir := t.TempDir()
	liveFile := filepath.Join(dir, "marbles.json")
	content := `[{"id":"1"}]`
	os.WriteFile(liveFile, []byte(content), 0644)

	mirror := &recordingMirror{}
	m := NewManager(liveFile, filepath.Join(dir, "backups"), 10, mirror, nil)
	m.SetClock(newTickingClock().Now)

	name, _, err := m.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(mirror.names) != 1 || mirror.names[0] != name {
		t.Fatalf("mirror got %v, want [%s]", mirror.names, name)
	}
	if string(mirror.data[0]) != content {
		t.Errorf("mirrored content = %s, want %s", mirror.data[0], content)
	}
}
