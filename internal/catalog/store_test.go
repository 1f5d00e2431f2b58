package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore(filepath.Join(dir, "marbles.json"), nil)
}

func testEntry() Marble {
	return Marble{
		Name:   "Carrara White",
		Color:  "White with Gray Veins",
		Origin: "Carrara, Italy",
		Rarity: RarityCommon,
		Status: StatusSellingFast,
	}
}

func TestListMissingFileReturnsEmpty(t *testing.T) {
	store := newTestStore(t)

	marbles := store.List()
	if marbles == nil {
		t.Fatal("expected non-nil slice")
	}
	if len(marbles) != 0 {
		t.Errorf("expected empty list, got %d entries", len(marbles))
	}
}

func TestListCorruptFileReturnsEmpty(t *testing.T) {
	store := newTestStore(t)
	if err := os.WriteFile(store.FilePath(), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if got := store.List(); len(got) != 0 {
		t.Errorf("expected empty list for corrupt document, got %d entries", len(got))
	}
}

func TestListNonArrayDocumentReturnsEmpty(t *testing.T) {
	store := newTestStore(t)
	if err := os.WriteFile(store.FilePath(), []byte(`{"marbles": []}`), 0644); err != nil {
		t.Fatal(err)
	}

	if got := store.List(); len(got) != 0 {
		t.Errorf("expected empty list for non-array document, got %d entries", len(got))
	}
}

func TestCreateRoundTrip(t *testing.T) {
	store := newTestStore(t)

	created, err := store.Create(testEntry())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == "" {
		t.Error("expected server-assigned id")
	}
	if created.CreatedAt == "" || created.CreatedAt != created.UpdatedAt {
		t.Errorf("expected createdAt == updatedAt, got %q / %q", created.CreatedAt, created.UpdatedAt)
	}

	marbles := store.List()
	if len(marbles) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(marbles))
	}
	if marbles[0].Name != "Carrara White" || marbles[0].ID != created.ID {
		t.Errorf("round-trip mismatch: %+v", marbles[0])
	}
}

func TestCreateRequiresFields(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		name  string
		entry Marble
	}{
		{name: "missing name", entry: Marble{Color: "Red", Origin: "X"}},
		{name: "missing color", entry: Marble{Name: "Test", Origin: "X"}},
		{name: "missing origin", entry: Marble{Name: "Test", Color: "Red"}},
		{name: "name sanitizes to empty", entry: Marble{Name: "<>", Color: "Red", Origin: "X"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Create(tt.entry); err != ErrValidation {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}

	if got := store.List(); len(got) != 0 {
		t.Errorf("failed creates must not persist, got %d entries", len(got))
	}
}

func TestCreateSanitizesFields(t *testing.T) {
	store := newTestStore(t)

	created, err := store.Create(Marble{
		Name:        "  Nero <b>Marquina</b>  ",
		Color:       "Black\x00",
		Origin:      "Spain",
		Description: "<p>Deep black with <script>alert(1)</script>white veins</p>",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Name != "Nero bMarquina/b" {
		t.Errorf("name = %q", created.Name)
	}
	if created.Color != "Black" {
		t.Errorf("color = %q", created.Color)
	}
	if created.Description != "Deep black with white veins" {
		t.Errorf("description = %q", created.Description)
	}
}

func TestUpdatePreservesIdentityAndOrder(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(t)
	store.SetClock(func() time.Time { return clock })

	first, _ := store.Create(testEntry())
	second, _ := store.Create(Marble{Name: "Calacatta Gold", Color: "White with Gold", Origin: "Italy"})
	third, _ := store.Create(Marble{Name: "Nero Marquina", Color: "Black", Origin: "Spain"})

	clock = clock.Add(time.Hour)
	store.SetClock(func() time.Time { return clock })

	second.Color = "White with Gold Veins"
	updated, err := store.Update(second)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if updated.ID != second.ID {
		t.Error("id must be immutable")
	}
	if updated.CreatedAt != second.CreatedAt {
		t.Error("createdAt must be immutable")
	}
	if updated.UpdatedAt == second.UpdatedAt {
		t.Error("updatedAt must be refreshed")
	}

	marbles := store.List()
	if len(marbles) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(marbles))
	}
	wantOrder := []string{first.ID, second.ID, third.ID}
	for i, want := range wantOrder {
		if marbles[i].ID != want {
			t.Errorf("position %d: got %s, want %s (order must be preserved)", i, marbles[i].ID, want)
		}
	}
	if marbles[1].Color != "White with Gold Veins" {
		t.Error("update not persisted")
	}
}

func TestUpdateUnknownIDFails(t *testing.T) {
	store := newTestStore(t)
	store.Create(testEntry())

	entry := testEntry()
	entry.ID = "no-such-id"
	if _, err := store.Update(entry); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRemovesExactlyOne(t *testing.T) {
	store := newTestStore(t)

	var ids []string
	for _, name := range []string{"A", "B", "C"} {
		m, err := store.Create(minimalEntry(name))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, m.ID)
	}

	removed, err := store.Delete(ids[1])
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if removed.ID != ids[1] {
		t.Errorf("returned entry id = %s, want %s", removed.ID, ids[1])
	}

	marbles := store.List()
	if len(marbles) != 2 {
		t.Fatalf("expected 2 entries after delete, got %d", len(marbles))
	}
	for _, m := range marbles {
		if m.ID == ids[1] {
			t.Error("deleted entry still present")
		}
	}
}

func TestDeleteUnknownIDLeavesDocumentUnchanged(t *testing.T) {
	store := newTestStore(t)
	store.Create(testEntry())

	before, _ := os.ReadFile(store.FilePath())

	if _, err := store.Delete("no-such-id"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	after, _ := os.ReadFile(store.FilePath())
	if string(before) != string(after) {
		t.Error("failed delete must leave the document byte-identical")
	}
}

func TestWriteIsWellFormedJSON(t *testing.T) {
	store := newTestStore(t)
	store.Create(testEntry())

	data, err := os.ReadFile(store.FilePath())
	if err != nil {
		t.Fatal(err)
	}
	var marbles []Marble
	if err := json.Unmarshal(data, &marbles); err != nil {
		t.Fatalf("document on disk is not a JSON array: %v", err)
	}
}

// minimalEntry builds a minimal valid entry with the given name.
func minimalEntry(name string) Marble {
	return Marble{Name: name, Color: "Gray", Origin: "Test"}
}
