package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// recordingCleaner captures media deletions issued after catalog deletes.
type recordingCleaner struct {
	mu  sync.Mutex
	ids []string
}

func (c *recordingCleaner) Delete(_ context.Context, publicID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, publicID)
	return nil
}

func (c *recordingCleaner) deleted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ids...)
}

// allowAll stands in for the admin middleware; gating is tested in the
// middleware package.
func allowAll(next http.Handler) http.Handler { return next }

func newTestRouter(t *testing.T) (chi.Router, *recordingCleaner) {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "marbles.json"), nil)
	cleaner := &recordingCleaner{}
	handler := NewHandler(store, cleaner, nil)

	r := chi.NewRouter()
	RegisterRoutes(r, handler, allowAll)
	return r, cleaner
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	return body
}

const createBody = `{
	"name": "Calacatta Gold",
	"color": "White with gold veins",
	"origin": "Carrara, Italy",
	"description": "Premium statement marble",
	"rarity": "rare",
	"sellingStatus": "Best Seller",
	"publicIds": ["marbles/calacatta-1", "marbles/calacatta-2"]
}`

func TestCreateDuplicateIDConflicts(t *testing.T) {
	r, _ := newTestRouter(t)

	body := `{"id": "fixed-id", "name": "Nero Marquina", "color": "Black", "origin": "Markina, Spain"}`
	if rec := doJSON(t, r, http.MethodPost, "/marbles", body); rec.Code != http.StatusOK {
		t.Fatalf("first create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec := doJSON(t, r, http.MethodPost, "/marbles", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate create status = %d, want 409", rec.Code)
	}
	if got := decodeMap(t, rec)["error"]; got != "A marble with this ID already exists" {
		t.Errorf("error = %v", got)
	}
}

func TestListEmptyCatalog(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/marbles", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeMap(t, rec)
	marbles, ok := body["marbles"].([]any)
	if !ok {
		t.Fatalf("marbles should be an array, got %T", body["marbles"])
	}
	if len(marbles) != 0 {
		t.Errorf("expected empty catalog, got %d entries", len(marbles))
	}
}

func TestCreateThenList(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/marbles", createBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeMap(t, rec)
	if body["message"] != "Marble created successfully" {
		t.Errorf("message = %v", body["message"])
	}
	marble, ok := body["marble"].(map[string]any)
	if !ok {
		t.Fatalf("marble missing from response")
	}
	if marble["id"] == "" || marble["id"] == nil {
		t.Error("server should assign an id")
	}
	if marble["createdAt"] != marble["updatedAt"] {
		t.Error("createdAt and updatedAt should match on create")
	}

	listRec := doJSON(t, r, http.MethodGet, "/marbles", "")
	listBody := decodeMap(t, listRec)
	marbles := listBody["marbles"].([]any)
	if len(marbles) != 1 {
		t.Fatalf("list has %d entries, want 1", len(marbles))
	}
	if marbles[0].(map[string]any)["name"] != "Calacatta Gold" {
		t.Errorf("listed entry = %v", marbles[0])
	}
}

func TestCreateMissingRequiredFields(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/marbles", `{"name":"Lonely"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["error"] != "Missing required fields: name, color, origin" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestCreateRejectsBadEnumValues(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/marbles",
		`{"name":"X","color":"Y","origin":"Z","rarity":"mythic"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["error"] != "Request validation failed" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestUpdateFlow(t *testing.T) {
	r, _ := newTestRouter(t)

	created := decodeMap(t, doJSON(t, r, http.MethodPost, "/marbles", createBody))
	id := created["marble"].(map[string]any)["id"].(string)

	rec := doJSON(t, r, http.MethodPut, "/marbles",
		`{"id":"`+id+`","name":"Calacatta Oro","color":"White","origin":"Italy"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeMap(t, rec)
	marble := body["marble"].(map[string]any)
	if marble["name"] != "Calacatta Oro" {
		t.Errorf("name = %v", marble["name"])
	}
	if marble["id"] != id {
		t.Error("id must be immutable across updates")
	}
}

func TestUpdateUnknownID(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPut, "/marbles",
		`{"id":"nope","name":"X","color":"Y","origin":"Z"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestUpdateWithoutID(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPut, "/marbles", `{"name":"X","color":"Y","origin":"Z"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteFlowTriggersMediaCleanup(t *testing.T) {
	r, cleaner := newTestRouter(t)

	created := decodeMap(t, doJSON(t, r, http.MethodPost, "/marbles", createBody))
	id := created["marble"].(map[string]any)["id"].(string)

	rec := doJSON(t, r, http.MethodDelete, "/marbles", `{"id":"`+id+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeMap(t, rec)
	if body["message"] != "Marble deleted successfully" {
		t.Errorf("message = %v", body["message"])
	}
	deleted := body["deletedMarble"].(map[string]any)
	if deleted["id"] != id {
		t.Errorf("deletedMarble id = %v", deleted["id"])
	}

	// Cleanup runs in the background; wait for both public IDs.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(cleaner.deleted()) == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	ids := cleaner.deleted()
	if len(ids) != 2 {
		t.Fatalf("media cleanup deleted %v, want both public IDs", ids)
	}

	listBody := decodeMap(t, doJSON(t, r, http.MethodGet, "/marbles", ""))
	if len(listBody["marbles"].([]any)) != 0 {
		t.Error("catalog should be empty after delete")
	}
}

func TestDeleteUnknownID(t *testing.T) {
	r, cleaner := newTestRouter(t)

	rec := doJSON(t, r, http.MethodDelete, "/marbles", `{"id":"nope"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if len(cleaner.deleted()) != 0 {
		t.Error("failed delete must not trigger media cleanup")
	}
}

func TestDeleteWithoutID(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodDelete, "/marbles", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateStripsMarkupFromDescription(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/marbles",
		`{"name":"Nero","color":"Black","origin":"Spain","description":"<script>alert(1)</script>Deep black"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeMap(t, rec)
	desc := body["marble"].(map[string]any)["description"].(string)
	if strings.Contains(desc, "<") || strings.Contains(desc, "script") {
		t.Errorf("description %q should have markup stripped", desc)
	}
}
