package httpkit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type testItem struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestGetDecodesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/items/1" {
			t.Errorf("expected /items/1, got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(testItem{ID: 1, Name: "Widget"})
	}))
	defer server.Close()

	c := newTestClient(t, Config{BaseURL: server.URL})

	resp, err := Get[testItem](c, context.Background(), "/items/1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if resp.Data.ID != 1 || resp.Data.Name != "Widget" {
		t.Errorf("unexpected data: %+v", resp.Data)
	}
}

func TestPostEncodesAndDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %q", ct)
		}
		var item testItem
		json.NewDecoder(r.Body).Decode(&item)
		item.ID = 42
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(item)
	}))
	defer server.Close()

	c := newTestClient(t, Config{BaseURL: server.URL})

	resp, err := Post[testItem](c, context.Background(), "/items", testItem{Name: "Gadget"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if resp.Data.ID != 42 {
		t.Errorf("unexpected data: %+v", resp.Data)
	}
}

func TestPutPatchDelete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(testItem{ID: 1, Name: r.Method})
	}))
	defer server.Close()

	c := newTestClient(t, Config{BaseURL: server.URL})
	ctx := context.Background()

	if resp, err := Put[testItem](c, ctx, "/items/1", testItem{Name: "x"}); err != nil || resp.Data.Name != "PUT" {
		t.Errorf("put: data=%+v err=%v", resp, err)
	}
	if resp, err := Patch[testItem](c, ctx, "/items/1", map[string]string{"name": "x"}); err != nil || resp.Data.Name != "PATCH" {
		t.Errorf("patch: data=%+v err=%v", resp, err)
	}
	if resp, err := Delete[testItem](c, ctx, "/items/1"); err != nil || resp.Data.Name != "DELETE" {
		t.Errorf("delete: data=%+v err=%v", resp, err)
	}
}

func TestGetWithOptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("page"); got != "2" {
			t.Errorf("expected page=2, got %q", got)
		}
		if got := r.Header.Get("X-Trace"); got != "abc" {
			t.Errorf("expected X-Trace=abc, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("expected bearer token, got %q", got)
		}
		json.NewEncoder(w).Encode([]testItem{{ID: 1, Name: "Alice"}})
	}))
	defer server.Close()

	c := newTestClient(t, Config{BaseURL: server.URL})

	resp, err := Get[[]testItem](c, context.Background(), "/items",
		WithQueryParam("page", "2"),
		WithHeader("X-Trace", "abc"),
		WithRequestAuth(BearerAuth("tok")),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Errorf("expected 1 item, got %d", len(resp.Data))
	}
}

// An error status comes back as a classified error together with the decoded
// error envelope.
func TestGetErrorStatusIsClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
	}))
	defer server.Close()

	c := newTestClient(t, Config{BaseURL: server.URL})

	resp, err := Get[map[string]string](c, context.Background(), "/items/999")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
	if resp == nil {
		t.Fatal("error statuses must still return the typed response")
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if resp.Data["error"] != "not found" {
		t.Errorf("expected decoded error envelope, got %+v", resp.Data)
	}
}

// A non-JSON error body does not mask the status classification.
func TestGetErrorBodyDecodeMissTolerated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>upstream down</html>"))
	}))
	defer server.Close()

	c := newTestClient(t, Config{BaseURL: server.URL})

	resp, err := Get[testItem](c, context.Background(), "/items/1")
	if err == nil {
		t.Fatal("expected error for 502")
	}
	if !IsServerError(err) {
		t.Errorf("expected server error, got %v", err)
	}
	if resp == nil || resp.StatusCode != http.StatusBadGateway {
		t.Errorf("unexpected typed response: %+v", resp)
	}
}

// A decode failure on a success status is surfaced.
func TestGetDecodeFailureOnSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("{not json"))
	}))
	defer server.Close()

	c := newTestClient(t, Config{BaseURL: server.URL})

	if _, err := Get[testItem](c, context.Background(), "/items/1"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestDeleteEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(t, Config{BaseURL: server.URL})

	resp, err := Delete[testItem](c, context.Background(), "/items/1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if resp.Data != (testItem{}) {
		t.Errorf("expected zero value for empty body, got %+v", resp.Data)
	}
}
