package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evcraddock/listing-tracker/internal/listing"
	"github.com/evcraddock/listing-tracker/internal/snapshot"
)

// testServer creates a server over a file store in a temp directory.
func testServer(t *testing.T) (*Server, *snapshot.FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	store := snapshot.NewFileStore(filepath.Join(dir, "snapshots"))
	received := filepath.Join(dir, "received_properties.json")

	srv, err := NewServer(snapshot.NewCache(store), Options{
		ReceivedPath: received,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, store, received
}

func apiRequest(t *testing.T, srv *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func saveSnapshot(t *testing.T, store *snapshot.FileStore, day int, records []listing.Record) {
	t.Helper()
	if err := store.Save(context.Background(), day, records); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
}

func TestUpdateProperties(t *testing.T) {
	srv, _, received := testServer(t)

	body := []byte(`[{"address":"1 elm st","status":"actively_listed"},{"address":"2 elm st","status":"off_market"}]`)
	w := apiRequest(t, srv, http.MethodPost, "/update_properties", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp updateResponse
	decodeBody(t, w, &resp)
	if resp.Count != 2 || resp.Message != "Properties updated successfully" {
		t.Errorf("resp = %+v", resp)
	}

	data, err := os.ReadFile(received)
	if err != nil {
		t.Fatalf("read received: %v", err)
	}
	var stored []listing.Record
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("parse received: %v", err)
	}
	if len(stored) != 2 || stored[1].Status != listing.StatusOffMarket {
		t.Errorf("stored = %+v", stored)
	}
	if !strings.HasPrefix(string(data), "[\n    {") {
		t.Errorf("expected 4-space indented array, got %q", data[:10])
	}
}

func TestUpdatePropertiesReplaces(t *testing.T) {
	srv, _, received := testServer(t)

	apiRequest(t, srv, http.MethodPost, "/update_properties", []byte(`[{"address":"a"},{"address":"b"}]`))
	w := apiRequest(t, srv, http.MethodPost, "/update_properties", []byte(`[]`))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	data, err := os.ReadFile(received)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("received = %q, want []", data)
	}
}

func TestUpdatePropertiesErrors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   []byte
		want   int
	}{
		{"invalid json", http.MethodPost, []byte(`{not json`), http.StatusBadRequest},
		{"object instead of array", http.MethodPost, []byte(`{"address":"a"}`), http.StatusBadRequest},
		{"wrong method", http.MethodGet, nil, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := testServer(t)
			w := apiRequest(t, srv, tt.method, "/update_properties", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			var resp map[string]string
			decodeBody(t, w, &resp)
			if resp["error"] == "" {
				t.Error("expected error message")
			}
		})
	}
}

func TestUpdatePropertiesWriteFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	srv, err := NewServer(snapshot.NewFileStore(dir), Options{
		ReceivedPath: filepath.Join(blocker, "received.json"),
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	w := apiRequest(t, srv, http.MethodPost, "/update_properties", []byte(`[]`))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestWithinRadius(t *testing.T) {
	srv, store, _ := testServer(t)
	saveSnapshot(t, store, 0, []listing.Record{
		{Address: "philly", Latitude: 39.9526, Longitude: -75.1652},
		{Address: "trenton", Latitude: 40.2206, Longitude: -74.7597},
		{Address: "pittsburgh", Latitude: 40.4406, Longitude: -79.9959},
	})

	tests := []struct {
		name string
		path string
		want []string
	}{
		{"default radius", "/properties_within_radius?latitude=39.9526&longitude=-75.1652", []string{"philly", "trenton"}},
		{"narrow radius", "/properties_within_radius?latitude=39.9526&longitude=-75.1652&miles=5", []string{"philly"}},
		{"far away", "/properties_within_radius?latitude=0&longitude=0", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := apiRequest(t, srv, http.MethodGet, tt.path, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			var resp struct {
				Properties []listing.Record `json:"propertiesWithinRadius"`
			}
			decodeBody(t, w, &resp)
			if resp.Properties == nil {
				t.Fatal("expected an array, got null")
			}
			if len(resp.Properties) != len(tt.want) {
				t.Fatalf("got %d properties, want %d", len(resp.Properties), len(tt.want))
			}
			for i, addr := range tt.want {
				if resp.Properties[i].Address != addr {
					t.Errorf("property %d = %q, want %q", i, resp.Properties[i].Address, addr)
				}
			}
		})
	}
}

func TestWithinRadiusNoSnapshot(t *testing.T) {
	srv, _, _ := testServer(t)

	w := apiRequest(t, srv, http.MethodGet, "/properties_within_radius?latitude=1&longitude=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"propertiesWithinRadius":[]`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestWithinRadiusBadParams(t *testing.T) {
	srv, _, _ := testServer(t)

	for _, path := range []string{
		"/properties_within_radius",
		"/properties_within_radius?latitude=1",
		"/properties_within_radius?latitude=abc&longitude=1",
		"/properties_within_radius?latitude=1&longitude=200",
		"/properties_within_radius?latitude=1&longitude=1&miles=-3",
	} {
		w := apiRequest(t, srv, http.MethodGet, path, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, w.Code)
		}
	}
}

func TestSnapshotEndpoints(t *testing.T) {
	srv, store, _ := testServer(t)

	w := apiRequest(t, srv, http.MethodGet, "/api/snapshots/latest", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("latest before any snapshot: status = %d, want 404", w.Code)
	}

	saveSnapshot(t, store, 0, []listing.Record{{Address: "a"}})
	saveSnapshot(t, store, 1, []listing.Record{{Address: "a", Status: listing.StatusOffMarket}})

	tests := []struct {
		path    string
		code    int
		wantDay int
	}{
		{"/api/snapshots/0", http.StatusOK, 0},
		{"/api/snapshots/1", http.StatusOK, 1},
		{"/api/snapshots/7", http.StatusNotFound, 0},
		{"/api/snapshots/x", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := apiRequest(t, srv, http.MethodGet, tt.path, nil)
			if w.Code != tt.code {
				t.Fatalf("status = %d, want %d", w.Code, tt.code)
			}
			if tt.code != http.StatusOK {
				return
			}
			var resp snapshotResponse
			decodeBody(t, w, &resp)
			if resp.Day != tt.wantDay || len(resp.Properties) != 1 {
				t.Errorf("resp = %+v", resp)
			}
		})
	}
}

func TestLatestSnapshotAfterCacheLoad(t *testing.T) {
	dir := t.TempDir()
	store := snapshot.NewFileStore(dir)
	cache := snapshot.NewCache(store)
	srv, err := NewServer(cache, Options{ReceivedPath: filepath.Join(dir, "r.json")})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	saveSnapshot(t, store, 0, []listing.Record{{Address: "a"}})
	apiRequest(t, srv, http.MethodGet, "/api/snapshots/latest", nil)

	// Writes behind the cache's back need an invalidation, which the watcher provides.
	saveSnapshot(t, store, 1, []listing.Record{})
	cache.Invalidate()

	w := apiRequest(t, srv, http.MethodGet, "/api/snapshots/latest", nil)
	var resp snapshotResponse
	decodeBody(t, w, &resp)
	if resp.Day != 1 {
		t.Errorf("day = %d, want 1", resp.Day)
	}
}

type failingSnapshots struct{}

func (failingSnapshots) Latest(context.Context) (int, []listing.Record, error) {
	return 0, nil, errors.New("disk on fire")
}

func (failingSnapshots) Load(context.Context, int) ([]listing.Record, error) {
	return nil, errors.New("disk on fire")
}

func TestSnapshotLoadFailure(t *testing.T) {
	srv, err := NewServer(failingSnapshots{}, Options{
		ReceivedPath: filepath.Join(t.TempDir(), "r.json"),
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	for _, path := range []string{
		"/api/snapshots/latest",
		"/api/snapshots/0",
		"/properties_within_radius?latitude=1&longitude=1",
	} {
		w := apiRequest(t, srv, http.MethodGet, path, nil)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("%s: status = %d, want 500", path, w.Code)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _, _ := testServer(t)

	w := apiRequest(t, srv, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("health: %d %s", w.Code, w.Body.String())
	}

	apiRequest(t, srv, http.MethodPost, "/update_properties", []byte(`[{"address":"a"}]`))
	w = apiRequest(t, srv, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "listing_tracker_web_received_records_total") {
		t.Error("expected received records counter in metrics output")
	}
}

func TestNewServerValidation(t *testing.T) {
	if _, err := NewServer(nil, Options{ReceivedPath: "x"}); err == nil {
		t.Error("expected error without snapshots")
	}
	if _, err := NewServer(snapshot.NewFileStore(t.TempDir()), Options{}); err == nil {
		t.Error("expected error without received path")
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	srv, _, _ := testServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, 0) }()
	cancel()

	if err := <-done; err != nil {
		t.Errorf("listen: %v", err)
	}
}
