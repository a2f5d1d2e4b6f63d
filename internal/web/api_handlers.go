package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/evcraddock/listing-tracker/internal/listing"
	"github.com/evcraddock/listing-tracker/internal/market"
	"github.com/evcraddock/listing-tracker/internal/snapshot"
)

var receivedRecords = promauto.NewCounter(prometheus.CounterOpts{
	Name: "listing_tracker_web_received_records_total",
	Help: "Records accepted by POST /update_properties",
})

// apiError writes a JSON error response.
func apiError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := map[string]string{"error": msg}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// apiJSON writes a JSON response with the given status code.
func apiJSON(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// updateResponse is the body of a successful POST /update_properties.
type updateResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// snapshotResponse is the body of the /api/snapshots endpoints.
type snapshotResponse struct {
	Day        int              `json:"day"`
	Properties []listing.Record `json:"properties"`
}

// handleUpdateProperties stores the delivered records, replacing whatever
// was received before.
func (s *Server) handleUpdateProperties(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var records []listing.Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&records); err != nil {
		apiError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if records == nil {
		records = []listing.Record{}
	}

	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		apiError(w, "encoding properties", http.StatusInternalServerError)
		return
	}
	if err := snapshot.WriteFileAtomic(s.receivedPath, data); err != nil {
		s.logger.Error("writing received properties", "path", s.receivedPath, "error", err)
		apiError(w, "failed to store properties", http.StatusInternalServerError)
		return
	}

	receivedRecords.Add(float64(len(records)))
	apiJSON(w, updateResponse{Message: "Properties updated successfully", Count: len(records)}, http.StatusOK)
}

// handleWithinRadius returns latest-snapshot listings near a point.
func (s *Server) handleWithinRadius(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	if q.Get("latitude") == "" || q.Get("longitude") == "" {
		apiError(w, "latitude and longitude are required parameters", http.StatusBadRequest)
		return
	}
	lat, err := strconv.ParseFloat(q.Get("latitude"), 64)
	if err != nil || lat < -90 || lat > 90 {
		apiError(w, "invalid latitude", http.StatusBadRequest)
		return
	}
	lon, err := strconv.ParseFloat(q.Get("longitude"), 64)
	if err != nil || lon < -180 || lon > 180 {
		apiError(w, "invalid longitude", http.StatusBadRequest)
		return
	}
	miles := s.radiusMiles
	if v := q.Get("miles"); v != "" {
		miles, err = strconv.ParseFloat(v, 64)
		if err != nil || miles <= 0 {
			apiError(w, "invalid miles", http.StatusBadRequest)
			return
		}
	}

	_, records, err := s.snapshots.Latest(r.Context())
	if err != nil && !errors.Is(err, snapshot.ErrNotFound) {
		s.logger.Error("loading latest snapshot", "error", err)
		apiError(w, "failed to load snapshot", http.StatusInternalServerError)
		return
	}

	apiJSON(w, map[string][]listing.Record{
		"propertiesWithinRadius": market.WithinRadius(lat, lon, records, miles),
	}, http.StatusOK)
}

func (s *Server) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	day, records, err := s.snapshots.Latest(r.Context())
	if errors.Is(err, snapshot.ErrNotFound) {
		apiError(w, "no snapshots yet", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("loading latest snapshot", "error", err)
		apiError(w, "failed to load snapshot", http.StatusInternalServerError)
		return
	}
	apiJSON(w, snapshotResponse{Day: day, Properties: records}, http.StatusOK)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	day, err := strconv.Atoi(r.PathValue("day"))
	if err != nil || day < 0 {
		apiError(w, "invalid day", http.StatusBadRequest)
		return
	}

	records, err := s.snapshots.Load(r.Context(), day)
	if errors.Is(err, snapshot.ErrNotFound) {
		apiError(w, "snapshot not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("loading snapshot", "day", day, "error", err)
		apiError(w, "failed to load snapshot", http.StatusInternalServerError)
		return
	}
	apiJSON(w, snapshotResponse{Day: day, Properties: records}, http.StatusOK)
}
