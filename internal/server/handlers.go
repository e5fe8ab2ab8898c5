package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nao1215/surveilscope/internal/config"
	"github.com/nao1215/surveilscope/internal/coordinator"
	"github.com/nao1215/surveilscope/internal/fingerprint"
	"github.com/nao1215/surveilscope/internal/model"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// readBody reads a bounded request body. It writes the error response itself
// and returns ok=false on failure.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, err)
			return nil, false
		}
		s.writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	if len(data) == 0 {
		s.writeError(w, http.StatusBadRequest, ErrEmptyBody)
		return nil, false
	}
	return data, true
}

// postEvents accepts one event document or an array of them.
// Invalid array elements are skipped and counted; the rest are ingested.
func (s *Server) postEvents(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	events, invalid, err := s.decoder.DecodeEach(data)
	if err != nil {
		s.metrics.Invalid()
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.skipInvalid(r.Context(), invalid)

	result := s.Ingest(r.Context(), events)
	result.Invalid = len(invalid)
	s.writeJSON(w, http.StatusAccepted, result)
}

func (s *Server) skipInvalid(ctx context.Context, invalid []error) {
	for _, err := range invalid {
		s.metrics.Invalid()
		s.logger.DebugContext(ctx, "skipped invalid event", "error", err)
	}
}

func (s *Server) getReport(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Report())
}

func (s *Server) getExport(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	doc := s.coord.ExportAll()
	s.mu.Unlock()
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="surveilscope-export-%s.json"`, doc.Timestamp.Format("2006-01-02")))
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) postImport(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var doc coordinator.Export
	if err := json.Unmarshal(data, &doc); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	err := s.coord.ImportAll(r.Context(), &doc)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteData(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.coord.ClearAll(r.Context())
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

type timelineResponse struct {
	Origin        string              `json:"origin"`
	Entries       []fingerprint.Entry `json:"entries"`
	NewAttributes []string            `json:"newAttributes,omitempty"`
}

// getTimeline returns an origin's timeline. With ?since=<RFC 3339> it also
// lists the attributes first accessed after that time.
func (s *Server) getTimeline(w http.ResponseWriter, r *http.Request) {
	origin := chi.URLParam(r, "origin")

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, ErrInvalidSince)
			return
		}
		since = t
	}

	s.mu.Lock()
	resp := timelineResponse{
		Origin:  origin,
		Entries: s.coord.TimelineForOrigin(origin),
	}
	if !since.IsZero() {
		resp.NewAttributes = s.coord.NewAttributesSince(origin, since)
	}
	s.mu.Unlock()

	if resp.Entries == nil {
		resp.Entries = []fingerprint.Entry{}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getForensics(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	summary := s.coord.ForensicSummary()
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) getExfiltration(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	overview := s.coord.ExfiltrationOverview()
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, overview)
}

// getAlerts returns every alert, or the newest ?limit=n.
func (s *Server) getAlerts(w http.ResponseWriter, r *http.Request) {
	limit := -1
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, ErrInvalidLimit)
			return
		}
		limit = n
	}

	s.mu.Lock()
	alerts := s.coord.Alerts()
	if limit >= 0 {
		alerts = s.coord.RecentAlerts(limit)
	}
	s.mu.Unlock()
	if alerts == nil {
		alerts = []model.Alert{}
	}
	s.writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) getSettings(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	settings := s.coord.Settings()
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, settings)
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var patch config.SettingsPatch
	if err := json.Unmarshal(data, &patch); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	settings, err := s.coord.UpdateSettings(r.Context(), patch)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, settings)
}
