package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.LeadFilter{
		Status:   q.Get("status"),
		City:     q.Get("city"),
		Category: q.Get("category"),
	}
	if f.Status != "" && !store.ValidStatus(f.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	var err error
	if v := q.Get("min_score"); v != "" {
		if f.MinScore, err = strconv.ParseFloat(v, 64); err != nil {
			writeError(w, http.StatusBadRequest, "min_score must be a number")
			return
		}
	}
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if f.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	leads, err := s.leads.ListLeads(r.Context(), f)
	if err != nil {
		zap.L().Error("server: list leads", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list leads")
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads, "count": len(leads)})
}

func (s *Server) getLead(w http.ResponseWriter, r *http.Request) {
	placeID := chi.URLParam(r, "placeID")
	lead, err := s.leads.GetLead(r.Context(), placeID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	if err != nil {
		zap.L().Error("server: get lead", zap.String("place_id", placeID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load lead")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) updateLeadStatus(w http.ResponseWriter, r *http.Request) {
	placeID := chi.URLParam(r, "placeID")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !store.ValidStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	err := s.leads.UpdateLeadStatus(r.Context(), placeID, req.Status)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "lead not found")
		return
	case errors.Is(err, store.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	case err != nil:
		zap.L().Error("server: update lead status", zap.String("place_id", placeID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update lead")
		return
	}

	lead, err := s.leads.GetLead(r.Context(), placeID)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"place_id": placeID, "status": req.Status})
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		zap.L().Error("server: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.RunSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": s.Status(), "runs": runs})
}

func (s *Server) startRun(w http.ResponseWriter, _ *http.Request) {
	if !s.tryStart() {
		writeError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	s.runInBackground()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// intParam parses an optional non-negative integer query parameter.
func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
