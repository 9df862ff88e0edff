package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Twixes/mcpolice/internal/model"
	"github.com/Twixes/mcpolice/internal/violation"
	"github.com/go-chi/chi/v5"
)

// maxReportBytes bounds a report request body
const maxReportBytes = 1 << 20

// digestSampleSize is how many recent records accompany a digest request
const digestSampleSize = 20

// reportRequest is the body of POST /api/violations/report
type reportRequest struct {
	Statute                 string `json:"statute"`
	ResponsibleOrganization string `json:"responsible_organization"`
	OffendingContent        string `json:"offending_content"`
	DetectedBy              string `json:"detected_by"`
}

type reportResponse struct {
	Success      bool           `json:"success"`
	ViolationID  string         `json:"violationId"`
	Severity     model.Severity `json:"severity"`
	Organization string         `json:"organization"`
	Message      string         `json:"message"`
}

type clearResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReportBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	rec, err := s.svc.Submit(r.Context(), violation.SubmitRequest{
		Statute:                 req.Statute,
		ResponsibleOrganization: req.ResponsibleOrganization,
		OffendingContent:        req.OffendingContent,
		DetectedBy:              req.DetectedBy,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	info, _ := s.svc.Statute(rec.Statute)
	writeJSON(w, http.StatusOK, reportResponse{
		Success:      true,
		ViolationID:  rec.ID,
		Severity:     rec.Violation.Severity,
		Organization: info.Organization,
		Message:      fmt.Sprintf("Violation of %s reported to %s", rec.Statute, info.Organization),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// Unparseable pagination falls back to the defaults
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	filter := model.Filter{
		Severity:     model.Severity(strings.ToUpper(strings.TrimSpace(q.Get("severity")))),
		Jurisdiction: q.Get("jurisdiction"),
	}

	page, err := s.svc.Query(r.Context(), filter, model.Pagination{Limit: limit, Offset: offset})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStatutes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"statutes": s.svc.Statutes()})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Clear(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear data")
		return
	}
	writeJSON(w, http.StatusOK, clearResponse{
		Success: true,
		Message: fmt.Sprintf("Cleared %d violations", n),
	})
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	if s.digester == nil {
		writeError(w, http.StatusServiceUnavailable, "Digest is disabled: no LLM provider configured")
		return
	}

	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	recent, err := s.svc.Query(r.Context(), model.Filter{}, model.Pagination{Limit: digestSampleSize})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	digest, err := s.digester.Digest(r.Context(), stats, recent.Violations)
	if err != nil {
		s.logger.Error("Digest generation failed", "error", err)
		writeError(w, http.StatusBadGateway, "Digest generation failed")
		return
	}
	writeJSON(w, http.StatusOK, digest)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"statutes": len(s.svc.Statutes()),
	})
}

// writeServiceError maps the service error taxonomy onto HTTP. Storage
// failures are redacted.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, violation.ErrValidation), errors.Is(err, violation.ErrUnknownStatute):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, violation.ErrNotFound):
		writeError(w, http.StatusNotFound, "Violation not found")
	default:
		writeError(w, http.StatusInternalServerError, "Internal storage error")
	}
}
