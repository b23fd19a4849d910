package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ppiankov/riskcheck/internal/apperr"
	"github.com/ppiankov/riskcheck/internal/community"
	"github.com/ppiankov/riskcheck/internal/evidence"
	"github.com/ppiankov/riskcheck/internal/model"
)

// multipartOverhead is allowed on top of the file limit for form framing
const multipartOverhead = 64 << 10

type errorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

type uploadResponse struct {
	SHA256         string                `json:"sha256"`
	URL            string                `json:"url"`
	Filename       string                `json:"filename,omitempty"`
	MimeType       string                `json:"mime_type"`
	SizeBytes      int64                 `json:"size_bytes"`
	PerceptualHash *model.PerceptualHash `json:"perceptual_hash"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			s.logger.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req model.CheckRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	check, err := s.checks.RunCheck(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (s *Server) handleGetCheck(w http.ResponseWriter, r *http.Request) {
	check, err := s.checks.GetCheck(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (s *Server) handleCheckPDF(w http.ResponseWriter, r *http.Request) {
	check, err := s.checks.GetCheck(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := s.renderer.PDF(&buf, check); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="riskcheck-`+check.ID+`.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	var req model.ReportRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	rep, err := s.reports.Submit(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": rep.ID, "status": string(rep.Status)})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	filter := community.ListFilter{Status: model.ReportStatus(r.URL.Query().Get("status"))}
	switch filter.Status {
	case "", model.StatusPending, model.StatusApproved, model.StatusRejected:
	default:
		s.writeError(w, apperr.Validation("httpapi.list_reports", "unknown status %q", filter.Status))
		return
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, apperr.Validation("httpapi.list_reports", "limit must be a positive integer"))
			return
		}
		filter.Limit = n
	}

	reports, err := s.reports.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if reports == nil {
		reports = []*model.CommunityReport{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reports": reports})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.reports.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.moderate(w, r, s.reports.Approve)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.moderate(w, r, s.reports.Reject)
}

func (s *Server) moderate(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, string) (*model.CommunityReport, error)) {
	reviewer := strings.TrimSpace(r.Header.Get("X-Reviewer"))
	if reviewer == "" {
		reviewer = community.DefaultReviewer
	}
	rep, err := fn(r.Context(), chi.URLParam(r, "id"), reviewer)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	const op = "httpapi.upload"
	limit := s.files.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, &apperr.Error{Kind: apperr.KindValidation, Op: op, Msg: "file exceeds upload limit", Err: evidence.ErrTooLarge})
			return
		}
		s.writeError(w, apperr.Validation(op, "multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		s.writeError(w, apperr.Validation(op, "upload could not be read"))
		return
	}

	stored, created, err := s.files.Put(r.Context(), evidence.Upload{
		Data:     data,
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.ObserveUpload(created)

	writeJSON(w, http.StatusOK, uploadResponse{
		SHA256:         stored.ContentHash,
		URL:            "/api/file/" + stored.ContentHash,
		Filename:       stored.Filename,
		MimeType:       stored.MimeType,
		SizeBytes:      stored.SizeBytes,
		PerceptualHash: stored.PerceptualHash,
	})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	data, meta, err := s.files.Get(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", meta.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(data)
}

// decodeJSON reads a bounded JSON body into v and reports success
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large", Kind: apperr.KindValidation.String()})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body", Kind: apperr.KindValidation.String()})
		return false
	}
	return true
}

// writeError maps an error kind onto an HTTP status
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
		if errors.Is(err, evidence.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
	case apperr.KindAuth:
		status = http.StatusUnauthorized
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindInvalidState:
		status = http.StatusConflict
	case apperr.KindStorage, apperr.KindExternalUnavailable:
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "kind", kind.String(), "error", err)
	}
	writeJSON(w, status, errorBody{
		Error:     apperr.Message(err),
		Kind:      kind.String(),
		Retryable: apperr.Retryable(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
