package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/joescharf/issues/internal/auth"
	"github.com/joescharf/issues/internal/issues"
	"github.com/joescharf/issues/internal/models"
	"github.com/joescharf/issues/internal/validate"
)

// maxBodyBytes bounds request bodies read by mutating handlers.
const maxBodyBytes = 1 << 20

// Server provides the REST API handlers.
type Server struct {
	issues *issues.Service
	log    *slog.Logger
}

// NewServer creates a new API server. A nil logger falls back to slog.Default().
func NewServer(svc *issues.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{issues: svc, log: logger}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/issues", s.listIssues)
	mux.HandleFunc("POST /api/issues", s.createIssue)
	mux.HandleFunc("GET /api/issues/{id}", s.getIssue)
	mux.HandleFunc("PATCH /api/issues/{id}", s.updateIssue)
	mux.HandleFunc("DELETE /api/issues/{id}", s.deleteIssue)

	mux.HandleFunc("GET /api/users", s.listUsers)
	mux.HandleFunc("GET /api/summary", s.summary)

	mux.HandleFunc("GET /healthz", s.healthz)

	return s.logRequests(corsMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type validationResponse struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields"`
}

// writeServiceError is the only place service errors become status codes.
// Internal failures are logged and reported without detail.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validate.Errors
	switch {
	case errors.Is(err, issues.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, validationResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, issues.ErrNotFound):
		writeError(w, http.StatusNotFound, "issue not found")
	case errors.Is(err, issues.ErrInvalidReference):
		writeError(w, http.StatusBadRequest, "invalid user")
	default:
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// readBody reads a bounded request body. An unreadable body is passed on as
// nil so the validator reports it, after the session check has run.
func readBody(w http.ResponseWriter, r *http.Request) []byte {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil
	}
	return data
}

// --- Issues ---

type issueListResponse struct {
	Issues    []*models.Issue `json:"issues"`
	Total     int             `json:"total"`
	Page      int             `json:"page"`
	PageSize  int             `json:"pageSize"`
	PageCount int             `json:"pageCount"`
}

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.issues.List(r.Context(), issues.ListParams{
		Status:   q.Get("status"),
		Page:     q.Get("page"),
		PageSize: q.Get("pageSize"),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issueListResponse{
		Issues:    page.Issues,
		Total:     page.Total,
		Page:      page.Page,
		PageSize:  page.PageSize,
		PageCount: page.PageCount(),
	})
}

func (s *Server) getIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := issues.ParseID(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "issue not found")
		return
	}
	issue, err := s.issues.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := s.issues.Create(r.Context(), auth.TokenFromRequest(r), readBody(w, r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

// updateIssue handles both edits and assignment. An unparseable id resolves
// to not found inside the service, after the session check.
func (s *Server) updateIssue(w http.ResponseWriter, r *http.Request) {
	id, _ := issues.ParseID(r.PathValue("id"))
	issue, err := s.issues.Edit(r.Context(), auth.TokenFromRequest(r), id, readBody(w, r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) deleteIssue(w http.ResponseWriter, r *http.Request) {
	id, _ := issues.ParseID(r.PathValue("id"))
	if err := s.issues.Delete(r.Context(), auth.TokenFromRequest(r), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// --- Users ---

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.issues.ListUsers(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.issues.Summary(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
