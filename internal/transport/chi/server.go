package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shakesearch/internal/domain"
	logpkg "github.com/kailas-cloud/shakesearch/internal/logger"
	healthuc "github.com/kailas-cloud/shakesearch/internal/usecase/health"
)

// Error codes returned in JSON error bodies.
const (
	codeBadRequest        = "bad_request"
	codeInvalidQuery      = "invalid_query"
	codeInvalidOffset     = "invalid_offset"
	codeCorpusUnavailable = "corpus_unavailable"
	codeUnauthorized      = "unauthorized"
	codeInternalError     = "internal_error"
)

// Searcher pages through corpus matches.
type Searcher interface {
	Search(ctx context.Context, query string, offset int) (domain.Page, error)
}

// errorResponse is the JSON body of every API error.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// healthResponse is the JSON body of GET /health.
type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the search API.
type Server struct {
	search        Searcher
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, health *healthuc.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		search: search,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		queryErrorHandler,
		sentinelHandler(domain.ErrInvalidOffset, http.StatusBadRequest, codeInvalidOffset),
		sentinelHandler(domain.ErrCorpusUnavailable, http.StatusServiceUnavailable, codeCorpusUnavailable),
	}
	return s
}

// Search handles GET /search?q=...&offset=...
// The body is a JSON array of result previews; X-Has-More reports whether
// another page exists.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	query, ok := params["q"]
	if !ok || len(query[0]) < 1 {
		writeError(w, http.StatusBadRequest, codeInvalidQuery, "missing search query in URL params")
		return
	}

	offset := 0
	if raw, ok := params["offset"]; ok {
		n, err := strconv.Atoi(raw[0])
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, codeInvalidOffset, "invalid offset in URL params")
			return
		}
		offset = n
	}

	page, err := s.search.Search(r.Context(), query[0], offset)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	items := page.Items
	if items == nil {
		items = []string{}
	}
	w.Header().Set(domain.HasMoreHeader, strconv.FormatBool(page.HasMore))
	writeJSON(w, http.StatusOK, items)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// sentinelHandler creates a handler for a sentinel error with a fixed status and code.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// queryErrorHandler reports the rejection reason of an invalid query.
func queryErrorHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrInvalidQuery) {
		return false
	}
	msg := domain.ErrInvalidQuery.Error()
	var qe *domain.QueryError
	if errors.As(err, &qe) {
		msg = qe.Error()
	}
	writeError(w, http.StatusBadRequest, codeInvalidQuery, msg)
	return true
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logpkg.FromContext(ctx)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Debug("domain error", zap.Error(err))
			return
		}
	}
	if errors.Is(err, context.Canceled) {
		// Client went away; nothing useful to write.
		return
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
