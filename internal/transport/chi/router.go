package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kailas-cloud/shakesearch/internal/metrics"
)

const uiPrefix = "/ui"

// RouterConfig holds the router's optional parts.
type RouterConfig struct {
	// APIKeys enables bearer auth on /search when non-empty.
	APIKeys []string
	// ProtectUI puts the /ui routes behind the same bearer auth.
	ProtectUI bool
	// StaticDir is served at "/" when set.
	StaticDir string
	// Mount registers extra routes (the server-rendered UI) on the router.
	Mount func(r chi.Router)
}

// NewRouter builds the HTTP handler: middleware chain, API routes, optional
// UI routes and static files.
func (s *Server) NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	protected := []string{"/search"}
	if cfg.ProtectUI {
		protected = append(protected, uiPrefix)
	}
	r.Use(BearerAuthMiddleware(cfg.APIKeys, protected...))
	r.Use(metrics.Middleware())

	r.Get("/search", s.Search)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	if cfg.Mount != nil {
		cfg.Mount(r)
	}

	if cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeBadRequest, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})

	return r
}
