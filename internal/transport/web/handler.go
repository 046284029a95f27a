// Package web serves the server-rendered search page. Each browser gets its
// own session controller, keyed by a cookie and held in an expiring LRU.
package web

import (
	"context"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shakesearch/internal/domain"
	logpkg "github.com/kailas-cloud/shakesearch/internal/logger"
	"github.com/kailas-cloud/shakesearch/internal/metrics"
	"github.com/kailas-cloud/shakesearch/internal/render"
	"github.com/kailas-cloud/shakesearch/internal/session"
)

const (
	cookieName = "shakesearch_session"
	basePath   = "/ui"

	// QueryField is the form field carrying the search text.
	QueryField = "q"

	defaultTTL         = 30 * time.Minute
	defaultMaxSessions = 10000
)

// Searcher pages through corpus matches.
type Searcher interface {
	Search(ctx context.Context, query string, offset int) (domain.Page, error)
}

// Config configures the session store.
type Config struct {
	SessionTTL  time.Duration
	MaxSessions int
}

// uiSession is one browser's search state.
type uiSession struct {
	form *session.Form
	view *render.HTML
	ctrl *session.Controller
}

// Handler serves GET /ui, POST /ui/search and POST /ui/more.
type Handler struct {
	fetcher  session.Fetcher
	sessions *expirable.LRU[string, *uiSession]
	ttl      time.Duration
	logger   *zap.Logger
}

// NewHandler creates a web UI handler backed by an in-process searcher.
func NewHandler(search Searcher, cfg Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultTTL
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = defaultMaxSessions
	}

	h := &Handler{
		fetcher: searchFetcher{search: search},
		ttl:     cfg.SessionTTL,
		logger:  logger,
	}
	h.sessions = expirable.NewLRU(cfg.MaxSessions, h.onEvict, cfg.SessionTTL)
	return h
}

// Mount registers the UI routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get(basePath, h.Page)
	r.Post(basePath+"/search", h.Submit)
	r.Post(basePath+"/more", h.LoadMore)
}

// Close drops every session and cancels their in-flight requests.
func (h *Handler) Close() {
	h.sessions.Purge()
}

// Page handles GET /ui: the form, the accumulated results and, when more
// pages exist, the load-more button.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, h.session(w, r))
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, s *uiSession) {
	data := pageData{
		Query: s.form.Get(QueryField),
		Frag:  s.view.Fragment(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTmpl.Execute(w, data); err != nil {
		logpkg.FromContext(r.Context()).Error("render page", zap.Error(err))
	}
}

// Submit handles the search form.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	s := h.session(w, r)
	s.form.Replace(r.PostForm)

	ev := &formEvent{}
	if err := s.ctrl.HandleSubmit(r.Context(), ev); err != nil {
		logpkg.FromContext(r.Context()).Debug("search failed", zap.Error(err))
	}
	h.respond(w, r, s, ev)
}

// LoadMore handles the load-more button.
func (h *Handler) LoadMore(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)

	// The button posts a form; its navigation is replaced by the redirect.
	ev := &formEvent{}
	ev.PreventDefault()
	if err := s.ctrl.HandleLoadMore(r.Context(), ev); err != nil {
		logpkg.FromContext(r.Context()).Debug("load more failed", zap.Error(err))
	}
	h.respond(w, r, s, ev)
}

// respond redirects back to the page when the controller suppressed the
// form's own navigation, and renders in place otherwise.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, s *uiSession, ev *formEvent) {
	if ev.prevented {
		http.Redirect(w, r, basePath, http.StatusSeeOther)
		return
	}
	h.renderPage(w, r, s)
}

// session returns the caller's session, creating one when the cookie is
// missing, malformed or expired. Every hit renews the session TTL and the
// cookie, so the TTL counts from the last request.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) *uiSession {
	if c, err := r.Cookie(cookieName); err == nil {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			if s, ok := h.sessions.Get(c.Value); ok {
				// Add on an existing key renews its expiry without eviction.
				h.sessions.Add(c.Value, s)
				h.setCookie(w, c.Value)
				return s
			}
		}
	}

	id := uuid.NewString()
	s := h.newSession(id)
	h.sessions.Add(id, s)
	metrics.SessionsActive.Inc()
	h.setCookie(w, id)

	logpkg.FromContext(r.Context()).Debug("session created", zap.String("session_id", id))
	return s
}

func (h *Handler) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    id,
		Path:     basePath,
		MaxAge:   int(h.ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) newSession(id string) *uiSession {
	form := session.NewForm(url.Values{})
	view := render.NewHTML()
	ctrl := session.New(h.fetcher, form, view,
		session.WithLogger(h.logger.With(zap.String("session_id", id))),
	)
	return &uiSession{form: form, view: view, ctrl: ctrl}
}

func (h *Handler) onEvict(id string, s *uiSession) {
	s.ctrl.Close()
	metrics.SessionsActive.Dec()
	h.logger.Debug("session evicted", zap.String("session_id", id))
}

// formEvent records whether the controller suppressed the default
// form navigation.
type formEvent struct {
	prevented bool
}

func (e *formEvent) PreventDefault() { e.prevented = true }

// searchFetcher adapts the search use case to the session Fetcher.
type searchFetcher struct {
	search Searcher
}

func (f searchFetcher) Fetch(ctx context.Context, query url.Values, offset int) (domain.Page, error) {
	q := query.Get(QueryField)
	if q == "" {
		return domain.Page{}, domain.NewQueryError("missing search query")
	}
	page, err := f.search.Search(ctx, q, offset)
	if err != nil {
		return domain.Page{}, err //nolint:wrapcheck // controller wraps with the operation name
	}
	return page, nil
}

type pageData struct {
	Query string
	Frag  render.Fragment
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>ShakeSearch</title>
</head>
<body>
<h1>ShakeSearch</h1>
<form id="form" method="post" action="/ui/search">
<input type="text" id="query" name="q" value="{{.Query}}" autofocus>
<button type="submit">Search</button>
</form>
{{if .Frag.Error}}<p id="error" role="alert">{{.Frag.Error}}</p>{{end}}
<table>
<tbody id="table-body">{{.Frag.Rows}}</tbody>
</table>
{{if .Frag.HasMore}}<form id="load-more" method="post" action="/ui/more">
<button type="submit">Load more</button>
</form>{{end}}
</body>
</html>
`))
