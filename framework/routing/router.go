package routing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router wraps chi.Router. The binder hands it uniform http.HandlerFunc
// values; the router never sees a handler's native signature.
type Router struct {
	mux chi.Router
}

// New creates a Router with the framework defaults (Recoverer, RealIP).
func New() *Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	return &Router{mux: r}
}

// ── Registration ─────────────────────────────────────────────────────────────

// Method registers a handler for one HTTP method and path pattern.
func (r *Router) Method(method, pattern string, h http.HandlerFunc) {
	r.mux.Method(method, pattern, h)
}

func (r *Router) Get(pattern string, h http.HandlerFunc)    { r.mux.Get(pattern, h) }
func (r *Router) Post(pattern string, h http.HandlerFunc)   { r.mux.Post(pattern, h) }
func (r *Router) Put(pattern string, h http.HandlerFunc)    { r.mux.Put(pattern, h) }
func (r *Router) Patch(pattern string, h http.HandlerFunc)  { r.mux.Patch(pattern, h) }
func (r *Router) Delete(pattern string, h http.HandlerFunc) { r.mux.Delete(pattern, h) }

// Mount attaches a plain http.Handler subtree, e.g. a metrics endpoint.
func (r *Router) Mount(pattern string, h http.Handler) { r.mux.Mount(pattern, h) }

// Prefix creates a sub-router under a URL prefix.
func (r *Router) Prefix(pattern string, fn func(r *Router)) {
	r.mux.Route(pattern, func(mx chi.Router) {
		fn(&Router{mux: mx})
	})
}

// Use adds transport-level middleware (func(http.Handler) http.Handler).
// Request-scope weft middlewares are registered on the Bridge instead.
func (r *Router) Use(mw ...func(http.Handler) http.Handler) {
	r.mux.Use(mw...)
}

// ── Params ───────────────────────────────────────────────────────────────────

// Param extracts a path-template variable and whether it was present in the
// matched pattern.
func Param(req *http.Request, key string) (string, bool) {
	rctx := chi.RouteContext(req.Context())
	if rctx == nil {
		return "", false
	}
	for i, k := range rctx.URLParams.Keys {
		if k == key {
			return rctx.URLParams.Values[i], true
		}
	}
	return "", false
}

// ── Serve ────────────────────────────────────────────────────────────────────

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handler returns the underlying http.Handler.
func (r *Router) Handler() http.Handler { return r.mux }
