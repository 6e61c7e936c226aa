package bridge

import (
	"fmt"
	"net/http"

	"github.com/weft-dev/weft/framework/inspect"
	"github.com/weft-dev/weft/framework/ioc"
	"github.com/weft-dev/weft/framework/routing"
	"github.com/weft-dev/weft/framework/typecast"
)

// Route is one registered endpoint. The zero-parameter chainable setters
// adjust response rendering and return the route for fluent registration:
//
//	b.GET("/pets/{id}", getPet,
//	    inspect.Query("id"),
//	    inspect.Inject(),
//	).ContentType("application/xml")
type Route struct {
	bridge      *Bridge
	Method      string
	Pattern     string
	binding     *Binding
	contentType string
	response    *typecast.Schema
}

// ContentType overrides the Content-Type used for scalar and raw results.
func (rt *Route) ContentType(ct string) *Route {
	rt.contentType = ct
	return rt
}

// Response installs an explicit outbound schema. Structured results are
// re-validated against it before rendering; a mismatch is a server defect.
func (rt *Route) Response(s *typecast.Schema) *Route {
	rt.response = s
	return rt
}

// Handle registers fn on method+pattern. Parameter markers follow fn in
// declared order. A malformed registration is a programming defect and
// panics immediately rather than surfacing per request.
func (b *Bridge) Handle(method, pattern string, fn any, params ...inspect.Param) *Route {
	bi, err := b.Bind(fn, params...)
	if err != nil {
		panic(fmt.Sprintf("bridge: route %s %s: %v", method, pattern, err))
	}
	rt := &Route{
		bridge:  b,
		Method:  method,
		Pattern: pattern,
		binding: bi,
	}
	if ret := bi.sig.Returns; ret != nil {
		if s, err := typecast.Classify(ret); err == nil && s.Kind == typecast.KindRecord {
			rt.response = s
		}
	}
	b.Router.Method(method, pattern, rt.serve)
	b.routes = append(b.routes, rt)
	return rt
}

// GET registers a GET endpoint.
func (b *Bridge) GET(pattern string, fn any, params ...inspect.Param) *Route {
	return b.Handle(http.MethodGet, pattern, fn, params...)
}

// POST registers a POST endpoint.
func (b *Bridge) POST(pattern string, fn any, params ...inspect.Param) *Route {
	return b.Handle(http.MethodPost, pattern, fn, params...)
}

// PUT registers a PUT endpoint.
func (b *Bridge) PUT(pattern string, fn any, params ...inspect.Param) *Route {
	return b.Handle(http.MethodPut, pattern, fn, params...)
}

// PATCH registers a PATCH endpoint.
func (b *Bridge) PATCH(pattern string, fn any, params ...inspect.Param) *Route {
	return b.Handle(http.MethodPatch, pattern, fn, params...)
}

// DELETE registers a DELETE endpoint.
func (b *Bridge) DELETE(pattern string, fn any, params ...inspect.Param) *Route {
	return b.Handle(http.MethodDelete, pattern, fn, params...)
}

// serve is the per-request entry: a fresh request context, the middleware
// chain, the bound call, then rendering.
func (rt *Route) serve(w http.ResponseWriter, r *http.Request) {
	c := ioc.NewCtx(rt.bridge.App, r)
	c.SetPathParams(func(name string) (string, bool) {
		return routing.Param(r, name)
	})
	result, err := rt.binding.Invoke(c)
	if err != nil {
		rt.bridge.writeError(w, r, err)
		return
	}
	rt.writeResult(w, r, result)
}
