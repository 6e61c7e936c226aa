package ioc

import (
	"io"
	"net/http"
	"net/url"
	"reflect"

	"go.uber.org/zap"
)

// ── Request registry ─────────────────────────────────────────────────────────

// reqSlot mirrors the process-registry slot states for one request. The Ctx
// is owned by a single goroutine, so no locking is needed here.
type reqSlot struct {
	pending bool
	value   any
}

// Ctx is the per-request context: the request-scope registry, the request
// data stack, and access to the inbound request. It is discarded in full
// when the response is produced.
type Ctx struct {
	app       *App
	req       *http.Request
	pathParam func(name string) (string, bool)
	query     url.Values

	stack    []any
	slots    map[reflect.Type]*reqSlot
	body     []byte
	bodyRead bool
}

// NewCtx builds the context for one inbound request.
func NewCtx(app *App, req *http.Request) *Ctx {
	return &Ctx{
		app:   app,
		req:   req,
		slots: make(map[reflect.Type]*reqSlot),
	}
}

// App returns the owning application container.
func (c *Ctx) App() *App { return c.app }

// Request returns the raw inbound request.
func (c *Ctx) Request() *http.Request { return c.req }

// SetPathParams installs the router's path-template variable lookup.
func (c *Ctx) SetPathParams(fn func(name string) (string, bool)) { c.pathParam = fn }

// PathParam returns a path-template variable.
func (c *Ctx) PathParam(name string) (string, bool) {
	if c.pathParam == nil {
		return "", false
	}
	return c.pathParam(name)
}

// QueryParam returns a query-string variable.
func (c *Ctx) QueryParam(name string) (string, bool) {
	if c.query == nil {
		c.query = c.req.URL.Query()
	}
	vs, ok := c.query[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// Header returns a request header value.
func (c *Ctx) Header(name string) string { return c.req.Header.Get(name) }

// ── Request data stack ───────────────────────────────────────────────────────

// PushPayload appends one pre-transformed payload onto the request data
// stack. Pushed values must already be in the representation the next body
// parameter expects: JSON text ([]byte or string) or a parsed JSON tree.
// Push order is consumed in reverse (last pushed, first consumed).
func (c *Ctx) PushPayload(v any) { c.stack = append(c.stack, v) }

// PopPayload removes and returns the most recently pushed payload.
func (c *Ctx) PopPayload() (any, bool) {
	if len(c.stack) == 0 {
		return nil, false
	}
	v := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return v, true
}

// ReadBody reads the raw request payload. The body is read at most once per
// request.
func (c *Ctx) ReadBody() ([]byte, error) {
	if c.bodyRead {
		return c.body, nil
	}
	if c.req.Body == nil {
		c.bodyRead = true
		return nil, nil
	}
	b, err := io.ReadAll(c.req.Body)
	if err != nil {
		return nil, err
	}
	c.bodyRead = true
	c.body = b
	return b, nil
}

// ── Request-scope resolution ─────────────────────────────────────────────────

// Resolve builds or returns the request-scope instance of t. The checks run
// in a fixed order: the context itself, a registered bean factory, a
// process-scope Module (delegated to the App), then a Service or Middleware
// constructed against this request's registry.
func (c *Ctx) Resolve(t reflect.Type) (any, error) {
	switch t {
	case ctxType:
		return c, nil
	case requestType:
		return c.req, nil
	case appType:
		return c.app, nil
	}

	if b := c.app.bean(t); b != nil {
		return c.memoized(t, func() (any, error) { return c.invokeBean(b) })
	}

	if isModuleType(t) {
		return c.app.ResolveModule(c.req.Context(), t)
	}

	if !isServiceType(t) {
		return nil, &NotInjectableError{Type: t}
	}
	return c.memoized(t, func() (any, error) { return c.construct(t) })
}

// memoized applies the slot discipline to the request registry: READY is
// identity-preserving, PENDING on re-entry is a cycle.
func (c *Ctx) memoized(t reflect.Type, build func() (any, error)) (any, error) {
	if sl, ok := c.slots[t]; ok {
		if sl.pending {
			return nil, &CircularDependencyError{Type: t}
		}
		return sl.value, nil
	}
	sl := &reqSlot{pending: true}
	c.slots[t] = sl
	v, err := build()
	if err != nil {
		delete(c.slots, t)
		return nil, err
	}
	sl.pending = false
	sl.value = v
	return v, nil
}

func (c *Ctx) invokeBean(b *Bean) (any, error) {
	args := make([]reflect.Value, len(b.sig.Params))
	for i, p := range b.sig.Params {
		dep, err := c.Resolve(p.Type)
		if err != nil {
			return nil, err
		}
		av, err := b.sig.Arg(i, dep)
		if err != nil {
			return nil, configf("bean %s: %v", b.produces, err)
		}
		args[i] = av
	}
	return b.sig.Call(args)
}

// construct autowires a Service or Middleware through its exported fields.
func (c *Ctx) construct(t reflect.Type) (any, error) {
	c.app.log.Debug("autowire", zap.String("type", t.String()))
	pv := reflect.New(t.Elem())
	elem := pv.Elem()
	for i := 0; i < t.Elem().NumField(); i++ {
		f := t.Elem().Field(i)
		if !f.IsExported() || f.Anonymous || !c.injectableField(f.Type) {
			continue
		}
		dep, err := c.Resolve(f.Type)
		if err != nil {
			return nil, err
		}
		elem.Field(i).Set(reflect.ValueOf(dep))
	}
	inst := pv.Interface()
	if isMiddlewareType(t) {
		// A middleware joins the active chain the first time it is built,
		// and only once across repeated resolutions.
		c.app.appendMiddleware(t)
	}
	return inst, nil
}

func (c *Ctx) injectableField(t reflect.Type) bool {
	switch t {
	case ctxType, requestType, appType:
		return true
	}
	return c.app.bean(t) != nil || isModuleType(t) || isServiceType(t)
}

// Resolve is the typed request-scope entry point.
//
//	svc, err := ioc.Resolve[*PetService](c)
func Resolve[T any](c *Ctx) (T, error) {
	var zero T
	v, err := c.Resolve(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}
