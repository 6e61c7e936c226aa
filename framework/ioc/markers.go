package ioc

import (
	"context"
	"net/http"
	"reflect"
)

// The injectable capability markers form a closed set, decided at compile
// time by which interface a component implements. Resolution never falls back
// to structural checks: a type that carries no marker is not injectable.

// Module is a process-scope singleton with lifecycle hooks. It lives for the
// application's lifetime and may only depend on other Modules (or the App).
type Module interface {
	OnStartup(ctx context.Context, app *App) error
	OnCleanup(ctx context.Context, app *App) error
	OnShutdown(ctx context.Context, app *App) error
}

// BaseModule is an embeddable no-op Module. Embed it and override only the
// hooks you need.
//
//	type RedisModule struct {
//	    ioc.BaseModule
//	    Client *redis.Client
//	}
type BaseModule struct{}

func (BaseModule) OnStartup(context.Context, *App) error  { return nil }
func (BaseModule) OnCleanup(context.Context, *App) error  { return nil }
func (BaseModule) OnShutdown(context.Context, *App) error { return nil }

// Service is a request-scope singleton: one instance per request/response
// cycle. The marker method is unexported on purpose; embed BaseService to
// opt in.
type Service interface {
	injectable()
}

// BaseService is the embeddable Service marker.
type BaseService struct{}

func (BaseService) injectable() {}

// Next continues the request-handling chain from inside a middleware.
type Next func() (any, error)

// Middleware is a request-scope component that wraps the handler call. It is
// resolved per request like any Service, and appended to the application's
// middleware chain exactly once, no matter how often it is resolved.
type Middleware interface {
	Service
	OnRequest(c *Ctx, next Next) (any, error)
}

// ── Capability checks ────────────────────────────────────────────────────────

var (
	moduleIface     = reflect.TypeOf((*Module)(nil)).Elem()
	serviceIface    = reflect.TypeOf((*Service)(nil)).Elem()
	middlewareIface = reflect.TypeOf((*Middleware)(nil)).Elem()

	appType     = reflect.TypeOf((*App)(nil))
	ctxType     = reflect.TypeOf((*Ctx)(nil))
	requestType = reflect.TypeOf((*http.Request)(nil))
)

func isModuleType(t reflect.Type) bool {
	return t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct &&
		t.Implements(moduleIface)
}

func isServiceType(t reflect.Type) bool {
	return t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct &&
		t.Implements(serviceIface)
}

func isMiddlewareType(t reflect.Type) bool {
	return t.Implements(middlewareIface)
}
