package ioc_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-dev/weft/framework/ioc"
)

// ── fixtures ─────────────────────────────────────────────────────────────────

type calls struct {
	mu  sync.Mutex
	log []string
}

func (c *calls) add(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, s)
}

func (c *calls) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.log...)
}

var trace = &calls{}

type StoreModule struct {
	ioc.BaseModule
	Ready bool
}

func (m *StoreModule) OnStartup(ctx context.Context, app *ioc.App) error {
	m.Ready = true
	trace.add("store.startup")
	return nil
}

func (m *StoreModule) OnShutdown(ctx context.Context, app *ioc.App) error {
	trace.add("store.shutdown")
	return nil
}

func (m *StoreModule) OnCleanup(ctx context.Context, app *ioc.App) error {
	trace.add("store.cleanup")
	return nil
}

type CacheModule struct {
	ioc.BaseModule
	Store *StoreModule
}

func (m *CacheModule) OnStartup(ctx context.Context, app *ioc.App) error {
	trace.add("cache.startup")
	return nil
}

func (m *CacheModule) OnShutdown(ctx context.Context, app *ioc.App) error {
	trace.add("cache.shutdown")
	return nil
}

type AccountService struct {
	ioc.BaseService
	Store *StoreModule
}

type OrderService struct {
	ioc.BaseService
	Accounts *AccountService
}

// cyclic pair
type PingService struct {
	ioc.BaseService
	Pong *PongService
}

type PongService struct {
	ioc.BaseService
	Ping *PingService
}

type cyclicModuleA struct {
	ioc.BaseModule
	B *cyclicModuleB
}

type cyclicModuleB struct {
	ioc.BaseModule
	A *cyclicModuleA
}

type tagMW struct {
	ioc.BaseService
	tag string
}

func (m *tagMW) OnRequest(c *ioc.Ctx, next ioc.Next) (any, error) {
	return next()
}

func newCtx(app *ioc.App) *ioc.Ctx {
	return ioc.NewCtx(app, httptest.NewRequest("GET", "/", nil))
}

// ── process scope ────────────────────────────────────────────────────────────

func TestResolveModule_Identity(t *testing.T) {
	app := ioc.NewApp(nil)
	ctx := context.Background()

	a, err := ioc.ResolveModule[*StoreModule](ctx, app)
	require.NoError(t, err)
	b, err := ioc.ResolveModule[*StoreModule](ctx, app)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestResolveModule_DependencyShared(t *testing.T) {
	app := ioc.NewApp(nil)
	ctx := context.Background()

	cache, err := ioc.ResolveModule[*CacheModule](ctx, app)
	require.NoError(t, err)
	store, err := ioc.ResolveModule[*StoreModule](ctx, app)
	require.NoError(t, err)
	assert.Same(t, store, cache.Store)
}

func TestResolveModule_Cycle(t *testing.T) {
	app := ioc.NewApp(nil)

	_, err := ioc.ResolveModule[*cyclicModuleA](context.Background(), app)
	var cdep *ioc.CircularDependencyError
	require.ErrorAs(t, err, &cdep)
}

func TestResolveModule_NotAModule(t *testing.T) {
	app := ioc.NewApp(nil)
	c := newCtx(app)

	// A module may not depend on request-scope components.
	type badModule struct {
		ioc.BaseModule
		Accounts *AccountService
	}
	_, err := app.ResolveModule(context.Background(), typeOf[*badModule]())
	var cfg *ioc.ConfigError
	require.ErrorAs(t, err, &cfg)

	// And a plain struct is not injectable at all.
	type plain struct{ X int }
	_, err = c.Resolve(typeOf[*plain]())
	var ninj *ioc.NotInjectableError
	require.ErrorAs(t, err, &ninj)
}

func TestResolveModule_ConcurrentSingleFlight(t *testing.T) {
	app := ioc.NewApp(nil)
	ctx := context.Background()

	const n = 16
	out := make([]*StoreModule, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out[i], errs[i] = ioc.ResolveModule[*StoreModule](ctx, app)
		}(i)
	}
	wg.Wait()
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
	}
	for i := 1; i < n; i++ {
		assert.Same(t, out[0], out[i])
	}
}

type flakyModule struct {
	ioc.BaseModule
}

var flakyFail = true

func (m *flakyModule) OnStartup(ctx context.Context, app *ioc.App) error {
	if flakyFail {
		return errors.New("not yet")
	}
	return nil
}

func TestResolveModule_FailureResetsSlot(t *testing.T) {
	app := ioc.NewApp(nil)
	ctx := context.Background()
	require.NoError(t, app.Startup(ctx))

	// Late module: OnStartup fires at construction and fails, leaving the
	// slot absent so the next resolution retries.
	flakyFail = true
	_, err := ioc.ResolveModule[*flakyModule](ctx, app)
	require.Error(t, err)

	flakyFail = false
	m, err := ioc.ResolveModule[*flakyModule](ctx, app)
	require.NoError(t, err)
	require.NotNil(t, m)
}

func TestResolveModule_CancelledContext(t *testing.T) {
	app := ioc.NewApp(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ioc.ResolveModule[*StoreModule](ctx, app)
	require.ErrorIs(t, err, context.Canceled)

	// The failed construction must not poison the registry.
	m, err := ioc.ResolveModule[*StoreModule](context.Background(), app)
	require.NoError(t, err)
	require.NotNil(t, m)
}

// ── lifecycle ────────────────────────────────────────────────────────────────

func TestLifecycle_Order(t *testing.T) {
	trace = &calls{}
	app := ioc.NewApp(nil)
	ctx := context.Background()

	_, err := ioc.ResolveModule[*CacheModule](ctx, app)
	require.NoError(t, err)

	require.NoError(t, app.Startup(ctx))
	app.Shutdown(ctx)
	app.Cleanup(ctx)

	// Construction order is dependency-first, teardown reversed.
	assert.Equal(t, []string{
		"store.startup", "cache.startup",
		"cache.shutdown", "store.shutdown",
		"store.cleanup",
	}, trace.list())
}

func TestLifecycle_LateModuleStartsOnConstruction(t *testing.T) {
	trace = &calls{}
	app := ioc.NewApp(nil)
	ctx := context.Background()
	require.NoError(t, app.Startup(ctx))

	m, err := ioc.ResolveModule[*StoreModule](ctx, app)
	require.NoError(t, err)
	assert.True(t, m.Ready)
	assert.Equal(t, []string{"store.startup"}, trace.list())
}

// ── request scope ────────────────────────────────────────────────────────────

func TestCtxResolve_MemoizesWithinRequest(t *testing.T) {
	app := ioc.NewApp(nil)
	c := newCtx(app)

	a, err := ioc.Resolve[*AccountService](c)
	require.NoError(t, err)
	b, err := ioc.Resolve[*AccountService](c)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestCtxResolve_FreshAcrossRequests(t *testing.T) {
	app := ioc.NewApp(nil)

	a, err := ioc.Resolve[*AccountService](newCtx(app))
	require.NoError(t, err)
	b, err := ioc.Resolve[*AccountService](newCtx(app))
	require.NoError(t, err)
	assert.NotSame(t, a, b)

	// The process-scope dependency is still the same instance.
	assert.Same(t, a.Store, b.Store)
}

func TestCtxResolve_NestedServices(t *testing.T) {
	app := ioc.NewApp(nil)
	c := newCtx(app)

	o, err := ioc.Resolve[*OrderService](c)
	require.NoError(t, err)
	require.NotNil(t, o.Accounts)

	a, err := ioc.Resolve[*AccountService](c)
	require.NoError(t, err)
	assert.Same(t, a, o.Accounts)
}

func TestCtxResolve_Cycle(t *testing.T) {
	app := ioc.NewApp(nil)

	_, err := ioc.Resolve[*PingService](newCtx(app))
	var cdep *ioc.CircularDependencyError
	require.ErrorAs(t, err, &cdep)
}

func TestCtxResolve_Passthrough(t *testing.T) {
	app := ioc.NewApp(nil)
	c := newCtx(app)

	got, err := ioc.Resolve[*ioc.Ctx](c)
	require.NoError(t, err)
	assert.Same(t, c, got)

	gotApp, err := ioc.Resolve[*ioc.App](c)
	require.NoError(t, err)
	assert.Same(t, app, gotApp)
}

// ── beans ────────────────────────────────────────────────────────────────────

type dbHandle struct{ dsn string }

func TestBean_ResolvedAndMemoized(t *testing.T) {
	app := ioc.NewApp(nil)
	built := 0
	require.NoError(t, app.Bean(func(m *StoreModule) *dbHandle {
		built++
		return &dbHandle{dsn: "mem://"}
	}))

	c := newCtx(app)
	a, err := ioc.Resolve[*dbHandle](c)
	require.NoError(t, err)
	b, err := ioc.Resolve[*dbHandle](c)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, built)
}

func TestBean_DuplicateRejected(t *testing.T) {
	app := ioc.NewApp(nil)
	require.NoError(t, app.Bean(func() *dbHandle { return nil }))

	err := app.Bean(func() *dbHandle { return nil })
	var cfg *ioc.ConfigError
	require.ErrorAs(t, err, &cfg)
}

func TestBean_FactoryError(t *testing.T) {
	app := ioc.NewApp(nil)
	boom := errors.New("boom")
	require.NoError(t, app.Bean(func() (*dbHandle, error) { return nil, boom }))

	_, err := ioc.Resolve[*dbHandle](newCtx(app))
	require.ErrorIs(t, err, boom)

	// The failed slot resets, so the factory runs again next time.
	_, err = ioc.Resolve[*dbHandle](newCtx(app))
	require.ErrorIs(t, err, boom)
}

// ── middleware chain ─────────────────────────────────────────────────────────

func TestMiddleware_DedupedInChain(t *testing.T) {
	app := ioc.NewApp(nil)
	app.Use(&tagMW{})
	app.Use(&tagMW{})
	assert.Len(t, app.MiddlewareChain(), 1)

	// Resolving it again must not re-append either.
	_, err := ioc.Resolve[*tagMW](newCtx(app))
	require.NoError(t, err)
	assert.Len(t, app.MiddlewareChain(), 1)
}

func TestMiddleware_JoinsChainOnFirstConstruction(t *testing.T) {
	app := ioc.NewApp(nil)
	assert.Empty(t, app.MiddlewareChain())

	_, err := ioc.Resolve[*tagMW](newCtx(app))
	require.NoError(t, err)
	assert.Len(t, app.MiddlewareChain(), 1)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
