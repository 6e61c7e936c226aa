package ioc

import (
	"context"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/weft-dev/weft/framework/inspect"
)

// ── Process registry ─────────────────────────────────────────────────────────

type slotState int

const (
	slotPending slotState = iota
	slotReady
)

// slot is one instance cell of the process registry. A slot absent from the
// map is ABSENT; a slot left PENDING by a failed or cancelled construction is
// removed again so a later resolution can retry.
type slot struct {
	state slotState
	value any
	done  chan struct{} // closed when the slot leaves PENDING
}

type hookEntry struct {
	name   string
	module Module
}

// App owns the process-scope registry, the lifecycle hook list, the bean
// factory table, and the middleware chain. One App lives for the whole
// process; it is shared by every in-flight request.
type App struct {
	mu        sync.Mutex
	slots     map[reflect.Type]*slot
	hooks     []hookEntry
	beans     map[reflect.Type]*Bean
	chain     []reflect.Type
	chainSeen map[reflect.Type]bool
	started   bool

	log *zap.Logger
}

// NewApp creates an empty application container. A nil logger disables
// resolver logging.
func NewApp(log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		slots:     make(map[reflect.Type]*slot),
		beans:     make(map[reflect.Type]*Bean),
		chainSeen: make(map[reflect.Type]bool),
		log:       log,
	}
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger { return a.log }

// ── Bean factories ───────────────────────────────────────────────────────────

// Bean is a registered factory consulted instead of a constructor when its
// produced type is resolved.
type Bean struct {
	sig      *inspect.Sig
	produces reflect.Type
}

// Bean registers factory functions. A factory has the shape
// `func(deps...) T` or `func(deps...) (T, error)`; every parameter is
// resolved request-scope when the factory runs.
//
//	app.Bean(func(m *RedisModule) *redis.Client { return m.Client })
func (a *App) Bean(factories ...any) error {
	for _, fn := range factories {
		sig, err := inspect.Signature(fn)
		if err != nil {
			return configf("bean factory: %v", err)
		}
		if sig.Returns == nil {
			return configf("bean factory %T must return a value", fn)
		}
		a.mu.Lock()
		if _, dup := a.beans[sig.Returns]; dup {
			a.mu.Unlock()
			return configf("bean factory for %s registered twice", sig.Returns)
		}
		a.beans[sig.Returns] = &Bean{sig: sig, produces: sig.Returns}
		a.mu.Unlock()
		a.log.Debug("bean registered", zap.String("type", sig.Returns.String()))
	}
	return nil
}

func (a *App) bean(t reflect.Type) *Bean {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.beans[t]
}

// Beans returns the produced types of every registered factory.
func (a *App) Beans() []reflect.Type {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]reflect.Type, 0, len(a.beans))
	for t := range a.beans {
		out = append(out, t)
	}
	return out
}

// ── Middleware chain ─────────────────────────────────────────────────────────

// Use appends middlewares to the request-handling chain, in order. Samples
// are zero values used only for their type:
//
//	app.Use(&middleware.RequestID{}, &middleware.AccessLog{})
func (a *App) Use(samples ...Middleware) {
	for _, s := range samples {
		a.appendMiddleware(reflect.TypeOf(s))
	}
}

// appendMiddleware adds a middleware type to the chain at most once.
// Repeated resolutions of the same middleware, eager pre-scans included,
// must not duplicate the registration.
func (a *App) appendMiddleware(t reflect.Type) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.chainSeen[t] {
		return
	}
	a.chainSeen[t] = true
	a.chain = append(a.chain, t)
}

// MiddlewareChain returns a snapshot of the chain in registration order.
func (a *App) MiddlewareChain() []reflect.Type {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]reflect.Type, len(a.chain))
	copy(out, a.chain)
	return out
}

// ── Process-scope resolution ─────────────────────────────────────────────────

// ResolveModule resolves a process-scope singleton, constructing it and every
// Module it depends on exactly once. Two resolutions of the same type return
// the identical instance.
func (a *App) ResolveModule(ctx context.Context, t reflect.Type) (any, error) {
	return a.resolveModule(ctx, t, map[reflect.Type]bool{})
}

func (a *App) resolveModule(ctx context.Context, t reflect.Type, path map[reflect.Type]bool) (any, error) {
	if !isModuleType(t) {
		return nil, &NotInjectableError{Type: t}
	}

	var sl *slot
	for {
		a.mu.Lock()
		existing, ok := a.slots[t]
		if ok {
			if existing.state == slotReady {
				a.mu.Unlock()
				return existing.value, nil
			}
			// PENDING. Within our own resolution path this is a cycle;
			// otherwise another goroutine is constructing, so wait for the
			// slot to settle (single-flight keyed by type).
			if path[t] {
				a.mu.Unlock()
				return nil, &CircularDependencyError{Type: t}
			}
			done := existing.done
			a.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		sl = &slot{state: slotPending, done: make(chan struct{})}
		a.slots[t] = sl
		started := a.started
		a.mu.Unlock()

		a.log.Debug("autowire module", zap.String("type", t.String()))
		path[t] = true
		inst, err := a.constructModule(ctx, t, path)
		delete(path, t)

		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		mod, _ := inst.(Module)
		if err == nil && started {
			// The app is already running: fire the late module's startup
			// hook before publishing it.
			err = mod.OnStartup(ctx, a)
		}

		a.mu.Lock()
		if err != nil {
			// Reset the slot to ABSENT so a later resolution can retry
			// instead of deadlocking on a permanently-PENDING slot.
			delete(a.slots, t)
			close(sl.done)
			a.mu.Unlock()
			return nil, err
		}
		sl.state = slotReady
		sl.value = inst
		a.hooks = append(a.hooks, hookEntry{name: t.String(), module: mod})
		close(sl.done)
		a.mu.Unlock()
		return inst, nil
	}
}

// constructModule builds a Module by resolving its exported fields. Every
// dependency of a process-scope component must itself be process-scope
// capable.
func (a *App) constructModule(ctx context.Context, t reflect.Type, path map[reflect.Type]bool) (any, error) {
	pv := reflect.New(t.Elem())
	elem := pv.Elem()
	for i := 0; i < t.Elem().NumField(); i++ {
		f := t.Elem().Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}
		switch {
		case f.Type == appType:
			elem.Field(i).Set(reflect.ValueOf(a))
		case isModuleType(f.Type):
			dep, err := a.resolveModule(ctx, f.Type, path)
			if err != nil {
				return nil, err
			}
			elem.Field(i).Set(reflect.ValueOf(dep))
		case f.Type == ctxType, f.Type == requestType, isServiceType(f.Type):
			return nil, configf("module %s depends on request-scope %s", t, f.Type)
		case a.bean(f.Type) != nil:
			return nil, configf("module %s depends on bean-produced %s; beans are request-scope", t, f.Type)
		default:
			// Plain data field, left for the module itself to populate.
		}
	}
	return pv.Interface(), nil
}

// ── Lifecycle ────────────────────────────────────────────────────────────────

// Startup fires OnStartup on every constructed module in registration order.
// The first error aborts startup. Modules constructed after Startup get
// their hook fired at construction time.
func (a *App) Startup(ctx context.Context) error {
	a.mu.Lock()
	a.started = true
	hooks := make([]hookEntry, len(a.hooks))
	copy(hooks, a.hooks)
	a.mu.Unlock()

	for _, h := range hooks {
		a.log.Info("module startup", zap.String("module", h.name))
		if err := h.module.OnStartup(ctx, a); err != nil {
			return configf("startup of %s failed: %v", h.name, err)
		}
	}
	return nil
}

// Shutdown fires OnShutdown hooks in reverse registration order. Errors are
// logged, not propagated: every hook runs.
func (a *App) Shutdown(ctx context.Context) {
	for _, h := range a.reverseHooks() {
		if err := h.module.OnShutdown(ctx, a); err != nil {
			a.log.Error("module shutdown failed", zap.String("module", h.name), zap.Error(err))
		}
	}
}

// Cleanup fires OnCleanup hooks in reverse registration order, after
// Shutdown.
func (a *App) Cleanup(ctx context.Context) {
	for _, h := range a.reverseHooks() {
		if err := h.module.OnCleanup(ctx, a); err != nil {
			a.log.Error("module cleanup failed", zap.String("module", h.name), zap.Error(err))
		}
	}
}

func (a *App) reverseHooks() []hookEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]hookEntry, 0, len(a.hooks))
	for i := len(a.hooks) - 1; i >= 0; i-- {
		out = append(out, a.hooks[i])
	}
	return out
}

// ── Generics helpers ─────────────────────────────────────────────────────────

// ResolveModule is the typed process-scope entry point.
//
//	store, err := ioc.ResolveModule[*StoreModule](ctx, app)
func ResolveModule[T Module](ctx context.Context, a *App) (T, error) {
	var zero T
	v, err := a.ResolveModule(ctx, reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}
