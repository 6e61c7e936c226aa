// Package bridge wires the dependency container, the coercion engine, and
// the router into one application surface.
//
//	b, err := bridge.New("config.yml")
//	if err != nil { ... }
//	b.POST("/pets", createPet, inspect.Body("pet"), inspect.Inject())
//	if err := b.Run(context.Background()); err != nil { ... }
package bridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	"go.uber.org/zap"

	"github.com/weft-dev/weft/framework/config"
	"github.com/weft-dev/weft/framework/inspect"
	"github.com/weft-dev/weft/framework/ioc"
	"github.com/weft-dev/weft/framework/logging"
	"github.com/weft-dev/weft/framework/routing"
)

// Bridge owns the process-level pieces of an application: the container, the
// router, configuration and the root logger.
type Bridge struct {
	App    *ioc.App
	Router *routing.Router
	Config *config.Config
	Log    *zap.Logger

	routes []*Route
}

// New loads configuration, builds the root logger, and prepares an empty
// container. The configuration and logger are registered as beans so any
// service or handler can take them as dependencies.
func New(configPath string, envFiles ...string) (*Bridge, error) {
	cfg, err := config.Load(configPath, envFiles...)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg)
	if err != nil {
		return nil, err
	}
	b := &Bridge{
		App:    ioc.NewApp(log),
		Router: routing.New(),
		Config: cfg,
		Log:    log,
	}
	err = b.App.Bean(
		func() *config.Config { return cfg },
		func() *zap.Logger { return log },
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Beans registers bean factories on the container.
func (b *Bridge) Beans(factories ...any) error { return b.App.Bean(factories...) }

// Middlewares appends middlewares to the global chain in the given order.
func (b *Bridge) Middlewares(samples ...ioc.Middleware) { b.App.Use(samples...) }

// Preflight eagerly constructs everything the registered routes can reach:
// every chained middleware, every bean, and every injected route parameter,
// against a synthetic request. Wiring mistakes surface here, before the
// listener opens, instead of on the first live request.
func (b *Bridge) Preflight(ctx context.Context) error {
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	c := ioc.NewCtx(b.App, req)

	for _, t := range b.App.MiddlewareChain() {
		if _, err := c.Resolve(t); err != nil {
			return err
		}
	}
	for _, t := range b.App.Beans() {
		if _, err := c.Resolve(t); err != nil {
			return err
		}
	}
	for _, rt := range b.routes {
		for _, p := range rt.binding.sig.Params {
			if p.Kind != inspect.KindInject {
				continue
			}
			if _, err := c.Resolve(p.Type); err != nil {
				return err
			}
		}
	}
	return nil
}

// Run starts the HTTP server and blocks until ctx is cancelled, then drains
// in-flight requests and walks the container's shutdown and cleanup hooks.
// The listen address comes from the "bootstrap.port" configuration key.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.Preflight(ctx); err != nil {
		return err
	}
	if err := b.App.Startup(ctx); err != nil {
		return err
	}

	addr := ":" + b.Config.String("bootstrap.port", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           b.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		b.Log.Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	case <-ctx.Done():
		drain, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		srv.Shutdown(drain)
		cancel()
	}

	stop, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	b.App.Shutdown(stop)
	b.App.Cleanup(stop)
	b.Log.Sync()
	return runErr
}
