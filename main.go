package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/weft-dev/weft/app"
	"github.com/weft-dev/weft/framework/bridge"
	"github.com/weft-dev/weft/framework/event"
	"github.com/weft-dev/weft/framework/inspect"
	"github.com/weft-dev/weft/framework/ioc"
	"github.com/weft-dev/weft/framework/middleware"
	"github.com/weft-dev/weft/framework/typecast"
)

func main() {
	b, err := bridge.New("config.yml", ".env")
	if err != nil {
		panic(err)
	}
	log := b.Log

	// ── Middlewares ──────────────────────────────────────────────────────────

	b.Middlewares(
		&middleware.RequestID{},
		&middleware.AccessLog{},
		&middleware.Metrics{},
		&app.NormalizeNames{},
	)

	// ── Beans ────────────────────────────────────────────────────────────────

	em := event.New(b)
	if err := b.Beans(func() *event.Emitter { return em }); err != nil {
		log.Fatal("bean registration", zap.Error(err))
	}

	// ── Routes ───────────────────────────────────────────────────────────────

	b.POST("/pets", func(p app.NewPet, svc *app.PetService, em *event.Emitter, c *ioc.Ctx) (app.Pet, error) {
		pet := svc.Create(p)
		if _, err := em.Emit(c.Request().Context(), "pets/created", pet); err != nil {
			return app.Pet{}, err
		}
		return pet, nil
	},
		inspect.Body("pet"),
		inspect.Inject(),
		inspect.Inject(),
		inspect.Inject(),
	)

	b.GET("/pets", func(status *app.PetStatus, svc *app.PetService) []app.Pet {
		return svc.List(status)
	},
		inspect.Query("status", inspect.Default(nil)),
		inspect.Inject(),
	)

	b.GET("/pets/{id}", func(id int, svc *app.PetService) (app.Pet, error) {
		return svc.Get(id)
	},
		inspect.Query("id"),
		inspect.Inject(),
	)

	b.PATCH("/pets/{id}/status", func(id int, status app.PetStatus, svc *app.PetService) (app.Pet, error) {
		return svc.SetStatus(id, status)
	},
		inspect.Query("id"),
		inspect.Query("status"),
		inspect.Inject(),
	)

	b.DELETE("/pets/{id}", func(id int, svc *app.PetService) error {
		return svc.Delete(id)
	},
		inspect.Query("id"),
		inspect.Inject(),
	)

	// Accepts a single ID or a comma-separated list of IDs.
	b.POST("/pets/batch-check", func(ids any, svc *app.PetService) ([]app.Pet, error) {
		var list []int
		switch v := ids.(type) {
		case int:
			list = []int{v}
		case []int:
			list = v
		}
		out := make([]app.Pet, 0, len(list))
		for _, id := range list {
			p, err := svc.Get(id)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	},
		inspect.Body("ids", inspect.Schema(typecast.Union(typecast.Int(), typecast.List(typecast.Int())))),
		inspect.Inject(),
	)

	// ── Events ───────────────────────────────────────────────────────────────

	err = em.OnBackground("pets/created", func(pet app.Pet, l *zap.Logger) {
		l.Info("pet created event", zap.Int("id", pet.ID), zap.String("name", pet.Name))
	},
		inspect.Body("pet"),
		inspect.Inject(),
	)
	if err != nil {
		log.Fatal("event subscription", zap.Error(err))
	}

	// ── Metrics endpoint ─────────────────────────────────────────────────────

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics, err := ioc.ResolveModule[*middleware.MetricsModule](ctx, b.App)
	if err != nil {
		log.Fatal("metrics module", zap.Error(err))
	}
	b.Router.Mount("/metrics", metrics.Handler())

	if err := b.Run(ctx); err != nil {
		log.Fatal("server", zap.Error(err))
	}
}
