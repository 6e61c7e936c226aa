// Package event delivers in-process events through the same binding pipeline
// as HTTP requests. A subscriber is an ordinary handler; the emitted payload
// arrives as its body parameter and the global middleware chain applies.
package event

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/weft-dev/weft/framework/bridge"
	"github.com/weft-dev/weft/framework/inspect"
	"github.com/weft-dev/weft/framework/ioc"
	"github.com/weft-dev/weft/framework/routing"
)

const pathPrefix = "/__event__/"

// Emitter routes emitted events to their subscribers. Event names are route
// patterns, so a subscriber may declare template variables and bind them as
// query parameters:
//
//	em.On("pets/{id}/renamed", onRenamed,
//	    inspect.Body("change"),
//	    inspect.Query("id"),
//	)
//	em.Emit(ctx, "pets/7/renamed", change)
type Emitter struct {
	bridge *bridge.Bridge
	mux    *chi.Mux
}

// New builds an emitter bound to the application's container and middleware
// chain.
func New(b *bridge.Bridge) *Emitter {
	return &Emitter{bridge: b, mux: chi.NewMux()}
}

type delivery struct {
	matched bool
	result  any
	err     error
}

type deliveryKey struct{}

// On subscribes fn to an event pattern. Delivery is synchronous: Emit
// returns the subscriber's result.
func (e *Emitter) On(event string, fn any, params ...inspect.Param) error {
	return e.subscribe(event, fn, params, false)
}

// OnBackground subscribes fn to an event pattern, delivered on its own
// goroutine. Emit returns immediately with a nil result.
func (e *Emitter) OnBackground(event string, fn any, params ...inspect.Param) error {
	return e.subscribe(event, fn, params, true)
}

func (e *Emitter) subscribe(event string, fn any, params []inspect.Param, background bool) error {
	if len(event) == 0 || event[0] == '/' {
		return fmt.Errorf("event: name %q must not start with a slash", event)
	}
	bi, err := e.bridge.Bind(fn, params...)
	if err != nil {
		return fmt.Errorf("event: subscriber for %q: %w", event, err)
	}
	e.mux.Post(pathPrefix+event, func(w http.ResponseWriter, r *http.Request) {
		if background {
			// Detach from the emitter's context so cancellation of the
			// emitting request does not abort the background delivery.
			go e.deliver(bi, r.WithContext(context.WithoutCancel(r.Context())))
			if d, ok := r.Context().Value(deliveryKey{}).(*delivery); ok {
				d.matched = true
			}
			return
		}
		result, err := e.deliver(bi, r)
		if d, ok := r.Context().Value(deliveryKey{}).(*delivery); ok {
			d.matched = true
			d.result = result
			d.err = err
		}
	})
	return nil
}

func (e *Emitter) deliver(bi *bridge.Binding, r *http.Request) (any, error) {
	c := ioc.NewCtx(e.bridge.App, r)
	c.SetPathParams(func(name string) (string, bool) {
		return routing.Param(r, name)
	})
	result, err := bi.Invoke(c)
	if err != nil {
		e.bridge.Log.Error("event delivery failed",
			zap.String("path", r.URL.Path), zap.Error(err))
	}
	return result, err
}

// Emit delivers payload to the subscriber matching event. The payload is
// serialized to JSON and becomes the subscriber's request body. An event with
// no matching subscriber is an error.
func (e *Emitter) Emit(ctx context.Context, event string, payload any) (any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("event: payload for %q: %w", event, err)
	}
	req := httptest.NewRequest(http.MethodPost, pathPrefix+event, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	d := &delivery{}
	req = req.WithContext(context.WithValue(ctx, deliveryKey{}, d))
	e.mux.ServeHTTP(httptest.NewRecorder(), req)
	if !d.matched {
		return nil, fmt.Errorf("event: no subscriber for %q", event)
	}
	return d.result, d.err
}
