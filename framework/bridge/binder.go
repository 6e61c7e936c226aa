package bridge

import (
	"fmt"
	"reflect"

	"github.com/weft-dev/weft/framework/inspect"
	"github.com/weft-dev/weft/framework/ioc"
	"github.com/weft-dev/weft/framework/typecast"
)

var (
	bytesType  = reflect.TypeOf([]byte(nil))
	stringType = reflect.TypeOf("")
)

// Binding is the per-callable binder state: the inspected signature plus the
// coercion schema of every body and query parameter, computed once at
// registration and immutable afterwards.
type Binding struct {
	app     *ioc.App
	sig     *inspect.Sig
	schemas []*typecast.Schema
}

// Bind inspects fn and classifies its parameters. Classification failures
// surface here, at registration, not per request.
func (b *Bridge) Bind(fn any, params ...inspect.Param) (*Binding, error) {
	sig, err := inspect.Signature(fn, params...)
	if err != nil {
		return nil, err
	}
	bi := &Binding{app: b.App, sig: sig, schemas: make([]*typecast.Schema, len(sig.Params))}
	for i, p := range sig.Params {
		if p.Kind == inspect.KindInject {
			continue
		}
		if p.Schema != nil {
			bi.schemas[i] = p.Schema
			continue
		}
		// Plain []byte and string body parameters are raw-payload
		// passthrough; named string types (enums, aliases) still coerce.
		if p.Kind == inspect.KindBody && (p.Type == bytesType || p.Type == stringType) {
			continue
		}
		s, err := typecast.Classify(p.Type)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		bi.schemas[i] = s
	}
	return bi, nil
}

// Invoke runs the full request-handling chain for this binding: the
// application middleware chain is resolved against c and wrapped LIFO around
// the bound handler call.
func (bi *Binding) Invoke(c *ioc.Ctx) (any, error) {
	next := ioc.Next(func() (any, error) { return bi.call(c) })
	chain := bi.app.MiddlewareChain()
	for i := len(chain) - 1; i >= 0; i-- {
		t := chain[i]
		inner := next
		next = func() (any, error) {
			mw, err := c.Resolve(t)
			if err != nil {
				return nil, err
			}
			return mw.(ioc.Middleware).OnRequest(c, inner)
		}
	}
	return next()
}

// call binds every parameter in declared order and invokes the handler.
func (bi *Binding) call(c *ioc.Ctx) (any, error) {
	args := make([]reflect.Value, len(bi.sig.Params))
	bodyBound := false
	for i, p := range bi.sig.Params {
		var bound any
		var err error
		switch p.Kind {
		case inspect.KindBody:
			bound, err = bi.bindBody(c, p, bodyBound)
			bodyBound = true
		case inspect.KindQuery:
			bound, err = bi.bindQuery(c, p, bi.schemas[i])
		default:
			bound, err = c.Resolve(p.Type)
		}
		if err != nil {
			return nil, err
		}
		av, err := bi.sig.Arg(i, bound)
		if err != nil {
			return nil, err
		}
		args[i] = av
	}
	return bi.sig.Call(args)
}

// bindBody pops the request data stack; an empty stack falls back to the raw
// request payload, but only for the first body parameter.
func (bi *Binding) bindBody(c *ioc.Ctx, p inspect.Descriptor, bodyBound bool) (any, error) {
	raw, ok := c.PopPayload()
	if !ok {
		if bodyBound {
			return nil, &StackExhaustedError{Param: p.Name}
		}
		body, err := c.ReadBody()
		if err != nil {
			return nil, fmt.Errorf("reading request body for %q: %w", p.Name, err)
		}
		raw = body
	}

	// Raw passthrough: a []byte or string body parameter receives the
	// payload as-is, without JSON coercion.
	if p.Type == bytesType {
		return rawBytes(raw)
	}
	if p.Type == stringType && bi.schemas[p.Index] == nil {
		b, err := rawBytes(raw)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}

	v, err := typecast.ValidateJSON(raw, bi.schemas[p.Index])
	if err != nil {
		return nil, fmt.Errorf("invalid request body for %q: %w", p.Name, err)
	}
	return v, nil
}

func rawBytes(raw any) ([]byte, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, typecast.Invalidf("pushed payload is a JSON tree, not raw bytes")
	}
}

// bindQuery resolves the value by name, preferring a path-template variable
// over a query-string variable, then applies the absent-value ladder:
// default factory, literal default, missing-parameter failure.
func (bi *Binding) bindQuery(c *ioc.Ctx, p inspect.Descriptor, s *typecast.Schema) (any, error) {
	text, ok := c.PathParam(p.Name)
	if !ok {
		text, ok = c.QueryParam(p.Name)
	}
	if !ok {
		if p.DefaultFactory != nil {
			return p.DefaultFactory(), nil
		}
		if p.HasDefault {
			return p.Default, nil
		}
		return nil, &MissingParamError{Param: p.Name}
	}
	v, err := typecast.ValidateQuery(text, s)
	if err != nil {
		return nil, fmt.Errorf("invalid parameter %q: %w", p.Name, err)
	}
	return v, nil
}
