// Package inspect extracts an ordered parameter descriptor list from a
// handler or factory function.
//
// Go reflection reports parameter types but not names or calling-convention
// kinds, so the kind (body, query-or-path, injected) and the wire name are
// explicit markers supplied at registration, one per parameter and in
// parameter order:
//
//	sig, err := inspect.Signature(createPet,
//	    inspect.Body("pet"),
//	    inspect.Query("notify", inspect.Default(false)),
//	    inspect.Inject(),
//	)
//
// A call with no markers at all treats every parameter as injected, which is
// the shape of bean factories and lifecycle callbacks.
package inspect

import (
	"fmt"
	"reflect"

	"github.com/weft-dev/weft/framework/typecast"
)

// Kind says where a parameter's value comes from.
type Kind int

const (
	// KindBody binds from the request payload or the request data stack.
	KindBody Kind = iota
	// KindQuery binds from a path-template or query-string variable.
	KindQuery
	// KindInject resolves through the dependency graph.
	KindInject
)

func (k Kind) String() string {
	switch k {
	case KindBody:
		return "body"
	case KindQuery:
		return "query"
	default:
		return "inject"
	}
}

// ── Markers ──────────────────────────────────────────────────────────────────

// Param is one per-parameter marker. Build with Body, Query, or Inject.
type Param struct {
	kind           Kind
	name           string
	def            any
	hasDefault     bool
	defaultFactory func() any
	schema         *typecast.Schema
}

// Option attaches metadata to a marker.
type Option func(*Param)

// Body marks a parameter as bound from the request payload.
func Body(name string, opts ...Option) Param { return build(KindBody, name, opts) }

// Query marks a parameter as bound from a path or query variable. A path
// variable is preferred over a query variable of the same name.
func Query(name string, opts ...Option) Param { return build(KindQuery, name, opts) }

// Inject marks a parameter as resolved through the dependency graph.
func Inject() Param { return Param{kind: KindInject} }

func build(k Kind, name string, opts []Option) Param {
	p := Param{kind: k, name: name}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Default sets a literal fallback used when the variable is absent.
func Default(v any) Option {
	return func(p *Param) {
		p.def = v
		p.hasDefault = true
	}
}

// DefaultFactory sets a fallback produced per call when the variable is
// absent. A factory takes precedence over a literal Default.
func DefaultFactory(fn func() any) Option {
	return func(p *Param) { p.defaultFactory = fn }
}

// Schema overrides the coercion schema derived from the parameter's Go type.
// Required for union- and literal-shaped parameters, which are declared as
// `any` on the Go side.
func Schema(s *typecast.Schema) Option {
	return func(p *Param) { p.schema = s }
}

// ── Descriptors ──────────────────────────────────────────────────────────────

// Descriptor is one parameter of an inspected callable. Immutable once built.
type Descriptor struct {
	Name           string
	Index          int
	Type           reflect.Type
	Kind           Kind
	Default        any
	HasDefault     bool
	DefaultFactory func() any
	Schema         *typecast.Schema // explicit override; nil means derive from Type
}

// Sig is the cached shape of a callable: its ordered parameters and its
// result contract.
type Sig struct {
	fn      reflect.Value
	Params  []Descriptor
	Returns reflect.Type // first non-error result, nil if none
	hasErr  bool
	numOut  int
}

// Error reports a callable that cannot be introspected or registered. It is a
// configuration-class failure.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return "inspect: " + e.Msg }

func errorf(format string, args ...any) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

// Signature inspects fn and merges the reflected parameter types with the
// given markers. Bound method values already carry their receiver, so no
// explicit self parameter appears. Inspect once and cache the result; a Sig
// never changes after creation.
func Signature(fn any, params ...Param) (*Sig, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func {
		return nil, errorf("%T is not a function", fn)
	}
	t := v.Type()
	if t.IsVariadic() {
		return nil, errorf("variadic function %s cannot be a handler", t)
	}

	if len(params) == 0 {
		// Factory shape: every parameter is injected.
		for i := 0; i < t.NumIn(); i++ {
			params = append(params, Inject())
		}
	}
	if len(params) != t.NumIn() {
		return nil, errorf("%s declares %d parameters but %d markers were given",
			t, t.NumIn(), len(params))
	}

	sig := &Sig{fn: v, numOut: t.NumOut()}
	for i, p := range params {
		if p.kind != KindInject && p.name == "" {
			return nil, errorf("%s parameter %d has an empty name", p.kind, i)
		}
		sig.Params = append(sig.Params, Descriptor{
			Name:           p.name,
			Index:          i,
			Type:           t.In(i),
			Kind:           p.kind,
			Default:        p.def,
			HasDefault:     p.hasDefault,
			DefaultFactory: p.defaultFactory,
			Schema:         p.schema,
		})
	}

	switch t.NumOut() {
	case 0:
	case 1:
		if t.Out(0) == errType {
			sig.hasErr = true
		} else {
			sig.Returns = t.Out(0)
		}
	case 2:
		if t.Out(1) != errType {
			return nil, errorf("%s: second result must be error", t)
		}
		sig.Returns = t.Out(0)
		sig.hasErr = true
	default:
		return nil, errorf("%s returns %d values; at most (T, error) is allowed", t, t.NumOut())
	}
	return sig, nil
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// Call invokes the callable with already-bound arguments. The returned value
// is the first non-error result (nil when the callable returns none); a
// trailing error result is split out.
func (s *Sig) Call(args []reflect.Value) (any, error) {
	out := s.fn.Call(args)
	var result any
	var err error
	switch {
	case s.numOut == 0:
	case s.hasErr && s.Returns != nil:
		result = out[0].Interface()
		if e := out[1].Interface(); e != nil {
			err = e.(error)
		}
	case s.hasErr:
		if e := out[0].Interface(); e != nil {
			err = e.(error)
		}
	default:
		result = out[0].Interface()
	}
	return result, err
}

// Arg prepares one bound value for position i, converting it to the declared
// parameter type when needed.
func (s *Sig) Arg(i int, v any) (reflect.Value, error) {
	want := s.Params[i].Type
	if v == nil {
		switch want.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
			return reflect.Zero(want), nil
		}
		return reflect.Value{}, errorf("parameter %q (%s) cannot be nil", s.Params[i].Name, want)
	}
	rv := reflect.ValueOf(v)
	if rv.Type() == want {
		return rv, nil
	}
	if rv.Type().AssignableTo(want) {
		return rv, nil
	}
	if rv.Type().ConvertibleTo(want) {
		return rv.Convert(want), nil
	}
	return reflect.Value{}, errorf("parameter %q: %s is not assignable to %s",
		s.Params[i].Name, rv.Type(), want)
}
