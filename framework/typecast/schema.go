package typecast

import (
	"reflect"
	"strings"
	"sync"
	"time"
)

// ── Schema kinds ─────────────────────────────────────────────────────────────

// Kind classifies a declared type for the coercion engine.
type Kind int

const (
	KindAny Kind = iota
	KindScalar
	KindEnum
	KindTemporal
	KindList
	KindUnion
	KindLiteral
	KindAlias
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindScalar:
		return "scalar"
	case KindEnum:
		return "enum"
	case KindTemporal:
		return "temporal"
	case KindList:
		return "list"
	case KindUnion:
		return "union"
	case KindLiteral:
		return "literal"
	case KindAlias:
		return "alias"
	case KindRecord:
		return "record"
	}
	return "unknown"
}

// TemporalKind narrows a temporal schema to one of the three ISO-8601 shapes.
type TemporalKind int

const (
	TemporalDateTime TemporalKind = iota
	TemporalDate
	TemporalClock
)

// ── Schema ───────────────────────────────────────────────────────────────────

// Schema is the classification of a declared type. It is derived on demand
// from a Go type by Classify, or built by hand for shapes Go's type system
// cannot express (unions, literals).
type Schema struct {
	Kind     Kind
	Type     reflect.Type // concrete target type; nil only for hand-built Union results
	Temporal TemporalKind // when Kind == KindTemporal
	Elem     *Schema      // when Kind == KindList
	Arms     []*Schema    // when Kind == KindUnion, tried in order
	Values   []any        // when Kind == KindLiteral
	Under    *Schema      // when Kind == KindAlias
	Fields   []Field      // when Kind == KindRecord
	Nullable bool         // derived from a pointer type; nil is an explicit "no value"
}

// Field is one declared field of a record schema.
type Field struct {
	Name     string // wire name (json tag, falling back to the Go field name)
	Index    int    // struct field index
	Schema   *Schema
	Required bool // non-pointer fields are required
}

// Enum marks a named string type as a closed value set.
//
//	type Color string
//	func (Color) EnumValues() []string { return []string{"red", "green"} }
type Enum interface {
	EnumValues() []string
}

// Date is a day-precision temporal value (ISO-8601 "2006-01-02" on the wire).
type Date time.Time

// Clock is a time-of-day value (ISO-8601 "15:04:05" on the wire).
type Clock time.Time

func (d Date) Time() time.Time  { return time.Time(d) }
func (c Clock) Time() time.Time { return time.Time(c) }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(d).Format("2006-01-02") + `"`), nil
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(c).Format("15:04:05") + `"`), nil
}

// ── Hand-built schema constructors ───────────────────────────────────────────

// Int returns a scalar schema targeting int.
func Int() *Schema { return &Schema{Kind: KindScalar, Type: reflect.TypeOf(int(0))} }

// Float returns a scalar schema targeting float64.
func Float() *Schema { return &Schema{Kind: KindScalar, Type: reflect.TypeOf(float64(0))} }

// Bool returns a scalar schema targeting bool.
func Bool() *Schema { return &Schema{Kind: KindScalar, Type: reflect.TypeOf(false)} }

// String returns a scalar schema targeting string.
func String() *Schema { return &Schema{Kind: KindScalar, Type: reflect.TypeOf("")} }

// List returns a list schema whose elements validate against elem.
func List(elem *Schema) *Schema {
	var st reflect.Type
	if elem != nil && elem.Type != nil {
		st = reflect.SliceOf(elem.Type)
	}
	return &Schema{Kind: KindList, Type: st, Elem: elem}
}

// Union returns a multi-branch schema; arms are tried in declared order and
// the first successful coercion wins.
func Union(arms ...*Schema) *Schema {
	return &Schema{Kind: KindUnion, Arms: arms}
}

// Literal returns a schema that accepts exactly the given values, compared
// after canonical stringification.
func Literal(values ...any) *Schema {
	return &Schema{Kind: KindLiteral, Values: values}
}

// Of derives the schema of a Go type, panicking on an unsupported type.
// Intended for registration-time use where an unsupported type is a
// programming error.
func Of[T any]() *Schema {
	s, err := Classify(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		panic(err)
	}
	return s
}

// ── Classification ───────────────────────────────────────────────────────────

var (
	timeType  = reflect.TypeOf(time.Time{})
	dateType  = reflect.TypeOf(Date{})
	clockType = reflect.TypeOf(Clock{})
	enumIface = reflect.TypeOf((*Enum)(nil)).Elem()

	classifyCache sync.Map // reflect.Type → *Schema
)

// Classify maps a Go type onto a schema descriptor. The result is cached per
// type. An unclassifiable type yields *UnsupportedTypeError: that is an
// engine/configuration condition, not a client error.
func Classify(t reflect.Type) (*Schema, error) {
	if t == nil {
		return nil, unsupported(t, "untyped nil")
	}
	if cached, ok := classifyCache.Load(t); ok {
		return cached.(*Schema), nil
	}
	s, err := classify(t)
	if err != nil {
		return nil, err
	}
	classifyCache.Store(t, s)
	return s, nil
}

func classify(t reflect.Type) (*Schema, error) {
	if t.Kind() == reflect.Pointer {
		inner, err := Classify(t.Elem())
		if err != nil {
			return nil, err
		}
		cp := *inner
		cp.Type = t
		cp.Nullable = true
		return &cp, nil
	}

	switch t {
	case timeType:
		return &Schema{Kind: KindTemporal, Type: t, Temporal: TemporalDateTime}, nil
	case dateType:
		return &Schema{Kind: KindTemporal, Type: t, Temporal: TemporalDate}, nil
	case clockType:
		return &Schema{Kind: KindTemporal, Type: t, Temporal: TemporalClock}, nil
	}

	if t.Implements(enumIface) {
		if t.Kind() != reflect.String {
			return nil, unsupported(t, "enum types must have a string underlying type")
		}
		return &Schema{Kind: KindEnum, Type: t}, nil
	}

	switch t.Kind() {
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return &Schema{Kind: KindAny, Type: t}, nil
		}
		return nil, unsupported(t, "non-empty interface")
	case reflect.Slice:
		elem, err := Classify(t.Elem())
		if err != nil {
			return nil, err
		}
		return &Schema{Kind: KindList, Type: t, Elem: elem}, nil
	case reflect.Struct:
		return classifyStruct(t)
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if t.PkgPath() != "" {
			// Named scalar: an alias over its predeclared underlying type.
			under, err := Classify(predeclared(t.Kind()))
			if err != nil {
				return nil, err
			}
			return &Schema{Kind: KindAlias, Type: t, Under: under}, nil
		}
		return &Schema{Kind: KindScalar, Type: t}, nil
	}
	return nil, unsupported(t, "")
}

func classifyStruct(t reflect.Type) (*Schema, error) {
	s := &Schema{Kind: KindRecord, Type: t}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		fs, err := Classify(f.Type)
		if err != nil {
			return nil, err
		}
		s.Fields = append(s.Fields, Field{
			Name:     name,
			Index:    i,
			Schema:   fs,
			Required: f.Type.Kind() != reflect.Pointer,
		})
	}
	return s, nil
}

func predeclared(k reflect.Kind) reflect.Type {
	switch k {
	case reflect.Bool:
		return reflect.TypeOf(false)
	case reflect.String:
		return reflect.TypeOf("")
	case reflect.Int:
		return reflect.TypeOf(int(0))
	case reflect.Int8:
		return reflect.TypeOf(int8(0))
	case reflect.Int16:
		return reflect.TypeOf(int16(0))
	case reflect.Int32:
		return reflect.TypeOf(int32(0))
	case reflect.Int64:
		return reflect.TypeOf(int64(0))
	case reflect.Uint:
		return reflect.TypeOf(uint(0))
	case reflect.Uint8:
		return reflect.TypeOf(uint8(0))
	case reflect.Uint16:
		return reflect.TypeOf(uint16(0))
	case reflect.Uint32:
		return reflect.TypeOf(uint32(0))
	case reflect.Uint64:
		return reflect.TypeOf(uint64(0))
	case reflect.Float32:
		return reflect.TypeOf(float32(0))
	default:
		return reflect.TypeOf(float64(0))
	}
}
