package typecast

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// structCheck enforces `validate:"..."` struct tags on coerced records,
// inbound and outbound alike.
var structCheck = validator.New(validator.WithRequiredStructEnabled())

// ── Entry points ─────────────────────────────────────────────────────────────

// ValidateQuery coerces a single text token (a path or query value) into a
// value of the schema's type.
func ValidateQuery(text string, s *Schema) (any, error) {
	v, err := queryValue(text, s)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// ValidateJSON coerces JSON input into a value of the schema's type. raw may
// be JSON text ([]byte, string, json.RawMessage) or an already-parsed JSON
// tree, e.g. one pushed onto the request data stack by a middleware.
func ValidateJSON(raw any, s *Schema) (any, error) {
	tree, err := decodeTree(raw)
	if err != nil {
		return nil, err
	}
	v, err := treeValue(tree, s)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

func decodeTree(raw any) (any, error) {
	var b []byte
	switch d := raw.(type) {
	case []byte:
		b = d
	case json.RawMessage:
		b = d
	case string:
		b = []byte(d)
	default:
		return raw, nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, Invalidf("input is not valid JSON: %v", err)
	}
	return tree, nil
}

// ── Query-token coercion ─────────────────────────────────────────────────────

func queryValue(text string, s *Schema) (reflect.Value, error) {
	if s == nil {
		return reflect.Value{}, unsupported(nil, "nil schema")
	}
	if s.Nullable {
		return wrapPointer(s, func(inner *Schema) (reflect.Value, error) {
			return queryValue(text, inner)
		})
	}

	switch s.Kind {
	case KindAny:
		return reflect.ValueOf(text), nil

	case KindScalar:
		return scalarFromText(text, s.Type)

	case KindEnum:
		return enumFromText(text, s.Type)

	case KindTemporal:
		t, err := parseTemporal(text, s.Temporal)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(t).Convert(s.Type), nil

	case KindAlias:
		under, err := queryValue(text, s.Under)
		if err != nil {
			return reflect.Value{}, err
		}
		return under.Convert(s.Type), nil

	case KindList:
		if s.Elem == nil {
			return reflect.Value{}, unsupported(s.Type, "list schema is missing its element type")
		}
		tokens, err := splitCSV(text)
		if err != nil {
			return reflect.Value{}, Invalidf("%q is not a CSV-formatted list", text)
		}
		out := newSlice(s)
		for _, tok := range tokens {
			ev, err := queryValue(tok, s.Elem)
			if err != nil {
				return reflect.Value{}, err
			}
			out = reflect.Append(out, ev)
		}
		return out, nil

	case KindUnion:
		if len(s.Arms) == 0 {
			return reflect.Value{}, unsupported(s.Type, "union schema has no arms")
		}
		var reasons []string
		for _, arm := range s.Arms {
			v, err := queryValue(text, arm)
			if err == nil {
				return v, nil
			}
			reasons = append(reasons, err.Error())
		}
		return reflect.Value{}, Invalidf("%q does not match any union arm: %s",
			text, strings.Join(reasons, "; "))

	case KindLiteral:
		if len(s.Values) == 0 {
			return reflect.Value{}, unsupported(s.Type, "literal schema has no values")
		}
		for _, allowed := range s.Values {
			if canonicalString(allowed) == text {
				return reflect.ValueOf(allowed), nil
			}
		}
		return reflect.Value{}, Invalidf("%q is not one of %s", text, literalList(s.Values))

	case KindRecord:
		// A record arriving as a single token is JSON text.
		tree, err := decodeTree([]byte(text))
		if err != nil {
			return reflect.Value{}, err
		}
		return treeValue(tree, s)
	}
	return reflect.Value{}, unsupported(s.Type, "")
}

// ── JSON-tree coercion ───────────────────────────────────────────────────────

func treeValue(tree any, s *Schema) (reflect.Value, error) {
	if s == nil {
		return reflect.Value{}, unsupported(nil, "nil schema")
	}
	if s.Nullable {
		if tree == nil {
			return reflect.Zero(s.Type), nil
		}
		return wrapPointer(s, func(inner *Schema) (reflect.Value, error) {
			return treeValue(tree, inner)
		})
	}

	switch s.Kind {
	case KindAny:
		v := reflect.New(s.anyType()).Elem()
		if tree != nil {
			v.Set(reflect.ValueOf(tree))
		}
		return v, nil

	case KindScalar:
		return scalarFromTree(tree, s.Type)

	case KindEnum:
		text, ok := tree.(string)
		if !ok {
			return reflect.Value{}, Invalidf("%v is not a string enum value", summarize(tree))
		}
		return enumFromText(text, s.Type)

	case KindTemporal:
		text, ok := tree.(string)
		if !ok {
			return reflect.Value{}, Invalidf("%v is not an ISO-8601 string", summarize(tree))
		}
		t, err := parseTemporal(text, s.Temporal)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(t).Convert(s.Type), nil

	case KindAlias:
		under, err := treeValue(tree, s.Under)
		if err != nil {
			return reflect.Value{}, err
		}
		return under.Convert(s.Type), nil

	case KindList:
		if s.Elem == nil {
			return reflect.Value{}, unsupported(s.Type, "list schema is missing its element type")
		}
		arr, ok := tree.([]any)
		if !ok {
			return reflect.Value{}, Invalidf("%v is not a JSON array", summarize(tree))
		}
		out := newSlice(s)
		for i, item := range arr {
			ev, err := treeValue(item, s.Elem)
			if err != nil {
				return reflect.Value{}, Invalidf("item %d: %v", i, err)
			}
			out = reflect.Append(out, ev)
		}
		return out, nil

	case KindUnion:
		if len(s.Arms) == 0 {
			return reflect.Value{}, unsupported(s.Type, "union schema has no arms")
		}
		var reasons []string
		for _, arm := range s.Arms {
			v, err := treeValue(tree, arm)
			if err == nil {
				return v, nil
			}
			reasons = append(reasons, err.Error())
		}
		return reflect.Value{}, Invalidf("%v does not match any union arm: %s",
			summarize(tree), strings.Join(reasons, "; "))

	case KindLiteral:
		if len(s.Values) == 0 {
			return reflect.Value{}, unsupported(s.Type, "literal schema has no values")
		}
		text := canonicalString(tree)
		for _, allowed := range s.Values {
			if canonicalString(allowed) == text {
				return reflect.ValueOf(allowed), nil
			}
		}
		return reflect.Value{}, Invalidf("%v is not one of %s", summarize(tree), literalList(s.Values))

	case KindRecord:
		return recordValue(tree, s)
	}
	return reflect.Value{}, unsupported(s.Type, "")
}

func recordValue(tree any, s *Schema) (reflect.Value, error) {
	if s.Type == nil {
		return reflect.Value{}, unsupported(nil, "record schema has no target struct")
	}
	m, ok := tree.(map[string]any)
	if !ok {
		return reflect.Value{}, Invalidf("%v is not a JSON object", summarize(tree))
	}

	byName := make(map[string]*Field, len(s.Fields))
	for i := range s.Fields {
		byName[s.Fields[i].Name] = &s.Fields[i]
	}
	var unknown []string
	for key := range m {
		if _, ok := byName[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return reflect.Value{}, Invalidf("unknown keys: %s", strings.Join(unknown, ", "))
	}

	rv := reflect.New(s.Type).Elem()
	var missing []string
	for _, f := range s.Fields {
		raw, present := m[f.Name]
		if !present {
			if f.Required {
				missing = append(missing, f.Name)
			}
			// A missing optional field stays at its zero value: nil for
			// pointers, which is the explicit "no value".
			continue
		}
		fv, err := treeValue(raw, f.Schema)
		if err != nil {
			return reflect.Value{}, Invalidf("key %q: %v", f.Name, err)
		}
		rv.Field(f.Index).Set(fv)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return reflect.Value{}, Invalidf("missing required keys: %s", strings.Join(missing, ", "))
	}

	if err := structCheck.Struct(rv.Interface()); err != nil {
		if _, isInput := err.(*validator.InvalidValidationError); isInput {
			return reflect.Value{}, unsupported(s.Type, err.Error())
		}
		return reflect.Value{}, Invalidf("record validation failed: %v", err)
	}
	return rv, nil
}

// ── Scalar coercion ──────────────────────────────────────────────────────────

func scalarFromText(text string, t reflect.Type) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.Bool:
		return boolFromText(text, t)
	case reflect.String:
		return reflect.ValueOf(text).Convert(t), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return reflect.Value{}, Invalidf("%q is not an integer", text)
		}
		return intValue(t, n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return reflect.Value{}, Invalidf("%q is not an unsigned integer", text)
		}
		return uintValue(t, n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return reflect.Value{}, Invalidf("%q is not a number", text)
		}
		return floatValue(t, f), nil
	}
	return reflect.Value{}, unsupported(t, "")
}

func scalarFromTree(tree any, t reflect.Type) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.Bool:
		switch v := tree.(type) {
		case bool:
			return reflect.ValueOf(v).Convert(t), nil
		case string:
			return boolFromText(v, t)
		}
		return reflect.Value{}, Invalidf("%v is not a boolean", summarize(tree))

	case reflect.String:
		v, ok := tree.(string)
		if !ok {
			return reflect.Value{}, Invalidf("%v is not a string", summarize(tree))
		}
		return reflect.ValueOf(v).Convert(t), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := treeInt(tree)
		if err != nil {
			return reflect.Value{}, err
		}
		return intValue(t, n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := treeInt(tree)
		if err != nil {
			return reflect.Value{}, err
		}
		if n < 0 {
			return reflect.Value{}, Invalidf("%d is not an unsigned integer", n)
		}
		return uintValue(t, uint64(n))

	case reflect.Float32, reflect.Float64:
		switch v := tree.(type) {
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return reflect.Value{}, Invalidf("%q is not a number", v.String())
			}
			return floatValue(t, f), nil
		case float64:
			return floatValue(t, v), nil
		case int:
			return floatValue(t, float64(v)), nil
		case int64:
			return floatValue(t, float64(v)), nil
		case string:
			return scalarFromText(v, t)
		}
		return reflect.Value{}, Invalidf("%v is not a number", summarize(tree))
	}
	return reflect.Value{}, unsupported(t, "")
}

func treeInt(tree any) (int64, error) {
	switch v := tree.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		// A whole-valued float still counts as an integer.
		f, err := v.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, Invalidf("%q is not an integer", v.String())
		}
		return int64(f), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, Invalidf("%v is not an integer", v)
		}
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, Invalidf("%q is not an integer", v)
		}
		return n, nil
	}
	return 0, Invalidf("%v is not an integer", summarize(tree))
}

func boolFromText(text string, t reflect.Type) (reflect.Value, error) {
	switch strings.ToLower(text) {
	case "true", "1", "✔":
		return reflect.ValueOf(true).Convert(t), nil
	case "false", "0", "✖":
		return reflect.ValueOf(false).Convert(t), nil
	}
	return reflect.Value{}, Invalidf("%q is not a boolean", text)
}

func enumFromText(text string, t reflect.Type) (reflect.Value, error) {
	values := reflect.New(t).Elem().Interface().(Enum).EnumValues()
	for _, v := range values {
		if v == text {
			return reflect.ValueOf(text).Convert(t), nil
		}
	}
	return reflect.Value{}, Invalidf("%q is not a member of %s enum (%s)",
		text, t.Name(), strings.Join(values, ", "))
}

func intValue(t reflect.Type, n int64) (reflect.Value, error) {
	v := reflect.New(t).Elem()
	if v.OverflowInt(n) {
		return reflect.Value{}, Invalidf("%d overflows %s", n, t)
	}
	v.SetInt(n)
	return v, nil
}

func uintValue(t reflect.Type, n uint64) (reflect.Value, error) {
	v := reflect.New(t).Elem()
	if v.OverflowUint(n) {
		return reflect.Value{}, Invalidf("%d overflows %s", n, t)
	}
	v.SetUint(n)
	return v, nil
}

func floatValue(t reflect.Type, f float64) reflect.Value {
	v := reflect.New(t).Elem()
	v.SetFloat(f)
	return v
}

// ── Temporal parsing ─────────────────────────────────────────────────────────

func parseTemporal(text string, k TemporalKind) (time.Time, error) {
	var layouts []string
	var name string
	switch k {
	case TemporalDate:
		layouts, name = []string{"2006-01-02"}, "date"
	case TemporalClock:
		layouts, name = []string{"15:04:05", "15:04"}, "time"
	default:
		layouts, name = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}, "datetime"
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, nil
		}
	}
	return time.Time{}, Invalidf("%q is not an ISO-8601 %s", text, name)
}

// ── Helpers ──────────────────────────────────────────────────────────────────

// canonicalString renders a literal candidate the way the wire does: enums by
// their string value, temporals as ISO-8601 text, everything else by its
// natural text form.
func canonicalString(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case Date:
		return time.Time(x).Format("2006-01-02")
	case Clock:
		return time.Time(x).Format("15:04:05")
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	}
	return fmt.Sprint(v)
}

func literalList(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Quote(canonicalString(v))
	}
	return strings.Join(parts, ", ")
}

func splitCSV(text string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	rec, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	return rec, err
}

func newSlice(s *Schema) reflect.Value {
	st := s.Type
	if st == nil {
		if s.Elem != nil && s.Elem.Type != nil {
			st = reflect.SliceOf(s.Elem.Type)
		} else {
			st = reflect.TypeOf([]any(nil))
		}
	}
	return reflect.MakeSlice(st, 0, 4)
}

func wrapPointer(s *Schema, build func(*Schema) (reflect.Value, error)) (reflect.Value, error) {
	inner := *s
	inner.Nullable = false
	if inner.Type != nil && inner.Type.Kind() == reflect.Pointer {
		inner.Type = inner.Type.Elem()
	}
	v, err := build(&inner)
	if err != nil {
		return reflect.Value{}, err
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p, nil
}

func (s *Schema) anyType() reflect.Type {
	if s.Type != nil {
		return s.Type
	}
	return reflect.TypeOf((*any)(nil)).Elem()
}

func summarize(tree any) string {
	b, err := json.Marshal(tree)
	if err != nil {
		return fmt.Sprintf("%v", tree)
	}
	const max = 80
	if len(b) > max {
		return string(b[:max]) + "…"
	}
	return string(b)
}
