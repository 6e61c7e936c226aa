package typecast_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-dev/weft/framework/typecast"
)

// ── test fixtures ────────────────────────────────────────────────────────────

type Color string

func (Color) EnumValues() []string { return []string{"red", "green", "blue"} }

type UserID int

type Profile struct {
	Name    string         `json:"name" validate:"min=1"`
	Age     int            `json:"age"`
	Email   *string        `json:"email"`
	Colors  []Color        `json:"colors"`
	Born    *typecast.Date `json:"born"`
	private string
}

func classify(t *testing.T, typ any) *typecast.Schema {
	t.Helper()
	s, err := typecast.Classify(reflect.TypeOf(typ))
	require.NoError(t, err)
	return s
}

// ── query-token coercion ─────────────────────────────────────────────────────

func TestValidateQuery_Scalars(t *testing.T) {
	v, err := typecast.ValidateQuery("42", classify(t, int(0)))
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = typecast.ValidateQuery("3.5", classify(t, float64(0)))
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)

	v, err = typecast.ValidateQuery("hello", classify(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestValidateQuery_IntRejectsFraction(t *testing.T) {
	_, err := typecast.ValidateQuery("12.3", classify(t, int(0)))
	var verr *typecast.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestValidateQuery_BoolTokens(t *testing.T) {
	for _, tok := range []string{"true", "True", "1", "✔"} {
		v, err := typecast.ValidateQuery(tok, classify(t, false))
		require.NoError(t, err, tok)
		assert.Equal(t, true, v, tok)
	}
	for _, tok := range []string{"false", "FALSE", "0", "✖"} {
		v, err := typecast.ValidateQuery(tok, classify(t, false))
		require.NoError(t, err, tok)
		assert.Equal(t, false, v, tok)
	}
	_, err := typecast.ValidateQuery("yep", classify(t, false))
	assert.Error(t, err)
}

func TestValidateQuery_CSVList(t *testing.T) {
	v, err := typecast.ValidateQuery("1,2,3", classify(t, []int(nil)))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, v)

	v, err = typecast.ValidateQuery("a,b", classify(t, []string(nil)))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v)
}

func TestValidateQuery_SingleTokenList(t *testing.T) {
	v, err := typecast.ValidateQuery("7", classify(t, []int(nil)))
	require.NoError(t, err)
	assert.Equal(t, []int{7}, v)
}

func TestValidateQuery_Enum(t *testing.T) {
	v, err := typecast.ValidateQuery("green", classify(t, Color("")))
	require.NoError(t, err)
	assert.Equal(t, Color("green"), v)

	_, err = typecast.ValidateQuery("purple", classify(t, Color("")))
	var verr *typecast.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestValidateQuery_Alias(t *testing.T) {
	v, err := typecast.ValidateQuery("9", classify(t, UserID(0)))
	require.NoError(t, err)
	assert.Equal(t, UserID(9), v)
}

func TestValidateQuery_Nullable(t *testing.T) {
	v, err := typecast.ValidateQuery("5", classify(t, (*int)(nil)))
	require.NoError(t, err)
	p, ok := v.(*int)
	require.True(t, ok)
	require.NotNil(t, p)
	assert.Equal(t, 5, *p)
}

func TestValidateQuery_Union(t *testing.T) {
	s := typecast.Union(typecast.Int(), typecast.List(typecast.Int()))

	v, err := typecast.ValidateQuery("10", s)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	v, err = typecast.ValidateQuery("11,12", s)
	require.NoError(t, err)
	assert.Equal(t, []int{11, 12}, v)

	_, err = typecast.ValidateQuery("12.3", s)
	var verr *typecast.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestValidateQuery_Literal(t *testing.T) {
	s := typecast.Literal("asc", "desc")

	v, err := typecast.ValidateQuery("desc", s)
	require.NoError(t, err)
	assert.Equal(t, "desc", v)

	_, err = typecast.ValidateQuery("sideways", s)
	assert.Error(t, err)
}

func TestValidateQuery_Temporal(t *testing.T) {
	v, err := typecast.ValidateQuery("2024-06-01", classify(t, typecast.Date{}))
	require.NoError(t, err)
	d, ok := v.(typecast.Date)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), d.Time())

	_, err = typecast.ValidateQuery("junk", classify(t, typecast.Date{}))
	assert.Error(t, err)
}

// ── JSON-tree coercion ───────────────────────────────────────────────────────

func TestValidateJSON_Record(t *testing.T) {
	v, err := typecast.ValidateJSON(
		[]byte(`{"name":"john","age":3,"colors":["red","blue"]}`),
		classify(t, Profile{}))
	require.NoError(t, err)
	p, ok := v.(Profile)
	require.True(t, ok)
	assert.Equal(t, "john", p.Name)
	assert.Equal(t, 3, p.Age)
	assert.Nil(t, p.Email)
	assert.Equal(t, []Color{"red", "blue"}, p.Colors)
}

func TestValidateJSON_RecordMissingRequired(t *testing.T) {
	_, err := typecast.ValidateJSON([]byte(`{"age":3}`), classify(t, Profile{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required keys: name")
}

func TestValidateJSON_RecordUnknownKey(t *testing.T) {
	_, err := typecast.ValidateJSON([]byte(`{"name":"a","age":1,"wings":2}`),
		classify(t, Profile{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keys: wings")
}

func TestValidateJSON_RecordTagValidation(t *testing.T) {
	_, err := typecast.ValidateJSON([]byte(`{"name":"","age":1}`), classify(t, Profile{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record validation failed")
}

func TestValidateJSON_RecordOptionalNull(t *testing.T) {
	v, err := typecast.ValidateJSON([]byte(`{"name":"a","age":1,"email":null}`),
		classify(t, Profile{}))
	require.NoError(t, err)
	assert.Nil(t, v.(Profile).Email)
}

func TestValidateJSON_IntFromNumber(t *testing.T) {
	v, err := typecast.ValidateJSON([]byte(`41`), classify(t, int(0)))
	require.NoError(t, err)
	assert.Equal(t, 41, v)

	// A whole-valued float is still an int.
	v, err = typecast.ValidateJSON([]byte(`41.0`), classify(t, int(0)))
	require.NoError(t, err)
	assert.Equal(t, 41, v)

	_, err = typecast.ValidateJSON([]byte(`41.5`), classify(t, int(0)))
	assert.Error(t, err)
}

func TestValidateJSON_ParsedTreeInput(t *testing.T) {
	v, err := typecast.ValidateJSON(map[string]any{"name": "zoe", "age": 2},
		classify(t, Profile{}))
	require.NoError(t, err)
	assert.Equal(t, "zoe", v.(Profile).Name)
}

func TestValidateJSON_Malformed(t *testing.T) {
	_, err := typecast.ValidateJSON([]byte(`{`), classify(t, Profile{}))
	var verr *typecast.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestValidateJSON_Union(t *testing.T) {
	s := typecast.Union(typecast.Int(), typecast.List(typecast.Int()))

	v, err := typecast.ValidateJSON([]byte(`10`), s)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	v, err = typecast.ValidateJSON([]byte(`[11,12]`), s)
	require.NoError(t, err)
	assert.Equal(t, []int{11, 12}, v)

	_, err = typecast.ValidateJSON([]byte(`12.3`), s)
	assert.Error(t, err)
}

// ── classification ───────────────────────────────────────────────────────────

func TestClassify_Kinds(t *testing.T) {
	assert.Equal(t, typecast.KindScalar, classify(t, int(0)).Kind)
	assert.Equal(t, typecast.KindEnum, classify(t, Color("")).Kind)
	assert.Equal(t, typecast.KindAlias, classify(t, UserID(0)).Kind)
	assert.Equal(t, typecast.KindList, classify(t, []string(nil)).Kind)
	assert.Equal(t, typecast.KindRecord, classify(t, Profile{}).Kind)
	assert.Equal(t, typecast.KindTemporal, classify(t, time.Time{}).Kind)

	s := classify(t, (*int)(nil))
	assert.True(t, s.Nullable)
}

func TestClassify_Unsupported(t *testing.T) {
	_, err := typecast.Classify(reflect.TypeOf(make(chan int)))
	var uerr *typecast.UnsupportedTypeError
	require.ErrorAs(t, err, &uerr)
}

func TestClassify_RecordSkipsUnexported(t *testing.T) {
	s := classify(t, Profile{})
	for _, f := range s.Fields {
		assert.NotEqual(t, "private", f.Name)
	}
}
