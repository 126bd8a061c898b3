package variables

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/NarrativeEngine/internal/document"
)

func TestTypeOf(t *testing.T) {
	cases := []struct {
		got  func() (Type, error)
		want Type
	}{
		{TypeOf[int], Int},
		{TypeOf[float32], Float},
		{TypeOf[float64], Double},
		{TypeOf[bool], Bool},
		{TypeOf[string], String},
	}
	for _, tc := range cases {
		got, err := tc.got()
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := TypeOf[int64]()
	assert.ErrorIs(t, err, ErrUnsupportedVariableType)
	_, err = TypeOf[[]string]()
	assert.ErrorIs(t, err, ErrUnsupportedVariableType)
}

func TestAddIsNoOpWhenDeclared(t *testing.T) {
	s := NewStore("local")
	require.NoError(t, Add(s, "gold", 10))
	require.NoError(t, Add(s, "gold", 99))
	require.NoError(t, Add(s, "gold", "not an int"))

	v, err := Get[int](s, "gold")
	require.NoError(t, err)
	assert.Equal(t, 10, v)
	assert.Equal(t, 1, s.Len())
}

func TestAddRejectsUnsupportedType(t *testing.T) {
	s := NewStore("local")
	err := Add(s, "when", int64(3))
	assert.ErrorIs(t, err, ErrUnsupportedVariableType)
	assert.False(t, s.HasVariable("when"))
}

func TestSetAndGet(t *testing.T) {
	s := NewStore("local")
	require.NoError(t, Add(s, "name", "Ada"))
	require.NoError(t, Set(s, "name", "Grace"))

	got, err := Get[string](s, "name")
	require.NoError(t, err)
	assert.Equal(t, "Grace", got)

	assert.ErrorIs(t, Set(s, "missing", 1), ErrVariableNotFound)
	assert.ErrorIs(t, Set(s, "name", 1), ErrVariableTypeMismatch)

	_, err = Get[int](s, "name")
	assert.ErrorIs(t, err, ErrVariableTypeMismatch)
	_, err = Get[string](s, "missing")
	assert.ErrorIs(t, err, ErrVariableNotFound)
}

func TestFloatAndDoubleAreDistinct(t *testing.T) {
	s := NewStore("local")
	require.NoError(t, Add(s, "speed", float32(1.5)))
	require.NoError(t, Add(s, "mass", 2.25))

	assert.ErrorIs(t, Set(s, "speed", 3.0), ErrVariableTypeMismatch)
	_, err := Get[float32](s, "mass")
	assert.ErrorIs(t, err, ErrVariableTypeMismatch)
}

func TestVariablesKeepsDeclarationOrder(t *testing.T) {
	s := NewStore("local")
	require.NoError(t, Add(s, "b", 1))
	require.NoError(t, Add(s, "a", true))
	require.NoError(t, Add(s, "c", "x"))

	var names []string
	for _, v := range s.Variables() {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"b", "a", "c"}, names)
}

func TestAssignCoercesDocumentNumbers(t *testing.T) {
	s := NewStore("local")
	require.NoError(t, Add(s, "gold", 0))
	require.NoError(t, Add(s, "ratio", 0.0))
	require.NoError(t, Add(s, "speed", float32(0)))

	require.NoError(t, s.Assign("gold", Int, json.Number("42")))
	require.NoError(t, s.Assign("ratio", Double, 3))
	require.NoError(t, s.Assign("speed", Float, json.Number("0.5")))

	gold, _ := Get[int](s, "gold")
	ratio, _ := Get[float64](s, "ratio")
	speed, _ := Get[float32](s, "speed")
	assert.Equal(t, 42, gold)
	assert.Equal(t, 3.0, ratio)
	assert.Equal(t, float32(0.5), speed)

	assert.ErrorIs(t, s.Assign("gold", Int, json.Number("4.5")), ErrVariableTypeMismatch)
	assert.ErrorIs(t, s.Assign("gold", Int, 4.5), ErrVariableTypeMismatch)
	assert.ErrorIs(t, s.Assign("gold", Double, 4.5), ErrVariableTypeMismatch)
	assert.ErrorIs(t, s.Assign("nothing", Int, 1), ErrVariableNotFound)
	assert.ErrorIs(t, s.Assign("gold", Type("Long"), 1), ErrUnsupportedVariableType)

	gold, _ = Get[int](s, "gold")
	assert.Equal(t, 42, gold)
}

func TestDeclare(t *testing.T) {
	s := NewStore("global")
	require.NoError(t, s.Declare(Variable{Name: "met_elder", Type: Bool, Value: false}))
	require.NoError(t, s.Declare(Variable{Name: "met_elder", Type: Bool, Value: true}))

	v, ok := s.Lookup("met_elder")
	require.True(t, ok)
	assert.Equal(t, false, v.Value)

	assert.ErrorIs(t, s.Declare(Variable{Name: "x", Type: Int, Value: "1"}), ErrVariableTypeMismatch)
	assert.ErrorIs(t, s.Declare(Variable{Name: "", Type: Int, Value: 1}), ErrEmptyName)
}

func TestSerializeRoundTrip(t *testing.T) {
	s := NewStore("local")
	require.NoError(t, Add(s, "gold", 7))
	require.NoError(t, Add(s, "speed", float32(1.25)))
	require.NoError(t, Add(s, "mass", 80.5))
	require.NoError(t, Add(s, "brave", true))
	require.NoError(t, Add(s, "title", "Sir"))

	data := document.Marshal(s.Serialize())
	doc, err := document.Parse(data)
	require.NoError(t, err)

	restored := NewStore("local")
	require.NoError(t, restored.Deserialize(doc))
	assert.Equal(t, s.Variables(), restored.Variables())
}

func TestDeserializeIsAtomic(t *testing.T) {
	s := NewStore("local")
	require.NoError(t, Add(s, "gold", 7))

	doc, err := document.Parse([]byte(`{"id":"local","variables":[
		{"name":"a","type":"Int","value":1},
		{"name":"b","type":"Int","value":"two"}
	]}`))
	require.NoError(t, err)

	err = s.Deserialize(doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeserializationFailure)
	assert.ErrorIs(t, err, ErrVariableTypeMismatch)

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "variables[1]", de.Path)
	assert.Equal(t, "value", de.Field)

	assert.Equal(t, 1, s.Len())
	gold, _ := Get[int](s, "gold")
	assert.Equal(t, 7, gold)
}

func TestDeserializeFailures(t *testing.T) {
	cases := map[string]struct {
		doc   string
		field string
	}{
		"missing list":   {`{"id":"local"}`, "variables"},
		"missing type":   {`[{"name":"a","value":1}]`, "type"},
		"unknown type":   {`[{"name":"a","type":"Long","value":1}]`, "type"},
		"duplicate name": {`[{"name":"a","type":"Int","value":1},{"name":"a","type":"Int","value":2}]`, "name"},
		"fractional int": {`[{"name":"a","type":"Int","value":1.5}]`, "value"},
		"null list":      {`{"id":"local","variables":null}`, "variables"},
		"null value":     {`[{"name":"a","type":"Int","value":null}]`, "value"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			doc, err := document.Parse([]byte(tc.doc))
			require.NoError(t, err)
			err = NewStore("local").Deserialize(doc)
			require.ErrorIs(t, err, ErrDeserializationFailure)
			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tc.field, de.Field)
		})
	}
}

func TestStoreJSON(t *testing.T) {
	s := NewStore("global")
	require.NoError(t, Add(s, "chapter", 2))

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var restored Store
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, "global", restored.ID())
	chapter, err := Get[int](&restored, "chapter")
	require.NoError(t, err)
	assert.Equal(t, 2, chapter)
}

func TestReplaceCopiesContents(t *testing.T) {
	src := NewStore("snapshot")
	require.NoError(t, Add(src, "hp", 7))
	dst := NewStore("local")
	require.NoError(t, Add(dst, "gold", 1))

	dst.Replace(src)
	assert.Equal(t, "local", dst.ID())
	assert.False(t, dst.HasVariable("gold"))
	hp, err := Get[int](dst, "hp")
	require.NoError(t, err)
	assert.Equal(t, 7, hp)

	require.NoError(t, Set(src, "hp", 1))
	hp, _ = Get[int](dst, "hp")
	assert.Equal(t, 7, hp)
}
