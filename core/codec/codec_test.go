package codec

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/typedwire/core/converter"
	"github.com/artpar/typedwire/core/field"
	"github.com/artpar/typedwire/core/message"
	"github.com/artpar/typedwire/core/wireerr"
)

type fixture struct {
	reg     *message.Registry
	address *message.Type
	person  *message.Type
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	reg := message.NewRegistry()
	converter.Defaults().Install(reg.Deriver())

	person := reg.Define("test.Person").
		Field("full_name", field.New(field.String, field.Required())).
		Field("age", field.New(field.Int32)).
		Field("height", field.New(field.Float64)).
		Field("avatar", field.New(field.Bytes)).
		Field("ref_", field.New(field.String)).
		Field("home", field.NewRef("test.Address")).
		Field("emails", field.Repeat(field.String)).
		Field("scores", field.Map(field.Int64)).
		Hinted("born_at", field.NativeOf[time.Time]()).
		Hinted("nickname", field.NativeOf[*string]()).
		MustBuild()
	address := reg.Define("test.Address").
		Field("street", field.New(field.String)).
		Field("previous", field.Repeat("test.Address")).
		MustBuild()
	require.NoError(t, reg.Resolve())

	return fixture{reg: reg, address: address, person: person}
}

func TestEncode(t *testing.T) {
	f := newFixture(t)

	m := f.person.Empty()
	require.NoError(t, m.Set("full_name", "Ada"))
	require.NoError(t, m.Set("age", 36))
	require.NoError(t, m.Set("avatar", []byte("hi")))
	require.NoError(t, m.Set("ref_", "#/x"))
	require.NoError(t, m.Set("home", f.address.MustNew("Main St")))
	require.NoError(t, m.Set("emails", []string{"a@x", "b@x"}))
	require.NoError(t, m.Set("scores", map[string]int{"math": 9}))
	require.NoError(t, m.Set("born_at", time.Unix(100, 5).UTC()))
	require.NoError(t, m.Put("nickname", nil))

	got, err := Encode(m)
	require.NoError(t, err)

	want := map[string]any{
		"fullName": "Ada",
		"age":      int64(36),
		"avatar":   "aGk=",
		"$ref":     "#/x",
		"home":     map[string]any{"street": "Main St"},
		"emails":   []any{"a@x", "b@x"},
		"scores":   map[string]any{"math": int64(9)},
		"bornAt":   map[string]any{"seconds": int64(100), "nanos": int64(5)},
		"nickname": nil,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Encode mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeAs_RejectsUnrelatedType(t *testing.T) {
	f := newFixture(t)
	_, err := EncodeAs(f.person, f.address.Empty())
	assert.ErrorIs(t, err, wireerr.ErrIncompatible)
}

func TestEncode_DerivedType(t *testing.T) {
	base := message.Define("test.Base").Field("id", field.New(field.String)).MustBuild()
	child := message.Define("test.Derived", base).Field("extra", field.New(field.Bool)).MustBuild()
	holder := message.Define("test.Holder").Field("item", field.New(base)).MustBuild()

	m := holder.MustNew(child.MustNew("x", true))
	got, err := Encode(m)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"item": map[string]any{"id": "x", "extra": true}}, got)

	asBase, err := EncodeAs(base, child.MustNew("y", false))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "y"}, asBase)
}

func TestJSON_RoundTrip(t *testing.T) {
	f := newFixture(t)
	j := NewJSON()

	m := f.person.Empty()
	require.NoError(t, m.Set("full_name", "Grace"))
	require.NoError(t, m.Set("height", 1.6))
	require.NoError(t, m.Set("avatar", []byte{0, 1, 2, 255}))
	require.NoError(t, m.Set("emails", []string{"g@x"}))
	prev := f.address.MustNew("Old Rd")
	require.NoError(t, m.Set("home", f.address.MustNew("New Rd", []any{prev})))
	require.NoError(t, m.Set("born_at", time.Date(1906, 12, 9, 0, 0, 0, 0, time.UTC)))
	nick := "amazing"
	require.NoError(t, m.Set("nickname", &nick))

	data, err := j.Pack(f.person, m)
	require.NoError(t, err)

	back, err := j.Unpack(f.person, data)
	require.NoError(t, err)
	assert.True(t, m.Equal(back), "round trip changed the message:\n%v\n%v", m, back)

	born, err := message.ValueAs[time.Time](back, "born_at")
	require.NoError(t, err)
	assert.Equal(t, 1906, born.Year())

	gotNick, err := message.ValueAs[*string](back, "nickname")
	require.NoError(t, err)
	require.NotNil(t, gotNick)
	assert.Equal(t, "amazing", *gotNick)
}

func TestJSON_Unpack(t *testing.T) {
	f := newFixture(t)
	j := NewJSON()

	m, err := j.Unpack(f.person, []byte(`{"fullName": "Ada", "age": 36, "height": 2, "unknown": {"a": 1}, "scores": {"x": 12345678901234567}}`))
	require.NoError(t, err)

	age, _ := m.Get("age")
	assert.Equal(t, int64(36), age)
	height, _ := m.Get("height")
	assert.Equal(t, float64(2), height, "integers widen into float fields")
	scores, _ := m.Get("scores")
	assert.Equal(t, map[string]any{"x": int64(12345678901234567)}, scores, "integers keep full precision")
	assert.False(t, m.Has("emails"), "absent optional fields stay unset")
	assert.Equal(t, []string{"full_name", "age", "height", "scores"}, m.Fields())

	stripped, err := j.Unpack(f.person, []byte(`{"fullName": "Ada", "age": 36, "height": 2, "scores": {"x": 12345678901234567}}`))
	require.NoError(t, err)
	assert.True(t, m.Equal(stripped), "unknown keys are ignored: got %v, want %v", m, stripped)
}

func TestJSON_UnpackErrors(t *testing.T) {
	f := newFixture(t)
	j := NewJSON()

	tests := []struct {
		name    string
		payload string
		wantErr error
		path    string
	}{
		{"syntax", `{"fullName": `, wireerr.ErrFormat, ""},
		{"empty", ``, wireerr.ErrFormat, ""},
		{"trailing data", `{"fullName": "a"} {}`, wireerr.ErrFormat, ""},
		{"not an object", `"Ada"`, wireerr.ErrDecode, ""},
		{"missing required", `{"age": 1}`, wireerr.ErrDecode, "fullName"},
		{"wrong kind", `{"fullName": "a", "age": "1"}`, wireerr.ErrDecode, "age"},
		{"nested", `{"fullName": "a", "home": {"previous": [{"street": 1}]}}`, wireerr.ErrDecode, "home.previous[0].street"},
		{"converter wire", `{"fullName": "a", "bornAt": {"seconds": "x"}}`, wireerr.ErrDecode, "bornAt.seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := j.Unpack(f.person, []byte(tt.payload))
			require.ErrorIs(t, err, tt.wantErr)

			var derr *wireerr.DecodeError
			if errors.As(err, &derr) {
				assert.Equal(t, tt.path, derr.Path.String())
			}
		})
	}
}

func TestJSON_PackIndent(t *testing.T) {
	typ := message.Define("test.Small").Field("a_b", field.New(field.Int64)).MustBuild()

	data, err := (&JSON{Indent: "  "}).Pack(typ, typ.MustNew(1))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"aB\": 1\n}", string(data))

	data, err = NewJSON().Pack(typ, typ.Empty())
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestDecode_ValueTree(t *testing.T) {
	f := newFixture(t)

	var tree any
	require.NoError(t, json.Unmarshal([]byte(`{"fullName": "x", "age": 3}`), &tree))

	m, err := Decode(tree, f.person)
	require.NoError(t, err)
	age, _ := m.Get("age")
	assert.Equal(t, int64(3), age, "float64 integers from plain json.Unmarshal are accepted")
}

func TestYAML_RoundTrip(t *testing.T) {
	f := newFixture(t)
	y := NewYAML()

	m := f.person.Empty()
	require.NoError(t, m.Set("full_name", "Linus"))
	require.NoError(t, m.Set("age", 28))
	require.NoError(t, m.Set("height", 1.8))
	require.NoError(t, m.Set("scores", map[string]int64{"kernel": 10}))
	require.NoError(t, m.Set("avatar", []byte("tux")))

	data, err := y.Pack(f.person, m)
	require.NoError(t, err)

	back, err := y.Unpack(f.person, data)
	require.NoError(t, err)
	assert.True(t, m.Equal(back), "round trip changed the message:\n%s", data)

	_, err = y.Unpack(f.person, []byte("fullName: [unterminated"))
	assert.ErrorIs(t, err, wireerr.ErrFormat)
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"json", "yaml"}, List())

	f, ok := DefaultRegistry.ByMIME("application/json; charset=utf-8")
	require.True(t, ok)
	assert.Equal(t, "json", f.Name())

	_, ok = DefaultRegistry.ByMIME("text/csv")
	assert.False(t, ok)

	r := NewRegistry()
	require.NoError(t, r.Register(NewYAML()))
	assert.Error(t, r.Register(NewYAML()))
	assert.Nil(t, r.Default(), "json is the default but not registered")
	require.NoError(t, r.SetDefault("yaml"))
	assert.Equal(t, "yaml", r.Default().Name())
	assert.Error(t, r.SetDefault("xml"))

	indented := &JSON{Indent: "  "}
	r.Replace(NewJSON())
	r.Replace(indented)
	f, ok = r.Get("json")
	require.True(t, ok)
	assert.Same(t, indented, f)
}

func TestObserved(t *testing.T) {
	f := newFixture(t)

	type call struct {
		op   string
		typ  string
		kind string
	}
	var calls []call
	obs := ObserverFunc(func(format, op string, typ *message.Type, took time.Duration, err error) {
		assert.Equal(t, "json", format)
		assert.GreaterOrEqual(t, took, time.Duration(0))
		calls = append(calls, call{op: op, typ: typ.TypeName(), kind: wireerr.Kind(err)})
	})

	j := Observed(NewJSON(), obs)
	data, err := j.Pack(f.address, f.address.MustNew("x"))
	require.NoError(t, err)
	_, err = j.Unpack(f.address, data)
	require.NoError(t, err)
	_, err = j.Unpack(f.address, []byte("{"))
	require.Error(t, err)

	assert.Equal(t, []call{
		{OpPack, "test.Address", ""},
		{OpUnpack, "test.Address", ""},
		{OpUnpack, "test.Address", "format"},
	}, calls)

	plain := NewJSON()
	assert.Same(t, plain, Observed(plain, nil), "nil observer returns the format unchanged")
}
