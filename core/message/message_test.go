package message

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/artpar/typedwire/core/field"
	"github.com/artpar/typedwire/core/wireerr"
)

func petType(t *testing.T) *Type {
	t.Helper()
	typ, err := Define("test.Pet").
		Field("name", field.New(field.String)).
		Field("age", field.New(field.Int32, field.WithDefault(int64(1)))).
		Field("tags", field.Repeat(field.String)).
		Field("attrs", field.Map(field.String)).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return typ
}

func TestBuilder_Inheritance(t *testing.T) {
	base := Define("test.Base").
		Field("id", field.New(field.String)).
		Field("title", field.New(field.String)).
		MustBuild()

	child := Define("test.Child", base).
		Field("size", field.New(field.Int64)).
		Field("title", field.New(field.String, field.Required())).
		MustBuild()

	var names []string
	for _, d := range child.Fields() {
		names = append(names, d.Name())
	}
	if diff := cmp.Diff([]string{"id", "title", "size"}, names); diff != "" {
		t.Errorf("field order mismatch (-want +got):\n%s", diff)
	}

	title, _ := child.Field("title")
	if !title.IsRequired() {
		t.Error("override should replace the inherited field")
	}
	if !child.IsA(base) || base.IsA(child) {
		t.Error("IsA should follow bases only")
	}
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
		wantErr error
	}{
		{
			name:    "bad identifier",
			builder: Define("test.Bad").Field("not valid", field.New(field.String)),
		},
		{
			name: "declared twice",
			builder: Define("test.Twice").
				Field("a", field.New(field.String)).
				Field("a", field.New(field.Int64)),
		},
		{
			name: "shared wire key",
			builder: Define("test.Wire").
				Field("a", field.New(field.String, field.WithWireName("x"))).
				Field("b", field.New(field.String, field.WithWireName("x"))),
		},
		{
			name:    "underivable hint",
			builder: Define("test.Hint").Hinted("c", reflect.TypeOf(make(chan int))),
			wantErr: wireerr.ErrCannotDerive,
		},
		{
			name:    "field bound elsewhere",
			builder: Define("test.Bound").Field("b", field.New(field.String, field.WithName("a"))),
			wantErr: wireerr.ErrFieldBound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			if err == nil {
				t.Fatal("Build should fail")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Build error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuilder_FailedBuildLeavesFieldsUnbound(t *testing.T) {
	title := field.New(field.String)
	clash := field.New(field.String, field.WithWireName("title"))

	_, err := Define("test.Clash").
		Field("title", title).
		Field("heading", clash).
		Build()
	if err == nil {
		t.Fatal("Build with a wire key clash should fail")
	}
	if title.Name() != "" || clash.Name() != "" {
		t.Errorf("names after failed build = %q, %q; want both unbound", title.Name(), clash.Name())
	}

	reg := NewRegistry()
	reg.Define("test.Taken").MustBuild()
	caption := field.New(field.String)
	if _, err := reg.Define("test.Taken").Field("caption", caption).Build(); !errors.Is(err, wireerr.ErrDuplicateType) {
		t.Fatalf("duplicate Build error = %v, want ErrDuplicateType", err)
	}

	typ, err := Define("test.Reused").
		Field("name", title).
		Field("label", caption).
		Build()
	if err != nil {
		t.Fatalf("reusing descriptors failed: %v", err)
	}
	if d, ok := typ.Field("name"); !ok || d != title {
		t.Error("name should be bound to the reused descriptor")
	}
}

func TestBuilder_Hinted(t *testing.T) {
	typ := Define("test.Hinted").
		Hinted("count", field.NativeOf[int](), field.WithDefault(int64(5))).
		Hinted("names", field.NativeOf[[]string]()).
		MustBuild()

	count, _ := typ.Field("count")
	if count.Default() != int64(5) {
		t.Errorf("count default = %v", count.Default())
	}
	if _, ok := count.(*field.Field); !ok {
		t.Errorf("count is %T, want *field.Field", count)
	}
	names, _ := typ.Field("names")
	if _, ok := names.(*field.RepeatField); !ok {
		t.Errorf("names is %T, want *field.RepeatField", names)
	}
}

func TestMessage_Access(t *testing.T) {
	typ := petType(t)
	m := typ.Empty()

	if _, err := m.Get("name"); !errors.Is(err, wireerr.ErrNotSet) {
		t.Errorf("Get unset error = %v, want ErrNotSet", err)
	}
	if v, _ := m.Wire("age"); v != int64(1) {
		t.Errorf("Wire(age) = %v, want default 1", v)
	}
	if v, _ := m.Value("name"); v != "" {
		t.Errorf("Value(name) = %q, want zero", v)
	}
	if _, err := m.Get("missing"); !errors.Is(err, wireerr.ErrUnknownField) {
		t.Errorf("Get unknown error = %v, want ErrUnknownField", err)
	}

	if err := m.Set("age", 3); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v, _ := m.Get("age"); v != int64(3) {
		t.Errorf("Get(age) = %#v, want int64(3)", v)
	}
	if err := m.Set("age", "three"); !errors.Is(err, wireerr.ErrIncompatible) {
		t.Errorf("Set bad value error = %v, want ErrIncompatible", err)
	}

	if err := m.Put("name", nil); err != nil {
		t.Fatalf("Put(nil) failed: %v", err)
	}
	if !m.Has("name") {
		t.Error("a null value is still set")
	}
	if v, err := m.Get("name"); err != nil || v != nil {
		t.Errorf("Get(name) = %v, %v; want nil", v, err)
	}

	if diff := cmp.Diff([]string{"name", "age"}, m.Fields()); diff != "" {
		t.Errorf("Fields mismatch (-want +got):\n%s", diff)
	}

	_ = m.Delete("name")
	if m.Has("name") || m.Len() != 1 {
		t.Errorf("Delete left %v", m)
	}

	age, err := ValueAs[int64](m, "age")
	if err != nil || age != 3 {
		t.Errorf("ValueAs = %v, %v", age, err)
	}
	if _, err := ValueAs[string](m, "age"); !errors.Is(err, wireerr.ErrIncompatible) {
		t.Errorf("ValueAs wrong type error = %v", err)
	}
}

func TestType_NewWith(t *testing.T) {
	typ := petType(t)

	m, err := typ.NewWith([]any{"rex"}, map[string]any{"age": 4})
	if err != nil {
		t.Fatalf("NewWith failed: %v", err)
	}
	if v, _ := m.Get("name"); v != "rex" {
		t.Errorf("name = %v", v)
	}
	if v, _ := m.Get("age"); v != int64(4) {
		t.Errorf("age = %v", v)
	}

	_, err = typ.NewWith([]any{"rex"}, map[string]any{"name": "max"})
	if !errors.Is(err, wireerr.ErrAmbiguousArgument) {
		t.Errorf("duplicate argument error = %v, want ErrAmbiguousArgument", err)
	}

	_, err = typ.NewWith(nil, map[string]any{"colour": "red"})
	if !errors.Is(err, wireerr.ErrUnknownField) {
		t.Errorf("unknown keyword error = %v, want ErrUnknownField", err)
	}

	if _, err := typ.New("a", 1, nil, nil, "extra"); err == nil {
		t.Error("too many positional arguments should fail")
	}
}

func TestMessage_Equal(t *testing.T) {
	typ := petType(t)
	other := Define("test.Other").Field("name", field.New(field.String)).MustBuild()

	a := typ.MustNew("rex", 2, []string{"good"})
	b := typ.MustNew("rex", 2, []any{"good"})
	if !a.Equal(b) {
		t.Errorf("%v should equal %v", a, b)
	}

	_ = b.Set("tags", []string{"bad"})
	if a.Equal(b) {
		t.Error("different tags should differ")
	}

	c := other.MustNew("rex")
	d := typ.MustNew("rex")
	if c.Equal(d) {
		t.Error("messages of different types are never equal")
	}

	e := typ.Empty()
	_ = e.Set("age", 1)
	if e.Equal(typ.Empty()) {
		t.Error("a field set to its default differs from an unset field")
	}
}

func TestRepeatView(t *testing.T) {
	typ := petType(t)
	m := typ.Empty()

	v, err := m.Value("tags")
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	tags, ok := v.(*RepeatView)
	if !ok {
		t.Fatalf("Value(tags) = %T, want *RepeatView", v)
	}

	if err := tags.Append("a", "c"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := tags.Insert(1, "b"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	stored, _ := m.Get("tags")
	if diff := cmp.Diff([]any{"a", "b", "c"}, stored); diff != "" {
		t.Errorf("backing store mismatch (-want +got):\n%s", diff)
	}

	if err := tags.Set(0, "z"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := tags.Delete(2); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := tags.Set(0, 1); !errors.Is(err, wireerr.ErrIncompatible) {
		t.Errorf("Set wrong item error = %v, want ErrIncompatible", err)
	}
	if _, err := tags.At(5); err == nil {
		t.Error("At out of range should fail")
	}

	// a second view sees the same storage
	again, _ := m.Repeated("tags")
	if diff := cmp.Diff([]any{"z", "b"}, again.Values()); diff != "" {
		t.Errorf("view mismatch (-want +got):\n%s", diff)
	}

	// replacing the stored value is visible through the old view
	_ = m.Set("tags", []string{"only"})
	if tags.Len() != 1 {
		t.Errorf("Len() = %d after replace, want 1", tags.Len())
	}

	if _, err := m.Repeated("name"); err == nil {
		t.Error("Repeated on a scalar field should fail")
	}
}

func TestRepeatView_Default(t *testing.T) {
	def := []any{"a", "b"}
	typ := Define("test.Labeled").
		Field("tags", field.Repeat(field.String, field.WithDefault(def))).
		MustBuild()
	m := typ.Empty()

	v, err := m.Value("tags")
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	tags := v.(*RepeatView)
	if tags.Len() != 2 {
		t.Fatalf("Len() = %d on unset field, want the default's 2", tags.Len())
	}
	if got, _ := tags.At(1); got != "b" {
		t.Errorf("At(1) = %v, want b", got)
	}
	if m.Has("tags") {
		t.Error("reading the default should not set the field")
	}

	if err := tags.Set(0, "z"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	stored, _ := m.Get("tags")
	if diff := cmp.Diff([]any{"z", "b"}, stored); diff != "" {
		t.Errorf("stored mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"a", "b"}, def); diff != "" {
		t.Errorf("default was mutated (-want +got):\n%s", diff)
	}

	// a fresh instance still sees the untouched default
	other, _ := typ.Empty().Repeated("tags")
	if diff := cmp.Diff([]any{"a", "b"}, other.Values()); diff != "" {
		t.Errorf("default mismatch (-want +got):\n%s", diff)
	}
}

func TestMapView_Default(t *testing.T) {
	def := map[string]any{"k": "v"}
	typ := Define("test.Annotated").
		Field("attrs", field.Map(field.String, field.WithDefault(def))).
		MustBuild()
	m := typ.Empty()

	attrs, _ := m.Mapped("attrs")
	if got, ok := attrs.Get("k"); !ok || got != "v" {
		t.Errorf("Get(k) = %v, %v; want the default", got, ok)
	}
	_ = attrs.Set("x", "y")
	if diff := cmp.Diff([]string{"k", "x"}, attrs.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if len(def) != 1 {
		t.Errorf("default was mutated: %v", def)
	}
}

func TestMapView(t *testing.T) {
	typ := petType(t)
	m := typ.Empty()

	attrs, err := m.Mapped("attrs")
	if err != nil {
		t.Fatalf("Mapped failed: %v", err)
	}
	_ = attrs.Set("b", "2")
	_ = attrs.Set("a", "1")

	if diff := cmp.Diff([]string{"a", "b"}, attrs.Keys()); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
	stored, _ := m.Get("attrs")
	if diff := cmp.Diff(map[string]any{"a": "1", "b": "2"}, stored); diff != "" {
		t.Errorf("backing store mismatch (-want +got):\n%s", diff)
	}

	attrs.Delete("a")
	if _, ok := attrs.Get("a"); ok || attrs.Len() != 1 {
		t.Error("Delete should remove the key")
	}
	if err := attrs.Set("c", 3); !errors.Is(err, wireerr.ErrIncompatible) {
		t.Errorf("Set wrong value error = %v", err)
	}
}

func TestRegistry_ForwardReferences(t *testing.T) {
	reg := NewRegistry()

	node := reg.Define("tree.Node").
		Field("label", field.New(field.String)).
		Field("children", field.Repeat("tree.Node")).
		Field("owner", field.NewRef("tree.Owner")).
		MustBuild()

	if err := reg.Resolve(); !errors.Is(err, wireerr.ErrTypeResolution) {
		t.Fatalf("Resolve error = %v, want ErrTypeResolution", err)
	}

	owner := reg.Define("tree.Owner").Field("name", field.New(field.String)).MustBuild()
	if err := reg.Resolve(); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	m := node.Empty()
	if err := m.Set("owner", owner.MustNew("ada")); err != nil {
		t.Fatalf("Set owner failed: %v", err)
	}
	if err := m.Set("children", []any{node.MustNew("leaf")}); err != nil {
		t.Fatalf("Set children failed: %v", err)
	}
	if err := m.Set("owner", node.Empty()); !errors.Is(err, wireerr.ErrIncompatible) {
		t.Errorf("Set wrong message type error = %v", err)
	}

	if _, err := reg.Define("tree.Node").Build(); !errors.Is(err, wireerr.ErrDuplicateType) {
		t.Errorf("duplicate registration error = %v", err)
	}

	var names []string
	for _, typ := range reg.Types() {
		names = append(names, typ.TypeName())
	}
	if diff := cmp.Diff([]string{"tree.Node", "tree.Owner"}, names); diff != "" {
		t.Errorf("Types mismatch (-want +got):\n%s", diff)
	}
	if reg.MustLookup("tree.Owner") != owner {
		t.Error("MustLookup returned another type")
	}
}

func TestRegistry_LazyResolution(t *testing.T) {
	reg := NewRegistry()
	a := reg.Define("lazy.A").Field("b", field.NewRef("lazy.B")).MustBuild()
	b := reg.Define("lazy.B").Field("n", field.New(field.Int64)).MustBuild()

	m := a.Empty()
	if err := m.Set("b", b.MustNew(1)); err != nil {
		t.Fatalf("lazy resolution failed: %v", err)
	}
	v, _ := m.Wire("b")
	if inner, ok := v.(*Message); !ok || inner.Type() != b {
		t.Errorf("Wire(b) = %v", v)
	}

	d, _ := a.Field("b")
	if !d.(*field.Field).Equal(field.New(b)) {
		t.Error("a resolved reference should equal a field of the resolved type")
	}
}
