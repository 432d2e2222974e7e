package field

import (
	"errors"
	"math"
	"testing"

	"github.com/artpar/typedwire/core/wireerr"
)

type stubResolver map[string]Type

func (r stubResolver) Lookup(name string) (Type, bool) {
	t, ok := r[name]
	return t, ok
}

func TestScalar_Coerce(t *testing.T) {
	tests := []struct {
		name    string
		typ     *Scalar
		in      any
		want    any
		wantErr bool
	}{
		{"bool", Bool, true, true, false},
		{"bool from string", Bool, "true", nil, true},
		{"int widens", Int64, int32(7), int64(7), false},
		{"int from integral float", Int64, float64(3), int64(3), false},
		{"int from fractional float", Int64, 3.5, nil, true},
		{"int32 overflow", Int32, int64(1) << 40, nil, true},
		{"float from int", Float64, 2, float64(2), false},
		{"float32 widens", Float32, float32(1.5), float64(1.5), false},
		{"float32 overflow", Float32, 1e300, nil, true},
		{"float32 max", Float32, float64(math.MaxFloat32), float64(math.MaxFloat32), false},
		{"float64 large", Float64, 1e300, 1e300, false},
		{"string", String, "hi", "hi", false},
		{"string from int", String, 1, nil, true},
		{"bytes from string", Bytes, "ab", []byte("ab"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.typ.Coerce(tt.in)
			if tt.wantErr {
				if !errors.Is(err, wireerr.ErrIncompatible) {
					t.Fatalf("Coerce(%v) error = %v, want ErrIncompatible", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Coerce(%v) error = %v", tt.in, err)
			}
			if b, ok := tt.want.([]byte); ok {
				if string(got.([]byte)) != string(b) {
					t.Errorf("Coerce(%v) = %v, want %v", tt.in, got, tt.want)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Coerce(%v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestScalarByName(t *testing.T) {
	for _, name := range []string{"int", "integer", "int64"} {
		if s, ok := ScalarByName(name); !ok || s != Int64 {
			t.Errorf("ScalarByName(%q) = %v, %v", name, s, ok)
		}
	}
	if _, ok := ScalarByName("decimal"); ok {
		t.Error("ScalarByName(decimal) should fail")
	}
}

func TestField_Default(t *testing.T) {
	tests := []struct {
		name string
		f    *Field
		want any
	}{
		{"bool zero", New(Bool), false},
		{"int zero", New(Int32), int64(0)},
		{"float zero", New(Float64), float64(0)},
		{"string zero", New(String), ""},
		{"explicit", New(String, WithDefault("n/a")), "n/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.Default(); got != tt.want {
				t.Errorf("Default() = %#v, want %#v", got, tt.want)
			}
			if got := tt.f.Default(); got != tt.want {
				t.Errorf("second Default() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestField_Bind(t *testing.T) {
	f := New(String)
	if err := f.Bind("title"); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if err := f.Bind("title"); err != nil {
		t.Errorf("rebinding the same name should succeed: %v", err)
	}
	if err := f.Bind("other"); !errors.Is(err, wireerr.ErrFieldBound) {
		t.Errorf("Bind(other) error = %v, want ErrFieldBound", err)
	}
	if f.Name() != "title" {
		t.Errorf("Name() = %q", f.Name())
	}
}

func TestField_WireName(t *testing.T) {
	f := New(String)
	_ = f.Bind("created_at")
	if f.WireName() != "createdAt" {
		t.Errorf("WireName() = %q, want createdAt", f.WireName())
	}

	ref := New(String, WithWireName("$ref"))
	_ = ref.Bind("ref_")
	if ref.WireName() != "$ref" {
		t.Errorf("WireName() = %q, want $ref", ref.WireName())
	}
}

func TestField_ForwardReference(t *testing.T) {
	f := NewRef("pkg.Later")

	if _, err := f.Type(); !errors.Is(err, wireerr.ErrTypeResolution) {
		t.Fatalf("unbound Type() error = %v, want ErrTypeResolution", err)
	}

	f.BindResolver(stubResolver{})
	if err := f.ResolveTypes(); !errors.Is(err, wireerr.ErrTypeResolution) {
		t.Fatalf("missing type error = %v, want ErrTypeResolution", err)
	}

	g := NewRef("pkg.Later")
	g.BindResolver(stubResolver{"pkg.Later": String})
	typ, err := g.Type()
	if err != nil {
		t.Fatalf("Type() failed: %v", err)
	}
	if typ != String {
		t.Errorf("Type() = %v, want String", typ)
	}

	// the first resolver sticks and the resolution is cached
	g.BindResolver(stubResolver{"pkg.Later": Bool})
	typ, _ = g.Type()
	if typ != String {
		t.Errorf("Type() after rebind = %v, want String", typ)
	}
}

func TestField_Equal(t *testing.T) {
	a := New(String, WithOption("format", "email"))
	b := New(String, WithOption("format", "email"))
	_ = a.Bind("from")
	_ = b.Bind("to")

	if !a.Equal(b) {
		t.Error("fields with the same type and options should be equal regardless of name")
	}
	if a.Equal(New(String)) {
		t.Error("fields with different options should differ")
	}
	if a.Equal(New(Int64, WithOption("format", "email"))) {
		t.Error("fields with different types should differ")
	}
	if New(String).Equal(NewRepeat(New(String))) {
		t.Error("a field should not equal a repeated field")
	}
	if !NewRef("pkg.A").Equal(NewRef("pkg.A")) {
		t.Error("unresolved references to the same name should be equal")
	}
}

func TestField_WireNilPointer(t *testing.T) {
	var p *int
	got, err := New(Int64).Wire(p)
	if err != nil || got != nil {
		t.Errorf("Wire(nil pointer) = %v, %v; want nil, nil", got, err)
	}
}

func TestField_String(t *testing.T) {
	f := New(Int64)
	if f.String() != "<Field int64>" {
		t.Errorf("String() = %q", f.String())
	}
	_ = f.Bind("count")
	if f.String() != "<Field count:int64>" {
		t.Errorf("String() = %q", f.String())
	}
	if s := NewRef("pkg.Foo").String(); s != `<Field "pkg.Foo">` {
		t.Errorf("String() = %q", s)
	}
}
