package schema

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/typedwire/core/field"
	"github.com/artpar/typedwire/core/message"
	"github.com/artpar/typedwire/core/wireerr"
)

const shopYAML = `
package: shop

messages:
  - name: Order
    extends: [Audited]
    fields:
      - { name: items,     type: Item, repeated: true, schema: { max_items: 50 } }
      - { name: labels,    type: string, map: true }
      - { name: placed_at, type: datetime }
      - { name: ref_,      type: string, wire_name: $ref }
      - { name: note,      type: nullable_string }
      - { name: parent,    type: Order }

  - name: Item
    fields:
      - { name: sku,   type: string, required: true, schema: { pattern: "^[A-Z]{3}-[0-9]{4}$" } }
      - { name: price, type: number, default: 1 }
      - { name: codes, type: int, repeated: true, default: [1, 2] }

  - name: Audited
    fields:
      - { name: created_by, type: string, default: system }
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func isConverter(d field.Descriptor) bool {
	_, ok := d.(*field.ConverterField)
	return ok
}

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(shopYAML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if doc.Package != "shop" {
		t.Errorf("Package = %q, want shop", doc.Package)
	}
	if len(doc.Messages) != 3 {
		t.Fatalf("Messages = %d, want 3", len(doc.Messages))
	}

	order := doc.Messages[0]
	if order.Name != "Order" || len(order.Fields) != 6 {
		t.Errorf("Order = %+v", order)
	}
	if order.Fields[0].Schema == nil || order.Fields[0].Schema.MaxItems != 50 {
		t.Errorf("items schema = %+v", order.Fields[0].Schema)
	}
	if order.Fields[3].WireName != "$ref" {
		t.Errorf("wire_name = %q", order.Fields[3].WireName)
	}
	if doc.Qualify("Item") != "shop.Item" || doc.Qualify("other.Item") != "other.Item" {
		t.Error("Qualify should prefix bare names only")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{
			name: "valid minimal",
			yaml: `
package: test
messages:
  - name: A
    fields:
      - { name: x, type: string }
`,
		},
		{
			name: "bad package",
			yaml: `
package: "te st"
messages: []
`,
			wantErr: true,
		},
		{
			name: "bad message name",
			yaml: `
messages:
  - name: "1A"
`,
			wantErr: true,
		},
		{
			name: "duplicate message",
			yaml: `
messages:
  - name: A
  - name: A
`,
			wantErr: true,
		},
		{
			name: "duplicate field",
			yaml: `
messages:
  - name: A
    fields:
      - { name: x, type: string }
      - { name: x, type: int }
`,
			wantErr: true,
		},
		{
			name: "missing type",
			yaml: `
messages:
  - name: A
    fields:
      - { name: x }
`,
			wantErr: true,
		},
		{
			name: "repeated map",
			yaml: `
messages:
  - name: A
    fields:
      - { name: x, type: string, repeated: true, map: true }
`,
			wantErr: true,
		},
		{
			name:    "not yaml",
			yaml:    "messages: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	doc, err := Parse([]byte(shopYAML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	reg := message.NewRegistry()
	types, err := Load(reg, doc)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var names []string
	for _, typ := range types {
		names = append(names, typ.TypeName())
	}
	if strings.Join(names, ",") != "shop.Order,shop.Item,shop.Audited" {
		t.Errorf("types = %v", names)
	}

	order := reg.MustLookup("shop.Order")
	var fields []string
	for _, d := range order.Fields() {
		fields = append(fields, d.Name())
	}
	if strings.Join(fields, ",") != "created_by,items,labels,placed_at,ref_,note,parent" {
		t.Errorf("Order fields = %v", fields)
	}

	if d, _ := order.Field("created_by"); d.Default() != "system" {
		t.Errorf("created_by default = %v", d.Default())
	}
	if d, _ := order.Field("ref_"); d.WireName() != "$ref" {
		t.Errorf("ref_ wire name = %q", d.WireName())
	}
	if d, _ := order.Field("placed_at"); !isConverter(d) {
		t.Error("placed_at should be a converter field")
	}

	item := reg.MustLookup("shop.Item")
	if d, _ := item.Field("price"); d.Default() != float64(1) {
		t.Errorf("price default = %#v, want float64(1)", d.Default())
	}
	if d, _ := item.Field("codes"); len(d.Default().([]any)) != 2 || d.Default().([]any)[0] != int64(1) {
		t.Errorf("codes default = %#v", d.Default())
	}
	if d, _ := item.Field("sku"); !d.IsRequired() || d.Schema().Pattern == "" {
		t.Errorf("sku = %v", d)
	}

	// cyclic self reference and forward reference both resolve
	m := order.Empty()
	if err := m.Set("parent", order.Empty()); err != nil {
		t.Errorf("Set parent: %v", err)
	}
	if err := m.Set("items", []any{item.MustNew("ABC-1234")}); err != nil {
		t.Errorf("Set items: %v", err)
	}
	if err := m.Set("placed_at", time.Unix(10, 0)); err != nil {
		t.Errorf("Set placed_at: %v", err)
	}
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name: "unknown field type",
			yaml: `
package: bad
messages:
  - name: A
    fields:
      - { name: x, type: Missing }
`,
			wantErr: wireerr.ErrTypeResolution,
		},
		{
			name: "unknown base",
			yaml: `
package: bad
messages:
  - name: A
    extends: [Nope]
`,
			wantErr: wireerr.ErrTypeResolution,
		},
		{
			name: "inheritance cycle",
			yaml: `
package: bad
messages:
  - { name: A, extends: [B] }
  - { name: B, extends: [A] }
`,
		},
		{
			name: "bad default",
			yaml: `
package: bad
messages:
  - name: A
    fields:
      - { name: x, type: int, default: many }
`,
			wantErr: wireerr.ErrIncompatible,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			reg := message.NewRegistry()
			_, err = Load(reg, doc)
			if err == nil {
				t.Fatal("Load should fail")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Load error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == wireerr.ErrTypeResolution {
				if _, ok := reg.Type("bad.A"); ok {
					t.Error("nothing should be registered when a reference is unknown")
				}
			}
		})
	}
}

func TestLoad_DuplicateAcrossDocuments(t *testing.T) {
	a := Document{Package: "p", Messages: []MessageDef{{Name: "A"}}}
	b := Document{Package: "p", Messages: []MessageDef{{Name: "A"}}}

	_, err := Load(message.NewRegistry(), a, b)
	if !errors.Is(err, wireerr.ErrDuplicateType) {
		t.Errorf("error = %v, want ErrDuplicateType", err)
	}
}

func TestLoad_AcrossDocuments(t *testing.T) {
	a := Document{Package: "a", Messages: []MessageDef{{
		Name:   "User",
		Fields: []FieldDef{{Name: "group", Type: "b.Group"}},
	}}}
	b := Document{Package: "b", Messages: []MessageDef{{
		Name:   "Group",
		Fields: []FieldDef{{Name: "members", Type: "a.User", Repeated: true}},
	}}}

	reg := message.NewRegistry()
	if _, err := Load(reg, a, b); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := reg.Type("typedwire.Timestamp"); !ok {
		t.Error("the converter wire types should be registered")
	}
}

func TestParseDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shop.yaml", shopYAML)
	writeFile(t, dir, "nested/extra.yml", "package: extra\nmessages:\n  - name: E\n")
	writeFile(t, dir, "README.md", "not a schema")

	docs, err := ParseDir(dir)
	if err != nil {
		t.Fatalf("ParseDir failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("docs = %d, want 2", len(docs))
	}
	for _, doc := range docs {
		if doc.Source == "" {
			t.Errorf("document %q has no source", doc.Package)
		}
	}

	reg, err := LoadDirs(dir)
	if err != nil {
		t.Fatalf("LoadDirs failed: %v", err)
	}
	if _, ok := reg.Type("extra.E"); !ok {
		t.Error("extra.E not loaded")
	}

	writeFile(t, dir, "broken.yaml", "messages: [")
	if _, err := ParseDir(dir); err == nil {
		t.Error("ParseDir should fail on a broken file")
	}
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.yaml", "package: w\nmessages:\n  - name: A\n")

	w, err := NewWatcher(zerolog.Nop(), dir)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Stop()

	var reloaded *message.Registry
	w.OnChange(func(reg *message.Registry) { reloaded = reg })
	var failures int
	w.OnReload(func(_ *message.Registry, err error) {
		if err != nil {
			failures++
		}
	})

	writeFile(t, dir, "a.yaml", "package: w\nmessages:\n  - name: A\n  - name: B\n")
	if err := w.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if _, ok := w.Registry().Type("w.B"); !ok {
		t.Error("w.B not loaded after reload")
	}
	if reloaded != w.Registry() {
		t.Error("OnChange should receive the new registry")
	}

	if err := os.WriteFile(path, []byte("messages: ["), 0644); err != nil {
		t.Fatal(err)
	}
	if err := w.Reload(); err == nil {
		t.Error("Reload should fail on a broken file")
	}
	if _, ok := w.Registry().Type("w.B"); !ok {
		t.Error("a failed reload should keep the previous registry")
	}
	if failures != 1 {
		t.Errorf("failed reloads observed = %d, want 1", failures)
	}
}

func TestWatcher_WatchFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "package: w\nmessages:\n  - name: A\n")

	w, err := NewWatcher(zerolog.Nop(), dir)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Stop()

	changed := make(chan struct{}, 1)
	w.OnChange(func(*message.Registry) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	writeFile(t, dir, "b.yaml", "package: w\nmessages:\n  - name: B\n")

	// a create event may reload before the content is written
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-changed:
		case <-deadline:
			t.Fatal("w.B not loaded by the file watcher")
		}
		if _, ok := w.Registry().Type("w.B"); ok {
			return
		}
	}
}
