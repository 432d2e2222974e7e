package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/typedwire/adapters/clock"
	"github.com/artpar/typedwire/adapters/idgen"
	"github.com/artpar/typedwire/core/codec"
	"github.com/artpar/typedwire/core/field"
	"github.com/artpar/typedwire/core/message"
	"github.com/artpar/typedwire/core/wireerr"
)

var product = message.Define("archive.Product").
	Field("sku", field.New(field.String, field.Required(), field.WithSchema(field.Schema{MinLength: 3}))).
	Field("price", field.New(field.Float64)).
	Field("tags", field.Repeat(field.String)).
	MustBuild()

var note = message.Define("archive.Note").
	Field("text", field.New(field.String)).
	MustBuild()

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestArchive(t *testing.T, opts ...Option) *SQLiteArchive {
	t.Helper()
	opts = append([]Option{
		WithClock(clock.NewStepping(epoch, time.Second)),
		WithIDGenerator(idgen.NewSequential("msg-")),
		WithLogger(zerolog.Nop()),
	}, opts...)

	a, err := NewSQLiteArchive(context.Background(), ":memory:", opts...)
	if err != nil {
		t.Fatalf("NewSQLiteArchive failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestSQLiteArchive(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	widget := product.MustNew("WGT-001", 9.5, []string{"new", "blue"})

	id, err := a.Put(ctx, widget)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if id != "msg-1" {
		t.Errorf("id = %q, want msg-1", id)
	}

	got, err := a.Get(ctx, product, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Equal(widget) {
		t.Errorf("Get = %v, want %v", got, widget)
	}

	rec, err := a.Record(ctx, id)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if rec.TypeName != "archive.Product" || rec.Format != "json" {
		t.Errorf("record = %+v", rec)
	}
	if !rec.CreatedAt.Equal(epoch) {
		t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, epoch)
	}
	if string(rec.Payload) != `{"price":9.5,"sku":"WGT-001","tags":["new","blue"]}` {
		t.Errorf("payload = %s", rec.Payload)
	}

	if err := a.Delete(ctx, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := a.Get(ctx, product, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete error = %v, want ErrNotFound", err)
	}
	if err := a.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteArchive_List(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	for _, sku := range []string{"AAA", "BBB", "CCC"} {
		if _, err := a.Put(ctx, product.MustNew(sku)); err != nil {
			t.Fatalf("Put %s failed: %v", sku, err)
		}
	}
	if _, err := a.Put(ctx, note.MustNew("hello")); err != nil {
		t.Fatalf("Put note failed: %v", err)
	}

	tests := []struct {
		name    string
		opts    ListOptions
		wantIDs []string
	}{
		{"all", ListOptions{}, []string{"msg-1", "msg-2", "msg-3"}},
		{"limit", ListOptions{Limit: 2}, []string{"msg-1", "msg-2"}},
		{"offset", ListOptions{Offset: 1}, []string{"msg-2", "msg-3"}},
		{"limit and offset", ListOptions{Limit: 1, Offset: 2}, []string{"msg-3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := a.List(ctx, "archive.Product", tt.opts)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(records) != len(tt.wantIDs) {
				t.Fatalf("len = %d, want %d", len(records), len(tt.wantIDs))
			}
			for i, rec := range records {
				if rec.ID != tt.wantIDs[i] {
					t.Errorf("records[%d] = %s, want %s", i, rec.ID, tt.wantIDs[i])
				}
			}
		})
	}

	n, err := a.Count(ctx, "archive.Note")
	if err != nil || n != 1 {
		t.Errorf("Count = %d, %v; want 1", n, err)
	}

	records, err := a.List(ctx, "archive.Missing", ListOptions{})
	if err != nil || len(records) != 0 {
		t.Errorf("List of an unknown type = %v, %v", records, err)
	}
}

func TestSQLiteArchive_PutInvalid(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	_, err := a.Put(ctx, product.MustNew("AB"))
	var verr *wireerr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Put error = %v, want ValidationError", err)
	}
	if verr.Path.String() != "sku" {
		t.Errorf("path = %q, want sku", verr.Path.String())
	}

	if n, _ := a.Count(ctx, "archive.Product"); n != 0 {
		t.Errorf("an invalid message should not be stored, count = %d", n)
	}

	if _, err := a.Put(ctx, nil); !errors.Is(err, wireerr.ErrIncompatible) {
		t.Errorf("Put(nil) error = %v", err)
	}
}

func TestSQLiteArchive_GetWrongType(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	id, err := a.Put(ctx, note.MustNew("hello"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := a.Get(ctx, product, id); !errors.Is(err, wireerr.ErrIncompatible) {
		t.Errorf("Get error = %v, want ErrIncompatible", err)
	}
}

func TestSQLiteArchive_Formats(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "archive.db")

	yamlArchive, err := NewSQLiteArchive(ctx, path, WithFormat(codec.NewYAML()))
	if err != nil {
		t.Fatalf("NewSQLiteArchive failed: %v", err)
	}
	id, err := yamlArchive.Put(ctx, note.MustNew("stored as yaml"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	yamlArchive.Close()

	// reopened with the default JSON format, the record is read as YAML
	jsonArchive, err := NewSQLiteArchive(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer jsonArchive.Close()

	got, err := jsonArchive.Get(ctx, note, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if text, _ := got.Get("text"); text != "stored as yaml" {
		t.Errorf("text = %v", text)
	}

	empty := codec.NewRegistry()
	strict, err := NewSQLiteArchive(ctx, path, WithFormats(empty))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer strict.Close()
	if _, err := strict.Get(ctx, note, id); err == nil {
		t.Error("Get should fail when the record format is unknown")
	}
}
