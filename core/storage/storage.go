// Package storage archives packed messages by type.
// Every record keeps the qualified type name and the payload as produced by
// a wire format, so a message can be read back without knowing its type
// up front beyond a registry lookup.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/typedwire/core/message"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("record not found")

// Archive stores messages and reads them back.
type Archive interface {
	// Put validates m, packs it and stores it under a new id.
	Put(ctx context.Context, m *message.Message) (string, error)

	// Get unpacks the record with the given id as a message of type t.
	Get(ctx context.Context, t *message.Type, id string) (*message.Message, error)

	// Record returns the stored record with the given id.
	Record(ctx context.Context, id string) (Record, error)

	// List returns the records of a type in insertion order.
	List(ctx context.Context, typeName string, opts ListOptions) ([]Record, error)

	// Delete removes a record.
	Delete(ctx context.Context, id string) error

	// Close closes the storage connection.
	Close() error
}

// Record is one archived message.
type Record struct {
	ID        string
	TypeName  string
	Format    string
	Payload   []byte
	CreatedAt time.Time
}

// ListOptions configures list queries.
type ListOptions struct {
	// Limit is the maximum number of records to return; 0 means all.
	Limit int

	// Offset is the number of records to skip.
	Offset int
}
