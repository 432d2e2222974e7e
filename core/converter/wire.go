package converter

import (
	"errors"

	"github.com/artpar/typedwire/core/field"
	"github.com/artpar/typedwire/core/message"
	"github.com/artpar/typedwire/core/wireerr"
)

// Timestamp is a point in time as seconds and nanoseconds since the Unix epoch.
var Timestamp = message.Define("typedwire.Timestamp").
	Field("seconds", field.New(field.Int64)).
	Field("nanos", field.New(field.Int32)).
	MustBuild()

// Date is a calendar date without a time zone.
var Date = message.Define("typedwire.Date").
	Field("year", field.New(field.Int32)).
	Field("month", field.New(field.Int32)).
	Field("day", field.New(field.Int32)).
	MustBuild()

// Value wrappers. An unset value reads as null.
var (
	StringValue  = wrapper("typedwire.StringValue", field.String)
	IntegerValue = wrapper("typedwire.IntegerValue", field.Int64)
	NumberValue  = wrapper("typedwire.NumberValue", field.Float64)
	BooleanValue = wrapper("typedwire.BooleanValue", field.Bool)
)

func wrapper(name string, t *field.Scalar) *message.Type {
	return message.Define(name).Field("value", field.New(t)).MustBuild()
}

// WireTypes returns the wire message types in a stable order.
func WireTypes() []*message.Type {
	return []*message.Type{Timestamp, Date, StringValue, IntegerValue, NumberValue, BooleanValue}
}

// RegisterTypes makes the wire message types available to reg so that
// declarations can refer to them by name. Types already present are skipped.
func RegisterTypes(reg *message.Registry) error {
	for _, t := range WireTypes() {
		if err := reg.Register(t); err != nil && !errors.Is(err, wireerr.ErrDuplicateType) {
			return err
		}
	}
	return nil
}

// int64Of reads an integer field of a wire message, treating unset and
// null as zero.
func int64Of(m *message.Message, name string) int64 {
	v, err := m.Wire(name)
	if err != nil {
		return 0
	}
	n, _ := v.(int64)
	return n
}
