package converter

import (
	"fmt"
	"time"

	"github.com/artpar/typedwire/core/field"
	"github.com/artpar/typedwire/core/message"
)

// CivilDate is a date in the proleptic Gregorian calendar.
type CivilDate struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the date part of t in t's location.
func DateOf(t time.Time) CivilDate {
	y, m, d := t.Date()
	return CivilDate{Year: y, Month: m, Day: d}
}

// In returns midnight of d in loc.
func (d CivilDate) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// IsZero reports whether d is the zero date.
func (d CivilDate) IsZero() bool { return d == CivilDate{} }

func (d CivilDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// DateTime stores time.Time as a Timestamp. Times are resolved in UTC; the
// zero Timestamp resolves to the Unix epoch.
var DateTime = Func(Timestamp,
	func(w *message.Message) (time.Time, error) {
		return time.Unix(int64Of(w, "seconds"), int64Of(w, "nanos")).UTC(), nil
	},
	func(t time.Time) (*message.Message, error) {
		return Timestamp.New(t.Unix(), int64(t.Nanosecond()))
	},
)

// DateOnly stores CivilDate as a Date.
var DateOnly = Func(Date,
	func(w *message.Message) (CivilDate, error) {
		return CivilDate{
			Year:  int(int64Of(w, "year")),
			Month: time.Month(int64Of(w, "month")),
			Day:   int(int64Of(w, "day")),
		}, nil
	},
	func(d CivilDate) (*message.Message, error) {
		return Date.New(d.Year, int(d.Month), d.Day)
	},
)

// Nullable scalars: a nil pointer is stored as null and an unset or null
// wrapper value resolves to a nil pointer.
var (
	NullableString  = nullable[string](StringValue)
	NullableInteger = nullable[int64](IntegerValue)
	NullableNumber  = nullable[float64](NumberValue)
	NullableBoolean = nullable[bool](BooleanValue)
)

func nullable[T any](wrapper *message.Type) field.Converter {
	return Func(wrapper,
		func(w *message.Message) (*T, error) {
			v, err := w.Get("value")
			if err != nil || v == nil {
				return nil, nil
			}
			t, ok := v.(T)
			if !ok {
				return nil, fmt.Errorf("%s holds %T", wrapper.TypeName(), v)
			}
			return &t, nil
		},
		func(p *T) (*message.Message, error) {
			if p == nil {
				return nil, nil
			}
			return wrapper.New(*p)
		},
	)
}
