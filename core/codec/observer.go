package codec

import (
	"time"

	"github.com/artpar/typedwire/core/message"
)

// Operation names passed to observers.
const (
	OpPack   = "pack"
	OpUnpack = "unpack"
)

// Observer is notified after every pack and unpack of an observed format.
type Observer interface {
	ObserveCodec(format, op string, t *message.Type, took time.Duration, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(format, op string, t *message.Type, took time.Duration, err error)

// ObserveCodec calls f.
func (f ObserverFunc) ObserveCodec(format, op string, t *message.Type, took time.Duration, err error) {
	f(format, op, t, took, err)
}

// Observed wraps f so that o sees every call.
func Observed(f WireFormat, o Observer) WireFormat {
	if o == nil {
		return f
	}
	return &observed{WireFormat: f, observer: o, now: time.Now}
}

type observed struct {
	WireFormat
	observer Observer
	now      func() time.Time
}

func (o *observed) Pack(t *message.Type, m *message.Message) ([]byte, error) {
	start := o.now()
	data, err := o.WireFormat.Pack(t, m)
	o.observer.ObserveCodec(o.Name(), OpPack, t, o.now().Sub(start), err)
	return data, err
}

func (o *observed) Unpack(t *message.Type, data []byte) (*message.Message, error) {
	start := o.now()
	m, err := o.WireFormat.Unpack(t, data)
	o.observer.ObserveCodec(o.Name(), OpUnpack, t, o.now().Sub(start), err)
	return m, err
}
