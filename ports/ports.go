// Package ports defines the infrastructure contracts the archive and the CLI
// depend on. Implementations live in adapters/.
package ports

import (
	"time"

	"github.com/artpar/typedwire/core/codec"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique record identifiers.
type IDGenerator interface {
	New() string
}

// CodecObserver receives a measurement for every pack and unpack.
type CodecObserver = codec.Observer
