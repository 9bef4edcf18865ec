package device

import (
	"time"

	"github.com/google/uuid"
)

type Transport string

const (
	TransportWS Transport = "ws"
)

type EndpointID uuid.UUID

func (id EndpointID) String() string {
	return uuid.UUID(id).String()
}

// Endpoint is the bridge's view of one connected device: a duplex channel
// that accepts binary audio frames and JSON text messages.
type Endpoint interface {
	// Identity
	ID() EndpointID
	Transport() Transport
	// outbound
	SendAudioFrame(frame []byte) error
	SendText(payload []byte) error
	Touch()
	// lifecyle
	IsAlive() bool
	Close() error
	LastActive() time.Time
}
