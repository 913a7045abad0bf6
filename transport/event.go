package transport

// EventType is the type of an event returned by Host.Service.
type EventType int

const (
	// EventNone means nothing happened before the service timeout.
	EventNone EventType = iota

	// EventConnect means a peer completed the connection handshake.
	EventConnect

	// EventReceive means a message was received from a peer.
	EventReceive

	// EventDisconnect means a peer disconnected or timed out.
	EventDisconnect
)

func (t EventType) String() string {
	switch t {
	case EventNone:
		return "none"
	case EventConnect:
		return "connect"
	case EventReceive:
		return "receive"
	case EventDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Event is an event generated by a host.
type Event struct {
	Type EventType
	Peer *Peer

	// Packet is only set for EventReceive. It must be released once the
	// caller is done with it.
	Packet *Packet
}
