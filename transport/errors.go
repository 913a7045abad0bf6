package transport

import "errors"

var (
	// ErrHostClosed is returned when operating on a closed host.
	ErrHostClosed = errors.New("host closed")

	// ErrPeerNotConnected is returned when sending to a peer that has not
	// yet completed the connection handshake.
	ErrPeerNotConnected = errors.New("peer not connected")

	// ErrPeerDisconnected is returned when sending to a peer that has
	// disconnected.
	ErrPeerDisconnected = errors.New("peer disconnected")

	// ErrPayloadTooLarge is returned when attempting to send a message
	// larger than MaxMessageSize.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrMaxPeers is returned when connecting to a new peer would exceed
	// the max number of peers of the host.
	ErrMaxPeers = errors.New("max number of peers reached")

	errInvalidPacket = errors.New("invalid packet")
)
