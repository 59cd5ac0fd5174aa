package core

import "errors"

// Error taxonomy shared by the relays and the transport adapter.
// Disconnection is not part of it: teardown is the expected terminal
// event, never an error.
var (
	// ErrUnknownTarget means a signal was addressed to a connection that is
	// not currently registered. Surfaced to the sender, not dropped.
	ErrUnknownTarget = errors.New("unknown target connection")

	// ErrNotAMember means a chat send came from a connection that has not
	// joined the room.
	ErrNotAMember = errors.New("not a room member")

	// ErrPersistence wraps a store failure. The message is not broadcast.
	ErrPersistence = errors.New("persistence failed")

	// ErrMalformedPayload means an inbound event was missing required
	// fields. The event is dropped, the connection stays up.
	ErrMalformedPayload = errors.New("malformed payload")
)
