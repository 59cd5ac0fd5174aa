package core

import "errors"

// Frame is an encoded outbound event ready for the wire.
type Frame []byte

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Endpoint abstracts the transport side of one live connection.
// Owned by the adapter; the adapter must Close() it.
type Endpoint interface {
	// TrySend enqueues a frame without blocking. A full buffer returns
	// ErrBackpressure; the caller decides what to do with the slow consumer.
	TrySend(Frame) error
	Close()
}
