// Package peer holds the client-side negotiation logic: one Link state
// machine per remote connection, driven by relayed signals. The server
// never sees any of this state.
package peer

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrUnknownSignalKind = errors.New("unknown signal kind")

// EngineHooks are the asynchronous outputs of a negotiation engine.
// Local trickle signals go out through OnLocalSignal; terminal transport
// state lands in OnConnected/OnFailed.
type EngineHooks struct {
	OnLocalSignal func(payload json.RawMessage)
	OnConnected   func()
	OnFailed      func(err error)
}

// Engine is the negotiation core behind a Link. The Link feeds it remote
// payloads and forwards whatever it produces; the payloads stay opaque to
// everything between the two engines.
type Engine interface {
	// CreateOffer starts negotiation from the initiator side and returns
	// the offer payload to relay.
	CreateOffer(ctx context.Context) (json.RawMessage, error)

	// HandleRemote consumes a relayed payload. A non-nil reply must be
	// relayed back to the remote peer.
	HandleRemote(payload json.RawMessage) (reply json.RawMessage, err error)

	Close() error
}

// EngineFactory builds a fresh engine for one remote peer.
type EngineFactory func(hooks EngineHooks) (Engine, error)
