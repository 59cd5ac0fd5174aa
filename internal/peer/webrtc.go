package peer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// signalPayload is the negotiation blob both ends exchange through the
// relay. The relay never looks inside it.
type signalPayload struct {
	Kind      string                   `json:"kind"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

const (
	kindOffer     = "offer"
	kindAnswer    = "answer"
	kindCandidate = "candidate"
)

func defaultRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// rtcEngine implements Engine on a pion PeerConnection with one data
// channel. Trickle ICE candidates leave through hooks.OnLocalSignal.
type rtcEngine struct {
	pc    *webrtc.PeerConnection
	hooks EngineHooks
}

// NewRTCEngine is the EngineFactory for real mesh links.
func NewRTCEngine(hooks EngineHooks) (Engine, error) {
	pc, err := webrtc.NewPeerConnection(defaultRTCConfig())
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	e := &rtcEngine{pc: pc, hooks: hooks}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || e.hooks.OnLocalSignal == nil {
			return
		}
		init := c.ToJSON()
		payload, err := json.Marshal(signalPayload{Kind: kindCandidate, Candidate: &init})
		if err != nil {
			return
		}
		e.hooks.OnLocalSignal(payload)
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Debug().Str("module", "peer.rtc").Str("state", s.String()).Msg("peer connection state")
		switch s {
		case webrtc.PeerConnectionStateConnected:
			if e.hooks.OnConnected != nil {
				e.hooks.OnConnected()
			}
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			if e.hooks.OnFailed != nil {
				e.hooks.OnFailed(fmt.Errorf("peer connection %s", s))
			}
		}
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		log.Debug().Str("module", "peer.rtc").Str("label", dc.Label()).Msg("data channel received")
	})

	return e, nil
}

func (e *rtcEngine) CreateOffer(ctx context.Context) (json.RawMessage, error) {
	// The initiator owns the data channel; the responder picks it up via
	// OnDataChannel.
	if _, err := e.pc.CreateDataChannel("meshline", nil); err != nil {
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	offer, err := e.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	if err := e.pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	return json.Marshal(signalPayload{Kind: kindOffer, SDP: offer.SDP})
}

func (e *rtcEngine) HandleRemote(payload json.RawMessage) (json.RawMessage, error) {
	var p signalPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode signal: %w", err)
	}

	switch p.Kind {
	case kindOffer:
		desc := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: p.SDP}
		if err := e.pc.SetRemoteDescription(desc); err != nil {
			return nil, fmt.Errorf("set remote offer: %w", err)
		}
		answer, err := e.pc.CreateAnswer(nil)
		if err != nil {
			return nil, fmt.Errorf("create answer: %w", err)
		}
		if err := e.pc.SetLocalDescription(answer); err != nil {
			return nil, fmt.Errorf("set local answer: %w", err)
		}
		return json.Marshal(signalPayload{Kind: kindAnswer, SDP: answer.SDP})

	case kindAnswer:
		desc := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: p.SDP}
		if err := e.pc.SetRemoteDescription(desc); err != nil {
			return nil, fmt.Errorf("set remote answer: %w", err)
		}
		return nil, nil

	case kindCandidate:
		if p.Candidate == nil {
			return nil, fmt.Errorf("%w: candidate missing", ErrUnknownSignalKind)
		}
		if err := e.pc.AddICECandidate(*p.Candidate); err != nil {
			return nil, fmt.Errorf("add ice candidate: %w", err)
		}
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSignalKind, p.Kind)
	}
}

func (e *rtcEngine) Close() error {
	return e.pc.Close()
}
