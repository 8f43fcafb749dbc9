// Package signaling relays WebRTC offers, answers and ICE candidates between
// the two members of a match through the companion server.
package signaling

import (
	"fmt"

	"github.com/1ureka/matchlink/internal/event"
	"github.com/1ureka/matchlink/internal/protocol"
	"github.com/1ureka/matchlink/internal/state"
	"github.com/1ureka/matchlink/internal/util"
)

const owner = "signaling"

var logger = util.Component(owner)

// Sender transmits a message to the server.
type Sender interface {
	Send(msg any) error
}

// Handler receives signals addressed to the live match.
type Handler interface {
	HandleOffer(matchID, sdp string)
	HandleAnswer(matchID, sdp string)
	HandleCandidate(matchID string, c protocol.ICECandidate)
}

// Relay is the SignalingRelay. The server is a dumb relay; the relay only
// wraps and unwraps webrtc_signal messages and filters stale ones.
type Relay struct {
	conn    Sender
	state   state.Reader
	handler Handler
}

// New creates the relay and subscribes it to inbound signals.
func New(conn Sender, st state.Reader, bus *event.Bus) *Relay {
	r := &Relay{conn: conn, state: st}
	bus.Subscribe(protocol.TypeWebRTCSignal, owner, r.receive)
	return r
}

// Bind sets the session that inbound signals are dispatched to.
func (r *Relay) Bind(h Handler) {
	r.handler = h
}

// SendDescription sends an offer or answer.
func (r *Relay) SendDescription(matchID, kind, sdp string) error {
	if err := r.conn.Send(protocol.NewDescriptionSignal(matchID, kind, sdp)); err != nil {
		return fmt.Errorf("send %s: %w", kind, err)
	}
	logger.Debug("→ %s (match %s)", kind, matchID)
	return nil
}

// SendCandidate forwards one local ICE candidate.
func (r *Relay) SendCandidate(matchID string, c protocol.ICECandidate) error {
	if err := r.conn.Send(protocol.NewCandidateSignal(matchID, c)); err != nil {
		return fmt.Errorf("send candidate: %w", err)
	}
	return nil
}
