package signaling

import (
	"github.com/1ureka/matchlink/internal/event"
	"github.com/1ureka/matchlink/internal/protocol"
)

// receive validates an inbound webrtc_signal against the live match before
// handing it to the session.
func (r *Relay) receive(n event.Notification) {
	msg, err := protocol.As[protocol.WebRTCSignal](n.Payload)
	if err != nil {
		logger.Warn("dropping signal: %v", err)
		return
	}

	m, ok := r.state.Match()
	if !ok {
		logger.Warn("ignoring %s signal: no active match", msg.Signal.Kind())
		return
	}
	if msg.MatchID != "" && msg.MatchID != m.MatchID {
		logger.Warn("ignoring stale %s signal for match %s (current %s)", msg.Signal.Kind(), msg.MatchID, m.MatchID)
		return
	}
	if r.handler == nil {
		logger.Warn("ignoring %s signal: no peer session bound", msg.Signal.Kind())
		return
	}

	switch kind := msg.Signal.Kind(); kind {
	case protocol.SignalOffer:
		if msg.Signal.SDP == "" {
			logger.Warn("offer without sdp")
			return
		}
		r.handler.HandleOffer(m.MatchID, msg.Signal.SDP)

	case protocol.SignalAnswer:
		if msg.Signal.SDP == "" {
			logger.Warn("answer without sdp")
			return
		}
		r.handler.HandleAnswer(m.MatchID, msg.Signal.SDP)

	case protocol.SignalCandidate:
		if msg.Signal.Candidate == nil {
			logger.Warn("candidate signal without candidate")
			return
		}
		r.handler.HandleCandidate(m.MatchID, *msg.Signal.Candidate)

	default:
		logger.Warn("unknown signal type %q", kind)
	}
}
