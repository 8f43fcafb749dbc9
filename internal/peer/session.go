// Package peer owns the direct WebRTC connection to the matched opponent and
// the chat data channel carried over it.
package peer

import (
	"errors"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/matchlink/internal/event"
	"github.com/1ureka/matchlink/internal/loop"
	"github.com/1ureka/matchlink/internal/metrics"
	"github.com/1ureka/matchlink/internal/protocol"
	"github.com/1ureka/matchlink/internal/state"
	"github.com/1ureka/matchlink/internal/util"
)

const owner = "peer"

var (
	ErrNoSession      = errors.New("no peer session")
	ErrChannelNotOpen = errors.New("chat channel is not open")
)

var logger = util.Component(owner)

// State is the observed state of the peer connection.
type State int

const (
	StateNew State = iota
	StateConnecting
	StateConnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Relay carries descriptions and candidates to the opponent.
type Relay interface {
	SendDescription(matchID, kind, sdp string) error
	SendCandidate(matchID string, c protocol.ICECandidate) error
}

// Options configures a Manager.
type Options struct {
	Factory    Factory
	Relay      Relay
	Executor   loop.Executor
	Transcript state.TranscriptWriter
	Bus        *event.Bus
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

// session is the PeerSessionState of one match.
type session struct {
	match state.MatchContext
	pc    PeerConnection
	dc    DataChannel
	state State

	dcOpen    bool
	remoteSet bool
	queued    []webrtc.ICECandidateInit
}

// Manager is the PeerSession. It holds at most one session, which never
// outlives the match it was started for. All methods run on the loop;
// pion callbacks are posted there and dropped once their session is gone.
type Manager struct {
	factory    Factory
	relay      Relay
	exec       loop.Executor
	transcript state.TranscriptWriter
	bus        *event.Bus
	metrics    *metrics.Metrics
	now        func() time.Time

	current *session
}

// New creates the manager and subscribes it to matchEnded.
func New(opts Options) *Manager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	m := &Manager{
		factory:    opts.Factory,
		relay:      opts.Relay,
		exec:       opts.Executor,
		transcript: opts.Transcript,
		bus:        opts.Bus,
		metrics:    opts.Metrics,
		now:        now,
	}
	opts.Bus.Subscribe(event.MatchEnded, owner, func(event.Notification) { m.Close() })
	return m
}

// State reports the current session state, StateClosed when there is none.
func (m *Manager) State() State {
	if m.current == nil {
		return StateClosed
	}
	return m.current.state
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Start builds the peer connection for a new match. The initiator opens the
// chat channel and sends the offer; the responder waits for both.
func (m *Manager) Start(match state.MatchContext) error {
	if m.current != nil {
		logger.Warn("replacing session for match %s", m.current.match.MatchID)
		m.Close()
	}

	pc, err := m.factory()
	if err != nil {
		return fmt.Errorf("create peer connection: %w", err)
	}
	s := &session{match: match, pc: pc, state: StateNew}
	m.current = s
	m.publishState(s)
	m.wire(s)

	if !match.IsInitiator {
		logger.Info("waiting for offer from %s", match.OpponentDisplayName)
		return nil
	}

	ordered := true
	dc, err := pc.CreateDataChannel(ChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return m.fail(s, fmt.Errorf("create data channel: %w", err))
	}
	m.wireChannel(s, dc)
	s.dc = dc

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return m.fail(s, fmt.Errorf("CreateOffer: %w", err))
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return m.fail(s, fmt.Errorf("SetLocalDescription: %w", err))
	}
	m.setState(s, StateConnecting)
	if err := m.relay.SendDescription(match.MatchID, protocol.SignalOffer, offer.SDP); err != nil {
		return m.fail(s, err)
	}
	return nil
}

// Close tears the session down regardless of its state.
func (m *Manager) Close() {
	s := m.current
	if s == nil {
		return
	}
	m.current = nil

	var errs []error
	if s.dc != nil {
		errs = append(errs, s.dc.Close())
	}
	errs = append(errs, s.pc.Close())
	if err := errors.Join(errs...); err != nil {
		logger.Warn("closing peer connection: %v", err)
	}
	m.setState(s, StateClosed)
	logger.Info("peer session for match %s closed", s.match.MatchID)
}

// wire registers the connection-level callbacks. Each one posts to the loop
// and bails out if s is no longer the current session.
func (m *Manager) wire(s *session) {
	s.pc.OnICECandidate(func(c *webrtc.ICECandidateInit) {
		if c == nil {
			return
		}
		cand := toProtocol(*c)
		m.exec.Post(func() {
			if m.current != s {
				return
			}
			if err := m.relay.SendCandidate(s.match.MatchID, cand); err != nil {
				logger.Warn("candidate not relayed: %v", err)
			}
		})
	})

	s.pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		m.exec.Post(func() {
			if m.current != s {
				return
			}
			m.observe(s, st)
		})
	})

	s.pc.OnDataChannel(func(dc DataChannel) {
		// s.match never changes after Start.
		if s.match.IsInitiator || dc.Label() != ChannelLabel {
			logger.Warn("rejecting unexpected data channel %q", dc.Label())
			dc.Close()
			return
		}
		m.wireChannel(s, dc)
		m.exec.Post(func() {
			if m.current != s {
				dc.Close()
				return
			}
			s.dc = dc
		})
	})
}

func (m *Manager) wireChannel(s *session, dc DataChannel) {
	dc.OnOpen(func() {
		m.exec.Post(func() {
			if m.current != s {
				return
			}
			s.dcOpen = true
			m.system("Chat channel is ready.")
			m.bus.Emit(event.PeerStateChanged, event.PeerState{MatchID: s.match.MatchID, State: "channel_open"})
		})
	})

	dc.OnClose(func() {
		m.exec.Post(func() {
			if m.current != s {
				return
			}
			s.dcOpen = false
			logger.Warn("chat channel closed")
			m.bus.Emit(event.PeerStateChanged, event.PeerState{MatchID: s.match.MatchID, State: "channel_closed"})
		})
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if !msg.IsString {
			return
		}
		text := string(msg.Data)
		m.exec.Post(func() {
			if m.current != s {
				return
			}
			line := state.ChatLine{From: state.FromOpponent, Text: text, At: m.now()}
			m.transcript.AppendChat(line)
			m.bus.Emit(event.ChatMessage, line)
		})
	})
}

func (m *Manager) observe(s *session, st webrtc.PeerConnectionState) {
	logger.Debug("PeerConnection state: %s", st)
	switch st {
	case webrtc.PeerConnectionStateConnecting:
		m.setState(s, StateConnecting)
	case webrtc.PeerConnectionStateConnected:
		if s.state == StateConnected {
			return
		}
		m.setState(s, StateConnected)
		m.system(fmt.Sprintf("Connected to %s.", s.match.OpponentDisplayName))
	case webrtc.PeerConnectionStateFailed:
		m.setState(s, StateFailed)
	case webrtc.PeerConnectionStateClosed:
		m.setState(s, StateClosed)
	case webrtc.PeerConnectionStateDisconnected:
		logger.Warn("peer connection interrupted")
	}
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

func (m *Manager) sessionFor(matchID, what string) *session {
	s := m.current
	if s == nil || s.match.MatchID != matchID {
		logger.Warn("ignoring %s for match %s: no session", what, matchID)
		return nil
	}
	return s
}

// HandleOffer answers the initiator's offer. Only the responder accepts one.
func (m *Manager) HandleOffer(matchID, sdp string) {
	s := m.sessionFor(matchID, "offer")
	if s == nil {
		return
	}
	if s.match.IsInitiator {
		logger.Warn("initiator ignoring incoming offer")
		return
	}

	if err := m.setRemote(s, webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		m.fail(s, err)
		return
	}

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		m.fail(s, fmt.Errorf("CreateAnswer: %w", err))
		return
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		m.fail(s, fmt.Errorf("SetLocalDescription: %w", err))
		return
	}
	m.setState(s, StateConnecting)
	if err := m.relay.SendDescription(matchID, protocol.SignalAnswer, answer.SDP); err != nil {
		m.fail(s, err)
	}
}

// HandleAnswer completes the initiator's negotiation.
func (m *Manager) HandleAnswer(matchID, sdp string) {
	s := m.sessionFor(matchID, "answer")
	if s == nil {
		return
	}
	if !s.match.IsInitiator {
		logger.Warn("responder ignoring incoming answer")
		return
	}
	if s.remoteSet {
		logger.Warn("duplicate answer ignored")
		return
	}
	if err := m.setRemote(s, webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}); err != nil {
		m.fail(s, err)
	}
}

// HandleCandidate applies a remote candidate, holding it back until the
// remote description is in place.
func (m *Manager) HandleCandidate(matchID string, c protocol.ICECandidate) {
	s := m.sessionFor(matchID, "candidate")
	if s == nil {
		return
	}
	init := toInit(c)
	if !s.remoteSet {
		s.queued = append(s.queued, init)
		return
	}
	if err := s.pc.AddICECandidate(init); err != nil {
		m.fail(s, fmt.Errorf("AddICECandidate: %w", err))
	}
}

func (m *Manager) setRemote(s *session, desc webrtc.SessionDescription) error {
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("SetRemoteDescription: %w", err)
	}
	s.remoteSet = true

	queued := s.queued
	s.queued = nil
	for _, c := range queued {
		if err := s.pc.AddICECandidate(c); err != nil {
			logger.Warn("queued candidate rejected: %v", err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Chat
// ---------------------------------------------------------------------------

// SendChat sends text to the opponent and records it in the transcript.
func (m *Manager) SendChat(text string) error {
	s := m.current
	if s == nil {
		return ErrNoSession
	}
	if s.dc == nil || !s.dcOpen {
		return ErrChannelNotOpen
	}
	if err := s.dc.SendText(text); err != nil {
		return fmt.Errorf("send chat: %w", err)
	}
	line := state.ChatLine{From: state.FromSelf, Text: text, At: m.now()}
	m.transcript.AppendChat(line)
	m.bus.Emit(event.ChatMessage, line)
	return nil
}

func (m *Manager) system(text string) {
	line := state.ChatLine{From: state.FromSystem, Text: text, At: m.now()}
	m.transcript.AppendChat(line)
	m.bus.Emit(event.ChatMessage, line)
}

func (m *Manager) setState(s *session, st State) {
	if s.state == st {
		return
	}
	s.state = st
	m.publishState(s)
}

func (m *Manager) publishState(s *session) {
	m.metrics.PeerState(s.state.String())
	m.bus.Emit(event.PeerStateChanged, event.PeerState{MatchID: s.match.MatchID, State: s.state.String()})
}

func (m *Manager) fail(s *session, err error) error {
	logger.Error("match %s: %v", s.match.MatchID, err)
	m.setState(s, StateFailed)
	return err
}

func toInit(c protocol.ICECandidate) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

func toProtocol(c webrtc.ICECandidateInit) protocol.ICECandidate {
	return protocol.ICECandidate{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}
