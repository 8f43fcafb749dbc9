// Package matchmaking handles the queue and owns the lifetime of the single
// live match.
package matchmaking

import (
	"github.com/1ureka/matchlink/internal/event"
	"github.com/1ureka/matchlink/internal/metrics"
	"github.com/1ureka/matchlink/internal/protocol"
	"github.com/1ureka/matchlink/internal/state"
	"github.com/1ureka/matchlink/internal/util"
)

const owner = "matchmaking"

// Reasons passed to EndMatch.
const (
	ReasonResolved = "resolved"
	ReasonDisputed = "disputed"
	ReasonLogout   = "logout"
)

// ErrMatchActive is returned by JoinQueue while a match is live.
var ErrMatchActive = state.ErrMatchActive

var logger = util.Component(owner)

// Sender transmits a message to the server.
type Sender interface {
	Send(msg any) error
}

// PeerStarter begins peer negotiation for a new match.
type PeerStarter interface {
	Start(m state.MatchContext) error
}

// Coordinator is the MatchmakingCoordinator.
type Coordinator struct {
	conn    Sender
	store   state.MatchWriter
	bus     *event.Bus
	peer    PeerStarter
	metrics *metrics.Metrics
}

// New creates the coordinator and registers its subscriptions. The peer
// starter may be attached later with SetPeer.
func New(conn Sender, store state.MatchWriter, bus *event.Bus, m *metrics.Metrics) *Coordinator {
	c := &Coordinator{conn: conn, store: store, bus: bus, metrics: m}

	bus.Subscribe(protocol.TypeMatchFound, owner, c.handleMatchFound)
	bus.Subscribe(protocol.TypeQueueStatus, owner, c.handleQueueStatus)
	bus.Subscribe(event.Logout, owner, c.handleLogout)
	return c
}

// SetPeer attaches the component that negotiates the peer connection.
func (c *Coordinator) SetPeer(p PeerStarter) {
	c.peer = p
}

// JoinQueue enters the matchmaking queue. The matching flag is only set
// once the request has actually been sent.
func (c *Coordinator) JoinQueue() error {
	if _, live := c.store.Match(); live {
		return ErrMatchActive
	}
	if err := c.conn.Send(protocol.NewBare(protocol.TypeJoinQueue)); err != nil {
		return err
	}
	c.store.SetMatching(true)
	return nil
}

// LeaveQueue leaves the queue. The local flag is cleared even if the server
// could not be told.
func (c *Coordinator) LeaveQueue() error {
	err := c.conn.Send(protocol.NewBare(protocol.TypeLeaveQueue))
	c.store.SetMatching(false)
	return err
}

// EndMatch destroys the live match, if any, and publishes matchEnded so the
// peer session tears down.
func (c *Coordinator) EndMatch(reason string) bool {
	m, ok := c.store.EndMatch()
	if !ok {
		return false
	}
	c.store.SetResultState(state.ResultIdle)
	logger.Info("match %s ended (%s)", m.MatchID, reason)
	c.bus.Emit(event.MatchEnded, event.MatchEnd{MatchID: m.MatchID, Reason: reason})
	return true
}

func (c *Coordinator) handleMatchFound(n event.Notification) {
	found, err := protocol.As[protocol.MatchFound](n.Payload)
	if err != nil {
		logger.Warn("ignoring %s: %v", n.Name, err)
		return
	}
	if found.MatchID == "" {
		logger.Warn("match_found without matchId")
		return
	}

	m := state.MatchContext{
		MatchID:             found.MatchID,
		OpponentUserID:      found.OpponentUserID,
		OpponentDisplayName: found.OpponentDisplayName,
		IsInitiator:         found.IsInitiator,
	}
	if err := c.store.BeginMatch(m); err != nil {
		live, _ := c.store.Match()
		logger.Error("protocol violation: match_found %s while %s is live", m.MatchID, live.MatchID)
		return
	}

	c.metrics.MatchStarted()
	logger.Info("matched with %s (match %s, initiator=%t)", m.OpponentDisplayName, m.MatchID, m.IsInitiator)
	c.bus.Emit(event.MatchStarted, m)

	if c.peer == nil {
		logger.Warn("no peer session attached")
		return
	}
	if err := c.peer.Start(m); err != nil {
		logger.Error("failed to start peer session: %v", err)
	}
}

func (c *Coordinator) handleQueueStatus(n event.Notification) {
	notice, err := protocol.As[protocol.Notice](n.Payload)
	if err != nil {
		logger.Warn("ignoring %s: %v", n.Name, err)
		return
	}
	c.bus.Emit(event.QueueStatus, event.Message{Text: notice.Message})
}

func (c *Coordinator) handleLogout(event.Notification) {
	c.store.SetMatching(false)
	c.EndMatch(ReasonLogout)
}
