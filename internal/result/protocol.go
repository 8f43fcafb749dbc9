// Package result implements win/lose/cancel reporting and the dispute state
// machine that ends a match.
package result

import (
	"errors"
	"fmt"

	"github.com/1ureka/matchlink/internal/event"
	"github.com/1ureka/matchlink/internal/metrics"
	"github.com/1ureka/matchlink/internal/protocol"
	"github.com/1ureka/matchlink/internal/state"
	"github.com/1ureka/matchlink/internal/util"
)

const owner = "result"

// Results the local player can report.
const (
	Win    = "win"
	Lose   = "lose"
	Cancel = "cancel"
)

var (
	ErrNoMatch          = errors.New("no active match")
	ErrAlreadySubmitted = errors.New("result already submitted")
	ErrInvalidResult    = errors.New("result must be win, lose or cancel")
)

// terminal lists the response kinds that end a match. Anything else is an
// intermediate answer and leaves the match running.
var terminal = map[string]state.ResultState{
	"resolved_win":    state.ResultResolved,
	"resolved_loss":   state.ResultResolved,
	"resolved_draw":   state.ResultResolved,
	"resolved_cancel": state.ResultResolved,
	"disputed":        state.ResultDisputed,
}

var logger = util.Component(owner)

// Sender transmits a message to the server.
type Sender interface {
	Send(msg any) error
}

// MatchEnder destroys the live match.
type MatchEnder interface {
	EndMatch(reason string) bool
}

// Protocol is the ResultReportingProtocol.
type Protocol struct {
	conn    Sender
	store   state.MatchWriter
	bus     *event.Bus
	ender   MatchEnder
	metrics *metrics.Metrics
}

// New creates the protocol and subscribes it to report_result_response.
func New(conn Sender, store state.MatchWriter, bus *event.Bus, ender MatchEnder, m *metrics.Metrics) *Protocol {
	p := &Protocol{conn: conn, store: store, bus: bus, ender: ender, metrics: m}
	bus.Subscribe(protocol.TypeReportResultResponse, owner, p.handleResponse)
	return p
}

// ActionsEnabled reports whether the win/lose/cancel controls are usable.
func (p *Protocol) ActionsEnabled() bool {
	_, live := p.store.Match()
	return live && p.store.ResultState() == state.ResultIdle
}

// Report submits the local view of the outcome. Further reports are refused
// until the server answers.
func (p *Protocol) Report(result string) error {
	switch result {
	case Win, Lose, Cancel:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidResult, result)
	}

	m, ok := p.store.Match()
	if !ok {
		return ErrNoMatch
	}
	if p.store.ResultState() != state.ResultIdle {
		return ErrAlreadySubmitted
	}

	if err := p.conn.Send(protocol.NewReportResult(m.MatchID, result)); err != nil {
		return err
	}
	p.transition(m.MatchID, state.ResultSubmitted, result, "")
	logger.Info("reported %s for match %s", result, m.MatchID)
	return nil
}

func (p *Protocol) handleResponse(n event.Notification) {
	resp, err := protocol.As[protocol.ReportResultResponse](n.Payload)
	if err != nil {
		logger.Warn("ignoring %s: %v", n.Name, err)
		return
	}

	m, ok := p.store.Match()
	if !ok {
		logger.Warn("result response %q without an active match", resp.Result)
		return
	}
	if resp.MatchID != "" && resp.MatchID != m.MatchID {
		logger.Warn("ignoring result for stale match %s", resp.MatchID)
		return
	}
	final, isTerminal := terminal[resp.Result]
	if isTerminal {
		p.metrics.Result(resp.Result)
	} else {
		p.metrics.Result(metrics.OtherResult)
	}

	if !isTerminal {
		logger.Info("match %s: %s (%s)", m.MatchID, resp.Result, resp.Message)
		if resp.Message != "" {
			p.bus.Emit(event.UserMessage, event.Message{Text: resp.Message})
		}
		if p.store.ResultState() == state.ResultSubmitted {
			p.transition(m.MatchID, state.ResultIdle, resp.Result, resp.Message)
		}
		return
	}

	p.transition(m.MatchID, final, resp.Result, resp.Message)
	p.ender.EndMatch(final.String())
	p.transition(m.MatchID, state.ResultIdle, resp.Result, "")
}

func (p *Protocol) transition(matchID string, to state.ResultState, kind, message string) {
	p.store.SetResultState(to)
	p.bus.Emit(event.ResultStateChanged, event.ResultState{
		MatchID: matchID,
		State:   to.String(),
		Kind:    kind,
		Message: message,
	})
}
