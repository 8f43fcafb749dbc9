// Package auth sequences login, auto-login and logout on top of the server
// connection and owns the identity half of the application state.
package auth

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/1ureka/matchlink/internal/event"
	"github.com/1ureka/matchlink/internal/protocol"
	"github.com/1ureka/matchlink/internal/state"
	"github.com/1ureka/matchlink/internal/util"
)

const owner = "auth"

var (
	ErrEmptyCredentials = errors.New("username and password are required")
	ErrNotLoggedIn      = errors.New("not logged in")
)

var logger = util.Component(owner)

// Sender transmits a message to the server.
type Sender interface {
	Send(msg any) error
}

// Flow is the AuthenticationFlow.
type Flow struct {
	conn  Sender
	store state.IdentityWriter
	bus   *event.Bus
	creds CredentialStore
}

// New creates the flow and registers its subscriptions.
func New(conn Sender, store state.IdentityWriter, bus *event.Bus, creds CredentialStore) *Flow {
	f := &Flow{conn: conn, store: store, bus: bus, creds: creds}

	for _, name := range []string{
		protocol.TypeLoginResponse,
		protocol.TypeAutoLoginResponse,
		protocol.TypeUserUpdateResponse,
	} {
		bus.Subscribe(name, owner, f.handleOutcome)
	}
	for _, name := range []string{
		event.Logout,
		protocol.TypeLogoutResponse,
		protocol.TypeLogoutForced,
	} {
		bus.Subscribe(name, owner, f.handleLogout)
	}
	bus.Subscribe(protocol.TypeRankingResponse, owner, f.handleRanking)
	bus.Subscribe(protocol.TypeError, owner, f.handleError)
	return f
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// Login sends a password login.
func (f *Flow) Login(username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return ErrEmptyCredentials
	}
	return f.conn.Send(protocol.NewLogin(username, password))
}

// Register creates an account; the server answers with login_response.
func (f *Flow) Register(username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return ErrEmptyCredentials
	}
	return f.conn.Send(protocol.NewRegister(username, password))
}

// UpdateDisplayName asks the server to rename the current user.
func (f *Flow) UpdateDisplayName(name string) error {
	if !f.store.IsLoggedIn() {
		return ErrNotLoggedIn
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("display name is empty")
	}
	return f.conn.Send(protocol.NewUpdateDisplayName(name))
}

// Logout tells the server and resets locally whether or not the send
// succeeded.
func (f *Flow) Logout() error {
	err := f.conn.Send(protocol.NewBare(protocol.TypeLogout))
	if err != nil {
		logger.Warn("logout not delivered: %v", err)
	}
	f.bus.Emit(event.Logout, nil)
	return err
}

// SyncUserData pushes locally edited collections. Nil collections are
// omitted from the message.
func (f *Flow) SyncUserData(memos, battleRecords, registeredDecks []json.RawMessage) error {
	if !f.store.IsLoggedIn() {
		return ErrNotLoggedIn
	}
	return f.conn.Send(protocol.UpdateUserData{
		Type:            protocol.TypeUpdateUserData,
		UserID:          f.store.Identity().UserID,
		Memos:           memos,
		BattleRecords:   battleRecords,
		RegisteredDecks: registeredDecks,
	})
}

// RequestRanking asks for the ranking table.
func (f *Flow) RequestRanking() error {
	return f.conn.Send(protocol.NewBare(protocol.TypeGetRanking))
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (f *Flow) handleOutcome(n event.Notification) {
	outcome, err := protocol.As[protocol.LoginOutcome](n.Payload)
	if err != nil {
		logger.Warn("ignoring %s: %v", n.Name, err)
		return
	}

	if !outcome.Success {
		if n.Name != protocol.TypeAutoLoginResponse {
			msg := outcome.Message
			if msg == "" {
				msg = "Login failed."
			}
			f.bus.Emit(event.UserMessage, event.Message{Text: msg})
		} else {
			logger.Info("auto-login rejected: %s", outcome.Message)
		}
		f.bus.Emit(event.Logout, nil)
		return
	}

	id, sess := fromUserData(outcome.Data())
	f.store.SignIn(id, sess)

	current := f.store.Identity()
	if current.UserID != "" {
		creds := state.Credentials{UserID: current.UserID, Username: current.Username}
		if err := f.creds.Save(creds); err != nil {
			logger.Warn("failed to persist credentials: %v", err)
		}
	}
	logger.Info("logged in as %s (%s)", current.Username, n.Name)

	if outcome.Message != "" && n.Name == protocol.TypeUserUpdateResponse {
		f.bus.Emit(event.UserMessage, event.Message{Text: outcome.Message})
	}
	f.bus.Emit(event.LoginStateChanged, event.LoginState{IsLoggedIn: true})
}

func (f *Flow) handleLogout(n event.Notification) {
	var text string
	keep := false
	switch p := n.Payload.(type) {
	case event.SessionLost:
		text, keep = p.Text, true
	case event.Message:
		text = p.Text
	case protocol.Envelope:
		if notice, err := protocol.As[protocol.Notice](p); err == nil {
			text = notice.Message
		}
	}

	wasActive := f.store.SignOut()
	if !keep {
		if err := f.creds.Clear(); err != nil {
			logger.Warn("failed to clear credentials: %v", err)
		}
	}
	if text != "" {
		f.bus.Emit(event.UserMessage, event.Message{Text: text})
	}
	if wasActive {
		logger.Info("logged out (%s)", n.Name)
		f.bus.Emit(event.LoginStateChanged, event.LoginState{IsLoggedIn: false})
	}
}

func (f *Flow) handleRanking(n event.Notification) {
	resp, err := protocol.As[protocol.RankingResponse](n.Payload)
	if err != nil {
		logger.Warn("ignoring %s: %v", n.Name, err)
		return
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "Failed to load ranking."
		}
		f.bus.Emit(event.UserMessage, event.Message{Text: msg})
		return
	}
	f.bus.Emit(event.RankingUpdated, resp.RankingData)
}

func (f *Flow) handleError(n event.Notification) {
	notice, err := protocol.As[protocol.Notice](n.Payload)
	if err != nil || notice.Message == "" {
		logger.Warn("server error without message")
		return
	}
	logger.Warn("server error: %s", notice.Message)
	f.bus.Emit(event.UserMessage, event.Message{Text: notice.Message})
}

func fromUserData(d *protocol.UserData) (state.Identity, state.Session) {
	if d == nil {
		return state.Identity{}, state.Session{}
	}
	id := state.Identity{
		UserID:      d.UserID,
		Username:    d.Username,
		DisplayName: d.DisplayName,
		Rate:        d.Rate,
	}
	sess := state.Session{
		MatchHistory:    d.MatchHistory,
		Memos:           d.Memos,
		BattleRecords:   d.BattleRecords,
		RegisteredDecks: d.RegisteredDecks,
	}
	return id, sess
}
