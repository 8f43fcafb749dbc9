package state

import (
	"encoding/json"
	"errors"
	"sync"
)

// ErrMatchActive is returned when a match is begun while another is live.
var ErrMatchActive = errors.New("a match is already active")

// Reader is the read-only view handed to every component.
type Reader interface {
	Snapshot() Snapshot
	IsLoggedIn() bool
	Identity() Identity
	Match() (MatchContext, bool)
	ResultState() ResultState
}

// IdentityWriter is held by the authentication flow only.
type IdentityWriter interface {
	Reader
	// SignIn merges the non-zero fields of id and the non-nil collections of
	// s into the current state and marks the session active.
	SignIn(id Identity, s Session)
	// SignOut resets identity and collections to defaults. It reports
	// whether a session was active.
	SignOut() bool
}

// MatchWriter is held by the matchmaking coordinator and the result protocol.
type MatchWriter interface {
	Reader
	SetMatching(bool)
	BeginMatch(MatchContext) error
	EndMatch() (MatchContext, bool)
	SetResultState(ResultState)
}

// TranscriptWriter is held by the peer session.
type TranscriptWriter interface {
	AppendChat(ChatLine)
}

// Store is the concrete state container. It is safe for concurrent use,
// although the session components only touch it from the event loop.
type Store struct {
	mu         sync.RWMutex
	loggedIn   bool
	identity   Identity
	session    Session
	matching   bool
	match      *MatchContext
	result     ResultState
	transcript []ChatLine
}

var (
	_ IdentityWriter   = (*Store)(nil)
	_ MatchWriter      = (*Store)(nil)
	_ TranscriptWriter = (*Store)(nil)
)

// NewStore creates a store in the logged-out default state.
func NewStore() *Store {
	return &Store{
		identity: Identity{Rate: DefaultRate},
		session:  emptySession(),
	}
}

func emptySession() Session {
	return Session{
		MatchHistory:    []json.RawMessage{},
		Memos:           []json.RawMessage{},
		BattleRecords:   []json.RawMessage{},
		RegisteredDecks: []json.RawMessage{},
	}
}

// Snapshot returns a deep copy of the state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		IsLoggedIn: s.loggedIn,
		Identity:   s.identity,
		Session: Session{
			MatchHistory:    cloneRaw(s.session.MatchHistory),
			Memos:           cloneRaw(s.session.Memos),
			BattleRecords:   cloneRaw(s.session.BattleRecords),
			RegisteredDecks: cloneRaw(s.session.RegisteredDecks),
		},
		Matching:   s.matching,
		Result:     s.result,
		Transcript: append([]ChatLine{}, s.transcript...),
	}
	if s.match != nil {
		m := *s.match
		snap.Match = &m
	}
	return snap
}

// IsLoggedIn reports whether a session is active.
func (s *Store) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loggedIn
}

// Identity returns the current identity.
func (s *Store) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Match returns the live match, if any.
func (s *Store) Match() (MatchContext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.match == nil {
		return MatchContext{}, false
	}
	return *s.match, true
}

// ResultState returns the result reporting state.
func (s *Store) ResultState() ResultState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// SignIn implements IdentityWriter.
func (s *Store) SignIn(id Identity, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id.UserID != "" {
		s.identity.UserID = id.UserID
	}
	if id.Username != "" {
		s.identity.Username = id.Username
	}
	if id.DisplayName != "" {
		s.identity.DisplayName = id.DisplayName
	}
	if id.Rate != 0 {
		s.identity.Rate = id.Rate
	}
	if sess.MatchHistory != nil {
		s.session.MatchHistory = cloneRaw(sess.MatchHistory)
	}
	if sess.Memos != nil {
		s.session.Memos = cloneRaw(sess.Memos)
	}
	if sess.BattleRecords != nil {
		s.session.BattleRecords = cloneRaw(sess.BattleRecords)
	}
	if sess.RegisteredDecks != nil {
		s.session.RegisteredDecks = cloneRaw(sess.RegisteredDecks)
	}
	s.loggedIn = true
}

// SignOut implements IdentityWriter.
func (s *Store) SignOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasActive := s.loggedIn
	s.loggedIn = false
	s.identity = Identity{Rate: DefaultRate}
	s.session = emptySession()
	return wasActive
}

// SetMatching implements MatchWriter.
func (s *Store) SetMatching(v bool) {
	s.mu.Lock()
	s.matching = v
	s.mu.Unlock()
}

// BeginMatch implements MatchWriter. The transcript is reset for the new match.
func (s *Store) BeginMatch(m MatchContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.match != nil {
		return ErrMatchActive
	}
	s.match = &m
	s.matching = false
	s.result = ResultIdle
	s.transcript = nil
	return nil
}

// EndMatch implements MatchWriter.
func (s *Store) EndMatch() (MatchContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.match == nil {
		return MatchContext{}, false
	}
	m := *s.match
	s.match = nil
	return m, true
}

// SetResultState implements MatchWriter.
func (s *Store) SetResultState(r ResultState) {
	s.mu.Lock()
	s.result = r
	s.mu.Unlock()
}

// AppendChat implements TranscriptWriter.
func (s *Store) AppendChat(line ChatLine) {
	s.mu.Lock()
	s.transcript = append(s.transcript, line)
	s.mu.Unlock()
}

func cloneRaw(in []json.RawMessage) []json.RawMessage {
	if in == nil {
		return []json.RawMessage{}
	}
	out := make([]json.RawMessage, len(in))
	for i, r := range in {
		out[i] = append(json.RawMessage(nil), r...)
	}
	return out
}
