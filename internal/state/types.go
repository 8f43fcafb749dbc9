// Package state holds the shared application state of the companion client.
// Every component may read it; only the owning components receive the
// writer interfaces that mutate it.
package state

import (
	"encoding/json"
	"time"
)

// DefaultRate is the rating a guest or freshly logged-out user carries.
const DefaultRate = 1500

// Identity describes the logged-in user.
type Identity struct {
	UserID      string
	Username    string
	DisplayName string
	Rate        int
}

// Session holds the per-user collections synced from the server. Their
// contents are owned by other parts of the extension and kept opaque here.
type Session struct {
	MatchHistory    []json.RawMessage
	Memos           []json.RawMessage
	BattleRecords   []json.RawMessage
	RegisteredDecks []json.RawMessage
}

// Credentials is the persisted subset of Identity used for auto-login.
type Credentials struct {
	UserID   string `yaml:"user_id"`
	Username string `yaml:"username"`
}

// MatchContext identifies the single live match.
type MatchContext struct {
	MatchID             string
	OpponentUserID      string
	OpponentDisplayName string
	IsInitiator         bool
}

// ResultState tracks result reporting for the live match.
type ResultState int

const (
	ResultIdle ResultState = iota
	ResultSubmitted
	ResultResolved
	ResultDisputed
)

func (s ResultState) String() string {
	switch s {
	case ResultIdle:
		return "idle"
	case ResultSubmitted:
		return "submitted"
	case ResultResolved:
		return "resolved"
	case ResultDisputed:
		return "disputed"
	default:
		return "unknown"
	}
}

// ChatSource tells who wrote a transcript line.
type ChatSource int

const (
	FromSystem ChatSource = iota
	FromSelf
	FromOpponent
)

// ChatLine is one entry of the match chat transcript.
type ChatLine struct {
	From ChatSource
	Text string
	At   time.Time
}

// Snapshot is a detached copy of the whole state.
type Snapshot struct {
	IsLoggedIn bool
	Identity   Identity
	Session    Session
	Matching   bool
	Match      *MatchContext
	Result     ResultState
	Transcript []ChatLine
}
