package event

// Notifications raised by the session layer itself. Inbound wire messages are
// republished under their wire type (see package protocol).
const (
	ConnectionOpened   = "connectionOpened"
	ConnectionClosed   = "connectionClosed"
	Logout             = "logout"
	LoginStateChanged  = "loginStateChanged"
	MatchStarted       = "matchStarted"
	MatchEnded         = "matchEnded"
	QueueStatus        = "queueStatus"
	ChatMessage        = "chatMessage"
	PeerStateChanged   = "peerStateChanged"
	ResultStateChanged = "resultStateChanged"
	UserMessage        = "userMessage"
	RankingUpdated     = "rankingUpdated"
)

// Message carries user-facing text.
type Message struct {
	Text string
}

// SessionLost is the Logout payload raised when the socket drops. Stored
// credentials are kept so the next open can auto-login.
type SessionLost struct {
	Text string
}

// LoginState is the payload of LoginStateChanged.
type LoginState struct {
	IsLoggedIn bool
}

// Closed is the payload of ConnectionClosed.
type Closed struct {
	Code int
}

// MatchEnd is the payload of MatchEnded.
type MatchEnd struct {
	MatchID string
	Reason  string
}

// PeerState is the payload of PeerStateChanged.
type PeerState struct {
	MatchID string
	State   string
}

// ResultState is the payload of ResultStateChanged.
type ResultState struct {
	MatchID string
	State   string
	Kind    string
	Message string
}
