// Package protocol defines the JSON messages exchanged with the companion
// server over the persistent WebSocket.
package protocol

import "encoding/json"

// Client → server message types.
const (
	TypeAutoLogin         = "auto_login"
	TypeLogin             = "login"
	TypeRegister          = "register"
	TypeLogout            = "logout"
	TypeUpdateDisplayName = "update_display_name"
	TypeJoinQueue         = "join_queue"
	TypeLeaveQueue        = "leave_queue"
	TypeWebRTCSignal      = "webrtc_signal"
	TypeReportResult      = "report_result"
	TypeUpdateUserData    = "update_user_data"
	TypeGetRanking        = "get_ranking"
)

// Server → client message types.
const (
	TypeLoginResponse        = "login_response"
	TypeAutoLoginResponse    = "auto_login_response"
	TypeUserUpdateResponse   = "user_update_response"
	TypeMatchFound           = "match_found"
	TypeQueueStatus          = "queue_status"
	TypeReportResultResponse = "report_result_response"
	TypeRankingResponse      = "ranking_response"
	TypeLogoutResponse       = "logout_response"
	TypeLogoutForced         = "logout_forced"
	TypeError                = "error"
)

// Signal kinds carried inside webrtc_signal.
const (
	SignalOffer     = "offer"
	SignalAnswer    = "answer"
	SignalCandidate = "candidate"
)

// ---------------------------------------------------------------------------
// Outbound
// ---------------------------------------------------------------------------

// AutoLogin re-asserts a persisted identity after (re)connecting.
type AutoLogin struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Credentials is used for both login and register.
type Credentials struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// UpdateDisplayName changes the user's display name.
type UpdateDisplayName struct {
	Type           string `json:"type"`
	NewDisplayName string `json:"newDisplayName"`
}

// Bare is a message with no fields besides its type (join_queue, leave_queue,
// logout, get_ranking).
type Bare struct {
	Type string `json:"type"`
}

// ReportResult submits the local player's view of the match outcome.
type ReportResult struct {
	Type    string `json:"type"`
	MatchID string `json:"matchId"`
	Result  string `json:"result"`
}

// UpdateUserData pushes locally edited collections to the server.
type UpdateUserData struct {
	Type            string            `json:"type"`
	UserID          string            `json:"userId"`
	Memos           []json.RawMessage `json:"memos,omitempty"`
	BattleRecords   []json.RawMessage `json:"battleRecords,omitempty"`
	RegisteredDecks []json.RawMessage `json:"registeredDecks,omitempty"`
}

// ---------------------------------------------------------------------------
// Signaling (both directions)
// ---------------------------------------------------------------------------

// ICECandidate mirrors the browser's RTCIceCandidateInit.
type ICECandidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// Signal is either a session description or a single ICE candidate.
type Signal struct {
	Type      string        `json:"type"`
	SDP       string        `json:"sdp,omitempty"`
	Candidate *ICECandidate `json:"candidate,omitempty"`
}

// Kind resolves the signal kind, tolerating candidate payloads sent without
// an explicit type.
func (s Signal) Kind() string {
	if s.Type == "" && s.Candidate != nil {
		return SignalCandidate
	}
	return s.Type
}

// WebRTCSignal is relayed verbatim by the server to the other member of the
// match.
type WebRTCSignal struct {
	Type    string `json:"type"`
	MatchID string `json:"matchId,omitempty"`
	Signal  Signal `json:"signal"`
}

// ---------------------------------------------------------------------------
// Inbound
// ---------------------------------------------------------------------------

// UserData is the user record returned by the login family of responses.
// Absent collections decode as nil and leave local data untouched.
type UserData struct {
	UserID          string            `json:"userId"`
	Username        string            `json:"username"`
	DisplayName     string            `json:"displayName"`
	Rate            int               `json:"rate"`
	MatchHistory    []json.RawMessage `json:"matchHistory"`
	Memos           []json.RawMessage `json:"memos"`
	BattleRecords   []json.RawMessage `json:"battleRecords"`
	RegisteredDecks []json.RawMessage `json:"registeredDecks"`
}

// LoginOutcome is shared by login_response, auto_login_response and
// user_update_response.
type LoginOutcome struct {
	Success         bool      `json:"success"`
	Message         string    `json:"message,omitempty"`
	UpdatedUserData *UserData `json:"updatedUserData,omitempty"`
	UserData        *UserData `json:"userData,omitempty"`
}

// Data returns whichever user record the server supplied.
func (o LoginOutcome) Data() *UserData {
	if o.UpdatedUserData != nil {
		return o.UpdatedUserData
	}
	return o.UserData
}

// MatchFound announces a pairing. IsInitiator is decided by the server.
type MatchFound struct {
	MatchID             string `json:"matchId"`
	OpponentUserID      string `json:"opponentUserId"`
	OpponentDisplayName string `json:"opponentDisplayName"`
	IsInitiator         bool   `json:"isInitiator"`
}

// Notice covers queue_status, logout_response, logout_forced and error.
type Notice struct {
	Message string `json:"message,omitempty"`
}

// ReportResultResponse answers a report_result.
type ReportResultResponse struct {
	MatchID string `json:"matchId,omitempty"`
	Message string `json:"message,omitempty"`
	Result  string `json:"result"`
}

// RankingEntry is one row of the ranking table.
type RankingEntry struct {
	Rank        int    `json:"rank,omitempty"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"displayName"`
	Rate        int    `json:"rate"`
}

// RankingResponse answers get_ranking.
type RankingResponse struct {
	Success     bool           `json:"success"`
	Message     string         `json:"message,omitempty"`
	RankingData []RankingEntry `json:"rankingData"`
}
