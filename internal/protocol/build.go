package protocol

// NewAutoLogin builds an auto_login message.
func NewAutoLogin(userID, username string) AutoLogin {
	return AutoLogin{Type: TypeAutoLogin, UserID: userID, Username: username}
}

// NewLogin builds a login message.
func NewLogin(username, password string) Credentials {
	return Credentials{Type: TypeLogin, Username: username, Password: password}
}

// NewRegister builds a register message.
func NewRegister(username, password string) Credentials {
	return Credentials{Type: TypeRegister, Username: username, Password: password}
}

// NewUpdateDisplayName builds an update_display_name message.
func NewUpdateDisplayName(name string) UpdateDisplayName {
	return UpdateDisplayName{Type: TypeUpdateDisplayName, NewDisplayName: name}
}

// NewBare builds a message consisting of its type only.
func NewBare(typ string) Bare {
	return Bare{Type: typ}
}

// NewReportResult builds a report_result message.
func NewReportResult(matchID, result string) ReportResult {
	return ReportResult{Type: TypeReportResult, MatchID: matchID, Result: result}
}

// NewDescriptionSignal wraps an SDP offer or answer.
func NewDescriptionSignal(matchID, kind, sdp string) WebRTCSignal {
	return WebRTCSignal{
		Type:    TypeWebRTCSignal,
		MatchID: matchID,
		Signal:  Signal{Type: kind, SDP: sdp},
	}
}

// NewCandidateSignal wraps a single trickled ICE candidate.
func NewCandidateSignal(matchID string, c ICECandidate) WebRTCSignal {
	return WebRTCSignal{
		Type:    TypeWebRTCSignal,
		MatchID: matchID,
		Signal:  Signal{Type: SignalCandidate, Candidate: &c},
	}
}
