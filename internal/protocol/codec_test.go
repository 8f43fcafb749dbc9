package protocol_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/1ureka/matchlink/internal/protocol"
)

// TestDecodeKeepsWholeMessage verifies that Decode reports the declared type
// and keeps the full message so subscribers can decode any field.
func TestDecodeKeepsWholeMessage(t *testing.T) {
	testCases := []struct {
		name     string
		data     string
		wantType string
	}{
		{"match_found", `{"type":"match_found","matchId":"m1","opponentUserId":"u2","opponentDisplayName":"Bob","isInitiator":true}`, protocol.TypeMatchFound},
		{"queue_status", `{"type":"queue_status","message":"searching"}`, protocol.TypeQueueStatus},
		{"unknown type is still published", `{"type":"server_news","headline":"hi"}`, "server_news"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := protocol.Decode([]byte(tc.data))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if env.Type != tc.wantType {
				t.Errorf("Type mismatch: got %q, want %q", env.Type, tc.wantType)
			}
			if string(env.Raw) != tc.data {
				t.Errorf("Raw mismatch: got %s", env.Raw)
			}
		})
	}
}

// TestDecodeRejectsMalformed verifies that malformed frames produce an error
// instead of a partially filled envelope.
func TestDecodeRejectsMalformed(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{"empty", ``},
		{"not json", `hello`},
		{"truncated", `{"type":"match_found"`},
		{"array", `[1,2,3]`},
		{"type not a string", `{"type":42}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := protocol.Decode([]byte(tc.data)); err == nil {
				t.Fatal("Expected error for malformed frame, got nil")
			}
		})
	}
}

// TestDecodeMissingType verifies the sentinel for objects without a type.
func TestDecodeMissingType(t *testing.T) {
	_, err := protocol.Decode([]byte(`{"message":"no type"}`))
	if !errors.Is(err, protocol.ErrMissingType) {
		t.Fatalf("Expected ErrMissingType, got %v", err)
	}
}

// TestDecodeDoesNotAliasInput verifies the envelope owns its bytes.
func TestDecodeDoesNotAliasInput(t *testing.T) {
	data := []byte(`{"type":"error","message":"boom"}`)
	env, err := protocol.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	data[2] = 'X'
	if string(env.Raw) != `{"type":"error","message":"boom"}` {
		t.Errorf("Raw was aliased to input: %s", env.Raw)
	}
}

// TestAsLoginOutcome verifies both user data field names are understood.
func TestAsLoginOutcome(t *testing.T) {
	testCases := []struct {
		name     string
		data     string
		wantUser string
	}{
		{"userData", `{"type":"login_response","success":true,"userData":{"userId":"u1","username":"alice","rate":1600}}`, "u1"},
		{"updatedUserData", `{"type":"user_update_response","success":true,"updatedUserData":{"userId":"u9","displayName":"Z"}}`, "u9"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := protocol.Decode([]byte(tc.data))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			out, err := protocol.As[protocol.LoginOutcome](env)
			if err != nil {
				t.Fatalf("As failed: %v", err)
			}
			if !out.Success || out.Data() == nil || out.Data().UserID != tc.wantUser {
				t.Errorf("unexpected outcome: %+v", out)
			}
		})
	}
}

// TestAsRejectsNonEnvelope verifies As fails on foreign payloads.
func TestAsRejectsNonEnvelope(t *testing.T) {
	if _, err := protocol.As[protocol.Notice]("text"); err == nil {
		t.Fatal("Expected error for non-envelope payload")
	}
}

// TestEncodeSignals checks the relay wire shape for descriptions and
// candidates.
func TestEncodeSignals(t *testing.T) {
	mid := "0"
	idx := uint16(0)

	testCases := []struct {
		name string
		msg  any
		want string
	}{
		{
			name: "offer",
			msg:  protocol.NewDescriptionSignal("m1", protocol.SignalOffer, "v=0"),
			want: `{"type":"webrtc_signal","matchId":"m1","signal":{"type":"offer","sdp":"v=0"}}`,
		},
		{
			name: "candidate",
			msg: protocol.NewCandidateSignal("m1", protocol.ICECandidate{
				Candidate: "candidate:1 1 udp 1 10.0.0.1 5000 typ host", SDPMid: &mid, SDPMLineIndex: &idx,
			}),
			want: `{"type":"webrtc_signal","matchId":"m1","signal":{"type":"candidate","candidate":{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host","sdpMid":"0","sdpMLineIndex":0}}}`,
		},
		{
			name: "report_result",
			msg:  protocol.NewReportResult("m1", "win"),
			want: `{"type":"report_result","matchId":"m1","result":"win"}`,
		},
		{
			name: "join_queue",
			msg:  protocol.NewBare(protocol.TypeJoinQueue),
			want: `{"type":"join_queue"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := protocol.Encode(tc.msg)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if string(data) != tc.want {
				t.Errorf("wire mismatch:\n got  %s\n want %s", data, tc.want)
			}
		})
	}
}

// TestSignalKindInfersCandidate verifies candidates sent without a type are
// still recognized.
func TestSignalKindInfersCandidate(t *testing.T) {
	var s protocol.Signal
	if err := json.Unmarshal([]byte(`{"candidate":{"candidate":"candidate:x"}}`), &s); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if s.Kind() != protocol.SignalCandidate {
		t.Errorf("Kind mismatch: got %q", s.Kind())
	}
}
