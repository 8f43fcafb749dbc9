package state_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/matchlink/internal/state"
)

func raws(items ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(items))
	for i, s := range items {
		out[i] = json.RawMessage(s)
	}
	return out
}

func TestStoreDefaults(t *testing.T) {
	snap := state.NewStore().Snapshot()

	assert.False(t, snap.IsLoggedIn)
	assert.Equal(t, state.DefaultRate, snap.Identity.Rate)
	assert.NotNil(t, snap.Session.MatchHistory)
	assert.Empty(t, snap.Session.MatchHistory)
	assert.Empty(t, snap.Session.Memos)
	assert.Empty(t, snap.Session.BattleRecords)
	assert.Empty(t, snap.Session.RegisteredDecks)
	assert.Nil(t, snap.Match)
	assert.Equal(t, state.ResultIdle, snap.Result)
}

func TestStoreSignInMergesNonZeroFields(t *testing.T) {
	s := state.NewStore()
	s.SignIn(state.Identity{UserID: "u1", Username: "alice", DisplayName: "Alice", Rate: 1620},
		state.Session{Memos: raws(`{"id":1}`)})

	s.SignIn(state.Identity{DisplayName: "Ally"}, state.Session{BattleRecords: raws(`{"w":1}`)})

	snap := s.Snapshot()
	assert.True(t, snap.IsLoggedIn)
	assert.Equal(t, state.Identity{UserID: "u1", Username: "alice", DisplayName: "Ally", Rate: 1620}, snap.Identity)
	assert.Equal(t, raws(`{"id":1}`), snap.Session.Memos)
	assert.Equal(t, raws(`{"w":1}`), snap.Session.BattleRecords)
}

func TestStoreSignOutResetsExactly(t *testing.T) {
	s := state.NewStore()
	s.SignIn(state.Identity{UserID: "u1", Username: "alice", Rate: 1800}, state.Session{
		MatchHistory:    raws(`1`),
		Memos:           raws(`2`),
		BattleRecords:   raws(`3`),
		RegisteredDecks: raws(`4`),
	})

	assert.True(t, s.SignOut())
	assert.False(t, s.SignOut(), "second sign-out has no active session")

	snap := s.Snapshot()
	assert.False(t, snap.IsLoggedIn)
	assert.Equal(t, state.Identity{Rate: 1500}, snap.Identity)
	for _, c := range [][]json.RawMessage{
		snap.Session.MatchHistory, snap.Session.Memos,
		snap.Session.BattleRecords, snap.Session.RegisteredDecks,
	} {
		assert.NotNil(t, c)
		assert.Empty(t, c)
	}
}

func TestStoreSingleMatch(t *testing.T) {
	s := state.NewStore()
	s.SetMatching(true)

	m1 := state.MatchContext{MatchID: "m1", OpponentUserID: "u2", OpponentDisplayName: "Bob", IsInitiator: true}
	require.NoError(t, s.BeginMatch(m1))
	assert.ErrorIs(t, s.BeginMatch(state.MatchContext{MatchID: "m2"}), state.ErrMatchActive)

	got, ok := s.Match()
	require.True(t, ok)
	assert.Equal(t, m1, got)
	assert.False(t, s.Snapshot().Matching)

	ended, ok := s.EndMatch()
	assert.True(t, ok)
	assert.Equal(t, m1, ended)

	_, ok = s.EndMatch()
	assert.False(t, ok)
}

func TestStoreSnapshotIsDetached(t *testing.T) {
	s := state.NewStore()
	s.SignIn(state.Identity{UserID: "u1"}, state.Session{Memos: raws(`{"a":1}`)})
	require.NoError(t, s.BeginMatch(state.MatchContext{MatchID: "m1"}))
	s.AppendChat(state.ChatLine{From: state.FromSystem, Text: "hi"})

	snap := s.Snapshot()
	snap.Session.Memos[0][0] = 'X'
	snap.Match.MatchID = "changed"
	snap.Transcript[0].Text = "changed"

	again := s.Snapshot()
	assert.Equal(t, raws(`{"a":1}`), again.Session.Memos)
	assert.Equal(t, "m1", again.Match.MatchID)
	assert.Equal(t, "hi", again.Transcript[0].Text)
}

func TestStoreBeginMatchResetsTranscriptAndResult(t *testing.T) {
	s := state.NewStore()
	require.NoError(t, s.BeginMatch(state.MatchContext{MatchID: "m1"}))
	s.AppendChat(state.ChatLine{Text: "old"})
	s.SetResultState(state.ResultDisputed)
	s.EndMatch()

	require.NoError(t, s.BeginMatch(state.MatchContext{MatchID: "m2"}))
	snap := s.Snapshot()
	assert.Empty(t, snap.Transcript)
	assert.Equal(t, state.ResultIdle, snap.Result)
}
