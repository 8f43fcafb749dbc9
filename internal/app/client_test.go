package app_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/matchlink/internal/app"
	"github.com/1ureka/matchlink/internal/auth"
	"github.com/1ureka/matchlink/internal/config"
	"github.com/1ureka/matchlink/internal/connection"
	"github.com/1ureka/matchlink/internal/connection/conntest"
	"github.com/1ureka/matchlink/internal/peer"
	"github.com/1ureka/matchlink/internal/peer/peertest"
	"github.com/1ureka/matchlink/internal/state"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type harness struct {
	t       *testing.T
	ctx     context.Context
	client  *app.Client
	dialer  *conntest.FakeDialer
	factory *peertest.Factory
	creds   *auth.MemoryCredentials
	done    chan error
	cancel  context.CancelFunc
}

func start(t *testing.T) *harness {
	t.Helper()
	return startWith(t, func(*config.Config) {})
}

func startWith(t *testing.T, configure func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.ServerURL = "ws://companion.test/ws"
	configure(&cfg)

	creds := &auth.MemoryCredentials{}
	require.NoError(t, creds.Save(state.Credentials{UserID: "u1", Username: "alice"}))

	h := &harness{
		t:       t,
		dialer:  &conntest.FakeDialer{},
		factory: &peertest.Factory{},
		creds:   creds,
		done:    make(chan error, 1),
	}
	client, err := app.New(app.Options{
		Config:      cfg,
		Dialer:      h.dialer,
		PeerFactory: h.factory.New,
		Credentials: creds,
	})
	require.NoError(t, err)
	h.client = client

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	h.ctx, h.cancel = ctx, cancel
	go func() { h.done <- client.Run(ctx) }()
	t.Cleanup(h.stop)

	require.Eventually(t, func() bool {
		conn := h.dialer.Last()
		return conn != nil && len(h.sentTypes()) == 1
	}, waitFor, tick)
	assert.Equal(t, []string{"auto_login"}, h.sentTypes())
	return h
}

func (h *harness) stop() {
	h.cancel()
	select {
	case err := <-h.done:
		assert.NoError(h.t, err)
	case <-time.After(waitFor):
		h.t.Error("client did not stop")
	}
}

func (h *harness) conn() *conntest.FakeConn {
	return h.dialer.Last()
}

func (h *harness) sent() []map[string]any {
	var out []map[string]any
	for _, w := range h.conn().Writes() {
		var m map[string]any
		require.NoError(h.t, json.Unmarshal([]byte(w), &m))
		out = append(out, m)
	}
	return out
}

func (h *harness) sentTypes() []string {
	var out []string
	for _, m := range h.sent() {
		out = append(out, m["type"].(string))
	}
	return out
}

func (h *harness) login() {
	h.t.Helper()
	h.conn().Push(`{"type":"auto_login_response","success":true,"userData":{"userId":"u1","username":"alice","displayName":"Alice","rate":1500}}`)
	require.Eventually(h.t, func() bool { return h.client.Snapshot().IsLoggedIn }, waitFor, tick)
}

func (h *harness) status() app.Status {
	st, err := h.client.Status(h.ctx)
	require.NoError(h.t, err)
	return st
}

func TestMatchLifecycle(t *testing.T) {
	h := start(t)
	h.login()
	assert.Equal(t, connection.Connected, h.status().Connection)

	// A signal with no match has nothing to apply to.
	h.conn().Push(`{"type":"webrtc_signal","signal":{"type":"offer","sdp":"v=0"}}`)

	require.NoError(t, h.client.JoinQueue(h.ctx))
	assert.True(t, h.client.Snapshot().Matching)
	assert.Equal(t, 0, h.factory.Count())

	h.conn().Push(`{"type":"match_found","matchId":"m1","opponentUserId":"u2","opponentDisplayName":"Bob","isInitiator":true}`)

	require.Eventually(t, func() bool { return len(h.sentTypes()) == 3 }, waitFor, tick)
	offer := h.sent()[2]
	assert.Equal(t, "webrtc_signal", offer["type"])
	assert.Equal(t, "m1", offer["matchId"])
	assert.Equal(t, "offer", offer["signal"].(map[string]any)["type"])

	snap := h.client.Snapshot()
	require.NotNil(t, snap.Match)
	assert.Equal(t, state.MatchContext{MatchID: "m1", OpponentUserID: "u2", OpponentDisplayName: "Bob", IsInitiator: true}, *snap.Match)
	assert.False(t, snap.Matching)
	assert.Equal(t, 1, h.factory.Count())
	assert.Equal(t, peer.StateConnecting, h.status().Peer)
	assert.True(t, h.client.ActionsEnabled(h.ctx))

	require.NoError(t, h.client.Report(h.ctx, "win"))
	assert.False(t, h.client.ActionsEnabled(h.ctx))
	last := h.sent()[len(h.sent())-1]
	assert.Equal(t, map[string]any{"type": "report_result", "matchId": "m1", "result": "win"}, last)

	h.conn().Push(`{"type":"report_result_response","message":"You won","result":"resolved_win"}`)

	require.Eventually(t, func() bool { return h.client.Snapshot().Match == nil }, waitFor, tick)
	assert.True(t, h.factory.Last().Closed())
	assert.Equal(t, peer.StateClosed, h.status().Peer)
	assert.Equal(t, state.ResultIdle, h.client.Snapshot().Result)

	// Pre-match controls are usable again.
	require.NoError(t, h.client.JoinQueue(h.ctx))
}

func TestConnectionLossEndsMatch(t *testing.T) {
	h := start(t)
	h.login()

	h.conn().Push(`{"type":"match_found","matchId":"m1","opponentUserId":"u2","opponentDisplayName":"Bob","isInitiator":false}`)
	require.Eventually(t, func() bool { return h.client.Snapshot().Match != nil }, waitFor, tick)
	pc := h.factory.Last()
	assert.Equal(t, 0, pc.Offers())

	h.conn().Drop(1006)

	require.Eventually(t, func() bool {
		snap := h.client.Snapshot()
		return snap.Match == nil && !snap.IsLoggedIn
	}, waitFor, tick)
	assert.True(t, pc.Closed())
	assert.Equal(t, connection.Reconnecting, h.status().Connection)
}

func TestReconnectReassertsIdentity(t *testing.T) {
	h := startWith(t, func(cfg *config.Config) { cfg.ReconnectDelay = 50 * time.Millisecond })
	h.login()
	first := h.conn()

	first.Drop(1006)

	require.Eventually(t, func() bool {
		return h.conn() != first && len(h.sentTypes()) == 1
	}, waitFor, tick)
	assert.Equal(t, 2, h.dialer.Dials())
	assert.Equal(t, []string{"auto_login"}, h.sentTypes())
	assert.Equal(t, "u1", h.sent()[0]["userId"])

	creds, ok, err := h.creds.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "u1", creds.UserID)

	h.login()
	assert.Equal(t, connection.Connected, h.status().Connection)
}

func TestSendWhileReconnectingFails(t *testing.T) {
	h := start(t)
	h.conn().Drop(1011)
	require.Eventually(t, func() bool { return h.status().Connection == connection.Reconnecting }, waitFor, tick)

	err := h.client.JoinQueue(h.ctx)
	require.ErrorIs(t, err, connection.ErrNotConnected)
	assert.False(t, h.client.Snapshot().Matching)
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.ServerURL = "ftp://example.com"
	_, err := app.New(app.Options{Config: cfg})
	require.Error(t, err)
}
