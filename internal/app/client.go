// Package app wires the session components into one client.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/1ureka/matchlink/internal/auth"
	"github.com/1ureka/matchlink/internal/config"
	"github.com/1ureka/matchlink/internal/connection"
	"github.com/1ureka/matchlink/internal/event"
	"github.com/1ureka/matchlink/internal/loop"
	"github.com/1ureka/matchlink/internal/matchmaking"
	"github.com/1ureka/matchlink/internal/metrics"
	"github.com/1ureka/matchlink/internal/peer"
	"github.com/1ureka/matchlink/internal/result"
	"github.com/1ureka/matchlink/internal/signaling"
	"github.com/1ureka/matchlink/internal/state"
	"github.com/1ureka/matchlink/internal/util"
)

// Options overrides the collaborators New would otherwise build from Config.
type Options struct {
	Config      config.Config
	Registry    *prometheus.Registry
	Dialer      connection.Dialer
	PeerFactory peer.Factory
	Credentials auth.CredentialStore
	// Scheduler drives the reconnect timer; defaults to the loop's clock.
	Scheduler loop.Scheduler
}

// Client owns the loop and every component running on it. Methods other
// than Run and Snapshot may be called from any goroutine except the loop.
type Client struct {
	cfg      config.Config
	registry *prometheus.Registry

	loop    *loop.Loop
	bus     *event.Bus
	store   *state.Store
	metrics *metrics.Metrics

	conn   *connection.Manager
	auth   *auth.Flow
	match  *matchmaking.Coordinator
	relay  *signaling.Relay
	peer   *peer.Manager
	result *result.Protocol
}

// New builds the client. Every subscription is made here, once.
func New(opts Options) (*Client, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	wsURL, err := config.NormalizeWSURL(cfg.ServerURL)
	if err != nil {
		return nil, err
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	creds := opts.Credentials
	if creds == nil {
		creds = auth.FileCredentials{Path: cfg.CredentialsPath}
	}
	factory := opts.PeerFactory
	if factory == nil {
		factory = peer.NewFactory(cfg.STUNServers)
	}

	c := &Client{
		cfg:      cfg,
		registry: reg,
		loop:     loop.New(),
		bus:      event.NewBus(),
		store:    state.NewStore(),
		metrics:  metrics.New(reg),
	}

	// ── Transport ──────────────────────────────────────────────────────
	c.conn = connection.New(connection.Options{
		URL:            wsURL,
		ReconnectDelay: cfg.ReconnectDelay,
		Dialer:         opts.Dialer,
		Runtime:        c.loop,
		Scheduler:      opts.Scheduler,
		Bus:            c.bus,
		Credentials:    creds,
		Metrics:        c.metrics,
	})

	// ── Session components ─────────────────────────────────────────────
	c.auth = auth.New(c.conn, c.store, c.bus, creds)
	c.match = matchmaking.New(c.conn, c.store, c.bus, c.metrics)
	c.relay = signaling.New(c.conn, c.store, c.bus)
	c.peer = peer.New(peer.Options{
		Factory:    factory,
		Relay:      c.relay,
		Executor:   c.loop,
		Transcript: c.store,
		Bus:        c.bus,
		Metrics:    c.metrics,
	})
	c.relay.Bind(c.peer)
	c.match.SetPeer(c.peer)
	c.result = result.New(c.conn, c.store, c.bus, c.match, c.metrics)

	return c, nil
}

// Run connects and drives the loop until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	if c.cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, c.cfg.MetricsAddr, c.registry); err != nil {
				util.LogError("metrics server: %v", err)
			}
		}()
		util.LogInfo("metrics on http://%s/metrics", c.cfg.MetricsAddr)
	}
	c.metrics.StartReporter(ctx)

	c.loop.Post(c.conn.Connect)
	err := c.loop.Run(ctx)

	// The loop has stopped; nothing else touches the components now.
	c.peer.Close()
	if cerr := c.conn.Close(); cerr != nil {
		util.LogWarning("closing connection: %v", cerr)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Subscribe registers fn for name. fn runs on the loop.
func (c *Client) Subscribe(name, owner string, fn event.Handler) bool {
	return c.bus.Subscribe(name, owner, fn)
}

// Snapshot returns a detached copy of the application state.
func (c *Client) Snapshot() state.Snapshot {
	return c.store.Snapshot()
}

// call runs fn on the loop and returns its error.
func (c *Client) call(ctx context.Context, fn func() error) error {
	var err error
	if derr := c.loop.Do(ctx, func() { err = fn() }); derr != nil {
		return fmt.Errorf("client stopped: %w", derr)
	}
	return err
}

// ---------------------------------------------------------------------------
// Account
// ---------------------------------------------------------------------------

func (c *Client) Login(ctx context.Context, username, password string) error {
	return c.call(ctx, func() error { return c.auth.Login(username, password) })
}

func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.call(ctx, func() error { return c.auth.Register(username, password) })
}

func (c *Client) UpdateDisplayName(ctx context.Context, name string) error {
	return c.call(ctx, func() error { return c.auth.UpdateDisplayName(name) })
}

func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, c.auth.Logout)
}

func (c *Client) RequestRanking(ctx context.Context) error {
	return c.call(ctx, c.auth.RequestRanking)
}

// ---------------------------------------------------------------------------
// Match
// ---------------------------------------------------------------------------

func (c *Client) JoinQueue(ctx context.Context) error {
	return c.call(ctx, c.match.JoinQueue)
}

func (c *Client) LeaveQueue(ctx context.Context) error {
	return c.call(ctx, c.match.LeaveQueue)
}

func (c *Client) SendChat(ctx context.Context, text string) error {
	return c.call(ctx, func() error { return c.peer.SendChat(text) })
}

func (c *Client) Report(ctx context.Context, outcome string) error {
	return c.call(ctx, func() error { return c.result.Report(outcome) })
}

// ActionsEnabled reports whether win/lose/cancel may be submitted.
func (c *Client) ActionsEnabled(ctx context.Context) bool {
	var ok bool
	_ = c.loop.Do(ctx, func() { ok = c.result.ActionsEnabled() })
	return ok
}

// Status summarizes connection and peer state for display.
type Status struct {
	Connection connection.State
	Peer       peer.State
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.loop.Do(ctx, func() {
		st = Status{Connection: c.conn.State(), Peer: c.peer.State()}
	})
	return st, err
}
