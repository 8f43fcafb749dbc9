// matchlink — terminal client for the companion server.
//
// It keeps a session with the server, logs in, joins the matchmaking queue,
// opens a direct WebRTC chat channel with the matched opponent and reports
// the match result.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/matchlink/internal/app"
	"github.com/1ureka/matchlink/internal/config"
	"github.com/1ureka/matchlink/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	// Environment first, so flags override it.
	cfg, loadErr := config.Load()

	cmd := &cobra.Command{
		Use:          "matchlink",
		Short:        "Realtime match client: login, queue, P2P chat and result reporting",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if loadErr != nil {
				util.LogError("%v", loadErr)
				return loadErr
			}
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "companion server WebSocket URL")
	f.DurationVar(&cfg.ReconnectDelay, "reconnect-delay", cfg.ReconnectDelay, "delay before reconnecting after an abnormal close")
	f.StringSliceVar(&cfg.STUNServers, "stun", cfg.STUNServers, "STUN server URLs for ICE gathering")
	f.StringVar(&cfg.CredentialsPath, "credentials", cfg.CredentialsPath, "file holding the identity used for auto-login")
	f.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address (disabled when empty)")
	f.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")

	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	// Keep log lines off stdout, where the REPL prints.
	util.SetOutput(os.Stderr)
	if cfg.Debug {
		util.EnableDebug()
	}

	client, err := app.New(app.Options{Config: cfg})
	if err != nil {
		util.LogError("%v", err)
		return err
	}

	pterm.Info.Printfln("matchlink v%s — %s", version, cfg.ServerURL)
	pterm.Println("Type 'help' for commands.")
	pterm.Println()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- client.Run(runCtx) }()

	newREPL(client, os.Stdin).run(runCtx)
	cancel()

	if err := <-done; err != nil {
		util.LogError("client stopped: %v", err)
		return err
	}
	util.LogInfo("session closed")
	return nil
}
