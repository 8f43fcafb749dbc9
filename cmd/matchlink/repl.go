package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"github.com/1ureka/matchlink/internal/app"
	"github.com/1ureka/matchlink/internal/event"
	"github.com/1ureka/matchlink/internal/protocol"
	"github.com/1ureka/matchlink/internal/state"
)

const replOwner = "repl"

// Session is the part of app.Client the REPL drives.
type Session interface {
	Login(ctx context.Context, username, password string) error
	Register(ctx context.Context, username, password string) error
	UpdateDisplayName(ctx context.Context, name string) error
	Logout(ctx context.Context) error
	RequestRanking(ctx context.Context) error
	JoinQueue(ctx context.Context) error
	LeaveQueue(ctx context.Context) error
	SendChat(ctx context.Context, text string) error
	Report(ctx context.Context, outcome string) error
	Status(ctx context.Context) (app.Status, error)
	Snapshot() state.Snapshot
	Subscribe(name, owner string, fn event.Handler) bool
}

type repl struct {
	s  Session
	in io.Reader

	// askPassword prompts when login/register is given no password. It runs
	// while no line read is outstanding, so it may read the same input.
	askPassword func() string

	want  chan struct{}
	lines chan scanned
	eof   chan struct{}
}

type scanned struct {
	text string
	ok   bool
}

func newREPL(s Session, in io.Reader) *repl {
	r := &repl{s: s, in: in, askPassword: promptPassword}
	r.subscribe()
	return r
}

// run reads commands until EOF, quit, or ctx is cancelled.
func (r *repl) run(ctx context.Context) {
	r.want = make(chan struct{})
	r.lines = make(chan scanned)
	r.eof = make(chan struct{})
	stop := make(chan struct{})
	defer close(stop)

	go r.scan(stop)

	for {
		line, ok := r.readLine(ctx)
		if !ok || !r.exec(ctx, line) {
			return
		}
	}
}

// scan reads one line per request. Between requests it does not touch the
// input, leaving it free for interactive prompts.
func (r *repl) scan(stop <-chan struct{}) {
	defer close(r.eof)
	scanner := bufio.NewScanner(r.in)
	for {
		select {
		case <-r.want:
		case <-stop:
			return
		}
		ok := scanner.Scan()
		select {
		case r.lines <- scanned{text: scanner.Text(), ok: ok}:
		case <-stop:
			return
		}
		if !ok {
			return
		}
	}
}

// readLine asks the scanner for the next line. ok is false on EOF or when
// ctx is cancelled.
func (r *repl) readLine(ctx context.Context) (string, bool) {
	select {
	case r.want <- struct{}{}:
	case <-r.eof:
		return "", false
	case <-ctx.Done():
		return "", false
	}
	select {
	case l := <-r.lines:
		return l.text, l.ok
	case <-ctx.Done():
		return "", false
	}
}

// exec runs one command line. It returns false when the REPL should exit.
func (r *repl) exec(ctx context.Context, line string) bool {
	name, args := parseCommand(line)
	if name == "" {
		return true
	}

	var err error
	switch name {
	case "quit", "exit":
		return false
	case "help":
		printHelp()
	case "login", "register":
		if len(args) < 1 {
			err = fmt.Errorf("usage: %s <username> [password]", name)
			break
		}
		password := strings.Join(args[1:], " ")
		if password == "" {
			password = r.askPassword()
		}
		if name == "login" {
			err = r.s.Login(ctx, args[0], password)
		} else {
			err = r.s.Register(ctx, args[0], password)
		}
	case "name":
		err = r.s.UpdateDisplayName(ctx, strings.Join(args, " "))
	case "logout":
		err = r.s.Logout(ctx)
	case "ranking":
		err = r.s.RequestRanking(ctx)
	case "queue":
		err = r.s.JoinQueue(ctx)
		if err == nil {
			pterm.Info.Println("Searching for an opponent...")
		}
	case "leave":
		err = r.s.LeaveQueue(ctx)
	case "say":
		err = r.s.SendChat(ctx, strings.Join(args, " "))
	case "win", "lose", "cancel":
		err = r.s.Report(ctx, name)
	case "status":
		err = r.printStatus(ctx)
	default:
		err = fmt.Errorf("unknown command %q (try 'help')", name)
	}

	if err != nil {
		pterm.Error.Println(err.Error())
	}
	return true
}

// parseCommand splits a line into a lower-cased command and its arguments.
func parseCommand(line string) (string, []string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

func (r *repl) printStatus(ctx context.Context) error {
	st, err := r.s.Status(ctx)
	if err != nil {
		return err
	}
	snap := r.s.Snapshot()

	rows := pterm.TableData{
		{"Connection", st.Connection.String()},
		{"Logged in", fmt.Sprintf("%t", snap.IsLoggedIn)},
	}
	if snap.IsLoggedIn {
		rows = append(rows,
			[]string{"User", fmt.Sprintf("%s (%s)", snap.Identity.DisplayName, snap.Identity.Username)},
			[]string{"Rate", fmt.Sprintf("%d", snap.Identity.Rate)},
		)
	}
	rows = append(rows, []string{"Matching", fmt.Sprintf("%t", snap.Matching)})
	if snap.Match != nil {
		rows = append(rows,
			[]string{"Match", snap.Match.MatchID},
			[]string{"Opponent", snap.Match.OpponentDisplayName},
			[]string{"Peer", st.Peer.String()},
			[]string{"Result", snap.Result.String()},
		)
	}
	return pterm.DefaultTable.WithData(rows).Render()
}

// subscribe prints notifications as they arrive.
func (r *repl) subscribe() {
	r.s.Subscribe(event.UserMessage, replOwner, func(n event.Notification) {
		if m, ok := n.Payload.(event.Message); ok {
			pterm.Warning.Println(m.Text)
		}
	})
	r.s.Subscribe(event.QueueStatus, replOwner, func(n event.Notification) {
		if m, ok := n.Payload.(event.Message); ok && m.Text != "" {
			pterm.Info.Println(m.Text)
		}
	})
	r.s.Subscribe(event.LoginStateChanged, replOwner, func(n event.Notification) {
		if ls, ok := n.Payload.(event.LoginState); ok && ls.IsLoggedIn {
			id := r.s.Snapshot().Identity
			pterm.Success.Printfln("Logged in as %s (rate %d)", id.DisplayName, id.Rate)
		} else {
			pterm.Info.Println("Logged out")
		}
	})
	r.s.Subscribe(event.MatchStarted, replOwner, func(n event.Notification) {
		if m, ok := n.Payload.(state.MatchContext); ok {
			pterm.Success.Printfln("Matched with %s", m.OpponentDisplayName)
		}
	})
	r.s.Subscribe(event.MatchEnded, replOwner, func(n event.Notification) {
		if m, ok := n.Payload.(event.MatchEnd); ok {
			pterm.Info.Printfln("Match %s ended (%s)", m.MatchID, m.Reason)
		}
	})
	r.s.Subscribe(event.ResultStateChanged, replOwner, func(n event.Notification) {
		rs, ok := n.Payload.(event.ResultState)
		if !ok || rs.Message == "" {
			return
		}
		pterm.Info.Printfln("%s: %s", rs.Kind, rs.Message)
	})
	r.s.Subscribe(event.ChatMessage, replOwner, func(n event.Notification) {
		line, ok := n.Payload.(state.ChatLine)
		if !ok {
			return
		}
		switch line.From {
		case state.FromSystem:
			pterm.Info.Println(line.Text)
		case state.FromSelf:
			pterm.Println(pterm.Cyan("you: ") + line.Text)
		case state.FromOpponent:
			pterm.Println(pterm.Magenta("them: ") + line.Text)
		}
	})
	r.s.Subscribe(event.RankingUpdated, replOwner, func(n event.Notification) {
		entries, ok := n.Payload.([]protocol.RankingEntry)
		if !ok {
			return
		}
		rows := pterm.TableData{{"#", "Player", "Rate"}}
		for i, e := range entries {
			rank := e.Rank
			if rank == 0 {
				rank = i + 1
			}
			rows = append(rows, []string{fmt.Sprintf("%d", rank), e.DisplayName, fmt.Sprintf("%d", e.Rate)})
		}
		_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	})
}

func promptPassword() string {
	pw, _ := pterm.DefaultInteractiveTextInput.
		WithDefaultText("Password").
		WithMask("*").
		Show()
	pterm.Println()
	return pw
}

func printHelp() {
	_ = pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"Command", "Description"},
		{"login <user> [pass]", "log in"},
		{"register <user> [pass]", "create an account"},
		{"name <display name>", "change display name"},
		{"logout", "log out"},
		{"queue / leave", "join or leave matchmaking"},
		{"say <text>", "chat with the opponent"},
		{"win / lose / cancel", "report the match result"},
		{"ranking", "show the ranking"},
		{"status", "show session state"},
		{"quit", "exit"},
	}).Render()
}
