package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/matchlink/internal/app"
	"github.com/1ureka/matchlink/internal/event"
	"github.com/1ureka/matchlink/internal/state"
)

type fakeSession struct {
	calls []string
	subs  []string
}

func (f *fakeSession) record(s string) error { f.calls = append(f.calls, s); return nil }

func (f *fakeSession) Login(_ context.Context, u, p string) error    { return f.record("login " + u + " " + p) }
func (f *fakeSession) Register(_ context.Context, u, p string) error { return f.record("register " + u + " " + p) }
func (f *fakeSession) UpdateDisplayName(_ context.Context, n string) error {
	return f.record("name " + n)
}
func (f *fakeSession) Logout(context.Context) error             { return f.record("logout") }
func (f *fakeSession) RequestRanking(context.Context) error     { return f.record("ranking") }
func (f *fakeSession) JoinQueue(context.Context) error          { return f.record("queue") }
func (f *fakeSession) LeaveQueue(context.Context) error         { return f.record("leave") }
func (f *fakeSession) SendChat(_ context.Context, t string) error { return f.record("say " + t) }
func (f *fakeSession) Report(_ context.Context, o string) error { return f.record("report " + o) }
func (f *fakeSession) Status(context.Context) (app.Status, error) {
	return app.Status{}, f.record("status")
}
func (f *fakeSession) Snapshot() state.Snapshot { return state.Snapshot{} }
func (f *fakeSession) Subscribe(name, _ string, _ event.Handler) bool {
	f.subs = append(f.subs, name)
	return true
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		name string
		args []string
	}{
		{"", "", nil},
		{"   ", "", nil},
		{"QUEUE", "queue", []string{}},
		{"say  good   game ", "say", []string{"good", "game"}},
	}
	for _, tt := range tests {
		name, args := parseCommand(tt.line)
		assert.Equal(t, tt.name, name, tt.line)
		assert.Equal(t, tt.args, args, tt.line)
	}
}

func TestREPLDispatch(t *testing.T) {
	s := &fakeSession{}
	input := strings.Join([]string{
		"login alice secret",
		"register bob",
		"name Alice the Great",
		"queue",
		"say gl hf",
		"win",
		"leave",
		"ranking",
		"status",
		"bogus",
		"logout",
		"quit",
		"queue",
	}, "\n")

	r := newREPL(s, strings.NewReader(input))
	r.askPassword = func() string { return "prompted" }
	r.run(context.Background())

	assert.Equal(t, []string{
		"login alice secret",
		"register bob prompted",
		"name Alice the Great",
		"queue",
		"say gl hf",
		"report win",
		"leave",
		"ranking",
		"status",
		"logout",
	}, s.calls)
	require.NotEmpty(t, s.subs)
	assert.Contains(t, s.subs, event.ChatMessage)
}

func TestPasswordPromptReadsNextLine(t *testing.T) {
	s := &fakeSession{}
	input := strings.Join([]string{
		"login alice",
		"hunter2",
		"queue",
		"quit",
	}, "\n")

	ctx := context.Background()
	r := newREPL(s, strings.NewReader(input))
	r.askPassword = func() string {
		line, ok := r.readLine(ctx)
		require.True(t, ok)
		return line
	}
	r.run(ctx)

	// The password line is consumed by the prompt, not run as a command.
	assert.Equal(t, []string{"login alice hunter2", "queue"}, s.calls)
}

func TestPasswordPromptAtEOF(t *testing.T) {
	s := &fakeSession{}
	ctx := context.Background()
	r := newREPL(s, strings.NewReader("register bob"))
	r.askPassword = func() string {
		line, _ := r.readLine(ctx)
		return line
	}
	r.run(ctx)

	assert.Equal(t, []string{"register bob "}, s.calls)
}
