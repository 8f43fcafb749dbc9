// Package peertest provides scriptable stand-ins for pion peer connections.
package peertest

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/matchlink/internal/peer"
)

// Channel is a fake data channel. Open, Receive and Hangup fire the
// callbacks the session registered.
type Channel struct {
	label string

	mu        sync.Mutex
	onOpen    func()
	onClose   func()
	onMessage func(webrtc.DataChannelMessage)
	sent      []string
	closed    bool
}

// NewChannel creates a channel with the given label.
func NewChannel(label string) *Channel {
	return &Channel{label: label}
}

func (c *Channel) Label() string { return c.label }

func (c *Channel) OnOpen(fn func()) {
	c.mu.Lock()
	c.onOpen = fn
	c.mu.Unlock()
}

func (c *Channel) OnClose(fn func()) {
	c.mu.Lock()
	c.onClose = fn
	c.mu.Unlock()
}

func (c *Channel) OnMessage(fn func(webrtc.DataChannelMessage)) {
	c.mu.Lock()
	c.onMessage = fn
	c.mu.Unlock()
}

func (c *Channel) SendText(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("peertest: channel %s closed", c.label)
	}
	c.sent = append(c.sent, s)
	return nil
}

func (c *Channel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// Open fires the open callback.
func (c *Channel) Open() {
	c.mu.Lock()
	fn := c.onOpen
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Hangup fires the close callback as if the remote side went away.
func (c *Channel) Hangup() {
	c.mu.Lock()
	fn := c.onClose
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Receive delivers a text message from the remote side.
func (c *Channel) Receive(text string) {
	c.mu.Lock()
	fn := c.onMessage
	c.mu.Unlock()
	if fn != nil {
		fn(webrtc.DataChannelMessage{IsString: true, Data: []byte(text)})
	}
}

// Sent returns the texts sent so far.
func (c *Channel) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

// Closed reports whether Close was called.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Peer is a fake peer connection recording every negotiation step.
type Peer struct {
	// Errors returned by the corresponding methods when set.
	OfferErr     error
	AnswerErr    error
	RemoteErr    error
	CandidateErr error

	mu         sync.Mutex
	offers     int
	answers    int
	local      []webrtc.SessionDescription
	remote     []webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	channels   []*Channel
	closed     bool

	onICE   func(*webrtc.ICECandidateInit)
	onState func(webrtc.PeerConnectionState)
	onDC    func(peer.DataChannel)
}

var _ peer.PeerConnection = (*Peer)(nil)

func (p *Peer) CreateDataChannel(label string, _ *webrtc.DataChannelInit) (peer.DataChannel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := NewChannel(label)
	p.channels = append(p.channels, ch)
	return ch, nil
}

func (p *Peer) OnDataChannel(fn func(peer.DataChannel)) {
	p.mu.Lock()
	p.onDC = fn
	p.mu.Unlock()
}

func (p *Peer) OnICECandidate(fn func(*webrtc.ICECandidateInit)) {
	p.mu.Lock()
	p.onICE = fn
	p.mu.Unlock()
}

func (p *Peer) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	p.mu.Lock()
	p.onState = fn
	p.mu.Unlock()
}

func (p *Peer) CreateOffer(*webrtc.OfferOptions) (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.OfferErr != nil {
		return webrtc.SessionDescription{}, p.OfferErr
	}
	p.offers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("offer-%d", p.offers)}, nil
}

func (p *Peer) CreateAnswer(*webrtc.AnswerOptions) (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.AnswerErr != nil {
		return webrtc.SessionDescription{}, p.AnswerErr
	}
	p.answers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: fmt.Sprintf("answer-%d", p.answers)}, nil
}

func (p *Peer) SetLocalDescription(d webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.local = append(p.local, d)
	return nil
}

func (p *Peer) SetRemoteDescription(d webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.RemoteErr != nil {
		return p.RemoteErr
	}
	p.remote = append(p.remote, d)
	return nil
}

func (p *Peer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CandidateErr != nil {
		return p.CandidateErr
	}
	p.candidates = append(p.candidates, c)
	return nil
}

func (p *Peer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// EmitCandidate simulates pion discovering a local candidate.
func (p *Peer) EmitCandidate(candidate string) {
	p.mu.Lock()
	fn := p.onICE
	p.mu.Unlock()
	if fn != nil {
		fn(&webrtc.ICECandidateInit{Candidate: candidate})
	}
}

// EmitState simulates a connection state change.
func (p *Peer) EmitState(st webrtc.PeerConnectionState) {
	p.mu.Lock()
	fn := p.onState
	p.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

// EmitDataChannel simulates the remote side opening a channel.
func (p *Peer) EmitDataChannel(ch *Channel) {
	p.mu.Lock()
	fn := p.onDC
	p.channels = append(p.channels, ch)
	p.mu.Unlock()
	if fn != nil {
		fn(ch)
	}
}

// Offers returns the number of offers created.
func (p *Peer) Offers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offers
}

// Answers returns the number of answers created.
func (p *Peer) Answers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.answers
}

// Remote returns the remote descriptions applied.
func (p *Peer) Remote() []webrtc.SessionDescription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]webrtc.SessionDescription(nil), p.remote...)
}

// Local returns the local descriptions applied.
func (p *Peer) Local() []webrtc.SessionDescription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]webrtc.SessionDescription(nil), p.local...)
}

// Candidates returns the remote candidates applied, in order.
func (p *Peer) Candidates() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.candidates))
	for i, c := range p.candidates {
		out[i] = c.Candidate
	}
	return out
}

// Channels returns every channel created locally or announced remotely.
func (p *Peer) Channels() []*Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Channel(nil), p.channels...)
}

// Closed reports whether Close was called.
func (p *Peer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Factory hands out fresh Peers and remembers them.
type Factory struct {
	Err error

	mu    sync.Mutex
	peers []*Peer
}

// New implements peer.Factory.
func (f *Factory) New() (peer.PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	p := &Peer{}
	f.peers = append(f.peers, p)
	return p, nil
}

// Last returns the most recently created Peer, or nil.
func (f *Factory) Last() *Peer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.peers) == 0 {
		return nil
	}
	return f.peers[len(f.peers)-1]
}

// Count returns the number of Peers created.
func (f *Factory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.peers)
}
