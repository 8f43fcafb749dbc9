package peer

import (
	"github.com/pion/webrtc/v4"
)

// ChannelLabel is the name of the chat data channel the initiator opens.
const ChannelLabel = "chat"

// DataChannel is the subset of *webrtc.DataChannel a session uses.
type DataChannel interface {
	Label() string
	OnOpen(func())
	OnClose(func())
	OnMessage(func(webrtc.DataChannelMessage))
	SendText(string) error
	Close() error
}

// PeerConnection is the subset of *webrtc.PeerConnection a session uses.
// Local candidates are delivered in their JSON form; nil marks the end of
// gathering.
type PeerConnection interface {
	CreateDataChannel(label string, init *webrtc.DataChannelInit) (DataChannel, error)
	OnDataChannel(func(DataChannel))
	OnICECandidate(func(*webrtc.ICECandidateInit))
	OnConnectionStateChange(func(webrtc.PeerConnectionState))
	CreateOffer(*webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer(*webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	Close() error
}

// Factory creates a fresh PeerConnection for each match.
type Factory func() (PeerConnection, error)

// NewFactory returns a Factory building pion peer connections that gather
// candidates through the given STUN servers. No TURN: peers connect directly.
func NewFactory(stunServers []string) Factory {
	return func() (PeerConnection, error) {
		config := webrtc.Configuration{}
		if len(stunServers) > 0 {
			config.ICEServers = []webrtc.ICEServer{{URLs: stunServers}}
		}
		pc, err := webrtc.NewPeerConnection(config)
		if err != nil {
			return nil, err
		}
		return pionPeer{pc}, nil
	}
}

// pionPeer adapts *webrtc.PeerConnection to PeerConnection.
type pionPeer struct {
	*webrtc.PeerConnection
}

func (p pionPeer) CreateDataChannel(label string, init *webrtc.DataChannelInit) (DataChannel, error) {
	dc, err := p.PeerConnection.CreateDataChannel(label, init)
	if err != nil {
		return nil, err
	}
	return dc, nil
}

func (p pionPeer) OnDataChannel(fn func(DataChannel)) {
	p.PeerConnection.OnDataChannel(func(dc *webrtc.DataChannel) { fn(dc) })
}

func (p pionPeer) OnICECandidate(fn func(*webrtc.ICECandidateInit)) {
	p.PeerConnection.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			fn(nil)
			return
		}
		init := c.ToJSON()
		fn(&init)
	})
}
