package webrtc

import (
	"log"
	"sync"

	"tankbattle-backend/models"

	"github.com/pion/webrtc/v3"
)

// MessageFunc receives inbound DataChannel frames for one client.
type MessageFunc func(client *models.Player, raw []byte)

// CloseFunc is invoked when a peer's transport goes away.
type CloseFunc func(client *models.Player)

// Peer is one server-side WebRTC connection carrying a "game" DataChannel.
// It is the alternate transport: frames on the channel feed the same message
// dispatch as WebSocket frames, and outbound messages drain the same
// per-client send channel.
type Peer struct {
	PeerConnection *webrtc.PeerConnection
	DataChannel    *webrtc.DataChannel
	Client         *models.Player
	Mutex          sync.RWMutex
}

type Manager struct {
	peers     map[string]*Peer // connId -> peer
	mutex     sync.RWMutex
	onMessage MessageFunc
	onClose   CloseFunc
}

func NewManager() *Manager {
	return &Manager{
		peers: make(map[string]*Peer),
	}
}

// OnMessage sets the inbound frame handler shared by all peers.
func (m *Manager) OnMessage(fn MessageFunc) {
	m.onMessage = fn
}

// OnClose sets the teardown callback shared by all peers.
func (m *Manager) OnClose(fn CloseFunc) {
	m.onClose = fn
}

func (m *Manager) CreatePeer(client *models.Player) (*Peer, error) {
	config := m.getICEConfiguration()

	peerConnection, err := webrtc.NewPeerConnection(config)
	if err != nil {
		return nil, err
	}

	peerConnection.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate != nil {
			log.Printf("ICE candidate for connection %s: %s", client.ConnID, candidate.String())
		} else {
			log.Printf("ICE candidate gathering completed for connection %s", client.ConnID)
		}
	})

	peerConnection.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		log.Printf("ICE connection state for %s: %s", client.ConnID, state.String())
		if state == webrtc.ICEConnectionStateDisconnected || state == webrtc.ICEConnectionStateFailed {
			m.RemovePeer(client.ConnID)
		}
	})

	dataChannel, err := peerConnection.CreateDataChannel("game", nil)
	if err != nil {
		peerConnection.Close()
		return nil, err
	}

	peer := &Peer{
		PeerConnection: peerConnection,
		DataChannel:    dataChannel,
		Client:         client,
	}

	dataChannel.OnOpen(func() {
		log.Printf("DataChannel opened for connection %s", client.ConnID)
		go peer.writePump()
	})

	dataChannel.OnMessage(func(msg webrtc.DataChannelMessage) {
		if m.onMessage != nil {
			m.onMessage(client, msg.Data)
		}
	})

	dataChannel.OnClose(func() {
		log.Printf("DataChannel closed for connection %s", client.ConnID)
		m.RemovePeer(client.ConnID)
	})

	dataChannel.OnError(func(err error) {
		log.Printf("DataChannel error for connection %s: %v", client.ConnID, err)
	})

	m.mutex.Lock()
	m.peers[client.ConnID] = peer
	m.mutex.Unlock()

	return peer, nil
}

// writePump drains the client's send channel into the DataChannel, the same
// role the WebSocket write pump plays. It exits when the registry closes the
// channel (unregister or reconnect replacement).
func (p *Peer) writePump() {
	for message := range p.Client.Send {
		if p.DataChannel.ReadyState() != webrtc.DataChannelStateOpen {
			continue
		}
		if err := p.DataChannel.Send(message); err != nil {
			log.Printf("DataChannel send error for connection %s: %v", p.Client.ConnID, err)
			return
		}
	}
}

func (m *Manager) GetPeer(connID string) (*Peer, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	peer, exists := m.peers[connID]
	return peer, exists
}

func (m *Manager) RemovePeer(connID string) {
	m.mutex.Lock()
	peer, exists := m.peers[connID]
	if exists {
		delete(m.peers, connID)
	}
	m.mutex.Unlock()

	if !exists {
		return
	}
	if peer.PeerConnection != nil {
		peer.PeerConnection.Close()
	}
	if m.onClose != nil {
		m.onClose(peer.Client)
	}
}

// getICEConfiguration returns the ICE server configuration.
func (m *Manager) getICEConfiguration() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
		ICETransportPolicy: webrtc.ICETransportPolicyAll,
	}
}
