package roomcore

import "sync"

// PeerState is the observable session state from spec.md §4.3.
type PeerState string

const (
	PeerConnected            PeerState = "connected"
	PeerJoined               PeerState = "joined"
	PeerTransportsReadySend  PeerState = "transports-ready-send"
	PeerTransportsReadyRecv  PeerState = "transports-ready-recv"
	PeerProducing            PeerState = "producing"
	PeerConsuming            PeerState = "consuming"
	PeerLeaving              PeerState = "leaving"
	PeerClosed               PeerState = "closed"
)

// Sender delivers an outbound event to one peer's signaling connection
// (spec.md §6.1). internal/signaling.Client implements it; Send reports
// nothing back, so a failed delivery is logged by the Sender itself and
// otherwise ignored (spec.md §4.5).
type Sender interface {
	Send(event string, payload interface{})
}

// Peer is the in-process record for one signaling connection (spec.md
// §3 Peer). Its identity doubles as the connection id.
type Peer struct {
	ID       string
	Identity PeerIdentity
	sender   Sender

	mu              sync.Mutex
	roomID          string
	state           PeerState
	sendTransportID string
	recvTransportID string
}

// PeerIdentity is the already-verified identity the core receives from
// its out-of-scope authentication collaborator (spec.md §1).
type PeerIdentity struct {
	UserID string
	Role   string
}

func newPeer(id string, identity PeerIdentity, sender Sender) *Peer {
	return &Peer{ID: id, Identity: identity, sender: sender, state: PeerConnected}
}

// State reports the peer's current observable state.
func (p *Peer) State() PeerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// RoomID reports the room the peer currently belongs to, or "" if none.
func (p *Peer) RoomID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.roomID
}

func (p *Peer) send(event string, payload interface{}) {
	p.sender.Send(event, payload)
}

// PeerRegistry maps PeerId to Peer (spec.md §4.3).
type PeerRegistry struct {
	mu    sync.RWMutex
	peers map[string]*Peer
}

// NewPeerRegistry builds an empty peer registry.
func NewPeerRegistry() *PeerRegistry {
	return &PeerRegistry{peers: make(map[string]*Peer)}
}

// Register creates and stores a Peer for a newly accepted connection
// (spec.md §4.3: "On signaling-connection accept: create Peer(id)").
func (pr *PeerRegistry) Register(id string, identity PeerIdentity, sender Sender) *Peer {
	p := newPeer(id, identity, sender)
	pr.mu.Lock()
	pr.peers[id] = p
	pr.mu.Unlock()
	return p
}

// Get returns the peer for id, if still registered.
func (pr *PeerRegistry) Get(id string) (*Peer, bool) {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	p, ok := pr.peers[id]
	return p, ok
}

// Unregister drops the peer record (spec.md §4.6 step 6: "Drop the peer").
func (pr *PeerRegistry) Unregister(id string) {
	pr.mu.Lock()
	delete(pr.peers, id)
	pr.mu.Unlock()
}

// Count reports the number of currently registered peers, used by
// resource-leak-freedom tests (spec.md §8 I4).
func (pr *PeerRegistry) Count() int {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	return len(pr.peers)
}

// allIDs snapshots every currently registered peer id, for worker-death
// fan-out (spec.md §4.4).
func (pr *PeerRegistry) allIDs() []string {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	out := make([]string, 0, len(pr.peers))
	for id := range pr.peers {
		out = append(out, id)
	}
	return out
}
