package roomcore

import (
	"sync"

	"github.com/aura-conf/roomcore/internal/mediaengine"
)

// Direction mirrors spec.md §3 Transport.direction.
type Direction = mediaengine.Direction

const (
	DirectionSend = mediaengine.DirectionSend
	DirectionRecv = mediaengine.DirectionRecv
)

// Kind is a media kind, spec.md §3 Producer/Consumer.kind.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// TransportRecord is one row of the transport table (spec.md §3).
type TransportRecord struct {
	ID        string
	PeerID    string
	RoomID    string
	Direction Direction
	Handle    TransportHandle
	Params    mediaengine.TransportParams

	mu        sync.Mutex
	connected bool
}

func (t *TransportRecord) setConnected() {
	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
}

func (t *TransportRecord) isConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// ProducerRecord is one row of the producer table (spec.md §3).
type ProducerRecord struct {
	ID     string
	PeerID string
	RoomID string
	Kind   Kind
	Handle ProducerHandle
}

// ConsumerRecord is one row of the consumer table (spec.md §3).
type ConsumerRecord struct {
	ID         string
	PeerID     string
	RoomID     string
	ProducerID string
	Kind       Kind
	Handle     ConsumerHandle

	mu     sync.Mutex
	paused bool
}

func (c *ConsumerRecord) setPaused(v bool) {
	c.mu.Lock()
	c.paused = v
	c.mu.Unlock()
}

func (c *ConsumerRecord) isPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Tables holds the three id-keyed resource tables (spec.md §2 item 4,
// §3). mu is the short-held global lock; it guards insert/remove of
// table entries only and is never held across an adapter call or a
// fan-out send (spec.md §5). All of this package's access to Tables
// goes through the Server. Its handlers hold the owning Room's lock
// around membership checks and adapter calls; some table lookups,
// inserts and removals happen outside that lock.
type Tables struct {
	mu        sync.RWMutex
	transports map[string]*TransportRecord
	producers  map[string]*ProducerRecord
	consumers  map[string]*ConsumerRecord
}

// NewTables builds empty resource tables.
func NewTables() *Tables {
	return &Tables{
		transports: make(map[string]*TransportRecord),
		producers:  make(map[string]*ProducerRecord),
		consumers:  make(map[string]*ConsumerRecord),
	}
}

func (t *Tables) insertTransport(r *TransportRecord) {
	t.mu.Lock()
	t.transports[r.ID] = r
	t.mu.Unlock()
}

func (t *Tables) getTransport(id string) (*TransportRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.transports[id]
	return r, ok
}

func (t *Tables) removeTransport(id string) {
	t.mu.Lock()
	delete(t.transports, id)
	t.mu.Unlock()
}

func (t *Tables) insertProducer(r *ProducerRecord) {
	t.mu.Lock()
	t.producers[r.ID] = r
	t.mu.Unlock()
}

func (t *Tables) getProducer(id string) (*ProducerRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.producers[id]
	return r, ok
}

func (t *Tables) removeProducer(id string) {
	t.mu.Lock()
	delete(t.producers, id)
	t.mu.Unlock()
}

func (t *Tables) insertConsumer(r *ConsumerRecord) {
	t.mu.Lock()
	t.consumers[r.ID] = r
	t.mu.Unlock()
}

func (t *Tables) getConsumer(id string) (*ConsumerRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.consumers[id]
	return r, ok
}

func (t *Tables) removeConsumer(id string) {
	t.mu.Lock()
	delete(t.consumers, id)
	t.mu.Unlock()
}

// producersByRoom snapshots every producer currently live in roomID, in
// the wire shape used for the join payload's existingProducers list
// (spec.md §6.2).
func (t *Tables) producersByRoom(roomID string) []ProducerInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]ProducerInfo, 0)
	for _, r := range t.producers {
		if r.RoomID == roomID {
			out = append(out, ProducerInfo{ID: r.ID, PeerID: r.PeerID, Kind: string(r.Kind)})
		}
	}
	return out
}

// transportsByPeerInRoom snapshots every transport owned by peerID in
// roomID. Used by the cleanup supervisor (spec.md §4.6).
func (t *Tables) transportsByPeerInRoom(peerID, roomID string) []*TransportRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*TransportRecord, 0)
	for _, r := range t.transports {
		if r.PeerID == peerID && r.RoomID == roomID {
			out = append(out, r)
		}
	}
	return out
}

func (t *Tables) producersByPeerInRoom(peerID, roomID string) []*ProducerRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*ProducerRecord, 0)
	for _, r := range t.producers {
		if r.PeerID == peerID && r.RoomID == roomID {
			out = append(out, r)
		}
	}
	return out
}

func (t *Tables) consumersByPeerInRoom(peerID, roomID string) []*ConsumerRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*ConsumerRecord, 0)
	for _, r := range t.consumers {
		if r.PeerID == peerID && r.RoomID == roomID {
			out = append(out, r)
		}
	}
	return out
}

// consumersByProducer snapshots every consumer subscribed to producerID,
// used when a producer closes and its consumers must follow it (spec.md
// §3 Consumer: "automatically closed if its producer closes").
func (t *Tables) consumersByProducer(producerID string) []*ConsumerRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*ConsumerRecord, 0)
	for _, r := range t.consumers {
		if r.ProducerID == producerID {
			out = append(out, r)
		}
	}
	return out
}

// counts reports table sizes, used by resource-leak-freedom tests
// (spec.md §8 I4).
func (t *Tables) counts() (transports, producers, consumers int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.transports), len(t.producers), len(t.consumers)
}
