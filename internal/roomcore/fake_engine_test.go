package roomcore

import (
	"sync"

	"github.com/aura-conf/roomcore/internal/mediaengine"
	"github.com/google/uuid"
)

// fakeEngine is an in-memory stand-in for the Media Engine Adapter used
// across this package's tests, so the room/peer/transport state machine
// can be exercised without real ICE/DTLS networking.
type fakeEngine struct {
	mu      sync.Mutex
	routers int
}

// panicRoomID triggers a panic from CreateRouter, used to exercise
// Dispatch's per-event panic recovery (spec.md §4.4).
const panicRoomID = "panic-room"

func (f *fakeEngine) CreateRouter(roomID string) (RouterHandle, error) {
	if roomID == panicRoomID {
		panic("simulated media engine panic")
	}
	f.mu.Lock()
	f.routers++
	f.mu.Unlock()
	return &fakeRouter{}, nil
}

type fakeRouter struct {
	mu     sync.Mutex
	closed bool
}

func (r *fakeRouter) Capabilities() []mediaengine.RTPCodecCapability {
	return mediaengine.RouterCapabilities()
}

func (r *fakeRouter) CreateTransport(id string, dir mediaengine.Direction, cfg mediaengine.Config) (TransportHandle, mediaengine.TransportParams, error) {
	return &fakeTransport{}, mediaengine.TransportParams{ID: id}, nil
}

func (r *fakeRouter) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

type fakeTransport struct {
	mu        sync.Mutex
	connected bool
}

func (t *fakeTransport) Connect(remote mediaengine.DTLSParameters) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected {
		return mediaengine.ErrAlreadyConnected
	}
	t.connected = true
	return nil
}

func (t *fakeTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *fakeTransport) Produce(id, kind string, params mediaengine.RTPParameters) (ProducerHandle, error) {
	return &fakeProducer{}, nil
}

func (t *fakeTransport) Consume(id string, producer ProducerHandle, remoteKind string) (ConsumerHandle, error) {
	return &fakeConsumer{}, nil
}

func (t *fakeTransport) Close() error { return nil }

type fakeProducer struct {
	mu     sync.Mutex
	closed bool
}

func (p *fakeProducer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

type fakeConsumer struct {
	mu     sync.Mutex
	closed bool
	paused bool
}

func (c *fakeConsumer) Resume() error { c.mu.Lock(); c.paused = false; c.mu.Unlock(); return nil }
func (c *fakeConsumer) Pause() error  { c.mu.Lock(); c.paused = true; c.mu.Unlock(); return nil }
func (c *fakeConsumer) Close() error  { c.mu.Lock(); c.closed = true; c.mu.Unlock(); return nil }

// recordingSender captures every event sent to a peer, for assertions.
type recordingSender struct {
	mu     sync.Mutex
	events []sentEvent
}

type sentEvent struct {
	event   string
	payload interface{}
}

func (s *recordingSender) Send(event string, payload interface{}) {
	s.mu.Lock()
	s.events = append(s.events, sentEvent{event: event, payload: payload})
	s.mu.Unlock()
}

func (s *recordingSender) eventsNamed(name string) []sentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentEvent, 0)
	for _, e := range s.events {
		if e.event == name {
			out = append(out, e)
		}
	}
	return out
}

func (s *recordingSender) count(name string) int {
	return len(s.eventsNamed(name))
}

func newTestServer() *Server {
	return NewServer(&fakeEngine{}, mediaengine.Config{}, testLogger())
}

func newTestPeer(s *Server) (*Peer, *recordingSender) {
	sender := &recordingSender{}
	id := uuid.NewString()
	p := s.Connect(id, PeerIdentity{UserID: id, Role: "participant"}, sender)
	return p, sender
}
