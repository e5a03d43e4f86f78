package roomcore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func join(t *testing.T, s *Server, peer *Peer, roomID string) {
	t.Helper()
	s.Dispatch(peer.ID, EventJoinVideoRoom, mustJSON(t, JoinVideoRoomRequest{RoomID: roomID}))
}

// produceOneTrack drives a peer through create-transport(send) ->
// connect-transport -> create-producer(kind), returning the new
// producer id. Fails the test on any error reply.
func produceOneTrack(t *testing.T, s *Server, peer *Peer, sender *recordingSender, roomID, kind string) string {
	t.Helper()
	s.Dispatch(peer.ID, EventCreateTransport, mustJSON(t, CreateTransportRequest{RoomID: roomID, Direction: string(DirectionSend)}))
	created := sender.eventsNamed(EventTransportCreated)
	require.NotEmpty(t, created)
	payload := created[len(created)-1].payload.(TransportCreatedPayload)
	transportID := payload.TransportParams.ID

	s.Dispatch(peer.ID, EventConnectTransport, mustJSON(t, ConnectTransportRequest{TransportID: transportID}))
	require.Equal(t, 1, sender.count(EventTransportConnected))

	s.Dispatch(peer.ID, EventCreateProducer, mustJSON(t, CreateProducerRequest{TransportID: transportID, RoomID: roomID, Kind: kind}))
	producerCreated := sender.eventsNamed(EventProducerCreated)
	require.NotEmpty(t, producerCreated)
	pc := producerCreated[len(producerCreated)-1].payload.(ProducerCreatedPayload)
	return pc.ID
}

func TestJoinEmptyRoomReceivesNoExistingProducers(t *testing.T) {
	s := newTestServer()
	p1, sender := newTestPeer(s)

	join(t, s, p1, "room-A")

	joined := sender.eventsNamed(EventVideoRoomJoined)
	require.Len(t, joined, 1)
	payload := joined[0].payload.(VideoRoomJoinedPayload)
	assert.Empty(t, payload.ExistingProducers)
}

// S1 - two-party symmetric session.
func TestTwoPartySymmetricSession(t *testing.T) {
	s := newTestServer()
	p1, sender1 := newTestPeer(s)
	p2, sender2 := newTestPeer(s)

	join(t, s, p1, "room-A")
	join(t, s, p2, "room-A")

	require.Len(t, sender1.eventsNamed(EventNewPeerJoined), 1)

	produceOneTrack(t, s, p1, sender1, "room-A", "video")
	produceOneTrack(t, s, p1, sender1, "room-A", "audio")
	produceOneTrack(t, s, p2, sender2, "room-A", "video")
	produceOneTrack(t, s, p2, sender2, "room-A", "audio")

	assert.Len(t, sender2.eventsNamed(EventNewProducerAvail), 2)
	assert.Len(t, sender1.eventsNamed(EventNewProducerAvail), 2)
}

// S2 - late join sees existing producers once, as existingProducers, not fan-out.
func TestLateJoinReceivesExistingProducersNotFanout(t *testing.T) {
	s := newTestServer()
	p1, sender1 := newTestPeer(s)
	p2, sender2 := newTestPeer(s)

	join(t, s, p1, "room-A")
	join(t, s, p2, "room-A")
	produceOneTrack(t, s, p1, sender1, "room-A", "video")
	produceOneTrack(t, s, p1, sender1, "room-A", "audio")
	produceOneTrack(t, s, p2, sender2, "room-A", "video")
	produceOneTrack(t, s, p2, sender2, "room-A", "audio")

	p3, sender3 := newTestPeer(s)
	join(t, s, p3, "room-A")

	joined := sender3.eventsNamed(EventVideoRoomJoined)
	require.Len(t, joined, 1)
	payload := joined[0].payload.(VideoRoomJoinedPayload)
	assert.Len(t, payload.ExistingProducers, 4)
	assert.Empty(t, sender3.eventsNamed(EventNewProducerAvail))

	assert.Len(t, newPeerJoinedFor(sender1, p3.ID), 1)
	assert.Len(t, newPeerJoinedFor(sender2, p3.ID), 1)
}

// newPeerJoinedFor returns the new-peer-joined events sender received
// that announce peerID.
func newPeerJoinedFor(sender *recordingSender, peerID string) []sentEvent {
	out := make([]sentEvent, 0)
	for _, e := range sender.eventsNamed(EventNewPeerJoined) {
		if e.payload.(NewPeerJoinedPayload).PeerID == peerID {
			out = append(out, e)
		}
	}
	return out
}

// S3 - graceful leave: remaining members get producer-closed + peer-left,
// departing peer gets video-room-left and nothing else about itself.
func TestGracefulLeaveFansOutProducerClosedAndPeerLeft(t *testing.T) {
	s := newTestServer()
	p1, sender1 := newTestPeer(s)
	p2, sender2 := newTestPeer(s)
	p3, sender3 := newTestPeer(s)

	join(t, s, p1, "room-A")
	join(t, s, p2, "room-A")
	join(t, s, p3, "room-A")

	produceOneTrack(t, s, p2, sender2, "room-A", "video")
	produceOneTrack(t, s, p2, sender2, "room-A", "audio")

	s.Dispatch(p2.ID, EventLeaveVideoRoom, mustJSON(t, LeaveVideoRoomRequest{RoomID: "room-A"}))

	require.Len(t, sender2.eventsNamed(EventVideoRoomLeft), 1)
	assert.Len(t, sender1.eventsNamed(EventProducerClosedFanout), 2)
	assert.Len(t, sender3.eventsNamed(EventProducerClosedFanout), 2)
	assert.Len(t, sender1.eventsNamed(EventPeerLeft), 1)
	assert.Len(t, sender3.eventsNamed(EventPeerLeft), 1)
}

// S4 - abrupt disconnect has the same observable effect on remaining peers as S3.
func TestAbruptDisconnectMatchesGracefulLeave(t *testing.T) {
	s := newTestServer()
	p1, sender1 := newTestPeer(s)
	p2, sender2 := newTestPeer(s)

	join(t, s, p1, "room-A")
	join(t, s, p2, "room-A")
	produceOneTrack(t, s, p2, sender2, "room-A", "video")

	s.Disconnect(p2.ID)

	assert.Len(t, sender1.eventsNamed(EventProducerClosedFanout), 1)
	assert.Len(t, sender1.eventsNamed(EventPeerLeft), 1)
	assert.Equal(t, 0, s.Peers.Count()-1) // only p1 remains registered
}

// S5 - protocol violation: create-producer before connect-transport.
func TestCreateProducerBeforeConnectIsRejected(t *testing.T) {
	s := newTestServer()
	p1, sender1 := newTestPeer(s)
	join(t, s, p1, "room-A")

	s.Dispatch(p1.ID, EventCreateTransport, mustJSON(t, CreateTransportRequest{RoomID: "room-A", Direction: string(DirectionSend)}))
	created := sender1.eventsNamed(EventTransportCreated)
	transportID := created[0].payload.(TransportCreatedPayload).TransportParams.ID

	s.Dispatch(p1.ID, EventCreateProducer, mustJSON(t, CreateProducerRequest{TransportID: transportID, RoomID: "room-A", Kind: "video"}))

	errs := sender1.eventsNamed(EventProducerError)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeNotConnected, errs[0].payload.(ErrorPayload).Error)
	assert.Empty(t, sender1.eventsNamed(EventNewProducerAvail))
	assert.Empty(t, sender1.eventsNamed(EventProducerCreated))
}

// S6 - empty-room teardown: leaving the only member closes the router,
// and a later join allocates a fresh one.
func TestEmptyRoomTeardownAndFreshRouterOnRejoin(t *testing.T) {
	s := newTestServer()
	p1, sender1 := newTestPeer(s)
	join(t, s, p1, "room-A")

	s.Dispatch(p1.ID, EventLeaveVideoRoom, mustJSON(t, LeaveVideoRoomRequest{RoomID: "room-A"}))
	_, stillExists := s.Rooms.Get("room-A")
	assert.False(t, stillExists)

	p2, sender2 := newTestPeer(s)
	join(t, s, p2, "room-A")
	joined := sender2.eventsNamed(EventVideoRoomJoined)
	require.Len(t, joined, 1)
	assert.Empty(t, joined[0].payload.(VideoRoomJoinedPayload).ExistingProducers)
}

// Idempotence: leave-video-room twice returns not-joined on the second call.
func TestLeaveTwiceReturnsNotJoined(t *testing.T) {
	s := newTestServer()
	p1, sender1 := newTestPeer(s)
	join(t, s, p1, "room-A")

	s.Dispatch(p1.ID, EventLeaveVideoRoom, mustJSON(t, LeaveVideoRoomRequest{RoomID: "room-A"}))
	require.Len(t, sender1.eventsNamed(EventVideoRoomLeft), 1)

	s.Dispatch(p1.ID, EventLeaveVideoRoom, mustJSON(t, LeaveVideoRoomRequest{RoomID: "room-A"}))
	errs := sender1.eventsNamed(EventVideoRoomError)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeNotJoined, errs[0].payload.(ErrorPayload).Error)
}

// Idempotence: connect-transport on an already-connected transport
// returns already-connected rather than reconnecting.
func TestConnectTransportTwiceReturnsAlreadyConnected(t *testing.T) {
	s := newTestServer()
	p1, sender1 := newTestPeer(s)
	join(t, s, p1, "room-A")

	s.Dispatch(p1.ID, EventCreateTransport, mustJSON(t, CreateTransportRequest{RoomID: "room-A", Direction: string(DirectionSend)}))
	transportID := sender1.eventsNamed(EventTransportCreated)[0].payload.(TransportCreatedPayload).TransportParams.ID

	s.Dispatch(p1.ID, EventConnectTransport, mustJSON(t, ConnectTransportRequest{TransportID: transportID}))
	require.Len(t, sender1.eventsNamed(EventTransportConnected), 1)

	s.Dispatch(p1.ID, EventConnectTransport, mustJSON(t, ConnectTransportRequest{TransportID: transportID}))
	errs := sender1.eventsNamed(EventTransportError)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeAlreadyConnected, errs[0].payload.(ErrorPayload).Error)
}

// I6 - the originating peer never appears in the recipient set of its own fan-out.
func TestOriginatorExcludedFromOwnFanout(t *testing.T) {
	s := newTestServer()
	p1, sender1 := newTestPeer(s)
	join(t, s, p1, "room-A")
	produceOneTrack(t, s, p1, sender1, "room-A", "video")
	assert.Empty(t, sender1.eventsNamed(EventNewProducerAvail))
}

// create-consumer for a producer that closed between advertisement and
// consume returns unknown-producer, and no consumer record remains.
func TestConsumeClosedProducerReturnsUnknownProducer(t *testing.T) {
	s := newTestServer()
	p1, sender1 := newTestPeer(s)
	p2, sender2 := newTestPeer(s)
	join(t, s, p1, "room-A")
	join(t, s, p2, "room-A")

	producerID := produceOneTrack(t, s, p1, sender1, "room-A", "video")
	s.Dispatch(p1.ID, EventCloseProducer, mustJSON(t, CloseProducerRequest{ProducerID: producerID, RoomID: "room-A"}))

	s.Dispatch(p2.ID, EventCreateTransport, mustJSON(t, CreateTransportRequest{RoomID: "room-A", Direction: string(DirectionRecv)}))
	recvTransportID := sender2.eventsNamed(EventTransportCreated)[0].payload.(TransportCreatedPayload).TransportParams.ID
	s.Dispatch(p2.ID, EventConnectTransport, mustJSON(t, ConnectTransportRequest{TransportID: recvTransportID}))

	s.Dispatch(p2.ID, EventCreateConsumer, mustJSON(t, CreateConsumerRequest{TransportID: recvTransportID, ProducerID: producerID}))
	errs := sender2.eventsNamed(EventConsumerError)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeUnknownProducer, errs[0].payload.(ErrorPayload).Error)

	_, producers, consumers := s.Tables.counts()
	assert.Equal(t, 0, producers)
	assert.Equal(t, 0, consumers)
}

// I4 - resource-leak freedom: after all peers disconnect, registries are empty.
func TestResourceLeakFreedomAfterAllDisconnect(t *testing.T) {
	s := newTestServer()
	p1, sender1 := newTestPeer(s)
	p2, sender2 := newTestPeer(s)
	join(t, s, p1, "room-A")
	join(t, s, p2, "room-A")
	produceOneTrack(t, s, p1, sender1, "room-A", "video")
	produceOneTrack(t, s, p2, sender2, "room-A", "audio")

	s.Disconnect(p1.ID)
	s.Disconnect(p2.ID)

	transports, producers, consumers := s.Tables.counts()
	assert.Equal(t, 0, transports)
	assert.Equal(t, 0, producers)
	assert.Equal(t, 0, consumers)
	assert.Equal(t, 0, s.Peers.Count())
	_, ok := s.Rooms.Get("room-A")
	assert.False(t, ok)
}

// Consuming one's own producer is rejected.
func TestCannotConsumeOwnProducer(t *testing.T) {
	s := newTestServer()
	p1, sender1 := newTestPeer(s)
	join(t, s, p1, "room-A")
	producerID := produceOneTrack(t, s, p1, sender1, "room-A", "video")

	s.Dispatch(p1.ID, EventCreateTransport, mustJSON(t, CreateTransportRequest{RoomID: "room-A", Direction: string(DirectionRecv)}))
	recvTransports := sender1.eventsNamed(EventTransportCreated)
	recvTransportID := recvTransports[len(recvTransports)-1].payload.(TransportCreatedPayload).TransportParams.ID
	s.Dispatch(p1.ID, EventConnectTransport, mustJSON(t, ConnectTransportRequest{TransportID: recvTransportID}))

	s.Dispatch(p1.ID, EventCreateConsumer, mustJSON(t, CreateConsumerRequest{TransportID: recvTransportID, ProducerID: producerID}))
	errs := sender1.eventsNamed(EventConsumerError)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeNotOwner, errs[0].payload.(ErrorPayload).Error)
}

// duplicate-kind: a peer may not hold two producers of the same kind.
func TestDuplicateKindProducerRejected(t *testing.T) {
	s := newTestServer()
	p1, sender1 := newTestPeer(s)
	join(t, s, p1, "room-A")
	produceOneTrack(t, s, p1, sender1, "room-A", "video")

	s.Dispatch(p1.ID, EventCreateProducer, mustJSON(t, CreateProducerRequest{
		TransportID: currentSendTransportID(t, s, p1),
		RoomID:      "room-A",
		Kind:        "video",
	}))

	errs := sender1.eventsNamed(EventProducerError)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeDuplicateKind, errs[0].payload.(ErrorPayload).Error)
}

// Dispatch recovers a panicking handler and reports it to the
// originating peer as an engine-failure, instead of taking down the
// connection (spec.md §4.4).
func TestDispatchRecoversPanicAsEngineFailure(t *testing.T) {
	s := newTestServer()
	p1, sender1 := newTestPeer(s)

	assert.NotPanics(t, func() {
		join(t, s, p1, panicRoomID)
	})

	errs := sender1.eventsNamed(EventVideoRoomError)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeEngineFailure, errs[0].payload.(ErrorPayload).Error)

	// the connection is still usable afterwards
	join(t, s, p1, "room-A")
	assert.Len(t, sender1.eventsNamed(EventVideoRoomJoined), 1)
}

// NotifyWorkerDied reports video-room-error to every connected peer.
func TestNotifyWorkerDiedFansOutToEveryPeer(t *testing.T) {
	s := newTestServer()
	p1, sender1 := newTestPeer(s)
	p2, sender2 := newTestPeer(s)
	join(t, s, p1, "room-A")
	join(t, s, p2, "room-B")

	s.NotifyWorkerDied(assert.AnError)

	assert.Len(t, sender1.eventsNamed(EventVideoRoomError), 1)
	assert.Len(t, sender2.eventsNamed(EventVideoRoomError), 1)
}

func currentSendTransportID(t *testing.T, s *Server, peer *Peer) string {
	t.Helper()
	peer.mu.Lock()
	defer peer.mu.Unlock()
	return peer.sendTransportID
}
