package roomcore

import (
	"encoding/json"
	"errors"

	"github.com/aura-conf/roomcore/internal/mediaengine"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Server) handleJoinVideoRoom(peer *Peer, payload []byte) {
	var req JoinVideoRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(peer, EventVideoRoomError, newError(CodeEngineFailure, "malformed payload"))
		return
	}

	peer.mu.Lock()
	if peer.roomID != "" {
		peer.mu.Unlock()
		s.sendError(peer, EventVideoRoomError, newError(CodeAlreadyJoined, "peer %s already joined %s", peer.ID, peer.roomID))
		return
	}
	peer.mu.Unlock()

	room, err := s.Rooms.GetOrCreate(req.RoomID)
	if err != nil {
		s.sendError(peer, EventVideoRoomError, newError(CodeEngineFailure, "create room: %v", err))
		return
	}

	room.Lock()
	existing := s.Tables.producersByRoom(room.ID)
	room.addMemberLocked(peer.ID)
	recipients := room.membersLocked()
	caps := room.router.Capabilities()
	room.Unlock()

	peer.mu.Lock()
	peer.roomID = req.RoomID
	peer.state = PeerJoined
	peer.mu.Unlock()

	peer.send(EventVideoRoomJoined, VideoRoomJoinedPayload{
		RouterCapabilities: caps,
		ExistingProducers:  existing,
	})

	for _, rid := range recipients {
		if rid == peer.ID {
			continue
		}
		if rp, ok := s.Peers.Get(rid); ok {
			rp.send(EventNewPeerJoined, NewPeerJoinedPayload{PeerID: peer.ID})
		}
	}

	s.logf("peer joined room", zap.String("peer_id", peer.ID), zap.String("room_id", room.ID), zap.Int("members", len(recipients)))
}

func (s *Server) handleLeaveVideoRoom(peer *Peer, payload []byte) {
	var req LeaveVideoRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(peer, EventVideoRoomError, newError(CodeEngineFailure, "malformed payload"))
		return
	}

	peer.mu.Lock()
	current := peer.roomID
	peer.mu.Unlock()
	if current == "" || current != req.RoomID {
		s.sendError(peer, EventVideoRoomError, newError(CodeNotJoined, "peer %s not joined to %s", peer.ID, req.RoomID))
		return
	}

	s.cleanup(peer, false)
	peer.send(EventVideoRoomLeft, VideoRoomLeftPayload{RoomID: req.RoomID})
}

func (s *Server) handleCreateTransport(peer *Peer, payload []byte) {
	var req CreateTransportRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(peer, EventTransportError, newError(CodeEngineFailure, "malformed payload"))
		return
	}
	var dir Direction
	switch req.Direction {
	case string(DirectionSend):
		dir = DirectionSend
	case string(DirectionRecv):
		dir = DirectionRecv
	default:
		s.sendError(peer, EventTransportError, newError(CodeWrongDirection, "unknown direction %q", req.Direction))
		return
	}

	peer.mu.Lock()
	joinedRoom := peer.roomID
	var existingID string
	if dir == DirectionSend {
		existingID = peer.sendTransportID
	} else {
		existingID = peer.recvTransportID
	}
	peer.mu.Unlock()

	if joinedRoom == "" || joinedRoom != req.RoomID {
		s.sendError(peer, EventTransportError, newError(CodeNotJoined, "peer %s not joined to %s", peer.ID, req.RoomID))
		return
	}

	// Repeated create-transport for a direction already allocated is
	// idempotent: the spec's enumerated error codes have no dedicated
	// code for this case, so the original transport's params are
	// replayed rather than inventing a new one.
	if existingID != "" {
		if rec, ok := s.Tables.getTransport(existingID); ok {
			peer.send(EventTransportCreated, TransportCreatedPayload{
				Direction:       req.Direction,
				TransportParams: rec.Params,
			})
			return
		}
	}

	room, ok := s.Rooms.Get(req.RoomID)
	if !ok {
		s.sendError(peer, EventTransportError, newError(CodeUnknownRoom, "room %s not found", req.RoomID))
		return
	}

	room.Lock()
	if !room.hasMemberLocked(peer.ID) {
		room.Unlock()
		s.sendError(peer, EventTransportError, newError(CodeNotJoined, "peer %s not a member of %s", peer.ID, req.RoomID))
		return
	}
	id := uuid.NewString()
	handle, params, err := room.router.CreateTransport(id, dir, s.webrtcCfg)
	room.Unlock()
	if err != nil {
		s.sendError(peer, EventTransportError, newError(CodeEngineFailure, "create transport: %v", err))
		return
	}

	s.Tables.insertTransport(&TransportRecord{ID: id, PeerID: peer.ID, RoomID: req.RoomID, Direction: dir, Handle: handle, Params: params})

	peer.mu.Lock()
	if dir == DirectionSend {
		peer.sendTransportID = id
		peer.state = PeerTransportsReadySend
	} else {
		peer.recvTransportID = id
		peer.state = PeerTransportsReadyRecv
	}
	peer.mu.Unlock()

	peer.send(EventTransportCreated, TransportCreatedPayload{Direction: req.Direction, TransportParams: params})
}

func (s *Server) handleConnectTransport(peer *Peer, payload []byte) {
	var req ConnectTransportRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(peer, EventTransportError, newError(CodeEngineFailure, "malformed payload"))
		return
	}

	record, ok := s.Tables.getTransport(req.TransportID)
	if !ok {
		s.sendError(peer, EventTransportError, newError(CodeUnknownTransport, "transport %s not found", req.TransportID))
		return
	}
	if record.PeerID != peer.ID {
		s.sendError(peer, EventTransportError, newError(CodeNotOwner, "transport %s not owned by %s", req.TransportID, peer.ID))
		return
	}
	if record.isConnected() {
		s.sendError(peer, EventTransportError, newError(CodeAlreadyConnected, "transport %s already connected", req.TransportID))
		return
	}

	room, ok := s.Rooms.Get(record.RoomID)
	if !ok {
		s.sendError(peer, EventTransportError, newError(CodeUnknownRoom, "room %s not found", record.RoomID))
		return
	}

	room.Lock()
	if record.isConnected() {
		room.Unlock()
		s.sendError(peer, EventTransportError, newError(CodeAlreadyConnected, "transport %s already connected", req.TransportID))
		return
	}
	err := record.Handle.Connect(req.DTLSParameters)
	if err == nil {
		record.setConnected()
	}
	room.Unlock()

	if err != nil {
		if errors.Is(err, mediaengine.ErrAlreadyConnected) {
			s.sendError(peer, EventTransportError, newError(CodeAlreadyConnected, "transport %s already connected", req.TransportID))
			return
		}
		s.sendError(peer, EventTransportError, newError(CodeEngineFailure, "connect transport: %v", err))
		return
	}

	peer.send(EventTransportConnected, TransportConnectedPayload{TransportID: req.TransportID})
}

func (s *Server) handleCreateProducer(peer *Peer, payload []byte) {
	var req CreateProducerRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(peer, EventProducerError, newError(CodeEngineFailure, "malformed payload"))
		return
	}

	record, ok := s.Tables.getTransport(req.TransportID)
	if !ok {
		s.sendError(peer, EventProducerError, newError(CodeUnknownTransport, "transport %s not found", req.TransportID))
		return
	}
	if record.PeerID != peer.ID {
		s.sendError(peer, EventProducerError, newError(CodeNotOwner, "transport %s not owned by %s", req.TransportID, peer.ID))
		return
	}
	if record.Direction != DirectionSend {
		s.sendError(peer, EventProducerError, newError(CodeWrongDirection, "transport %s is not a send transport", req.TransportID))
		return
	}
	if !record.isConnected() {
		s.sendError(peer, EventProducerError, newError(CodeNotConnected, "transport %s not connected", req.TransportID))
		return
	}

	room, ok := s.Rooms.Get(record.RoomID)
	if !ok {
		s.sendError(peer, EventProducerError, newError(CodeUnknownRoom, "room %s not found", record.RoomID))
		return
	}

	room.Lock()
	if !room.hasMemberLocked(peer.ID) {
		room.Unlock()
		s.sendError(peer, EventProducerError, newError(CodeNotJoined, "peer %s not a member of %s", peer.ID, record.RoomID))
		return
	}
	for _, existing := range s.Tables.producersByPeerInRoom(peer.ID, record.RoomID) {
		if string(existing.Kind) == req.Kind {
			room.Unlock()
			s.sendError(peer, EventProducerError, newError(CodeDuplicateKind, "peer %s already producing %s", peer.ID, req.Kind))
			return
		}
	}
	id := uuid.NewString()
	handle, err := record.Handle.Produce(id, req.Kind, req.RTPParameters)
	if err != nil {
		room.Unlock()
		s.sendError(peer, EventProducerError, newError(CodeEngineFailure, "produce: %v", err))
		return
	}
	s.Tables.insertProducer(&ProducerRecord{ID: id, PeerID: peer.ID, RoomID: record.RoomID, Kind: Kind(req.Kind), Handle: handle})
	recipients := room.membersLocked()
	room.Unlock()

	peer.mu.Lock()
	peer.state = PeerProducing
	peer.mu.Unlock()

	peer.send(EventProducerCreated, ProducerCreatedPayload{ID: id, Kind: req.Kind})

	for _, rid := range recipients {
		if rid == peer.ID {
			continue
		}
		if rp, ok := s.Peers.Get(rid); ok {
			rp.send(EventNewProducerAvail, NewProducerAvailablePayload{PeerID: peer.ID, ProducerID: id, Kind: req.Kind})
		}
	}

	s.logf("producer created", zap.String("peer_id", peer.ID), zap.String("room_id", record.RoomID), zap.String("producer_id", id), zap.String("kind", req.Kind))
}

func (s *Server) handleCreateConsumer(peer *Peer, payload []byte) {
	var req CreateConsumerRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(peer, EventConsumerError, newError(CodeEngineFailure, "malformed payload"))
		return
	}

	record, ok := s.Tables.getTransport(req.TransportID)
	if !ok {
		s.sendError(peer, EventConsumerError, newError(CodeUnknownTransport, "transport %s not found", req.TransportID))
		return
	}
	if record.PeerID != peer.ID {
		s.sendError(peer, EventConsumerError, newError(CodeNotOwner, "transport %s not owned by %s", req.TransportID, peer.ID))
		return
	}
	if record.Direction != DirectionRecv {
		s.sendError(peer, EventConsumerError, newError(CodeWrongDirection, "transport %s is not a recv transport", req.TransportID))
		return
	}
	if !record.isConnected() {
		s.sendError(peer, EventConsumerError, newError(CodeNotConnected, "transport %s not connected", req.TransportID))
		return
	}

	producer, ok := s.Tables.getProducer(req.ProducerID)
	if !ok || producer.RoomID != record.RoomID {
		s.sendError(peer, EventConsumerError, newError(CodeUnknownProducer, "producer %s not found", req.ProducerID))
		return
	}
	if producer.PeerID == peer.ID {
		s.sendError(peer, EventConsumerError, newError(CodeNotOwner, "peer %s cannot consume its own producer", peer.ID))
		return
	}

	room, ok := s.Rooms.Get(record.RoomID)
	if !ok {
		s.sendError(peer, EventConsumerError, newError(CodeUnknownRoom, "room %s not found", record.RoomID))
		return
	}

	room.Lock()
	if !room.hasMemberLocked(peer.ID) {
		room.Unlock()
		s.sendError(peer, EventConsumerError, newError(CodeNotJoined, "peer %s not a member of %s", peer.ID, record.RoomID))
		return
	}
	// Re-check the producer still exists now that we hold the room lock;
	// it may have closed between the lookup above and here (spec.md §8
	// boundary behavior: "create-consumer for a producer that closed
	// between advertisement and consume returns unknown-producer").
	if _, stillLive := s.Tables.getProducer(req.ProducerID); !stillLive {
		room.Unlock()
		s.sendError(peer, EventConsumerError, newError(CodeUnknownProducer, "producer %s no longer exists", req.ProducerID))
		return
	}
	id := uuid.NewString()
	handle, err := record.Handle.Consume(id, producer.Handle, string(producer.Kind))
	room.Unlock()
	if err != nil {
		if errors.Is(err, mediaengine.ErrCannotConsume) {
			s.sendError(peer, EventConsumerError, newError(CodeCannotConsume, "cannot consume producer %s", req.ProducerID))
			return
		}
		s.sendError(peer, EventConsumerError, newError(CodeEngineFailure, "consume: %v", err))
		return
	}
	s.Tables.insertConsumer(&ConsumerRecord{
		ID: id, PeerID: peer.ID, RoomID: record.RoomID, ProducerID: producer.ID,
		Kind: producer.Kind, Handle: handle, paused: true,
	})

	peer.mu.Lock()
	peer.state = PeerConsuming
	peer.mu.Unlock()

	peer.send(EventConsumerCreated, ConsumerCreatedPayload{
		ID:            id,
		ProducerID:    producer.ID,
		Kind:          string(producer.Kind),
		RTPParameters: mediaengine.RTPParameters{MimeType: mimeTypeForKind(producer.Kind)},
	})
}

func (s *Server) handleResumeConsumer(peer *Peer, payload []byte) {
	var req ResumeConsumerRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(peer, EventConsumerError, newError(CodeEngineFailure, "malformed payload"))
		return
	}
	cr, ok := s.Tables.getConsumer(req.ConsumerID)
	if !ok {
		s.sendError(peer, EventConsumerError, newError(CodeUnknownConsumer, "consumer %s not found", req.ConsumerID))
		return
	}
	if cr.PeerID != peer.ID {
		s.sendError(peer, EventConsumerError, newError(CodeNotOwner, "consumer %s not owned by %s", req.ConsumerID, peer.ID))
		return
	}
	_ = cr.Handle.Resume()
	cr.setPaused(false)
	peer.send(EventConsumerResumed, ConsumerResumedPayload{ConsumerID: req.ConsumerID})
}

func (s *Server) handlePauseConsumer(peer *Peer, payload []byte) {
	var req PauseConsumerRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(peer, EventConsumerError, newError(CodeEngineFailure, "malformed payload"))
		return
	}
	cr, ok := s.Tables.getConsumer(req.ConsumerID)
	if !ok {
		s.sendError(peer, EventConsumerError, newError(CodeUnknownConsumer, "consumer %s not found", req.ConsumerID))
		return
	}
	if cr.PeerID != peer.ID {
		s.sendError(peer, EventConsumerError, newError(CodeNotOwner, "consumer %s not owned by %s", req.ConsumerID, peer.ID))
		return
	}
	_ = cr.Handle.Pause()
	cr.setPaused(true)
	peer.send(EventConsumerPaused, ConsumerPausedPayload{ConsumerID: req.ConsumerID})
}

func (s *Server) handleCloseProducer(peer *Peer, payload []byte) {
	var req CloseProducerRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(peer, EventProducerError, newError(CodeEngineFailure, "malformed payload"))
		return
	}
	pr, ok := s.Tables.getProducer(req.ProducerID)
	if !ok {
		s.sendError(peer, EventProducerError, newError(CodeUnknownProducer, "producer %s not found", req.ProducerID))
		return
	}
	if pr.PeerID != peer.ID {
		s.sendError(peer, EventProducerError, newError(CodeNotOwner, "producer %s not owned by %s", req.ProducerID, peer.ID))
		return
	}
	room, ok := s.Rooms.Get(pr.RoomID)
	if !ok {
		s.sendError(peer, EventProducerError, newError(CodeUnknownRoom, "room %s not found", pr.RoomID))
		return
	}

	peer.send(EventProducerClosedReply, ProducerClosedReplyPayload{ProducerID: pr.ID})
	s.closeProducer(room, pr)
}

func mimeTypeForKind(kind Kind) string {
	if kind == KindAudio {
		return "audio/opus"
	}
	return "video/VP8"
}
