// Package roomcore is the room/peer/transport/producer/consumer state
// machine and signaling event router for the conferencing control plane.
// It is the explicit Server value spec.md §9 calls for in place of
// module-level mutable registries: every registry is a field, every
// component receives it by parameter, and there are no ambient globals.
package roomcore

import (
	"github.com/aura-conf/roomcore/internal/mediaengine"
	"go.uber.org/zap"
)

// Server is the process-lifetime value holding every registry (spec.md
// §9 Design Notes).
type Server struct {
	Rooms  *RoomRegistry
	Peers  *PeerRegistry
	Tables *Tables

	webrtcCfg mediaengine.Config
	log       *zap.Logger
}

// NewServer wires a fresh Server around engine, ready to accept
// connections (spec.md §2 item 7 Configuration & Bootstrap).
func NewServer(engine Engine, webrtcCfg mediaengine.Config, log *zap.Logger) *Server {
	return &Server{
		Rooms:     NewRoomRegistry(engine),
		Peers:     NewPeerRegistry(),
		Tables:    NewTables(),
		webrtcCfg: webrtcCfg,
		log:       log,
	}
}

// Connect registers a new Peer for an accepted signaling connection
// (spec.md §4.3: "On signaling-connection accept: create Peer(id)").
func (s *Server) Connect(peerID string, identity PeerIdentity, sender Sender) *Peer {
	return s.Peers.Register(peerID, identity, sender)
}

// Disconnect runs the cleanup supervisor for a dropped connection
// (spec.md §4.6; triggered by connection loss per §4.3 and §5).
func (s *Server) Disconnect(peerID string) {
	peer, ok := s.Peers.Get(peerID)
	if !ok {
		return
	}
	s.cleanup(peer, true)
}

// Dispatch routes one inbound event from peerID to its handler (spec.md
// §9 Design Notes: "Model the event router as a loop that dispatches
// tagged variants"). The caller's per-connection single-writer inbox
// (internal/signaling) guarantees events from one peer arrive here in
// order (spec.md §5 I5).
//
// A panic inside a single handler is recovered here, logged with the
// peer/room/event context, and reported to that peer as an
// engine-failure rather than killing the connection — the same
// gin.Recovery() shape applied one layer down, at the event router
// instead of only the HTTP router.
func (s *Server) Dispatch(peerID, event string, payload []byte) {
	peer, ok := s.Peers.Get(peerID)
	if !ok {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("recovered panic in event handler",
				zap.String("peer_id", peerID),
				zap.String("room_id", peer.RoomID()),
				zap.String("event", event),
				zap.Any("panic", r),
			)
			s.sendError(peer, errorEventFor(event), newError(CodeEngineFailure, "internal error handling %s", event))
		}
	}()

	switch event {
	case EventJoinVideoRoom:
		s.handleJoinVideoRoom(peer, payload)
	case EventLeaveVideoRoom:
		s.handleLeaveVideoRoom(peer, payload)
	case EventCreateTransport:
		s.handleCreateTransport(peer, payload)
	case EventConnectTransport:
		s.handleConnectTransport(peer, payload)
	case EventCreateProducer:
		s.handleCreateProducer(peer, payload)
	case EventCreateConsumer:
		s.handleCreateConsumer(peer, payload)
	case EventResumeConsumer:
		s.handleResumeConsumer(peer, payload)
	case EventPauseConsumer:
		s.handlePauseConsumer(peer, payload)
	case EventCloseProducer:
		s.handleCloseProducer(peer, payload)
	default:
		s.log.Warn("unknown event", zap.String("event", event), zap.String("peer_id", peerID))
	}
}

// errorEventFor maps an inbound event name to the wire error event its
// handler replies with on failure (spec.md §6.2/§7), so a recovered
// panic can be reported the same way a normal precondition failure is.
func errorEventFor(event string) string {
	switch event {
	case EventJoinVideoRoom, EventLeaveVideoRoom:
		return EventVideoRoomError
	case EventCreateTransport, EventConnectTransport:
		return EventTransportError
	case EventCreateProducer, EventCloseProducer:
		return EventProducerError
	case EventCreateConsumer, EventResumeConsumer, EventPauseConsumer:
		return EventConsumerError
	default:
		return EventVideoRoomError
	}
}

// NotifyWorkerDied fans out video-room-error to every peer in every
// room hosted by this Server's media engine worker (spec.md §4.4:
// "every room hosted by that worker is sent video-room-error"). Called
// by cmd/server once the Media Engine Adapter reports on_worker_died,
// before the process exits.
func (s *Server) NotifyWorkerDied(reason error) {
	for _, peerID := range s.Peers.allIDs() {
		peer, ok := s.Peers.Get(peerID)
		if !ok {
			continue
		}
		s.sendError(peer, EventVideoRoomError, newError(CodeEngineFailure, "media engine unavailable: %v", reason))
	}
}

func (s *Server) sendError(peer *Peer, event string, err *Error) {
	peer.send(event, ErrorPayload{Error: err.Code, Details: err.Details})
}

func (s *Server) logf(msg string, fields ...zap.Field) {
	s.log.Info(msg, fields...)
}
