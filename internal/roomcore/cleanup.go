package roomcore

import "go.uber.org/zap"

// cleanup is the Lifecycle / Cleanup Supervisor (spec.md §4.6). It is
// idempotent: calling it twice for a peer with no current room is a
// no-op on the second call. dropPeer selects step 6 ("drop the peer"):
// an explicit leave-video-room keeps the Peer registered so a second
// leave-video-room can answer not-joined (spec.md §8 idempotence law);
// an actual connection loss drops the Peer entirely.
func (s *Server) cleanup(peer *Peer, dropPeer bool) {
	peer.mu.Lock()
	roomID := peer.roomID
	if roomID == "" {
		peer.mu.Unlock()
		if dropPeer {
			s.Peers.Unregister(peer.ID)
		}
		return
	}
	peer.state = PeerLeaving
	peer.mu.Unlock()

	room, ok := s.Rooms.Get(roomID)
	if ok {
		// Step 2: close every producer the peer owns in this room,
		// fanning out producer-closed to the rest of the room.
		for _, pr := range s.Tables.producersByPeerInRoom(peer.ID, roomID) {
			s.closeProducer(room, pr)
		}

		// Step 3: close the peer's own consumers. Never fans out
		// (spec.md §4.6: "only a producer's disappearance is newsworthy").
		for _, cr := range s.Tables.consumersByPeerInRoom(peer.ID, roomID) {
			_ = cr.Handle.Close()
			s.Tables.removeConsumer(cr.ID)
		}

		// Step 4: close every transport the peer owns.
		for _, tr := range s.Tables.transportsByPeerInRoom(peer.ID, roomID) {
			_ = tr.Handle.Close()
			s.Tables.removeTransport(tr.ID)
		}

		// Step 5: drop membership, fan out peer-left, close the room if
		// it is now empty (spec.md §4.2 remove_member).
		room.Lock()
		var recipients []string
		if room.hasMemberLocked(peer.ID) {
			room.removeMemberLocked(peer.ID)
			recipients = room.membersLocked()
		}
		room.Unlock()
		s.Rooms.removeIfEmpty(room)
		s.logf("peer left room", zap.String("peer_id", peer.ID), zap.String("room_id", roomID), zap.Bool("drop_peer", dropPeer))

		for _, rid := range recipients {
			if rp, ok := s.Peers.Get(rid); ok {
				rp.send(EventPeerLeft, PeerLeftPayload{PeerID: peer.ID})
			}
		}
	}

	peer.mu.Lock()
	peer.roomID = ""
	peer.sendTransportID = ""
	peer.recvTransportID = ""
	peer.state = PeerConnected
	peer.mu.Unlock()

	// Step 6: drop the peer, only when departure is permanent.
	if dropPeer {
		peer.mu.Lock()
		peer.state = PeerClosed
		peer.mu.Unlock()
		s.Peers.Unregister(peer.ID)
	}
}

// closeProducer closes pr via the adapter, cascades the close to every
// consumer currently subscribed to it (regardless of which peer owns
// those consumers; spec.md §4.6: "Receiving peers must then close the
// corresponding consumers locally; the server additionally closes them
// on its side"), removes pr from the table, and fans out producer-closed
// to every other current room member.
func (s *Server) closeProducer(room *Room, pr *ProducerRecord) {
	for _, cr := range s.Tables.consumersByProducer(pr.ID) {
		_ = cr.Handle.Close()
		s.Tables.removeConsumer(cr.ID)
	}
	_ = pr.Handle.Close()
	s.Tables.removeProducer(pr.ID)
	s.logf("producer closed", zap.String("peer_id", pr.PeerID), zap.String("room_id", pr.RoomID), zap.String("producer_id", pr.ID))

	room.Lock()
	recipients := room.membersLocked()
	room.Unlock()

	for _, rid := range recipients {
		if rid == pr.PeerID {
			continue
		}
		if rp, ok := s.Peers.Get(rid); ok {
			rp.send(EventProducerClosedFanout, ProducerClosedFanoutPayload{PeerID: pr.PeerID, ProducerID: pr.ID})
		}
	}
}
