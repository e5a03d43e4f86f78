package roomcore

import "github.com/aura-conf/roomcore/internal/mediaengine"

// Event names, spec.md §6.2.
const (
	EventJoinVideoRoom    = "join-video-room"
	EventLeaveVideoRoom   = "leave-video-room"
	EventCreateTransport  = "create-transport"
	EventConnectTransport = "connect-transport"
	EventCreateProducer   = "create-producer"
	EventCreateConsumer   = "create-consumer"
	EventResumeConsumer   = "resume-consumer"
	EventPauseConsumer    = "pause-consumer"
	EventCloseProducer    = "close-producer"

	EventVideoRoomJoined     = "video-room-joined"
	EventVideoRoomLeft       = "video-room-left"
	EventTransportCreated    = "transport-created"
	EventTransportConnected  = "transport-connected"
	EventProducerCreated     = "producer-created"
	EventConsumerCreated     = "consumer-created"
	EventConsumerResumed     = "consumer-resumed"
	EventConsumerPaused      = "consumer-paused"
	EventProducerClosedReply = "producer-closed"

	EventNewPeerJoined       = "new-peer-joined"
	EventNewProducerAvail    = "new-producer-available"
	EventProducerClosedFanout = "producer-closed"
	EventPeerLeft            = "peer-left"

	EventVideoRoomError = "video-room-error"
	EventTransportError = "transport-error"
	EventProducerError  = "producer-error"
	EventConsumerError  = "consumer-error"
)

// ProducerInfo describes one live producer, used both in the join
// payload's existingProducers list and in fan-out advertisements
// (spec.md §6.2).
type ProducerInfo struct {
	ID     string `json:"id"`
	PeerID string `json:"peerId"`
	Kind   string `json:"kind"`
}

type JoinVideoRoomRequest struct {
	RoomID string `json:"roomId"`
}

type VideoRoomJoinedPayload struct {
	RouterCapabilities []mediaengine.RTPCodecCapability `json:"routerCapabilities"`
	ExistingProducers  []ProducerInfo                   `json:"existingProducers"`
}

type NewPeerJoinedPayload struct {
	PeerID string `json:"peerId"`
}

type LeaveVideoRoomRequest struct {
	RoomID string `json:"roomId"`
}

type VideoRoomLeftPayload struct {
	RoomID string `json:"roomId"`
}

type CreateTransportRequest struct {
	RoomID    string `json:"roomId"`
	Direction string `json:"direction"`
}

type TransportCreatedPayload struct {
	Direction       string                      `json:"direction"`
	TransportParams mediaengine.TransportParams `json:"transportParams"`
}

type ConnectTransportRequest struct {
	TransportID    string                      `json:"transportId"`
	DTLSParameters mediaengine.DTLSParameters  `json:"dtlsParameters"`
}

type TransportConnectedPayload struct {
	TransportID string `json:"transportId"`
}

type CreateProducerRequest struct {
	TransportID   string                     `json:"transportId"`
	RoomID        string                     `json:"roomId"`
	Kind          string                     `json:"kind"`
	RTPParameters mediaengine.RTPParameters  `json:"rtpParameters"`
}

type ProducerCreatedPayload struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

type NewProducerAvailablePayload struct {
	PeerID     string `json:"peerId"`
	ProducerID string `json:"producerId"`
	Kind       string `json:"kind"`
}

type CreateConsumerRequest struct {
	TransportID     string      `json:"transportId"`
	ProducerID      string      `json:"producerId"`
	RTPCapabilities interface{} `json:"rtpCapabilities"`
}

type ConsumerCreatedPayload struct {
	ID            string                    `json:"id"`
	ProducerID    string                    `json:"producerId"`
	Kind          string                    `json:"kind"`
	RTPParameters mediaengine.RTPParameters `json:"rtpParameters"`
}

type ResumeConsumerRequest struct {
	ConsumerID string `json:"consumerId"`
}

type ConsumerResumedPayload struct {
	ConsumerID string `json:"consumerId"`
}

type PauseConsumerRequest struct {
	ConsumerID string `json:"consumerId"`
}

type ConsumerPausedPayload struct {
	ConsumerID string `json:"consumerId"`
}

type CloseProducerRequest struct {
	ProducerID string `json:"producerId"`
	RoomID     string `json:"roomId"`
}

type ProducerClosedReplyPayload struct {
	ProducerID string `json:"producerId"`
}

type ProducerClosedFanoutPayload struct {
	PeerID     string `json:"peerId"`
	ProducerID string `json:"producerId"`
}

type PeerLeftPayload struct {
	PeerID string `json:"peerId"`
}

type ErrorPayload struct {
	Error   Code   `json:"error"`
	Details string `json:"details"`
}
