package roomcore

import "github.com/aura-conf/roomcore/internal/mediaengine"

// Engine is the Room Registry's view of the Media Engine Adapter
// (spec.md §4.1). internal/mediaengine.Worker satisfies it through the
// adapter in engineadapter.go; tests substitute a fake.
type Engine interface {
	CreateRouter(roomID string) (RouterHandle, error)
}

// RouterHandle is the per-room subset of the adapter (spec.md §4.2).
type RouterHandle interface {
	Capabilities() []mediaengine.RTPCodecCapability
	CreateTransport(id string, dir mediaengine.Direction, cfg mediaengine.Config) (TransportHandle, mediaengine.TransportParams, error)
	Close()
}

// TransportHandle is the per-transport subset of the adapter (spec.md §4.1).
type TransportHandle interface {
	Connect(remote mediaengine.DTLSParameters) error
	Connected() bool
	Produce(id, kind string, params mediaengine.RTPParameters) (ProducerHandle, error)
	Consume(id string, producer ProducerHandle, remoteKind string) (ConsumerHandle, error)
	Close() error
}

// ProducerHandle is the per-producer subset of the adapter.
type ProducerHandle interface {
	Close() error
}

// ConsumerHandle is the per-consumer subset of the adapter.
type ConsumerHandle interface {
	Resume() error
	Pause() error
	Close() error
}
