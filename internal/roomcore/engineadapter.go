package roomcore

import (
	"errors"

	"github.com/aura-conf/roomcore/internal/mediaengine"
)

// engineWorker adapts *mediaengine.Worker to Engine. This is the glue
// between the control plane's opaque ids (spec.md §4.1: "every other
// component uses opaque ids") and pion's concrete ORTC objects.
type engineWorker struct {
	w *mediaengine.Worker
}

// NewEngine wraps a live worker for use by a Server.
func NewEngine(w *mediaengine.Worker) Engine {
	return &engineWorker{w: w}
}

func (e *engineWorker) CreateRouter(roomID string) (RouterHandle, error) {
	r, err := e.w.CreateRouter(roomID)
	if err != nil {
		return nil, err
	}
	return &engineRouter{r: r}, nil
}

type engineRouter struct {
	r *mediaengine.Router
}

func (e *engineRouter) Capabilities() []mediaengine.RTPCodecCapability {
	return e.r.Capabilities()
}

func (e *engineRouter) CreateTransport(id string, dir mediaengine.Direction, cfg mediaengine.Config) (TransportHandle, mediaengine.TransportParams, error) {
	t, params, err := e.r.CreateTransport(id, dir, cfg)
	if err != nil {
		return nil, mediaengine.TransportParams{}, err
	}
	return &engineTransport{t: t}, params, nil
}

func (e *engineRouter) Close() {
	e.r.Close()
}

type engineTransport struct {
	t *mediaengine.Transport
}

func (e *engineTransport) Connect(remote mediaengine.DTLSParameters) error {
	return e.t.Connect(remote)
}

func (e *engineTransport) Connected() bool {
	return e.t.Connected()
}

func (e *engineTransport) Produce(id, kind string, params mediaengine.RTPParameters) (ProducerHandle, error) {
	p, err := e.t.Produce(id, kind, params)
	if err != nil {
		return nil, err
	}
	return &engineProducer{p: p}, nil
}

func (e *engineTransport) Consume(id string, producer ProducerHandle, remoteKind string) (ConsumerHandle, error) {
	ep, ok := producer.(*engineProducer)
	if !ok {
		return nil, errors.New("roomcore: producer handle not owned by this engine")
	}
	c, err := e.t.Consume(id, ep.p, remoteKind)
	if err != nil {
		return nil, err
	}
	return &engineConsumer{c: c}, nil
}

func (e *engineTransport) Close() error {
	return e.t.Close()
}

type engineProducer struct {
	p *mediaengine.Producer
}

func (e *engineProducer) Close() error {
	return e.p.Close()
}

type engineConsumer struct {
	c *mediaengine.Consumer
}

func (e *engineConsumer) Resume() error { return e.c.Resume() }
func (e *engineConsumer) Pause() error  { return e.c.Pause() }
func (e *engineConsumer) Close() error  { return e.c.Close() }
